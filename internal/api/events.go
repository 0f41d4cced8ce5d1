package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/gift-exchange/internal/auth"
	"github.com/ignite/gift-exchange/internal/raffle"
)

// CreateEvent handles POST /api/events.
func (h *Handlers) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var in raffle.CreateEventInput
	if err := decodeBody(r, &in); err != nil {
		respondError(w, err)
		return
	}

	ev, err := h.service.CreateEvent(r.Context(), auth.CallerFrom(r.Context()), in)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, ev)
}

// ListEvents handles GET /api/events.
func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.Events(r.Context(), auth.CallerFrom(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, events)
}

// GetEvent handles GET /api/events/{eventID}.
func (h *Handlers) GetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := h.service.Event(r.Context(), auth.CallerFrom(r.Context()), chi.URLParam(r, "eventID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ev)
}

// UpdateEvent handles PATCH /api/events/{eventID}.
func (h *Handlers) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var in raffle.UpdateEventInput
	if err := decodeBody(r, &in); err != nil {
		respondError(w, err)
		return
	}

	ev, err := h.service.UpdateEvent(r.Context(), auth.CallerFrom(r.Context()), chi.URLParam(r, "eventID"), in)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ev)
}

// Draw handles POST /api/events/{eventID}/draw.
func (h *Handlers) Draw(w http.ResponseWriter, r *http.Request) {
	assignments, err := h.service.Draw(r.Context(), auth.CallerFrom(r.Context()), chi.URLParam(r, "eventID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"assignments": assignments,
		"count":       len(assignments),
	})
}

// ListAssignments handles GET /api/events/{eventID}/assignments.
func (h *Handlers) ListAssignments(w http.ResponseWriter, r *http.Request) {
	assignments, err := h.service.Assignments(r.Context(), auth.CallerFrom(r.Context()), chi.URLParam(r, "eventID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, assignments)
}
