package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/gift-exchange/internal/auth"
)

// AddParticipant handles POST /api/events/{eventID}/participants.
func (h *Handlers) AddParticipant(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := decodeBody(r, &in); err != nil {
		respondError(w, err)
		return
	}

	p, err := h.service.AddParticipant(r.Context(), auth.CallerFrom(r.Context()),
		chi.URLParam(r, "eventID"), in.Name, in.Email)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

// ListParticipants handles GET /api/events/{eventID}/participants.
func (h *Handlers) ListParticipants(w http.ResponseWriter, r *http.Request) {
	participants, err := h.service.Participants(r.Context(), auth.CallerFrom(r.Context()), chi.URLParam(r, "eventID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, participants)
}

// UpdateParticipant handles PATCH /api/events/{eventID}/participants/{participantID}.
// Only the email is mutable; changing it repairs assignment snapshots and,
// for a drawn event, resends the assignment to the new address.
func (h *Handlers) UpdateParticipant(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if err := decodeBody(r, &in); err != nil {
		respondError(w, err)
		return
	}

	p, resent, err := h.service.UpdateParticipantEmail(r.Context(), auth.CallerFrom(r.Context()),
		chi.URLParam(r, "eventID"), chi.URLParam(r, "participantID"), in.Email)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"participant": p,
		"resent":      resent,
	})
}

// RemoveParticipant handles DELETE /api/events/{eventID}/participants/{participantID}.
func (h *Handlers) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	err := h.service.RemoveParticipant(r.Context(), auth.CallerFrom(r.Context()),
		chi.URLParam(r, "eventID"), chi.URLParam(r, "participantID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
