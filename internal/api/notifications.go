package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/gift-exchange/internal/auth"
)

// SendEmails handles POST /api/events/{eventID}/emails.
func (h *Handlers) SendEmails(w http.ResponseWriter, r *http.Request) {
	result, err := h.dispatcher.Dispatch(r.Context(), auth.CallerFrom(r.Context()), chi.URLParam(r, "eventID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// ListEmailLogs handles GET /api/events/{eventID}/emails/logs.
func (h *Handlers) ListEmailLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.dispatcher.EmailLogs(r.Context(), auth.CallerFrom(r.Context()), chi.URLParam(r, "eventID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, logs)
}
