package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/gift-exchange/internal/auth"
)

// SetupRoutes configures all routes. Returns the top-level mux and the
// /api sub-router carrying the auth middleware.
func SetupRoutes(h *Handlers, verifier *auth.Verifier) (*chi.Mux, chi.Router) {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://app.giftexchange.io", "http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Dev-Email"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check (no auth required)
	r.Get("/health", h.HealthCheck)

	// Provider callbacks authenticate by payload correlation, not tokens
	r.Post("/webhooks/mailersend", h.MailerSendWebhook)

	var apiRouter chi.Router
	r.Route("/api", func(r chi.Router) {
		apiRouter = r
		r.Use(verifier.Middleware)

		r.Route("/events", func(r chi.Router) {
			r.Post("/", h.CreateEvent)
			r.Get("/", h.ListEvents)

			r.Route("/{eventID}", func(r chi.Router) {
				r.Get("/", h.GetEvent)
				r.Patch("/", h.UpdateEvent)

				r.Post("/draw", h.Draw)
				r.Get("/assignments", h.ListAssignments)

				r.Route("/participants", func(r chi.Router) {
					r.Post("/", h.AddParticipant)
					r.Get("/", h.ListParticipants)
					r.Patch("/{participantID}", h.UpdateParticipant)
					r.Delete("/{participantID}", h.RemoveParticipant)
				})

				r.Post("/emails", h.SendEmails)
				r.Get("/emails/logs", h.ListEmailLogs)
			})
		})
	})

	return r, apiRouter
}
