package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/gift-exchange/internal/auth"
	"github.com/ignite/gift-exchange/internal/config"
)

// Server wraps the HTTP server around the router.
type Server struct {
	config    config.ServerConfig
	handlers  *Handlers
	router    *chi.Mux
	apiRouter chi.Router
	server    *http.Server
}

// NewServer builds the server with routes and auth wired in.
func NewServer(cfg config.ServerConfig, handlers *Handlers, verifier *auth.Verifier) *Server {
	router, apiRouter := SetupRoutes(handlers, verifier)
	return &Server{
		config:    cfg,
		handlers:  handlers,
		router:    router,
		apiRouter: apiRouter,
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
