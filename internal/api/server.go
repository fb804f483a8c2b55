package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eventnexus/autopilot/internal/config"
	"github.com/eventnexus/autopilot/internal/service/autopilot"
)

// Server represents the operator API server
type Server struct {
	config  config.ServerConfig
	handler http.Handler
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates the API server. metrics may be nil, in which case
// /metrics is not mounted.
func NewServer(cfg config.ServerConfig, svc *autopilot.Service, health *HealthChecker, metrics http.Handler) *Server {
	router := SetupRoutes(NewHandlers(svc), health, metrics, cfg.AllowedOrigins)
	return &Server{
		config:  cfg,
		handler: router,
		router:  router,
	}
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.handler,
		// A manual cycle runs inside the request, so writes get the
		// longest budget.
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing
func (s *Server) Handler() http.Handler {
	return s.handler
}
