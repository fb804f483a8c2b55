package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

var defaultOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers, health *HealthChecker, metrics http.Handler, origins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	if len(origins) == 0 {
		origins = defaultOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if health != nil {
		r.Get("/health", health.HandleHealth)
		r.Get("/health/live", health.HandleLiveness)
		r.Get("/health/ready", health.HandleReadiness)
	}
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Route("/api/autopilot", func(r chi.Router) {
		r.Use(middleware.Logger)

		r.Post("/runs", h.RunCycle)
		r.Get("/runs", h.ListRuns)

		r.Get("/actions", h.ListActions)
		r.Post("/actions/{id}/rollback", h.Rollback)

		r.Get("/opportunities", h.ListOpportunities)
		r.Patch("/opportunities/{id}", h.ResolveOpportunity)

		r.Get("/rules", h.ListRules)
		r.Patch("/rules/{id}", h.ToggleRule)
	})

	return r
}
