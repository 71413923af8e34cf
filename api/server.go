/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/alerts/*      Alert queries, lifecycle actions, manual sweep
  /api/schedules/*   Preventative maintenance schedules
  /api/practices/*   Restrictive practices register
  /api/snapshots/*   Snapshot ingestion from the surrounding product

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Alert routes
		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", h.ListAlerts)
			r.Get("/stats", h.AlertStats)
			r.Post("/sweep", h.RunSweep)
			r.Get("/{id}", h.GetAlert)
			r.Post("/{id}/acknowledge", h.AcknowledgeAlert)
			r.Post("/{id}/resolve", h.ResolveAlert)
			r.Post("/{id}/dismiss", h.DismissAlert)
		})

		// Schedule routes
		r.Route("/schedules", func(r chi.Router) {
			r.Get("/", h.ListSchedules)
			r.Post("/", h.CreateSchedule)
			r.Get("/stats", h.ScheduleStats)
			r.Get("/due", h.SchedulesDue)
			r.Get("/overdue", h.SchedulesOverdue)
			r.Get("/{id}", h.GetSchedule)
			r.Post("/{id}/complete", h.CompleteSchedule)
			r.Post("/{id}/deactivate", h.DeactivateSchedule)
		})

		// Restrictive practice routes
		r.Route("/practices", func(r chi.Router) {
			r.Get("/", h.ListPractices)
			r.Post("/", h.CreatePractice)
			r.Get("/stats", h.PracticeStats)
			r.Get("/{id}", h.GetPractice)
			r.Put("/{id}", h.UpdatePractice)
			r.Post("/{id}/review", h.ReviewPractice)
			r.Post("/{id}/status", h.ChangePracticeStatus)
			r.Post("/{id}/incidents", h.LogIncident)
			r.Get("/{id}/incidents", h.ListIncidents)
		})

		// Snapshot ingestion routes
		r.Route("/snapshots", func(r chi.Router) {
			r.Put("/plans", h.UpsertPlanSnapshot)
			r.Put("/documents", h.UpsertDocumentSnapshot)
			r.Put("/dwellings", h.UpsertDwellingSnapshot)
			r.Put("/payments", h.UpsertPaymentSnapshot)
			r.Put("/maintenance", h.UpsertMaintenanceSnapshot)
		})
	})

	return r
}
