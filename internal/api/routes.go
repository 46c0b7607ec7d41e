// Package api exposes the HTTP surface: campaign send, provider webhooks,
// tracking redirects and health.
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/cookaing/campaign-engine/internal/tracking"
)

// NewRouter configures the full route tree.
func NewRouter(h *Handlers, trk *tracking.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.HealthCheck)

	r.Route("/api/cookaing-marketing", func(r chi.Router) {
		r.Post("/email/send", h.SendCampaign)
		r.Post("/webhooks/brevo", h.BrevoWebhook)
	})

	// Tracking endpoints live outside /api: these URLs land in recipient
	// inboxes and must stay short and stable.
	r.Mount("/t", trk.Routes())

	return r
}
