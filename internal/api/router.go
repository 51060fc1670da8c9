// Relay - Real-Time Notification Delivery for Pharmacy Operations
// Copyright 2026 Pharmex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pharmex/relay

// Package api provides the HTTP surface: notification submission, queue
// inspection, preference management, and the websocket upgrade endpoint.
// Routing uses Chi with go-chi/cors and go-chi/httprate.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pharmex/relay/internal/auth"
	"github.com/pharmex/relay/internal/config"
	"github.com/pharmex/relay/internal/events"
	"github.com/pharmex/relay/internal/hub"
	"github.com/pharmex/relay/internal/middleware"
	"github.com/pharmex/relay/internal/queue"
	"github.com/pharmex/relay/internal/store"
)

// Router holds everything the HTTP handlers need.
type Router struct {
	cfg       *config.Config
	bus       *events.Bus
	optimizer *queue.Optimizer
	prefs     store.PreferenceStore
	hub       *hub.Hub
	jwt       *auth.JWTManager
	validate  *validator.Validate
}

// NewRouter wires the HTTP layer to the delivery core.
func NewRouter(cfg *config.Config, bus *events.Bus, optimizer *queue.Optimizer, prefs store.PreferenceStore, h *hub.Hub, jwt *auth.JWTManager) *Router {
	return &Router{
		cfg:       cfg,
		bus:       bus,
		optimizer: optimizer,
		prefs:     prefs,
		hub:       h,
		jwt:       jwt,
		validate:  validator.New(),
	}
}

// Setup builds the full route tree.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route. CORS must be global so
	// OPTIONS preflight requests are answered before routing.
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   router.corsOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", router.Health)
	r.Handle("/metrics", promhttp.Handler())

	// The websocket endpoint authenticates during the handshake itself, so
	// it sits outside the bearer-token middleware.
	r.Get("/ws", router.WebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(router.rateLimit()))
		r.Use(middleware.Prometheus)
		r.Use(router.Authenticate)

		r.Post("/notifications", router.SubmitNotification)
		r.Post("/broadcasts", router.SubmitBroadcast)

		r.Get("/queue/stats", router.QueueStats)
		r.Post("/queue/optimize", router.OptimizeQueue)

		r.Get("/preferences/{userID}", router.GetPreferences)
		r.Put("/preferences/{userID}", router.SetPreferences)
	})

	return r
}

func (router *Router) corsOrigins() []string {
	if router.cfg == nil || len(router.cfg.Server.CORSOrigins) == 0 {
		return []string{}
	}
	return router.cfg.Server.CORSOrigins
}

func (router *Router) rateLimit() (int, time.Duration) {
	reqs, window := 100, time.Minute
	if router.cfg != nil && router.cfg.Security.RateLimitReqs > 0 {
		reqs = router.cfg.Security.RateLimitReqs
	}
	if router.cfg != nil && router.cfg.Security.RateLimitWindow > 0 {
		window = router.cfg.Security.RateLimitWindow
	}
	return reqs, window
}
