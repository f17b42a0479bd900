// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/cheerboard/internal/middleware"
)

// Router builds the HTTP routes.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a Router. CORS origins and the webhook rate limit are
// read once; changing them needs a restart.
func NewRouter(handler *Handler) *Router {
	mwCfg := DefaultChiMiddlewareConfig()
	if cfg := handler.cfg(); cfg != nil {
		mwCfg.CORSAllowedOrigins = cfg.Server.CORSOrigins
	}
	return &Router{handler: handler, chiMiddleware: NewChiMiddleware(mwCfg)}
}

// Setup configures all routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitCustom(RateLimitHealth))
		r.Use(APISecurityHeaders())
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)

		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimit())
			r.Get("/notifications/state", router.handler.NotificationsState)
			r.Post("/notifications/dismiss", router.handler.NotificationsDismiss)
			r.Get("/stream/state", router.handler.StreamState)
			r.Get("/recovery/status", router.handler.RecoveryStatus)
			r.Get("/cache/stats", router.handler.CacheStats)
		})

		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimitCustom(RateLimitControl))
			r.Post("/stream/reconnect", router.handler.StreamReconnect)
			r.Post("/recovery/reset", router.handler.RecoveryReset)
		})

		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimitCustom(router.webhookRateLimit()))
			// All methods reach the handler so non-POST gets the structured 405.
			r.HandleFunc("/webhooks/challenge-completed", router.handler.ChallengeCompletedWebhook)
		})
	})

	r.With(router.chiMiddleware.RateLimitCustom(RateLimitWebSocket)).Get("/ws", router.handler.WebSocket)
	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		respondError(w, req, http.StatusNotFound, "NOT_FOUND", "Resource not found", nil, nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		respondError(w, req, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil, nil)
	})

	return r
}

func (router *Router) webhookRateLimit() RateLimitConfig {
	limit := RateLimitConfig{Requests: 60, Window: time.Minute}
	if cfg := router.handler.cfg(); cfg != nil {
		limit.Requests = cfg.Webhook.RateLimit
	}
	return limit
}
