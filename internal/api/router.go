// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/marquee/internal/config"
	"github.com/tomtom215/marquee/internal/middleware"
)

// RouterConfig tunes the middleware stack.
type RouterConfig struct {
	// ExitAttemptsPerMinute bounds kiosk exit attempts per client address.
	ExitAttemptsPerMinute int
}

// RouterConfigFrom maps the agent configuration.
func RouterConfigFrom(cfg *config.ServerConfig) RouterConfig {
	return RouterConfig{ExitAttemptsPerMinute: cfg.ExitAttemptsPerMinute}
}

// chiMiddleware adapts http.HandlerFunc middleware to Chi's func(http.Handler) http.Handler.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// NewRouter configures all HTTP routes.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	if cfg.ExitAttemptsPerMinute <= 0 {
		cfg.ExitAttemptsPerMinute = 5
	}

	r := chi.NewRouter()

	// Global middleware, applied in order. The agent serves the local
	// renderer with no proxy in front, so RemoteAddr is never rewritten
	// from client headers; the exit limiter keys on it.
	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chimiddleware.Recoverer)
	r.Use(chiMiddleware(middleware.PrometheusMetrics))

	r.Get("/healthz", h.Healthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", h.WebSocket)

	r.Route("/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowOriginFunc: func(req *http.Request, origin string) bool {
				return h.origins.Allows(origin, req.Host)
			},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", middleware.RequestIDHeader},
			ExposedHeaders: []string{middleware.RequestIDHeader},
			MaxAge:         300,
		}))

		r.Get("/status", h.Status)

		r.Route("/kiosk", func(r chi.Router) {
			r.Post("/enter", h.KioskEnter)
			r.With(exitRateLimit(cfg.ExitAttemptsPerMinute)).Post("/exit", h.KioskExit)
			r.Get("/policy", h.KioskPolicy)
		})

		r.Post("/playback/click", h.PlaybackClick)
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		NewResponseWriter(w, req).Fail(http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		NewResponseWriter(w, req).Fail(http.StatusMethodNotAllowed, "Method not allowed")
	})

	return r
}

// exitRateLimit bounds guesses at the six-digit exit code per socket peer.
func exitRateLimit(perMinute int) func(http.Handler) http.Handler {
	return httprate.Limit(
		perMinute,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			NewResponseWriter(w, r).Fail(http.StatusTooManyRequests, "Too many exit attempts")
		}),
	)
}
