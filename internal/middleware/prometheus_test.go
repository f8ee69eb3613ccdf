// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/marquee/internal/metrics"
)

func TestPrometheusMetrics_StatusCapture(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		write  bool
	}{
		{name: "implicit ok", status: http.StatusOK, write: false},
		{name: "explicit error", status: http.StatusInternalServerError, write: true},
		{name: "conflict", status: http.StatusConflict, write: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler := PrometheusMetrics(func(w http.ResponseWriter, r *http.Request) {
				if tt.write {
					w.WriteHeader(tt.status)
				}
				_, _ = w.Write([]byte("ok"))
			})

			rec := httptest.NewRecorder()
			handler(rec, httptest.NewRequest(http.MethodPost, "/unrouted", nil))

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}
}

func TestPrometheusMetrics_FirstStatusWins(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	rw := &metricsResponseWriter{ResponseWriter: rec, statusCode: http.StatusOK}
	rw.WriteHeader(http.StatusTeapot)
	rw.WriteHeader(http.StatusOK)

	if rw.statusCode != http.StatusTeapot {
		t.Errorf("statusCode = %d, want %d", rw.statusCode, http.StatusTeapot)
	}
}

func TestPrometheusMetrics_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return PrometheusMetrics(next.ServeHTTP)
	})
	r.Get("/probe/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	before := testutil.CollectAndCount(metrics.APIRequestDuration)

	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/probe/"+id, nil))
		if rec.Code != http.StatusAccepted {
			t.Fatalf("status = %d", rec.Code)
		}
	}

	// Three paths share one pattern, so exactly one new series exists.
	if got := testutil.CollectAndCount(metrics.APIRequestDuration) - before; got != 1 {
		t.Errorf("new series = %d, want 1", got)
	}
}

func TestRoutePattern_Unmatched(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	if got := routePattern(req); got != unmatchedRoute {
		t.Errorf("routePattern() = %q, want %q", got, unmatchedRoute)
	}
}
