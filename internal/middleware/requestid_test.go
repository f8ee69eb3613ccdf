// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/tomtom215/marquee/internal/logging"
)

func TestRequestID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		incoming string
		wantSame bool
	}{
		{name: "generates id when absent", incoming: ""},
		{name: "preserves upstream id", incoming: "existing-request-id-12345", wantSame: true},
		{name: "replaces oversized id", incoming: strings.Repeat("x", maxRequestIDLen+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var ctxID, correlationID string
			handler := RequestID(func(w http.ResponseWriter, r *http.Request) {
				ctxID = GetRequestID(r.Context())
				correlationID = logging.CorrelationIDFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			rec := httptest.NewRecorder()
			handler(rec, req)

			got := rec.Header().Get(RequestIDHeader)
			if tt.wantSame {
				if got != tt.incoming {
					t.Errorf("header = %q, want %q", got, tt.incoming)
				}
			} else if _, err := uuid.Parse(got); err != nil {
				t.Errorf("header %q is not a UUID: %v", got, err)
			}
			if ctxID != got {
				t.Errorf("context id = %q, header = %q", ctxID, got)
			}
			if correlationID != got {
				t.Errorf("correlation id = %q, want %q", correlationID, got)
			}
		})
	}
}

func TestGetRequestID_Empty(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if id := GetRequestID(req.Context()); id != "" {
		t.Errorf("GetRequestID() = %q, want empty", id)
	}
}
