// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/marquee/internal/clock"
	"github.com/tomtom215/marquee/internal/kiosk"
	"github.com/tomtom215/marquee/internal/models"
	"github.com/tomtom215/marquee/internal/session"
	"github.com/tomtom215/marquee/internal/validation"
	ws "github.com/tomtom215/marquee/internal/websocket"
)

// maxBodyBytes bounds request bodies. Every body this API accepts is a
// single short field.
const maxBodyBytes = 4 << 10

// Kiosk is the lockdown surface the API drives.
type Kiosk interface {
	Enter(ctx context.Context) (string, error)
	Exit(ctx context.Context, code string) error
	Active() bool
	Policy() kiosk.Policy
}

// Playback is the rotation surface the API drives.
type Playback interface {
	NowPlaying() *models.NowPlaying
	Click(itemID string) error
}

// Samples exposes the latest device health sample.
type Samples interface {
	Latest() (models.DeviceSample, bool)
}

// Deps wires the handler to the running engine. Any field may be nil;
// the endpoints that need it then answer 503.
type Deps struct {
	Session  *session.Session
	Kiosk    Kiosk
	Playback Playback
	Samples  Samples
	Hub      *ws.Hub
	Clock    clock.Clock
}

// Handler serves the local API.
type Handler struct {
	sess     *session.Session
	kiosk    Kiosk
	playback Playback
	samples  Samples
	hub      *ws.Hub
	clk      clock.Clock
	origins  originPolicy
}

// NewHandler creates a handler. allowedOrigins extends the same-host and
// loopback origins accepted for browser callers.
func NewHandler(deps Deps, allowedOrigins []string) *Handler {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &Handler{
		sess:     deps.Session,
		kiosk:    deps.Kiosk,
		playback: deps.Playback,
		samples:  deps.Samples,
		hub:      deps.Hub,
		clk:      clk,
		origins:  newOriginPolicy(allowedOrigins),
	}
}

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Healthz reports liveness. It answers as long as the process serves
// HTTP.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if h.sess != nil {
		resp.UptimeSeconds = h.sess.Elapsed(h.clk.Now()).Seconds()
	}
	NewResponseWriter(w, r).Success(resp)
}

// StatusResponse is the device status payload.
type StatusResponse struct {
	DisplayID   string               `json:"display_id"`
	OwnerID     string               `json:"owner_id,omitempty"`
	SessionID   string               `json:"session_id"`
	StartedAt   time.Time            `json:"started_at"`
	Sample      *models.DeviceSample `json:"sample,omitempty"`
	NowPlaying  *models.NowPlaying   `json:"now_playing,omitempty"`
	KioskActive bool                 `json:"kiosk_active"`
	Renderers   int                  `json:"renderers"`
}

// Status returns the latest sample, the item on screen and the lockdown
// state.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	if h.sess == nil {
		NewResponseWriter(w, r).Fail(http.StatusServiceUnavailable, "Session not started")
		return
	}

	resp := StatusResponse{
		DisplayID: h.sess.DisplayID(),
		OwnerID:   h.sess.OwnerID(),
		SessionID: h.sess.ID(),
		StartedAt: h.sess.StartedAt(),
	}
	if h.samples != nil {
		if s, ok := h.samples.Latest(); ok {
			resp.Sample = &s
		}
	}
	if h.playback != nil {
		resp.NowPlaying = h.playback.NowPlaying()
	}
	if h.kiosk != nil {
		resp.KioskActive = h.kiosk.Active()
	}
	if h.hub != nil {
		resp.Renderers = h.hub.ClientCount()
	}

	NewResponseWriter(w, r).Success(resp)
}

// decodeBody decodes a bounded JSON body into dst and validates it. It
// writes the error response itself and reports whether decoding
// succeeded.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	rw := NewResponseWriter(w, r)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			rw.Fail(http.StatusBadRequest, "Request body too large")
			return false
		}
		rw.Fail(http.StatusBadRequest, "Failed to read request body")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		rw.Fail(http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	if err := validation.ValidateStruct(dst); err != nil {
		var verr *validation.Error
		if errors.As(err, &verr) {
			rw.ValidationError("Request validation failed", verr.Fields)
			return false
		}
		rw.Fail(http.StatusBadRequest, err.Error())
		return false
	}
	return true
}
