// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/marquee/internal/kiosk"
	"github.com/tomtom215/marquee/internal/logging"
)

// EnterResponse carries the exit code. It is returned exactly once, to
// the operator who started the lockdown.
type EnterResponse struct {
	ExitCode string `json:"exit_code"`
}

// ExitRequest is the body of POST /v1/kiosk/exit.
type ExitRequest struct {
	Code string `json:"code" validate:"required,exitcode"`
}

// KioskEnter starts lockdown.
func (h *Handler) KioskEnter(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.kiosk == nil {
		rw.Fail(http.StatusServiceUnavailable, "Kiosk mode unavailable")
		return
	}

	code, err := h.kiosk.Enter(r.Context())
	switch {
	case errors.Is(err, kiosk.ErrAlreadyActive):
		rw.Fail(http.StatusConflict, "Kiosk lockdown already active")
		return
	case err != nil:
		logging.Ctx(r.Context()).Error().Err(err).Msg("Kiosk enter failed")
		rw.Fail(http.StatusInternalServerError, "Failed to enter kiosk mode")
		return
	}

	rw.Created(EnterResponse{ExitCode: code})
}

// KioskExit ends lockdown when the code matches.
func (h *Handler) KioskExit(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.kiosk == nil {
		rw.Fail(http.StatusServiceUnavailable, "Kiosk mode unavailable")
		return
	}

	var req ExitRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := h.kiosk.Exit(r.Context(), req.Code)
	switch {
	case errors.Is(err, kiosk.ErrExitCodeMismatch):
		rw.Fail(http.StatusForbidden, "Exit code does not match")
		return
	case errors.Is(err, kiosk.ErrNotActive):
		rw.Fail(http.StatusConflict, "Kiosk lockdown not active")
		return
	case err != nil:
		logging.Ctx(r.Context()).Error().Err(err).Msg("Kiosk exit failed")
		rw.Fail(http.StatusInternalServerError, "Failed to exit kiosk mode")
		return
	}

	rw.Success(h.kiosk.Policy())
}

// KioskPolicy returns the lockdown policy in force.
func (h *Handler) KioskPolicy(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.kiosk == nil {
		rw.Fail(http.StatusServiceUnavailable, "Kiosk mode unavailable")
		return
	}
	rw.Success(h.kiosk.Policy())
}
