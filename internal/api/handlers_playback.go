// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/marquee/internal/logging"
	"github.com/tomtom215/marquee/internal/playback"
)

// ClickRequest is the body of POST /v1/playback/click.
type ClickRequest struct {
	ItemID string `json:"item_id" validate:"required,max=256"`
}

// PlaybackClick forwards a call-to-action click on the item on screen.
func (h *Handler) PlaybackClick(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.playback == nil {
		rw.Fail(http.StatusServiceUnavailable, "Playback unavailable")
		return
	}

	var req ClickRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := h.playback.Click(req.ItemID)
	switch {
	case errors.Is(err, playback.ErrUnknownItem):
		rw.Fail(http.StatusConflict, "Item is not on screen")
		return
	case errors.Is(err, playback.ErrNoCallToAction):
		rw.Fail(http.StatusNotFound, "Item has no call to action")
		return
	case errors.Is(err, playback.ErrStopped):
		rw.Fail(http.StatusServiceUnavailable, "Playback stopped")
		return
	case err != nil:
		logging.Ctx(r.Context()).Error().Err(err).Msg("Click failed")
		rw.Fail(http.StatusInternalServerError, "Failed to record click")
		return
	}

	rw.Success(req)
}
