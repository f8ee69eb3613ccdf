// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package kiosk implements the lockdown state machine for unattended
// displays: a locally persisted exit code, forced fullscreen and a set of
// input restrictions that hold until the exact code is supplied.
package kiosk

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/marquee/internal/config"
)

// Persisted keys in local durable storage.
const (
	KeyActive   = "kioskModeActive"
	KeyExitCode = "kioskExitCode"
)

var (
	// ErrExitCodeMismatch is returned by Exit when the code is wrong.
	// Lockdown is unchanged.
	ErrExitCodeMismatch = errors.New("kiosk: exit code mismatch")

	// ErrNotActive is returned by Exit when lockdown is not active.
	ErrNotActive = errors.New("kiosk: lockdown not active")

	// ErrAlreadyActive is returned by Enter while locked. The running
	// code is never handed out a second time.
	ErrAlreadyActive = errors.New("kiosk: lockdown already active")
)

// Restriction is one independently applied input restriction.
type Restriction string

const (
	// RestrictKeys suppresses the deny-listed key combinations at the
	// capture phase.
	RestrictKeys Restriction = "keys"
	// RestrictContextMenu suppresses the context menu.
	RestrictContextMenu Restriction = "context_menu"
	// RestrictZoom suppresses pinch and scroll zoom and hides
	// scrollbars.
	RestrictZoom Restriction = "zoom"
)

// Restrictions lists every restriction applied on entry and on resume.
var Restrictions = []Restriction{RestrictKeys, RestrictContextMenu, RestrictZoom}

// Host is the platform lockdown surface.
type Host interface {
	RequestFullscreen(ctx context.Context) error
	ExitFullscreen(ctx context.Context) error
	SetPointerVisible(visible bool)
	SetRestriction(r Restriction, enabled bool)
}

// Policy is what the renderer needs to enforce lockdown in the page.
type Policy struct {
	Active              bool     `json:"active"`
	FullscreenPending   bool     `json:"fullscreen_pending"`
	DeniedKeys          []string `json:"denied_keys,omitempty"`
	SuppressContextMenu bool     `json:"suppress_context_menu"`
	SuppressZoom        bool     `json:"suppress_zoom"`
	HideScrollbars      bool     `json:"hide_scrollbars"`
	PointerHideDelayMs  int64    `json:"pointer_hide_delay_ms,omitempty"`
}

// Config tunes the manager.
type Config struct {
	PointerHideDelay     time.Duration
	FullscreenRetryDelay time.Duration
	MaxFullscreenBackoff time.Duration
}

// ConfigFrom maps the agent configuration.
func ConfigFrom(cfg *config.KioskConfig) Config {
	return Config{
		PointerHideDelay:     cfg.PointerHideDelay,
		FullscreenRetryDelay: cfg.FullscreenRetryDelay,
	}
}
