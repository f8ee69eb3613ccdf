// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package models

// KioskSession is the process-wide lockdown state. ExitCode never leaves
// local storage except to the operator who entered kiosk mode.
type KioskSession struct {
	Active            bool   `json:"active"`
	ExitCode          string `json:"-"`
	FullscreenPending bool   `json:"fullscreen_pending"`
}
