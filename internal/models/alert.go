// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package models

// AlertKind classifies a local alert.
type AlertKind string

const AlertLowBattery AlertKind = "low_battery"

// Alert is a local, on-device notification.
type Alert struct {
	Kind    AlertKind `json:"kind"`
	Message string    `json:"message"`
	Battery int       `json:"battery_percent,omitempty"`
}
