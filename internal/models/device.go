// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package models

import "time"

// Location is a best-effort device position.
type Location struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	AccuracyM float64 `json:"accuracy_m"`
	Address   string  `json:"address,omitempty"`
}

// DeviceSample is one reading of the device health sampler. Each sample
// supersedes the previous one.
type DeviceSample struct {
	BatteryPercent   int       `json:"battery_percent"`
	Charging         bool      `json:"charging"`
	BatterySimulated bool      `json:"battery_simulated,omitempty"`
	NetworkKind      string    `json:"network_kind"`
	NetworkMbps      float64   `json:"network_mbps"`
	NetworkSimulated bool      `json:"network_simulated,omitempty"`
	PingMs           int64     `json:"ping_ms"`
	Online           bool      `json:"online"`
	Location         *Location `json:"location,omitempty"`
	DataUsageMB      float64   `json:"data_usage_mb"`
	SampledAt        time.Time `json:"sampled_at"`
}

// PingFailed is the PingMs value of a probe that timed out or failed.
const PingFailed int64 = -1

// DeviceRecord is the operator-owned part of a display's record.
type DeviceRecord struct {
	DisplayID string `json:"display_id"`
	OwnerID   string `json:"owner_id"`
	Name      string `json:"name,omitempty"`
}

// NowPlaying describes the item on screen.
type NowPlaying struct {
	ItemID  string    `json:"item_id"`
	Index   int       `json:"index"`
	State   string    `json:"state"`
	Since   time.Time `json:"since"`
	Attempt int       `json:"attempt,omitempty"`
}

// DeviceStatus is the agent-owned part of a display's record. It is
// upserted separately from DeviceRecord so status pushes never overwrite
// operator assignments.
type DeviceStatus struct {
	DisplayID   string        `json:"display_id"`
	SessionID   string        `json:"session_id"`
	Sample      *DeviceSample `json:"sample,omitempty"`
	NowPlaying  *NowPlaying   `json:"now_playing,omitempty"`
	KioskActive bool          `json:"kiosk_active"`
	LastSeen    time.Time     `json:"last_seen"`
}
