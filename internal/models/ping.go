// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package models

import "time"

// PingStatus is the lifecycle of a remote health-check request.
type PingStatus string

const (
	PingPending   PingStatus = "pending"
	PingCompleted PingStatus = "completed"
)

// PingRequest is a health-check request created by an operator tool and
// completed in place by the display it addresses.
type PingRequest struct {
	ID          string        `json:"id"`
	DisplayID   string        `json:"display_id"`
	Status      PingStatus    `json:"status"`
	RequestedAt time.Time     `json:"requested_at"`
	Response    *PingResponse `json:"response,omitempty"`
}

// PingResponse is the payload written when a request is completed.
// Writing it twice is harmless.
type PingResponse struct {
	OwnerID     string        `json:"owner_id"`
	SessionID   string        `json:"session_id"`
	Sample      *DeviceSample `json:"sample,omitempty"`
	RespondedAt time.Time     `json:"responded_at"`
}
