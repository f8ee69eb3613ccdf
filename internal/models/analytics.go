// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package models

import "time"

// EventKind classifies an analytics event.
type EventKind string

const (
	EventView      EventKind = "view"
	EventClick     EventKind = "click"
	EventWatchTime EventKind = "watchTime"
)

// DateLayout is the layout of AnalyticsEvent.OccurredOn.
const DateLayout = "2006-01-02"

// AnalyticsEvent is an append-only telemetry record. One record is written
// per occurrence and never mutated.
type AnalyticsEvent struct {
	ID               string    `json:"id"`
	ItemID           string    `json:"item_id"`
	OwnerID          string    `json:"owner_id"`
	DisplayID        string    `json:"display_id"`
	SessionID        string    `json:"session_id"`
	Kind             EventKind `json:"kind"`
	OccurredOn       string    `json:"occurred_on"`
	OccurredAt       time.Time `json:"occurred_at"`
	Views            int       `json:"views,omitempty"`
	Impressions      int       `json:"impressions,omitempty"`
	Clicks           int       `json:"clicks,omitempty"`
	WatchTimeSeconds int64     `json:"watch_time_seconds,omitempty"`
	Geolocation      *Location `json:"geolocation,omitempty"`
}

// LocalDate formats t as a calendar day in t's location.
func LocalDate(t time.Time) string { return t.Format(DateLayout) }

// NewViewEvent returns a view event for itemID.
func NewViewEvent(itemID string) AnalyticsEvent {
	return AnalyticsEvent{ItemID: itemID, Kind: EventView, Views: 1, Impressions: 1}
}

// NewClickEvent returns a click event for itemID.
func NewClickEvent(itemID string) AnalyticsEvent {
	return AnalyticsEvent{ItemID: itemID, Kind: EventClick, Clicks: 1}
}

// NewWatchTimeEvent returns a watch-time event for itemID.
func NewWatchTimeEvent(itemID string, seconds int64) AnalyticsEvent {
	return AnalyticsEvent{ItemID: itemID, Kind: EventWatchTime, WatchTimeSeconds: seconds}
}
