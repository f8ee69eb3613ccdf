// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package store defines the engine's view of the shared reactive document
// store: push-based playlist and device record subscriptions, an
// append-only analytics log, agent-owned device status and remote ping
// requests.
package store

import (
	"context"
	"errors"

	"github.com/tomtom215/marquee/internal/models"
)

// ErrNotFound is returned when a record addressed by id does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store: closed")

// Store is the shared store contract.
//
// Watch channels deliver the current value first and then every change as
// an immutable snapshot. A slow reader only ever sees the latest snapshot.
// Channels are closed when ctx is cancelled or the store closes, which is
// the explicit release of the subscription.
type Store interface {
	// WatchPlaylist streams the display's playlist sorted by order.
	WatchPlaylist(ctx context.Context, displayID string) (<-chan []models.PlaylistItem, error)

	// WatchDevice streams the operator-owned device record.
	WatchDevice(ctx context.Context, displayID string) (<-chan models.DeviceRecord, error)

	// AppendEvent durably appends one analytics event.
	AppendEvent(ctx context.Context, ev models.AnalyticsEvent) error

	// UpsertDeviceStatus writes the agent-owned status without touching
	// the operator-owned record.
	UpsertDeviceStatus(ctx context.Context, st models.DeviceStatus) error

	// PendingPings lists requests addressed to displayID with status
	// pending, oldest first.
	PendingPings(ctx context.Context, displayID string) ([]models.PingRequest, error)

	// CompletePing marks a request completed with resp. Completing an
	// already completed request overwrites the response.
	CompletePing(ctx context.Context, displayID, requestID string, resp models.PingResponse) error

	Close() error
}
