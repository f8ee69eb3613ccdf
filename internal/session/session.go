// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package session holds the identity of one running display session.
// It is constructed once by the entrypoint and handed to the components
// that stamp telemetry and ping responses.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/marquee/internal/models"
)

// Session identifies this run of the agent on a display.
type Session struct {
	displayID string
	id        string
	startedAt time.Time

	mu      sync.RWMutex
	ownerID string
}

// New starts a session with a fresh id.
func New(displayID, ownerID string, startedAt time.Time) *Session {
	return &Session{
		displayID: displayID,
		id:        uuid.NewString(),
		startedAt: startedAt,
		ownerID:   ownerID,
	}
}

// DisplayID returns the display this session runs on.
func (s *Session) DisplayID() string { return s.displayID }

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// StartedAt returns the session start time.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// Elapsed returns the session age at now.
func (s *Session) Elapsed(now time.Time) time.Duration {
	if now.Before(s.startedAt) {
		return 0
	}
	return now.Sub(s.startedAt)
}

// OwnerID returns the operator currently assigned to the display.
func (s *Session) OwnerID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ownerID
}

// SetOwnerID updates the operator assignment.
func (s *Session) SetOwnerID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ownerID = id
}

// Follow applies owner changes from a device record subscription until
// ctx is done or records is closed. A record with no owner unassigns the
// display.
func (s *Session) Follow(ctx context.Context, records <-chan models.DeviceRecord) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-records:
			if !ok {
				return
			}
			s.SetOwnerID(rec.OwnerID)
		}
	}
}
