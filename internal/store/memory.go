// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/marquee/internal/models"
)

// Op names a Memory operation for error injection.
type Op string

const (
	OpAppend   Op = "append"
	OpStatus   Op = "status"
	OpPending  Op = "pending"
	OpComplete Op = "complete"
)

// Memory is an in-process Store. Besides the engine-facing Store methods
// it exposes the operator-side writes (playlist edits, device assignment,
// ping requests) so a single process can run a self-contained demo and
// tests can drive the engine end to end.
type Memory struct {
	mu        sync.Mutex
	closed    bool
	playlists map[string][]models.PlaylistItem
	plFeeds   map[string]*Feed[[]models.PlaylistItem]
	devices   map[string]models.DeviceRecord
	devFeeds  map[string]*Feed[models.DeviceRecord]
	statuses  map[string]models.DeviceStatus
	pings     map[string]map[string]*models.PingRequest
	events    []models.AnalyticsEvent
	failures  map[Op]error
	now       func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		playlists: make(map[string][]models.PlaylistItem),
		plFeeds:   make(map[string]*Feed[[]models.PlaylistItem]),
		devices:   make(map[string]models.DeviceRecord),
		devFeeds:  make(map[string]*Feed[models.DeviceRecord]),
		statuses:  make(map[string]models.DeviceStatus),
		pings:     make(map[string]map[string]*models.PingRequest),
		failures:  make(map[Op]error),
		now:       time.Now,
	}
}

var _ Store = (*Memory)(nil)

// WatchPlaylist implements Store.
func (m *Memory) WatchPlaylist(ctx context.Context, displayID string) (<-chan []models.PlaylistItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	return m.playlistFeed(displayID).Subscribe(ctx), nil
}

// WatchDevice implements Store.
func (m *Memory) WatchDevice(ctx context.Context, displayID string) (<-chan models.DeviceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	return m.deviceFeed(displayID).Subscribe(ctx), nil
}

// AppendEvent implements Store.
func (m *Memory) AppendEvent(_ context.Context, ev models.AnalyticsEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(OpAppend); err != nil {
		return err
	}
	m.events = append(m.events, ev)
	return nil
}

// UpsertDeviceStatus implements Store.
func (m *Memory) UpsertDeviceStatus(_ context.Context, st models.DeviceStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(OpStatus); err != nil {
		return err
	}
	m.statuses[st.DisplayID] = st
	return nil
}

// PendingPings implements Store.
func (m *Memory) PendingPings(_ context.Context, displayID string) ([]models.PingRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(OpPending); err != nil {
		return nil, err
	}
	var out []models.PingRequest
	for _, p := range m.pings[displayID] {
		if p.Status == models.PingPending {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].RequestedAt.Before(out[j].RequestedAt)
	})
	return out, nil
}

// CompletePing implements Store.
func (m *Memory) CompletePing(_ context.Context, displayID, requestID string, resp models.PingResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(OpComplete); err != nil {
		return err
	}
	p, ok := m.pings[displayID][requestID]
	if !ok {
		return fmt.Errorf("ping %s/%s: %w", displayID, requestID, ErrNotFound)
	}
	p.Status = models.PingCompleted
	r := resp
	p.Response = &r
	return nil
}

// Close implements Store. Open subscriptions are closed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for _, f := range m.plFeeds {
		f.Close()
	}
	for _, f := range m.devFeeds {
		f.Close()
	}
	return nil
}

// SetPlaylist replaces the display's playlist and notifies watchers.
func (m *Memory) SetPlaylist(displayID string, items []models.PlaylistItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := models.SortPlaylist(items)
	m.playlists[displayID] = snap
	m.playlistFeed(displayID).Publish(models.SortPlaylist(snap))
}

// Playlist returns the display's current playlist.
func (m *Memory) Playlist(displayID string) []models.PlaylistItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return models.SortPlaylist(m.playlists[displayID])
}

// PutDevice writes the operator-owned device record and notifies
// watchers.
func (m *Memory) PutDevice(rec models.DeviceRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[rec.DisplayID] = rec
	m.deviceFeed(rec.DisplayID).Publish(rec)
}

// RequestPing creates a pending ping request and returns its id.
func (m *Memory) RequestPing(displayID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	if m.pings[displayID] == nil {
		m.pings[displayID] = make(map[string]*models.PingRequest)
	}
	m.pings[displayID][id] = &models.PingRequest{
		ID:          id,
		DisplayID:   displayID,
		Status:      models.PingPending,
		RequestedAt: m.now(),
	}
	return id
}

// Ping returns a copy of a ping request.
func (m *Memory) Ping(displayID, requestID string) (models.PingRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pings[displayID][requestID]
	if !ok {
		return models.PingRequest{}, false
	}
	return *p, true
}

// Events returns a copy of the analytics log.
func (m *Memory) Events() []models.AnalyticsEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.AnalyticsEvent, len(m.events))
	copy(out, m.events)
	return out
}

// DeviceStatus returns the last status written for displayID.
func (m *Memory) DeviceStatus(displayID string) (models.DeviceStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.statuses[displayID]
	return st, ok
}

// Device returns the operator-owned record for displayID.
func (m *Memory) Device(displayID string) (models.DeviceRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.devices[displayID]
	return rec, ok
}

// InjectError makes op fail with err until cleared with a nil err.
func (m *Memory) InjectError(op Op, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

func (m *Memory) check(op Op) error {
	if m.closed {
		return ErrClosed
	}
	return m.failures[op]
}

func (m *Memory) playlistFeed(displayID string) *Feed[[]models.PlaylistItem] {
	f, ok := m.plFeeds[displayID]
	if !ok {
		f = NewFeed[[]models.PlaylistItem]()
		f.Publish(nil)
		m.plFeeds[displayID] = f
	}
	return f
}

func (m *Memory) deviceFeed(displayID string) *Feed[models.DeviceRecord] {
	f, ok := m.devFeeds[displayID]
	if !ok {
		f = NewFeed[models.DeviceRecord]()
		if rec, exists := m.devices[displayID]; exists {
			f.Publish(rec)
		}
		m.devFeeds[displayID] = f
	}
	return f
}
