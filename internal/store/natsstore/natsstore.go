// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package natsstore implements store.Store on NATS JetStream: key-value
// buckets for playlists, device documents and ping requests, and a
// stream for the analytics log.
package natsstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/tomtom215/marquee/internal/config"
	"github.com/tomtom215/marquee/internal/logging"
	"github.com/tomtom215/marquee/internal/models"
	"github.com/tomtom215/marquee/internal/store"
)

// completeRetries bounds optimistic-concurrency retries on ping updates.
const completeRetries = 3

// EventPublisher appends analytics events to the stream.
type EventPublisher interface {
	PublishJSON(ctx context.Context, topic, id string, v interface{}, meta map[string]string) error
	Close() error
}

// Config names the buckets and subject prefix.
type Config struct {
	PlaylistBucket   string
	DeviceBucket     string
	PingBucket       string
	AnalyticsSubject string
}

// ConfigFrom maps the agent configuration.
func ConfigFrom(cfg *config.NATSConfig) Config {
	return Config{
		PlaylistBucket:   cfg.PlaylistBucket,
		DeviceBucket:     cfg.DeviceBucket,
		PingBucket:       cfg.PingBucket,
		AnalyticsSubject: cfg.AnalyticsSubject,
	}
}

// Store is a store.Store backed by JetStream.
type Store struct {
	playlists jetstream.KeyValue
	devices   jetstream.KeyValue
	pings     jetstream.KeyValue
	publisher EventPublisher
	subject   string
	now       func() time.Time
	log       zerolog.Logger

	mu     sync.Mutex
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

var _ store.Store = (*Store)(nil)

// New opens (creating when missing) the three buckets. The analytics
// stream must already exist; see eventbus.StreamInitializer.
func New(ctx context.Context, js jetstream.JetStream, pub EventPublisher, cfg Config) (*Store, error) {
	if js == nil || pub == nil {
		return nil, errors.New("natsstore: JetStream and publisher required")
	}
	open := func(bucket, desc string, history uint8) (jetstream.KeyValue, error) {
		kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      bucket,
			Description: desc,
			History:     history,
			Storage:     jetstream.FileStorage,
		})
		if err != nil {
			return nil, fmt.Errorf("open bucket %s: %w", bucket, err)
		}
		return kv, nil
	}

	playlists, err := open(cfg.PlaylistBucket, "display playlists", 1)
	if err != nil {
		return nil, err
	}
	devices, err := open(cfg.DeviceBucket, "device records and status", 1)
	if err != nil {
		return nil, err
	}
	pings, err := open(cfg.PingBucket, "remote ping requests", 2)
	if err != nil {
		return nil, err
	}

	return &Store{
		playlists: playlists,
		devices:   devices,
		pings:     pings,
		publisher: pub,
		subject:   cfg.AnalyticsSubject,
		now:       time.Now,
		log:       logging.WithComponent("natsstore"),
		done:      make(chan struct{}),
	}, nil
}

// WatchPlaylist implements store.Store.
func (s *Store) WatchPlaylist(ctx context.Context, displayID string) (<-chan []models.PlaylistItem, error) {
	if err := checkToken("display id", displayID); err != nil {
		return nil, err
	}
	feed := store.NewFeed[[]models.PlaylistItem]()
	watcher, err := s.startWatch(ctx, s.playlists, displayFilter(displayID))
	if err != nil {
		return nil, err
	}
	out := feed.Subscribe(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer feed.Close()
		defer func() { _ = watcher.Stop() }()

		state := newPlaylistState()
		initial := true
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case entry, ok := <-watcher.Updates():
				if !ok {
					return
				}
				if entry == nil {
					initial = false
					feed.Publish(state.snapshot())
					continue
				}
				changed, err := state.apply(entry.Key(), entry.Operation(), entry.Value())
				if err != nil {
					s.log.Warn().Err(err).Str("display_id", displayID).Msg("Dropping undecodable playlist item")
				}
				if changed && !initial {
					feed.Publish(state.snapshot())
				}
			}
		}
	}()
	return out, nil
}

// WatchDevice implements store.Store.
func (s *Store) WatchDevice(ctx context.Context, displayID string) (<-chan models.DeviceRecord, error) {
	if err := checkToken("display id", displayID); err != nil {
		return nil, err
	}
	feed := store.NewFeed[models.DeviceRecord]()
	watcher, err := s.startWatch(ctx, s.devices, recordKey(displayID))
	if err != nil {
		return nil, err
	}
	out := feed.Subscribe(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer feed.Close()
		defer func() { _ = watcher.Stop() }()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case entry, ok := <-watcher.Updates():
				if !ok {
					return
				}
				if entry == nil || entry.Operation() != jetstream.KeyValuePut {
					continue
				}
				var rec models.DeviceRecord
				if err := json.Unmarshal(entry.Value(), &rec); err != nil {
					s.log.Warn().Err(err).Str("display_id", displayID).Msg("Dropping undecodable device record")
					continue
				}
				feed.Publish(rec)
			}
		}
	}()
	return out, nil
}

func (s *Store) startWatch(ctx context.Context, kv jetstream.KeyValue, keys string) (jetstream.KeyWatcher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, store.ErrClosed
	}
	w, err := kv.Watch(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("watch %s/%s: %w", kv.Bucket(), keys, err)
	}
	return w, nil
}

// AppendEvent implements store.Store. The event id doubles as the JetStream
// message id, so a retried publish inside the duplicate window is stored
// once.
func (s *Store) AppendEvent(ctx context.Context, ev models.AnalyticsEvent) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	meta := map[string]string{
		"display_id": ev.DisplayID,
		"kind":       string(ev.Kind),
	}
	if err := s.publisher.PublishJSON(ctx, eventSubject(s.subject, ev), ev.ID, ev, meta); err != nil {
		return fmt.Errorf("append %s event: %w", ev.Kind, err)
	}
	return nil
}

// UpsertDeviceStatus implements store.Store. Status lives under its own
// key so the operator-owned record is never overwritten.
func (s *Store) UpsertDeviceStatus(ctx context.Context, st models.DeviceStatus) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := checkToken("display id", st.DisplayID); err != nil {
		return err
	}
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal device status: %w", err)
	}
	if _, err := s.devices.Put(ctx, statusKey(st.DisplayID), data); err != nil {
		return fmt.Errorf("put device status: %w", err)
	}
	return nil
}

// PendingPings implements store.Store.
func (s *Store) PendingPings(ctx context.Context, displayID string) ([]models.PingRequest, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := checkToken("display id", displayID); err != nil {
		return nil, err
	}
	lister, err := s.pings.ListKeysFiltered(ctx, displayFilter(displayID))
	if err != nil {
		return nil, fmt.Errorf("list pings: %w", err)
	}
	defer func() { _ = lister.Stop() }()

	var out []models.PingRequest
	for key := range lister.Keys() {
		entry, err := s.pings.Get(ctx, key)
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get ping %s: %w", key, err)
		}
		var req models.PingRequest
		if err := json.Unmarshal(entry.Value(), &req); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("Skipping undecodable ping request")
			continue
		}
		if req.Status == models.PingPending {
			out = append(out, req)
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

// CompletePing implements store.Store. The update is a compare-and-set on
// the entry revision; a concurrent writer causes a re-read and retry.
func (s *Store) CompletePing(ctx context.Context, displayID, requestID string, resp models.PingResponse) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	key := pingKey(displayID, requestID)

	var lastErr error
	for attempt := 0; attempt < completeRetries; attempt++ {
		entry, err := s.pings.Get(ctx, key)
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return fmt.Errorf("ping %s: %w", key, store.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("get ping %s: %w", key, err)
		}
		var req models.PingRequest
		if err := json.Unmarshal(entry.Value(), &req); err != nil {
			return fmt.Errorf("decode ping %s: %w", key, err)
		}
		req.Status = models.PingCompleted
		r := resp
		req.Response = &r

		data, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("marshal ping %s: %w", key, err)
		}
		_, err = s.pings.Update(ctx, key, data, entry.Revision())
		if err == nil {
			return nil
		}
		lastErr = err
		if !errors.Is(err, jetstream.ErrKeyExists) {
			break
		}
	}
	return fmt.Errorf("complete ping %s: %w", key, lastErr)
}

// Close stops every watch and closes the publisher.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	s.wg.Wait()
	return s.publisher.Close()
}

func (s *Store) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	return nil
}

// PutPlaylistItem writes one playlist item. Operator tools and the
// seeding command use it; the engine only reads playlists.
func (s *Store) PutPlaylistItem(ctx context.Context, displayID string, item models.PlaylistItem) error {
	if err := checkToken("display id", displayID); err != nil {
		return err
	}
	if err := checkToken("item id", item.ID); err != nil {
		return err
	}
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal playlist item: %w", err)
	}
	if _, err := s.playlists.Put(ctx, itemKey(displayID, item.ID), data); err != nil {
		return fmt.Errorf("put playlist item: %w", err)
	}
	return nil
}

// DeletePlaylistItem removes one playlist item.
func (s *Store) DeletePlaylistItem(ctx context.Context, displayID, itemID string) error {
	if err := s.playlists.Delete(ctx, itemKey(displayID, itemID)); err != nil {
		return fmt.Errorf("delete playlist item: %w", err)
	}
	return nil
}

// PutDevice writes the operator-owned device record.
func (s *Store) PutDevice(ctx context.Context, rec models.DeviceRecord) error {
	if err := checkToken("display id", rec.DisplayID); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal device record: %w", err)
	}
	if _, err := s.devices.Put(ctx, recordKey(rec.DisplayID), data); err != nil {
		return fmt.Errorf("put device record: %w", err)
	}
	return nil
}

// RequestPing creates a pending ping request and returns its id.
func (s *Store) RequestPing(ctx context.Context, displayID string) (string, error) {
	if err := checkToken("display id", displayID); err != nil {
		return "", err
	}
	req := models.PingRequest{
		ID:          uuid.NewString(),
		DisplayID:   displayID,
		Status:      models.PingPending,
		RequestedAt: s.now().UTC(),
	}
	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal ping request: %w", err)
	}
	if _, err := s.pings.Create(ctx, pingKey(displayID, req.ID), data); err != nil {
		return "", fmt.Errorf("create ping request: %w", err)
	}
	return req.ID, nil
}

// Ping reads one ping request.
func (s *Store) Ping(ctx context.Context, displayID, requestID string) (models.PingRequest, error) {
	entry, err := s.pings.Get(ctx, pingKey(displayID, requestID))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return models.PingRequest{}, store.ErrNotFound
	}
	if err != nil {
		return models.PingRequest{}, fmt.Errorf("get ping: %w", err)
	}
	var req models.PingRequest
	if err := json.Unmarshal(entry.Value(), &req); err != nil {
		return models.PingRequest{}, fmt.Errorf("decode ping: %w", err)
	}
	return req, nil
}

// DeviceStatus reads the agent-owned status document.
func (s *Store) DeviceStatus(ctx context.Context, displayID string) (models.DeviceStatus, error) {
	entry, err := s.devices.Get(ctx, statusKey(displayID))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return models.DeviceStatus{}, store.ErrNotFound
	}
	if err != nil {
		return models.DeviceStatus{}, fmt.Errorf("get device status: %w", err)
	}
	var st models.DeviceStatus
	if err := json.Unmarshal(entry.Value(), &st); err != nil {
		return models.DeviceStatus{}, fmt.Errorf("decode device status: %w", err)
	}
	return st, nil
}
