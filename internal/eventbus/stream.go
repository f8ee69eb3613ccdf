// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package eventbus

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// JetStreamContext is the subset of jetstream.JetStream used to provision
// streams.
type JetStreamContext interface {
	Stream(ctx context.Context, name string) (jetstream.Stream, error)
	CreateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	UpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
}

// StreamInitializer creates or updates a stream before publishers start.
type StreamInitializer struct {
	js     JetStreamContext
	config StreamConfig
}

// NewStreamInitializer validates its arguments.
func NewStreamInitializer(js JetStreamContext, cfg StreamConfig) (*StreamInitializer, error) {
	if js == nil {
		return nil, errors.New("JetStream context required")
	}
	if cfg.Name == "" || len(cfg.Subjects) == 0 {
		return nil, errors.New("stream name and subjects required")
	}
	return &StreamInitializer{js: js, config: cfg}, nil
}

// StreamConfig returns the JetStream configuration that EnsureStream
// applies. Analytics are an append-only log: file storage, limits
// retention, oldest discarded first.
func (s *StreamInitializer) StreamConfig() jetstream.StreamConfig {
	replicas := s.config.Replicas
	if replicas == 0 {
		replicas = 1
	}
	return jetstream.StreamConfig{
		Name:        s.config.Name,
		Subjects:    s.config.Subjects,
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      s.config.MaxAge,
		MaxBytes:    s.config.MaxBytes,
		Duplicates:  s.config.DuplicateWindow,
		Replicas:    replicas,
		Storage:     jetstream.FileStorage,
		Discard:     jetstream.DiscardOld,
		AllowDirect: true,
	}
}

// EnsureStream is idempotent.
func (s *StreamInitializer) EnsureStream(ctx context.Context) (jetstream.Stream, error) {
	cfg := s.StreamConfig()

	_, err := s.js.Stream(ctx, cfg.Name)
	if err == nil {
		stream, err := s.js.UpdateStream(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("update stream %s: %w", cfg.Name, err)
		}
		return stream, nil
	}
	if errors.Is(err, jetstream.ErrStreamNotFound) {
		stream, err := s.js.CreateStream(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("create stream %s: %w", cfg.Name, err)
		}
		return stream, nil
	}
	return nil, fmt.Errorf("check stream %s: %w", cfg.Name, err)
}
