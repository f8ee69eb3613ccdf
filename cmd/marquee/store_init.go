// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/marquee/internal/config"
	"github.com/tomtom215/marquee/internal/eventbus"
	"github.com/tomtom215/marquee/internal/localstore"
	"github.com/tomtom215/marquee/internal/logging"
	"github.com/tomtom215/marquee/internal/store"
	"github.com/tomtom215/marquee/internal/store/natsstore"
)

// sharedStore is the opened shared store plus whatever it runs on.
type sharedStore struct {
	store.Store
	server *eventbus.EmbeddedServer
	close  []func()
}

// shutdown releases everything in reverse order of acquisition.
func (s *sharedStore) shutdown(timeout time.Duration) {
	if err := s.Store.Close(); err != nil {
		logging.Warn().Err(err).Msg("Error closing shared store")
	}
	for i := len(s.close) - 1; i >= 0; i-- {
		s.close[i]()
	}
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			logging.Warn().Err(err).Msg("Embedded NATS server did not stop cleanly")
		}
	}
}

// openLocalStore opens badger at the configured path, or an in-memory KV.
func openLocalStore(cfg *config.LocalStoreConfig) (localstore.KV, *localstore.Badger, error) {
	if cfg.Path == "" {
		logging.Warn().Msg("Local store path not set, kiosk state will not survive restarts")
		return localstore.NewMemory(), nil, nil
	}
	b, err := localstore.OpenBadger(cfg.Path)
	if err != nil {
		return nil, nil, err
	}
	return b, b, nil
}

// openSharedStore opens the backend selected by cfg.Store.Backend.
func openSharedStore(ctx context.Context, cfg *config.Config) (*sharedStore, error) {
	switch cfg.Store.Backend {
	case "memory":
		logging.Warn().Msg("Using in-process memory store, nothing is shared with operators")
		return &sharedStore{Store: store.NewMemory()}, nil
	case "nats":
		return openNATSStore(ctx, &cfg.NATS)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func openNATSStore(ctx context.Context, cfg *config.NATSConfig) (_ *sharedStore, err error) {
	s := &sharedStore{}
	defer func() {
		if err != nil {
			for i := len(s.close) - 1; i >= 0; i-- {
				s.close[i]()
			}
			if s.server != nil {
				_ = s.server.Shutdown(context.Background())
			}
		}
	}()

	url := ""
	if cfg.EmbeddedServer {
		srv, err := eventbus.NewEmbeddedServer(eventbus.ServerConfigFrom(cfg))
		if err != nil {
			return nil, err
		}
		s.server = srv
		url = srv.ClientURL()
		logging.Info().Str("url", url).Msg("Embedded NATS server started")
	}

	nc, err := eventbus.Connect(eventbus.ConnConfigFrom(cfg, "marquee-store", url))
	if err != nil {
		return nil, err
	}
	s.close = append(s.close, nc.Close)

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	initializer, err := eventbus.NewStreamInitializer(js, eventbus.AnalyticsStreamConfig(cfg))
	if err != nil {
		return nil, err
	}
	if _, err := initializer.EnsureStream(ctx); err != nil {
		return nil, err
	}

	pub, err := eventbus.NewPublisher(
		eventbus.ConnConfigFrom(cfg, "marquee-analytics", url),
		eventbus.PublishBreakerConfig(cfg),
		eventbus.NewWatermillLogger(),
	)
	if err != nil {
		return nil, err
	}

	ns, err := natsstore.New(ctx, js, pub, natsstore.ConfigFrom(cfg))
	if err != nil {
		if cerr := pub.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		return nil, err
	}
	s.Store = ns
	return s, nil
}
