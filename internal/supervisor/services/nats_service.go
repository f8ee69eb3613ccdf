// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package services

import (
	"context"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/marquee/internal/logging"
)

// NATSServer is the embedded server surface the service watches.
type NATSServer interface {
	IsRunning() bool
	ClientURL() string
}

// NATSServerService watches the embedded NATS server. The server is
// started before the tree, since stores connect to it during startup, and
// shut down by its owner after the tree stops.
type NATSServerService struct {
	server   NATSServer
	interval time.Duration
	name     string
}

// NewNATSServerService checks server every interval. Zero falls back to
// 5s.
func NewNATSServerService(server NATSServer, interval time.Duration) *NATSServerService {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &NATSServerService{
		server:   server,
		interval: interval,
		name:     "nats-server",
	}
}

// Serve implements suture.Service. A dead server ends the whole tree: it
// cannot be restarted in place under live connections.
func (s *NATSServerService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !s.server.IsRunning() {
				logging.Error().Str("url", s.server.ClientURL()).Msg("Embedded NATS server stopped")
				return suture.ErrTerminateSupervisorTree
			}
		}
	}
}

// String implements fmt.Stringer for suture's logs.
func (s *NATSServerService) String() string {
	return s.name
}
