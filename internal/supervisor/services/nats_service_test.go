// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

type fakeNATSServer struct {
	running atomic.Bool
}

func (f *fakeNATSServer) IsRunning() bool   { return f.running.Load() }
func (f *fakeNATSServer) ClientURL() string { return "nats://127.0.0.1:4222" }

func TestNATSServerService(t *testing.T) {
	t.Parallel()

	var _ suture.Service = (*NATSServerService)(nil)

	t.Run("default interval", func(t *testing.T) {
		t.Parallel()
		if svc := NewNATSServerService(&fakeNATSServer{}, 0); svc.interval != 5*time.Second {
			t.Errorf("interval = %v, want 5s", svc.interval)
		}
	})

	t.Run("returns on shutdown while healthy", func(t *testing.T) {
		t.Parallel()

		srv := &fakeNATSServer{}
		srv.running.Store(true)
		svc := NewNATSServerService(srv, 5*time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Serve() = %v, want deadline exceeded", err)
		}
	})

	t.Run("dead server ends the tree", func(t *testing.T) {
		t.Parallel()

		srv := &fakeNATSServer{}
		svc := NewNATSServerService(srv, 5*time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := svc.Serve(ctx); !errors.Is(err, suture.ErrTerminateSupervisorTree) {
			t.Errorf("Serve() = %v, want ErrTerminateSupervisorTree", err)
		}
	})
}
