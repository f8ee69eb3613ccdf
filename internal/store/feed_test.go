// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package store

import (
	"context"
	"testing"
	"time"
)

func recv[T any](t *testing.T, ch <-chan T) (T, bool) {
	t.Helper()
	select {
	case v, ok := <-ch:
		return v, ok
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for feed value")
	}
	var zero T
	return zero, false
}

func TestFeedLatestWins(t *testing.T) {
	t.Parallel()
	f := NewFeed[int]()
	ch := f.Subscribe(context.Background())

	f.Publish(1)
	f.Publish(2)
	f.Publish(3)

	if v, _ := recv(t, ch); v != 3 {
		t.Errorf("got %d, want latest value 3", v)
	}
	select {
	case v := <-ch:
		t.Errorf("unexpected extra value %d", v)
	default:
	}
}

func TestFeedReplaysLastValue(t *testing.T) {
	t.Parallel()
	f := NewFeed[string]()
	f.Publish("a")

	ch := f.Subscribe(context.Background())
	if v, _ := recv(t, ch); v != "a" {
		t.Errorf("got %q, want replay of a", v)
	}
}

func TestFeedReleaseOnCancel(t *testing.T) {
	t.Parallel()
	f := NewFeed[int]()
	ctx, cancel := context.WithCancel(context.Background())
	ch := f.Subscribe(ctx)
	cancel()

	if _, ok := recv(t, ch); ok {
		t.Fatal("channel should be closed after cancel")
	}
	if n := f.Subscribers(); n != 0 {
		t.Errorf("Subscribers() = %d, want 0", n)
	}
	f.Publish(1) // must not panic on a released subscriber
}

func TestFeedClose(t *testing.T) {
	t.Parallel()
	f := NewFeed[int]()
	ch := f.Subscribe(context.Background())
	f.Close()
	if _, ok := recv(t, ch); ok {
		t.Fatal("channel should be closed")
	}
	late := f.Subscribe(context.Background())
	if _, ok := recv(t, late); ok {
		t.Fatal("subscribe after Close should return a closed channel")
	}
}
