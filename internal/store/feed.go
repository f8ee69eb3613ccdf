// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package store

import (
	"context"
	"sync"
)

// Feed fans a stream of snapshots out to subscribers with latest-wins
// delivery. Publishing never blocks.
type Feed[T any] struct {
	mu      sync.Mutex
	subs    map[uint64]chan T
	next    uint64
	last    T
	hasLast bool
	closed  bool
}

// NewFeed returns an empty feed.
func NewFeed[T any]() *Feed[T] {
	return &Feed[T]{subs: make(map[uint64]chan T)}
}

// Subscribe returns a channel that receives the last published value (if
// any) and every later one. It is closed when ctx is done or the feed is
// closed.
func (f *Feed[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, 1)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		close(ch)
		return ch
	}
	id := f.next
	f.next++
	f.subs[id] = ch
	if f.hasLast {
		ch <- f.last
	}
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		defer f.mu.Unlock()
		if c, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(c)
		}
	}()
	return ch
}

// Publish delivers v to every subscriber, replacing any value a
// subscriber has not read yet.
func (f *Feed[T]) Publish(v T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.last = v
	f.hasLast = true
	for _, ch := range f.subs {
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}

// Subscribers returns the number of live subscriptions.
func (f *Feed[T]) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Close closes every subscriber channel.
func (f *Feed[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
}
