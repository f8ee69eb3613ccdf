// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package cache provides the small in-memory caches used by the engine:
// a TTL cache for slow capability readings and an LRU set for
// de-duplicating work across polls.
package cache

import (
	"sync"
	"time"

	"github.com/tomtom215/marquee/internal/clock"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTL is a thread-safe cache whose entries expire after a fixed time.
// Expired entries are dropped lazily on access.
type TTL[V any] struct {
	mu      sync.Mutex
	clk     clock.Clock
	ttl     time.Duration
	entries map[string]entry[V]
	hits    int64
	misses  int64
}

// NewTTL returns a cache with the given default TTL.
func NewTTL[V any](clk clock.Clock, ttl time.Duration) *TTL[V] {
	return &TTL[V]{clk: clk, ttl: ttl, entries: make(map[string]entry[V])}
}

// Get returns the value for key if present and not expired.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || c.clk.Now().After(e.expiresAt) {
		if ok {
			delete(c.entries, key)
		}
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	return e.value, true
}

// Set stores value with the default TTL.
func (c *TTL[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores value with a custom TTL.
func (c *TTL[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, expiresAt: c.clk.Now().Add(ttl)}
}

// Delete removes key.
func (c *TTL[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// HitRate returns hits as a percentage of lookups.
func (c *TTL[V]) HitRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total) * 100
}
