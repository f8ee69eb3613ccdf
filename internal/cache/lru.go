// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/tomtom215/marquee/internal/clock"
)

// LRU is a bounded set of recently seen keys with TTL. When full, the
// least recently touched key is evicted.
type LRU struct {
	mu       sync.Mutex
	clk      clock.Clock
	capacity int
	ttl      time.Duration
	order    *list.List
	items    map[string]*list.Element
}

type lruItem struct {
	key       string
	expiresAt time.Time
}

// NewLRU returns an LRU set. Non-positive arguments fall back to 1024
// entries and 1 hour.
func NewLRU(clk clock.Clock, capacity int, ttl time.Duration) *LRU {
	if capacity <= 0 {
		capacity = 1024
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &LRU{
		clk:      clk,
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
}

// Contains reports whether key is present and unexpired.
func (c *LRU) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return false
	}
	if c.clk.Now().After(el.Value.(*lruItem).expiresAt) {
		c.remove(el)
		return false
	}
	return true
}

// Add records key, evicting the oldest entry when over capacity.
func (c *LRU) Add(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	exp := c.clk.Now().Add(c.ttl)
	if el, ok := c.items[key]; ok {
		el.Value.(*lruItem).expiresAt = exp
		c.order.MoveToFront(el)
		return
	}
	c.items[key] = c.order.PushFront(&lruItem{key: key, expiresAt: exp})
	for len(c.items) > c.capacity {
		c.remove(c.order.Back())
	}
}

// IsDuplicate reports whether key was already present, recording it if
// not.
func (c *LRU) IsDuplicate(key string) bool {
	if c.Contains(key) {
		return true
	}
	c.Add(key)
	return false
}

// Remove deletes key.
func (c *LRU) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.remove(el)
	}
}

// Len returns the number of entries, expired or not.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *LRU) remove(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*lruItem).key)
}
