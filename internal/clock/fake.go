// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a deterministic Clock. Pending timers fire in deadline order
// during Advance; AfterFunc callbacks run synchronously on the caller's
// goroutine, so they must not call Advance themselves.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	seq     uint64
	pending []*fakeTimer
	changed *sync.Cond
}

type fakeTimer struct {
	seq      uint64
	deadline time.Time
	interval time.Duration
	ch       chan time.Time
	fn       func()
	done     bool
}

// NewFake returns a Fake clock set to start.
func NewFake(start time.Time) *Fake {
	f := &Fake{now: start}
	f.changed = sync.NewCond(&f.mu)
	return f
}

// Now returns the fake time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// After returns a channel that receives once the clock passes now+d.
func (f *Fake) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- f.Now()
		return ch
	}
	f.add(&fakeTimer{deadline: f.Now().Add(d), ch: ch})
	return ch
}

// AfterFunc schedules fn. A non-positive d runs fn before returning.
func (f *Fake) AfterFunc(d time.Duration, fn func()) *Timer {
	if d <= 0 {
		fn()
		return &Timer{stop: func() bool { return false }}
	}
	ft := &fakeTimer{deadline: f.Now().Add(d), fn: fn}
	f.add(ft)
	return &Timer{stop: func() bool { return f.cancel(ft) }}
}

// NewTicker returns a ticker driven by Advance.
func (f *Fake) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive ticker interval")
	}
	ch := make(chan time.Time, 1)
	ft := &fakeTimer{deadline: f.Now().Add(d), interval: d, ch: ch}
	f.add(ft)
	return &Ticker{C: ch, stop: func() { f.cancel(ft) }}
}

// Advance moves the clock forward by d, firing every timer whose deadline
// is reached. Tickers fire once per elapsed interval.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		ft, ok := f.nextDue(target)
		if !ok {
			break
		}
		if ft.fn != nil {
			ft.fn()
			continue
		}
		select {
		case ft.ch <- ft.deadline:
		default:
		}
	}

	f.mu.Lock()
	f.now = target
	f.mu.Unlock()
}

// PendingCount reports the number of armed timers and tickers.
func (f *Fake) PendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// WaitForTimers blocks until at least n timers are armed. It closes the
// race between a goroutine arming a timer and the test advancing time.
func (f *Fake) WaitForTimers(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for len(f.pending) < n {
		f.changed.Wait()
	}
}

func (f *Fake) add(ft *fakeTimer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	ft.seq = f.seq
	f.pending = append(f.pending, ft)
	f.changed.Broadcast()
}

func (f *Fake) cancel(ft *fakeTimer) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ft.done {
		return false
	}
	ft.done = true
	for i, p := range f.pending {
		if p == ft {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			break
		}
	}
	return true
}

// nextDue pops the earliest timer due at or before target and moves the
// clock to its deadline, so callbacks observe the time they were due.
func (f *Fake) nextDue(target time.Time) (*fakeTimer, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pending) == 0 {
		return nil, false
	}
	sort.SliceStable(f.pending, func(i, j int) bool {
		if f.pending[i].deadline.Equal(f.pending[j].deadline) {
			return f.pending[i].seq < f.pending[j].seq
		}
		return f.pending[i].deadline.Before(f.pending[j].deadline)
	})
	ft := f.pending[0]
	if ft.deadline.After(target) {
		return nil, false
	}
	f.now = ft.deadline
	if ft.interval > 0 {
		next := *ft
		ft.deadline = ft.deadline.Add(ft.interval)
		return &next, true
	}
	ft.done = true
	f.pending = f.pending[1:]
	return ft, true
}
