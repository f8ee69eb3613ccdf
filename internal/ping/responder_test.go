// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package ping

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/marquee/internal/clock"
	"github.com/tomtom215/marquee/internal/models"
	"github.com/tomtom215/marquee/internal/session"
	"github.com/tomtom215/marquee/internal/store"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixedSample struct {
	sample models.DeviceSample
	ok     bool
}

func (f fixedSample) Latest() (models.DeviceSample, bool) { return f.sample, f.ok }

var ready = fixedSample{models.DeviceSample{BatteryPercent: 90, SampledAt: t0}, true}

// laterSample has no sample until set is called.
type laterSample struct {
	mu     sync.Mutex
	sample *models.DeviceSample
}

func (l *laterSample) set(s models.DeviceSample) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sample = &s
}

func (l *laterSample) Latest() (models.DeviceSample, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sample == nil {
		return models.DeviceSample{}, false
	}
	return *l.sample, true
}

// staleStore keeps reporting requests as pending after completion, the
// way an eventually consistent read can.
type staleStore struct {
	mu        sync.Mutex
	pending   []models.PingRequest
	completed map[string]int
}

func (s *staleStore) PendingPings(context.Context, string) ([]models.PingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.PingRequest(nil), s.pending...), nil
}

func (s *staleStore) CompletePing(_ context.Context, _, id string, _ models.PingResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed == nil {
		s.completed = make(map[string]int)
	}
	s.completed[id]++
	return nil
}

func newSession() *session.Session {
	return session.New("d1", "owner-1", t0)
}

func TestPoll_CompletesPendingRequests(t *testing.T) {
	t.Parallel()

	mem := store.NewMemory()
	first := mem.RequestPing("d1")
	second := mem.RequestPing("d1")
	other := mem.RequestPing("d2")

	sample := models.DeviceSample{BatteryPercent: 77, PingMs: 42, Online: true, SampledAt: t0}
	clk := clock.NewFake(t0.Add(time.Minute))
	sess := newSession()
	r := NewResponder(Config{}, mem, fixedSample{sample, true}, sess, clk)

	if n := r.Poll(context.Background()); n != 2 {
		t.Fatalf("Poll() = %d, want 2", n)
	}
	for _, id := range []string{first, second} {
		p, ok := mem.Ping("d1", id)
		if !ok || p.Status != models.PingCompleted || p.Response == nil {
			t.Fatalf("ping %s = %+v", id, p)
		}
		resp := p.Response
		if resp.OwnerID != "owner-1" || resp.SessionID != sess.ID() {
			t.Errorf("response identity = %q/%q", resp.OwnerID, resp.SessionID)
		}
		if resp.Sample == nil || resp.Sample.BatteryPercent != 77 || resp.Sample.PingMs != 42 {
			t.Errorf("response sample = %+v", resp.Sample)
		}
		if !resp.RespondedAt.Equal(t0.Add(time.Minute)) {
			t.Errorf("RespondedAt = %v", resp.RespondedAt)
		}
	}
	if p, _ := mem.Ping("d2", other); p.Status != models.PingPending {
		t.Error("answered a request addressed to another display")
	}
	if n := r.Poll(context.Background()); n != 0 {
		t.Errorf("second Poll() = %d, want 0", n)
	}
}

func TestPoll_NoSampleYetLeavesRequestPending(t *testing.T) {
	t.Parallel()

	mem := store.NewMemory()
	id := mem.RequestPing("d1")
	src := &laterSample{}
	r := NewResponder(Config{}, mem, src, newSession(), clock.NewFake(t0))

	if n := r.Poll(context.Background()); n != 0 {
		t.Fatalf("Poll() before first sample = %d, want 0", n)
	}
	if p, _ := mem.Ping("d1", id); p.Status != models.PingPending || p.Response != nil {
		t.Fatalf("ping before first sample = %+v, want pending", p)
	}

	src.set(models.DeviceSample{BatteryPercent: 64, PingMs: 12, SampledAt: t0})
	if n := r.Poll(context.Background()); n != 1 {
		t.Fatalf("Poll() after first sample = %d, want 1", n)
	}
	p, _ := mem.Ping("d1", id)
	if p.Status != models.PingCompleted || p.Response == nil || p.Response.Sample == nil {
		t.Fatalf("ping after first sample = %+v", p)
	}
	if p.Response.Sample.BatteryPercent != 64 {
		t.Errorf("response sample = %+v", p.Response.Sample)
	}
}

func TestPoll_StaleReadNotAnsweredTwice(t *testing.T) {
	t.Parallel()

	st := &staleStore{pending: []models.PingRequest{
		{ID: "p1", DisplayID: "d1", Status: models.PingPending},
		{ID: "p2", DisplayID: "d1", Status: models.PingPending},
	}}
	r := NewResponder(Config{}, st, ready, newSession(), clock.NewFake(t0))

	for i := 0; i < 3; i++ {
		r.Poll(context.Background())
	}
	if st.completed["p1"] != 1 || st.completed["p2"] != 1 {
		t.Errorf("completions = %v, want one each", st.completed)
	}
}

func TestPoll_FailedWriteRetriedNextPoll(t *testing.T) {
	t.Parallel()

	mem := store.NewMemory()
	id := mem.RequestPing("d1")
	r := NewResponder(Config{}, mem, ready, newSession(), clock.NewFake(t0))

	mem.InjectError(store.OpComplete, errors.New("unavailable"))
	if n := r.Poll(context.Background()); n != 0 {
		t.Fatalf("Poll() with failing store = %d", n)
	}
	mem.InjectError(store.OpComplete, nil)
	if n := r.Poll(context.Background()); n != 1 {
		t.Fatalf("retry Poll() = %d, want 1", n)
	}
	if p, _ := mem.Ping("d1", id); p.Status != models.PingCompleted {
		t.Error("request not completed after retry")
	}
}

func TestPoll_ListFailure(t *testing.T) {
	t.Parallel()

	mem := store.NewMemory()
	mem.RequestPing("d1")
	mem.InjectError(store.OpPending, errors.New("unavailable"))
	r := NewResponder(Config{}, mem, ready, newSession(), clock.NewFake(t0))
	if n := r.Poll(context.Background()); n != 0 {
		t.Errorf("Poll() = %d, want 0", n)
	}
}

func TestRun_AnswersWithinOneInterval(t *testing.T) {
	t.Parallel()

	mem := store.NewMemory()
	clk := clock.NewFake(t0)
	r := NewResponder(Config{Interval: 5 * time.Second}, mem, ready, newSession(), clk)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	clk.WaitForTimers(1)
	id := mem.RequestPing("d1")
	clk.Advance(5 * time.Second)

	deadline := time.Now().Add(2 * time.Second)
	for {
		if p, _ := mem.Ping("d1", id); p.Status == models.PingCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("request not answered after one interval")
		}
		time.Sleep(2 * time.Millisecond)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}
}
