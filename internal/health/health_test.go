// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/marquee/internal/clock"
	"github.com/tomtom215/marquee/internal/models"
	"github.com/tomtom215/marquee/internal/platform"
	"github.com/tomtom215/marquee/internal/session"
	"github.com/tomtom215/marquee/internal/store"
)

var t0 = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

type scriptedBattery struct {
	mu       sync.Mutex
	readings []platform.BatteryReading
	err      error
}

func (b *scriptedBattery) Read(context.Context) (platform.BatteryReading, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return platform.BatteryReading{}, b.err
	}
	r := b.readings[0]
	if len(b.readings) > 1 {
		b.readings = b.readings[1:]
	}
	return r, nil
}

type fixedNetwork struct {
	reading platform.NetworkReading
	err     error
}

func (n fixedNetwork) Read(context.Context) (platform.NetworkReading, error) { return n.reading, n.err }

type fixedProber int64

func (p fixedProber) Probe(context.Context) int64 { return int64(p) }

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []models.Alert
}

func (r *recordingNotifier) Notify(_ context.Context, a models.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return nil
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}

func testCaps(battery platform.Battery, notifier platform.Notifier) platform.Capabilities {
	return platform.Capabilities{
		Battery:  battery,
		Network:  fixedNetwork{reading: platform.NetworkReading{Kind: platform.NetworkWiFi, Mbps: 12.345}},
		Locator:  platform.StaticLocator{Location: models.Location{Lat: 10, Lon: 20}},
		Prober:   fixedProber(42),
		Notifier: notifier,
	}
}

func testConfig() Config {
	return Config{Interval: 30 * time.Second, ReadTimeout: time.Second, DataRateMBPerMinute: 2.6, LowBatteryThreshold: 40}
}

func TestLowBatteryDetector(t *testing.T) {
	t.Parallel()

	type step struct {
		percent  int
		charging bool
		alert    bool
	}
	tests := []struct {
		name  string
		steps []step
	}{
		{
			name: "crossing raises exactly one alert",
			steps: []step{
				{45, false, false},
				{38, false, true},
				{38, false, false},
				{35, false, false},
				{30, false, false},
			},
		},
		{
			name: "recovery above threshold re-arms",
			steps: []step{
				{38, false, true},
				{41, false, false},
				{39, false, true},
			},
		},
		{
			name: "charging re-arms",
			steps: []step{
				{30, false, true},
				{30, true, false},
				{31, true, false},
				{31, false, true},
			},
		},
		{
			name: "threshold is inclusive",
			steps: []step{
				{40, false, true},
			},
		},
		{
			name: "charging while low never alerts",
			steps: []step{
				{10, true, false},
				{5, true, false},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := NewLowBatteryDetector(40)
			for i, s := range tt.steps {
				alert, ok := d.Observe(s.percent, s.charging)
				if ok != s.alert {
					t.Fatalf("step %d (%d%%, charging=%v): alert = %v, want %v", i, s.percent, s.charging, ok, s.alert)
				}
				if ok && (alert.Kind != models.AlertLowBattery || alert.Battery != s.percent) {
					t.Errorf("step %d: alert = %+v", i, alert)
				}
			}
		})
	}
}

func TestSampleOnce(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(t0)
	sess := session.New("d1", "o1", t0)
	battery := &scriptedBattery{readings: []platform.BatteryReading{{Percent: 77, Charging: false}}}
	s := NewSampler(testConfig(), testCaps(battery, nil), sess, clk)

	clk.Advance(10 * time.Minute)
	got, err := s.SampleOnce(context.Background())
	if err != nil {
		t.Fatalf("SampleOnce() error = %v", err)
	}

	if got.BatteryPercent != 77 || got.Charging || got.BatterySimulated {
		t.Errorf("battery = %d/%v/%v", got.BatteryPercent, got.Charging, got.BatterySimulated)
	}
	if got.NetworkKind != platform.NetworkWiFi || got.NetworkMbps != 12.3 {
		t.Errorf("network = %s %v", got.NetworkKind, got.NetworkMbps)
	}
	if got.PingMs != 42 || !got.Online {
		t.Errorf("ping = %d online=%v", got.PingMs, got.Online)
	}
	if got.Location == nil || got.Location.Lat != 10 {
		t.Errorf("location = %+v", got.Location)
	}
	if got.DataUsageMB != 26 {
		t.Errorf("DataUsageMB = %v, want 26 (10 min x 2.6)", got.DataUsageMB)
	}
	if !got.SampledAt.Equal(t0.Add(10 * time.Minute)) {
		t.Errorf("SampledAt = %v", got.SampledAt)
	}
}

func TestSampleOnce_Degrades(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(t0)
	caps := platform.Capabilities{
		Battery: &scriptedBattery{err: errors.New("no battery api")},
		Network: fixedNetwork{err: errors.New("no counters")},
		Locator: platform.StaticLocator{Unknown: true},
		Prober:  fixedProber(models.PingFailed),
	}
	got, err := NewSampler(testConfig(), caps, session.New("d1", "", t0), clk).SampleOnce(context.Background())
	if err != nil {
		t.Fatalf("SampleOnce() error = %v", err)
	}

	if !got.BatterySimulated || !got.NetworkSimulated {
		t.Errorf("fallbacks not flagged: %+v", got)
	}
	if got.Online || got.PingMs != models.PingFailed {
		t.Errorf("ping = %d online=%v, want failed/offline", got.PingMs, got.Online)
	}
	if got.Location != nil {
		t.Errorf("location = %+v, want nil", got.Location)
	}
}

// blockingProber holds the probe until its context ends.
type blockingProber struct {
	once    sync.Once
	started chan struct{}
}

func (p *blockingProber) Probe(ctx context.Context) int64 {
	p.once.Do(func() { close(p.started) })
	<-ctx.Done()
	return models.PingFailed
}

func TestSampleOnce_CanceledMidSample(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(t0)
	notifier := &recordingNotifier{}
	battery := &scriptedBattery{readings: []platform.BatteryReading{{Percent: 10}}}
	caps := testCaps(battery, notifier)
	prober := &blockingProber{started: make(chan struct{})}
	caps.Prober = prober
	s := NewSampler(testConfig(), caps, session.New("d1", "", t0), clk)
	ch, cancelSub := s.Subscribe()
	defer cancelSub()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := s.SampleOnce(ctx)
		done <- err
	}()
	<-prober.started
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("SampleOnce() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("SampleOnce() did not return after cancel")
	}

	s.cycle(ctx)
	if latest, ok := s.Latest(); ok {
		t.Errorf("Latest() = %+v after an abandoned sample", latest)
	}
	if len(ch) != 0 {
		t.Errorf("broadcast %d abandoned samples", len(ch))
	}
	if n := notifier.count(); n != 0 {
		t.Errorf("low battery alerts = %d from an abandoned sample", n)
	}
}

func recvSample(t *testing.T, ch <-chan models.DeviceSample) models.DeviceSample {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("no sample within 2s")
	}
	return models.DeviceSample{}
}

func TestSamplerRun_ImmediateThenInterval(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(t0)
	notifier := &recordingNotifier{}
	battery := &scriptedBattery{readings: []platform.BatteryReading{
		{Percent: 45}, {Percent: 38}, {Percent: 35},
	}}
	s := NewSampler(testConfig(), testCaps(battery, notifier), session.New("d1", "", t0), clk)
	ch, cancelSub := s.Subscribe()
	defer cancelSub()

	if _, ok := s.Latest(); ok {
		t.Fatal("Latest() before first sample reported ok")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	first := recvSample(t, ch)
	if first.BatteryPercent != 45 || !first.SampledAt.Equal(t0) {
		t.Errorf("first sample = %d at %v", first.BatteryPercent, first.SampledAt)
	}

	clk.WaitForTimers(1)
	clk.Advance(30 * time.Second)
	second := recvSample(t, ch)
	if second.BatteryPercent != 38 || !second.SampledAt.Equal(t0.Add(30*time.Second)) {
		t.Errorf("second sample = %d at %v", second.BatteryPercent, second.SampledAt)
	}

	clk.Advance(30 * time.Second)
	third := recvSample(t, ch)
	if third.BatteryPercent != 35 {
		t.Errorf("third sample = %d", third.BatteryPercent)
	}

	if latest, ok := s.Latest(); !ok || latest.BatteryPercent != 35 {
		t.Errorf("Latest() = %+v, %v", latest, ok)
	}
	if loc := s.LatestLocation(); loc == nil || loc.Lon != 20 {
		t.Errorf("LatestLocation() = %+v", loc)
	}
	if n := notifier.count(); n != 1 {
		t.Errorf("low battery alerts = %d, want 1", n)
	}
}

func TestSubscribe_CancelClosesAndSlowSubscriberDoesNotBlock(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(t0)
	battery := &scriptedBattery{readings: []platform.BatteryReading{{Percent: 90, Charging: true}}}
	s := NewSampler(testConfig(), testCaps(battery, nil), session.New("d1", "", t0), clk)

	ch, cancel := s.Subscribe()
	for i := 0; i < subscriberBuffer+3; i++ {
		s.cycle(context.Background())
	}
	if len(ch) != subscriberBuffer {
		t.Errorf("buffered %d samples, want %d", len(ch), subscriberBuffer)
	}
	cancel()
	cancel()
	for range ch {
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestStatusPusher_Debounce(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(t0)
	sess := session.New("d1", "o1", t0)
	battery := &scriptedBattery{readings: []platform.BatteryReading{{Percent: 80}, {Percent: 79}, {Percent: 78}}}
	s := NewSampler(testConfig(), testCaps(battery, nil), sess, clk)
	mem := store.NewMemory()

	playing := &models.NowPlaying{ItemID: "a", State: "presenting"}
	p := NewStatusPusher(mem, s, sess, clk, 30*time.Second, StatusSources{
		NowPlaying:  func() *models.NowPlaying { return playing },
		KioskActive: func() bool { return true },
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()
	waitFor(t, "pusher subscription", func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.subs) == 1
	})

	statusBattery := func() int {
		st, ok := mem.DeviceStatus("d1")
		if !ok || st.Sample == nil {
			return -1
		}
		return st.Sample.BatteryPercent
	}

	s.cycle(ctx)
	waitFor(t, "first push", func() bool { return statusBattery() == 80 })

	st, _ := mem.DeviceStatus("d1")
	if st.SessionID != sess.ID() || !st.KioskActive || st.NowPlaying == nil || st.NowPlaying.ItemID != "a" {
		t.Errorf("status = %+v", st)
	}

	clk.Advance(5 * time.Second)
	s.cycle(ctx)
	clk.WaitForTimers(1)

	clk.Advance(5 * time.Second)
	s.cycle(ctx)
	waitFor(t, "pusher to take the pending sample", func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, ch := range s.subs {
			if len(ch) > 0 {
				return false
			}
		}
		return true
	})

	time.Sleep(20 * time.Millisecond)
	if got := statusBattery(); got != 80 {
		t.Fatalf("pushed inside debounce window: battery = %d", got)
	}

	clk.Advance(20 * time.Second)
	waitFor(t, "flushed push", func() bool { return statusBattery() == 78 })
}
