// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package platform

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/distatus/battery"
	psnet "github.com/shirou/gopsutil/v4/net"

	"github.com/tomtom215/marquee/internal/clock"
	"github.com/tomtom215/marquee/internal/config"
	"github.com/tomtom215/marquee/internal/models"
)

func batteries(bats []*battery.Battery, err error) BatterySource {
	return func() ([]*battery.Battery, error) { return bats, err }
}

func bat(current, full float64, state battery.AgnosticState) *battery.Battery {
	return &battery.Battery{Current: current, Full: full, State: battery.State{Raw: state}}
}

func TestDeviceBattery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		bat          *battery.Battery
		wantPercent  int
		wantCharging bool
	}{
		{"discharging", bat(38000, 100000, battery.Discharging), 38, false},
		{"charging", bat(45000, 100000, battery.Charging), 45, true},
		{"full counts as charging", bat(50000, 50000, battery.Full), 100, true},
		{"not charging is external power", bat(40000, 50000, battery.Idle), 80, true},
		{"empty", bat(0, 50000, battery.Empty), 0, false},
		{"rounded", bat(1234, 5000, battery.Unknown), 25, false},
		{"clamped", bat(52000, 50000, battery.Unknown), 100, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b, err := FindDeviceBattery(batteries([]*battery.Battery{tt.bat}, nil), -1)
			if err != nil {
				t.Fatalf("FindDeviceBattery() error = %v", err)
			}
			got, err := b.Read(context.Background())
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if got.Percent != tt.wantPercent || got.Charging != tt.wantCharging || got.Simulated {
				t.Errorf("Read() = %+v", got)
			}
		})
	}
}

func TestFindDeviceBattery(t *testing.T) {
	t.Parallel()

	good := bat(30000, 60000, battery.Discharging)
	noFull := bat(0, 0, battery.Unknown)
	partial := battery.Errors{nil, errors.New("voltage unreadable")}

	tests := []struct {
		name      string
		src       BatterySource
		index     int
		wantIndex int
		wantErr   bool
	}{
		{"none", batteries(nil, nil), -1, 0, true},
		{"fatal", batteries(nil, errors.New("no power_supply class")), -1, 0, true},
		{"first usable", batteries([]*battery.Battery{noFull, good}, nil), -1, 1, false},
		{"partial read accepted", batteries([]*battery.Battery{noFull, good}, partial), -1, 1, false},
		{"index chosen", batteries([]*battery.Battery{good, good}, nil), 1, 1, false},
		{"index out of range", batteries([]*battery.Battery{good}, nil), 3, 0, true},
		{"index unusable", batteries([]*battery.Battery{noFull}, nil), 0, 0, true},
		{"all unusable", batteries([]*battery.Battery{noFull, nil}, nil), -1, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b, err := FindDeviceBattery(tt.src, tt.index)
			if tt.wantErr {
				if !errors.Is(err, ErrNoBattery) {
					t.Errorf("error = %v, want ErrNoBattery", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FindDeviceBattery() error = %v", err)
			}
			if b.index != tt.wantIndex {
				t.Errorf("index = %d, want %d", b.index, tt.wantIndex)
			}
		})
	}
}

func TestDeviceBattery_ReadError(t *testing.T) {
	t.Parallel()

	var fail atomic.Bool
	good := bat(30000, 60000, battery.Discharging)
	src := func() ([]*battery.Battery, error) {
		if fail.Load() {
			return nil, errors.New("power_supply gone")
		}
		return []*battery.Battery{good}, nil
	}
	b, err := FindDeviceBattery(src, -1)
	if err != nil {
		t.Fatalf("FindDeviceBattery() error = %v", err)
	}
	fail.Store(true)
	if _, err := b.Read(context.Background()); err == nil {
		t.Error("Read() error = nil after the battery disappeared")
	}
}

func TestSimulated(t *testing.T) {
	t.Parallel()

	b, _ := SimulatedBattery{}.Read(context.Background())
	if !b.Simulated || b.Percent != 100 || !b.Charging {
		t.Errorf("SimulatedBattery = %+v", b)
	}
	n, _ := SimulatedNetwork{}.Read(context.Background())
	if !n.Simulated || n.Kind != NetworkUnknown {
		t.Errorf("SimulatedNetwork = %+v", n)
	}
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"wlan0":   NetworkWiFi,
		"wlp3s0":  NetworkWiFi,
		"eth0":    NetworkEthernet,
		"enp0s31": NetworkEthernet,
		"wwan0":   NetworkCellular,
		"rmnet0":  NetworkCellular,
		"tun0":    NetworkUnknown,
	}
	for name, want := range tests {
		if got := KindOf(name); got != want {
			t.Errorf("KindOf(%q) = %q, want %q", name, got, want)
		}
	}
}

type fakeCounters struct {
	ifaces   psnet.InterfaceStatList
	counters []psnet.IOCountersStat
	err      error
}

func (f *fakeCounters) Counters(context.Context) ([]psnet.IOCountersStat, error) {
	return f.counters, f.err
}

func (f *fakeCounters) Interfaces(context.Context) (psnet.InterfaceStatList, error) {
	return f.ifaces, f.err
}

func TestCounterNetwork(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(time.Unix(0, 0))
	src := &fakeCounters{
		ifaces: psnet.InterfaceStatList{
			{Name: "lo", Flags: []string{"up", "loopback"}},
			{Name: "eth0", Flags: []string{"up", "broadcast"}},
			{Name: "wlan0", Flags: []string{"up", "broadcast"}},
			{Name: "eth1", Flags: []string{"broadcast"}},
		},
		counters: []psnet.IOCountersStat{
			{Name: "lo", BytesRecv: 1 << 40},
			{Name: "eth0", BytesRecv: 1000, BytesSent: 0},
			{Name: "wlan0", BytesRecv: 5_000_000, BytesSent: 0},
		},
	}
	n := NewCounterNetwork("", clk, src)

	first, err := n.Read(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if first.Kind != NetworkWiFi || first.Mbps != 0 {
		t.Errorf("first read = %+v, want wifi with 0 Mbps", first)
	}

	clk.Advance(10 * time.Second)
	src.counters[2].BytesRecv += 12_500_000
	second, err := n.Read(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if second.Mbps != 10 {
		t.Errorf("Mbps = %v, want 10", second.Mbps)
	}
}

func TestCounterNetwork_PinnedAndMissing(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(time.Unix(0, 0))
	src := &fakeCounters{
		ifaces:   psnet.InterfaceStatList{{Name: "eth0", Flags: []string{"up"}}},
		counters: []psnet.IOCountersStat{{Name: "eth0", BytesRecv: 10}},
	}
	if got, err := NewCounterNetwork("eth0", clk, src).Read(context.Background()); err != nil || got.Kind != NetworkEthernet {
		t.Errorf("pinned read = %+v, %v", got, err)
	}
	if _, err := NewCounterNetwork("wlan9", clk, src).Read(context.Background()); !errors.Is(err, ErrNoInterface) {
		t.Errorf("missing interface error = %v, want ErrNoInterface", err)
	}
}

func TestGeoIPLocator(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","country":"Netherlands","regionName":"North Holland","city":"Amsterdam","lat":52.37,"lon":4.89}`))
	}))
	defer srv.Close()

	loc, err := NewGeoIPLocator(srv.URL, srv.Client()).Locate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if loc.Lat != 52.37 || loc.Lon != 4.89 || loc.Address != "Amsterdam, North Holland, Netherlands" {
		t.Errorf("Locate() = %+v", loc)
	}
	if loc.AccuracyM != geoIPAccuracyM {
		t.Errorf("AccuracyM = %v", loc.AccuracyM)
	}
}

func TestGeoIPLocator_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		payload string
	}{
		{"lookup failed", http.StatusOK, `{"status":"fail","message":"private range"}`},
		{"server error", http.StatusBadGateway, `{}`},
		{"bad json", http.StatusOK, `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.payload))
			}))
			defer srv.Close()
			if _, err := NewGeoIPLocator(srv.URL, srv.Client()).Locate(context.Background()); err == nil {
				t.Error("expected error")
			}
		})
	}
}

type countingLocator struct {
	calls atomic.Int32
	loc   *models.Location
	err   error
	block bool
}

func (c *countingLocator) Locate(ctx context.Context) (*models.Location, error) {
	c.calls.Add(1)
	if c.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return c.loc, c.err
}

func TestCachedLocator(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(time.Unix(0, 0))
	inner := &countingLocator{loc: &models.Location{Lat: 1, Lon: 2}}
	c := NewCachedLocator(inner, clk, time.Second, 5*time.Minute)

	for i := 0; i < 3; i++ {
		if loc, err := c.Locate(context.Background()); err != nil || loc.Lat != 1 {
			t.Fatalf("Locate() = %+v, %v", loc, err)
		}
	}
	if n := inner.calls.Load(); n != 1 {
		t.Errorf("inner called %d times within TTL, want 1", n)
	}

	clk.Advance(5*time.Minute + time.Second)
	inner.err = errors.New("denied")
	loc, err := c.Locate(context.Background())
	if err == nil {
		t.Error("expected error after cache expiry")
	}
	if loc == nil || loc.Lat != 1 {
		t.Errorf("last known location not returned: %+v", loc)
	}
}

func TestCachedLocator_Timeout(t *testing.T) {
	t.Parallel()

	inner := &countingLocator{block: true}
	c := NewCachedLocator(inner, clock.Real(), 20*time.Millisecond, time.Minute)
	loc, err := c.Locate(context.Background())
	if !errors.Is(err, ErrLocationTimeout) {
		t.Errorf("error = %v, want ErrLocationTimeout", err)
	}
	if loc != nil {
		t.Errorf("location = %+v, want nil", loc)
	}
}

func TestHTTPProber(t *testing.T) {
	t.Parallel()

	var method atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method.Store(r.Method)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if ms := NewHTTPProber(srv.URL, time.Second, srv.Client()).Probe(context.Background()); ms < 0 {
		t.Errorf("Probe() = %d, want >= 0", ms)
	}
	if m, _ := method.Load().(string); m != http.MethodHead {
		t.Errorf("method = %q, want HEAD", m)
	}
}

func TestHTTPProber_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	if ms := NewHTTPProber(srv.URL, 20*time.Millisecond, srv.Client()).Probe(context.Background()); ms != models.PingFailed {
		t.Errorf("Probe() = %d, want %d", ms, models.PingFailed)
	}
}

type recordingNotifier struct {
	alerts []models.Alert
	err    error
}

func (r *recordingNotifier) Notify(_ context.Context, a models.Alert) error {
	r.alerts = append(r.alerts, a)
	return r.err
}

func TestNotifiers(t *testing.T) {
	t.Parallel()

	a := &recordingNotifier{err: errors.New("no permission")}
	b := &recordingNotifier{}
	err := Notifiers{a, nil, b, LogNotifier{}}.Notify(context.Background(), models.Alert{Kind: models.AlertLowBattery, Battery: 38})
	if err == nil {
		t.Error("expected joined error")
	}
	if len(a.alerts) != 1 || len(b.alerts) != 1 {
		t.Errorf("fan-out reached %d and %d notifiers", len(a.alerts), len(b.alerts))
	}
}

func TestDetect_Simulated(t *testing.T) {
	t.Parallel()

	cfg := &config.HealthConfig{
		ProbeURL:         "http://127.0.0.1:1/",
		ProbeTimeout:     time.Second,
		LocationTimeout:  time.Second,
		LocationCacheTTL: time.Minute,
		SimulateBattery:  true,
		SimulateNetwork:  true,
		StaticLatitude:   40.7,
		StaticLongitude:  -74,
	}
	caps := Detect(context.Background(), cfg, clock.NewFake(time.Unix(0, 0)))

	if _, ok := caps.Battery.(SimulatedBattery); !ok {
		t.Errorf("Battery = %T, want SimulatedBattery", caps.Battery)
	}
	if _, ok := caps.Network.(SimulatedNetwork); !ok {
		t.Errorf("Network = %T, want SimulatedNetwork", caps.Network)
	}
	loc, err := caps.Locator.Locate(context.Background())
	if err != nil || loc == nil || loc.Lat != 40.7 {
		t.Errorf("Locate() = %+v, %v", loc, err)
	}
}

func TestDetect_NoBatteryFallsBack(t *testing.T) {
	t.Parallel()

	cfg := &config.HealthConfig{
		ProbeURL:        "http://127.0.0.1:1/",
		BatteryIndex:    -1,
		SimulateNetwork: true,
	}
	caps := Detect(context.Background(), cfg, clock.NewFake(time.Unix(0, 0)), WithBatterySource(batteries(nil, nil)))
	if _, ok := caps.Battery.(SimulatedBattery); !ok {
		t.Errorf("Battery = %T, want SimulatedBattery", caps.Battery)
	}
	if loc, err := caps.Locator.Locate(context.Background()); loc != nil || err != nil {
		t.Errorf("Locate() = %+v, %v; want unknown", loc, err)
	}
}

func TestDetect_UsesDeviceBattery(t *testing.T) {
	t.Parallel()

	cfg := &config.HealthConfig{
		ProbeURL:        "http://127.0.0.1:1/",
		BatteryIndex:    -1,
		SimulateNetwork: true,
	}
	src := batteries([]*battery.Battery{bat(20000, 50000, battery.Idle)}, nil)
	caps := Detect(context.Background(), cfg, clock.NewFake(time.Unix(0, 0)), WithBatterySource(src))
	if _, ok := caps.Battery.(*DeviceBattery); !ok {
		t.Fatalf("Battery = %T, want *DeviceBattery", caps.Battery)
	}
	got, err := caps.Battery.Read(context.Background())
	if err != nil || got.Percent != 40 || !got.Charging || got.Simulated {
		t.Errorf("Read() = %+v, %v", got, err)
	}
}
