// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package platform is the capability boundary between the engine and the
// device. Detect decides once, at startup, which capabilities are backed
// by the real device and which are simulated; everything downstream only
// sees the interfaces below.
package platform

import (
	"context"
	"net/http"

	"github.com/distatus/battery"

	"github.com/tomtom215/marquee/internal/clock"
	"github.com/tomtom215/marquee/internal/config"
	"github.com/tomtom215/marquee/internal/logging"
	"github.com/tomtom215/marquee/internal/metrics"
	"github.com/tomtom215/marquee/internal/models"
)

// BatteryReading is one battery observation.
type BatteryReading struct {
	Percent   int
	Charging  bool
	Simulated bool
}

// NetworkReading is one network observation.
type NetworkReading struct {
	Kind      string
	Mbps      float64
	Simulated bool
}

// Network kinds.
const (
	NetworkEthernet = "ethernet"
	NetworkWiFi     = "wifi"
	NetworkCellular = "cellular"
	NetworkUnknown  = "unknown"
)

// Battery reads the battery level and charging state.
type Battery interface {
	Read(ctx context.Context) (BatteryReading, error)
}

// Network reads the active network kind and throughput.
type Network interface {
	Read(ctx context.Context) (NetworkReading, error)
}

// Locator returns the device location. A nil location with a nil error
// means the location is unknown.
type Locator interface {
	Locate(ctx context.Context) (*models.Location, error)
}

// Prober measures round-trip time to a well-known endpoint in
// milliseconds, or models.PingFailed.
type Prober interface {
	Probe(ctx context.Context) int64
}

// Notifier surfaces a local alert.
type Notifier interface {
	Notify(ctx context.Context, alert models.Alert) error
}

// Capabilities is the set of device capabilities chosen by Detect.
type Capabilities struct {
	Battery  Battery
	Network  Network
	Locator  Locator
	Prober   Prober
	Notifier Notifier
}

// DetectOption adjusts how Detect probes the device.
type DetectOption func(*detectOptions)

type detectOptions struct {
	batteries BatterySource
}

// WithBatterySource replaces the operating system battery listing.
func WithBatterySource(src BatterySource) DetectOption {
	return func(o *detectOptions) { o.batteries = src }
}

// Detect probes the device once and returns real capabilities where they
// exist, simulated ones otherwise.
func Detect(ctx context.Context, cfg *config.HealthConfig, clk clock.Clock, opts ...DetectOption) Capabilities {
	log := logging.WithComponent("platform")
	o := detectOptions{batteries: battery.GetAll}
	for _, opt := range opts {
		opt(&o)
	}
	caps := Capabilities{
		Prober:   NewHTTPProber(cfg.ProbeURL, cfg.ProbeTimeout, nil),
		Notifier: LogNotifier{},
	}

	switch {
	case cfg.SimulateBattery:
		caps.Battery = SimulatedBattery{}
	default:
		b, err := FindDeviceBattery(o.batteries, cfg.BatteryIndex)
		if err != nil {
			log.Info().Err(err).Msg("No battery found, using simulated readings")
			metrics.HealthCapabilityFallbacks.WithLabelValues("battery").Inc()
			caps.Battery = SimulatedBattery{}
		} else {
			caps.Battery = b
		}
	}

	switch {
	case cfg.SimulateNetwork:
		caps.Network = SimulatedNetwork{}
	default:
		n := NewCounterNetwork(cfg.NetworkInterface, clk, nil)
		if _, err := n.Read(ctx); err != nil {
			log.Info().Err(err).Msg("Network counters unavailable, using simulated readings")
			metrics.HealthCapabilityFallbacks.WithLabelValues("network").Inc()
			caps.Network = SimulatedNetwork{}
		} else {
			caps.Network = n
		}
	}

	var loc Locator
	switch {
	case cfg.LocationConfigured():
		loc = StaticLocator{Location: models.Location{
			Lat:     cfg.StaticLatitude,
			Lon:     cfg.StaticLongitude,
			Address: cfg.StaticAddress,
		}}
	case cfg.GeoIPURL != "":
		loc = NewGeoIPLocator(cfg.GeoIPURL, &http.Client{Timeout: cfg.LocationTimeout})
	default:
		log.Info().Msg("No location source configured, location will be reported as unknown")
		metrics.HealthCapabilityFallbacks.WithLabelValues("location").Inc()
		loc = StaticLocator{Unknown: true}
	}
	caps.Locator = NewCachedLocator(loc, clk, cfg.LocationTimeout, cfg.LocationCacheTTL)

	log.Info().
		Str("battery", describe(caps.Battery)).
		Str("network", describe(caps.Network)).
		Msg("Platform capabilities detected")
	return caps
}

func describe(v interface{}) string {
	switch v.(type) {
	case SimulatedBattery, SimulatedNetwork:
		return "simulated"
	default:
		return "device"
	}
}
