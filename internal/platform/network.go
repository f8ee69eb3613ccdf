// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package platform

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	psnet "github.com/shirou/gopsutil/v4/net"

	"github.com/tomtom215/marquee/internal/clock"
)

// ErrNoInterface is returned when no usable network interface exists.
var ErrNoInterface = errors.New("platform: no active network interface")

// CounterSource returns per-interface I/O counters and interface flags.
type CounterSource interface {
	Counters(ctx context.Context) ([]psnet.IOCountersStat, error)
	Interfaces(ctx context.Context) (psnet.InterfaceStatList, error)
}

type gopsutilSource struct{}

func (gopsutilSource) Counters(ctx context.Context) ([]psnet.IOCountersStat, error) {
	return psnet.IOCountersWithContext(ctx, true)
}

func (gopsutilSource) Interfaces(ctx context.Context) (psnet.InterfaceStatList, error) {
	return psnet.InterfacesWithContext(ctx)
}

// CounterNetwork derives throughput from the change in interface byte
// counters between two reads. The first read reports 0 Mbps.
type CounterNetwork struct {
	iface string
	clk   clock.Clock
	src   CounterSource

	mu        sync.Mutex
	lastBytes uint64
	lastAt    time.Time
	lastIface string
}

// NewCounterNetwork watches iface, or the busiest active non-loopback
// interface when iface is empty. src defaults to gopsutil.
func NewCounterNetwork(iface string, clk clock.Clock, src CounterSource) *CounterNetwork {
	if src == nil {
		src = gopsutilSource{}
	}
	return &CounterNetwork{iface: iface, clk: clk, src: src}
}

// Read implements Network.
func (n *CounterNetwork) Read(ctx context.Context) (NetworkReading, error) {
	name, err := n.pickInterface(ctx)
	if err != nil {
		return NetworkReading{}, err
	}
	counters, err := n.src.Counters(ctx)
	if err != nil {
		return NetworkReading{}, fmt.Errorf("read network counters: %w", err)
	}
	idx := slices.IndexFunc(counters, func(c psnet.IOCountersStat) bool { return c.Name == name })
	if idx < 0 {
		return NetworkReading{}, fmt.Errorf("%w: no counters for %s", ErrNoInterface, name)
	}
	total := counters[idx].BytesRecv + counters[idx].BytesSent
	now := n.clk.Now()

	n.mu.Lock()
	defer n.mu.Unlock()
	var mbps float64
	if n.lastIface == name && !n.lastAt.IsZero() && total >= n.lastBytes {
		if secs := now.Sub(n.lastAt).Seconds(); secs > 0 {
			mbps = float64(total-n.lastBytes) * 8 / 1e6 / secs
		}
	}
	n.lastBytes, n.lastAt, n.lastIface = total, now, name

	return NetworkReading{Kind: KindOf(name), Mbps: mbps}, nil
}

func (n *CounterNetwork) pickInterface(ctx context.Context) (string, error) {
	ifaces, err := n.src.Interfaces(ctx)
	if err != nil {
		return "", fmt.Errorf("list network interfaces: %w", err)
	}
	var candidates []string
	for _, ifc := range ifaces {
		if !slices.Contains(ifc.Flags, "up") || slices.Contains(ifc.Flags, "loopback") {
			continue
		}
		if n.iface != "" && ifc.Name != n.iface {
			continue
		}
		candidates = append(candidates, ifc.Name)
	}
	if len(candidates) == 0 {
		return "", ErrNoInterface
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}

	counters, err := n.src.Counters(ctx)
	if err != nil {
		return "", fmt.Errorf("read network counters: %w", err)
	}
	best, bestBytes := candidates[0], uint64(0)
	for _, c := range counters {
		if !slices.Contains(candidates, c.Name) {
			continue
		}
		if b := c.BytesRecv + c.BytesSent; b > bestBytes {
			best, bestBytes = c.Name, b
		}
	}
	return best, nil
}

// KindOf classifies an interface by its Linux naming convention.
func KindOf(name string) string {
	switch {
	case strings.HasPrefix(name, "wl"), strings.HasPrefix(name, "wifi"), strings.HasPrefix(name, "ath"):
		return NetworkWiFi
	case strings.HasPrefix(name, "ww"), strings.HasPrefix(name, "rmnet"), strings.HasPrefix(name, "usb"):
		return NetworkCellular
	case strings.HasPrefix(name, "eth"), strings.HasPrefix(name, "en"):
		return NetworkEthernet
	default:
		return NetworkUnknown
	}
}

// SimulatedNetwork reports an unknown link with no throughput figure.
type SimulatedNetwork struct{}

// Read implements Network.
func (SimulatedNetwork) Read(context.Context) (NetworkReading, error) {
	return NetworkReading{Kind: NetworkUnknown, Simulated: true}, nil
}
