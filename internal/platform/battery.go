// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package platform

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/distatus/battery"
)

// ErrNoBattery is returned by FindDeviceBattery when no usable battery
// exists.
var ErrNoBattery = errors.New("platform: no battery")

// BatterySource lists the device batteries. battery.GetAll satisfies it.
type BatterySource func() ([]*battery.Battery, error)

// DeviceBattery reads one battery through the operating system's power
// supply interface.
type DeviceBattery struct {
	src   BatterySource
	index int
}

// FindDeviceBattery returns the battery at index, or the first usable
// battery when index is negative.
func FindDeviceBattery(src BatterySource, index int) (*DeviceBattery, error) {
	if src == nil {
		src = battery.GetAll
	}
	bats, err := src()
	if len(bats) == 0 {
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoBattery, err)
		}
		return nil, ErrNoBattery
	}
	if index >= 0 {
		if _, perr := pick(bats, err, index); perr != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoBattery, perr)
		}
		return &DeviceBattery{src: src, index: index}, nil
	}
	for i := range bats {
		if _, perr := pick(bats, err, i); perr == nil {
			return &DeviceBattery{src: src, index: i}, nil
		}
	}
	return nil, ErrNoBattery
}

// pick returns battery i when its level can be computed. A partial read
// is accepted as long as the charge counters are present.
func pick(bats []*battery.Battery, err error, i int) (*battery.Battery, error) {
	if i >= len(bats) || bats[i] == nil {
		return nil, fmt.Errorf("battery %d not present", i)
	}
	if err != nil {
		var errs battery.Errors
		if !errors.As(err, &errs) {
			return nil, err
		}
		if i < len(errs) && errs[i] != nil && bats[i].Full <= 0 {
			return nil, errs[i]
		}
	}
	if bats[i].Full <= 0 {
		return nil, fmt.Errorf("battery %d reports no full capacity", i)
	}
	return bats[i], nil
}

// Read implements Battery.
func (b *DeviceBattery) Read(_ context.Context) (BatteryReading, error) {
	bats, err := b.src()
	bat, err := pick(bats, err, b.index)
	if err != nil {
		return BatteryReading{}, fmt.Errorf("read battery: %w", err)
	}
	pct := int(math.Round(bat.Current / bat.Full * 100))
	pct = max(0, min(100, pct))
	return BatteryReading{Percent: pct, Charging: onExternalPower(bat.State.Raw)}, nil
}

// onExternalPower reports whether the supply is plugged in. Idle is the
// "Not charging" state of a battery held below full by its controller.
func onExternalPower(s battery.AgnosticState) bool {
	switch s {
	case battery.Charging, battery.Full, battery.Idle:
		return true
	default:
		return false
	}
}

// SimulatedBattery reports a full, charging battery. Unattended displays
// without a battery run on mains power.
type SimulatedBattery struct{}

// Read implements Battery.
func (SimulatedBattery) Read(context.Context) (BatteryReading, error) {
	return BatteryReading{Percent: 100, Charging: true, Simulated: true}, nil
}
