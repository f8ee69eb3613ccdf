// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package health

import (
	"fmt"

	"github.com/tomtom215/marquee/internal/models"
)

// DefaultLowBatteryThreshold is the percentage at or below which a
// discharging battery is low.
const DefaultLowBatteryThreshold = 40

// LowBatteryDetector raises one alert per low-battery episode. An episode
// ends when charging resumes or the level rises above the threshold.
type LowBatteryDetector struct {
	threshold int
	alerted   bool
}

// NewLowBatteryDetector returns a detector. A zero threshold selects the
// default.
func NewLowBatteryDetector(threshold int) *LowBatteryDetector {
	if threshold <= 0 {
		threshold = DefaultLowBatteryThreshold
	}
	return &LowBatteryDetector{threshold: threshold}
}

// Observe feeds one reading and returns an alert when a new episode
// starts.
func (d *LowBatteryDetector) Observe(percent int, charging bool) (models.Alert, bool) {
	low := !charging && percent <= d.threshold
	if !low {
		d.alerted = false
		return models.Alert{}, false
	}
	if d.alerted {
		return models.Alert{}, false
	}
	d.alerted = true
	return models.Alert{
		Kind:    models.AlertLowBattery,
		Message: fmt.Sprintf("Battery at %d%%. Connect the display to power.", percent),
		Battery: percent,
	}, true
}
