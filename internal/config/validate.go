// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package config

import (
	"errors"
	"fmt"

	"github.com/tomtom215/marquee/internal/validation"
)

// Validate checks field rules and cross-field constraints.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}

	if c.Store.Backend == "nats" && !c.NATS.EmbeddedServer && c.NATS.URL == "" {
		return errors.New("nats.url is required when nats.embedded_server is false")
	}
	if c.Store.Backend == "nats" && c.NATS.EmbeddedServer && c.NATS.StoreDir == "" {
		return errors.New("nats.store_dir is required for the embedded server")
	}
	if c.Health.StatusPushInterval < c.Health.Interval {
		return fmt.Errorf("health.status_push_interval (%s) must not be shorter than health.interval (%s)",
			c.Health.StatusPushInterval, c.Health.Interval)
	}
	if c.Ping.Interval > c.Health.Interval {
		return fmt.Errorf("ping.interval (%s) must not exceed health.interval (%s)",
			c.Ping.Interval, c.Health.Interval)
	}
	return nil
}

// LocationConfigured reports whether static coordinates were supplied.
func (h HealthConfig) LocationConfigured() bool {
	return h.StaticLatitude != 0 || h.StaticLongitude != 0
}
