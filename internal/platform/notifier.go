// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package platform

import (
	"context"
	"errors"

	"github.com/tomtom215/marquee/internal/logging"
	"github.com/tomtom215/marquee/internal/models"
)

// LogNotifier writes alerts to the log. It is the notifier of last
// resort on hosts without a notification surface.
type LogNotifier struct{}

// Notify implements Notifier.
func (LogNotifier) Notify(_ context.Context, alert models.Alert) error {
	logging.Warn().
		Str("component", "notifier").
		Str("alert", string(alert.Kind)).
		Int("battery_percent", alert.Battery).
		Msg(alert.Message)
	return nil
}

// Notifiers fans an alert out to every notifier.
type Notifiers []Notifier

// Notify implements Notifier. Every notifier is called; errors are
// joined.
func (ns Notifiers) Notify(ctx context.Context, alert models.Alert) error {
	var errs []error
	for _, n := range ns {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
