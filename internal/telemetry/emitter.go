// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package telemetry is the best-effort analytics writer. Emit never
// blocks the caller: events go onto a bounded queue and a single worker
// appends them to the shared store. Failed writes are logged and dropped.
package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/marquee/internal/clock"
	"github.com/tomtom215/marquee/internal/config"
	"github.com/tomtom215/marquee/internal/eventbus"
	"github.com/tomtom215/marquee/internal/logging"
	"github.com/tomtom215/marquee/internal/metrics"
	"github.com/tomtom215/marquee/internal/models"
	"github.com/tomtom215/marquee/internal/session"
)

// ErrQueueFull is returned by Emit when the event was dropped.
var ErrQueueFull = errors.New("telemetry: queue full")

// Outcome labels for metrics.RecordTelemetry.
const (
	OutcomeWritten  = "written"
	OutcomeDropped  = "dropped"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected"
)

// Appender is the store capability the emitter needs.
type Appender interface {
	AppendEvent(ctx context.Context, ev models.AnalyticsEvent) error
}

// LocationFunc returns the most recent known location, or nil.
type LocationFunc func() *models.Location

// Config tunes the emitter.
type Config struct {
	QueueSize    int
	WriteTimeout time.Duration
	Breaker      eventbus.BreakerConfig
}

// ConfigFrom maps the agent configuration.
func ConfigFrom(cfg *config.TelemetryConfig) Config {
	return Config{
		QueueSize:    cfg.QueueSize,
		WriteTimeout: cfg.WriteTimeout,
		Breaker: eventbus.BreakerConfig{
			Name:             "telemetry",
			MaxRequests:      cfg.BreakerHalfOpenProbes,
			Timeout:          cfg.BreakerOpenTimeout,
			FailureThreshold: cfg.BreakerFailures,
		},
	}
}

// Emitter stamps and writes analytics events.
type Emitter struct {
	store    Appender
	sess     *session.Session
	clk      clock.Clock
	location LocationFunc
	timeout  time.Duration
	queue    chan models.AnalyticsEvent
	breaker  *gobreaker.CircuitBreaker[struct{}]
	log      zerolog.Logger
}

// New returns an emitter. location may be nil.
func New(cfg Config, st Appender, sess *session.Session, clk clock.Clock, location LocationFunc) *Emitter {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	return &Emitter{
		store:    st,
		sess:     sess,
		clk:      clk,
		location: location,
		timeout:  cfg.WriteTimeout,
		queue:    make(chan models.AnalyticsEvent, cfg.QueueSize),
		breaker: eventbus.NewCircuitBreaker[struct{}](cfg.Breaker, func(s gobreaker.State) {
			metrics.TelemetryBreakerState.Set(eventbus.BreakerStateValue(s))
		}),
		log: logging.WithComponent("telemetry"),
	}
}

// Emit stamps ev with the session identity, the local calendar date and
// the latest location, then queues it. It returns ErrQueueFull when the
// queue is saturated; callers are expected to ignore the error.
func (e *Emitter) Emit(ev models.AnalyticsEvent) error {
	ev = e.stamp(ev)
	select {
	case e.queue <- ev:
		metrics.TelemetryQueueDepth.Set(float64(len(e.queue)))
		return nil
	default:
		metrics.RecordTelemetry(string(ev.Kind), OutcomeDropped)
		e.log.Debug().Str("kind", string(ev.Kind)).Str("item_id", ev.ItemID).Msg("Telemetry queue full, dropping event")
		return ErrQueueFull
	}
}

func (e *Emitter) stamp(ev models.AnalyticsEvent) models.AnalyticsEvent {
	now := e.clk.Now()
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = now
	}
	if ev.OccurredOn == "" {
		ev.OccurredOn = models.LocalDate(ev.OccurredAt.Local())
	}
	if e.sess != nil {
		if ev.DisplayID == "" {
			ev.DisplayID = e.sess.DisplayID()
		}
		if ev.SessionID == "" {
			ev.SessionID = e.sess.ID()
		}
		if ev.OwnerID == "" {
			ev.OwnerID = e.sess.OwnerID()
		}
	}
	if ev.Geolocation == nil && e.location != nil {
		if loc := e.location(); loc != nil {
			l := *loc
			ev.Geolocation = &l
		}
	}
	return ev
}

// Pending returns the number of queued events.
func (e *Emitter) Pending() int { return len(e.queue) }

// Run writes queued events until ctx is done, then makes one bounded pass
// over whatever is still queued.
func (e *Emitter) Run(ctx context.Context) error {
	e.log.Info().Int("queue_size", cap(e.queue)).Msg("Telemetry emitter started")
	for {
		select {
		case <-ctx.Done():
			e.drain(context.WithoutCancel(ctx))
			e.log.Info().Msg("Telemetry emitter stopped")
			return ctx.Err()
		case ev := <-e.queue:
			e.write(ctx, ev)
		}
	}
}

func (e *Emitter) drain(ctx context.Context) {
	for {
		select {
		case ev := <-e.queue:
			e.write(ctx, ev)
		default:
			return
		}
	}
}

func (e *Emitter) write(ctx context.Context, ev models.AnalyticsEvent) {
	metrics.TelemetryQueueDepth.Set(float64(len(e.queue)))

	_, err := e.breaker.Execute(func() (struct{}, error) {
		wctx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()
		return struct{}{}, e.store.AppendEvent(wctx, ev)
	})
	switch {
	case err == nil:
		metrics.RecordTelemetry(string(ev.Kind), OutcomeWritten)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordTelemetry(string(ev.Kind), OutcomeRejected)
		e.log.Debug().Str("kind", string(ev.Kind)).Msg("Telemetry breaker open, dropping event")
	default:
		metrics.RecordTelemetry(string(ev.Kind), OutcomeFailed)
		e.log.Warn().Err(err).Str("kind", string(ev.Kind)).Str("item_id", ev.ItemID).Msg("Telemetry write failed, dropping event")
	}
}
