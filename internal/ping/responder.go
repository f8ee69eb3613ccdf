// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package ping answers remote health-check requests. Operators create
// pending requests in the shared store; the responder polls for them and
// completes each one with the latest device sample.
package ping

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/marquee/internal/cache"
	"github.com/tomtom215/marquee/internal/clock"
	"github.com/tomtom215/marquee/internal/config"
	"github.com/tomtom215/marquee/internal/logging"
	"github.com/tomtom215/marquee/internal/metrics"
	"github.com/tomtom215/marquee/internal/models"
	"github.com/tomtom215/marquee/internal/session"
)

const (
	defaultInterval      = 5 * time.Second
	defaultAnsweredCache = 256
	answeredTTL          = time.Hour
	writeTimeout         = 10 * time.Second
)

// Store is the part of the shared store the responder uses.
type Store interface {
	PendingPings(ctx context.Context, displayID string) ([]models.PingRequest, error)
	CompletePing(ctx context.Context, displayID, requestID string, resp models.PingResponse) error
}

// SampleSource provides the most recent device sample.
type SampleSource interface {
	Latest() (models.DeviceSample, bool)
}

// Config tunes the responder.
type Config struct {
	Interval      time.Duration
	AnsweredCache int
}

// ConfigFrom maps the agent configuration.
func ConfigFrom(cfg *config.PingConfig) Config {
	return Config{Interval: cfg.Interval, AnsweredCache: cfg.AnsweredCache}
}

// Responder polls for and answers ping requests addressed to this display.
type Responder struct {
	store    Store
	samples  SampleSource
	sess     *session.Session
	clk      clock.Clock
	interval time.Duration
	answered *cache.LRU
	log      zerolog.Logger
}

// NewResponder returns a responder for the session's display.
func NewResponder(cfg Config, st Store, samples SampleSource, sess *session.Session, clk clock.Clock) *Responder {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.AnsweredCache <= 0 {
		cfg.AnsweredCache = defaultAnsweredCache
	}
	return &Responder{
		store:    st,
		samples:  samples,
		sess:     sess,
		clk:      clk,
		interval: cfg.Interval,
		answered: cache.NewLRU(clk, cfg.AnsweredCache, answeredTTL),
		log:      logging.WithComponent("ping"),
	}
}

// Run polls immediately and then every interval until ctx is done.
func (r *Responder) Run(ctx context.Context) error {
	r.log.Info().Dur("interval", r.interval).Msg("Ping responder started")
	ticker := r.clk.NewTicker(r.interval)
	defer ticker.Stop()

	r.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("Ping responder stopped")
			return ctx.Err()
		case <-ticker.C:
			r.Poll(ctx)
		}
	}
}

// Poll answers every pending request once and returns how many were
// completed. A request whose write fails is picked up again next poll.
// Requests stay pending until the first device sample exists.
func (r *Responder) Poll(ctx context.Context) int {
	sample, ok := r.samples.Latest()
	if !ok {
		r.log.Debug().Msg("No device sample yet, leaving ping requests pending")
		return 0
	}
	displayID := r.sess.DisplayID()
	pending, err := r.store.PendingPings(ctx, displayID)
	if err != nil {
		if ctx.Err() == nil {
			r.log.Warn().Err(err).Msg("Failed to list ping requests")
		}
		return 0
	}

	answered := 0
	for _, req := range pending {
		if ctx.Err() != nil {
			return answered
		}
		// The store may still report a request we completed a moment ago.
		if r.answered.Contains(req.ID) {
			continue
		}
		if err := r.answer(ctx, displayID, req.ID, sample); err != nil {
			metrics.RecordPing(err)
			r.log.Warn().Err(err).Str("request_id", req.ID).Msg("Failed to answer ping")
			continue
		}
		metrics.RecordPing(nil)
		r.answered.Add(req.ID)
		answered++
		r.log.Debug().Str("request_id", req.ID).Msg("Ping answered")
	}
	return answered
}

func (r *Responder) answer(ctx context.Context, displayID, requestID string, sample models.DeviceSample) error {
	resp := models.PingResponse{
		OwnerID:     r.sess.OwnerID(),
		SessionID:   r.sess.ID(),
		Sample:      &sample,
		RespondedAt: r.clk.Now(),
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return r.store.CompletePing(wctx, displayID, requestID, resp)
}
