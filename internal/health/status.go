// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package health

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/marquee/internal/clock"
	"github.com/tomtom215/marquee/internal/logging"
	"github.com/tomtom215/marquee/internal/metrics"
	"github.com/tomtom215/marquee/internal/models"
	"github.com/tomtom215/marquee/internal/session"
)

const statusWriteTimeout = 10 * time.Second

// StatusWriter is the store capability the pusher needs.
type StatusWriter interface {
	UpsertDeviceStatus(ctx context.Context, st models.DeviceStatus) error
}

// StatusSources supplies the non-sample parts of the status document.
// Either func may be nil.
type StatusSources struct {
	NowPlaying  func() *models.NowPlaying
	KioskActive func() bool
}

// StatusPusher writes the device status at most once per interval. A
// sample arriving inside the window is held and written, as the latest
// pending sample, when the window reopens.
type StatusPusher struct {
	store    StatusWriter
	samples  *Sampler
	sess     *session.Session
	clk      clock.Clock
	sources  StatusSources
	limiter  *rate.Limiter
	flush    chan struct{}
	log      zerolog.Logger
	interval time.Duration
}

// NewStatusPusher returns a pusher limited to one write per interval.
func NewStatusPusher(st StatusWriter, samples *Sampler, sess *session.Session, clk clock.Clock, interval time.Duration, sources StatusSources) *StatusPusher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &StatusPusher{
		store:    st,
		samples:  samples,
		sess:     sess,
		clk:      clk,
		sources:  sources,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		flush:    make(chan struct{}, 1),
		log:      logging.WithComponent("status"),
		interval: interval,
	}
}

// Run consumes samples until ctx is done.
func (p *StatusPusher) Run(ctx context.Context) error {
	ch, cancel := p.samples.Subscribe()
	defer cancel()

	var (
		pending *models.DeviceSample
		timer   *clock.Timer
	)
	defer func() { timer.Stop() }()

	p.log.Info().Dur("min_interval", p.interval).Msg("Status pusher started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case sample, ok := <-ch:
			if !ok {
				return nil
			}
			pending = &sample
			if timer != nil {
				continue
			}
			now := p.clk.Now()
			r := p.limiter.ReserveN(now, 1)
			if d := r.DelayFrom(now); d > 0 {
				timer = p.clk.AfterFunc(d, func() {
					select {
					case p.flush <- struct{}{}:
					default:
					}
				})
				continue
			}
			p.push(ctx, *pending)
			pending = nil

		case <-p.flush:
			timer = nil
			if pending != nil {
				p.push(ctx, *pending)
				pending = nil
			}
		}
	}
}

func (p *StatusPusher) push(ctx context.Context, sample models.DeviceSample) {
	st := models.DeviceStatus{
		DisplayID: p.sess.DisplayID(),
		SessionID: p.sess.ID(),
		Sample:    &sample,
		LastSeen:  p.clk.Now(),
	}
	if p.sources.NowPlaying != nil {
		st.NowPlaying = p.sources.NowPlaying()
	}
	if p.sources.KioskActive != nil {
		st.KioskActive = p.sources.KioskActive()
	}

	wctx, cancel := context.WithTimeout(ctx, statusWriteTimeout)
	defer cancel()
	err := p.store.UpsertDeviceStatus(wctx, st)
	metrics.RecordStatusPush(err)
	if err != nil {
		p.log.Warn().Err(err).Msg("Device status push failed")
		return
	}
	p.log.Debug().Int("battery_percent", sample.BatteryPercent).Int64("ping_ms", sample.PingMs).Msg("Device status pushed")
}
