// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package health samples device health on a fixed interval, raises
// low-battery alerts and pushes a debounced status document to the
// shared store.
package health

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/marquee/internal/clock"
	"github.com/tomtom215/marquee/internal/config"
	"github.com/tomtom215/marquee/internal/logging"
	"github.com/tomtom215/marquee/internal/metrics"
	"github.com/tomtom215/marquee/internal/models"
	"github.com/tomtom215/marquee/internal/platform"
	"github.com/tomtom215/marquee/internal/session"
)

// subscriberBuffer is the per-subscriber backlog. Samples beyond it are
// dropped for that subscriber.
const subscriberBuffer = 4

// Config tunes the sampler.
type Config struct {
	Interval            time.Duration
	ReadTimeout         time.Duration
	DataRateMBPerMinute float64
	LowBatteryThreshold int
}

// ConfigFrom maps the agent configuration.
func ConfigFrom(cfg *config.HealthConfig) Config {
	return Config{
		Interval:            cfg.Interval,
		ReadTimeout:         cfg.ProbeTimeout,
		DataRateMBPerMinute: cfg.DataRateMBPerMinute,
		LowBatteryThreshold: cfg.LowBatteryThreshold,
	}
}

// Sampler gathers DeviceSamples. The latest sample is shared
// last-write-wins; every sample is also fanned out to subscribers.
type Sampler struct {
	cfg  Config
	caps platform.Capabilities
	sess *session.Session
	clk  clock.Clock
	low  *LowBatteryDetector
	log  zerolog.Logger

	latest atomic.Pointer[models.DeviceSample]

	mu     sync.Mutex
	subs   map[uint64]chan models.DeviceSample
	nextID uint64
}

// NewSampler returns a sampler over caps.
func NewSampler(cfg Config, caps platform.Capabilities, sess *session.Session, clk clock.Clock) *Sampler {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 5 * time.Second
	}
	return &Sampler{
		cfg:  cfg,
		caps: caps,
		sess: sess,
		clk:  clk,
		low:  NewLowBatteryDetector(cfg.LowBatteryThreshold),
		log:  logging.WithComponent("health"),
		subs: make(map[uint64]chan models.DeviceSample),
	}
}

// Run samples immediately and then every interval until ctx is done.
func (s *Sampler) Run(ctx context.Context) error {
	s.log.Info().Dur("interval", s.cfg.Interval).Msg("Health sampler started")
	ticker := s.clk.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Health sampler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.cycle(ctx)
		}
	}
}

func (s *Sampler) cycle(ctx context.Context) {
	sample, err := s.SampleOnce(ctx)
	if err != nil {
		s.log.Debug().Err(err).Msg("Sample abandoned")
		return
	}
	s.latest.Store(&sample)
	metrics.RecordSample(sample.BatteryPercent, sample.PingMs)
	s.broadcast(sample)

	if alert, ok := s.low.Observe(sample.BatteryPercent, sample.Charging); ok {
		metrics.HealthLowBatteryAlerts.Inc()
		s.log.Warn().Int("battery_percent", sample.BatteryPercent).Msg("Battery low")
		if s.caps.Notifier != nil {
			if err := s.caps.Notifier.Notify(ctx, alert); err != nil {
				s.log.Debug().Err(err).Msg("Low battery notification failed")
			}
		}
	}
}

// SampleOnce reads every capability concurrently and assembles a
// sample. Capability failures degrade to simulated or empty readings; the
// only error is ctx ending before every read completed, and the partial
// sample is discarded.
func (s *Sampler) SampleOnce(ctx context.Context) (models.DeviceSample, error) {
	var (
		battery platform.BatteryReading
		network platform.NetworkReading
		pingMs  = models.PingFailed
		loc     *models.Location
	)

	g, gctx := errgroup.WithContext(ctx)
	read := func(fn func(context.Context)) {
		g.Go(func() error {
			fn(gctx)
			return gctx.Err()
		})
	}
	read(func(ctx context.Context) {
		rctx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
		defer cancel()
		r, err := s.caps.Battery.Read(rctx)
		if err != nil {
			s.fallback("battery", err)
			r, _ = platform.SimulatedBattery{}.Read(rctx)
		}
		battery = r
	})
	read(func(ctx context.Context) {
		rctx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
		defer cancel()
		r, err := s.caps.Network.Read(rctx)
		if err != nil {
			s.fallback("network", err)
			r, _ = platform.SimulatedNetwork{}.Read(rctx)
		}
		network = r
	})
	read(func(ctx context.Context) {
		pingMs = s.caps.Prober.Probe(ctx)
	})
	read(func(ctx context.Context) {
		l, err := s.caps.Locator.Locate(ctx)
		if err != nil {
			s.fallback("location", err)
		}
		loc = l
	})
	if err := g.Wait(); err != nil {
		return models.DeviceSample{}, err
	}

	now := s.clk.Now()
	return models.DeviceSample{
		BatteryPercent:   battery.Percent,
		Charging:         battery.Charging,
		BatterySimulated: battery.Simulated,
		NetworkKind:      network.Kind,
		NetworkMbps:      round1(network.Mbps),
		NetworkSimulated: network.Simulated,
		PingMs:           pingMs,
		Online:           pingMs != models.PingFailed,
		Location:         loc,
		DataUsageMB:      s.dataUsage(now),
		SampledAt:        now,
	}, nil
}

func (s *Sampler) fallback(capability string, err error) {
	metrics.HealthCapabilityFallbacks.WithLabelValues(capability).Inc()
	s.log.Debug().Err(err).Str("capability", capability).Msg("Capability read failed")
}

// dataUsage estimates session data use from elapsed minutes times a
// blended per-minute rate.
func (s *Sampler) dataUsage(now time.Time) float64 {
	if s.sess == nil {
		return 0
	}
	return round1(s.sess.Elapsed(now).Minutes() * s.cfg.DataRateMBPerMinute)
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

// Latest returns the most recent sample.
func (s *Sampler) Latest() (models.DeviceSample, bool) {
	p := s.latest.Load()
	if p == nil {
		return models.DeviceSample{}, false
	}
	return *p, true
}

// LatestLocation returns the location of the most recent sample, or nil.
func (s *Sampler) LatestLocation() *models.Location {
	p := s.latest.Load()
	if p == nil || p.Location == nil {
		return nil
	}
	loc := *p.Location
	return &loc
}

// Subscribe returns a channel of new samples and a cancel func that
// releases it. A subscriber that falls behind misses samples.
func (s *Sampler) Subscribe() (<-chan models.DeviceSample, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	ch := make(chan models.DeviceSample, subscriberBuffer)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

func (s *Sampler) broadcast(sample models.DeviceSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- sample:
		default:
		}
	}
}
