// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package playback implements the rotation controller: the state machine
// that decides which playlist item is on screen, when it advances and how
// media failures are recovered.
//
// All controller state is owned by the goroutine running Run. Renderer
// callbacks, viewer input and timers post events into that loop.
package playback

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/marquee/internal/clock"
	"github.com/tomtom215/marquee/internal/config"
	"github.com/tomtom215/marquee/internal/logging"
	"github.com/tomtom215/marquee/internal/metrics"
	"github.com/tomtom215/marquee/internal/models"
	"github.com/tomtom215/marquee/internal/session"
	"github.com/tomtom215/marquee/internal/validation"
)

const eventBuffer = 64

var (
	// ErrUnknownItem is returned for input about an item that is not
	// currently presenting.
	ErrUnknownItem = errors.New("playback: item is not presenting")

	// ErrNoCallToAction is returned by Click for items without a link.
	ErrNoCallToAction = errors.New("playback: item has no call to action")

	// ErrStopped is returned for input while Run is not running.
	ErrStopped = errors.New("playback: controller stopped")
)

// PlaylistSource streams playlist snapshots sorted by order.
type PlaylistSource interface {
	WatchPlaylist(ctx context.Context, displayID string) (<-chan []models.PlaylistItem, error)
}

// Emitter receives analytics events. It must not block.
type Emitter interface {
	Emit(ev models.AnalyticsEvent) error
}

// Frame is what the renderer is asked to show.
type Frame struct {
	Item    models.PlaylistItem `json:"item"`
	Index   int                 `json:"index"`
	Count   int                 `json:"count"`
	Attempt int                 `json:"attempt"`
}

// Renderer is the on-screen surface. Media frames are expected to report
// back through MediaStarted, MediaEnded and MediaFailed.
type Renderer interface {
	Render(ctx context.Context, f Frame) error
	ShowFailure(ctx context.Context, item models.PlaylistItem, reason string) error
	ShowCallToAction(ctx context.Context, item models.PlaylistItem) error
	ShowEmpty(ctx context.Context) error
}

// Config tunes the controller.
type Config struct {
	MediaLoadTimeout time.Duration
	RetryAttempts    int
	RetryBackoff     time.Duration
	FailureDisplay   time.Duration
	MinWatchTime     time.Duration
	PrefetchTimeout  time.Duration
}

// ConfigFrom maps the agent configuration.
func ConfigFrom(cfg *config.PlaybackConfig) Config {
	return Config{
		MediaLoadTimeout: cfg.MediaLoadTimeout,
		RetryAttempts:    cfg.RetryAttempts,
		RetryBackoff:     cfg.RetryBackoff,
		FailureDisplay:   cfg.FailureDisplay,
		MinWatchTime:     cfg.MinWatchTime,
		PrefetchTimeout:  cfg.PrefetchTimeout,
	}
}

// DefaultConfig returns the documented rotation policy.
func DefaultConfig() Config {
	return Config{
		MediaLoadTimeout: 10 * time.Second,
		RetryAttempts:    3,
		RetryBackoff:     time.Second,
		FailureDisplay:   3 * time.Second,
		MinWatchTime:     time.Second,
		PrefetchTimeout:  10 * time.Second,
	}
}

// Option configures a Controller.
type Option func(*Controller)

// WithPrefetcher enables metadata prefetch of the next media item.
func WithPrefetcher(p Prefetcher) Option {
	return func(c *Controller) { c.prefetcher = p }
}

// WithObserver registers fn to receive the now-playing snapshot after
// every state change. fn runs on the controller goroutine and must not
// block.
func WithObserver(fn func(*models.NowPlaying)) Option {
	return func(c *Controller) { c.observer = fn }
}

// Controller is the playback rotation state machine.
type Controller struct {
	cfg        Config
	src        PlaylistSource
	sess       *session.Session
	emitter    Emitter
	renderer   Renderer
	clk        clock.Clock
	prefetcher Prefetcher
	observer   func(*models.NowPlaying)
	log        zerolog.Logger

	events chan event
	wg     sync.WaitGroup

	// stopped is closed when a run ends and replaced when the next begins.
	runMu   sync.Mutex
	stopped chan struct{}

	// Owned by the loop goroutine.
	items       []models.PlaylistItem
	index       int
	current     models.PlaylistItem
	state       State
	attempt     int
	since       time.Time
	presentedAt time.Time
	timer       *clock.Timer
	timerGen    uint64

	mu         sync.Mutex
	nowPlaying *models.NowPlaying
	ctaItem    string
}

// New returns an idle controller for the session's display.
func New(cfg Config, src PlaylistSource, sess *session.Session, emitter Emitter, renderer Renderer, clk clock.Clock, opts ...Option) *Controller {
	def := DefaultConfig()
	if cfg.MediaLoadTimeout <= 0 {
		cfg.MediaLoadTimeout = def.MediaLoadTimeout
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = def.RetryAttempts
	}
	if cfg.PrefetchTimeout <= 0 {
		cfg.PrefetchTimeout = def.PrefetchTimeout
	}
	c := &Controller{
		cfg:      cfg,
		src:      src,
		sess:     sess,
		emitter:  emitter,
		renderer: renderer,
		clk:      clk,
		log:      logging.WithComponent("playback"),
		events:   make(chan event, eventBuffer),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run subscribes to the playlist and drives the rotation until ctx is
// done. The subscription is released and every timer stopped on return,
// leaving the controller idle. A closed subscription is an error so a
// supervisor can call Run again on the same controller.
func (c *Controller) Run(ctx context.Context) error {
	c.runMu.Lock()
	select {
	case <-c.stopped:
		c.stopped = make(chan struct{})
	default:
	}
	c.runMu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer c.teardown(cancel)

	playlist, err := c.src.WatchPlaylist(ctx, c.sess.DisplayID())
	if err != nil {
		return fmt.Errorf("watch playlist: %w", err)
	}
	c.log.Info().Str("display_id", c.sess.DisplayID()).Msg("Rotation controller started")

	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("Rotation controller stopped")
			return ctx.Err()
		case items, ok := <-playlist:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errors.New("playlist subscription closed")
			}
			c.handle(ctx, event{kind: evPlaylist, items: items})
		case ev := <-c.events:
			c.handle(ctx, ev)
		}
	}
}

// teardown ends the run: in-flight prefetches are cancelled, input is
// refused and the state machine returns to idle for the next run.
func (c *Controller) teardown(cancel context.CancelFunc) {
	cancel()
	c.stopTimer()
	if c.state == StatePresenting {
		c.exitPresenting()
	}

	c.runMu.Lock()
	close(c.stopped)
	c.runMu.Unlock()
	c.wg.Wait()

drain:
	for {
		select {
		case <-c.events:
		default:
			break drain
		}
	}
	c.items = nil
	c.index = 0
	c.current = models.PlaylistItem{}
	c.attempt = 0
	c.setState(StateIdle)
}

func (c *Controller) stopCh() <-chan struct{} {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	return c.stopped
}

// MediaStarted reports that the renderer began playing itemID.
func (c *Controller) MediaStarted(itemID string) error {
	return c.post(event{kind: evMediaStarted, itemID: itemID})
}

// MediaEnded reports the natural end of itemID.
func (c *Controller) MediaEnded(itemID string) error {
	return c.post(event{kind: evMediaEnded, itemID: itemID})
}

// MediaFailed reports a load or decode error for itemID.
func (c *Controller) MediaFailed(itemID, reason string) error {
	return c.post(event{kind: evMediaFailed, itemID: itemID, reason: reason})
}

// Click reports a tap on the presenting item's call to action.
func (c *Controller) Click(itemID string) error {
	c.mu.Lock()
	np, cta := c.nowPlaying, c.ctaItem
	c.mu.Unlock()
	if np == nil || np.ItemID != itemID || np.State != StatePresenting.String() {
		return ErrUnknownItem
	}
	if cta != itemID {
		return ErrNoCallToAction
	}
	return c.post(event{kind: evClick, itemID: itemID})
}

// NowPlaying returns the item on screen, or nil when nothing is.
func (c *Controller) NowPlaying() *models.NowPlaying {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nowPlaying == nil {
		return nil
	}
	np := *c.nowPlaying
	return &np
}

func (c *Controller) post(ev event) error {
	stopped := c.stopCh()
	select {
	case <-stopped:
		return ErrStopped
	default:
	}
	select {
	case c.events <- ev:
		return nil
	case <-stopped:
		return ErrStopped
	}
}

func (c *Controller) handle(ctx context.Context, ev event) {
	switch ev.kind {
	case evPlaylist:
		c.onPlaylist(ctx, ev.items)
	case evTimer:
		if ev.gen != c.timerGen {
			return
		}
		c.timer = nil
		c.onTimer(ctx, ev.timer)
	case evMediaStarted:
		if c.state == StateLoading && c.isCurrentMedia(ev.itemID) {
			c.stopTimer()
			c.present(ctx)
		}
	case evMediaEnded:
		if c.state == StatePresenting && c.isCurrentMedia(ev.itemID) {
			c.advance(ctx)
		}
	case evMediaFailed:
		if (c.state == StateLoading || c.state == StatePresenting) && c.isCurrentMedia(ev.itemID) {
			c.mediaError(ctx, ev.reason)
		}
	case evClick:
		if c.state == StatePresenting && c.current.ID == ev.itemID && c.current.HasCallToAction() {
			c.emit(models.NewClickEvent(ev.itemID))
			if err := c.renderer.ShowCallToAction(ctx, c.current); err != nil {
				c.log.Debug().Err(err).Msg("Render call to action failed")
			}
		}
	}
}

func (c *Controller) isCurrentMedia(itemID string) bool {
	return c.current.ID == itemID && c.current.IsMedia()
}

// onPlaylist applies a new snapshot. The current item is tracked by id so
// reorders neither skip nor repeat it; if it was removed the rotation
// restarts at index 0.
func (c *Controller) onPlaylist(ctx context.Context, items []models.PlaylistItem) {
	items = c.playable(items)
	metrics.PlaybackPlaylistSize.Set(float64(len(items)))
	if len(items) == 0 {
		c.items = nil
		c.enterEmpty(ctx)
		return
	}

	prev := c.state
	c.items = items
	if prev == StateIdle || prev == StateEmpty {
		c.start(ctx, 0)
		return
	}

	idx := models.IndexOf(items, c.current.ID)
	if idx < 0 {
		c.log.Info().Str("item_id", c.current.ID).Msg("Current item removed from playlist, restarting rotation")
		if prev == StatePresenting {
			c.exitPresenting()
		}
		c.start(ctx, 0)
		return
	}
	c.index = idx
	c.current = items[idx]
	c.publish()
}

// playable drops items that fail validation. A zero duration would
// otherwise advance the rotation without pause.
func (c *Controller) playable(items []models.PlaylistItem) []models.PlaylistItem {
	out := items[:0:0]
	for i := range items {
		if err := validation.ValidateStruct(&items[i]); err != nil {
			metrics.PlaybackItemsRejected.Inc()
			c.log.Warn().Str("item_id", items[i].ID).Str("reason", err.Error()).Msg("Skipping invalid playlist item")
			continue
		}
		out = append(out, items[i])
	}
	return out
}

func (c *Controller) onTimer(ctx context.Context, kind timerKind) {
	switch kind {
	case timerAdvance:
		if c.state == StatePresenting {
			c.advance(ctx)
		}
	case timerLoadTimeout:
		if c.state == StateLoading {
			c.mediaError(ctx, "load timeout")
		}
	case timerRetry:
		if c.state == StateError {
			c.load(ctx)
		}
	case timerSkip:
		if c.state == StateError {
			c.advance(ctx)
		}
	}
}

// start begins a fresh visit of items[i].
func (c *Controller) start(ctx context.Context, i int) {
	c.stopTimer()
	c.index = i
	c.current = c.items[i]
	c.attempt = 0
	c.load(ctx)
}

func (c *Controller) load(ctx context.Context) {
	c.attempt++
	c.setState(StateLoading)
	frame := Frame{Item: c.current, Index: c.index, Count: len(c.items), Attempt: c.attempt}
	if err := c.renderer.Render(ctx, frame); err != nil {
		c.log.Debug().Err(err).Str("item_id", c.current.ID).Msg("Render failed")
	}
	if !c.current.IsMedia() {
		c.present(ctx)
		return
	}
	c.arm(timerLoadTimeout, c.cfg.MediaLoadTimeout)
}

// present enters Presenting: one view event, then the advance timer for
// non-media items. Media items advance on their end event only.
func (c *Controller) present(ctx context.Context) {
	c.presentedAt = c.clk.Now()
	c.setState(StatePresenting)
	metrics.PlaybackPresentations.WithLabelValues(string(c.current.Kind)).Inc()
	c.emit(models.NewViewEvent(c.current.ID))

	if !c.current.IsMedia() {
		c.arm(timerAdvance, time.Duration(c.current.DurationSeconds)*time.Second)
	}
	c.prefetchNext(ctx)
}

// exitPresenting reports watch time when the item was on screen long
// enough to count as seen.
func (c *Controller) exitPresenting() {
	elapsed := c.clk.Now().Sub(c.presentedAt)
	metrics.PlaybackWatchSeconds.Observe(elapsed.Seconds())
	if elapsed <= c.cfg.MinWatchTime {
		return
	}
	c.emit(models.NewWatchTimeEvent(c.current.ID, int64(math.Round(elapsed.Seconds()))))
}

func (c *Controller) advance(ctx context.Context) {
	c.stopTimer()
	if c.state == StatePresenting {
		c.exitPresenting()
	}
	c.setState(StateTransitioning)
	c.start(ctx, (c.index+1)%len(c.items))
}

// mediaError retries the current item after the backoff until the
// attempts are used up, then shows the failure and moves on.
func (c *Controller) mediaError(ctx context.Context, reason string) {
	c.stopTimer()
	if c.state == StatePresenting {
		c.exitPresenting()
	}
	c.setState(StateError)

	if c.attempt < c.cfg.RetryAttempts {
		metrics.PlaybackMediaRetries.Inc()
		c.log.Warn().Str("item_id", c.current.ID).Int("attempt", c.attempt).Str("reason", reason).Msg("Media failed, retrying")
		c.arm(timerRetry, c.cfg.RetryBackoff)
		return
	}

	metrics.PlaybackMediaFailures.Inc()
	c.log.Warn().Str("item_id", c.current.ID).Int("attempts", c.attempt).Str("reason", reason).Msg("Media failed, skipping item")
	if err := c.renderer.ShowFailure(ctx, c.current, reason); err != nil {
		c.log.Debug().Err(err).Msg("Render failure notice failed")
	}
	c.arm(timerSkip, c.cfg.FailureDisplay)
}

func (c *Controller) enterEmpty(ctx context.Context) {
	c.stopTimer()
	if c.state == StatePresenting {
		c.exitPresenting()
	}
	if c.state == StateEmpty {
		return
	}
	c.current = models.PlaylistItem{}
	c.attempt = 0
	c.setState(StateEmpty)
	c.log.Info().Msg("Playlist empty, waiting for items")
	if err := c.renderer.ShowEmpty(ctx); err != nil {
		c.log.Debug().Err(err).Msg("Render empty state failed")
	}
}

func (c *Controller) setState(s State) {
	if c.state != s {
		metrics.RecordTransition(c.state.String(), s.String())
	}
	c.state = s
	c.since = c.clk.Now()
	c.publish()
}

func (c *Controller) publish() {
	var np *models.NowPlaying
	cta := ""
	if c.state != StateIdle && c.state != StateEmpty {
		np = &models.NowPlaying{
			ItemID:  c.current.ID,
			Index:   c.index,
			State:   c.state.String(),
			Since:   c.since,
			Attempt: c.attempt,
		}
		if c.current.HasCallToAction() {
			cta = c.current.ID
		}
	}
	c.mu.Lock()
	c.nowPlaying, c.ctaItem = np, cta
	c.mu.Unlock()
	if c.observer != nil {
		c.observer(np)
	}
}

func (c *Controller) emit(ev models.AnalyticsEvent) {
	if err := c.emitter.Emit(ev); err != nil {
		c.log.Debug().Err(err).Str("kind", string(ev.Kind)).Msg("Analytics event dropped")
	}
}

// arm replaces the controller's timer. A stale timer that already fired
// is ignored by generation.
func (c *Controller) arm(kind timerKind, d time.Duration) {
	c.stopTimer()
	gen := c.timerGen
	c.timer = c.clk.AfterFunc(d, func() {
		_ = c.post(event{kind: evTimer, timer: kind, gen: gen})
	})
}

func (c *Controller) stopTimer() {
	c.timer.Stop()
	c.timer = nil
	c.timerGen++
}
