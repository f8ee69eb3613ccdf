// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package kiosk

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/marquee/internal/clock"
	"github.com/tomtom215/marquee/internal/localstore"
	"github.com/tomtom215/marquee/internal/logging"
	"github.com/tomtom215/marquee/internal/metrics"
	"github.com/tomtom215/marquee/internal/models"
	"github.com/tomtom215/marquee/internal/validation"
)

const defaultMaxFullscreenBackoff = 30 * time.Second

// CodeGenerator returns a fresh 6-digit exit code.
type CodeGenerator func() (string, error)

// RandomCode draws a uniformly distributed 6-digit code from crypto/rand.
func RandomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate exit code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Option configures a Manager.
type Option func(*Manager)

// WithCodeGenerator replaces RandomCode.
func WithCodeGenerator(g CodeGenerator) Option {
	return func(m *Manager) { m.newCode = g }
}

// WithObserver registers fn to receive the policy after every state
// change. fn is called without the manager lock held.
func WithObserver(fn func(Policy)) Option {
	return func(m *Manager) { m.observer = fn }
}

// Manager is the lockdown state machine. It is the only writer of the
// kiosk session and of its persisted keys.
type Manager struct {
	kv       localstore.KV
	host     Host
	clk      clock.Clock
	cfg      Config
	newCode  CodeGenerator
	observer func(Policy)
	log      zerolog.Logger

	mu              sync.Mutex
	session         models.KioskSession
	gen             uint64
	pointerTimer    *clock.Timer
	fullscreenTimer *clock.Timer
	backoff         time.Duration
	exitingFS       bool
}

// NewManager returns an unlocked manager. Call Resume at startup to pick
// up a persisted lockdown.
func NewManager(cfg Config, kv localstore.KV, host Host, clk clock.Clock, opts ...Option) *Manager {
	if cfg.PointerHideDelay <= 0 {
		cfg.PointerHideDelay = 3 * time.Second
	}
	if cfg.FullscreenRetryDelay <= 0 {
		cfg.FullscreenRetryDelay = time.Second
	}
	if cfg.MaxFullscreenBackoff <= 0 {
		cfg.MaxFullscreenBackoff = defaultMaxFullscreenBackoff
	}
	m := &Manager{
		kv:      kv,
		host:    host,
		clk:     clk,
		cfg:     cfg,
		newCode: RandomCode,
		log:     logging.WithComponent("kiosk"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Enter locks the display and returns the exit code. The code is
// persisted before any restriction is applied; if persistence fails
// nothing changes.
func (m *Manager) Enter(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.session.Active {
		m.mu.Unlock()
		return "", ErrAlreadyActive
	}
	code, err := m.newCode()
	if err != nil {
		m.mu.Unlock()
		return "", err
	}
	if !validation.IsExitCode(code) {
		m.mu.Unlock()
		return "", fmt.Errorf("generated exit code is not 6 digits")
	}
	if err := m.kv.SetMany(ctx, map[string]string{KeyActive: "true", KeyExitCode: code}); err != nil {
		m.mu.Unlock()
		return "", fmt.Errorf("persist kiosk state: %w", err)
	}

	m.session = models.KioskSession{Active: true, ExitCode: code, FullscreenPending: true}
	m.lockLocked(ctx)
	policy := m.policyLocked()
	m.mu.Unlock()

	m.log.Info().Msg("Kiosk lockdown entered")
	m.notify(policy)
	return code, nil
}

// Resume reapplies a persisted lockdown at process start. Restrictions
// take effect immediately; fullscreen may stay pending until the host
// grants it. A persisted active flag without a valid code is discarded.
func (m *Manager) Resume(ctx context.Context) error {
	active, err := m.kv.Get(ctx, KeyActive)
	if errors.Is(err, localstore.ErrKeyNotFound) || (err == nil && active != "true") {
		metrics.SetKioskActive(false)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read kiosk state: %w", err)
	}
	code, err := m.kv.Get(ctx, KeyExitCode)
	if err != nil && !errors.Is(err, localstore.ErrKeyNotFound) {
		return fmt.Errorf("read kiosk exit code: %w", err)
	}
	if !validation.IsExitCode(code) {
		m.log.Warn().Msg("Persisted kiosk state has no valid exit code, discarding it")
		if err := m.kv.Delete(ctx, KeyActive, KeyExitCode); err != nil {
			return fmt.Errorf("clear kiosk state: %w", err)
		}
		return nil
	}

	m.mu.Lock()
	m.session = models.KioskSession{Active: true, ExitCode: code, FullscreenPending: true}
	m.lockLocked(ctx)
	policy := m.policyLocked()
	m.mu.Unlock()

	m.log.Info().Msg("Kiosk lockdown resumed")
	m.notify(policy)
	return nil
}

// lockLocked applies every restriction, arms the pointer timer and asks
// for fullscreen.
func (m *Manager) lockLocked(ctx context.Context) {
	m.gen++
	m.backoff = m.cfg.FullscreenRetryDelay
	m.exitingFS = false
	for _, r := range Restrictions {
		m.host.SetRestriction(r, true)
	}
	m.armPointerLocked()
	m.requestFullscreenLocked(ctx)
	metrics.SetKioskActive(true)
}

// Exit unlocks the display when code matches exactly. On any failure the
// lockdown stays fully in place.
func (m *Manager) Exit(ctx context.Context, code string) error {
	m.mu.Lock()
	if !m.session.Active {
		m.mu.Unlock()
		return ErrNotActive
	}
	if subtle.ConstantTimeCompare([]byte(code), []byte(m.session.ExitCode)) != 1 {
		m.mu.Unlock()
		metrics.RecordExitAttempt(false)
		m.log.Warn().Msg("Kiosk exit rejected")
		return ErrExitCodeMismatch
	}
	if err := m.kv.Delete(ctx, KeyActive, KeyExitCode); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("clear kiosk state: %w", err)
	}

	m.gen++
	m.pointerTimer.Stop()
	m.fullscreenTimer.Stop()
	m.pointerTimer, m.fullscreenTimer = nil, nil
	for _, r := range Restrictions {
		m.host.SetRestriction(r, false)
	}
	m.host.SetPointerVisible(true)
	m.session = models.KioskSession{}
	m.exitingFS = true
	if err := m.host.ExitFullscreen(ctx); err != nil {
		m.exitingFS = false
		m.log.Debug().Err(err).Msg("Exit fullscreen failed")
	}
	policy := m.policyLocked()
	m.mu.Unlock()

	metrics.RecordExitAttempt(true)
	metrics.SetKioskActive(false)
	m.log.Info().Msg("Kiosk lockdown exited")
	m.notify(policy)
	return nil
}

// NotifyInput reports viewer input. The pointer is shown and its hide
// timer restarted. A pending fullscreen request is retried, since input
// is the user gesture some hosts require.
func (m *Manager) NotifyInput(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.session.Active {
		return
	}
	m.host.SetPointerVisible(true)
	m.armPointerLocked()
	if m.session.FullscreenPending && m.fullscreenTimer == nil {
		m.requestFullscreenLocked(ctx)
	}
}

func (m *Manager) armPointerLocked() {
	m.pointerTimer.Stop()
	gen := m.gen
	m.pointerTimer = m.clk.AfterFunc(m.cfg.PointerHideDelay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.gen != gen || !m.session.Active {
			return
		}
		m.pointerTimer = nil
		m.host.SetPointerVisible(false)
	})
}

// NotifyFullscreenChange reports a host fullscreen transition. An
// unexpected exit while locked schedules re-entry after the retry delay;
// the exit code and restrictions are untouched.
func (m *Manager) NotifyFullscreenChange(ctx context.Context, fullscreen bool) {
	m.mu.Lock()
	if fullscreen {
		m.fullscreenTimer.Stop()
		m.fullscreenTimer = nil
		m.backoff = m.cfg.FullscreenRetryDelay
		changed := m.session.Active && m.session.FullscreenPending
		m.session.FullscreenPending = false
		policy := m.policyLocked()
		m.mu.Unlock()
		if changed {
			m.notify(policy)
		}
		return
	}

	if m.exitingFS {
		m.exitingFS = false
		m.mu.Unlock()
		return
	}
	if !m.session.Active {
		m.mu.Unlock()
		return
	}
	m.log.Warn().Msg("Unexpected fullscreen exit, re-entering")
	m.session.FullscreenPending = true
	m.scheduleFullscreenLocked(ctx, m.cfg.FullscreenRetryDelay)
	policy := m.policyLocked()
	m.mu.Unlock()
	m.notify(policy)
}

// requestFullscreenLocked asks the host for fullscreen. A refusal keeps
// the request pending and schedules a retry with backoff.
func (m *Manager) requestFullscreenLocked(ctx context.Context) {
	if err := m.host.RequestFullscreen(ctx); err != nil {
		m.log.Debug().Err(err).Dur("retry_in", m.backoff).Msg("Fullscreen request refused")
		m.scheduleFullscreenLocked(ctx, m.backoff)
		m.backoff = min(m.backoff*2, m.cfg.MaxFullscreenBackoff)
	}
}

func (m *Manager) scheduleFullscreenLocked(ctx context.Context, d time.Duration) {
	m.fullscreenTimer.Stop()
	gen := m.gen
	m.fullscreenTimer = m.clk.AfterFunc(d, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.gen != gen || !m.session.Active || !m.session.FullscreenPending {
			return
		}
		m.fullscreenTimer = nil
		metrics.KioskFullscreenRetries.Inc()
		m.requestFullscreenLocked(context.WithoutCancel(ctx))
	})
}

// AllowKey reports whether the host should deliver k to the page.
func (m *Manager) AllowKey(k KeyCombo) bool {
	m.mu.Lock()
	active := m.session.Active
	m.mu.Unlock()
	return !active || !IsDenied(k)
}

// Session returns a copy of the current session, including the code.
// Callers must not transmit the code.
func (m *Manager) Session() models.KioskSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Active reports whether lockdown is in force.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Active
}

// Policy returns the renderer-facing lockdown policy.
func (m *Manager) Policy() Policy {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.policyLocked()
}

func (m *Manager) policyLocked() Policy {
	if !m.session.Active {
		return Policy{}
	}
	return Policy{
		Active:              true,
		FullscreenPending:   m.session.FullscreenPending,
		DeniedKeys:          DeniedKeys(),
		SuppressContextMenu: true,
		SuppressZoom:        true,
		HideScrollbars:      true,
		PointerHideDelayMs:  m.cfg.PointerHideDelay.Milliseconds(),
	}
}

func (m *Manager) notify(p Policy) {
	if m.observer != nil {
		m.observer(p)
	}
}
