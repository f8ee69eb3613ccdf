// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package host provides an in-memory kiosk.Host. It holds the lockdown
// state the renderer should be showing and can forward every change to a
// sink, which is how the renderer bridge keeps the page in step.
package host

import (
	"context"
	"errors"
	"sync"

	"github.com/tomtom215/marquee/internal/kiosk"
)

// ErrFullscreenDenied is returned while fullscreen requests are refused.
var ErrFullscreenDenied = errors.New("host: fullscreen denied")

// Command is one host-level lockdown instruction.
type Command struct {
	Op          string            `json:"op"`
	Restriction kiosk.Restriction `json:"restriction,omitempty"`
	Enabled     bool              `json:"enabled"`
}

// Command ops.
const (
	OpFullscreen  = "fullscreen"
	OpPointer     = "pointer"
	OpRestriction = "restriction"
)

// Recorder is a kiosk.Host that records state and commands.
type Recorder struct {
	mu             sync.Mutex
	fullscreen     bool
	pointerVisible bool
	restrictions   map[kiosk.Restriction]bool
	denyFullscreen bool
	requests       int
	commands       []Command
	sink           func(Command)
}

var _ kiosk.Host = (*Recorder)(nil)

// NewRecorder returns a host with the pointer visible and nothing
// restricted. sink, when non-nil, receives every command; it is called
// with the recorder lock released and must not block.
func NewRecorder(sink func(Command)) *Recorder {
	return &Recorder{
		pointerVisible: true,
		restrictions:   make(map[kiosk.Restriction]bool),
		sink:           sink,
	}
}

// DenyFullscreen makes RequestFullscreen fail until called with false.
func (r *Recorder) DenyFullscreen(deny bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.denyFullscreen = deny
}

// RequestFullscreen implements kiosk.Host. The recorder does not flip its
// fullscreen flag here; the grant arrives as a change notification.
func (r *Recorder) RequestFullscreen(context.Context) error {
	r.mu.Lock()
	r.requests++
	if r.denyFullscreen {
		r.mu.Unlock()
		return ErrFullscreenDenied
	}
	r.mu.Unlock()
	r.emit(Command{Op: OpFullscreen, Enabled: true})
	return nil
}

// ExitFullscreen implements kiosk.Host.
func (r *Recorder) ExitFullscreen(context.Context) error {
	r.emit(Command{Op: OpFullscreen, Enabled: false})
	return nil
}

// SetPointerVisible implements kiosk.Host.
func (r *Recorder) SetPointerVisible(visible bool) {
	r.mu.Lock()
	r.pointerVisible = visible
	r.mu.Unlock()
	r.emit(Command{Op: OpPointer, Enabled: visible})
}

// SetRestriction implements kiosk.Host.
func (r *Recorder) SetRestriction(res kiosk.Restriction, enabled bool) {
	r.mu.Lock()
	r.restrictions[res] = enabled
	r.mu.Unlock()
	r.emit(Command{Op: OpRestriction, Restriction: res, Enabled: enabled})
}

// SetFullscreen records the host's actual fullscreen state.
func (r *Recorder) SetFullscreen(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fullscreen = on
}

func (r *Recorder) emit(c Command) {
	r.mu.Lock()
	r.commands = append(r.commands, c)
	sink := r.sink
	r.mu.Unlock()
	if sink != nil {
		sink(c)
	}
}

// Fullscreen reports the recorded fullscreen state.
func (r *Recorder) Fullscreen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fullscreen
}

// PointerVisible reports the pointer state.
func (r *Recorder) PointerVisible() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pointerVisible
}

// Restricted reports whether res is enabled.
func (r *Recorder) Restricted(res kiosk.Restriction) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.restrictions[res]
}

// FullscreenRequests returns the number of fullscreen requests seen.
func (r *Recorder) FullscreenRequests() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requests
}

// Commands returns a copy of the command log.
func (r *Recorder) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Command(nil), r.commands...)
}
