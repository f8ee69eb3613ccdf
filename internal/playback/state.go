// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package playback

import "github.com/tomtom215/marquee/internal/models"

// State is a rotation controller state.
type State int

const (
	StateIdle State = iota
	StateLoading
	StatePresenting
	StateTransitioning
	StateError
	StateEmpty
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePresenting:
		return "presenting"
	case StateTransitioning:
		return "transitioning"
	case StateError:
		return "error"
	case StateEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

type eventKind int

const (
	evPlaylist eventKind = iota
	evTimer
	evMediaStarted
	evMediaEnded
	evMediaFailed
	evClick
)

// timerKind names the single timer the controller owns at any moment.
type timerKind int

const (
	timerAdvance timerKind = iota
	timerLoadTimeout
	timerRetry
	timerSkip
)

func (k timerKind) String() string {
	switch k {
	case timerAdvance:
		return "advance"
	case timerLoadTimeout:
		return "load_timeout"
	case timerRetry:
		return "retry"
	case timerSkip:
		return "skip"
	default:
		return "unknown"
	}
}

type event struct {
	kind   eventKind
	items  []models.PlaylistItem
	itemID string
	reason string
	timer  timerKind
	gen    uint64
}
