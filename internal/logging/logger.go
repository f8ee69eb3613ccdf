// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package logging provides the zerolog-based logger shared by every Marquee
// component.
//
//	logging.Init(logging.Config{Level: "info", Format: "json", DisplayID: id})
//	logging.Info().Str("item", item.ID).Msg("Presenting")
//	log := logging.WithComponent("playback")
//
// Every entry written after Init carries the display_id field, so logs
// shipped from many displays can be told apart. Always terminate a chain
// with Msg or Send; an unterminated event is never written.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Level is one of trace, debug, info, warn, error, disabled.
	Level string
	// Format is json or console.
	Format string
	// Caller adds file:line to every entry.
	Caller bool
	// DisplayID is stamped on every entry when set.
	DisplayID string
	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns the configuration used before Init.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json", Output: os.Stderr}
}

var (
	mu   sync.RWMutex
	base zerolog.Logger
)

//nolint:gochecknoinits // logging must work before Init is called
func init() {
	base = build(DefaultConfig())
}

// Init replaces the global logger. Safe to call more than once.
func Init(cfg Config) {
	l := build(cfg)
	mu.Lock()
	base = l
	mu.Unlock()
}

func build(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.TimestampFieldName = "time"
	zerolog.MessageFieldName = "message"

	var out io.Writer = os.Stderr
	if cfg.Output != nil {
		out = cfg.Output
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	c := zerolog.New(out).With().Timestamp()
	if cfg.DisplayID != "" {
		c = c.Str("display_id", cfg.DisplayID)
	}
	if cfg.Caller {
		c = c.Caller()
	}
	return c.Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Logger returns a copy of the global logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// WithComponent returns a child logger tagged with component. Components
// take it once at construction, so a later Init does not reach them.
func WithComponent(component string) zerolog.Logger {
	l := Logger()
	return l.With().Str("component", component).Logger()
}

// Debug starts a debug entry on the global logger.
func Debug() *zerolog.Event { l := Logger(); return l.Debug() }

// Info starts an info entry on the global logger.
func Info() *zerolog.Event { l := Logger(); return l.Info() }

// Warn starts a warning entry on the global logger.
func Warn() *zerolog.Event { l := Logger(); return l.Warn() }

// Error starts an error entry on the global logger.
func Error() *zerolog.Event { l := Logger(); return l.Error() }

// Fatal starts a fatal entry; os.Exit(1) follows Msg.
func Fatal() *zerolog.Event { l := Logger(); return l.Fatal() }

// NewTestLogger returns a JSON logger writing to w.
func NewTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}
