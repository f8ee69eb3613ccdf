// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package services

import (
	"context"
	"errors"
	"fmt"
)

// Runner is a component that serves until ctx is done.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context) error

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context) error { return f(ctx) }

// errExitedEarly reports a component that returned before shutdown.
var errExitedEarly = errors.New("exited before shutdown")

// RunnerService wraps a Runner as a suture.Service.
type RunnerService struct {
	runner Runner
	name   string
}

// NewRunnerService wraps r under name, which suture uses in its logs.
func NewRunnerService(name string, r Runner) *RunnerService {
	return &RunnerService{runner: r, name: name}
}

// Serve implements suture.Service. A return while ctx is live is always an
// error, so suture restarts the component.
func (s *RunnerService) Serve(ctx context.Context) error {
	err := s.runner.Run(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err == nil {
		err = errExitedEarly
	}
	return fmt.Errorf("%s: %w", s.name, err)
}

// String implements fmt.Stringer for suture's logs.
func (s *RunnerService) String() string {
	return s.name
}
