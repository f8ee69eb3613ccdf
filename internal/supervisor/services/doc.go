// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

/*
Package services adapts Marquee's components to suture.Service so the
supervisor tree can start, restart and stop them.

Wrappers:

  - RunnerService: any component with Run(ctx) error (rotation controller,
    health sampler, status pusher, ping responder, telemetry worker,
    renderer hub, local store maintenance)
  - HTTPServerService: the local HTTP surface; binds on every start so a
    restart after a listener failure rebinds the port
  - NATSServerService: watches the embedded NATS server and ends the tree
    when it dies, since every engine component depends on it

Every wrapper returns ctx.Err() on a requested shutdown and a wrapped error
otherwise, which suture counts toward the restart backoff.
*/
package services
