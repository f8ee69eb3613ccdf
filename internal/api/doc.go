// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

/*
Package api provides the local HTTP surface of the agent, served on the
display itself for the renderer page and for an operator standing at the
device.

Endpoints:

  - GET  /healthz             liveness
  - GET  /metrics             Prometheus exposition
  - GET  /ws                  renderer WebSocket
  - GET  /v1/status           latest sample, now playing, kiosk state
  - POST /v1/kiosk/enter      start lockdown, returns the exit code once
  - POST /v1/kiosk/exit       end lockdown with {"code": "123456"}
  - GET  /v1/kiosk/policy     current lockdown policy
  - POST /v1/playback/click   call-to-action click with {"item_id": "..."}

Every JSON response uses the APIResponse envelope. Errors carry a stable
machine-readable code and the request id for log correlation.
*/
package api
