// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

/*
Package websocket is the channel between the agent and the on-screen
renderer.

The renderer is a thin page that connects to /ws. The agent owns every
state machine and tells the renderer what to show; the renderer reports
media lifecycle, viewer input and host fullscreen changes back.

	┌─────────────┐   render, failure, cta, empty,   ┌──────────┐
	│   agent     │   sample, alert, kiosk, host      │ renderer │
	│ Hub/Bridge  │ ────────────────────────────────▶ │  (page)  │
	│             │ ◀──────────────────────────────── │          │
	└─────────────┘   media_started, media_ended,     └──────────┘
	                  media_error, click, input, key,
	                  fullscreen_change, ping

Screen and kiosk messages are sticky: a renderer that connects or
reconnects first receives the latest of each, so a page reload resumes the
current item and lockdown without waiting for the next change.

Each client has two goroutines:
  - readPump: decodes inbound messages and hands them to the hub handler
  - writePump: writes queued messages and keepalive pings
*/
package websocket
