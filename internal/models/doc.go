// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

/*
Package models defines the records shared by the engine, the shared store
and the local HTTP surface.

Operator-owned records:

  - PlaylistItem: one scheduled item of a display's rotation
  - DeviceRecord: display name and owner assignment
  - PingRequest: a remote health check awaiting an answer

Agent-owned records:

  - DeviceStatus: the latest sample and playback state, upserted separately
    from DeviceRecord
  - AnalyticsEvent: append-only view, click and watch-time records
  - PingResponse: written in place on the matching PingRequest

Local-only state:

  - KioskSession: lockdown flag and exit code, persisted in the local store
  - DeviceSample: one health reading, superseded by the next
  - Alert: an on-device notification

All types serialize with snake_case JSON keys. Kind strings such as
EventWatchTime keep the spelling stored by existing operator tooling.
*/
package models
