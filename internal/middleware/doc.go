// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

/*
Package middleware provides the HTTP middleware shared by the local API.

Key Components:

  - Request ID: UUID-based request tracking, echoed in X-Request-ID and
    attached to the request context as the log correlation id
  - Prometheus Metrics: request latency by method, route pattern and status

Both are plain http.HandlerFunc wrappers so they compose with any router:

	handler := middleware.PrometheusMetrics(
	    middleware.RequestID(next),
	)

Route labels come from the chi route pattern when the request was served by
a chi router, which keeps label cardinality bounded for parameterised paths.
*/
package middleware
