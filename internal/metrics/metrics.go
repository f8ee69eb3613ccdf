// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Rotation controller
	PlaybackTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_playback_transitions_total",
			Help: "Rotation controller state transitions",
		},
		[]string{"from", "to"},
	)

	PlaybackPresentations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_playback_presentations_total",
			Help: "Items that entered the presenting state, by kind",
		},
		[]string{"kind"},
	)

	PlaybackMediaRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marquee_playback_media_retries_total",
			Help: "Media load retries after a load or decode error",
		},
	)

	PlaybackMediaFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marquee_playback_media_failures_total",
			Help: "Media items skipped after exhausting retries",
		},
	)

	PlaybackPlaylistSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "marquee_playback_playlist_items",
			Help: "Items in the current playlist snapshot",
		},
	)

	PlaybackItemsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marquee_playback_items_rejected_total",
			Help: "Playlist items dropped from a snapshot for failing validation",
		},
	)

	PlaybackWatchSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "marquee_playback_watch_seconds",
			Help:    "Time items spent on screen",
			Buckets: []float64{1, 2, 5, 10, 15, 30, 60, 120, 300},
		},
	)

	// Telemetry emitter
	TelemetryEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_telemetry_events_total",
			Help: "Analytics events by kind and outcome (written, dropped, failed)",
		},
		[]string{"kind", "outcome"},
	)

	TelemetryQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "marquee_telemetry_queue_depth",
			Help: "Analytics events waiting to be written",
		},
	)

	TelemetryBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "marquee_telemetry_breaker_state",
			Help: "Telemetry circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	// Health sampler
	HealthSamples = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marquee_health_samples_total",
			Help: "Device health samples taken",
		},
	)

	HealthBatteryPercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "marquee_health_battery_percent",
			Help: "Last sampled battery level",
		},
	)

	HealthPingMs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "marquee_health_ping_ms",
			Help: "Last probe round trip in milliseconds (-1 on failure)",
		},
	)

	HealthCapabilityFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_health_capability_fallbacks_total",
			Help: "Samples that used a simulated or empty capability reading",
		},
		[]string{"capability"},
	)

	HealthLowBatteryAlerts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marquee_health_low_battery_alerts_total",
			Help: "Low battery alerts raised",
		},
	)

	StatusPushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_status_pushes_total",
			Help: "Device status writes to the shared store by outcome",
		},
		[]string{"outcome"},
	)

	// Ping responder
	PingsAnswered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_pings_answered_total",
			Help: "Remote ping requests handled by outcome",
		},
		[]string{"outcome"},
	)

	// Kiosk lockdown
	KioskActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "marquee_kiosk_active",
			Help: "1 while kiosk lockdown is active",
		},
	)

	KioskExitAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_kiosk_exit_attempts_total",
			Help: "Kiosk exit attempts by result",
		},
		[]string{"result"},
	)

	KioskFullscreenRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marquee_kiosk_fullscreen_retries_total",
			Help: "Fullscreen re-entry attempts after an unexpected exit",
		},
	)

	// Overlay hub
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "marquee_websocket_connections",
			Help: "Connected renderer clients",
		},
	)

	WSMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_websocket_messages_sent_total",
			Help: "Messages broadcast to renderer clients by type",
		},
		[]string{"type"},
	)

	// Shared store
	StorePublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_store_publishes_total",
			Help: "Analytics messages published to the event stream by outcome",
		},
		[]string{"outcome"},
	)

	// Local API
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marquee_api_request_duration_seconds",
			Help:    "Local API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// RecordTransition records a rotation state change.
func RecordTransition(from, to string) {
	PlaybackTransitions.WithLabelValues(from, to).Inc()
}

// RecordTelemetry records the outcome of one analytics event.
func RecordTelemetry(kind, outcome string) {
	TelemetryEvents.WithLabelValues(kind, outcome).Inc()
}

// RecordSample records a completed health sample.
func RecordSample(battery int, pingMs int64) {
	HealthSamples.Inc()
	HealthBatteryPercent.Set(float64(battery))
	HealthPingMs.Set(float64(pingMs))
}

// RecordStatusPush records a device status write.
func RecordStatusPush(err error) {
	StatusPushes.WithLabelValues(outcome(err)).Inc()
}

// RecordPing records a ping request completion.
func RecordPing(err error) {
	PingsAnswered.WithLabelValues(outcome(err)).Inc()
}

// RecordPublish records an analytics publish to the event stream.
func RecordPublish(err error) {
	StorePublishes.WithLabelValues(outcome(err)).Inc()
}

// RecordExitAttempt records a kiosk exit attempt.
func RecordExitAttempt(ok bool) {
	result := "rejected"
	if ok {
		result = "accepted"
	}
	KioskExitAttempts.WithLabelValues(result).Inc()
}

// SetKioskActive updates the kiosk gauge.
func SetKioskActive(active bool) {
	if active {
		KioskActive.Set(1)
		return
	}
	KioskActive.Set(0)
}

// RecordAPIRequest records a local API request.
func RecordAPIRequest(method, route, status string, d time.Duration) {
	APIRequestDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
