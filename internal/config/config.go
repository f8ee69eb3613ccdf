// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package config loads Marquee's configuration from defaults, an optional
// YAML file and environment variables, in that order of precedence.
package config

import "time"

// Config is the complete agent configuration.
type Config struct {
	Display    DisplayConfig    `koanf:"display"`
	Playback   PlaybackConfig   `koanf:"playback"`
	Health     HealthConfig     `koanf:"health"`
	Ping       PingConfig       `koanf:"ping"`
	Kiosk      KioskConfig      `koanf:"kiosk"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	Store      StoreConfig      `koanf:"store"`
	NATS       NATSConfig       `koanf:"nats"`
	LocalStore LocalStoreConfig `koanf:"local_store"`
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
}

// DisplayConfig identifies this display. OwnerID is the initial operator
// assignment; the device record in the shared store overrides it.
type DisplayConfig struct {
	ID      string `koanf:"id" validate:"required"`
	OwnerID string `koanf:"owner_id"`
	Name    string `koanf:"name"`
}

// PlaybackConfig tunes the rotation controller.
type PlaybackConfig struct {
	MediaLoadTimeout time.Duration `koanf:"media_load_timeout" validate:"gt=0"`
	RetryAttempts    int           `koanf:"retry_attempts" validate:"gte=1"`
	RetryBackoff     time.Duration `koanf:"retry_backoff" validate:"gte=0"`
	FailureDisplay   time.Duration `koanf:"failure_display" validate:"gte=0"`
	MinWatchTime     time.Duration `koanf:"min_watch_time" validate:"gte=0"`
	PrefetchEnabled  bool          `koanf:"prefetch_enabled"`
	PrefetchTimeout  time.Duration `koanf:"prefetch_timeout" validate:"gt=0"`
}

// HealthConfig tunes the device health sampler and status pushes.
type HealthConfig struct {
	Interval            time.Duration `koanf:"interval" validate:"gt=0"`
	ProbeURL            string        `koanf:"probe_url" validate:"required,url"`
	ProbeTimeout        time.Duration `koanf:"probe_timeout" validate:"gt=0"`
	LocationTimeout     time.Duration `koanf:"location_timeout" validate:"gt=0"`
	LocationCacheTTL    time.Duration `koanf:"location_cache_ttl" validate:"gte=0"`
	GeoIPURL            string        `koanf:"geoip_url" validate:"omitempty,url"`
	StaticLatitude      float64       `koanf:"static_latitude" validate:"latitude"`
	StaticLongitude     float64       `koanf:"static_longitude" validate:"longitude"`
	StaticAddress       string        `koanf:"static_address"`
	DataRateMBPerMinute float64       `koanf:"data_rate_mb_per_minute" validate:"gte=0"`
	LowBatteryThreshold int           `koanf:"low_battery_threshold" validate:"gte=0,lte=100"`
	StatusPushInterval  time.Duration `koanf:"status_push_interval" validate:"gt=0"`
	BatteryIndex        int           `koanf:"battery_index" validate:"gte=-1"`
	NetworkInterface    string        `koanf:"network_interface"`
	SimulateBattery     bool          `koanf:"simulate_battery"`
	SimulateNetwork     bool          `koanf:"simulate_network"`
}

// PingConfig tunes the remote ping responder.
type PingConfig struct {
	Interval      time.Duration `koanf:"interval" validate:"gt=0"`
	AnsweredCache int           `koanf:"answered_cache" validate:"gt=0"`
}

// KioskConfig tunes the lockdown manager.
type KioskConfig struct {
	PointerHideDelay     time.Duration `koanf:"pointer_hide_delay" validate:"gt=0"`
	FullscreenRetryDelay time.Duration `koanf:"fullscreen_retry_delay" validate:"gt=0"`
}

// TelemetryConfig tunes the best-effort analytics writer.
type TelemetryConfig struct {
	QueueSize             int           `koanf:"queue_size" validate:"gt=0"`
	WriteTimeout          time.Duration `koanf:"write_timeout" validate:"gt=0"`
	BreakerFailures       uint32        `koanf:"breaker_failures" validate:"gt=0"`
	BreakerOpenTimeout    time.Duration `koanf:"breaker_open_timeout" validate:"gt=0"`
	BreakerHalfOpenProbes uint32        `koanf:"breaker_half_open_probes" validate:"gt=0"`
}

// StoreConfig selects the shared store backend.
type StoreConfig struct {
	// Backend is nats or memory.
	Backend string `koanf:"backend" validate:"oneof=nats memory"`
}

// NATSConfig configures the NATS JetStream shared store.
type NATSConfig struct {
	URL               string        `koanf:"url"`
	EmbeddedServer    bool          `koanf:"embedded_server"`
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port" validate:"gte=-1,lte=65535"`
	StoreDir          string        `koanf:"store_dir"`
	MaxMemory         int64         `koanf:"max_memory"`
	MaxStore          int64         `koanf:"max_store"`
	PlaylistBucket    string        `koanf:"playlist_bucket" validate:"required"`
	DeviceBucket      string        `koanf:"device_bucket" validate:"required"`
	PingBucket        string        `koanf:"ping_bucket" validate:"required"`
	AnalyticsStream   string        `koanf:"analytics_stream" validate:"required"`
	AnalyticsSubject  string        `koanf:"analytics_subject" validate:"required"`
	AnalyticsMaxAge   time.Duration `koanf:"analytics_max_age" validate:"gt=0"`
	DuplicateWindow   time.Duration `koanf:"duplicate_window" validate:"gt=0"`
	MaxReconnects     int           `koanf:"max_reconnects"`
	ReconnectWait     time.Duration `koanf:"reconnect_wait" validate:"gt=0"`
	ReconnectBuffer   int           `koanf:"reconnect_buffer"`
	ConnectTimeout    time.Duration `koanf:"connect_timeout" validate:"gt=0"`
	PublishBreakerMax uint32        `koanf:"publish_breaker_failures" validate:"gt=0"`
}

// LocalStoreConfig configures durable device-local storage.
type LocalStoreConfig struct {
	// Path of the badger directory. Empty keeps state in memory only.
	Path string `koanf:"path"`
}

// ServerConfig configures the local HTTP surface.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	// AllowedOrigins may call the API and open the renderer socket from a
	// browser. Same-host and loopback origins are always allowed.
	AllowedOrigins []string `koanf:"allowed_origins"`
	// ExitAttemptsPerMinute bounds kiosk exit attempts per client.
	ExitAttemptsPerMinute int `koanf:"exit_attempts_per_minute" validate:"gt=0"`
}

// LoggingConfig configures the zerolog logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// SupervisorConfig tunes the suture restart policy.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold" validate:"gt=0"`
	FailureDecay     float64       `koanf:"failure_decay" validate:"gt=0"`
	FailureBackoff   time.Duration `koanf:"failure_backoff" validate:"gt=0"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}
