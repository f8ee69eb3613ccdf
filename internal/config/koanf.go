// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/marquee/config.yaml",
	"/etc/marquee/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Display: DisplayConfig{
			Name: "display",
		},
		Playback: PlaybackConfig{
			MediaLoadTimeout: 15 * time.Second,
			RetryAttempts:    3,
			RetryBackoff:     time.Second,
			FailureDisplay:   3 * time.Second,
			MinWatchTime:     time.Second,
			PrefetchEnabled:  true,
			PrefetchTimeout:  10 * time.Second,
		},
		Health: HealthConfig{
			Interval:            30 * time.Second,
			ProbeURL:            "https://www.gstatic.com/generate_204",
			ProbeTimeout:        5 * time.Second,
			LocationTimeout:     10 * time.Second,
			LocationCacheTTL:    5 * time.Minute,
			DataRateMBPerMinute: 2.6,
			LowBatteryThreshold: 40,
			StatusPushInterval:  30 * time.Second,
			BatteryIndex:        -1,
		},
		Ping: PingConfig{
			Interval:      5 * time.Second,
			AnsweredCache: 1024,
		},
		Kiosk: KioskConfig{
			PointerHideDelay:     3 * time.Second,
			FullscreenRetryDelay: time.Second,
		},
		Telemetry: TelemetryConfig{
			QueueSize:             256,
			WriteTimeout:          5 * time.Second,
			BreakerFailures:       5,
			BreakerOpenTimeout:    30 * time.Second,
			BreakerHalfOpenProbes: 1,
		},
		Store: StoreConfig{
			Backend: "nats",
		},
		NATS: NATSConfig{
			URL:               "nats://127.0.0.1:4222",
			EmbeddedServer:    true,
			Host:              "127.0.0.1",
			Port:              4222,
			StoreDir:          "/var/lib/marquee/jetstream",
			MaxMemory:         64 << 20,
			MaxStore:          1 << 30,
			PlaylistBucket:    "marquee_playlists",
			DeviceBucket:      "marquee_devices",
			PingBucket:        "marquee_pings",
			AnalyticsStream:   "MARQUEE_ANALYTICS",
			AnalyticsSubject:  "analytics",
			AnalyticsMaxAge:   30 * 24 * time.Hour,
			DuplicateWindow:   2 * time.Minute,
			MaxReconnects:     -1,
			ReconnectWait:     2 * time.Second,
			ReconnectBuffer:   8 << 20,
			ConnectTimeout:    10 * time.Second,
			PublishBreakerMax: 5,
		},
		LocalStore: LocalStoreConfig{
			Path: "/var/lib/marquee/local",
		},
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8765,
			ReadTimeout:     15 * time.Second,
			ShutdownTimeout: 10 * time.Second,

			ExitAttemptsPerMinute: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, the first config file
// found and the mapped environment variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envMappings maps environment variable names (lowercased) to config
// paths. Unmapped variables are ignored.
var envMappings = map[string]string{
	"display_id":       "display.id",
	"display_owner_id": "display.owner_id",
	"display_name":     "display.name",

	"playback_media_load_timeout": "playback.media_load_timeout",
	"playback_retry_attempts":     "playback.retry_attempts",
	"playback_retry_backoff":      "playback.retry_backoff",
	"playback_failure_display":    "playback.failure_display",
	"playback_min_watch_time":     "playback.min_watch_time",
	"playback_prefetch":           "playback.prefetch_enabled",

	"health_interval":           "health.interval",
	"health_probe_url":          "health.probe_url",
	"health_probe_timeout":      "health.probe_timeout",
	"health_location_timeout":   "health.location_timeout",
	"health_location_cache_ttl": "health.location_cache_ttl",
	"health_geoip_url":          "health.geoip_url",
	"display_latitude":          "health.static_latitude",
	"display_longitude":         "health.static_longitude",
	"display_address":           "health.static_address",
	"health_data_rate":          "health.data_rate_mb_per_minute",
	"low_battery_threshold":     "health.low_battery_threshold",
	"status_push_interval":      "health.status_push_interval",
	"battery_index":             "health.battery_index",
	"network_interface":         "health.network_interface",
	"simulate_battery":          "health.simulate_battery",
	"simulate_network":          "health.simulate_network",

	"ping_interval": "ping.interval",

	"kiosk_pointer_hide_delay":     "kiosk.pointer_hide_delay",
	"kiosk_fullscreen_retry_delay": "kiosk.fullscreen_retry_delay",

	"telemetry_queue_size":    "telemetry.queue_size",
	"telemetry_write_timeout": "telemetry.write_timeout",

	"store_backend": "store.backend",

	"nats_url":        "nats.url",
	"nats_embedded":   "nats.embedded_server",
	"nats_host":       "nats.host",
	"nats_port":       "nats.port",
	"nats_store_dir":  "nats.store_dir",
	"nats_max_memory": "nats.max_memory",
	"nats_max_store":  "nats.max_store",

	"local_store_path": "local_store.path",

	"http_host": "server.host",
	"http_port": "server.port",

	"http_exit_attempts_per_minute": "server.exit_attempts_per_minute",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
