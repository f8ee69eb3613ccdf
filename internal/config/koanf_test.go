// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate points CONFIG_PATH at a missing file and moves into an empty
// directory so no stray config.yaml is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv(ConfigPathEnvVar, filepath.Join(dir, "missing.yaml"))
	return dir
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Health.Interval != 30*time.Second {
		t.Errorf("Health.Interval = %v, want 30s", cfg.Health.Interval)
	}
	if cfg.Health.ProbeTimeout != 5*time.Second {
		t.Errorf("Health.ProbeTimeout = %v, want 5s", cfg.Health.ProbeTimeout)
	}
	if cfg.Health.LocationCacheTTL != 5*time.Minute {
		t.Errorf("Health.LocationCacheTTL = %v, want 5m", cfg.Health.LocationCacheTTL)
	}
	if cfg.Health.DataRateMBPerMinute != 2.6 {
		t.Errorf("Health.DataRateMBPerMinute = %v, want 2.6", cfg.Health.DataRateMBPerMinute)
	}
	if cfg.Health.LowBatteryThreshold != 40 {
		t.Errorf("Health.LowBatteryThreshold = %d, want 40", cfg.Health.LowBatteryThreshold)
	}
	if cfg.Ping.Interval != 5*time.Second {
		t.Errorf("Ping.Interval = %v, want 5s", cfg.Ping.Interval)
	}
	if cfg.Playback.RetryAttempts != 3 || cfg.Playback.RetryBackoff != time.Second {
		t.Errorf("Playback retry = %d/%v, want 3/1s", cfg.Playback.RetryAttempts, cfg.Playback.RetryBackoff)
	}
	if cfg.Playback.FailureDisplay != 3*time.Second {
		t.Errorf("Playback.FailureDisplay = %v, want 3s", cfg.Playback.FailureDisplay)
	}
	if cfg.Kiosk.PointerHideDelay != 3*time.Second {
		t.Errorf("Kiosk.PointerHideDelay = %v, want 3s", cfg.Kiosk.PointerHideDelay)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := map[string]string{
		"DISPLAY_ID":           "display.id",
		"PING_INTERVAL":        "ping.interval",
		"STATUS_PUSH_INTERVAL": "health.status_push_interval",
		"LOG_LEVEL":            "logging.level",
		"HOME":                 "",
		"PATH":                 "",
	}
	for in, want := range tests {
		if got := envTransformFunc(in); got != want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadRequiresDisplayID(t *testing.T) {
	isolate(t)
	t.Setenv("DISPLAY_ID", "")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() without display id should fail")
	}
	if !strings.Contains(err.Error(), "ID") {
		t.Errorf("error %v should name the ID field", err)
	}
}

func TestLoadEnvVars(t *testing.T) {
	isolate(t)
	t.Setenv("DISPLAY_ID", "lobby-1")
	t.Setenv("STATUS_PUSH_INTERVAL", "45s")
	t.Setenv("LOW_BATTERY_THRESHOLD", "25")
	t.Setenv("STORE_BACKEND", "memory")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Display.ID != "lobby-1" {
		t.Errorf("Display.ID = %q", cfg.Display.ID)
	}
	if cfg.Health.StatusPushInterval != 45*time.Second {
		t.Errorf("StatusPushInterval = %v, want 45s", cfg.Health.StatusPushInterval)
	}
	if cfg.Health.LowBatteryThreshold != 25 {
		t.Errorf("LowBatteryThreshold = %d, want 25", cfg.Health.LowBatteryThreshold)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("Store.Backend = %q, want memory", cfg.Store.Backend)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "marquee.yaml")
	yaml := `
display:
  id: file-display
  owner_id: owner-7
ping:
  interval: 3s
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Display.ID != "file-display" || cfg.Display.OwnerID != "owner-7" {
		t.Errorf("Display = %+v", cfg.Display)
	}
	if cfg.Ping.Interval != 3*time.Second {
		t.Errorf("Ping.Interval = %v, want 3s", cfg.Ping.Interval)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, env should win over file", cfg.Logging.Level)
	}
}

func TestValidateCrossField(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "push faster than sampling",
			mutate:  func(c *Config) { c.Health.StatusPushInterval = 10 * time.Second },
			wantErr: "status_push_interval",
		},
		{
			name:    "ping slower than sampling",
			mutate:  func(c *Config) { c.Ping.Interval = time.Minute },
			wantErr: "ping.interval",
		},
		{
			name: "external nats without url",
			mutate: func(c *Config) {
				c.NATS.EmbeddedServer = false
				c.NATS.URL = ""
			},
			wantErr: "nats.url",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Store.Backend = "redis" },
			wantErr: "Backend",
		},
		{
			name:    "battery threshold out of range",
			mutate:  func(c *Config) { c.Health.LowBatteryThreshold = 140 },
			wantErr: "LowBatteryThreshold",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Display.ID = "d1"
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}
