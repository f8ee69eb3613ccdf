// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package eventbus wires NATS JetStream for the shared store: an optional
// embedded server, client connections, stream provisioning and a
// circuit-breaker protected Watermill publisher for the analytics log.
package eventbus

import (
	"time"

	"github.com/tomtom215/marquee/internal/config"
)

// ServerConfig configures the embedded NATS server.
type ServerConfig struct {
	Host              string
	Port              int
	StoreDir          string
	JetStreamMaxMem   int64
	JetStreamMaxStore int64
}

// ConnConfig configures a client connection.
type ConnConfig struct {
	URL             string
	Name            string
	MaxReconnects   int
	ReconnectWait   time.Duration
	ReconnectBuffer int
	ConnectTimeout  time.Duration
}

// StreamConfig describes the analytics stream.
type StreamConfig struct {
	Name            string
	Subjects        []string
	MaxAge          time.Duration
	MaxBytes        int64
	DuplicateWindow time.Duration
	Replicas        int
}

// BreakerConfig configures a gobreaker circuit breaker.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// ServerConfigFrom maps the agent configuration.
func ServerConfigFrom(cfg *config.NATSConfig) ServerConfig {
	return ServerConfig{
		Host:              cfg.Host,
		Port:              cfg.Port,
		StoreDir:          cfg.StoreDir,
		JetStreamMaxMem:   cfg.MaxMemory,
		JetStreamMaxStore: cfg.MaxStore,
	}
}

// ConnConfigFrom maps the agent configuration. url overrides cfg.URL when
// set, which is how the embedded server's client URL is threaded through.
func ConnConfigFrom(cfg *config.NATSConfig, name, url string) ConnConfig {
	if url == "" {
		url = cfg.URL
	}
	return ConnConfig{
		URL:             url,
		Name:            name,
		MaxReconnects:   cfg.MaxReconnects,
		ReconnectWait:   cfg.ReconnectWait,
		ReconnectBuffer: cfg.ReconnectBuffer,
		ConnectTimeout:  cfg.ConnectTimeout,
	}
}

// AnalyticsStreamConfig maps the agent configuration.
func AnalyticsStreamConfig(cfg *config.NATSConfig) StreamConfig {
	return StreamConfig{
		Name:            cfg.AnalyticsStream,
		Subjects:        []string{cfg.AnalyticsSubject + ".>"},
		MaxAge:          cfg.AnalyticsMaxAge,
		MaxBytes:        -1,
		DuplicateWindow: cfg.DuplicateWindow,
		Replicas:        1,
	}
}

// PublishBreakerConfig maps the agent configuration.
func PublishBreakerConfig(cfg *config.NATSConfig) BreakerConfig {
	return BreakerConfig{
		Name:             "analytics-publish",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: cfg.PublishBreakerMax,
	}
}
