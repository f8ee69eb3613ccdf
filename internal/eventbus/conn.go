// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package eventbus

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/marquee/internal/logging"
)

// Connect opens a client connection that reconnects indefinitely (or up
// to cfg.MaxReconnects) and logs connection state changes.
func Connect(cfg ConnConfig) (*natsgo.Conn, error) {
	nc, err := natsgo.Connect(cfg.URL, connOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS %s: %w", cfg.URL, err)
	}
	return nc, nil
}

func connOptions(cfg ConnConfig) []natsgo.Option {
	log := logging.WithComponent("nats")
	opts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.ReconnectBufSize(cfg.ReconnectBuffer),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		natsgo.ErrorHandler(func(_ *natsgo.Conn, sub *natsgo.Subscription, err error) {
			ev := log.Error().Err(err)
			if sub != nil {
				ev = ev.Str("subject", sub.Subject)
			}
			ev.Msg("NATS error")
		}),
	}
	if cfg.Name != "" {
		opts = append(opts, natsgo.Name(cfg.Name))
	}
	if cfg.ConnectTimeout > 0 {
		opts = append(opts, natsgo.Timeout(cfg.ConnectTimeout))
	}
	return opts
}

// NewWatermillLogger returns a Watermill logger that writes through the
// process logger.
func NewWatermillLogger() watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logging.NewSlogLogger())
}
