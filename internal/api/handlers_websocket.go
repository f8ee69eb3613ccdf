// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package api

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/marquee/internal/logging"
	ws "github.com/tomtom215/marquee/internal/websocket"
)

// originPolicy decides which browser origins may call the API.
type originPolicy struct {
	allowed map[string]struct{}
}

func newOriginPolicy(origins []string) originPolicy {
	p := originPolicy{allowed: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		p.allowed[strings.TrimRight(o, "/")] = struct{}{}
	}
	return p
}

// Allows reports whether a request with the given Origin header from a
// client that addressed host may proceed. Requests without an Origin do
// not come from a browser page and are allowed.
func (p originPolicy) Allows(origin, host string) bool {
	if origin == "" {
		return true
	}
	if _, ok := p.allowed[origin]; ok {
		return true
	}
	if _, ok := p.allowed["*"]; ok {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if strings.EqualFold(u.Host, host) {
		return true
	}
	return isLoopback(u.Hostname())
}

func isLoopback(hostname string) bool {
	if strings.EqualFold(hostname, "localhost") {
		return true
	}
	ip := net.ParseIP(hostname)
	return ip != nil && ip.IsLoopback()
}

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin: func(r *http.Request) bool {
			if h.origins.Allows(r.Header.Get("Origin"), r.Host) {
				return true
			}
			logging.Ctx(r.Context()).Warn().
				Str("origin", r.Header.Get("Origin")).
				Msg("WebSocket connection rejected from unauthorized origin")
			return false
		},
	}
}

// WebSocket upgrades a renderer connection and registers it with the hub.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		NewResponseWriter(w, r).Fail(http.StatusServiceUnavailable, "WebSocket service unavailable")
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := ws.NewClient(h.hub, conn)
	if !h.hub.Add(client) {
		_ = conn.Close()
		return
	}
	// The request context ends when this handler returns; the connection
	// outlives it.
	client.Start(context.WithoutCancel(r.Context()))
}
