// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package platform

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/marquee/internal/models"
)

// HTTPProber measures round-trip time with a HEAD request.
type HTTPProber struct {
	url     string
	timeout time.Duration
	client  *http.Client
	now     func() time.Time
}

// NewHTTPProber returns a prober for url.
func NewHTTPProber(url string, timeout time.Duration, client *http.Client) *HTTPProber {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if client == nil {
		client = &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		}
	}
	return &HTTPProber{url: url, timeout: timeout, client: client, now: time.Now}
}

// Probe implements Prober. Any response, whatever its status, counts as a
// completed round trip.
func (p *HTTPProber) Probe(ctx context.Context) int64 {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, http.NoBody)
	if err != nil {
		return models.PingFailed
	}
	req.Header.Set("Cache-Control", "no-cache")

	start := p.now()
	resp, err := p.client.Do(req)
	if err != nil {
		return models.PingFailed
	}
	_ = resp.Body.Close()
	return p.now().Sub(start).Milliseconds()
}
