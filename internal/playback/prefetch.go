// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package playback

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Prefetcher warms the source of an upcoming media item. Only metadata is
// fetched.
type Prefetcher interface {
	Prefetch(ctx context.Context, url string) error
}

// HTTPPrefetcher issues a HEAD request for the media URL.
type HTTPPrefetcher struct {
	client *http.Client
}

// NewHTTPPrefetcher returns a prefetcher whose requests give up after
// timeout.
func NewHTTPPrefetcher(timeout time.Duration) *HTTPPrefetcher {
	return &HTTPPrefetcher{client: &http.Client{Timeout: timeout}}
}

// Prefetch implements Prefetcher.
func (p *HTTPPrefetcher) Prefetch(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("build prefetch request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("prefetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("prefetch %s: status %d", url, resp.StatusCode)
	}
	return nil
}

// prefetchNext warms the next media item in the background. Failures are
// ignored.
func (c *Controller) prefetchNext(ctx context.Context) {
	if c.prefetcher == nil || len(c.items) < 2 {
		return
	}
	next := c.items[(c.index+1)%len(c.items)]
	if !next.IsMedia() || next.MediaURL == "" || next.MediaURL == c.current.MediaURL {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, c.cfg.PrefetchTimeout)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		if err := c.prefetcher.Prefetch(pctx, next.MediaURL); err != nil {
			c.log.Debug().Err(err).Str("item_id", next.ID).Msg("Prefetch failed")
		}
	}()
}
