// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/marquee/internal/cache"
	"github.com/tomtom215/marquee/internal/clock"
	"github.com/tomtom215/marquee/internal/models"
)

// StaticLocator returns a fixed, operator-configured location.
type StaticLocator struct {
	Location models.Location
	Unknown  bool
}

// Locate implements Locator.
func (s StaticLocator) Locate(context.Context) (*models.Location, error) {
	if s.Unknown {
		return nil, nil
	}
	loc := s.Location
	return &loc, nil
}

// GeoIPLocator resolves the device's public address to an approximate
// location using an ip-api.com compatible endpoint.
type GeoIPLocator struct {
	url    string
	client *http.Client
}

// geoIPAccuracyM is the nominal accuracy reported for IP geolocation.
const geoIPAccuracyM = 25000

type geoIPResponse struct {
	Status     string  `json:"status"`
	Message    string  `json:"message"`
	Country    string  `json:"country"`
	RegionName string  `json:"regionName"`
	City       string  `json:"city"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
}

// NewGeoIPLocator returns a locator querying url.
func NewGeoIPLocator(url string, client *http.Client) *GeoIPLocator {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &GeoIPLocator{url: url, client: client}
}

// Locate implements Locator.
func (g *GeoIPLocator) Locate(ctx context.Context) (*models.Location, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create geoip request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query geoip: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geoip returned status %d", resp.StatusCode)
	}
	var result geoIPResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode geoip response: %w", err)
	}
	if result.Status != "" && result.Status != "success" {
		return nil, fmt.Errorf("geoip lookup failed: %s", result.Message)
	}

	return &models.Location{
		Lat:       result.Lat,
		Lon:       result.Lon,
		AccuracyM: geoIPAccuracyM,
		Address:   joinNonEmpty(result.City, result.RegionName, result.Country),
	}, nil
}

func joinNonEmpty(parts ...string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += p
	}
	return out
}

const locationKey = "location"

// CachedLocator bounds each lookup by timeout and serves the last good
// location for ttl. When a lookup fails after the cache expired, the
// last known location is returned along with the error.
type CachedLocator struct {
	inner   Locator
	timeout time.Duration
	cache   *cache.TTL[*models.Location]
	last    *models.Location
}

// NewCachedLocator wraps inner.
func NewCachedLocator(inner Locator, clk clock.Clock, timeout, ttl time.Duration) *CachedLocator {
	return &CachedLocator{
		inner:   inner,
		timeout: timeout,
		cache:   cache.NewTTL[*models.Location](clk, ttl),
	}
}

// ErrLocationTimeout is returned when a lookup exceeds its timeout.
var ErrLocationTimeout = errors.New("platform: location lookup timed out")

// Locate implements Locator. It is not safe for concurrent use; the
// health sampler is its only caller.
func (c *CachedLocator) Locate(ctx context.Context) (*models.Location, error) {
	if loc, ok := c.cache.Get(locationKey); ok {
		return loc, nil
	}

	lctx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		lctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	loc, err := c.inner.Locate(lctx)
	if err != nil {
		if errors.Is(lctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", ErrLocationTimeout, err)
		}
		return c.last, err
	}
	if loc != nil {
		c.cache.Set(locationKey, loc)
		c.last = loc
	}
	return loc, nil
}
