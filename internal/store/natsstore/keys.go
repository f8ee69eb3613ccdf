// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package natsstore

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/marquee/internal/models"
)

const (
	recordSuffix = "record"
	statusSuffix = "status"
)

// NATS KV key tokens. Dots separate the display id from the record id so
// one display can be watched with a single wildcard.
var tokenPattern = regexp.MustCompile(`^[-_=a-zA-Z0-9]+$`)

func checkToken(kind, v string) error {
	if !tokenPattern.MatchString(v) {
		return fmt.Errorf("invalid %s %q: must match %s", kind, v, tokenPattern)
	}
	return nil
}

func itemKey(displayID, itemID string) string    { return displayID + "." + itemID }
func recordKey(displayID string) string          { return displayID + "." + recordSuffix }
func statusKey(displayID string) string          { return displayID + "." + statusSuffix }
func pingKey(displayID, requestID string) string { return displayID + "." + requestID }
func displayFilter(displayID string) string      { return displayID + ".*" }

// eventSubject is analytics.<display>.<kind>.
func eventSubject(prefix string, ev models.AnalyticsEvent) string {
	return strings.Join([]string{prefix, ev.DisplayID, string(ev.Kind)}, ".")
}

// playlistState folds KV watch updates into the current item set for one
// display.
type playlistState struct {
	items map[string]models.PlaylistItem
}

func newPlaylistState() *playlistState {
	return &playlistState{items: make(map[string]models.PlaylistItem)}
}

// apply reports whether the state changed. Entries that fail to decode
// are dropped from the set.
func (p *playlistState) apply(key string, op jetstream.KeyValueOp, value []byte) (bool, error) {
	if op == jetstream.KeyValueDelete || op == jetstream.KeyValuePurge {
		if _, ok := p.items[key]; !ok {
			return false, nil
		}
		delete(p.items, key)
		return true, nil
	}
	var item models.PlaylistItem
	if err := json.Unmarshal(value, &item); err != nil {
		delete(p.items, key)
		return true, fmt.Errorf("decode playlist item %s: %w", key, err)
	}
	p.items[key] = item
	return true, nil
}

// snapshot returns a fresh slice sorted by order, ties by id.
func (p *playlistState) snapshot() []models.PlaylistItem {
	if len(p.items) == 0 {
		return nil
	}
	out := make([]models.PlaylistItem, 0, len(p.items))
	for _, it := range p.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return models.SortPlaylist(out)
}
