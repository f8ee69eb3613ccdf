// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package models

import (
	"fmt"
	"sort"
)

// ItemKind is the presentation template of a playlist item.
type ItemKind string

const (
	KindMedia   ItemKind = "media"
	KindArticle ItemKind = "article"
	KindListing ItemKind = "listing"
)

// PlaylistItem is one entry of a display's rotation. Items are authored
// elsewhere and are read-only to the engine.
type PlaylistItem struct {
	ID              string   `json:"id" validate:"required"`
	Kind            ItemKind `json:"kind" validate:"required,oneof=media article listing"`
	Title           string   `json:"title"`
	Body            string   `json:"body,omitempty"`
	MediaURL        string   `json:"media_url,omitempty" validate:"omitempty,url"`
	ImageURL        string   `json:"image_url,omitempty" validate:"omitempty,url"`
	LinkURL         string   `json:"link_url,omitempty" validate:"omitempty,url"`
	Order           int      `json:"order" validate:"gte=0"`
	DurationSeconds int      `json:"duration_seconds" validate:"gt=0"`
}

// IsMedia reports whether the item advances on media end rather than on
// its duration.
func (p PlaylistItem) IsMedia() bool { return p.Kind == KindMedia }

// HasCallToAction reports whether the item carries a tappable link.
func (p PlaylistItem) HasCallToAction() bool { return p.LinkURL != "" }

// String implements fmt.Stringer for log fields.
func (p PlaylistItem) String() string {
	return fmt.Sprintf("%s(%s #%d)", p.ID, p.Kind, p.Order)
}

// SortPlaylist returns a copy of items in scheduling order. Items are
// ordered by Order; duplicate or out-of-range orders keep their position
// in the source slice.
func SortPlaylist(items []PlaylistItem) []PlaylistItem {
	out := make([]PlaylistItem, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// IndexOf returns the position of the item with the given id, or -1.
func IndexOf(items []PlaylistItem, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}
