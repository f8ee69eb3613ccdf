// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package models

import (
	"testing"
	"time"
)

func ids(items []PlaylistItem) string {
	s := ""
	for _, it := range items {
		s += it.ID
	}
	return s
}

func TestSortPlaylist(t *testing.T) {
	tests := []struct {
		name  string
		items []PlaylistItem
		want  string
	}{
		{"dense", []PlaylistItem{{ID: "c", Order: 2}, {ID: "a", Order: 0}, {ID: "b", Order: 1}}, "abc"},
		{"gaps", []PlaylistItem{{ID: "b", Order: 7}, {ID: "a", Order: 3}}, "ab"},
		{"duplicates keep position", []PlaylistItem{{ID: "x", Order: 1}, {ID: "y", Order: 1}, {ID: "z", Order: 0}}, "zxy"},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SortPlaylist(tt.items)
			if ids(got) != tt.want {
				t.Errorf("SortPlaylist() = %s, want %s", ids(got), tt.want)
			}
		})
	}
}

func TestSortPlaylistCopies(t *testing.T) {
	src := []PlaylistItem{{ID: "b", Order: 1}, {ID: "a", Order: 0}}
	_ = SortPlaylist(src)
	if src[0].ID != "b" {
		t.Error("SortPlaylist mutated its input")
	}
}

func TestIndexOf(t *testing.T) {
	items := []PlaylistItem{{ID: "a"}, {ID: "b"}}
	if IndexOf(items, "b") != 1 {
		t.Error("IndexOf(b) != 1")
	}
	if IndexOf(items, "z") != -1 {
		t.Error("IndexOf(z) != -1")
	}
}

func TestLocalDate_NegativeOffset(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	at := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC).In(loc)
	if got := LocalDate(at); got != "2026-01-01" {
		t.Errorf("LocalDate() = %s, want 2026-01-01", got)
	}
}
