// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package kiosk

import (
	"fmt"
	"sort"
	"strings"
)

// KeyCombo is a key press with its modifiers, as captured by the host
// before the page sees it.
type KeyCombo struct {
	Key   string `json:"key"`
	Ctrl  bool   `json:"ctrl,omitempty"`
	Shift bool   `json:"shift,omitempty"`
	Alt   bool   `json:"alt,omitempty"`
	Meta  bool   `json:"meta,omitempty"`
}

// keyAliases folds the spellings hosts report into one canonical name.
var keyAliases = map[string]string{
	"+":        "Plus",
	"=":        "Plus",
	"add":      "Plus",
	"plus":     "Plus",
	"-":        "Minus",
	"_":        "Minus",
	"subtract": "Minus",
	"minus":    "Minus",
	"tab":      "Tab",
	"escape":   "Escape",
	"esc":      "Escape",
}

func canonicalKey(k string) string {
	if alias, ok := keyAliases[strings.ToLower(k)]; ok {
		return alias
	}
	if k == "" {
		return ""
	}
	if len(k) == 1 {
		return strings.ToUpper(k)
	}
	// Function keys and named keys keep their casing convention: F5, Tab.
	if (k[0] == 'f' || k[0] == 'F') && len(k) <= 3 {
		return "F" + k[1:]
	}
	return k
}

// Normalize returns the combo with a canonical key name.
func (k KeyCombo) Normalize() KeyCombo {
	k.Key = canonicalKey(k.Key)
	return k
}

// String renders the combo as Ctrl+Shift+Alt+Meta+Key.
func (k KeyCombo) String() string {
	var parts []string
	if k.Ctrl {
		parts = append(parts, "Ctrl")
	}
	if k.Shift {
		parts = append(parts, "Shift")
	}
	if k.Alt {
		parts = append(parts, "Alt")
	}
	if k.Meta {
		parts = append(parts, "Meta")
	}
	return strings.Join(append(parts, canonicalKey(k.Key)), "+")
}

// ParseKeyCombo parses "Ctrl+Shift+I" style strings. Modifier names are
// case-insensitive; "Cmd" is accepted for Meta.
func ParseKeyCombo(s string) (KeyCombo, error) {
	var k KeyCombo
	// "Ctrl++" is Ctrl with the plus key.
	if strings.HasSuffix(s, "++") {
		s = strings.TrimSuffix(s, "++") + "+Plus"
	}
	parts := strings.Split(s, "+")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if i == len(parts)-1 {
			if p == "" {
				return KeyCombo{}, fmt.Errorf("key combo %q has no key", s)
			}
			k.Key = canonicalKey(p)
			break
		}
		switch strings.ToLower(p) {
		case "ctrl", "control":
			k.Ctrl = true
		case "shift":
			k.Shift = true
		case "alt", "option":
			k.Alt = true
		case "meta", "cmd", "command", "super":
			k.Meta = true
		default:
			return KeyCombo{}, fmt.Errorf("unknown modifier %q in %q", p, s)
		}
	}
	return k, nil
}

func mustParse(s string) KeyCombo {
	k, err := ParseKeyCombo(s)
	if err != nil {
		panic(err)
	}
	return k
}

// deniedKeys are suppressed while locked: reload, developer tools, tab
// and window management, browser zoom and application switching. Ctrl
// combos also deny their Meta twin for hosts with a Command key.
var deniedKeys = func() map[KeyCombo]struct{} {
	base := []string{
		"F5", "Ctrl+R", "Ctrl+Shift+R", "Ctrl+F5",
		"F12", "Ctrl+Shift+I", "Ctrl+Shift+J", "Ctrl+Shift+C", "Ctrl+U",
		"Ctrl+W", "Ctrl+F4", "Ctrl+T", "Ctrl+N", "Ctrl+Shift+N", "Ctrl+Shift+T",
		"Ctrl+Plus", "Ctrl+Shift+Plus", "Ctrl+Minus", "Ctrl+0",
		"Alt+Tab", "Alt+Shift+Tab", "Alt+F4", "F11",
	}
	out := make(map[KeyCombo]struct{}, len(base)*2)
	for _, s := range base {
		k := mustParse(s)
		out[k] = struct{}{}
		if k.Ctrl {
			m := k
			m.Ctrl, m.Meta = false, true
			out[m] = struct{}{}
		}
	}
	out[mustParse("Meta+Q")] = struct{}{}
	out[mustParse("Meta+Tab")] = struct{}{}
	return out
}()

// IsDenied reports whether k is on the lockdown deny-list.
func IsDenied(k KeyCombo) bool {
	_, ok := deniedKeys[k.Normalize()]
	return ok
}

// DeniedKeys returns the deny-list rendered as strings, sorted.
func DeniedKeys() []string {
	out := make([]string, 0, len(deniedKeys))
	for k := range deniedKeys {
		out = append(out, k.String())
	}
	sort.Strings(out)
	return out
}
