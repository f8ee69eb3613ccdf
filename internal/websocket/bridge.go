// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package websocket

import (
	"context"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/marquee/internal/kiosk"
	"github.com/tomtom215/marquee/internal/kiosk/host"
	"github.com/tomtom215/marquee/internal/logging"
	"github.com/tomtom215/marquee/internal/models"
	"github.com/tomtom215/marquee/internal/platform"
	"github.com/tomtom215/marquee/internal/playback"
)

// PlaybackInput receives renderer reports for the rotation controller.
type PlaybackInput interface {
	MediaStarted(itemID string) error
	MediaEnded(itemID string) error
	MediaFailed(itemID, reason string) error
	Click(itemID string) error
}

// KioskInput receives viewer input and host fullscreen changes.
type KioskInput interface {
	NotifyInput(ctx context.Context)
	NotifyFullscreenChange(ctx context.Context, fullscreen bool)
	AllowKey(k kiosk.KeyCombo) bool
}

// FullscreenTracker mirrors the renderer's fullscreen state.
type FullscreenTracker interface {
	SetFullscreen(on bool)
}

// ItemPayload addresses a playlist item.
type ItemPayload struct {
	ItemID string `json:"item_id"`
	Reason string `json:"reason,omitempty"`
}

// FullscreenPayload is the data of a fullscreen_change message.
type FullscreenPayload struct {
	Fullscreen bool `json:"fullscreen"`
}

// FailurePayload is the data of a failure message.
type FailurePayload struct {
	Item   models.PlaylistItem `json:"item"`
	Reason string              `json:"reason"`
}

// CTAPayload is the data of a cta message.
type CTAPayload struct {
	ItemID  string `json:"item_id"`
	LinkURL string `json:"link_url"`
}

// KeyVerdict answers a key message.
type KeyVerdict struct {
	Key   string `json:"key"`
	Allow bool   `json:"allow"`
}

// Bridge connects the engine to renderers through the hub. It is the
// playback renderer, the alert notifier and the kiosk host transport, and
// it routes inbound renderer messages to the engine.
type Bridge struct {
	hub *Hub
	log zerolog.Logger

	mu         sync.RWMutex
	playback   PlaybackInput
	kiosk      KioskInput
	fullscreen FullscreenTracker
}

var (
	_ playback.Renderer = (*Bridge)(nil)
	_ platform.Notifier = (*Bridge)(nil)
)

// NewBridge installs itself as the hub's inbound handler.
func NewBridge(hub *Hub) *Bridge {
	b := &Bridge{hub: hub, log: logging.WithComponent("renderer-bridge")}
	hub.SetHandler(b.handle)
	return b
}

// Bind sets the engine components inbound messages are routed to. Any
// argument may be nil.
func (b *Bridge) Bind(p PlaybackInput, k KioskInput, fs FullscreenTracker) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.playback, b.kiosk, b.fullscreen = p, k, fs
}

// Render implements playback.Renderer.
func (b *Bridge) Render(_ context.Context, f playback.Frame) error {
	b.hub.Broadcast(MessageTypeRender, f)
	return nil
}

// ShowFailure implements playback.Renderer.
func (b *Bridge) ShowFailure(_ context.Context, item models.PlaylistItem, reason string) error {
	b.hub.Broadcast(MessageTypeFailure, FailurePayload{Item: item, Reason: reason})
	return nil
}

// ShowCallToAction implements playback.Renderer.
func (b *Bridge) ShowCallToAction(_ context.Context, item models.PlaylistItem) error {
	b.hub.Broadcast(MessageTypeCTA, CTAPayload{ItemID: item.ID, LinkURL: item.LinkURL})
	return nil
}

// ShowEmpty implements playback.Renderer.
func (b *Bridge) ShowEmpty(context.Context) error {
	b.hub.Broadcast(MessageTypeEmpty, nil)
	return nil
}

// Notify implements platform.Notifier.
func (b *Bridge) Notify(_ context.Context, alert models.Alert) error {
	b.hub.Broadcast(MessageTypeAlert, alert)
	return nil
}

// PublishSample forwards a health sample to the overlay.
func (b *Bridge) PublishSample(s models.DeviceSample) {
	b.hub.Broadcast(MessageTypeSample, s)
}

// PublishPolicy forwards the lockdown policy. It fits kiosk.WithObserver.
func (b *Bridge) PublishPolicy(p kiosk.Policy) {
	b.hub.Broadcast(MessageTypeKiosk, p)
}

// HostCommand forwards a lockdown host command. It fits host.NewRecorder.
func (b *Bridge) HostCommand(cmd host.Command) {
	b.hub.Broadcast(MessageTypeHost, cmd)
}

func (b *Bridge) handle(ctx context.Context, c *Client, msg Inbound) {
	b.mu.RLock()
	pb, kk, fs := b.playback, b.kiosk, b.fullscreen
	b.mu.RUnlock()

	switch msg.Type {
	case MessageTypeMediaStarted, MessageTypeMediaEnded, MessageTypeMediaError, MessageTypeClick:
		var p ItemPayload
		if !b.decode(msg, &p) || pb == nil {
			return
		}
		var err error
		switch msg.Type {
		case MessageTypeMediaStarted:
			err = pb.MediaStarted(p.ItemID)
		case MessageTypeMediaEnded:
			err = pb.MediaEnded(p.ItemID)
		case MessageTypeMediaError:
			err = pb.MediaFailed(p.ItemID, p.Reason)
		case MessageTypeClick:
			err = pb.Click(p.ItemID)
		}
		if err != nil {
			b.log.Debug().Err(err).Str("type", msg.Type).Str("item_id", p.ItemID).Msg("Renderer report ignored")
		}
		if kk != nil && msg.Type == MessageTypeClick {
			kk.NotifyInput(ctx)
		}

	case MessageTypeInput:
		if kk != nil {
			kk.NotifyInput(ctx)
		}

	case MessageTypeKey:
		var k kiosk.KeyCombo
		if !b.decode(msg, &k) || kk == nil {
			return
		}
		allow := kk.AllowKey(k)
		if allow {
			kk.NotifyInput(ctx)
		}
		if c != nil {
			c.Reply(MessageTypeKeyVerdict, KeyVerdict{Key: k.String(), Allow: allow})
		}

	case MessageTypeFullscreenChange:
		var p FullscreenPayload
		if !b.decode(msg, &p) {
			return
		}
		if fs != nil {
			fs.SetFullscreen(p.Fullscreen)
		}
		if kk != nil {
			kk.NotifyFullscreenChange(ctx, p.Fullscreen)
		}

	default:
		b.log.Debug().Str("type", msg.Type).Msg("Unknown renderer message")
	}
}

func (b *Bridge) decode(msg Inbound, v any) bool {
	if len(msg.Data) == 0 {
		b.log.Debug().Str("type", msg.Type).Msg("Renderer message without data")
		return false
	}
	if err := json.Unmarshal(msg.Data, v); err != nil {
		b.log.Debug().Err(err).Str("type", msg.Type).Msg("Malformed renderer message")
		return false
	}
	return true
}
