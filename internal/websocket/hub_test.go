// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package websocket

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/tomtom215/marquee/internal/kiosk"
	"github.com/tomtom215/marquee/internal/logging"
)

//nolint:gochecknoinits // keeps test output quiet
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

func startHub(t *testing.T) (*Hub, context.CancelFunc, <-chan error) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()
	t.Cleanup(cancel)
	return hub, cancel, done
}

func testClient(hub *Hub, buffer int) *Client {
	return &Client{id: clientIDCounter.Add(1), hub: hub, send: make(chan Message, buffer)}
}

func recv(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		if !ok {
			t.Fatal("client channel closed")
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message within 2s")
	}
	return Message{}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestHub_BroadcastReachesEveryClient(t *testing.T) {
	t.Parallel()
	hub, _, _ := startHub(t)

	c1, c2 := testClient(hub, 8), testClient(hub, 8)
	if !hub.Add(c1) || !hub.Add(c2) {
		t.Fatal("Add() refused on a running hub")
	}
	hub.Broadcast(MessageTypeSample, map[string]int{"battery_percent": 80})

	for _, c := range []*Client{c1, c2} {
		if msg := recv(t, c); msg.Type != MessageTypeSample {
			t.Errorf("client %d got %s", c.ID(), msg.Type)
		}
	}
	if n := hub.ClientCount(); n != 2 {
		t.Errorf("ClientCount() = %d", n)
	}
}

func TestHub_ReplaysStickyStateToNewClients(t *testing.T) {
	t.Parallel()
	hub, _, _ := startHub(t)

	hub.Broadcast(MessageTypeRender, "first")
	hub.Broadcast(MessageTypeEmpty, nil)
	hub.Broadcast(MessageTypeSample, "not sticky")
	hub.Broadcast(MessageTypeKiosk, kiosk.Policy{Active: true})
	waitFor(t, "broadcast queue drained", func() bool { return len(hub.broadcast) == 0 })

	c := testClient(hub, 8)
	hub.Add(c)

	first := recv(t, c)
	if first.Type != MessageTypeKiosk {
		t.Fatalf("first replayed message = %s, want kiosk", first.Type)
	}
	if p, ok := first.Data.(kiosk.Policy); !ok || !p.Active {
		t.Errorf("replayed policy = %#v", first.Data)
	}
	if second := recv(t, c); second.Type != MessageTypeEmpty {
		t.Errorf("replayed screen = %s, want the latest (empty)", second.Type)
	}
	select {
	case msg := <-c.send:
		t.Errorf("unexpected replay %s", msg.Type)
	default:
	}
}

func TestHub_DropsSlowClient(t *testing.T) {
	t.Parallel()
	hub, _, _ := startHub(t)

	slow := testClient(hub, 1)
	hub.Add(slow)
	hub.Broadcast(MessageTypeSample, 1)
	hub.Broadcast(MessageTypeSample, 2)

	waitFor(t, "slow client removed", func() bool { return hub.ClientCount() == 0 })
	if msg := recv(t, slow); msg.Data != 1 {
		t.Errorf("buffered message = %v", msg.Data)
	}
	if _, ok := <-slow.send; ok {
		t.Error("slow client channel not closed")
	}
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	t.Parallel()
	hub, cancel, done := startHub(t)

	c := testClient(hub, 8)
	hub.Add(c)
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}
	if _, ok := <-c.send; ok {
		t.Error("client channel open after shutdown")
	}
	if hub.Add(testClient(hub, 1)) {
		t.Error("Add() accepted a client after shutdown")
	}
	// A client leaving after shutdown must not block.
	hub.remove(c)
}

func TestHub_SendTo(t *testing.T) {
	t.Parallel()
	hub, _, _ := startHub(t)

	c := testClient(hub, 8)
	if hub.SendTo(c, Message{Type: MessageTypePong}) {
		t.Error("SendTo() delivered to an unregistered client")
	}
	hub.Add(c)
	if !c.Reply(MessageTypePong, nil) {
		t.Fatal("Reply() to a registered client failed")
	}
	if msg := recv(t, c); msg.Type != MessageTypePong {
		t.Errorf("got %s", msg.Type)
	}
}

func TestShutdownReason(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if r := shutdownReason(ctx); r != ShutdownReasonContextCanceled {
		t.Errorf("canceled: %s", r)
	}
	ctx, cancel = context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	if r := shutdownReason(ctx); r != ShutdownReasonContextDeadline {
		t.Errorf("deadline: %s", r)
	}
}

func TestMarshalMessage(t *testing.T) {
	t.Parallel()

	data, err := MarshalMessage(Message{Type: MessageTypeEmpty})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"type":"empty"}` {
		t.Errorf("MarshalMessage() = %s", data)
	}
}
