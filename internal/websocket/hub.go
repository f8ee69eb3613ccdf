// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/marquee/internal/logging"
	"github.com/tomtom215/marquee/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Outbound message types.
const (
	MessageTypeRender     = "render"
	MessageTypeFailure    = "failure"
	MessageTypeCTA        = "cta"
	MessageTypeEmpty      = "empty"
	MessageTypeSample     = "sample"
	MessageTypeAlert      = "alert"
	MessageTypeKiosk      = "kiosk"
	MessageTypeHost       = "host"
	MessageTypeKeyVerdict = "key_verdict"
	MessageTypePong       = "pong"
)

// Inbound message types.
const (
	MessageTypeMediaStarted     = "media_started"
	MessageTypeMediaEnded       = "media_ended"
	MessageTypeMediaError       = "media_error"
	MessageTypeClick            = "click"
	MessageTypeInput            = "input"
	MessageTypeKey              = "key"
	MessageTypeFullscreenChange = "fullscreen_change"
	MessageTypePing             = "ping"
)

// stickyKind groups message types whose latest value is replayed to new
// clients.
var stickyKind = map[string]string{
	MessageTypeRender:  "screen",
	MessageTypeFailure: "screen",
	MessageTypeEmpty:   "screen",
	MessageTypeKiosk:   "kiosk",
}

// Message is an outbound message.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Inbound is a message received from a renderer.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Handler processes inbound messages. It runs on the client's read
// goroutine.
type Handler func(ctx context.Context, c *Client, msg Inbound)

// Hub tracks connected renderers and fans messages out to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex

	stickyMu sync.Mutex
	sticky   map[string]Message

	handlerMu sync.RWMutex
	handler   Handler

	stopped  chan struct{}
	stopOnce sync.Once
}

// NewHub creates a hub with no handler.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		sticky:     make(map[string]Message),
		stopped:    make(chan struct{}),
	}
}

// Add registers a client. It reports false once the hub has stopped.
func (h *Hub) Add(c *Client) bool {
	select {
	case h.Register <- c:
		return true
	case <-h.stopped:
		return false
	}
}

func (h *Hub) remove(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.stopped:
	}
}

// SetHandler installs the inbound message handler.
func (h *Hub) SetHandler(fn Handler) {
	h.handlerMu.Lock()
	defer h.handlerMu.Unlock()
	h.handler = fn
}

func (h *Hub) dispatch(ctx context.Context, c *Client, msg Inbound) {
	h.handlerMu.RLock()
	fn := h.handler
	h.handlerMu.RUnlock()
	if fn != nil {
		fn(ctx, c, msg)
	}
}

// Run serves the hub until ctx is done, then closes every client.
//
// Client lifecycle events are handled before broadcasts so a message is
// never sent to a client that has already left.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.register(client)
			continue
		case client := <-h.Unregister:
			h.unregister(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.register(client)
		case client := <-h.Unregister:
			h.unregister(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	n := len(h.clients)
	h.mu.Unlock()

	for _, msg := range h.stickyMessages() {
		select {
		case client.send <- msg:
		default:
		}
	}
	metrics.WSConnections.Set(float64(n))
	logging.Info().Int("total_clients", n).Msg("Renderer connected")
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WSConnections.Set(float64(n))
	logging.Info().Int("total_clients", n).Msg("Renderer disconnected")
}

func (h *Hub) shutdown(ctx context.Context) {
	h.stopOnce.Do(func() { close(h.stopped) })
	n := h.ClientCount()
	h.closeAllClients()
	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(shutdownReason(ctx))).
		Int("clients_closed", n).
		Msg("Websocket hub stopped")
}

func shutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// sortedClients returns clients in connection order. Callers hold mu.
func (h *Hub) sortedClients() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })
	return clients
}

// broadcastToClients delivers message to every client. A client whose
// queue is full is dropped; it reconnects and gets the sticky state.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var slow []*Client
	for _, client := range h.sortedClients() {
		select {
		case client.send <- message:
			metrics.WSMessagesSent.WithLabelValues(message.Type).Inc()
		default:
			slow = append(slow, client)
		}
	}
	for _, client := range slow {
		close(client.send)
		delete(h.clients, client)
		logging.Warn().Uint64("client_id", client.id).Msg("Dropping slow renderer")
	}
	metrics.WSConnections.Set(float64(len(h.clients)))
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, client := range h.sortedClients() {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.WSConnections.Set(0)
}

// Broadcast queues a message for every client. Screen and kiosk messages
// are also kept for replay to clients that connect later.
func (h *Hub) Broadcast(messageType string, data any) {
	msg := Message{Type: messageType, Data: data}
	if kind, ok := stickyKind[messageType]; ok {
		h.stickyMu.Lock()
		h.sticky[kind] = msg
		h.stickyMu.Unlock()
	}
	select {
	case h.broadcast <- msg:
	default:
		logging.Warn().Str("message_type", messageType).Msg("Broadcast channel full, dropping message")
	}
}

func (h *Hub) stickyMessages() []Message {
	h.stickyMu.Lock()
	defer h.stickyMu.Unlock()
	kinds := make([]string, 0, len(h.sticky))
	for k := range h.sticky {
		kinds = append(kinds, k)
	}
	// kiosk before screen so lockdown is in place before content shows.
	sort.Strings(kinds)
	out := make([]Message, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, h.sticky[k])
	}
	return out
}

// ClientCount returns the number of connected renderers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// MarshalMessage encodes a message.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
