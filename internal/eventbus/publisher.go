// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/marquee/internal/metrics"
)

// ErrPublisherClosed is returned after Close.
var ErrPublisherClosed = errors.New("publisher is closed")

// Publisher publishes JSON payloads to JetStream through Watermill with
// circuit breaker protection. The stream must already exist.
type Publisher struct {
	publisher message.Publisher
	breaker   *gobreaker.CircuitBreaker[struct{}]

	mu     sync.RWMutex
	closed bool
}

// NewPublisher connects a Watermill JetStream publisher. Message UUIDs are
// sent as Nats-Msg-Id so the stream's duplicate window drops redelivered
// publishes.
func NewPublisher(conn ConnConfig, breaker BreakerConfig, logger watermill.LoggerAdapter) (*Publisher, error) {
	if logger == nil {
		logger = NewWatermillLogger()
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         conn.URL,
		NatsOptions: connOptions(conn),
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: false,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}
	return newPublisher(pub, breaker), nil
}

func newPublisher(pub message.Publisher, breaker BreakerConfig) *Publisher {
	return &Publisher{
		publisher: pub,
		breaker:   NewCircuitBreaker[struct{}](breaker, nil),
	}
}

// PublishJSON marshals v and publishes it on topic with id as the message
// UUID.
func (p *Publisher) PublishJSON(ctx context.Context, topic, id string, v interface{}, meta map[string]string) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", topic, err)
	}
	msg := message.NewMessage(id, payload)
	msg.SetContext(ctx)
	for k, val := range meta {
		msg.Metadata.Set(k, val)
	}
	return p.Publish(topic, msg)
}

// Publish sends msg on topic.
func (p *Publisher) Publish(topic string, msg *message.Message) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return ErrPublisherClosed
	}

	if msg.Metadata.Get(natsgo.MsgIdHdr) == "" {
		msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	}

	_, err := p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.publisher.Publish(topic, msg)
	})
	metrics.RecordPublish(err)
	return err
}

// BreakerState returns the publish breaker state.
func (p *Publisher) BreakerState() gobreaker.State {
	return p.breaker.State()
}

// Close shuts the publisher down. It is safe to call more than once.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}
