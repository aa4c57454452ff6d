/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus fans events out across player instances over NATS.
// A single instance without NATS configured degrades to the in-process bus.
package eventbus

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_player/internal/events"
	"github.com/friendsincode/grimnir_player/internal/telemetry"
)

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
	Token         string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns default NATS configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "grimnirplayer",
		MaxReconnects: -1, // Unlimited
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// NATSBus bridges the in-process event bus onto NATS subjects so that
// every player instance sees schedule and decision events.
type NATSBus struct {
	conn   *nats.Conn
	logger zerolog.Logger
	local  *events.Bus
	prefix string
	nodeID string

	mu      sync.Mutex
	bridges map[events.EventType]*nats.Subscription
	refs    map[events.EventType]int
}

// NewNATSBus creates a NATS-backed event bus.
// Falls back to the in-memory bus if NATS is unavailable.
func NewNATSBus(cfg NATSConfig, logger zerolog.Logger) (*NATSBus, error) {
	nb := &NATSBus{
		logger:  logger.With().Str("component", "eventbus").Logger(),
		local:   events.NewBus(),
		prefix:  cfg.SubjectPrefix,
		nodeID:  generateNodeID(),
		bridges: make(map[events.EventType]*nats.Subscription),
		refs:    make(map[events.EventType]int),
	}
	if nb.prefix == "" {
		nb.prefix = "grimnirplayer"
	}

	if cfg.URL == "" {
		nb.logger.Info().Msg("NATS not configured, using in-memory event bus")
		return nb, nil
	}

	opts := []nats.Option{
		nats.Name("grimnir-player/" + nb.nodeID),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			nb.logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			nb.logger.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		nb.logger.Warn().Err(err).Str("url", cfg.URL).Msg("NATS connection failed, using in-memory event bus")
		return nb, nil
	}

	nb.conn = conn
	nb.logger.Info().Str("url", cfg.URL).Str("node_id", nb.nodeID).Msg("NATS event bus initialized")
	return nb, nil
}

// subject maps an event type onto a NATS subject.
func (nb *NATSBus) subject(eventType events.EventType) string {
	return fmt.Sprintf("%s.events.%s", nb.prefix, eventType)
}

// Subscribe registers a subscriber for an event type. Remote events for the
// type are bridged into the local bus on first subscription.
func (nb *NATSBus) Subscribe(eventType events.EventType) events.Subscriber {
	sub := nb.local.Subscribe(eventType)

	if nb.conn == nil {
		return sub
	}

	nb.mu.Lock()
	defer nb.mu.Unlock()

	nb.refs[eventType]++
	if _, exists := nb.bridges[eventType]; exists {
		return sub
	}

	bridge, err := nb.conn.Subscribe(nb.subject(eventType), func(msg *nats.Msg) {
		envelope, err := unmarshalBusMessage(msg.Data)
		if err != nil {
			nb.logger.Error().Err(err).Str("subject", msg.Subject).Msg("failed to unmarshal NATS message")
			return
		}

		// Skip messages from ourselves; they were already delivered locally.
		if envelope.NodeID == nb.nodeID {
			return
		}

		nb.local.Publish(envelope.EventType, envelope.Payload)
	})
	if err != nil {
		nb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to bridge NATS subject")
		return sub
	}

	nb.bridges[eventType] = bridge
	nb.logger.Debug().Str("event_type", string(eventType)).Msg("bridged NATS subject")
	return sub
}

// Publish sends an event payload to local subscribers and to NATS.
func (nb *NATSBus) Publish(eventType events.EventType, payload events.Payload) {
	nb.local.Publish(eventType, payload)
	telemetry.EventsPublishedTotal.WithLabelValues(string(eventType)).Inc()

	if nb.conn == nil {
		return
	}

	data, err := marshalBusMessage(eventType, payload, nb.nodeID)
	if err != nil {
		nb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to marshal NATS message")
		return
	}

	if err := nb.conn.Publish(nb.subject(eventType), data); err != nil {
		nb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to publish to NATS")
	}
}

// Unsubscribe removes a subscriber and tears down the NATS bridge when the
// last local subscriber for the type is gone.
func (nb *NATSBus) Unsubscribe(eventType events.EventType, sub events.Subscriber) {
	nb.local.Unsubscribe(eventType, sub)

	if nb.conn == nil {
		return
	}

	nb.mu.Lock()
	defer nb.mu.Unlock()

	if nb.refs[eventType] > 0 {
		nb.refs[eventType]--
	}
	if nb.refs[eventType] == 0 {
		if bridge, exists := nb.bridges[eventType]; exists {
			if err := bridge.Unsubscribe(); err != nil {
				nb.logger.Debug().Err(err).Str("event_type", string(eventType)).Msg("failed to unsubscribe NATS bridge")
			}
			delete(nb.bridges, eventType)
		}
	}
}

// Close drains the NATS connection.
func (nb *NATSBus) Close() error {
	if nb.conn == nil {
		return nil
	}

	nb.mu.Lock()
	for eventType, bridge := range nb.bridges {
		_ = bridge.Unsubscribe()
		delete(nb.bridges, eventType)
	}
	nb.mu.Unlock()

	if err := nb.conn.Drain(); err != nil {
		nb.conn.Close()
		return err
	}
	return nil
}

// busMessage is the wire envelope published to NATS.
type busMessage struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"`
}

func marshalBusMessage(eventType events.EventType, payload events.Payload, nodeID string) ([]byte, error) {
	msg := busMessage{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		NodeID:    nodeID,
		MessageID: uuid.NewString(),
	}
	return json.Marshal(msg)
}

func unmarshalBusMessage(data []byte) (*busMessage, error) {
	var msg busMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal bus message: %w", err)
	}
	return &msg, nil
}

func generateNodeID() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "node"
	}
	return fmt.Sprintf("%s-%s", hostname, uuid.NewString()[:8])
}
