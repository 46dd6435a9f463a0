package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/samirrijal/trailmap/internal/core/domain"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
// Sessions live in one process, so every API instance receives every
// message through its own ephemeral consumer.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

func (s *Subscriber) SubscribeSignals(ctx context.Context, handler func(ctx context.Context, signal *domain.SessionSignal) error) error {
	sub, err := s.js.Subscribe(SubjectSignalPrefix+">", func(msg *nats.Msg) {
		var signal domain.SessionSignal
		if err := json.Unmarshal(msg.Data, &signal); err != nil {
			slog.Warn("drop malformed signal", "subject", msg.Subject, "error", err)
			_ = msg.Term()
			return
		}
		if err := handler(ctx, &signal); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.DeliverNew(),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

func (s *Subscriber) SubscribeLocationSaved(ctx context.Context, handler func(ctx context.Context, saved *domain.LocationSaved) error) error {
	sub, err := s.js.Subscribe(SubjectLocationsSaved, func(msg *nats.Msg) {
		var saved domain.LocationSaved
		if err := json.Unmarshal(msg.Data, &saved); err != nil {
			slog.Warn("drop malformed location event", "error", err)
			_ = msg.Term()
			return
		}
		if err := handler(ctx, &saved); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.DeliverNew(),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
