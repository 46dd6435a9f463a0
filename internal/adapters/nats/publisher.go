package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/samirrijal/trailmap/internal/core/domain"
)

// Subjects used on the bus.
const (
	SubjectSessionPrefix  = "map.session."
	SubjectSignalPrefix   = "map.signals."
	SubjectLocationsSaved = "map.locations.saved"
)

// SessionSubject is the subject a session's events are published on.
func SessionSubject(sessionID string, kind domain.MapEventKind) string {
	return SubjectSessionPrefix + sessionID + "." + string(kind)
}

// SessionWildcard matches every event of a session.
func SessionWildcard(sessionID string) string {
	return SubjectSessionPrefix + sessionID + ".>"
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	// Ensure streams exist
	streams := []nats.StreamConfig{
		{
			Name:      "MAP_EVENTS",
			Subjects:  []string{SubjectSessionPrefix + ">"},
			Retention: nats.LimitsPolicy,
			MaxAge:    10 * time.Minute,
			Storage:   nats.MemoryStorage,
		},
		{
			Name:      "MAP_SIGNALS",
			Subjects:  []string{SubjectSignalPrefix + ">"},
			Retention: nats.InterestPolicy,
			MaxAge:    1 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "MAP_LOCATIONS",
			Subjects:  []string{"map.locations.>"},
			Retention: nats.InterestPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist, try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

func (p *Publisher) PublishMapEvent(ctx context.Context, event *domain.MapEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SessionSubject(event.SessionID, event.Kind), data, nats.Context(ctx))
	return err
}

func (p *Publisher) PublishSignal(ctx context.Context, signal *domain.SessionSignal) error {
	data, err := json.Marshal(signal)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectSignalPrefix+signal.SessionID, data, nats.Context(ctx))
	return err
}

func (p *Publisher) PublishLocationSaved(ctx context.Context, saved *domain.LocationSaved) error {
	data, err := json.Marshal(saved)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectLocationsSaved, data, nats.Context(ctx))
	return err
}

// Conn exposes the underlying connection, e.g. for the WebSocket relay.
func (p *Publisher) Conn() *nats.Conn { return p.conn }

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
