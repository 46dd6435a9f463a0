package usecases

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/samirrijal/trailmap/internal/core/domain"
	"github.com/samirrijal/trailmap/internal/core/ports"
)

const (
	notifyQueueSize = 64
	notifyTimeout   = 2 * time.Second
)

var errNotifyQueueFull = errors.New("notification queue full")

// EventCollaborators turns session notifications into map events on the broker.
// The client subscribed to the session's event stream plays every collaborator.
// Events are queued and published by one goroutine per session, so a slow
// broker never holds up a gesture.
type EventCollaborators struct {
	sessionID string
	events    ports.EventPublisher
	now       func() time.Time

	mu     sync.RWMutex
	closed bool
	queue  chan domain.MapEvent
	ctx    context.Context
	cancel context.CancelFunc
}

// NewEventCollaborators creates collaborators publishing for one session.
// Close stops them.
func NewEventCollaborators(sessionID string, events ports.EventPublisher) *EventCollaborators {
	ctx, cancel := context.WithCancel(context.Background())
	c := &EventCollaborators{
		sessionID: sessionID,
		events:    events,
		now:       time.Now,
		queue:     make(chan domain.MapEvent, notifyQueueSize),
		ctx:       ctx,
		cancel:    cancel,
	}
	go c.run()
	return c
}

func (c *EventCollaborators) run() {
	for ev := range c.queue {
		if c.events == nil || c.ctx.Err() != nil {
			continue
		}
		ctx, cancel := context.WithTimeout(c.ctx, notifyTimeout)
		if err := c.events.PublishMapEvent(ctx, &ev); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("publish map event failed",
				"session_id", c.sessionID, "kind", ev.Kind, "error", err)
		}
		cancel()
	}
}

// publish queues ev; it never waits on the broker.
func (c *EventCollaborators) publish(_ context.Context, ev domain.MapEvent) error {
	ev.SessionID = c.sessionID
	ev.Time = c.now().UTC()

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil
	}
	select {
	case c.queue <- ev:
		return nil
	default:
		return errNotifyQueueFull
	}
}

// Close drops pending events and aborts the one in flight.
func (c *EventCollaborators) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		c.cancel()
		close(c.queue)
	}
	return nil
}

func (c *EventCollaborators) OpenDetailPanel(ctx context.Context, marker domain.LocationMarker) error {
	return c.publish(ctx, domain.MapEvent{Kind: domain.EventOpenDetailPanel, Marker: &marker})
}

func (c *EventCollaborators) OpenAddForm(ctx context.Context, pos domain.GeoPoint) error {
	return c.publish(ctx, domain.MapEvent{Kind: domain.EventOpenAddForm, Position: &pos})
}

func (c *EventCollaborators) UpdateCoordinates(ctx context.Context, pos domain.GeoPoint) error {
	return c.publish(ctx, domain.MapEvent{Kind: domain.EventUpdateCoordinates, Position: &pos})
}

func (c *EventCollaborators) CloseDetailTab(ctx context.Context) error {
	return c.publish(ctx, domain.MapEvent{Kind: domain.EventCloseDetailTab})
}

func (c *EventCollaborators) MarkersLoaded(ctx context.Context, count int) error {
	return c.publish(ctx, domain.MapEvent{Kind: domain.EventMarkersLoaded, Count: count})
}

func (c *EventCollaborators) MarkersFailed(ctx context.Context, err error) error {
	return c.publish(ctx, domain.MapEvent{Kind: domain.EventMarkersFailed, Error: err.Error()})
}

// SessionPermissions is a PermissionSource updated by signals and requests.
type SessionPermissions struct {
	mu    sync.RWMutex
	perms domain.Permissions
}

// Permissions implements ports.PermissionSource.
func (p *SessionPermissions) Permissions() domain.Permissions {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.perms
}

// Set replaces the permissions.
func (p *SessionPermissions) Set(perms domain.Permissions) {
	p.mu.Lock()
	p.perms = perms
	p.mu.Unlock()
}
