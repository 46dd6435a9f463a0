package mapview

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samirrijal/trailmap/internal/core/domain"
	"github.com/samirrijal/trailmap/internal/core/ports"
)

const (
	queueSize      = 64
	publishTimeout = 2 * time.Second
)

// Remote is a MapWidget whose tiles are drawn by a client. The client reports
// its view after every move; view commands are sent back as map events.
// Commands are queued so the caller never waits on the broker.
type Remote struct {
	sessionID string
	events    ports.EventPublisher
	now       func() time.Time

	mu     sync.RWMutex
	bounds domain.MapBounds
	view   domain.Viewport
	closed bool

	queue chan domain.MapEvent
	done  chan struct{}
}

// NewRemote creates a widget for one session starting at initial.
func NewRemote(sessionID string, initial domain.Viewport, events ports.EventPublisher) *Remote {
	r := &Remote{
		sessionID: sessionID,
		events:    events,
		now:       time.Now,
		view:      initial,
		queue:     make(chan domain.MapEvent, queueSize),
		done:      make(chan struct{}),
	}
	go r.run()
	return r
}

// Factory returns a usecases.WidgetFactory-compatible constructor.
func Factory(events ports.EventPublisher) func(sessionID string, initial domain.Viewport) ports.MapWidget {
	return func(sessionID string, initial domain.Viewport) ports.MapWidget {
		return NewRemote(sessionID, initial, events)
	}
}

func (r *Remote) run() {
	defer close(r.done)
	for ev := range r.queue {
		if r.events == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := r.events.PublishMapEvent(ctx, &ev); err != nil {
			slog.Warn("publish view command failed",
				"session_id", r.sessionID, "command", ev.Command, "error", err)
		}
		cancel()
	}
}

// Report implements ports.ViewReporter.
func (r *Remote) Report(bounds domain.MapBounds, vp domain.Viewport) {
	r.mu.Lock()
	r.bounds = bounds
	r.view = vp
	r.mu.Unlock()
}

func (r *Remote) Bounds() domain.MapBounds {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bounds
}

func (r *Remote) Viewport() domain.Viewport {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.view
}

func (r *Remote) PanTo(p domain.GeoPoint)   { r.command(domain.ViewPanTo, &p) }
func (r *Remote) FlyTo(p domain.GeoPoint)   { r.command(domain.ViewFlyTo, &p) }
func (r *Remote) SetView(p domain.GeoPoint) { r.command(domain.ViewSetView, &p) }
func (r *Remote) InvalidateSize()           { r.command(domain.ViewInvalidateSize, nil) }

func (r *Remote) command(cmd domain.ViewCommand, p *domain.GeoPoint) {
	ev := domain.MapEvent{
		SessionID: r.sessionID,
		Kind:      domain.EventViewCommand,
		Time:      r.now().UTC(),
		Command:   cmd,
		Position:  p,
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	ev.Zoom = r.view.Zoom
	select {
	case r.queue <- ev:
	default:
		slog.Warn("view command dropped, queue full", "session_id", r.sessionID, "command", cmd)
	}
}

// Close stops the publisher goroutine after draining queued commands.
func (r *Remote) Close() error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	<-r.done
	return nil
}
