package mapview

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/samirrijal/trailmap/internal/core/domain"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.MapEvent
	err    error
}

func (p *recordingPublisher) PublishMapEvent(ctx context.Context, e *domain.MapEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *e)
	return p.err
}
func (p *recordingPublisher) PublishSignal(ctx context.Context, s *domain.SessionSignal) error {
	return nil
}
func (p *recordingPublisher) PublishLocationSaved(ctx context.Context, s *domain.LocationSaved) error {
	return nil
}

var start = domain.Viewport{Center: domain.GeoPoint{Lat: 49.8, Lon: 15.5}, Zoom: 7}

func TestRemote_CommandsPublishedInOrder(t *testing.T) {
	pub := &recordingPublisher{}
	r := NewRemote("s-1", start, pub)

	target := domain.GeoPoint{Lat: 50, Lon: 14}
	r.PanTo(target)
	r.FlyTo(target)
	r.SetView(target)
	r.InvalidateSize()
	r.Close()

	want := []domain.ViewCommand{domain.ViewPanTo, domain.ViewFlyTo, domain.ViewSetView, domain.ViewInvalidateSize}
	if len(pub.events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(pub.events))
	}
	for i, ev := range pub.events {
		if ev.Command != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], ev.Command)
		}
		if ev.Kind != domain.EventViewCommand || ev.SessionID != "s-1" || ev.Zoom != 7 {
			t.Errorf("event %d: unexpected envelope %+v", i, ev)
		}
	}
	if pub.events[0].Position == nil || *pub.events[0].Position != target {
		t.Errorf("expected the pan target, got %v", pub.events[0].Position)
	}
	if pub.events[3].Position != nil {
		t.Error("expected no position on invalidate_size")
	}
}

func TestRemote_ReportUpdatesView(t *testing.T) {
	r := NewRemote("s-1", start, nil)
	defer r.Close()

	if r.Viewport() != start {
		t.Errorf("expected the initial view, got %+v", r.Viewport())
	}
	b := domain.NewMapBounds(51, 16, 49, 13)
	vp := domain.Viewport{Center: b.Center(), Zoom: 9}
	r.Report(b, vp)
	if r.Bounds() != b || r.Viewport() != vp {
		t.Errorf("expected the reported view, got %+v %+v", r.Bounds(), r.Viewport())
	}
}

func TestRemote_CommandsAfterCloseDropped(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("nats down")}
	r := NewRemote("s-1", start, pub)
	r.PanTo(domain.GeoPoint{Lat: 1, Lon: 1})
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	r.FlyTo(domain.GeoPoint{Lat: 2, Lon: 2})
	r.Close()

	if len(pub.events) != 1 {
		t.Errorf("expected only the command issued before close, got %d", len(pub.events))
	}
}
