package ports

import (
	"context"

	"github.com/samirrijal/trailmap/internal/core/domain"
)

// IconResolver maps a location type and waiting time to an icon.
// It must be total: unknown types get a default icon.
type IconResolver interface {
	ResolveIcon(t domain.LocationType, waitingTime *float64) domain.IconRef
}

// MapWidget is the capability surface of the tile-rendering map.
type MapWidget interface {
	PanTo(p domain.GeoPoint)
	FlyTo(p domain.GeoPoint)
	SetView(p domain.GeoPoint)
	InvalidateSize()
	Bounds() domain.MapBounds
	Viewport() domain.Viewport
}

// ViewReporter is implemented by widgets whose view is reported by a remote client.
type ViewReporter interface {
	Report(bounds domain.MapBounds, vp domain.Viewport)
}

// Collaborators receive one-shot notifications from a map session.
// Calls are made under the session lock and must return without waiting
// on a reply; errors are only logged.
type Collaborators interface {
	OpenDetailPanel(ctx context.Context, marker domain.LocationMarker) error
	OpenAddForm(ctx context.Context, pos domain.GeoPoint) error
	UpdateCoordinates(ctx context.Context, pos domain.GeoPoint) error
	CloseDetailTab(ctx context.Context) error
	MarkersLoaded(ctx context.Context, count int) error
	MarkersFailed(ctx context.Context, err error) error
}

// PermissionSource is asked for the caller's capabilities at every gesture.
type PermissionSource interface {
	Permissions() domain.Permissions
}

// PermissionFunc adapts a function to PermissionSource.
type PermissionFunc func() domain.Permissions

func (f PermissionFunc) Permissions() domain.Permissions { return f() }

// EventPublisher publishes map events to a message broker.
type EventPublisher interface {
	PublishMapEvent(ctx context.Context, event *domain.MapEvent) error
	PublishSignal(ctx context.Context, signal *domain.SessionSignal) error
	PublishLocationSaved(ctx context.Context, saved *domain.LocationSaved) error
}

// EventSubscriber subscribes to signals from a message broker.
type EventSubscriber interface {
	SubscribeSignals(ctx context.Context, handler func(ctx context.Context, signal *domain.SessionSignal) error) error
	SubscribeLocationSaved(ctx context.Context, handler func(ctx context.Context, saved *domain.LocationSaved) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
	Incr(ctx context.Context, key string) (int64, error)
}

// SubmissionStarter hands a new location to the durable submission workflow.
type SubmissionStarter interface {
	StartSubmission(ctx context.Context, loc *domain.Location, sessionID string) (string, error)
}
