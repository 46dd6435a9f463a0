package ports

import (
	"context"

	"github.com/samirrijal/trailmap/internal/core/domain"
)

// LocationRepository persists locations.
type LocationRepository interface {
	Upsert(ctx context.Context, loc *domain.Location) error
	UpsertBatch(ctx context.Context, locs []domain.Location) error
	GetByID(ctx context.Context, id string) (*domain.Location, error)
	FindInBounds(ctx context.Context, bounds domain.MapBounds, limit int) ([]domain.LocationMarker, error)
}

// MarkerProvider delivers the marker set for a viewport.
type MarkerProvider interface {
	FetchMarkers(ctx context.Context, bounds domain.MapBounds) ([]domain.LocationMarker, error)
}

// MarkerProviderFunc adapts a function to MarkerProvider.
type MarkerProviderFunc func(ctx context.Context, bounds domain.MapBounds) ([]domain.LocationMarker, error)

func (f MarkerProviderFunc) FetchMarkers(ctx context.Context, bounds domain.MapBounds) ([]domain.LocationMarker, error) {
	return f(ctx, bounds)
}

// PositionStore remembers the last viewed map position of a session.
type PositionStore interface {
	SavePosition(ctx context.Context, sessionID string, vp domain.Viewport) error
	LoadPosition(ctx context.Context, sessionID string) (*domain.Viewport, error)
}
