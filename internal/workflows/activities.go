package workflows

import (
	"context"
	"fmt"
	"log/slog"

	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/trailmap/internal/core/domain"
	"github.com/samirrijal/trailmap/internal/core/ports"
)

// ErrTypeInvalidLocation is the application error type of a rejected location.
const ErrTypeInvalidLocation = "InvalidLocation"

// MarkerCache drops cached marker data for a location.
type MarkerCache interface {
	Invalidate(ctx context.Context, id string) error
}

// SubmissionActivities holds the activity implementations for the submission workflow.
type SubmissionActivities struct {
	Locations ports.LocationRepository
	Markers   MarkerCache         // optional
	Events    ports.EventPublisher // optional
}

// ValidateLocation rejects incomplete locations without retrying.
func (a *SubmissionActivities) ValidateLocation(ctx context.Context, loc domain.Location) error {
	if err := loc.Validate(); err != nil {
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeInvalidLocation, err)
	}
	return nil
}

// SaveLocation stores the location and returns it with its timestamps.
func (a *SubmissionActivities) SaveLocation(ctx context.Context, loc domain.Location) (domain.Location, error) {
	if err := a.Locations.Upsert(ctx, &loc); err != nil {
		return domain.Location{}, fmt.Errorf("save location %s: %w", loc.ID, err)
	}
	return loc, nil
}

// InvalidateMarkers drops cached marker sets so the next fetch sees the location.
func (a *SubmissionActivities) InvalidateMarkers(ctx context.Context, id string) error {
	if a.Markers == nil {
		return nil
	}
	return a.Markers.Invalidate(ctx, id)
}

// PublishLocationSaved announces the save on the message bus.
func (a *SubmissionActivities) PublishLocationSaved(ctx context.Context, loc domain.Location, sessionID string) error {
	if a.Events == nil {
		slog.Info("location saved (no publisher)", "location_id", loc.ID)
		return nil
	}
	if err := a.Events.PublishLocationSaved(ctx, &domain.LocationSaved{Location: loc, SessionID: sessionID}); err != nil {
		return fmt.Errorf("publish location saved: %w", err)
	}
	return nil
}
