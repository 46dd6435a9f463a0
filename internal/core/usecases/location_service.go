package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/samirrijal/trailmap/internal/core/domain"
	"github.com/samirrijal/trailmap/internal/core/ports"
	"github.com/samirrijal/trailmap/internal/pkg/metrics"
)

const locationsVersionKey = "locations:version"

// LocationService handles location storage and serves map markers.
// It is the database-backed MarkerProvider.
type LocationService struct {
	locations   ports.LocationRepository
	cache       ports.CacheService
	submissions ports.SubmissionStarter
	limit       int
	ttl         int
}

// NewLocationService creates a new LocationService. cache and submissions may be nil.
func NewLocationService(locations ports.LocationRepository, cache ports.CacheService, submissions ports.SubmissionStarter, markerLimit, cacheTTL int) *LocationService {
	if markerLimit <= 0 {
		markerLimit = 2000
	}
	if cacheTTL <= 0 {
		cacheTTL = 120
	}
	return &LocationService{
		locations:   locations,
		cache:       cache,
		submissions: submissions,
		limit:       markerLimit,
		ttl:         cacheTTL,
	}
}

// FetchMarkers returns the markers inside bounds.
func (s *LocationService) FetchMarkers(ctx context.Context, bounds domain.MapBounds) ([]domain.LocationMarker, error) {
	if err := bounds.Validate(); err != nil {
		return nil, err
	}

	// Try cache. Saves bump the version, which orphans every bbox entry.
	cacheKey := fmt.Sprintf("locations:v%s:bbox:%.5f:%.5f:%.5f:%.5f:%d",
		s.version(ctx),
		bounds.NorthEast.Lat, bounds.NorthEast.Lon, bounds.SouthWest.Lat, bounds.SouthWest.Lon, s.limit)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var markers []domain.LocationMarker
			if err := json.Unmarshal(data, &markers); err == nil {
				metrics.CacheHits.WithLabelValues("markers").Inc()
				return markers, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("markers").Inc()
	}

	markers, err := s.locations.FindInBounds(ctx, bounds, s.limit)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(markers); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.ttl)
		}
	}

	return markers, nil
}

func (s *LocationService) version(ctx context.Context) string {
	if s.cache == nil {
		return "0"
	}
	data, err := s.cache.Get(ctx, locationsVersionKey)
	if err != nil || len(data) == 0 {
		return "0"
	}
	return strings.TrimSpace(string(data))
}

// GetByID returns a single location.
func (s *LocationService) GetByID(ctx context.Context, id string) (*domain.Location, error) {
	cacheKey := "locations:id:" + id
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var loc domain.Location
			if err := json.Unmarshal(data, &loc); err == nil {
				metrics.CacheHits.WithLabelValues("location").Inc()
				return &loc, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("location").Inc()
	}

	loc, err := s.locations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(loc); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 600)
		}
	}

	return loc, nil
}

// Submit validates a new location and starts its submission workflow.
// It returns the location with its assigned id and the workflow run id.
func (s *LocationService) Submit(ctx context.Context, loc domain.Location, sessionID string) (*domain.Location, string, error) {
	if s.submissions == nil {
		return nil, "", fmt.Errorf("location submissions are not enabled")
	}
	if loc.ID == "" {
		loc.ID = uuid.NewString()
	}
	if err := loc.Validate(); err != nil {
		metrics.SubmissionsStarted.WithLabelValues("invalid").Inc()
		return nil, "", err
	}
	runID, err := s.submissions.StartSubmission(ctx, &loc, sessionID)
	if err != nil {
		metrics.SubmissionsStarted.WithLabelValues("error").Inc()
		return nil, "", fmt.Errorf("start submission: %w", err)
	}
	metrics.SubmissionsStarted.WithLabelValues("started").Inc()
	return &loc, runID, nil
}

// Save stores a location and invalidates the cached marker sets.
func (s *LocationService) Save(ctx context.Context, loc *domain.Location) error {
	if err := loc.Validate(); err != nil {
		return err
	}
	if err := s.locations.Upsert(ctx, loc); err != nil {
		return fmt.Errorf("save location %s: %w", loc.ID, err)
	}
	return s.Invalidate(ctx, loc.ID)
}

// Invalidate drops cached data for a location and every cached marker set.
func (s *LocationService) Invalidate(ctx context.Context, id string) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Delete(ctx, "locations:id:"+id); err != nil {
		return fmt.Errorf("invalidate location %s: %w", id, err)
	}
	if _, err := s.cache.Incr(ctx, locationsVersionKey); err != nil {
		return fmt.Errorf("bump marker cache version: %w", err)
	}
	return nil
}

// Import upserts a batch of locations, skipping invalid ones.
// It returns how many were stored.
func (s *LocationService) Import(ctx context.Context, locs []domain.Location) (int, error) {
	valid := make([]domain.Location, 0, len(locs))
	for _, l := range locs {
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		if err := l.Validate(); err != nil {
			continue
		}
		valid = append(valid, l)
	}
	if len(valid) == 0 {
		return 0, nil
	}
	if err := s.locations.UpsertBatch(ctx, valid); err != nil {
		return 0, err
	}
	metrics.LocationsImported.Add(float64(len(valid)))
	if s.cache != nil {
		if _, err := s.cache.Incr(ctx, locationsVersionKey); err != nil {
			return len(valid), fmt.Errorf("bump marker cache version: %w", err)
		}
	}
	return len(valid), nil
}
