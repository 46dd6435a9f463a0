package usecases

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/trailmap/internal/core/domain"
	"github.com/samirrijal/trailmap/internal/core/ports"
	"github.com/samirrijal/trailmap/internal/pkg/metrics"
)

var tracer = otel.Tracer("github.com/samirrijal/trailmap/internal/core/usecases")

// LoadOutcome is how a marker fetch ended.
type LoadOutcome string

const (
	LoadApplied   LoadOutcome = "applied"
	LoadDiscarded LoadOutcome = "discarded"
	LoadFailed    LoadOutcome = "failed"
)

// LoadResult describes one completed fetch.
type LoadResult struct {
	Seq     uint64
	Bounds  domain.MapBounds
	Outcome LoadOutcome
	Count   int
	Err     error
}

// MarkerLoader fetches the marker set for a viewport and keeps the last good one.
// Every Load takes a new sequence number; only the response to the latest
// issued request is applied, older ones are dropped whatever their outcome.
type MarkerLoader struct {
	provider ports.MarkerProvider
	onResult func(LoadResult)

	mu      sync.Mutex
	seq     uint64
	markers []domain.LocationMarker
}

// NewMarkerLoader creates a loader. onResult, if set, runs after each fetch
// completes and after the working set has been updated.
func NewMarkerLoader(provider ports.MarkerProvider, onResult func(LoadResult)) *MarkerLoader {
	return &MarkerLoader{provider: provider, onResult: onResult}
}

// Load issues one asynchronous fetch for bounds. The returned channel yields
// exactly one result and is then closed.
func (l *MarkerLoader) Load(ctx context.Context, bounds domain.MapBounds) <-chan LoadResult {
	l.mu.Lock()
	l.seq++
	seq := l.seq
	l.mu.Unlock()

	out := make(chan LoadResult, 1)
	go func() {
		res := l.fetch(ctx, seq, bounds)
		metrics.MarkerLoads.WithLabelValues(string(res.Outcome)).Inc()
		if l.onResult != nil {
			l.onResult(res)
		}
		out <- res
		close(out)
	}()
	return out
}

func (l *MarkerLoader) fetch(ctx context.Context, seq uint64, bounds domain.MapBounds) LoadResult {
	ctx, span := tracer.Start(ctx, "MarkerLoader.Fetch", trace.WithAttributes(
		attribute.Int64("marker_loader.seq", int64(seq)),
		attribute.Float64("bounds.north", bounds.NorthEast.Lat),
		attribute.Float64("bounds.east", bounds.NorthEast.Lon),
		attribute.Float64("bounds.south", bounds.SouthWest.Lat),
		attribute.Float64("bounds.west", bounds.SouthWest.Lon),
	))
	defer span.End()

	start := time.Now()
	markers, err := l.provider.FetchMarkers(ctx, bounds)
	metrics.MarkerFetchDuration.Observe(time.Since(start).Seconds())

	res := LoadResult{Seq: seq, Bounds: bounds}

	l.mu.Lock()
	defer l.mu.Unlock()

	if seq != l.seq {
		res.Outcome = LoadDiscarded
		res.Err = domain.ErrStaleResponse
		span.SetAttributes(attribute.Bool("marker_loader.stale", true))
		return res
	}
	if err != nil {
		res.Outcome = LoadFailed
		res.Err = fmt.Errorf("%w: %w", domain.ErrMarkerLoad, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res
	}

	l.markers = append([]domain.LocationMarker(nil), markers...)
	res.Outcome = LoadApplied
	res.Count = len(markers)
	span.SetAttributes(attribute.Int("marker_loader.count", res.Count))
	return res
}

// Markers returns a copy of the working marker set.
func (l *MarkerLoader) Markers() []domain.LocationMarker {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.LocationMarker(nil), l.markers...)
}

// Find returns the marker with the given id from the working set.
func (l *MarkerLoader) Find(id string) (domain.LocationMarker, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.markers {
		if m.ID == id {
			return m, true
		}
	}
	return domain.LocationMarker{}, false
}

// Seq returns the sequence number of the latest issued request.
func (l *MarkerLoader) Seq() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq
}
