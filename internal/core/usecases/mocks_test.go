package usecases_test

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/samirrijal/trailmap/internal/core/domain"
	"github.com/samirrijal/trailmap/internal/core/ports"
)

// --- Mock MarkerProvider ---

type mockProvider struct {
	mu      sync.Mutex
	calls   int
	fetchFn func(ctx context.Context, b domain.MapBounds) ([]domain.LocationMarker, error)
}

func (m *mockProvider) FetchMarkers(ctx context.Context, b domain.MapBounds) ([]domain.LocationMarker, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.fetchFn != nil {
		return m.fetchFn(ctx, b)
	}
	return nil, nil
}

func (m *mockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// staticProvider returns the markers that fall inside the requested bounds.
func staticProvider(markers ...domain.LocationMarker) *mockProvider {
	return &mockProvider{
		fetchFn: func(ctx context.Context, b domain.MapBounds) ([]domain.LocationMarker, error) {
			var out []domain.LocationMarker
			for _, m := range markers {
				if b.Contains(m.Position) {
					out = append(out, m)
				}
			}
			return out, nil
		},
	}
}

// --- Mock MapWidget ---

type widgetCall struct {
	Method string
	Pos    domain.GeoPoint
}

type mockWidget struct {
	mu     sync.Mutex
	bounds domain.MapBounds
	view   domain.Viewport
	calls  []widgetCall
	closed bool
}

func (w *mockWidget) record(method string, p domain.GeoPoint) {
	w.mu.Lock()
	w.calls = append(w.calls, widgetCall{Method: method, Pos: p})
	w.mu.Unlock()
}

func (w *mockWidget) PanTo(p domain.GeoPoint)   { w.record("PanTo", p) }
func (w *mockWidget) FlyTo(p domain.GeoPoint)   { w.record("FlyTo", p) }
func (w *mockWidget) SetView(p domain.GeoPoint) { w.record("SetView", p) }
func (w *mockWidget) InvalidateSize()           { w.record("InvalidateSize", domain.GeoPoint{}) }

func (w *mockWidget) Bounds() domain.MapBounds {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.bounds
}

func (w *mockWidget) Viewport() domain.Viewport {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.view
}

func (w *mockWidget) Report(b domain.MapBounds, vp domain.Viewport) {
	w.mu.Lock()
	w.bounds = b
	w.view = vp
	w.mu.Unlock()
}

func (w *mockWidget) Close() error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	return nil
}

// move simulates the user panning the map.
func (w *mockWidget) move(b domain.MapBounds, zoom int) {
	w.Report(b, domain.Viewport{Center: b.Center(), Zoom: zoom})
}

func (w *mockWidget) Calls(method string) []domain.GeoPoint {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []domain.GeoPoint
	for _, c := range w.calls {
		if c.Method == method {
			out = append(out, c.Pos)
		}
	}
	return out
}

// --- Mock Collaborators ---

type collabCall struct {
	Kind   domain.MapEventKind
	Pos    domain.GeoPoint
	Marker domain.LocationMarker
	Count  int
	Err    error
}

type mockCollaborators struct {
	mu    sync.Mutex
	calls []collabCall
}

func (c *mockCollaborators) add(call collabCall) error {
	c.mu.Lock()
	c.calls = append(c.calls, call)
	c.mu.Unlock()
	return nil
}

func (c *mockCollaborators) OpenDetailPanel(ctx context.Context, m domain.LocationMarker) error {
	return c.add(collabCall{Kind: domain.EventOpenDetailPanel, Marker: m})
}
func (c *mockCollaborators) OpenAddForm(ctx context.Context, p domain.GeoPoint) error {
	return c.add(collabCall{Kind: domain.EventOpenAddForm, Pos: p})
}
func (c *mockCollaborators) UpdateCoordinates(ctx context.Context, p domain.GeoPoint) error {
	return c.add(collabCall{Kind: domain.EventUpdateCoordinates, Pos: p})
}
func (c *mockCollaborators) CloseDetailTab(ctx context.Context) error {
	return c.add(collabCall{Kind: domain.EventCloseDetailTab})
}
func (c *mockCollaborators) MarkersLoaded(ctx context.Context, n int) error {
	return c.add(collabCall{Kind: domain.EventMarkersLoaded, Count: n})
}
func (c *mockCollaborators) MarkersFailed(ctx context.Context, err error) error {
	return c.add(collabCall{Kind: domain.EventMarkersFailed, Err: err})
}

func (c *mockCollaborators) Calls(kind domain.MapEventKind) []collabCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []collabCall
	for _, call := range c.calls {
		if call.Kind == kind {
			out = append(out, call)
		}
	}
	return out
}

// --- Mock IconResolver ---

type stubIcons struct{}

func (stubIcons) ResolveIcon(t domain.LocationType, wait *float64) domain.IconRef {
	name := string(t)
	if !t.Known() {
		name = "default"
	} else if wait != nil && *wait > 0 {
		name += "-wait"
	}
	return domain.IconRef{URL: "/location-icons/" + name + ".svg", Size: [2]int{30, 30}, Anchor: [2]int{15, 15}}
}

// --- Mock PositionStore ---

type mockPositions struct {
	mu    sync.Mutex
	saved map[string]domain.Viewport
}

func newMockPositions() *mockPositions {
	return &mockPositions{saved: make(map[string]domain.Viewport)}
}

func (m *mockPositions) SavePosition(ctx context.Context, id string, vp domain.Viewport) error {
	m.mu.Lock()
	m.saved[id] = vp
	m.mu.Unlock()
	return nil
}

func (m *mockPositions) LoadPosition(ctx context.Context, id string) (*domain.Viewport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vp, ok := m.saved[id]
	if !ok {
		return nil, nil
	}
	return &vp, nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu     sync.Mutex
	events []domain.MapEvent
}

func (m *mockPublisher) PublishMapEvent(ctx context.Context, e *domain.MapEvent) error {
	m.mu.Lock()
	m.events = append(m.events, *e)
	m.mu.Unlock()
	return nil
}
func (m *mockPublisher) PublishSignal(ctx context.Context, s *domain.SessionSignal) error { return nil }
func (m *mockPublisher) PublishLocationSaved(ctx context.Context, s *domain.LocationSaved) error {
	return nil
}

func (m *mockPublisher) Events() []domain.MapEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.MapEvent(nil), m.events...)
}

// --- Mock CacheService ---

var errCacheMiss = errors.New("cache miss")

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMockCache() *mockCache { return &mockCache{data: make(map[string][]byte)} }

func (c *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, errCacheMiss
	}
	return v, nil
}

func (c *mockCache) Set(ctx context.Context, key string, value []byte, ttl int) error {
	c.mu.Lock()
	c.data[key] = value
	c.mu.Unlock()
	return nil
}

func (c *mockCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()
	return nil
}

func (c *mockCache) Incr(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, _ := strconv.ParseInt(string(c.data[key]), 10, 64)
	n++
	c.data[key] = []byte(strconv.FormatInt(n, 10))
	return n, nil
}

// --- Mock LocationRepository ---

type mockLocationRepo struct {
	mu             sync.Mutex
	findCalls      int
	upserted       []domain.Location
	getByIDFn      func(ctx context.Context, id string) (*domain.Location, error)
	findInBoundsFn func(ctx context.Context, b domain.MapBounds, limit int) ([]domain.LocationMarker, error)
}

func (m *mockLocationRepo) Upsert(ctx context.Context, l *domain.Location) error {
	m.mu.Lock()
	m.upserted = append(m.upserted, *l)
	m.mu.Unlock()
	return nil
}

func (m *mockLocationRepo) UpsertBatch(ctx context.Context, ls []domain.Location) error {
	m.mu.Lock()
	m.upserted = append(m.upserted, ls...)
	m.mu.Unlock()
	return nil
}

func (m *mockLocationRepo) GetByID(ctx context.Context, id string) (*domain.Location, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrLocationNotFound
}

func (m *mockLocationRepo) FindInBounds(ctx context.Context, b domain.MapBounds, limit int) ([]domain.LocationMarker, error) {
	m.mu.Lock()
	m.findCalls++
	m.mu.Unlock()
	if m.findInBoundsFn != nil {
		return m.findInBoundsFn(ctx, b, limit)
	}
	return nil, nil
}

// --- Mock SubmissionStarter ---

type mockStarter struct {
	startFn func(ctx context.Context, loc *domain.Location, sessionID string) (string, error)
}

func (m *mockStarter) StartSubmission(ctx context.Context, loc *domain.Location, sessionID string) (string, error) {
	if m.startFn != nil {
		return m.startFn(ctx, loc, sessionID)
	}
	return "run-1", nil
}

var (
	_ ports.MapWidget     = (*mockWidget)(nil)
	_ ports.ViewReporter  = (*mockWidget)(nil)
	_ ports.Collaborators = (*mockCollaborators)(nil)
	_ ports.CacheService  = (*mockCache)(nil)
)

func ptr[T any](v T) *T { return &v }
