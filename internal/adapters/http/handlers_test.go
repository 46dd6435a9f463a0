package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/trailmap/internal/adapters/http"
	"github.com/samirrijal/trailmap/internal/adapters/icons"
	"github.com/samirrijal/trailmap/internal/adapters/mapview"
	"github.com/samirrijal/trailmap/internal/core/domain"
	"github.com/samirrijal/trailmap/internal/core/ports"
	"github.com/samirrijal/trailmap/internal/core/usecases"
)

// ---- Mocks ----

type mockLocationRepo struct {
	getByIDFn      func(ctx context.Context, id string) (*domain.Location, error)
	findInBoundsFn func(ctx context.Context, b domain.MapBounds, limit int) ([]domain.LocationMarker, error)
}

func (m *mockLocationRepo) Upsert(ctx context.Context, l *domain.Location) error         { return nil }
func (m *mockLocationRepo) UpsertBatch(ctx context.Context, l []domain.Location) error { return nil }
func (m *mockLocationRepo) GetByID(ctx context.Context, id string) (*domain.Location, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrLocationNotFound
}
func (m *mockLocationRepo) FindInBounds(ctx context.Context, b domain.MapBounds, limit int) ([]domain.LocationMarker, error) {
	if m.findInBoundsFn != nil {
		return m.findInBoundsFn(ctx, b, limit)
	}
	return nil, nil
}

type mockStarter struct {
	startFn func(ctx context.Context, loc *domain.Location, sessionID string) (string, error)
}

func (m *mockStarter) StartSubmission(ctx context.Context, loc *domain.Location, sessionID string) (string, error) {
	if m.startFn != nil {
		return m.startFn(ctx, loc, sessionID)
	}
	return "run-1", nil
}

// ---- Test helpers ----

var testMarkers = []domain.LocationMarker{
	{ID: "cabin-1", Position: domain.GeoPoint{Lat: 15, Lon: 15}, Type: domain.LocationCabin, Name: "Ridge cabin"},
	{ID: "shed-1", Position: domain.GeoPoint{Lat: 50, Lon: 14}, Type: domain.LocationShed, Name: "Shed"},
	{ID: "cave-1", Position: domain.GeoPoint{Lat: 50.001, Lon: 14.001}, Type: domain.LocationCave, Name: "Cave"},
}

func staticMarkers(markers []domain.LocationMarker) ports.MarkerProvider {
	return ports.MarkerProviderFunc(func(ctx context.Context, b domain.MapBounds) ([]domain.LocationMarker, error) {
		var out []domain.LocationMarker
		for _, m := range markers {
			if b.Contains(m.Position) {
				out = append(out, m)
			}
		}
		return out, nil
	})
}

func newSessions(provider ports.MarkerProvider) *usecases.SessionService {
	return usecases.NewSessionService(provider, icons.NewTable(""), nil, nil, mapview.Factory(nil),
		usecases.SessionOptions{
			DefaultView: domain.Viewport{Center: domain.GeoPoint{Lat: 49.8, Lon: 15.5}, Zoom: 7},
			MinZoom:     5,
			MaxZoom:     18,
		}, nil)
}

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func makeDeps(opts ...func(*handler.Dependencies)) *handler.Dependencies {
	provider := staticMarkers(testMarkers)
	d := &handler.Dependencies{
		Markers:  provider,
		Sessions: newSessions(provider),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func readBody(t *testing.T, body io.Reader) []byte {
	t.Helper()
	b, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return b
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func createSession(t *testing.T, app *fiber.App, perms domain.Permissions) string {
	t.Helper()
	resp := doJSON(t, app, "POST", "/v1/sessions", map[string]interface{}{"permissions": perms})
	if resp.StatusCode != 201 {
		t.Fatalf("create session: expected 201, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}
	var frame domain.Frame
	if err := json.NewDecoder(resp.Body).Decode(&frame); err != nil {
		t.Fatal(err)
	}
	if frame.SessionID == "" {
		t.Fatal("expected a session id")
	}
	return frame.SessionID
}

var wholeWorldMove = map[string]interface{}{
	"bounds": domain.NewMapBounds(60, 30, 0, 0),
	"viewport": domain.Viewport{
		Center: domain.GeoPoint{Lat: 30, Lon: 15},
		Zoom:   12,
	},
}

// ---- Location handler tests ----

func TestListLocations_Success(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/locations?north=20&east=20&south=10&west=10", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var markers []domain.LocationMarker
	if err := json.NewDecoder(resp.Body).Decode(&markers); err != nil {
		t.Fatal(err)
	}
	if len(markers) != 1 || markers[0].ID != "cabin-1" {
		t.Errorf("expected only cabin-1, got %+v", markers)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "public, max-age=60" {
		t.Errorf("expected Cache-Control public, max-age=60, got %q", cc)
	}
}

func TestListLocations_EmptyIsArray(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/locations?north=-10&east=-10&south=-20&west=-20", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body := strings.TrimSpace(string(readBody(t, resp.Body))); body != "[]" {
		t.Errorf("expected [], got %s", body)
	}
}

func TestListLocations_MissingBounds(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/locations?north=20&east=20", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	var apiErr handler.APIError
	json.NewDecoder(resp.Body).Decode(&apiErr)
	if apiErr.Code != "bad_request" {
		t.Errorf("expected bad_request, got %q", apiErr.Code)
	}
}

func TestListLocations_InvertedBounds(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/locations?north=10&east=20&south=20&west=10", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestListLocations_ProviderFailure(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Markers = ports.MarkerProviderFunc(func(ctx context.Context, b domain.MapBounds) ([]domain.LocationMarker, error) {
			return nil, errors.New("upstream down")
		})
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/locations?north=20&east=20&south=10&west=10", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 502 {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
}

func TestClusterLocations_GroupsNearbyMarkers(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/locations/clusters?north=60&east=30&south=0&west=0&zoom=5", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("expected application/geo+json, got %q", ct)
	}

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		t.Fatal(err)
	}
	if fc.Type != "FeatureCollection" {
		t.Errorf("expected FeatureCollection, got %q", fc.Type)
	}
	if len(fc.Features) != 2 {
		t.Fatalf("expected 2 features (cabin + cluster), got %d", len(fc.Features))
	}

	var clusters int
	for _, f := range fc.Features {
		if f.Properties["kind"] == "cluster" {
			clusters++
			if f.Properties["count"] != float64(2) {
				t.Errorf("expected cluster of 2, got %v", f.Properties["count"])
			}
		}
	}
	if clusters != 1 {
		t.Errorf("expected 1 cluster, got %d", clusters)
	}
}

func TestClusterLocations_BadZoom(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/locations/clusters?north=60&east=30&south=0&west=0", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestLocationTypes(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/locations/types", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var types []string
	json.NewDecoder(resp.Body).Decode(&types)
	if len(types) != len(domain.LocationTypes) {
		t.Errorf("expected %d types, got %d", len(domain.LocationTypes), len(types))
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "public, max-age=3600" {
		t.Errorf("expected the handler's Cache-Control to be kept, got %q", cc)
	}
}

func TestGetLocation_NoStorage(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/locations/abc", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 503 {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestGetLocation_NotFound(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Locations = usecases.NewLocationService(&mockLocationRepo{}, nil, nil, 0, 0)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/locations/missing", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestGetLocation_Success(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Locations = usecases.NewLocationService(&mockLocationRepo{
			getByIDFn: func(ctx context.Context, id string) (*domain.Location, error) {
				return &domain.Location{ID: id, Name: "Ridge cabin", Type: domain.LocationCabin}, nil
			},
		}, nil, nil, 0, 0)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/locations/cabin-1", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var loc domain.Location
	json.NewDecoder(resp.Body).Decode(&loc)
	if loc.Name != "Ridge cabin" {
		t.Errorf("expected Ridge cabin, got %q", loc.Name)
	}
}

func TestSubmitLocation_RequiresModerator(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Locations = usecases.NewLocationService(&mockLocationRepo{}, nil, &mockStarter{}, 0, 0)
	})
	app := setupApp(deps)
	id := createSession(t, app, domain.Permissions{LoggedIn: true})

	resp := doJSON(t, app, "POST", "/v1/locations", map[string]interface{}{
		"session_id": id,
		"location":   domain.Location{Name: "New cabin", Type: domain.LocationCabin, Position: domain.GeoPoint{Lat: 5, Lon: 5}},
	})
	if resp.StatusCode != 403 {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestSubmitLocation_Accepted(t *testing.T) {
	var started *domain.Location
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Locations = usecases.NewLocationService(&mockLocationRepo{}, nil, &mockStarter{
			startFn: func(ctx context.Context, loc *domain.Location, sessionID string) (string, error) {
				started = loc
				return "run-42", nil
			},
		}, 0, 0)
	})
	app := setupApp(deps)
	id := createSession(t, app, domain.Permissions{LoggedIn: true, Moderator: true})

	resp := doJSON(t, app, "POST", "/v1/locations", map[string]interface{}{
		"session_id": id,
		"location":   domain.Location{Name: "New cabin", Type: domain.LocationCabin, Position: domain.GeoPoint{Lat: 5, Lon: 5}},
	})
	if resp.StatusCode != 202 {
		t.Fatalf("expected 202, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}

	var result handler.SubmitLocationResponse
	json.NewDecoder(resp.Body).Decode(&result)
	if result.RunID != "run-42" {
		t.Errorf("expected run-42, got %q", result.RunID)
	}
	if result.Location == nil || result.Location.ID == "" {
		t.Fatal("expected the location to get an id")
	}
	if started == nil || started.ID != result.Location.ID {
		t.Error("expected the workflow to receive the same location")
	}
}

func TestSubmitLocation_Invalid(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Locations = usecases.NewLocationService(&mockLocationRepo{}, nil, &mockStarter{}, 0, 0)
	})
	app := setupApp(deps)
	id := createSession(t, app, domain.Permissions{LoggedIn: true, Moderator: true})

	resp := doJSON(t, app, "POST", "/v1/locations", map[string]interface{}{
		"session_id": id,
		"location":   domain.Location{Type: "castle", Position: domain.GeoPoint{Lat: 5, Lon: 5}},
	})
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

// ---- Session handler tests ----

func TestCreateSession_InvalidID(t *testing.T) {
	app := setupApp(makeDeps())

	resp := doJSON(t, app, "POST", "/v1/sessions", map[string]interface{}{"id": "not-a-uuid"})
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCreateSession_DefaultView(t *testing.T) {
	app := setupApp(makeDeps())

	resp := doJSON(t, app, "POST", "/v1/sessions", nil)
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var frame domain.Frame
	json.NewDecoder(resp.Body).Decode(&frame)
	if frame.Viewport.Zoom != 7 {
		t.Errorf("expected zoom 7, got %d", frame.Viewport.Zoom)
	}
	if frame.Selection.State != domain.StateIdle {
		t.Errorf("expected idle, got %s", frame.Selection.State)
	}
	if len(frame.Items) != 0 {
		t.Errorf("expected no items before the first move, got %d", len(frame.Items))
	}
}

func TestSession_NotFound(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/sessions/6ba7b810-9dad-11d1-80b4-00c04fd430c8", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestSession_NoStore(t *testing.T) {
	app := setupApp(makeDeps())
	id := createSession(t, app, domain.Permissions{})

	req := httptest.NewRequest("GET", "/v1/sessions/"+id, nil)
	resp, _ := app.Test(req, -1)
	if cc := resp.Header.Get("Cache-Control"); cc != "no-store" {
		t.Errorf("expected no-store, got %q", cc)
	}
}

func TestMoveEnd_LoadsMarkers(t *testing.T) {
	app := setupApp(makeDeps())
	id := createSession(t, app, domain.Permissions{})

	resp := doJSON(t, app, "POST", "/v1/sessions/"+id+"/move-end?wait=true", wholeWorldMove)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}
	var result handler.LoadResponse
	json.NewDecoder(resp.Body).Decode(&result)
	if !result.Changed {
		t.Error("expected the bounds to change")
	}
	if result.Outcome != "applied" {
		t.Errorf("expected applied, got %q", result.Outcome)
	}
	if len(result.Frame.Items) != 3 {
		t.Errorf("expected 3 unclustered items at zoom 12, got %d", len(result.Frame.Items))
	}

	// Same bounds again: nothing to load.
	resp = doJSON(t, app, "POST", "/v1/sessions/"+id+"/move-end?wait=true", wholeWorldMove)
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Changed {
		t.Error("expected unchanged bounds to be ignored")
	}
}

func TestMoveEnd_InvalidBounds(t *testing.T) {
	app := setupApp(makeDeps())
	id := createSession(t, app, domain.Permissions{})

	resp := doJSON(t, app, "POST", "/v1/sessions/"+id+"/move-end", map[string]interface{}{
		"bounds":   domain.NewMapBounds(100, 30, 0, 0),
		"viewport": domain.Viewport{Center: domain.GeoPoint{Lat: 30, Lon: 15}, Zoom: 7},
	})
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestMarkerClick_SelectsLoadedMarker(t *testing.T) {
	app := setupApp(makeDeps())
	id := createSession(t, app, domain.Permissions{})
	doJSON(t, app, "POST", "/v1/sessions/"+id+"/move-end?wait=true", wholeWorldMove)

	resp := doJSON(t, app, "POST", "/v1/sessions/"+id+"/marker-click", map[string]string{"marker_id": "cabin-1"})
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var result handler.GestureResponse
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Frame.Selection.State != domain.StateViewingMarker {
		t.Errorf("expected viewing_marker, got %s", result.Frame.Selection.State)
	}
	if result.Frame.ActivePin == nil {
		t.Fatal("expected an active pin")
	}
	if result.Frame.ActivePin.Position != (domain.GeoPoint{Lat: 15, Lon: 15}) {
		t.Errorf("expected pin at (15,15), got %+v", result.Frame.ActivePin.Position)
	}
	if result.Frame.ActivePin.ZIndexOffset != 1000 {
		t.Errorf("expected z-index offset 1000, got %d", result.Frame.ActivePin.ZIndexOffset)
	}
}

func TestMarkerClick_UnknownMarker(t *testing.T) {
	app := setupApp(makeDeps())
	id := createSession(t, app, domain.Permissions{})

	resp := doJSON(t, app, "POST", "/v1/sessions/"+id+"/marker-click", map[string]string{"marker_id": "nope"})
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestContextMenu_Unauthorized(t *testing.T) {
	app := setupApp(makeDeps())
	id := createSession(t, app, domain.Permissions{})

	resp := doJSON(t, app, "POST", "/v1/sessions/"+id+"/context-menu", map[string]interface{}{
		"position": domain.GeoPoint{Lat: 5, Lon: 5},
	})
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var result handler.GestureResponse
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Outcome != "unauthorized" {
		t.Errorf("expected unauthorized, got %q", result.Outcome)
	}
	if result.Frame.Selection.State != domain.StateIdle {
		t.Errorf("expected idle, got %s", result.Frame.Selection.State)
	}
}

func TestContextMenu_ConfirmAdd(t *testing.T) {
	app := setupApp(makeDeps())
	id := createSession(t, app, domain.Permissions{LoggedIn: true, Moderator: true})

	resp := doJSON(t, app, "POST", "/v1/sessions/"+id+"/context-menu", map[string]interface{}{
		"position": domain.GeoPoint{Lat: 5, Lon: 5},
	})
	var result handler.GestureResponse
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Frame.Selection.State != domain.StateContextMenuOpen {
		t.Fatalf("expected context_menu_open, got %s", result.Frame.Selection.State)
	}
	if result.Frame.ContextPopup == nil {
		t.Error("expected the add popup to be visible for a moderator")
	}

	resp = doJSON(t, app, "POST", "/v1/sessions/"+id+"/confirm-add", nil)
	result = handler.GestureResponse{}
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Outcome != "handled" {
		t.Errorf("expected handled, got %q", result.Outcome)
	}
	if result.Frame.Selection.State != domain.StatePlacingPin {
		t.Errorf("expected placing_pin, got %s", result.Frame.Selection.State)
	}
	if result.Frame.ContextPopup != nil {
		t.Error("expected the popup to close")
	}
}

func TestClick_MissingPosition(t *testing.T) {
	app := setupApp(makeDeps())
	id := createSession(t, app, domain.Permissions{})

	resp := doJSON(t, app, "POST", "/v1/sessions/"+id+"/click", map[string]interface{}{})
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestActiveMarker_SetAndClear(t *testing.T) {
	app := setupApp(makeDeps())
	id := createSession(t, app, domain.Permissions{LoggedIn: true, EditMode: true})

	resp := doJSON(t, app, "PUT", "/v1/sessions/"+id+"/active-marker", map[string]interface{}{
		"position": domain.GeoPoint{Lat: 48.1, Lon: 17.1},
	})
	var result handler.GestureResponse
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Frame.Selection.State != domain.StatePlacingPin {
		t.Fatalf("expected placing_pin in edit mode, got %s", result.Frame.Selection.State)
	}
	if result.Frame.ActivePin == nil || !result.Frame.ActivePin.Draggable {
		t.Error("expected a draggable pin in edit mode")
	}

	resp = doJSON(t, app, "PUT", "/v1/sessions/"+id+"/active-marker", map[string]interface{}{"position": nil})
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Frame.Selection.State != domain.StateIdle {
		t.Errorf("expected idle after clearing, got %s", result.Frame.Selection.State)
	}
}

func TestRecenter_WithoutPosition(t *testing.T) {
	app := setupApp(makeDeps())
	id := createSession(t, app, domain.Permissions{})

	resp := doJSON(t, app, "POST", "/v1/sessions/"+id+"/recenter", nil)
	var result handler.GestureResponse
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Outcome != "ignored" {
		t.Errorf("expected ignored without a known position, got %q", result.Outcome)
	}

	doJSON(t, app, "PUT", "/v1/sessions/"+id+"/current-location", map[string]interface{}{
		"position": domain.GeoPoint{Lat: 50, Lon: 14},
	})
	resp = doJSON(t, app, "POST", "/v1/sessions/"+id+"/recenter", nil)
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Outcome != "handled" {
		t.Errorf("expected handled, got %q", result.Outcome)
	}
	if result.Frame.CurrentLocation == nil || !result.Frame.Controls.GPSFixed {
		t.Error("expected the current location pin and a fixed GPS control")
	}
}

func TestFlyTo_IgnoredWhileMarkerActive(t *testing.T) {
	app := setupApp(makeDeps())
	id := createSession(t, app, domain.Permissions{})
	doJSON(t, app, "POST", "/v1/sessions/"+id+"/move-end?wait=true", wholeWorldMove)
	doJSON(t, app, "POST", "/v1/sessions/"+id+"/marker-click", map[string]string{"marker_id": "cabin-1"})

	resp := doJSON(t, app, "POST", "/v1/sessions/"+id+"/fly-to", map[string]interface{}{
		"position": domain.GeoPoint{Lat: 40, Lon: 10},
	})
	var result handler.GestureResponse
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Outcome != "ignored" {
		t.Errorf("expected ignored, got %q", result.Outcome)
	}
}

func TestSessionGeoJSON_IncludesActivePin(t *testing.T) {
	app := setupApp(makeDeps())
	id := createSession(t, app, domain.Permissions{})
	doJSON(t, app, "POST", "/v1/sessions/"+id+"/move-end?wait=true", wholeWorldMove)
	doJSON(t, app, "POST", "/v1/sessions/"+id+"/marker-click", map[string]string{"marker_id": "cabin-1"})

	req := httptest.NewRequest("GET", "/v1/sessions/"+id+"/geojson", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := string(readBody(t, resp.Body))
	if !strings.Contains(body, `"active_pin"`) {
		t.Errorf("expected an active_pin feature, got %s", body)
	}
	if !strings.Contains(body, `"state":"viewing_marker"`) {
		t.Errorf("expected the selection state member, got %s", body)
	}
}

func TestCloseSession(t *testing.T) {
	deps := makeDeps()
	app := setupApp(deps)
	id := createSession(t, app, domain.Permissions{})

	resp := doJSON(t, app, "DELETE", "/v1/sessions/"+id, nil)
	if resp.StatusCode != 204 {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if deps.Sessions.Count() != 0 {
		t.Errorf("expected no live sessions, got %d", deps.Sessions.Count())
	}

	resp = doJSON(t, app, "DELETE", "/v1/sessions/"+id, nil)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404 on second close, got %d", resp.StatusCode)
	}
}

// ---- GraphQL ----

func TestGraphQL_Locations(t *testing.T) {
	app := setupApp(makeDeps())

	resp := doJSON(t, app, "POST", "/graphql", map[string]string{
		"query": `{ locations(north: 20, east: 20, south: 10, west: 10) { id name location { lat lon } } }`,
	})
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var result struct {
		Data struct {
			Locations []struct {
				ID       string `json:"id"`
				Name     string `json:"name"`
				Location struct {
					Lat float64 `json:"lat"`
				} `json:"location"`
			} `json:"locations"`
		} `json:"data"`
		Errors []interface{} `json:"errors"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Data.Locations) != 1 || result.Data.Locations[0].Name != "Ridge cabin" {
		t.Errorf("expected Ridge cabin, got %+v", result.Data.Locations)
	}
	if result.Data.Locations[0].Location.Lat != 15 {
		t.Errorf("expected lat 15, got %f", result.Data.Locations[0].Location.Lat)
	}
}

// ---- Health handler tests ----

func TestGraphQL_ClustersRejectsZoomOutOfRange(t *testing.T) {
	app := setupApp(makeDeps())

	for _, zoom := range []string{"-40", "23"} {
		resp := doJSON(t, app, "POST", "/graphql", map[string]string{
			"query": `{ clusters(north: 60, east: 30, south: 0, west: 0, zoom: ` + zoom + `) { kind count } }`,
		})
		var result struct {
			Data struct {
				Clusters []interface{} `json:"clusters"`
			} `json:"data"`
			Errors []struct {
				Message string `json:"message"`
			} `json:"errors"`
		}
		json.NewDecoder(resp.Body).Decode(&result)
		if len(result.Errors) == 0 || !strings.Contains(result.Errors[0].Message, "zoom must be between 0 and 22") {
			t.Errorf("zoom %s: expected a zoom range error, got %+v", zoom, result.Errors)
		}
		if len(result.Data.Clusters) != 0 {
			t.Errorf("zoom %s: expected no items, got %d", zoom, len(result.Data.Clusters))
		}
	}
}

func TestHealth_Returns200(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/health", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if result["status"] != "healthy" {
		t.Errorf("expected healthy status, got %v", result["status"])
	}
}

func TestReady_UpstreamOnly(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/ready", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200 without a database in upstream mode, got %d", resp.StatusCode)
	}
}

func TestReady_NoDB(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Locations = usecases.NewLocationService(&mockLocationRepo{}, nil, nil, 0, 0)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/ready", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 503 {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

// ---- X-API-Version header ----

func TestAPIVersionHeader(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/health", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	v := resp.Header.Get("X-API-Version")
	if v != "1.0.0" {
		t.Errorf("expected X-API-Version 1.0.0, got %q", v)
	}
}

// TestAccessLogMiddleware verifies structured access logging is emitted.
func TestAccessLogMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(handler.AccessLogMiddleware())
	app.Get("/test", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", "test-req-123")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "ok") {
		t.Errorf("expected response body to contain 'ok', got %s", string(body))
	}
}

// captureLogs routes the default slog logger into a buffer for one test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

// logLine returns the first JSON log record that has the given key.
func logLine(t *testing.T, buf *bytes.Buffer, key string) map[string]interface{} {
	t.Helper()
	for _, line := range strings.Split(buf.String(), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]interface{}
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		if _, ok := rec[key]; ok {
			return rec
		}
	}
	t.Fatalf("no log record with %q in:\n%s", key, buf.String())
	return nil
}

func TestAccessLogMiddleware_RecordsSessionGesture(t *testing.T) {
	app := setupApp(makeDeps())
	id := createSession(t, app, domain.Permissions{})
	buf := captureLogs(t)

	resp := doJSON(t, app, "POST", "/v1/sessions/"+id+"/click", map[string]interface{}{})
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	rec := logLine(t, buf, "gesture")
	if rec["gesture"] != "click" {
		t.Errorf("expected gesture click, got %v", rec["gesture"])
	}
	if rec["session_id"] != id {
		t.Errorf("expected session_id %s, got %v", id, rec["session_id"])
	}
	if rec["route"] != "/v1/sessions/:id/click" {
		t.Errorf("expected the route template, got %v", rec["route"])
	}
	if rec["level"] != "WARN" {
		t.Errorf("expected a rejected gesture to log at WARN, got %v", rec["level"])
	}
}

func TestAccessLogMiddleware_SessionCRUDHasNoGesture(t *testing.T) {
	app := setupApp(makeDeps())
	id := createSession(t, app, domain.Permissions{})
	buf := captureLogs(t)

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/sessions/"+id, nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	rec := logLine(t, buf, "route")
	if rec["session_id"] != id {
		t.Errorf("expected session_id %s, got %v", id, rec["session_id"])
	}
	if _, ok := rec["gesture"]; ok {
		t.Errorf("expected no gesture on a frame read, got %v", rec["gesture"])
	}
	if rec["level"] != "DEBUG" {
		t.Errorf("expected a frame poll to log at DEBUG, got %v", rec["level"])
	}
}

func TestRequestIDLogMiddleware_TagsSession(t *testing.T) {
	app := fiber.New()
	app.Use(handler.RequestIDLogMiddleware())
	app.Get("/v1/sessions/:id/geojson", func(c *fiber.Ctx) error {
		handler.LoggerFromCtx(c.UserContext()).Info("frame served")
		return c.SendString(handler.SessionIDFromCtx(c.UserContext()))
	})
	app.Get("/ws", func(c *fiber.Ctx) error {
		return c.SendString(handler.SessionIDFromCtx(c.UserContext()))
	})
	buf := captureLogs(t)

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/sessions/abc-123/geojson", nil), -1)
	if got := string(readBody(t, resp.Body)); got != "abc-123" {
		t.Errorf("expected session abc-123 in context, got %q", got)
	}
	if rec := logLine(t, buf, "session_id"); rec["session_id"] != "abc-123" {
		t.Errorf("expected the request logger to carry the session, got %v", rec["session_id"])
	}

	resp, _ = app.Test(httptest.NewRequest("GET", "/ws?session=xyz", nil), -1)
	if got := string(readBody(t, resp.Body)); got != "xyz" {
		t.Errorf("expected session xyz from the query, got %q", got)
	}
}

func TestETag_SkipsSessionFrames(t *testing.T) {
	app := setupApp(makeDeps())
	id := createSession(t, app, domain.Permissions{})

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/sessions/"+id, nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if etag := resp.Header.Get("ETag"); etag != "" {
		t.Errorf("expected no ETag on a no-store frame, got %q", etag)
	}
}

func TestETag_NotModifiedFromList(t *testing.T) {
	app := setupApp(makeDeps())

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/locations/types", nil), -1)
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatal("expected an ETag on location types")
	}

	req := httptest.NewRequest("GET", "/v1/locations/types", nil)
	req.Header.Set("If-None-Match", `W/"stale", `+etag)
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != fiber.StatusNotModified {
		t.Errorf("expected 304, got %d", resp.StatusCode)
	}
	if body := readBody(t, resp.Body); len(body) != 0 {
		t.Errorf("expected an empty body, got %q", body)
	}
}
