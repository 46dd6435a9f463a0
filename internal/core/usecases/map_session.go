package usecases

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/samirrijal/trailmap/internal/core/domain"
	"github.com/samirrijal/trailmap/internal/core/ports"
	"github.com/samirrijal/trailmap/internal/pkg/metrics"
)

const savePositionTimeout = 2 * time.Second

var (
	activePinIcon = domain.IconRef{
		URL:    "/location-icons/point.svg",
		Size:   [2]int{30, 30},
		Anchor: [2]int{15, 15},
	}
	currentLocationIcon = domain.IconRef{
		URL:    "/location-icons/current.svg",
		Size:   [2]int{24, 24},
		Anchor: [2]int{12, 12},
	}
)

// MapSessionDeps are the collaborators of a single map session.
type MapSessionDeps struct {
	Widget        ports.MapWidget
	Provider      ports.MarkerProvider
	Presenter     *ClusterPresenter
	Collaborators ports.Collaborators
	Positions     ports.PositionStore // optional
	Permissions   ports.PermissionSource
	Logger        *slog.Logger
}

// MapSession is the interaction core behind one map on one screen.
// Every transition runs to completion under mu. Marker fetches and position
// saves run outside it, and collaborators must not block: notifications are
// one-shot and never awaited.
type MapSession struct {
	id        string
	ctx       context.Context
	cancel    context.CancelFunc
	widget    ports.MapWidget
	presenter *ClusterPresenter
	collab    ports.Collaborators
	positions ports.PositionStore
	perms     ports.PermissionSource
	log       *slog.Logger

	mu      sync.Mutex
	tracker *ViewportTracker
	loader  *MarkerLoader
	machine *SelectionMachine
	geo     GeolocationControl
	display domain.Display
}

// NewMapSession wires a session. The session lives until Close.
func NewMapSession(id string, deps MapSessionDeps) *MapSession {
	ctx, cancel := context.WithCancel(context.Background())
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &MapSession{
		id:        id,
		ctx:       ctx,
		cancel:    cancel,
		widget:    deps.Widget,
		presenter: deps.Presenter,
		collab:    deps.Collaborators,
		positions: deps.Positions,
		perms:     deps.Permissions,
		log:       logger.With("session_id", id),
		tracker:   NewViewportTracker(deps.Widget.Viewport()),
		machine:   NewSelectionMachine(),
	}
	s.loader = NewMarkerLoader(deps.Provider, s.onLoaded)
	return s
}

// ID returns the session id.
func (s *MapSession) ID() string { return s.id }

// Close stops the session; in-flight fetches finish but nobody is notified.
func (s *MapSession) Close() {
	s.cancel()
	if c, ok := s.collab.(io.Closer); ok {
		_ = c.Close()
	}
}

// MoveEnd handles a move-settled event from the widget. It returns nil when
// the bounds did not change, otherwise the pending load. The position is
// saved in the background.
func (s *MapSession) MoveEnd(ctx context.Context) (<-chan LoadResult, error) {
	s.mu.Lock()
	bounds := s.widget.Bounds()
	if err := bounds.Validate(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	vp := s.widget.Viewport()
	if !s.tracker.Settle(bounds, vp) {
		s.mu.Unlock()
		return nil, nil
	}
	ch := s.loader.Load(context.WithoutCancel(ctx), bounds)
	s.mu.Unlock()

	if s.positions != nil {
		go s.savePosition(context.WithoutCancel(ctx), vp)
	}
	return ch, nil
}

func (s *MapSession) savePosition(ctx context.Context, vp domain.Viewport) {
	ctx, cancel := context.WithTimeout(ctx, savePositionTimeout)
	defer cancel()
	if err := s.positions.SavePosition(ctx, s.id, vp); err != nil {
		s.log.Warn("save position failed", "error", err)
	}
}

// Reload fetches markers for the last settled bounds again, e.g. after a save.
// It returns nil when the map has not settled yet.
func (s *MapSession) Reload(ctx context.Context) <-chan LoadResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	bounds, ok := s.tracker.Bounds()
	if !ok {
		return nil
	}
	return s.loader.Load(context.WithoutCancel(ctx), bounds)
}

func (s *MapSession) onLoaded(res LoadResult) {
	if s.ctx.Err() != nil {
		return
	}
	switch res.Outcome {
	case LoadApplied:
		s.log.Debug("markers loaded", "seq", res.Seq, "count", res.Count)
		s.notify("markers_loaded", s.collab.MarkersLoaded(s.ctx, res.Count))
	case LoadDiscarded:
		s.log.Debug("stale marker response discarded", "seq", res.Seq)
	case LoadFailed:
		s.log.Warn("marker load failed", "seq", res.Seq, "error", res.Err)
		s.notify("markers_failed", s.collab.MarkersFailed(s.ctx, res.Err))
	}
}

// Bounds returns the last settled bounds.
func (s *MapSession) Bounds() (domain.MapBounds, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.Bounds()
}

// Selection returns the state machine snapshot.
func (s *MapSession) Selection() domain.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.Snapshot()
}

// MarkerClick selects a marker from the working set.
func (s *MapSession) MarkerClick(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	marker, ok := s.loader.Find(id)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrLocationNotFound, id)
	}
	s.apply("marker_click", s.machine.MarkerClick(marker))
	return nil
}

// Click handles a left click on empty map.
func (s *MapSession) Click(pos domain.GeoPoint) Effects {
	s.mu.Lock()
	defer s.mu.Unlock()
	eff := s.machine.Click(pos, s.perms.Permissions(), s.display)
	s.apply("click", eff)
	return eff
}

// ContextMenu handles a right click on the map.
func (s *MapSession) ContextMenu(pos domain.GeoPoint) Effects {
	s.mu.Lock()
	defer s.mu.Unlock()
	eff := s.machine.ContextMenu(pos, s.perms.Permissions())
	s.apply("context_menu", eff)
	return eff
}

// ConfirmAdd accepts the "add marker" popup.
func (s *MapSession) ConfirmAdd() Effects {
	s.mu.Lock()
	defer s.mu.Unlock()
	eff := s.machine.ConfirmAdd(s.perms.Permissions())
	s.apply("confirm_add", eff)
	return eff
}

// DragEnd handles the end of a pin drag.
func (s *MapSession) DragEnd(pos domain.GeoPoint) Effects {
	s.mu.Lock()
	defer s.mu.Unlock()
	eff := s.machine.DragEnd(pos, s.perms.Permissions())
	s.apply("drag_end", eff)
	return eff
}

// SetActiveMarker places the active marker; nil clears the selection.
func (s *MapSession) SetActiveMarker(pos *domain.GeoPoint) Effects {
	s.mu.Lock()
	defer s.mu.Unlock()
	var eff Effects
	if pos == nil {
		eff = s.machine.Reset()
	} else {
		eff = s.machine.SetActive(*pos, s.perms.Permissions())
	}
	s.apply("set_active_marker", eff)
	return eff
}

// Reset clears the selection from any state.
func (s *MapSession) Reset() Effects {
	return s.SetActiveMarker(nil)
}

// Recenter flies to the user's position if known.
func (s *MapSession) Recenter() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.geo.Recenter(s.widget)
}

// FlyTo moves the map to center unless a marker is active.
func (s *MapSession) FlyTo(center domain.GeoPoint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.machine.Snapshot().Active != nil {
		return false
	}
	s.widget.FlyTo(center)
	return true
}

// SetCurrentLocation updates the geolocation control.
func (s *MapSession) SetCurrentLocation(p *domain.GeoPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.geo.SetPosition(p)
}

// SetDisplay updates the screen description.
func (s *MapSession) SetDisplay(d domain.Display) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.display
	s.display = d
	if d.SmallScreen && (prev.DetailOpen != d.DetailOpen || !prev.SmallScreen) {
		s.widget.InvalidateSize()
	}
}

// Display returns the screen description.
func (s *MapSession) Display() domain.Display {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.display
}

// Markers returns the working marker set.
func (s *MapSession) Markers() []domain.LocationMarker {
	return s.loader.Markers()
}

// Frame renders the current state.
func (s *MapSession) Frame() domain.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	perms := s.perms.Permissions()
	vp := s.tracker.Viewport()
	bounds, _ := s.tracker.Bounds()
	sel := s.machine.Snapshot()

	frame := domain.Frame{
		SessionID: s.id,
		Viewport:  vp,
		Bounds:    bounds,
		Items:     s.presenter.Present(s.loader.Markers(), vp.Zoom),
		Selection: sel,
		Controls: domain.Controls{
			Visible:  !(s.display.DetailOpen && s.display.Phone),
			GPSFixed: s.geo.Available(),
		},
	}
	if sel.Active != nil {
		frame.ActivePin = &domain.Pin{
			Position:     sel.Active.Position,
			Icon:         activePinIcon,
			ZIndexOffset: 1000,
			Draggable:    s.machine.Draggable(perms),
		}
		if s.machine.PopupVisible(perms) {
			pos := sel.Active.Position
			frame.ContextPopup = &pos
		}
	}
	if pos, ok := s.geo.Position(); ok {
		frame.CurrentLocation = &domain.Pin{
			Position:     pos,
			Icon:         currentLocationIcon,
			ZIndexOffset: 1100,
		}
	}
	return frame
}

// apply executes the effects of a transition. Caller holds mu.
func (s *MapSession) apply(gesture string, eff Effects) {
	outcome := "handled"
	switch {
	case eff.Unauthorized:
		outcome = "unauthorized"
	case eff.Ignored:
		outcome = "ignored"
	}
	metrics.Gestures.WithLabelValues(gesture, outcome).Inc()
	if eff.Ignored {
		return
	}

	ctx := s.ctx
	if eff.OpenDetail != nil {
		s.notify("open_detail_panel", s.collab.OpenDetailPanel(ctx, *eff.OpenDetail))
		s.setDetailOpen(true)
	}
	if eff.CloseTab {
		s.notify("close_detail_tab", s.collab.CloseDetailTab(ctx))
		s.setDetailOpen(false)
	}
	if eff.OpenAddForm != nil {
		s.notify("open_add_form", s.collab.OpenAddForm(ctx, *eff.OpenAddForm))
	}
	if eff.UpdateCoords != nil {
		s.notify("update_coordinates", s.collab.UpdateCoordinates(ctx, *eff.UpdateCoords))
	}
	if eff.SetView != nil {
		s.widget.SetView(*eff.SetView)
	}
	if eff.PanTo != nil && s.machine.State() != domain.StateContextMenuOpen {
		s.widget.PanTo(*eff.PanTo)
	}
}

func (s *MapSession) setDetailOpen(open bool) {
	if s.display.DetailOpen == open {
		return
	}
	s.display.DetailOpen = open
	if s.display.SmallScreen {
		s.widget.InvalidateSize()
	}
}

func (s *MapSession) notify(what string, err error) {
	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn("collaborator notification failed", "notification", what, "error", err)
	}
}
