package usecases

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/samirrijal/trailmap/internal/core/domain"
	"github.com/samirrijal/trailmap/internal/core/ports"
	"github.com/samirrijal/trailmap/internal/pkg/metrics"
)

// WidgetFactory builds the map widget for a new session.
type WidgetFactory func(sessionID string, initial domain.Viewport) ports.MapWidget

// SessionOptions configure new sessions.
type SessionOptions struct {
	DefaultView domain.Viewport
	MinZoom     int
	MaxZoom     int
	Cluster     ClusterOptions
}

// CreateSessionRequest describes a new session. A known ID restores the
// position the session was last viewed at.
type CreateSessionRequest struct {
	ID          string             `json:"id,omitempty"`
	Permissions domain.Permissions `json:"permissions"`
	Display     domain.Display     `json:"display"`
}

type sessionEntry struct {
	session *MapSession
	perms   *SessionPermissions
	widget  ports.MapWidget
}

func (e *sessionEntry) close() {
	e.session.Close()
	if c, ok := e.widget.(io.Closer); ok {
		_ = c.Close()
	}
}

// SessionService keeps the live map sessions.
type SessionService struct {
	provider  ports.MarkerProvider
	presenter *ClusterPresenter
	positions ports.PositionStore
	events    ports.EventPublisher
	widgets   WidgetFactory
	opts      SessionOptions
	log       *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

// NewSessionService creates a SessionService. positions and events may be nil.
func NewSessionService(
	provider ports.MarkerProvider,
	icons ports.IconResolver,
	positions ports.PositionStore,
	events ports.EventPublisher,
	widgets WidgetFactory,
	opts SessionOptions,
	logger *slog.Logger,
) *SessionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{
		provider:  provider,
		presenter: NewClusterPresenter(opts.Cluster, icons),
		positions: positions,
		events:    events,
		widgets:   widgets,
		opts:      opts,
		log:       logger,
		sessions:  make(map[string]*sessionEntry),
	}
}

// Presenter returns the clustering presenter shared by all sessions.
func (s *SessionService) Presenter() *ClusterPresenter { return s.presenter }

// Create opens a session.
func (s *SessionService) Create(ctx context.Context, req CreateSessionRequest) (*MapSession, error) {
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	} else if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidSessionID, id)
	}

	s.mu.RLock()
	existing, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return existing.session, nil
	}

	view := s.opts.DefaultView
	if s.positions != nil && req.ID != "" {
		saved, err := s.positions.LoadPosition(ctx, id)
		if err != nil {
			s.log.Warn("restore position failed", "session_id", id, "error", err)
		} else if saved != nil {
			view = *saved
		}
	}
	view.Zoom = s.clampZoom(view.Zoom)

	perms := &SessionPermissions{}
	perms.Set(req.Permissions)
	widget := s.widgets(id, view)
	session := NewMapSession(id, MapSessionDeps{
		Widget:        widget,
		Provider:      s.provider,
		Presenter:     s.presenter,
		Collaborators: NewEventCollaborators(id, s.events),
		Positions:     s.positions,
		Permissions:   perms,
		Logger:        s.log,
	})
	session.SetDisplay(req.Display)

	s.mu.Lock()
	if existing, ok := s.sessions[id]; ok {
		s.mu.Unlock()
		(&sessionEntry{session: session, widget: widget}).close()
		return existing.session, nil
	}
	s.sessions[id] = &sessionEntry{session: session, perms: perms, widget: widget}
	s.mu.Unlock()

	metrics.ActiveSessions.Inc()
	s.log.Info("map session opened", "session_id", id, "zoom", view.Zoom)
	return session, nil
}

// Get returns a live session.
func (s *SessionService) Get(id string) (*MapSession, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	return e.session, nil
}

func (s *SessionService) entry(id string) (*sessionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return e, nil
}

// Close ends a session.
func (s *SessionService) Close(id string) error {
	s.mu.Lock()
	e, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	e.close()
	metrics.ActiveSessions.Dec()
	s.log.Info("map session closed", "session_id", id)
	return nil
}

// CloseAll ends every session, used on shutdown.
func (s *SessionService) CloseAll() {
	s.mu.Lock()
	entries := s.sessions
	s.sessions = make(map[string]*sessionEntry)
	s.mu.Unlock()
	for _, e := range entries {
		e.close()
		metrics.ActiveSessions.Dec()
	}
}

// Count returns the number of live sessions.
func (s *SessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// MoveEnd records the view reported by the client and settles it.
func (s *SessionService) MoveEnd(ctx context.Context, id string, bounds domain.MapBounds, vp domain.Viewport) (<-chan LoadResult, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	if err := bounds.Validate(); err != nil {
		return nil, err
	}
	if err := vp.Center.Validate(); err != nil {
		return nil, err
	}
	vp.Zoom = s.clampZoom(vp.Zoom)
	if r, ok := e.widget.(ports.ViewReporter); ok {
		r.Report(bounds, vp)
	}
	return e.session.MoveEnd(ctx)
}

// SetPermissions replaces the capabilities of a session.
func (s *SessionService) SetPermissions(id string, perms domain.Permissions) error {
	e, err := s.entry(id)
	if err != nil {
		return err
	}
	e.perms.Set(perms)
	return nil
}

// Permissions returns the capabilities of a session.
func (s *SessionService) Permissions(id string) (domain.Permissions, error) {
	e, err := s.entry(id)
	if err != nil {
		return domain.Permissions{}, err
	}
	return e.perms.Permissions(), nil
}

// HandleSignal applies a broker signal to its session.
func (s *SessionService) HandleSignal(ctx context.Context, sig *domain.SessionSignal) error {
	e, err := s.entry(sig.SessionID)
	if err != nil {
		return err
	}
	switch sig.Kind {
	case domain.SignalPermissions:
		if sig.Permissions != nil {
			e.perms.Set(*sig.Permissions)
		}
	case domain.SignalReset:
		e.session.Reset()
	case domain.SignalCurrentLocation:
		e.session.SetCurrentLocation(sig.Position)
	case domain.SignalReload:
		e.session.Reload(ctx)
	default:
		return fmt.Errorf("unknown signal kind %q", sig.Kind)
	}
	return nil
}

// HandleLocationSaved reloads every session showing the saved location and
// clears the pin of the session that submitted it.
func (s *SessionService) HandleLocationSaved(ctx context.Context, saved *domain.LocationSaved) error {
	s.mu.RLock()
	entries := make([]*sessionEntry, 0, len(s.sessions))
	for _, e := range s.sessions {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	pos := saved.Location.Position
	reloaded := 0
	for _, e := range entries {
		if e.session.ID() == saved.SessionID {
			e.session.Reset()
		}
		if b, ok := e.session.Bounds(); ok && b.Contains(pos) {
			e.session.Reload(ctx)
			reloaded++
		}
	}
	s.log.Info("location saved", "location_id", saved.Location.ID, "sessions_reloaded", reloaded)
	return nil
}

func (s *SessionService) clampZoom(z int) int {
	if s.opts.MinZoom > 0 && z < s.opts.MinZoom {
		return s.opts.MinZoom
	}
	if s.opts.MaxZoom > 0 && z > s.opts.MaxZoom {
		return s.opts.MaxZoom
	}
	return z
}
