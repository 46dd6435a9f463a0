package usecases

import (
	"github.com/samirrijal/trailmap/internal/core/domain"
	"github.com/samirrijal/trailmap/internal/core/ports"
)

// GeolocationControl holds the user's current position, if known,
// and recenters the map on it.
type GeolocationControl struct {
	current *domain.GeoPoint
}

// SetPosition replaces the known position; nil marks it unknown.
func (g *GeolocationControl) SetPosition(p *domain.GeoPoint) {
	if p == nil {
		g.current = nil
		return
	}
	pos := *p
	g.current = &pos
}

// Position returns the known position.
func (g *GeolocationControl) Position() (domain.GeoPoint, bool) {
	if g.current == nil {
		return domain.GeoPoint{}, false
	}
	return *g.current, true
}

// Available reports whether a position is known.
func (g *GeolocationControl) Available() bool { return g.current != nil }

// Recenter flies the map to the current position. Without one it does nothing.
func (g *GeolocationControl) Recenter(w ports.MapWidget) bool {
	if g.current == nil {
		return false
	}
	w.FlyTo(*g.current)
	return true
}
