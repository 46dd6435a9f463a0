package usecases

import "github.com/samirrijal/trailmap/internal/core/domain"

// ViewportTracker remembers the last settled bounds and filters out
// settle events that did not move the map.
type ViewportTracker struct {
	last     domain.MapBounds
	seen     bool
	viewport domain.Viewport
}

// NewViewportTracker creates a tracker starting at the given view.
func NewViewportTracker(initial domain.Viewport) *ViewportTracker {
	return &ViewportTracker{viewport: initial}
}

// Settle records a move-settled event. It returns true only when bounds
// differ from the last known value.
func (t *ViewportTracker) Settle(bounds domain.MapBounds, vp domain.Viewport) bool {
	t.viewport = vp
	if t.seen && t.last.Equal(bounds) {
		return false
	}
	t.last = bounds
	t.seen = true
	return true
}

// Bounds returns the last settled bounds and whether any were seen.
func (t *ViewportTracker) Bounds() (domain.MapBounds, bool) {
	return t.last, t.seen
}

// Viewport returns the most recently reported center and zoom.
func (t *ViewportTracker) Viewport() domain.Viewport {
	return t.viewport
}
