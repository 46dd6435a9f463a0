package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/trailmap/internal/core/domain"
	"github.com/samirrijal/trailmap/internal/core/usecases"
)

// loadWait bounds how long ?wait=true blocks for a marker load.
const loadWait = 10 * time.Second

// GestureResponse reports the outcome of a gesture and the resulting frame.
type GestureResponse struct {
	Outcome string       `json:"outcome"` // handled, ignored, unauthorized
	Frame   domain.Frame `json:"frame"`
}

// LoadResponse reports a marker load started by a move or reload.
type LoadResponse struct {
	Changed bool         `json:"changed"`
	Outcome string       `json:"outcome,omitempty"` // applied, discarded, failed, pending
	Error   string       `json:"error,omitempty"`
	Frame   domain.Frame `json:"frame"`
}

type positionRequest struct {
	Position *domain.GeoPoint `json:"position"`
}

type moveEndRequest struct {
	Bounds   domain.MapBounds `json:"bounds"`
	Viewport domain.Viewport  `json:"viewport"`
}

type markerClickRequest struct {
	MarkerID string `json:"marker_id"`
}

func outcome(eff usecases.Effects) string {
	switch {
	case eff.Unauthorized:
		return "unauthorized"
	case eff.Ignored:
		return "ignored"
	}
	return "handled"
}

func session(c *fiber.Ctx, deps *Dependencies) (*usecases.MapSession, error) {
	return deps.Sessions.Get(c.Params("id"))
}

func parsePosition(c *fiber.Ctx, required bool) (*domain.GeoPoint, error) {
	var req positionRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	if req.Position == nil {
		if required {
			return nil, fiber.NewError(fiber.StatusBadRequest, "position is required")
		}
		return nil, nil
	}
	if err := req.Position.Validate(); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return req.Position, nil
}

// awaitLoad waits for a pending load when the client asked for it.
func awaitLoad(ctx context.Context, c *fiber.Ctx, ch <-chan usecases.LoadResult, resp *LoadResponse) {
	if ch == nil {
		return
	}
	resp.Outcome = "pending"
	if !c.QueryBool("wait", false) {
		return
	}
	timer := time.NewTimer(loadWait)
	defer timer.Stop()
	select {
	case res := <-ch:
		resp.Outcome = string(res.Outcome)
		if res.Outcome == usecases.LoadFailed && res.Err != nil {
			resp.Error = res.Err.Error()
		}
	case <-timer.C:
	case <-ctx.Done():
	}
}

// CreateSessionHandler opens a map session.
func CreateSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req usecases.CreateSessionRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return errBadRequest(c, "invalid JSON body")
			}
		}
		s, err := deps.Sessions.Create(c.UserContext(), req)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(s.Frame())
	}
}

// GetSessionHandler returns the current frame of a session.
func GetSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := session(c, deps)
		if err != nil {
			return errFromDomain(c, err)
		}
		c.Set("Cache-Control", "no-store")
		return c.JSON(s.Frame())
	}
}

// SessionGeoJSONHandler returns the frame's render items as GeoJSON.
func SessionGeoJSONHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := session(c, deps)
		if err != nil {
			return errFromDomain(c, err)
		}
		data, err := frameGeoJSON(s.Frame()).MarshalJSON()
		if err != nil {
			return errInternal(c, err.Error())
		}
		c.Set("Cache-Control", "no-store")
		c.Set("Content-Type", "application/geo+json")
		return c.Send(data)
	}
}

// CloseSessionHandler ends a session.
func CloseSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Sessions.Close(c.Params("id")); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// SetPermissionsHandler replaces the session's capabilities.
func SetPermissionsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var perms domain.Permissions
		if err := c.BodyParser(&perms); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		if err := deps.Sessions.SetPermissions(c.Params("id"), perms); err != nil {
			return errFromDomain(c, err)
		}
		s, err := session(c, deps)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(s.Frame())
	}
}

// SetDisplayHandler updates the client screen description.
func SetDisplayHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := session(c, deps)
		if err != nil {
			return errFromDomain(c, err)
		}
		var d domain.Display
		if err := c.BodyParser(&d); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		s.SetDisplay(d)
		return c.JSON(s.Frame())
	}
}

// MoveEndHandler reports a settled map view.
func MoveEndHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req moveEndRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		id := c.Params("id")
		ch, err := deps.Sessions.MoveEnd(c.UserContext(), id, req.Bounds, req.Viewport)
		if err != nil {
			return errFromDomain(c, err)
		}
		s, err := deps.Sessions.Get(id)
		if err != nil {
			return errFromDomain(c, err)
		}

		resp := LoadResponse{Changed: ch != nil}
		awaitLoad(c.UserContext(), c, ch, &resp)
		resp.Frame = s.Frame()
		return c.JSON(resp)
	}
}

// ReloadHandler refetches markers for the current bounds.
func ReloadHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := session(c, deps)
		if err != nil {
			return errFromDomain(c, err)
		}
		ch := s.Reload(c.UserContext())
		resp := LoadResponse{Changed: ch != nil}
		awaitLoad(c.UserContext(), c, ch, &resp)
		resp.Frame = s.Frame()
		return c.JSON(resp)
	}
}

// gestureHandler runs a positional gesture and returns its outcome.
func gestureHandler(deps *Dependencies, required bool, run func(s *usecases.MapSession, p *domain.GeoPoint) usecases.Effects) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := session(c, deps)
		if err != nil {
			return errFromDomain(c, err)
		}
		var pos *domain.GeoPoint
		if required || len(c.Body()) > 0 {
			pos, err = parsePosition(c, required)
			if err != nil {
				return errBadRequest(c, err.Error())
			}
		}
		eff := run(s, pos)
		return c.JSON(GestureResponse{Outcome: outcome(eff), Frame: s.Frame()})
	}
}

// ClickHandler handles a left click on empty map.
func ClickHandler(deps *Dependencies) fiber.Handler {
	return gestureHandler(deps, true, func(s *usecases.MapSession, p *domain.GeoPoint) usecases.Effects {
		return s.Click(*p)
	})
}

// ContextMenuHandler handles a right click on the map.
func ContextMenuHandler(deps *Dependencies) fiber.Handler {
	return gestureHandler(deps, true, func(s *usecases.MapSession, p *domain.GeoPoint) usecases.Effects {
		return s.ContextMenu(*p)
	})
}

// DragEndHandler handles the end of a pin drag.
func DragEndHandler(deps *Dependencies) fiber.Handler {
	return gestureHandler(deps, true, func(s *usecases.MapSession, p *domain.GeoPoint) usecases.Effects {
		return s.DragEnd(*p)
	})
}

// ConfirmAddHandler accepts the "add marker" popup.
func ConfirmAddHandler(deps *Dependencies) fiber.Handler {
	return gestureHandler(deps, false, func(s *usecases.MapSession, _ *domain.GeoPoint) usecases.Effects {
		return s.ConfirmAdd()
	})
}

// SetActiveMarkerHandler places the active marker; a null position clears it.
func SetActiveMarkerHandler(deps *Dependencies) fiber.Handler {
	return gestureHandler(deps, false, func(s *usecases.MapSession, p *domain.GeoPoint) usecases.Effects {
		return s.SetActiveMarker(p)
	})
}

// ResetHandler clears the selection.
func ResetHandler(deps *Dependencies) fiber.Handler {
	return gestureHandler(deps, false, func(s *usecases.MapSession, _ *domain.GeoPoint) usecases.Effects {
		return s.Reset()
	})
}

// MarkerClickHandler selects a loaded marker.
func MarkerClickHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := session(c, deps)
		if err != nil {
			return errFromDomain(c, err)
		}
		var req markerClickRequest
		if err := c.BodyParser(&req); err != nil || req.MarkerID == "" {
			return errBadRequest(c, "marker_id is required")
		}
		if err := s.MarkerClick(req.MarkerID); err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(GestureResponse{Outcome: "handled", Frame: s.Frame()})
	}
}

// RecenterHandler flies to the user's current position if known.
func RecenterHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := session(c, deps)
		if err != nil {
			return errFromDomain(c, err)
		}
		result := "ignored"
		if s.Recenter() {
			result = "handled"
		}
		return c.JSON(GestureResponse{Outcome: result, Frame: s.Frame()})
	}
}

// FlyToHandler moves the map to a new center unless a marker is active.
func FlyToHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := session(c, deps)
		if err != nil {
			return errFromDomain(c, err)
		}
		pos, err := parsePosition(c, true)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		result := "ignored"
		if s.FlyTo(*pos) {
			result = "handled"
		}
		return c.JSON(GestureResponse{Outcome: result, Frame: s.Frame()})
	}
}

// CurrentLocationHandler sets or clears the user's current position.
func CurrentLocationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := session(c, deps)
		if err != nil {
			return errFromDomain(c, err)
		}
		pos, err := parsePosition(c, false)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		s.SetCurrentLocation(pos)
		return c.JSON(s.Frame())
	}
}
