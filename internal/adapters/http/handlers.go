package http

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/trailmap/internal/core/domain"
)

// boundsFromQuery reads north/east/south/west query parameters.
func boundsFromQuery(c *fiber.Ctx) (domain.MapBounds, error) {
	for _, k := range []string{"north", "east", "south", "west"} {
		if c.Query(k) == "" {
			return domain.MapBounds{}, errMissingBounds
		}
	}
	b := domain.NewMapBounds(
		c.QueryFloat("north"), c.QueryFloat("east"),
		c.QueryFloat("south"), c.QueryFloat("west"),
	)
	return b, b.Validate()
}

var errMissingBounds = fiber.NewError(fiber.StatusBadRequest, "north, east, south and west are required")

// maxZoom is the deepest zoom the clustering endpoints accept.
const maxZoom = 22

// fetchMarkers asks the marker source; its failures surface as ErrMarkerLoad.
func fetchMarkers(c *fiber.Ctx, deps *Dependencies, bounds domain.MapBounds) ([]domain.LocationMarker, error) {
	markers, err := deps.Markers.FetchMarkers(c.UserContext(), bounds)
	if err != nil && !errors.Is(err, domain.ErrInvalidBounds) {
		return nil, fmt.Errorf("%w: %w", domain.ErrMarkerLoad, err)
	}
	return markers, err
}

// ListLocationsHandler returns the markers inside the requested bounds.
func ListLocationsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		bounds, err := boundsFromQuery(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		markers, err := fetchMarkers(c, deps, bounds)
		if err != nil {
			return errFromDomain(c, err)
		}
		if markers == nil {
			markers = []domain.LocationMarker{}
		}

		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(markers)
	}
}

// ClusterLocationsHandler returns the markers inside bounds, clustered for
// the given zoom, as a GeoJSON FeatureCollection.
func ClusterLocationsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		bounds, err := boundsFromQuery(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		zoom := c.QueryInt("zoom", -1)
		if zoom < 0 || zoom > maxZoom {
			return errBadRequest(c, fmt.Sprintf("zoom must be between 0 and %d", maxZoom))
		}

		markers, err := fetchMarkers(c, deps, bounds)
		if err != nil {
			return errFromDomain(c, err)
		}

		items := deps.Sessions.Presenter().Present(markers, zoom)
		data, err := renderItemsGeoJSON(items).MarshalJSON()
		if err != nil {
			return errInternal(c, err.Error())
		}
		c.Set("Content-Type", "application/geo+json")
		return c.Send(data)
	}
}

// GetLocationHandler returns a single location by ID.
func GetLocationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Locations == nil {
			return errUnavailable(c, "location storage not available")
		}
		id := strings.TrimSpace(c.Params("id"))
		if id == "" {
			return errBadRequest(c, "location id is required")
		}

		loc, err := deps.Locations.GetByID(c.UserContext(), id)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(loc)
	}
}

// SubmitLocationRequest is the body of POST /v1/locations.
type SubmitLocationRequest struct {
	SessionID string          `json:"session_id"`
	Location  domain.Location `json:"location"`
}

// SubmitLocationResponse is returned when a submission has been accepted.
type SubmitLocationResponse struct {
	Location *domain.Location `json:"location"`
	RunID    string           `json:"run_id"`
}

// SubmitLocationHandler starts the submission workflow for a new location.
// Only moderators of a live session may submit.
func SubmitLocationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Locations == nil {
			return errUnavailable(c, "location storage not available")
		}
		var req SubmitLocationRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}

		perms, err := deps.Sessions.Permissions(req.SessionID)
		if err != nil {
			return errFromDomain(c, err)
		}
		if !perms.LoggedIn || !perms.Moderator {
			return errForbidden(c, "only moderators may add locations")
		}

		loc, runID, err := deps.Locations.Submit(c.UserContext(), req.Location, req.SessionID)
		if err != nil {
			return errFromDomain(c, err)
		}

		LoggerFromCtx(c.UserContext()).Info("location submitted",
			"location_id", loc.ID, "session_id", req.SessionID, "run_id", runID)
		return c.Status(fiber.StatusAccepted).JSON(SubmitLocationResponse{Location: loc, RunID: runID})
	}
}

// LocationTypesHandler lists the known location types.
func LocationTypesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("Cache-Control", "public, max-age=3600")
		return c.JSON(domain.LocationTypes)
	}
}
