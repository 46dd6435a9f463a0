package domain

import (
	"fmt"
	"strings"
	"time"
)

// LocationType is the kind of shelter a marker stands for.
type LocationType string

const (
	LocationCabin          LocationType = "cabin"
	LocationCabinFireplace LocationType = "cabinFireplace"
	LocationShed           LocationType = "shed"
	LocationWaterSource    LocationType = "waterSource"
	LocationCave           LocationType = "cave"
	LocationPasture        LocationType = "pasture"
	LocationRaisedHide     LocationType = "raisedHide"
	LocationTower          LocationType = "tower"
)

// LocationTypes lists every known type in display order.
var LocationTypes = []LocationType{
	LocationCabin,
	LocationCabinFireplace,
	LocationShed,
	LocationWaterSource,
	LocationCave,
	LocationPasture,
	LocationRaisedHide,
	LocationTower,
}

// Known reports whether t is one of LocationTypes.
func (t LocationType) Known() bool {
	for _, known := range LocationTypes {
		if t == known {
			return true
		}
	}
	return false
}

// LocationMarker is the read-only view of a location rendered on the map.
type LocationMarker struct {
	ID          string       `json:"id"`
	Position    GeoPoint     `json:"location"`
	Type        LocationType `json:"type"`
	Name        string       `json:"name"`
	Phone       string       `json:"phone,omitempty"`
	WaitingTime *float64     `json:"waiting_time,omitempty"` // hours
}

// Location is the stored record behind a marker.
type Location struct {
	ID          string       `json:"id"`
	Position    GeoPoint     `json:"location"`
	Type        LocationType `json:"type"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Operator    string       `json:"operator,omitempty"`
	Address     string       `json:"address,omitempty"`
	Phone       string       `json:"phone,omitempty"`
	WaitingTime *float64     `json:"waiting_time,omitempty"`
	CreatedBy   string       `json:"created_by,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Marker projects the location onto its map marker.
func (l *Location) Marker() LocationMarker {
	return LocationMarker{
		ID:          l.ID,
		Position:    l.Position,
		Type:        l.Type,
		Name:        l.Name,
		Phone:       l.Phone,
		WaitingTime: l.WaitingTime,
	}
}

// Validate checks the fields a new location must carry.
func (l *Location) Validate() error {
	var problems []string
	if strings.TrimSpace(l.Name) == "" {
		problems = append(problems, "name is required")
	}
	if !l.Type.Known() {
		problems = append(problems, fmt.Sprintf("unknown type %q", l.Type))
	}
	if err := l.Position.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if l.WaitingTime != nil && *l.WaitingTime < 0 {
		problems = append(problems, "waiting_time must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidLocation, strings.Join(problems, "; "))
	}
	return nil
}

// Permissions are the caller's capabilities at the moment of a gesture.
type Permissions struct {
	LoggedIn  bool `json:"logged_in"`
	Moderator bool `json:"moderator"`
	EditMode  bool `json:"edit_mode"`
}

// Display describes the client screen and whether the location detail tab is open.
type Display struct {
	SmallScreen bool `json:"small_screen"`
	Phone       bool `json:"phone"`
	DetailOpen  bool `json:"detail_open"`
}
