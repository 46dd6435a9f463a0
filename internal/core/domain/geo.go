package domain

import "fmt"

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate reports whether the point lies on the globe.
func (p GeoPoint) Validate() error {
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: lat %.6f out of range", ErrInvalidBounds, p.Lat)
	}
	if p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("%w: lon %.6f out of range", ErrInvalidBounds, p.Lon)
	}
	return nil
}

// MapBounds is the visible area reported by the map widget.
// It is a comparable value: two bounds are the same viewport iff they are ==.
type MapBounds struct {
	NorthEast GeoPoint `json:"north_east"`
	SouthWest GeoPoint `json:"south_west"`
}

// NewMapBounds builds bounds from the four edges.
func NewMapBounds(north, east, south, west float64) MapBounds {
	return MapBounds{
		NorthEast: GeoPoint{Lat: north, Lon: east},
		SouthWest: GeoPoint{Lat: south, Lon: west},
	}
}

// Equal compares bounds by value.
func (b MapBounds) Equal(other MapBounds) bool {
	return b == other
}

// IsZero reports whether the bounds were never set.
func (b MapBounds) IsZero() bool {
	return b == MapBounds{}
}

// Contains reports whether p lies inside the bounds (edges included).
func (b MapBounds) Contains(p GeoPoint) bool {
	return p.Lat >= b.SouthWest.Lat && p.Lat <= b.NorthEast.Lat &&
		p.Lon >= b.SouthWest.Lon && p.Lon <= b.NorthEast.Lon
}

// Center returns the midpoint of the bounds.
func (b MapBounds) Center() GeoPoint {
	return GeoPoint{
		Lat: (b.NorthEast.Lat + b.SouthWest.Lat) / 2,
		Lon: (b.NorthEast.Lon + b.SouthWest.Lon) / 2,
	}
}

// Validate checks both corners and their ordering.
func (b MapBounds) Validate() error {
	if err := b.NorthEast.Validate(); err != nil {
		return err
	}
	if err := b.SouthWest.Validate(); err != nil {
		return err
	}
	if b.NorthEast.Lat < b.SouthWest.Lat || b.NorthEast.Lon < b.SouthWest.Lon {
		return fmt.Errorf("%w: north-east corner lies south-west of the south-west corner", ErrInvalidBounds)
	}
	return nil
}

// WorldBounds is the widest area the map can show.
var WorldBounds = NewMapBounds(90, 180, -90, -180)

// Viewport is the map center and zoom level.
type Viewport struct {
	Center GeoPoint `json:"center"`
	Zoom   int      `json:"zoom"`
}
