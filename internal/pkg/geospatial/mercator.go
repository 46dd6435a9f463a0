// Package geospatial converts between WGS 84 coordinates and web-mercator pixels.
package geospatial

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// MaxLatitude keeps the projection finite near the poles.
const MaxLatitude = 85.0511287798

// worldMeters is the circumference of the mercator plane.
const worldMeters = 2 * math.Pi * orb.EarthRadius

// scale returns the pixel width of the world at zoom.
func scale(zoom, tileSize int) float64 {
	return float64(tileSize) * math.Pow(2, float64(zoom))
}

// ToPixels projects a coordinate to web-mercator pixels at zoom, origin top-left.
func ToPixels(lat, lon float64, zoom, tileSize int) (x, y float64) {
	lat = math.Max(-MaxLatitude, math.Min(MaxLatitude, lat))
	m := project.WGS84.ToMercator(orb.Point{lon, lat})
	s := scale(zoom, tileSize)
	return (m.X()/worldMeters + 0.5) * s, (0.5 - m.Y()/worldMeters) * s
}

// FromPixels is the inverse of ToPixels.
func FromPixels(x, y float64, zoom, tileSize int) (lat, lon float64) {
	s := scale(zoom, tileSize)
	m := orb.Point{(x/s - 0.5) * worldMeters, (0.5 - y/s) * worldMeters}
	p := project.Mercator.ToWGS84(m)
	return p.Lat(), p.Lon()
}
