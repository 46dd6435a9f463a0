package main

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/trailmap/internal/core/domain"
)

// parseLocations reads point features from a GeoJSON FeatureCollection.
// Features without point geometry are skipped; property validation is
// left to the import.
func parseLocations(data []byte) ([]domain.Location, int, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, 0, fmt.Errorf("decode feature collection: %w", err)
	}

	locs := make([]domain.Location, 0, len(fc.Features))
	skipped := 0
	for _, f := range fc.Features {
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			skipped++
			continue
		}
		locs = append(locs, featureLocation(f, pt))
	}
	return locs, skipped, nil
}

func featureLocation(f *geojson.Feature, pt orb.Point) domain.Location {
	p := f.Properties
	loc := domain.Location{
		ID:          p.MustString("id", ""),
		Position:    domain.GeoPoint{Lat: pt.Lat(), Lon: pt.Lon()},
		Type:        domain.LocationType(p.MustString("type", "")),
		Name:        strings.TrimSpace(p.MustString("name", "")),
		Description: p.MustString("description", ""),
		Operator:    p.MustString("operator", ""),
		Address:     p.MustString("address", ""),
		Phone:       p.MustString("phone", ""),
		CreatedBy:   p.MustString("created_by", ""),
	}
	if loc.ID == "" && f.ID != nil {
		loc.ID = fmt.Sprint(f.ID)
	}
	if _, ok := p["waiting_time"]; ok {
		wt := p.MustFloat64("waiting_time", 0)
		loc.WaitingTime = &wt
	}
	return loc
}
