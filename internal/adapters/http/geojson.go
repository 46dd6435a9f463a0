package http

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/trailmap/internal/core/domain"
)

func point(p domain.GeoPoint) orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// renderItemsGeoJSON converts render items to point features. Clusters carry
// their count and member ids; markers carry the marker fields and icon URL.
func renderItemsGeoJSON(items []domain.RenderItem) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, it := range items {
		f := geojson.NewFeature(point(it.Position))
		f.ID = it.ID
		f.Properties["kind"] = string(it.Kind)
		f.Properties["count"] = it.Count
		if it.Icon.URL != "" {
			f.Properties["icon"] = it.Icon.URL
		}
		if it.Icon.HTML != "" {
			f.Properties["label"] = it.Icon.HTML
		}
		if it.Marker != nil {
			f.Properties["name"] = it.Marker.Name
			f.Properties["type"] = string(it.Marker.Type)
			if it.Marker.Phone != "" {
				f.Properties["phone"] = it.Marker.Phone
			}
			if it.Marker.WaitingTime != nil {
				f.Properties["waiting_time"] = *it.Marker.WaitingTime
			}
		}
		if len(it.Members) > 0 {
			f.Properties["members"] = it.Members
		}
		fc.Append(f)
	}
	return fc
}

// frameGeoJSON adds the active pin and current-location marker to the items.
func frameGeoJSON(f domain.Frame) *geojson.FeatureCollection {
	fc := renderItemsGeoJSON(f.Items)
	if f.ActivePin != nil {
		pin := geojson.NewFeature(point(f.ActivePin.Position))
		pin.Properties["kind"] = "active_pin"
		pin.Properties["icon"] = f.ActivePin.Icon.URL
		pin.Properties["draggable"] = f.ActivePin.Draggable
		pin.Properties["z_index_offset"] = f.ActivePin.ZIndexOffset
		pin.Properties["popup"] = f.ContextPopup != nil
		fc.Append(pin)
	}
	if f.CurrentLocation != nil {
		cur := geojson.NewFeature(point(f.CurrentLocation.Position))
		cur.Properties["kind"] = "current_location"
		cur.Properties["icon"] = f.CurrentLocation.Icon.URL
		cur.Properties["z_index_offset"] = f.CurrentLocation.ZIndexOffset
		fc.Append(cur)
	}
	fc.ExtraMembers = geojson.Properties{
		"session_id": f.SessionID,
		"zoom":       f.Viewport.Zoom,
		"state":      string(f.Selection.State),
	}
	if !f.Bounds.IsZero() {
		fc.BBox = geojson.NewBBox(orb.Bound{
			Min: point(f.Bounds.SouthWest),
			Max: point(f.Bounds.NorthEast),
		})
	}
	return fc
}
