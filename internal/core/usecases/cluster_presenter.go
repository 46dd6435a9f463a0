package usecases

import (
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/samirrijal/trailmap/internal/core/domain"
	"github.com/samirrijal/trailmap/internal/core/ports"
	"github.com/samirrijal/trailmap/internal/pkg/geospatial"
)

var clusterNamespace = uuid.MustParse("6f1c7c0e-3b6a-4b7e-9d0a-5c1f2e7b9a41")

// ClusterOptions tune the clustering pass.
type ClusterOptions struct {
	Radius        float64 // screen pixels
	DisableAtZoom int     // at or above this zoom every marker renders on its own
	TileSize      int     // pixels per tile edge at zoom 0
}

// DefaultClusterOptions matches the map's stock marker-cluster layer.
func DefaultClusterOptions() ClusterOptions {
	return ClusterOptions{Radius: 60, DisableAtZoom: 11, TileSize: 256}
}

// ClusterPresenter turns the working marker set into render instructions.
type ClusterPresenter struct {
	opts  ClusterOptions
	icons ports.IconResolver
}

// NewClusterPresenter creates a presenter. Zero option fields take defaults.
func NewClusterPresenter(opts ClusterOptions, icons ports.IconResolver) *ClusterPresenter {
	def := DefaultClusterOptions()
	if opts.Radius <= 0 {
		opts.Radius = def.Radius
	}
	if opts.DisableAtZoom <= 0 {
		opts.DisableAtZoom = def.DisableAtZoom
	}
	if opts.TileSize <= 0 {
		opts.TileSize = def.TileSize
	}
	return &ClusterPresenter{opts: opts, icons: icons}
}

// Options returns the effective options.
func (p *ClusterPresenter) Options() ClusterOptions { return p.opts }

type projected struct {
	x, y   float64
	marker domain.LocationMarker
}

// Present groups markers for the given zoom. The result is a pure function
// of its inputs; input order decides which marker seeds a group.
func (p *ClusterPresenter) Present(markers []domain.LocationMarker, zoom int) []domain.RenderItem {
	items := make([]domain.RenderItem, 0, len(markers))
	if zoom >= p.opts.DisableAtZoom {
		for i := range markers {
			items = append(items, p.markerItem(markers[i]))
		}
		return items
	}

	points := make([]projected, len(markers))
	for i, m := range markers {
		x, y := p.project(m.Position, zoom)
		points[i] = projected{x: x, y: y, marker: m}
	}

	r2 := p.opts.Radius * p.opts.Radius
	assigned := make([]bool, len(points))
	for i := range points {
		if assigned[i] {
			continue
		}
		assigned[i] = true
		group := []projected{points[i]}
		for j := i + 1; j < len(points); j++ {
			if assigned[j] {
				continue
			}
			dx := points[j].x - points[i].x
			dy := points[j].y - points[i].y
			if dx*dx+dy*dy <= r2 {
				assigned[j] = true
				group = append(group, points[j])
			}
		}

		if len(group) == 1 {
			items = append(items, p.markerItem(group[0].marker))
			continue
		}
		items = append(items, p.clusterItem(group, zoom))
	}
	return items
}

func (p *ClusterPresenter) markerItem(m domain.LocationMarker) domain.RenderItem {
	marker := m
	return domain.RenderItem{
		Kind:     domain.RenderMarker,
		ID:       m.ID,
		Position: m.Position,
		Count:    1,
		Icon:     p.icons.ResolveIcon(m.Type, m.WaitingTime),
		Marker:   &marker,
	}
}

func (p *ClusterPresenter) clusterItem(group []projected, zoom int) domain.RenderItem {
	var sumX, sumY float64
	members := make([]string, len(group))
	for i, g := range group {
		sumX += g.x
		sumY += g.y
		members[i] = g.marker.ID
	}
	n := float64(len(group))
	center := p.unproject(sumX/n, sumY/n, zoom)

	key := append([]string(nil), members...)
	sort.Strings(key)

	count := strconv.Itoa(len(group))
	return domain.RenderItem{
		Kind:     domain.RenderCluster,
		ID:       uuid.NewSHA1(clusterNamespace, []byte(strings.Join(key, ","))).String(),
		Position: center,
		Count:    len(group),
		Icon: domain.IconRef{
			HTML:   count,
			Class:  "cluster-icon",
			Size:   [2]int{40, 40},
			Anchor: [2]int{20, 20},
		},
		Members: members,
	}
}

func (p *ClusterPresenter) project(pt domain.GeoPoint, zoom int) (float64, float64) {
	return geospatial.ToPixels(pt.Lat, pt.Lon, zoom, p.opts.TileSize)
}

func (p *ClusterPresenter) unproject(x, y float64, zoom int) domain.GeoPoint {
	lat, lon := geospatial.FromPixels(x, y, zoom, p.opts.TileSize)
	return domain.GeoPoint{Lat: lat, Lon: lon}
}
