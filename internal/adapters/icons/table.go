package icons

import (
	"strings"

	"github.com/samirrijal/trailmap/internal/core/domain"
)

const (
	markerSize   = 30
	markerAnchor = 15
	defaultIcon  = "default"
)

// Table resolves marker icons from the static icon set served under baseURL.
//
//	<type>.svg       location without waiting time
//	<type>-wait.svg  location with a positive waiting time
//	default.svg      unknown type
type Table struct {
	baseURL string
}

// NewTable creates a Table. An empty baseURL means "/location-icons".
func NewTable(baseURL string) *Table {
	if baseURL == "" {
		baseURL = "/location-icons"
	}
	return &Table{baseURL: strings.TrimRight(baseURL, "/")}
}

// ResolveIcon implements ports.IconResolver.
func (t *Table) ResolveIcon(typ domain.LocationType, waitingTime *float64) domain.IconRef {
	name := defaultIcon
	if typ.Known() {
		name = string(typ)
		if waitingTime != nil && *waitingTime > 0 {
			name += "-wait"
		}
	}
	return domain.IconRef{
		URL:    t.baseURL + "/" + name + ".svg",
		Size:   [2]int{markerSize, markerSize},
		Anchor: [2]int{markerAnchor, markerAnchor},
	}
}
