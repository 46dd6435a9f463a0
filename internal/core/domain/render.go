package domain

// IconRef is a resolved marker icon.
type IconRef struct {
	URL    string `json:"url,omitempty"`
	HTML   string `json:"html,omitempty"`
	Class  string `json:"class,omitempty"`
	Size   [2]int `json:"size"`
	Anchor [2]int `json:"anchor"`
}

// RenderKind distinguishes individual markers from cluster badges.
type RenderKind string

const (
	RenderMarker  RenderKind = "marker"
	RenderCluster RenderKind = "cluster"
)

// RenderItem is one renderable entity produced by a clustering pass.
type RenderItem struct {
	Kind     RenderKind      `json:"kind"`
	ID       string          `json:"id"`
	Position GeoPoint        `json:"position"`
	Count    int             `json:"count"`
	Icon     IconRef         `json:"icon"`
	Marker   *LocationMarker `json:"marker,omitempty"`
	Members  []string        `json:"members,omitempty"`
}

// Pin is an overlay marker (active pin, current location).
type Pin struct {
	Position     GeoPoint `json:"position"`
	Icon         IconRef  `json:"icon"`
	ZIndexOffset int      `json:"z_index_offset"`
	Draggable    bool     `json:"draggable"`
}

// Controls describes the map controls.
type Controls struct {
	Visible  bool `json:"visible"`
	GPSFixed bool `json:"gps_fixed"`
}

// Frame is one full render pass of a map session.
type Frame struct {
	SessionID       string       `json:"session_id"`
	Viewport        Viewport     `json:"viewport"`
	Bounds          MapBounds    `json:"bounds"`
	Items           []RenderItem `json:"items"`
	Selection       Selection    `json:"selection"`
	ActivePin       *Pin         `json:"active_pin,omitempty"`
	ContextPopup    *GeoPoint    `json:"context_popup,omitempty"`
	CurrentLocation *Pin         `json:"current_location,omitempty"`
	Controls        Controls     `json:"controls"`
}
