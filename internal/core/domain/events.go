package domain

import "time"

// MapEventKind names a collaborator notification.
type MapEventKind string

const (
	EventOpenDetailPanel   MapEventKind = "open_detail_panel"
	EventOpenAddForm       MapEventKind = "open_add_form"
	EventUpdateCoordinates MapEventKind = "update_coordinates"
	EventCloseDetailTab    MapEventKind = "close_detail_tab"
	EventMarkersFailed     MapEventKind = "markers_failed"
	EventMarkersLoaded     MapEventKind = "markers_loaded"
	EventViewCommand       MapEventKind = "view_command"
)

// ViewCommand is an instruction for the client-side map widget.
type ViewCommand string

const (
	ViewPanTo          ViewCommand = "pan_to"
	ViewFlyTo          ViewCommand = "fly_to"
	ViewSetView        ViewCommand = "set_view"
	ViewInvalidateSize ViewCommand = "invalidate_size"
)

// MapEvent is one notification emitted by a map session.
type MapEvent struct {
	SessionID string          `json:"session_id"`
	Kind      MapEventKind    `json:"kind"`
	Time      time.Time       `json:"time"`
	Marker    *LocationMarker `json:"marker,omitempty"`
	Position  *GeoPoint       `json:"position,omitempty"`
	Command   ViewCommand     `json:"command,omitempty"`
	Zoom      int             `json:"zoom,omitempty"`
	Count     int             `json:"count,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// SignalKind names an external signal addressed to a session.
type SignalKind string

const (
	SignalPermissions     SignalKind = "permissions"
	SignalReset           SignalKind = "reset"
	SignalCurrentLocation SignalKind = "current_location"
	SignalReload          SignalKind = "reload"
)

// SessionSignal is an external instruction delivered over the message bus.
type SessionSignal struct {
	SessionID   string       `json:"session_id"`
	Kind        SignalKind   `json:"kind"`
	Permissions *Permissions `json:"permissions,omitempty"`
	Position    *GeoPoint    `json:"position,omitempty"`
}

// LocationSaved is announced once a submitted location has been stored.
type LocationSaved struct {
	Location  Location `json:"location"`
	SessionID string   `json:"session_id,omitempty"`
}
