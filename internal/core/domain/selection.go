package domain

// SelectionState is the state of the active-marker / context-menu machine.
type SelectionState string

const (
	StateIdle            SelectionState = "idle"
	StateViewingMarker   SelectionState = "viewing_marker"
	StatePlacingPin      SelectionState = "placing_pin"
	StateContextMenuOpen SelectionState = "context_menu_open"
)

// MarkerSource tells how the active marker came to be.
type MarkerSource string

const (
	SourceExistingMarker MarkerSource = "existing_marker"
	SourceNewPin         MarkerSource = "new_pin"
)

// ActiveMarker is the single selected, placed or dragged marker.
type ActiveMarker struct {
	Position GeoPoint     `json:"position"`
	Source   MarkerSource `json:"source"`
	MarkerID string       `json:"marker_id,omitempty"`
}

// Selection is a snapshot of the machine.
type Selection struct {
	State       SelectionState `json:"state"`
	Active      *ActiveMarker  `json:"active,omitempty"`
	ContextMenu bool           `json:"context_menu"`
}
