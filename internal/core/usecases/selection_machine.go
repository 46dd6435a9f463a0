package usecases

import "github.com/samirrijal/trailmap/internal/core/domain"

// Effects lists what a transition asks the outside world to do.
type Effects struct {
	OpenDetail   *domain.LocationMarker
	OpenAddForm  *domain.GeoPoint
	UpdateCoords *domain.GeoPoint
	CloseTab     bool
	PanTo        *domain.GeoPoint
	SetView      *domain.GeoPoint

	// Ignored is set when the gesture changed nothing.
	Ignored bool
	// Unauthorized is set when the gesture was dropped for lack of capability.
	Unauthorized bool
}

func ignored() Effects      { return Effects{Ignored: true} }
func unauthorized() Effects { return Effects{Ignored: true, Unauthorized: true} }

// SelectionMachine owns the active marker and the context menu.
//
//	Idle ──marker click──────────────▶ ViewingMarker
//	Idle ──right click (logged in)───▶ ContextMenuOpen ──right click──▶ Idle
//	ContextMenuOpen ──confirm add (moderator)──▶ PlacingPin
//	Idle ──click (edit mode, logged in)──▶ PlacingPin ──drag end──▶ PlacingPin
//	* ──click (small screen, detail open)──▶ Idle
//	* ──reset──▶ Idle
//
// It is not safe for concurrent use; MapSession serialises access.
type SelectionMachine struct {
	state  domain.SelectionState
	active *domain.ActiveMarker
}

// NewSelectionMachine returns a machine in Idle.
func NewSelectionMachine() *SelectionMachine {
	return &SelectionMachine{state: domain.StateIdle}
}

// State returns the current state.
func (m *SelectionMachine) State() domain.SelectionState { return m.state }

// Snapshot returns a copy of the machine state.
func (m *SelectionMachine) Snapshot() domain.Selection {
	sel := domain.Selection{
		State:       m.state,
		ContextMenu: m.state == domain.StateContextMenuOpen,
	}
	if m.active != nil {
		a := *m.active
		sel.Active = &a
	}
	return sel
}

// Draggable reports whether the active pin may be dragged.
func (m *SelectionMachine) Draggable(perms domain.Permissions) bool {
	return perms.EditMode && m.active != nil && m.active.Source == domain.SourceNewPin
}

// PopupVisible reports whether the "add marker" popup is shown.
func (m *SelectionMachine) PopupVisible(perms domain.Permissions) bool {
	return m.state == domain.StateContextMenuOpen && m.active != nil && perms.Moderator
}

// MarkerClick selects an existing marker.
func (m *SelectionMachine) MarkerClick(marker domain.LocationMarker) Effects {
	m.state = domain.StateViewingMarker
	m.active = &domain.ActiveMarker{
		Position: marker.Position,
		Source:   domain.SourceExistingMarker,
		MarkerID: marker.ID,
	}
	pos := marker.Position
	return Effects{OpenDetail: &marker, PanTo: &pos}
}

// ContextMenu handles a right click on the map.
func (m *SelectionMachine) ContextMenu(pos domain.GeoPoint, perms domain.Permissions) Effects {
	if perms.EditMode {
		return ignored()
	}
	if !perms.LoggedIn {
		return unauthorized()
	}
	if m.state == domain.StateContextMenuOpen {
		m.toIdle()
		return Effects{CloseTab: true}
	}
	m.state = domain.StateContextMenuOpen
	m.active = &domain.ActiveMarker{Position: pos, Source: domain.SourceNewPin}
	return Effects{CloseTab: true}
}

// ConfirmAdd turns the context-menu position into a new pin.
func (m *SelectionMachine) ConfirmAdd(perms domain.Permissions) Effects {
	if m.state != domain.StateContextMenuOpen || m.active == nil {
		return ignored()
	}
	if !perms.LoggedIn || !perms.Moderator {
		return unauthorized()
	}
	pos := m.active.Position
	m.state = domain.StatePlacingPin
	m.active = &domain.ActiveMarker{Position: pos, Source: domain.SourceNewPin}
	return Effects{OpenAddForm: &pos, SetView: &pos}
}

// Click handles a left click on empty map.
func (m *SelectionMachine) Click(pos domain.GeoPoint, perms domain.Permissions, display domain.Display) Effects {
	switch {
	case m.state == domain.StateContextMenuOpen:
		m.toIdle()
		return Effects{}
	case perms.EditMode && m.active == nil:
		if !perms.LoggedIn {
			return unauthorized()
		}
		m.state = domain.StatePlacingPin
		m.active = &domain.ActiveMarker{Position: pos, Source: domain.SourceNewPin}
		return Effects{UpdateCoords: &pos, PanTo: &pos}
	case display.SmallScreen && display.DetailOpen && !perms.EditMode:
		m.toIdle()
		return Effects{CloseTab: true}
	}
	return ignored()
}

// DragEnd moves a newly placed pin while edit mode is on.
func (m *SelectionMachine) DragEnd(pos domain.GeoPoint, perms domain.Permissions) Effects {
	if m.state != domain.StatePlacingPin || !m.Draggable(perms) {
		return ignored()
	}
	m.active.Position = pos
	return Effects{UpdateCoords: &pos}
}

// SetActive places the active marker at pos on behalf of the caller,
// e.g. when coordinates are typed into the add form.
func (m *SelectionMachine) SetActive(pos domain.GeoPoint, perms domain.Permissions) Effects {
	if perms.EditMode {
		m.state = domain.StatePlacingPin
		m.active = &domain.ActiveMarker{Position: pos, Source: domain.SourceNewPin}
	} else {
		m.state = domain.StateViewingMarker
		m.active = &domain.ActiveMarker{Position: pos, Source: domain.SourceExistingMarker}
	}
	return Effects{PanTo: &pos}
}

// Reset clears the selection from any state.
func (m *SelectionMachine) Reset() Effects {
	if m.state == domain.StateIdle {
		return ignored()
	}
	m.toIdle()
	return Effects{}
}

func (m *SelectionMachine) toIdle() {
	m.state = domain.StateIdle
	m.active = nil
}
