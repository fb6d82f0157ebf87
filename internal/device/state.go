package device

// State is the CHE interaction state. Every state is a first-class value
// dispatched through the transition table; there is no per-mode subclassing.
type State string

const (
	StateIdle State = "IDLE"

	// Setup
	StateReady                     State = "READY"
	StateContainerSelect           State = "CONTAINER_SELECT"
	StateContainerPosition         State = "CONTAINER_POSITION"
	StateContainerSelectionInvalid State = "CONTAINER_SELECTION_INVALID"
	StateContainerPositionInvalid  State = "CONTAINER_POSITION_INVALID"
	StateContainerPositionInUse    State = "CONTAINER_POSITION_IN_USE"
	StateNoContainersSetup         State = "NO_CONTAINERS_SETUP"

	// Pick
	StateLocationSelect       State = "LOCATION_SELECT"
	StateLocationSelectReview State = "LOCATION_SELECT_REVIEW"
	StateDoPick               State = "DO_PICK"
	StateScanSomething        State = "SCAN_SOMETHING"
	StateScanSomethingShort   State = "SCAN_SOMETHING_SHORT"
	StateShortPick            State = "SHORT_PICK"
	StateShortPickConfirm     State = "SHORT_PICK_CONFIRM"
	StateSubstitutionConfirm  State = "SUBSTITUTION_CONFIRM"
	StateAbandonCheck         State = "ABANDON_CHECK"
	StatePickComplete         State = "PICK_COMPLETE"
	StateNoWork               State = "NO_WORK"

	// Inventory
	StateScanGtin State = "SCAN_GTIN"

	// Remote
	StateRemote       State = "REMOTE"
	StateRemoteLinked State = "REMOTE_LINKED"

	// Put wall
	StatePutWallScanOrder    State = "PUT_WALL_SCAN_ORDER"
	StatePutWallScanLocation State = "PUT_WALL_SCAN_LOCATION"
	StatePutWallScanWall     State = "PUT_WALL_SCAN_WALL"
	StatePutWallScanItem     State = "PUT_WALL_SCAN_ITEM"
	StateDoPut               State = "DO_PUT"
	StateNoPutWork           State = "NO_PUT_WORK"
)

// isPickSubState reports whether CLEAR should bail back to READY from here
// without touching work instruction status.
func isPickSubState(s State) bool {
	switch s {
	case StateLocationSelect, StateLocationSelectReview, StateDoPick,
		StateScanSomething, StateScanSomethingShort, StateShortPick,
		StateShortPickConfirm, StateSubstitutionConfirm, StatePickComplete,
		StateNoWork:
		return true
	}
	return false
}

// isSetupErrorState reports the container-setup dead ends that require an
// explicit CANCEL to recover.
func isSetupErrorState(s State) bool {
	switch s {
	case StateContainerSelectionInvalid, StateContainerPositionInvalid,
		StateContainerPositionInUse:
		return true
	}
	return false
}
