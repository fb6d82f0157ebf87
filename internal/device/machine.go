package device

import (
	"context"
	"errors"
	"sync"

	"github.com/wms-platform/che-controller/internal/domain"
	"github.com/wms-platform/che-controller/internal/engine"
	"github.com/wms-platform/che-controller/internal/facility"
	"github.com/wms-platform/che-controller/pkg/logging"
)

// RemoteControl is what a machine needs from the cross-device coordinator to
// run the remote-link flow. The coordinator owns link bookkeeping and display
// mirroring; the machine only initiates.
type RemoteControl interface {
	// Link associates this mobile CHE with the named cart. It returns the
	// cart actually linked, or "" for a no-op link (self or already linked).
	Link(ctx context.Context, mobileChe, cartChe string) (string, error)
	Unlink(ctx context.Context, mobileChe string)
	// ForwardScan and ForwardButton deliver only while mobileChe still holds
	// the cart's link; false means another controller took the cart.
	ForwardScan(ctx context.Context, mobileChe, cartChe, raw string) bool
	ForwardButton(ctx context.Context, mobileChe, cartChe string, position, quantity int) bool
}

// Machine runs one CHE's state machine. Every transition is a function of
// (state, event, payload, session) to (state, side effects); side effects are
// display output, poscon output, engine calls, or coordinator calls. Events
// for one CHE are strictly ordered by the machine's mutex.
type Machine struct {
	mu     sync.Mutex
	s      *Session
	eng    *engine.Engine
	fac    *facility.Facility
	sink   DisplaySink
	remote RemoteControl
	log    *logging.Logger
}

// NewMachine creates an idle machine for one physical CHE.
func NewMachine(cheName string, eng *engine.Engine, fac *facility.Facility, sink DisplaySink, log *logging.Logger) *Machine {
	if sink == nil {
		sink = NopSink{}
	}
	return &Machine{
		s:    newSession(cheName),
		eng:  eng,
		fac:  fac,
		sink: sink,
		log:  log.WithComponent("device").WithDevice(cheName),
	}
}

// SetRemote installs the coordinator hookup after construction.
func (m *Machine) SetRemote(rc RemoteControl) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remote = rc
}

// CheName returns the device id this machine owns.
func (m *Machine) CheName() string { return m.s.CheName }

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.State
}

// Snapshot is a read-only view of the session for the API layer.
type Snapshot struct {
	CheName      string                    `json:"cheName"`
	State        State                     `json:"state"`
	WorkerID     string                    `json:"workerId,omitempty"`
	Containers   []*domain.ContainerUse    `json:"containers,omitempty"`
	ActiveRun    []*domain.WorkInstruction `json:"activeRun,omitempty"`
	LastLocation string                    `json:"lastLocation,omitempty"`
	LinkedCart   string                    `json:"linkedCart,omitempty"`
}

// Snapshot captures the session for inspection.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		CheName:      m.s.CheName,
		State:        m.s.State,
		WorkerID:     m.s.WorkerID,
		Containers:   m.s.usesSorted(),
		ActiveRun:    append([]*domain.WorkInstruction(nil), m.s.run...),
		LastLocation: m.s.lastLocation,
		LinkedCart:   m.s.linkedCart,
	}
}

// HandleScan processes one barcode. Unrecognized scans re-render the current
// state and never transition; LOGOUT and CANCEL/CLEAR work from nearly every
// state.
func (m *Machine) HandleScan(ctx context.Context, raw string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	scan := ParseScan(raw)
	from := m.s.State

	// A linked mobile is a dumb terminal for the cart: everything except the
	// unlink commands (REMOTE, LOGOUT, CANCEL/CLEAR) goes across the wire.
	if m.s.State == StateRemoteLinked && m.remote != nil &&
		!scan.IsCommand(CmdRemote) && !scan.IsCommand(CmdLogout) &&
		!scan.IsCommand(CmdClear) && !scan.IsCommand(CmdCancel) {
		if !m.remote.ForwardScan(ctx, m.s.CheName, m.s.linkedCart, raw) {
			m.dropStaleLink(ctx)
		}
		return
	}

	switch {
	case scan.IsCommand(CmdLogout):
		m.logout(ctx)
	case scan.IsCommand(CmdClear) || scan.IsCommand(CmdCancel):
		m.cancel(ctx)
	default:
		m.dispatch(ctx, scan)
	}

	m.log.ScanEvent(ctx, m.s.CheName, raw, string(from), string(m.s.State))
	m.render(ctx)
}

// HandleButton processes one poscon button press carrying the displayed
// quantity. Presses for positions with no live job are ignored, which makes
// duplicate deliveries from the transport safe.
func (m *Machine) HandleButton(ctx context.Context, position, quantity int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.s.State == StateRemoteLinked && m.remote != nil {
		if !m.remote.ForwardButton(ctx, m.s.CheName, m.s.linkedCart, position, quantity) {
			m.dropStaleLink(ctx)
		}
		return
	}

	switch m.s.State {
	case StateDoPick, StateDoPut:
		m.buttonOnActive(ctx, position, quantity)
	case StateShortPick:
		wi := m.s.current()
		if wi == nil || wi.PositionIndex != position || quantity >= wi.PlanQuantity {
			break
		}
		m.s.pendingShortID = wi.ID
		m.s.pendingShortQty = quantity
		m.s.State = StateShortPickConfirm
	default:
		// No live job for buttons in this state.
	}
	m.render(ctx)
}

// WorkChanged is the coordinator's poke after another device altered this
// CHE's work (short-ahead, put completion). Results arriving after logout or
// outside a pick are discarded, not applied.
func (m *Machine) WorkChanged(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.s.State {
	case StateDoPick, StateScanSomething, StateDoPut:
	default:
		return
	}
	active, err := m.eng.ActiveWork(ctx, m.s.CheName)
	if err != nil {
		m.log.WithError(err).Error("Refresh after work change failed")
		return
	}
	m.s.run = active
	m.s.cursor = 0
	if m.s.current() == nil {
		if m.s.State == StateDoPut {
			m.s.State = StatePutWallScanItem
		} else {
			m.s.State = StatePickComplete
		}
	}
	m.render(ctx)
}

func (m *Machine) dispatch(ctx context.Context, scan Scan) {
	switch m.s.State {
	case StateIdle:
		if scan.Kind == ScanUser && scan.Value != "" {
			m.s.WorkerID = scan.Value
			m.s.State = StateReady
			m.log.WithWorker(scan.Value).Info("Worker logged in")
		}

	case StateReady, StatePickComplete, StateNoWork:
		m.dispatchReady(ctx, scan)

	case StateNoContainersSetup:
		if scan.IsCommand(CmdSetup) {
			m.beginSetup()
		}

	case StateContainerSelect:
		switch {
		case scan.Kind == ScanContainer || scan.Kind == ScanRaw:
			m.s.pendingContainer = scan.Value
			m.s.State = StateContainerPosition
		case scan.Kind == ScanPosition:
			// Position with no container pending: ambiguous double-scan.
			m.s.State = StateContainerPositionInvalid
		case scan.IsCommand(CmdStart):
			m.startWork(ctx, m.s.lastLocation)
		}

	case StateContainerPosition:
		switch {
		case scan.Kind == ScanPosition:
			m.attachContainer(scan)
		case scan.Kind == ScanContainer || scan.Kind == ScanRaw:
			// Two containers in a row.
			m.s.State = StateContainerSelectionInvalid
		}

	case StateContainerSelectionInvalid, StateContainerPositionInvalid, StateContainerPositionInUse:
		// Only CANCEL recovers; everything else re-renders the error.

	case StateLocationSelect:
		switch {
		case scan.Kind == ScanLocation:
			m.startWork(ctx, scan.Value)
		case scan.Kind == ScanTape:
			m.startWorkAtTape(ctx, scan)
		case scan.IsCommand(CmdStart):
			m.startWork(ctx, m.s.lastLocation)
		case scan.IsCommand(CmdReverse):
			m.s.reversed = !m.s.reversed
			m.startWork(ctx, m.s.lastLocation)
		}

	case StateLocationSelectReview:
		switch {
		case scan.IsCommand(CmdYes):
			m.s.lastPathID = m.s.pendingPathID
			m.enterPick()
		case scan.Kind == ScanLocation || scan.Kind == ScanTape:
			// A second location scan on the new path confirms as well.
			m.s.lastPathID = m.s.pendingPathID
			m.enterPick()
		case scan.IsCommand(CmdNo):
			m.s.clearRun()
			m.s.State = StateLocationSelect
		}

	case StateDoPick:
		switch {
		case scan.IsCommand(CmdShort):
			m.s.State = StateShortPick
		case scan.IsCommand(CmdSetup):
			m.s.resumeState = m.s.State
			m.s.State = StateAbandonCheck
		case scan.Kind == ScanLocation:
			m.startWork(ctx, scan.Value)
		case scan.Kind == ScanTape:
			m.startWorkAtTape(ctx, scan)
		}

	case StateScanSomething:
		m.dispatchScanSomething(ctx, scan)

	case StateScanSomethingShort:
		switch {
		case scan.IsCommand(CmdYes):
			m.commitShort(ctx, 0)
		case scan.IsCommand(CmdNo):
			m.s.State = StateScanSomething
		}

	case StateShortPick:
		if scan.IsCommand(CmdNo) {
			m.s.State = m.pickState()
		}

	case StateShortPickConfirm:
		switch {
		case scan.IsCommand(CmdYes):
			m.commitShort(ctx, m.s.pendingShortQty)
		case scan.IsCommand(CmdNo):
			m.s.pendingShortID = ""
			m.s.pendingShortQty = 0
			m.s.State = m.pickState()
		}

	case StateSubstitutionConfirm:
		switch {
		case scan.IsCommand(CmdYes):
			m.commitSubstitution(ctx)
		case scan.IsCommand(CmdNo):
			m.s.pendingSubstitute = ""
			m.s.State = StateScanSomething
		}

	case StateAbandonCheck:
		switch {
		case scan.IsCommand(CmdYes):
			m.s.clearRun()
			m.beginSetup()
		case scan.IsCommand(CmdNo):
			m.s.State = m.s.resumeState
		}

	case StateScanGtin:
		m.dispatchInventory(ctx, scan)

	case StateRemote:
		if scan.Kind == ScanCheName {
			m.linkRemote(ctx, scan.Value)
		}

	case StateRemoteLinked:
		if scan.IsCommand(CmdRemote) {
			m.unlinkRemote(ctx)
		}

	case StatePutWallScanOrder:
		if scan.Kind == ScanContainer || scan.Kind == ScanRaw {
			m.s.putOrderID = scan.Value
			m.s.State = StatePutWallScanLocation
		}

	case StatePutWallScanLocation:
		if scan.Kind == ScanLocation || scan.Kind == ScanTape {
			m.assignOrderSlot(ctx, scan)
		}

	case StatePutWallScanWall:
		if scan.Kind == ScanLocation {
			m.s.putWallID = scan.Value
			m.s.State = StatePutWallScanItem
		}

	case StatePutWallScanItem, StateNoPutWork:
		if scan.Kind == ScanRaw || scan.Kind == ScanItem {
			m.startPutWork(ctx, scan.Value)
		}

	default:
		// Illegal state/event combinations are logged no-ops.
		m.log.Warn("Unhandled scan for state", "state", string(m.s.State), "kind", string(scan.Kind))
	}
}

func (m *Machine) dispatchReady(ctx context.Context, scan Scan) {
	switch {
	case scan.IsCommand(CmdSetup):
		m.beginSetup()
	case scan.IsCommand(CmdStart):
		if len(m.s.Uses) == 0 {
			m.s.State = StateNoContainersSetup
			return
		}
		m.startWork(ctx, m.s.lastLocation)
	case scan.IsCommand(CmdReverse):
		m.s.reversed = !m.s.reversed
		if len(m.s.Uses) > 0 {
			m.startWork(ctx, m.s.lastLocation)
		}
	case scan.Kind == ScanLocation:
		if len(m.s.Uses) == 0 {
			m.s.lastLocation = scan.Value
			return
		}
		m.startWork(ctx, scan.Value)
	case scan.Kind == ScanTape:
		if len(m.s.Uses) > 0 {
			m.startWorkAtTape(ctx, scan)
		}
	case scan.IsCommand(CmdRemote):
		m.s.State = StateRemote
	case scan.IsCommand(CmdInventory):
		m.s.State = StateScanGtin
	case scan.IsCommand(CmdPutWall):
		m.s.State = StatePutWallScanWall
	case scan.IsCommand(CmdOrderWall):
		m.s.State = StatePutWallScanOrder
	}
}

func (m *Machine) dispatchScanSomething(ctx context.Context, scan Scan) {
	wi := m.s.current()
	if wi == nil {
		m.s.State = StatePickComplete
		return
	}
	switch {
	case scan.IsCommand(CmdShort):
		m.s.pendingShortID = wi.ID
		m.s.State = StateScanSomethingShort
	case scan.IsCommand(CmdSetup):
		m.s.resumeState = m.s.State
		m.s.State = StateAbandonCheck
	case scan.Kind == ScanRaw || scan.Kind == ScanItem:
		if scan.Value == wi.ItemID || (wi.SubstitutionItemID != "" && scan.Value == wi.SubstitutionItemID) {
			m.s.State = StateDoPick
			return
		}
		// Wrong item: offer substitution only when the detail permits it.
		// A forbidden alternate scan is ignored with no state change.
		if m.eng.CanSubstitute(ctx, wi.ID) {
			m.s.pendingSubstitute = scan.Value
			m.s.State = StateSubstitutionConfirm
		}
	}
}

func (m *Machine) dispatchInventory(ctx context.Context, scan Scan) {
	switch scan.Kind {
	case ScanRaw, ScanItem:
		master, err := m.eng.ResolveItemScan(ctx, scan.Value)
		if err != nil {
			m.log.WithError(err).Warn("Item scan did not resolve", "scan", scan.Value)
			return
		}
		m.s.pendingItem = master.SKU
	case ScanLocation:
		if m.s.pendingItem == "" {
			return
		}
		if err := m.eng.MoveItem(ctx, m.s.pendingItem, scan.Value, 0); err != nil {
			m.log.WithError(err).Warn("Inventory move failed", "location", scan.Value)
			return
		}
		m.s.pendingItem = ""
	case ScanTape:
		if m.s.pendingItem == "" {
			return
		}
		loc, cm, err := m.fac.ResolveTape(scan.Raw)
		if err != nil {
			m.log.WithError(err).Warn("Tape scan did not resolve", "scan", scan.Raw)
			return
		}
		if err := m.eng.MoveItem(ctx, m.s.pendingItem, loc.BestName(), cm); err != nil {
			m.log.WithError(err).Warn("Inventory move failed", "location", loc.BestName())
			return
		}
		m.s.pendingItem = ""
	}
}

// beginSetup starts a fresh container setup.
func (m *Machine) beginSetup() {
	m.s.Uses = make(map[int]*domain.ContainerUse)
	m.s.clearRun()
	m.s.pendingContainer = ""
	m.s.State = StateContainerSelect
}

// attachContainer binds the pending container to a scanned cart position.
// Occupied positions and re-scanned containers park in the error states
// rather than overwriting silently.
func (m *Machine) attachContainer(scan Scan) {
	pos, ok := scan.PositionIndex()
	if !ok {
		m.s.State = StateContainerPositionInvalid
		return
	}
	// The container id doubles as the order id in the common flow.
	c := domain.NewContainer(m.s.pendingContainer, m.s.pendingContainer)
	if err := m.s.attach(c, pos); err != nil {
		switch {
		case errors.Is(err, domain.ErrPositionOccupied):
			m.s.State = StateContainerPositionInUse
		case errors.Is(err, domain.ErrContainerAttached):
			m.s.State = StateContainerSelectionInvalid
		default:
			m.s.State = StateContainerPositionInvalid
		}
		return
	}
	m.s.pendingContainer = ""
	m.s.State = StateContainerSelect
}

// startWork recomputes the run from the given start location ("" means path
// origin or last path) and enters the pick flow.
func (m *Machine) startWork(ctx context.Context, startLocation string) {
	result, err := m.eng.ComputeWork(ctx, engine.ComputeRequest{
		CheName:       m.s.CheName,
		Uses:          m.s.usesSorted(),
		StartLocation: startLocation,
		LastPathID:    m.s.lastPathID,
	})
	if err != nil {
		if errors.Is(err, facility.ErrLocationResolution) {
			m.log.Warn("Start location did not resolve", "location", startLocation)
			return
		}
		m.log.WithError(err).Error("Work computation failed")
		m.s.State = StateNoWork
		return
	}
	if startLocation != "" {
		m.s.lastLocation = startLocation
	}
	if len(result.Diagnostics.UnknownOrders) > 0 {
		m.log.WithError(domain.ErrUnknownContainer).Warn("Containers set up with no importable order",
			"containers", result.Diagnostics.UnknownOrders)
	}
	m.installRun(result)
}

func (m *Machine) startWorkAtTape(ctx context.Context, scan Scan) {
	loc, _, err := m.fac.ResolveTape(scan.Raw)
	if err != nil {
		m.log.WithError(err).Warn("Tape scan did not resolve", "scan", scan.Raw)
		return
	}
	m.startWork(ctx, loc.BestName())
}

func (m *Machine) installRun(result *engine.ComputeResult) {
	run := result.Instructions
	if m.s.reversed {
		run = reverseRun(run)
	}
	m.s.run = run
	m.s.cursor = 0

	switch {
	case len(run) == 0:
		m.s.State = StateNoWork
	case result.ReviewRequired:
		m.s.pendingPathID = result.PathID
		m.s.State = StateLocationSelectReview
	default:
		m.s.lastPathID = result.PathID
		m.enterPick()
	}
}

// reverseRun flips the pick order and drops housekeeping, whose boundaries
// no longer line up once the direction changes.
func reverseRun(wis []*domain.WorkInstruction) []*domain.WorkInstruction {
	out := make([]*domain.WorkInstruction, 0, len(wis))
	for i := len(wis) - 1; i >= 0; i-- {
		if !wis[i].IsHousekeeping() {
			out = append(out, wis[i])
		}
	}
	return out
}

// enterPick lands on the right pick state for the facility: SCANPICK
// facilities verify the item barcode before the button press counts.
func (m *Machine) enterPick() {
	if m.s.current() == nil {
		m.s.State = StatePickComplete
		return
	}
	m.s.State = m.pickState()
}

func (m *Machine) pickState() State {
	wi := m.s.current()
	if wi != nil && !wi.IsHousekeeping() && m.eng.Properties().ScanPick {
		return StateScanSomething
	}
	return StateDoPick
}

// litGroup is the slice of simultaneous members currently lit on the cart.
// With PICKMULT off only the cursor instruction lights, one position at a
// time; put walls always light every slot wanting the item.
func (m *Machine) litGroup() []*domain.WorkInstruction {
	group := m.s.currentGroup()
	if len(group) > 1 && m.s.State != StateDoPut && !m.eng.Properties().PickMult {
		group = group[:1]
	}
	return group
}

// buttonOnActive completes or shorts the job lit at the pressed position.
// A press for an unlit position is ignored, so with PICKMULT off only the
// cursor instruction's button counts.
func (m *Machine) buttonOnActive(ctx context.Context, position, quantity int) {
	group := m.litGroup()
	var wi *domain.WorkInstruction
	for _, member := range group {
		if member.PositionIndex == position {
			wi = member
			break
		}
	}
	if wi == nil {
		return
	}

	if wi.IsHousekeeping() {
		// Any press acknowledges a housekeeping boundary.
		if err := m.eng.CompletePick(ctx, wi.ID, 0); err != nil {
			m.log.WithError(err).Error("Housekeeping ack failed", "instructionId", wi.ID)
		}
		m.advance()
		return
	}

	if quantity < wi.PlanQuantity {
		m.s.pendingShortID = wi.ID
		m.s.pendingShortQty = quantity
		m.s.State = StateShortPickConfirm
		return
	}
	if err := m.eng.CompletePick(ctx, wi.ID, wi.PlanQuantity); err != nil {
		m.log.WithError(err).Error("Pick completion failed", "instructionId", wi.ID)
		return
	}
	m.advance()
}

// commitShort runs the confirmed short through the engine, short-ahead
// included, and advances past everything that went terminal.
func (m *Machine) commitShort(ctx context.Context, actual int) {
	id := m.s.pendingShortID
	if id == "" {
		if wi := m.s.current(); wi != nil {
			id = wi.ID
		}
	}
	m.s.pendingShortID = ""
	m.s.pendingShortQty = 0
	if id == "" {
		m.s.State = m.pickState()
		return
	}
	if _, err := m.eng.ShortPick(ctx, id, actual); err != nil {
		m.log.WithError(err).Error("Short commit failed", "instructionId", id)
		m.s.State = m.pickState()
		return
	}
	m.advance()
}

func (m *Machine) commitSubstitution(ctx context.Context) {
	wi := m.s.current()
	sub := m.s.pendingSubstitute
	m.s.pendingSubstitute = ""
	if wi == nil || sub == "" {
		m.s.State = m.pickState()
		return
	}
	if err := m.eng.SubstitutePick(ctx, wi.ID, sub); err != nil {
		if !errors.Is(err, domain.ErrSubstituteNotAllowed) {
			m.log.WithError(err).Error("Substitution failed", "instructionId", wi.ID)
		}
		m.s.State = StateScanSomething
		return
	}
	// The substitute now picks like the planned item.
	m.s.State = StateDoPick
}

// advance moves the cursor past terminal instructions and lands on the next
// job, the put-item prompt, or the all-done state.
func (m *Machine) advance() {
	if m.s.current() != nil {
		m.s.State = m.pickState()
		return
	}
	if m.s.State == StateDoPut || (m.s.State == StateShortPickConfirm && m.s.putWallID != "") {
		m.s.State = StatePutWallScanItem
		return
	}
	m.s.State = StatePickComplete
}

func (m *Machine) linkRemote(ctx context.Context, cartChe string) {
	if m.remote == nil {
		return
	}
	linked, err := m.remote.Link(ctx, m.s.CheName, cartChe)
	if err != nil {
		m.log.WithError(err).Warn("Remote link failed", "cart", cartChe)
		return
	}
	if linked == "" {
		// No-op link: self or an already-linked cart. Stay put.
		m.s.linkedCart = ""
		return
	}
	m.s.linkedCart = linked
	m.s.State = StateRemoteLinked
}

// dropStaleLink handles a rejected forward: another mobile took the cart, so
// this side falls back to the link prompt instead of driving blind.
func (m *Machine) dropStaleLink(ctx context.Context) {
	m.log.Warn("Remote link lost, another controller took the cart", "cart", m.s.linkedCart)
	m.s.linkedCart = ""
	m.s.State = StateRemote
	m.render(ctx)
}

func (m *Machine) unlinkRemote(ctx context.Context) {
	if m.remote != nil && m.s.linkedCart != "" {
		m.remote.Unlink(ctx, m.s.CheName)
	}
	m.s.linkedCart = ""
	m.s.State = StateRemote
}

func (m *Machine) assignOrderSlot(ctx context.Context, scan Scan) {
	slotName := scan.Value
	if scan.Kind == ScanTape {
		loc, _, err := m.fac.ResolveTape(scan.Raw)
		if err != nil {
			m.log.WithError(err).Warn("Tape scan did not resolve", "scan", scan.Raw)
			return
		}
		slotName = loc.BestName()
	}
	if err := m.eng.AssignOrderToWall(ctx, m.s.putOrderID, slotName); err != nil {
		m.log.WithError(err).Warn("Wall assignment failed", "orderId", m.s.putOrderID, "slot", slotName)
		return
	}
	m.s.putOrderID = ""
	m.s.State = StatePutWallScanOrder
}

func (m *Machine) startPutWork(ctx context.Context, itemID string) {
	puts, err := m.eng.ComputePutWork(ctx, m.s.CheName, m.s.putWallID, itemID)
	if err != nil {
		m.log.WithError(err).Error("Put work computation failed", "wall", m.s.putWallID)
		m.s.State = StateNoPutWork
		return
	}
	if len(puts) == 0 {
		m.s.State = StateNoPutWork
		return
	}
	m.s.run = puts
	m.s.cursor = 0
	m.s.State = StateDoPut
}

// logout tears the session down from any state. An active remote link is
// released first so the cart is not left captive.
func (m *Machine) logout(ctx context.Context) {
	if m.s.linkedCart != "" {
		m.unlinkRemote(ctx)
	}
	worker := m.s.WorkerID
	m.s.reset()
	if worker != "" {
		m.log.WithWorker(worker).Info("Worker logged out")
	}
}

// cancel backs out of the current state. Setup error states return to
// container selection; every pick sub-state returns to READY with work
// instruction status untouched.
func (m *Machine) cancel(ctx context.Context) {
	switch {
	case m.s.State == StateIdle:
	case isSetupErrorState(m.s.State):
		m.s.pendingContainer = ""
		m.s.State = StateContainerSelect
	case m.s.State == StateContainerPosition:
		m.s.pendingContainer = ""
		m.s.State = StateContainerSelect
	case m.s.State == StateAbandonCheck:
		m.s.State = m.s.resumeState
	case m.s.State == StateRemoteLinked:
		m.unlinkRemote(ctx)
	case isPickSubState(m.s.State):
		m.s.pendingShortID = ""
		m.s.pendingShortQty = 0
		m.s.pendingSubstitute = ""
		m.s.State = StateReady
	default:
		m.s.putOrderID = ""
		m.s.putWallID = ""
		m.s.pendingItem = ""
		m.s.State = StateReady
	}
}
