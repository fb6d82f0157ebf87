package device

import (
	"context"
	"fmt"
	"sort"

	"github.com/wms-platform/che-controller/internal/domain"
	"github.com/wms-platform/che-controller/internal/poscon"
)

// render projects the session onto the 4-line display and the poscon bus.
// Poscon output is diffed against the last sent value per position so a
// re-render of an unchanged state produces no wire traffic.
func (m *Machine) render(ctx context.Context) {
	m.sink.SendDisplay(m.s.CheName, m.displayLines())
	m.sendPoscons(m.desiredPoscons())
	if m.s.putWallID != "" {
		m.renderWall(ctx)
	}
}

func (m *Machine) displayLines() [4]string {
	s := m.s
	switch s.State {
	case StateIdle:
		return [4]string{"SCAN BADGE", "", "", ""}
	case StateReady:
		return [4]string{"READY", fmt.Sprintf("%d CONTAINERS", len(s.Uses)), "SCAN LOCATION", "OR SETUP"}
	case StateNoContainersSetup:
		return [4]string{"NO CONTAINERS", "SCAN SETUP", "", ""}
	case StateContainerSelect:
		return [4]string{"SCAN CONTAINER", fmt.Sprintf("%d SET UP", len(s.Uses)), "OR START", ""}
	case StateContainerPosition:
		return [4]string{"SCAN POSITION", "FOR " + s.pendingContainer, "", ""}
	case StateContainerSelectionInvalid:
		return [4]string{"INVALID CONTAINER", "SCAN CANCEL", "TO CONTINUE", ""}
	case StateContainerPositionInvalid:
		return [4]string{"INVALID POSITION", "SCAN CANCEL", "TO CONTINUE", ""}
	case StateContainerPositionInUse:
		return [4]string{"POSITION IN USE", "SCAN CANCEL", "TO CONTINUE", ""}
	case StateLocationSelect:
		return [4]string{"SCAN LOCATION", "", "", ""}
	case StateLocationSelectReview:
		return [4]string{"PATH CHANGED", "SCAN YES", "OR NEW LOCATION", "TO CONFIRM"}
	case StateDoPick, StateScanSomething:
		return m.pickLines()
	case StateScanSomethingShort:
		return [4]string{"SHORT PICK", "SCAN YES", "TO CONFIRM", ""}
	case StateShortPick:
		return [4]string{"SHORT PICK", "SET QTY AND", "PRESS BUTTON", ""}
	case StateShortPickConfirm:
		return [4]string{"SHORT PICK", fmt.Sprintf("QTY %d", s.pendingShortQty), "SCAN YES", "TO CONFIRM"}
	case StateSubstitutionConfirm:
		return [4]string{"SUBSTITUTE", s.pendingSubstitute, "SCAN YES", "TO CONFIRM"}
	case StateAbandonCheck:
		return [4]string{"ABANDON WORK", "SCAN YES", "OR NO", ""}
	case StatePickComplete:
		return [4]string{"ALL WORK", "COMPLETE", "", ""}
	case StateNoWork:
		return [4]string{"NO WORK TO DO", "", "", ""}
	case StateScanGtin:
		if s.pendingItem != "" {
			return [4]string{"ITEM " + s.pendingItem, "SCAN LOCATION", "OR TAPE", ""}
		}
		return [4]string{"SCAN ITEM", "OR GTIN", "", ""}
	case StateRemote:
		return [4]string{"SCAN CART NAME", "", "", ""}
	case StateRemoteLinked:
		return [4]string{"LINKED TO", s.linkedCart, "", ""}
	case StatePutWallScanOrder:
		return [4]string{"SCAN ORDER", "", "", ""}
	case StatePutWallScanLocation:
		return [4]string{"SCAN WALL SLOT", "FOR " + s.putOrderID, "", ""}
	case StatePutWallScanWall:
		return [4]string{"SCAN PUT WALL", "", "", ""}
	case StatePutWallScanItem:
		return [4]string{"WALL " + s.putWallID, "SCAN ITEM", "", ""}
	case StateDoPut:
		return m.putLines()
	case StateNoPutWork:
		return [4]string{"NO PUT WORK", "SCAN NEXT ITEM", "", ""}
	default:
		return [4]string{string(s.State), "", "", ""}
	}
}

func (m *Machine) pickLines() [4]string {
	wi := m.s.current()
	if wi == nil {
		return [4]string{"ALL WORK", "COMPLETE", "", ""}
	}
	switch wi.Type {
	case domain.TypeBayComplete:
		return [4]string{"BAY COMPLETE", "PRESS BUTTON", "", ""}
	case domain.TypeRepeatPosition:
		return [4]string{"SAME POSITION", "PRESS BUTTON", "", ""}
	}
	item := wi.ItemID
	if wi.SubstitutionItemID != "" {
		item = wi.SubstitutionItemID
	}
	action := "PICK"
	if m.s.State == StateScanSomething {
		action = "SCAN"
	}
	return [4]string{
		wi.LocationName,
		item,
		fmt.Sprintf("QTY %d", wi.PlanQuantity),
		action,
	}
}

func (m *Machine) putLines() [4]string {
	wi := m.s.current()
	if wi == nil {
		return [4]string{"NO PUT WORK", "", "", ""}
	}
	return [4]string{
		wi.LocationName,
		wi.ItemID,
		fmt.Sprintf("QTY %d", wi.PlanQuantity),
		"PUT",
	}
}

// desiredPoscons builds the complete poscon image for the current state.
// Positions absent from the image are cleared.
func (m *Machine) desiredPoscons() map[byte]poscon.Instruction {
	s := m.s
	out := make(map[byte]poscon.Instruction)

	switch {
	case s.State == StateIdle:
		// Blank cart.
	case isSetupErrorState(s.State):
		out[poscon.PositionAll] = poscon.InputError(poscon.PositionAll)
	case s.State == StateContainerSelect || s.State == StateContainerPosition:
		// Echo each assigned position on its own poscon.
		for pos := range s.Uses {
			p := byte(pos)
			out[p] = poscon.DigitPair(p, pos/10, pos%10)
		}
	case isPickSubState(s.State):
		m.pickPoscons(out)
	case s.State == StateReady || s.State == StateNoContainersSetup:
		for pos := range s.Uses {
			p := byte(pos)
			out[p] = poscon.DigitPair(p, pos/10, pos%10)
		}
	}
	return out
}

// pickPoscons lights the active group (the whole simultaneous group with
// PICKMULT on, one position at a time otherwise) and shows order feedback on
// every other occupied position: complete orders show "oc", shorted ones
// "==", the rest stay dark until their turn.
func (m *Machine) pickPoscons(out map[byte]poscon.Instruction) {
	s := m.s

	for pos := range s.Uses {
		p := byte(pos)
		switch m.positionOutcome(pos) {
		case domain.StatusComplete:
			out[p] = poscon.Complete(p)
		case domain.StatusShort:
			out[p] = poscon.Shorted(p)
		}
	}

	if s.State == StatePickComplete {
		for pos := range s.Uses {
			p := byte(pos)
			if _, ok := out[p]; !ok {
				out[p] = poscon.Complete(p)
			}
		}
		return
	}
	if s.State == StateNoWork {
		for pos := range s.Uses {
			p := byte(pos)
			out[p] = poscon.Unknown(p)
		}
		return
	}

	group := m.litGroup()
	for _, wi := range group {
		p := byte(wi.PositionIndex)
		switch wi.Type {
		case domain.TypeBayComplete:
			out[p] = poscon.BayComplete(p)
		case domain.TypeRepeatPosition:
			out[p] = poscon.RepeatContainer(p)
		default:
			in := poscon.Quantity(p, wi.PlanQuantity, len(group))
			if s.State == StateShortPick || s.State == StateShortPickConfirm {
				in.Freq = poscon.FreqBlink
			}
			out[p] = in
		}
	}
}

// positionOutcome folds the run's terminal instructions for one position.
// SHORT dominates COMPLETE; NEW work in the run means the position is still
// in play and gets no terminal feedback.
func (m *Machine) positionOutcome(pos int) domain.WorkInstructionStatus {
	outcome := domain.WorkInstructionStatus("")
	for _, wi := range m.s.run {
		if wi.PositionIndex != pos || wi.IsHousekeeping() {
			continue
		}
		if !wi.IsTerminal() {
			return ""
		}
		if wi.Status == domain.StatusShort {
			outcome = domain.StatusShort
		} else if outcome == "" {
			outcome = domain.StatusComplete
		}
	}
	return outcome
}

// sendPoscons diffs the desired image against the last sent values and
// transmits only the changes.
func (m *Machine) sendPoscons(desired map[byte]poscon.Instruction) {
	var changed []poscon.Instruction
	for pos, in := range desired {
		if last, ok := m.s.posconLast[pos]; !ok || last != in {
			changed = append(changed, in)
			m.s.posconLast[pos] = in
		}
	}
	for pos := range m.s.posconLast {
		if _, ok := desired[pos]; !ok {
			clear := poscon.Clear(pos)
			if m.s.posconLast[pos] != clear {
				changed = append(changed, clear)
			}
			delete(m.s.posconLast, pos)
		}
	}
	if len(changed) == 0 {
		return
	}
	sort.Slice(changed, func(i, j int) bool { return changed[i].Position < changed[j].Position })
	m.sink.SendPoscons(m.s.CheName, changed)
}

// renderWall lights the put wall's own poscons: live slots count down, slots
// holding an assigned order with no live job show dashes, finished slots show
// order complete.
func (m *Machine) renderWall(ctx context.Context) {
	feedback, err := m.eng.WallFeedback(ctx, m.s.putWallID)
	if err != nil {
		m.log.WithError(err).Warn("Wall feedback failed", "wall", m.s.putWallID)
		return
	}
	var out []poscon.Instruction
	for _, fb := range feedback {
		p := byte(fb.PositionIndex)
		switch {
		case fb.Live:
			out = append(out, poscon.Quantity(p, fb.Quantity, 1))
		case fb.Complete:
			out = append(out, poscon.Complete(p))
		default:
			out = append(out, poscon.Unknown(p))
		}
	}
	if len(out) > 0 {
		m.sink.SendPoscons(m.s.putWallID, out)
	}
}
