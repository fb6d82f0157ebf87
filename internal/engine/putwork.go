package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/wms-platform/che-controller/internal/domain"
	"github.com/wms-platform/che-controller/internal/facility"
)

// Put-wall work: orders are parked in wall slots and a slow-mover pass drops
// one item across every slot that wants it. Puts group by {wall, item} the
// way picks group by {location, item}.

// AssignOrderToWall parks an order in a wall slot. The slot must resolve to a
// real location; a prior assignment is overwritten.
func (e *Engine) AssignOrderToWall(ctx context.Context, orderID, slotName string) error {
	slot, err := e.fac.ResolveName(slotName)
	if err != nil {
		return err
	}
	wall := slot.Bay()
	if wall == nil {
		return fmt.Errorf("slot %s has no wall: %w", slotName, facility.ErrLocationResolution)
	}
	if _, err := e.orders.FindOrder(ctx, orderID); err != nil {
		return err
	}
	unlock := e.locks.lockAll([]string{orderID})
	defer unlock()

	if err := e.orders.AssignWall(ctx, orderID, wall.BestName(), slot.BestName()); err != nil {
		return err
	}
	e.log.Event(ctx, "order.wall_assigned", map[string]any{
		"orderId": orderID, "wall": wall.BestName(), "slot": slot.BestName(),
	})
	return nil
}

// ComputePutWork builds one put instruction per wall order that still wants
// the scanned item. Slots are lit in slot-name order so the worker moves
// down the wall one way.
func (e *Engine) ComputePutWork(ctx context.Context, cheName, wallName, itemID string) ([]*domain.WorkInstruction, error) {
	orders, err := e.orders.FindOrderForWall(ctx, wallName)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(orders))
	for _, order := range orders {
		ids = append(ids, order.OrderID)
	}
	unlock := e.locks.lockAll(ids)
	defer unlock()

	var puts []*domain.WorkInstruction
	for _, order := range orders {
		for _, detail := range order.Details {
			if detail.ItemID != itemID {
				continue
			}
			if detail.Status == domain.DetailStatusComplete || detail.Status == domain.DetailStatusShort {
				continue
			}
			existing, err := e.instructions.FindByDetail(ctx, detail.DetailID)
			if err != nil {
				return nil, err
			}
			if hasOpenPut(existing) {
				continue
			}
			posIdx := 0
			if slot, err := e.fac.ResolveName(order.WallSlot); err == nil && slot.HasPoscon() {
				posIdx = *slot.PosconIndex
			}
			put := domain.NewPutInstruction(detail, order.WallSlot, posIdx, cheName)
			if err := e.instructions.Save(ctx, put); err != nil {
				return nil, err
			}
			puts = append(puts, put)
		}
	}
	sort.Slice(puts, func(i, j int) bool { return puts[i].LocationName < puts[j].LocationName })

	e.log.Event(ctx, "putwall.work_computed", map[string]any{
		"che": cheName, "wall": wallName, "itemId": itemID, "puts": len(puts),
	})
	return puts, nil
}

func hasOpenPut(wis []*domain.WorkInstruction) bool {
	for _, wi := range wis {
		if wi.Type == domain.TypePut && !wi.IsTerminal() {
			return true
		}
	}
	return false
}

// SlotFeedback is what one wall slot's poscon should show.
type SlotFeedback struct {
	SlotName      string
	PositionIndex int
	OrderID       string
	// Live is true when the slot has a countable put job right now. An
	// assigned slot with no live job renders dashed, not blank.
	Live     bool
	Quantity int
	Complete bool
}

// WallFeedback reports the display state of every assigned slot on a wall.
func (e *Engine) WallFeedback(ctx context.Context, wallName string) ([]SlotFeedback, error) {
	orders, err := e.orders.FindOrderForWall(ctx, wallName)
	if err != nil {
		return nil, err
	}
	var out []SlotFeedback
	for _, order := range orders {
		fb := SlotFeedback{SlotName: order.WallSlot, OrderID: order.OrderID}
		if slot, err := e.fac.ResolveName(order.WallSlot); err == nil && slot.HasPoscon() {
			fb.PositionIndex = *slot.PosconIndex
		}
		allDone := len(order.Details) > 0
		for _, detail := range order.Details {
			if detail.Status != domain.DetailStatusComplete && detail.Status != domain.DetailStatusShort {
				allDone = false
			}
			wis, err := e.instructions.FindByDetail(ctx, detail.DetailID)
			if err != nil {
				return nil, err
			}
			for _, wi := range wis {
				if wi.Type == domain.TypePut && !wi.IsTerminal() {
					fb.Live = true
					fb.Quantity += wi.PlanQuantity
				}
			}
		}
		fb.Complete = allDone
		out = append(out, fb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotName < out[j].SlotName })
	return out, nil
}

// CanSubstitute reports whether a substitute scan would be accepted for the
// instruction, without changing any state. The device checks this before
// offering the confirmation dialog.
func (e *Engine) CanSubstitute(ctx context.Context, instructionID string) bool {
	if !e.props.OrderSub {
		return false
	}
	wi, err := e.instructions.FindByID(ctx, instructionID)
	if err != nil || wi.IsHousekeeping() {
		return false
	}
	order, err := e.orders.FindOrder(ctx, wi.OrderID)
	if err != nil {
		return false
	}
	detail, ok := order.Detail(wi.DetailID)
	return ok && detail.SubstituteAllowed
}
