package domain

import (
	"errors"
	"time"
)

// Errors
var (
	ErrUnknownOrder  = errors.New("unknown order")
	ErrUnknownDetail = errors.New("unknown order detail")
)

// OrderDetailStatus mirrors the aggregate of the detail's work instructions.
type OrderDetailStatus string

const (
	DetailStatusReleased   OrderDetailStatus = "RELEASED"
	DetailStatusInProgress OrderDetailStatus = "INPROGRESS"
	DetailStatusComplete   OrderDetailStatus = "COMPLETE"
	DetailStatusShort      OrderDetailStatus = "SHORT"
)

// OrderHeader is the order-level view the controller needs: identity plus
// the details to fulfil. Import and persistence live with the EDI
// collaborator; the controller only reads these.
type OrderHeader struct {
	OrderID   string         `bson:"orderId" json:"orderId"`
	Details   []*OrderDetail `bson:"details" json:"details"`
	WallID    string         `bson:"wallId,omitempty" json:"wallId,omitempty"`
	WallSlot  string         `bson:"wallSlot,omitempty" json:"wallSlot,omitempty"`
	CreatedAt time.Time      `bson:"createdAt" json:"createdAt"`
}

// Detail finds a detail by id.
func (o *OrderHeader) Detail(detailID string) (*OrderDetail, bool) {
	for _, d := range o.Details {
		if d.DetailID == detailID {
			return d, true
		}
	}
	return nil, false
}

// OrderDetail is one line of an order: an item, a quantity, and the knobs
// that shape how it may be picked.
type OrderDetail struct {
	OrderID           string            `bson:"orderId" json:"orderId"`
	DetailID          string            `bson:"detailId" json:"detailId"`
	ItemID            string            `bson:"itemId" json:"itemId"`
	UOM               string            `bson:"uom" json:"uom"`
	PlanQuantity      int               `bson:"planQuantity" json:"planQuantity"`
	PreferredLocation string            `bson:"preferredLocation,omitempty" json:"preferredLocation,omitempty"`
	WorkSequence      int               `bson:"workSequence" json:"workSequence"`
	SubstituteAllowed bool              `bson:"substituteAllowed" json:"substituteAllowed"`
	Status            OrderDetailStatus `bson:"status" json:"status"`
	UpdatedAt         time.Time         `bson:"updatedAt" json:"updatedAt"`
}

// MirrorStatus recomputes the detail status from its work instructions.
// Any SHORT marks the detail short; all terminal and none short means
// complete; any progress means in-progress.
func (d *OrderDetail) MirrorStatus(instructions []*WorkInstruction) {
	if len(instructions) == 0 {
		d.Status = DetailStatusReleased
		return
	}
	allTerminal := true
	anyShort := false
	anyProgress := false
	for _, wi := range instructions {
		if !wi.IsTerminal() {
			allTerminal = false
		}
		if wi.Status == StatusShort {
			anyShort = true
		}
		if wi.Status != StatusNew {
			anyProgress = true
		}
	}
	switch {
	case anyShort && allTerminal:
		d.Status = DetailStatusShort
	case allTerminal:
		d.Status = DetailStatusComplete
	case anyProgress:
		d.Status = DetailStatusInProgress
	default:
		d.Status = DetailStatusReleased
	}
	d.UpdatedAt = time.Now()
}

// Matches reports whether the detail still describes the same pick as the
// instruction. A mismatch means the detail was edited after work was built
// and the stale instruction must be discarded, not merged.
func (d *OrderDetail) Matches(wi *WorkInstruction) bool {
	return d.ItemID == wi.ItemID && d.UOM == wi.UOM
}
