package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Errors
var (
	ErrInstructionImmutable = errors.New("work instruction is already terminal")
	ErrInvalidQuantity      = errors.New("invalid quantity")
	ErrNotShortable         = errors.New("shorted quantity must be less than plan")
	ErrSubstituteNotAllowed = errors.New("substitution not allowed for this detail")
)

// WorkInstructionStatus is the lifecycle state of one pick/put task.
type WorkInstructionStatus string

const (
	StatusNew          WorkInstructionStatus = "NEW"
	StatusInProgress   WorkInstructionStatus = "INPROGRESS"
	StatusComplete     WorkInstructionStatus = "COMPLETE"
	StatusShort        WorkInstructionStatus = "SHORT"
	StatusSubstitution WorkInstructionStatus = "SUBSTITUTION"
)

// WorkInstructionType separates real picks/puts from the housekeeping
// instructions the sequencer injects between them.
type WorkInstructionType string

const (
	TypePick           WorkInstructionType = "PICK"
	TypePut            WorkInstructionType = "PUT"
	TypeBayComplete    WorkInstructionType = "HK_BAYCOMPLETE"
	TypeRepeatPosition WorkInstructionType = "HK_REPEATPOS"
)

// WorkInstruction is one concrete pick/put task derived from an order detail
// resolved against inventory and location. It belongs to exactly one order
// detail and at most one simultaneous group; once COMPLETE or SHORT it is
// immutable and may only be replaced by a full recomputation.
type WorkInstruction struct {
	ID                 string                `bson:"instructionId" json:"instructionId"`
	Type               WorkInstructionType   `bson:"type" json:"type"`
	Status             WorkInstructionStatus `bson:"status" json:"status"`
	OrderID            string                `bson:"orderId" json:"orderId"`
	DetailID           string                `bson:"detailId" json:"detailId"`
	ItemID             string                `bson:"itemId" json:"itemId"`
	UOM                string                `bson:"uom" json:"uom"`
	PlanQuantity       int                   `bson:"planQuantity" json:"planQuantity"`
	ActualQuantity     int                   `bson:"actualQuantity" json:"actualQuantity"`
	LocationName       string                `bson:"location" json:"location"`
	PathID             string                `bson:"pathId" json:"pathId"`
	PathPosition       float64               `bson:"pathPosition" json:"pathPosition"`
	WorkSequence       int                   `bson:"workSequence" json:"workSequence"`
	SortCode           string                `bson:"sortCode" json:"sortCode"`
	ContainerID        string                `bson:"containerId" json:"containerId"`
	PositionIndex      int                   `bson:"positionIndex" json:"positionIndex"`
	SubstitutionItemID string                `bson:"substitutionItemId,omitempty" json:"substitutionItemId,omitempty"`
	AssignedChe        string                `bson:"assignedChe" json:"assignedChe"`
	AssignedAt         time.Time             `bson:"assignedAt" json:"assignedAt"`
	CreatedAt          time.Time             `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time             `bson:"updatedAt" json:"updatedAt"`
	CompletedAt        *time.Time            `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	Exported           bool                  `bson:"exported" json:"exported"`
}

// NewWorkInstruction creates a NEW pick instruction for one order detail.
func NewWorkInstruction(detail *OrderDetail, locationName, pathID string, pathPosition float64, containerID string, positionIndex int, cheName string) *WorkInstruction {
	now := time.Now()
	return &WorkInstruction{
		ID:            uuid.NewString(),
		Type:          TypePick,
		Status:        StatusNew,
		OrderID:       detail.OrderID,
		DetailID:      detail.DetailID,
		ItemID:        detail.ItemID,
		UOM:           detail.UOM,
		PlanQuantity:  detail.PlanQuantity,
		LocationName:  locationName,
		PathID:        pathID,
		PathPosition:  pathPosition,
		WorkSequence:  detail.WorkSequence,
		ContainerID:   containerID,
		PositionIndex: positionIndex,
		AssignedChe:   cheName,
		AssignedAt:    now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// NewPutInstruction creates a NEW put task dropping a detail's quantity into
// a put-wall slot. The position index is the slot's poscon index.
func NewPutInstruction(detail *OrderDetail, wallSlot string, positionIndex int, cheName string) *WorkInstruction {
	now := time.Now()
	return &WorkInstruction{
		ID:            uuid.NewString(),
		Type:          TypePut,
		Status:        StatusNew,
		OrderID:       detail.OrderID,
		DetailID:      detail.DetailID,
		ItemID:        detail.ItemID,
		UOM:           detail.UOM,
		PlanQuantity:  detail.PlanQuantity,
		LocationName:  wallSlot,
		ContainerID:   detail.OrderID,
		PositionIndex: positionIndex,
		AssignedChe:   cheName,
		AssignedAt:    now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// NewHousekeepingInstruction creates a bay-change or repeat-position filler.
// It carries the path position of the instruction that follows it so the
// sequence stays sorted.
func NewHousekeepingInstruction(hkType WorkInstructionType, next *WorkInstruction) *WorkInstruction {
	now := time.Now()
	return &WorkInstruction{
		ID:            uuid.NewString(),
		Type:          hkType,
		Status:        StatusNew,
		PathID:        next.PathID,
		PathPosition:  next.PathPosition,
		ContainerID:   next.ContainerID,
		PositionIndex: next.PositionIndex,
		AssignedChe:   next.AssignedChe,
		AssignedAt:    now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// GroupKey identifies the simultaneous group: the same item wanted at the
// same location by several containers displays and lights as one unit.
// Housekeeping instructions never group.
func (wi *WorkInstruction) GroupKey() string {
	if wi.IsHousekeeping() {
		return ""
	}
	return wi.ItemID + "@" + wi.LocationName
}

// IsHousekeeping reports whether this is an injected filler instruction.
func (wi *WorkInstruction) IsHousekeeping() bool {
	return wi.Type == TypeBayComplete || wi.Type == TypeRepeatPosition
}

// IsTerminal reports whether the instruction reached a final status. A
// substitution is terminal once its quantity has been confirmed.
func (wi *WorkInstruction) IsTerminal() bool {
	if wi.Status == StatusComplete || wi.Status == StatusShort {
		return true
	}
	return wi.Status == StatusSubstitution && wi.CompletedAt != nil
}

// Start moves a NEW instruction to INPROGRESS when the worker reaches it.
func (wi *WorkInstruction) Start() error {
	if wi.IsTerminal() {
		return fmt.Errorf("instruction %s: %w", wi.ID, ErrInstructionImmutable)
	}
	if wi.Status == StatusNew {
		wi.Status = StatusInProgress
		wi.UpdatedAt = time.Now()
	}
	return nil
}

// Complete records a full pick. Completing an already-complete instruction is
// a no-op so duplicate button presses cannot double-count.
func (wi *WorkInstruction) Complete(actual int) error {
	if wi.Status == StatusComplete {
		return nil
	}
	if wi.Status == StatusShort {
		return fmt.Errorf("instruction %s: %w", wi.ID, ErrInstructionImmutable)
	}
	if actual < 0 {
		return fmt.Errorf("actual %d: %w", actual, ErrInvalidQuantity)
	}
	now := time.Now()
	wi.ActualQuantity = actual
	// A substitution keeps its status through completion; the substitute id
	// plus actual quantity is the record of what happened.
	if wi.Status != StatusSubstitution {
		wi.Status = StatusComplete
	}
	wi.CompletedAt = &now
	wi.UpdatedAt = now
	return nil
}

// Short records a pick of less than plan (including zero). The substitution
// id, when present, survives so a shorted substitution stays attributable.
func (wi *WorkInstruction) Short(actual int) error {
	if wi.IsTerminal() {
		return fmt.Errorf("instruction %s: %w", wi.ID, ErrInstructionImmutable)
	}
	if actual < 0 || actual >= wi.PlanQuantity {
		return fmt.Errorf("actual %d of plan %d: %w", actual, wi.PlanQuantity, ErrNotShortable)
	}
	now := time.Now()
	wi.ActualQuantity = actual
	wi.Status = StatusShort
	wi.CompletedAt = &now
	wi.UpdatedAt = now
	return nil
}

// Substitute records that the worker is picking substituteItemID in place of
// the planned item. Quantity semantics stay those of a normal pick.
func (wi *WorkInstruction) Substitute(substituteItemID string) error {
	if wi.IsTerminal() {
		return fmt.Errorf("instruction %s: %w", wi.ID, ErrInstructionImmutable)
	}
	wi.Status = StatusSubstitution
	wi.SubstitutionItemID = substituteItemID
	wi.UpdatedAt = time.Now()
	return nil
}
