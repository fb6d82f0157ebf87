package domain

import "time"

// DomainEvent is implemented by all events raised inside the controller.
type DomainEvent interface {
	EventType() string
	OccurredOn() time.Time
}

// WorkInstructionTerminalEvent fires exactly once when an instruction reaches
// COMPLETE, SHORT or confirmed SUBSTITUTION. The attached export record is
// the immutable EDI boundary payload.
type WorkInstructionTerminalEvent struct {
	InstructionID string
	Status        WorkInstructionStatus
	Record        ExportRecord
	At            time.Time
}

func (e *WorkInstructionTerminalEvent) EventType() string     { return "work_instruction.terminal" }
func (e *WorkInstructionTerminalEvent) OccurredOn() time.Time { return e.At }

// WorkRecomputedEvent fires when a CHE's work list is rebuilt.
type WorkRecomputedEvent struct {
	CheName      string
	PathID       string
	Instructions int
	At           time.Time
}

func (e *WorkRecomputedEvent) EventType() string     { return "work.recomputed" }
func (e *WorkRecomputedEvent) OccurredOn() time.Time { return e.At }

// DetailMismatchEvent fires when an externally edited order detail no longer
// matches an instruction that already progressed. The executed quantity stays
// on record; the stale instruction is discarded.
type DetailMismatchEvent struct {
	OrderID       string
	DetailID      string
	InstructionID string
	WasStatus     WorkInstructionStatus
	At            time.Time
}

func (e *DetailMismatchEvent) EventType() string     { return "order_detail.mismatch" }
func (e *DetailMismatchEvent) OccurredOn() time.Time { return e.At }

// ExportRecord is the immutable per-instruction record handed to the EDI
// collaborator on each terminal status transition.
type ExportRecord struct {
	OrderID        string    `json:"orderId"`
	ItemID         string    `json:"itemId"`
	SubstituteItem string    `json:"substituteItemId,omitempty"`
	Location       string    `json:"location"`
	PlanQuantity   int       `json:"planQty"`
	ActualQuantity int       `json:"actualQty"`
	SequenceID     string    `json:"sequenceId"`
	Status         string    `json:"status"`
	CheName        string    `json:"cheName"`
	CompletedAt    time.Time `json:"completedAt"`
}

// NewExportRecord projects a terminal work instruction into its export form.
func NewExportRecord(wi *WorkInstruction) ExportRecord {
	completed := time.Now()
	if wi.CompletedAt != nil {
		completed = *wi.CompletedAt
	}
	return ExportRecord{
		OrderID:        wi.OrderID,
		ItemID:         wi.ItemID,
		SubstituteItem: wi.SubstitutionItemID,
		Location:       wi.LocationName,
		PlanQuantity:   wi.PlanQuantity,
		ActualQuantity: wi.ActualQuantity,
		SequenceID:     wi.SortCode,
		Status:         string(wi.Status),
		CheName:        wi.AssignedChe,
		CompletedAt:    completed,
	}
}
