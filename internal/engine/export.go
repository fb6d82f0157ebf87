package engine

import (
	"context"
	"time"

	"github.com/wms-platform/che-controller/internal/domain"
)

// ExportSink receives the immutable export record for every work instruction
// that reaches a terminal status. The engine guarantees exactly one emission
// per instruction; delivery and formatting beyond this boundary belong to
// the EDI collaborator.
type ExportSink interface {
	Publish(ctx context.Context, record domain.ExportRecord) error
}

// NopExportSink discards records; used when no EDI hookup is configured.
type NopExportSink struct{}

func (NopExportSink) Publish(ctx context.Context, record domain.ExportRecord) error { return nil }

// CollectingExportSink retains records in memory for tests.
type CollectingExportSink struct {
	Records []domain.ExportRecord
}

func (s *CollectingExportSink) Publish(ctx context.Context, record domain.ExportRecord) error {
	s.Records = append(s.Records, record)
	return nil
}

// emitTerminal publishes the export record once. The Exported flag is the
// guard: duplicate terminal transitions (idempotent re-completes) do not
// publish twice. A publish failure is logged by the caller and leaves the
// flag clear so a later transition retries.
func (e *Engine) emitTerminal(ctx context.Context, wi *domain.WorkInstruction) error {
	if wi.Exported || wi.IsHousekeeping() {
		return nil
	}
	record := domain.NewExportRecord(wi)
	if err := e.exporter.Publish(ctx, record); err != nil {
		return err
	}
	wi.Exported = true
	e.raise(ctx, &domain.WorkInstructionTerminalEvent{
		InstructionID: wi.ID, Status: wi.Status, Record: record, At: time.Now(),
	})
	return nil
}
