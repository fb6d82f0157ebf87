package engine

import (
	"context"

	"github.com/wms-platform/che-controller/internal/domain"
)

// OrderRepository reads and updates order data. Import and transactional
// persistence belong to the host platform; the engine only needs lookups and
// status write-back.
type OrderRepository interface {
	FindOrder(ctx context.Context, orderID string) (*domain.OrderHeader, error)
	SaveDetail(ctx context.Context, detail *domain.OrderDetail) error
	FindOrderForWall(ctx context.Context, wallID string) ([]*domain.OrderHeader, error)
	AssignWall(ctx context.Context, orderID, wallID, wallSlot string) error
}

// InventoryRepository resolves items and stock locations.
type InventoryRepository interface {
	FindStockBySKU(ctx context.Context, sku string) ([]*domain.InventoryItem, error)
	FindMasterByScan(ctx context.Context, scan string) (*domain.ItemMaster, error)
	SaveMaster(ctx context.Context, master *domain.ItemMaster) error
	MoveStock(ctx context.Context, sku, locationName string, cmFromLeft int) error
}

// WorkInstructionRepository stores the engine's computed instructions.
// ReplaceForChe atomically swaps a CHE's active instruction list so a
// recompute can never leave a half-applied result visible.
type WorkInstructionRepository interface {
	Save(ctx context.Context, wi *domain.WorkInstruction) error
	FindByID(ctx context.Context, id string) (*domain.WorkInstruction, error)
	FindByChe(ctx context.Context, cheName string) ([]*domain.WorkInstruction, error)
	FindByDetail(ctx context.Context, detailID string) ([]*domain.WorkInstruction, error)
	FindByGroup(ctx context.Context, groupKey string) ([]*domain.WorkInstruction, error)
	ReplaceForChe(ctx context.Context, cheName string, wis []*domain.WorkInstruction) error
	Delete(ctx context.Context, id string) error
}
