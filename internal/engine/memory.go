package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wms-platform/che-controller/internal/domain"
)

// In-memory repositories. These are the default wiring for tests and for
// facilities that run the controller without a backing store; the mongodb
// implementations in internal/infrastructure satisfy the same interfaces.

// MemoryOrderRepository holds orders keyed by order id.
type MemoryOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*domain.OrderHeader
}

func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{orders: make(map[string]*domain.OrderHeader)}
}

// PutOrder seeds or replaces an order (import boundary).
func (r *MemoryOrderRepository) PutOrder(ctx context.Context, order *domain.OrderHeader) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	r.orders[order.OrderID] = order
	return nil
}

func (r *MemoryOrderRepository) FindOrder(ctx context.Context, orderID string) (*domain.OrderHeader, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrUnknownOrder)
	}
	return order, nil
}

func (r *MemoryOrderRepository) SaveDetail(ctx context.Context, detail *domain.OrderDetail) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[detail.OrderID]
	if !ok {
		return fmt.Errorf("order %s: %w", detail.OrderID, domain.ErrUnknownOrder)
	}
	for i, d := range order.Details {
		if d.DetailID == detail.DetailID {
			order.Details[i] = detail
			return nil
		}
	}
	order.Details = append(order.Details, detail)
	return nil
}

func (r *MemoryOrderRepository) FindOrderForWall(ctx context.Context, wallID string) ([]*domain.OrderHeader, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.OrderHeader
	for _, order := range r.orders {
		if order.WallID == wallID {
			out = append(out, order)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	return out, nil
}

// AssignWall binds an order to a put-wall slot, overwriting any prior
// assignment.
func (r *MemoryOrderRepository) AssignWall(ctx context.Context, orderID, wallID, wallSlot string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s: %w", orderID, domain.ErrUnknownOrder)
	}
	order.WallID = wallID
	order.WallSlot = wallSlot
	return nil
}

// MemoryInventoryRepository holds masters and stock.
type MemoryInventoryRepository struct {
	mu      sync.RWMutex
	masters map[string]*domain.ItemMaster      // by SKU
	byGtin  map[string]*domain.ItemMaster      // by GTIN
	stock   map[string][]*domain.InventoryItem // by SKU
}

func NewMemoryInventoryRepository() *MemoryInventoryRepository {
	return &MemoryInventoryRepository{
		masters: make(map[string]*domain.ItemMaster),
		byGtin:  make(map[string]*domain.ItemMaster),
		stock:   make(map[string][]*domain.InventoryItem),
	}
}

// PutStock seeds stock for a SKU at a location (import boundary).
func (r *MemoryInventoryRepository) PutStock(ctx context.Context, item *domain.InventoryItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item.UpdatedAt = time.Now()
	r.stock[item.SKU] = append(r.stock[item.SKU], item)
	if _, ok := r.masters[item.SKU]; !ok {
		r.masters[item.SKU] = &domain.ItemMaster{SKU: item.SKU, CreatedAt: time.Now()}
	}
	return nil
}

func (r *MemoryInventoryRepository) FindStockBySKU(ctx context.Context, sku string) ([]*domain.InventoryItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := r.stock[sku]
	out := make([]*domain.InventoryItem, len(items))
	copy(out, items)
	return out, nil
}

func (r *MemoryInventoryRepository) FindMasterByScan(ctx context.Context, scan string) (*domain.ItemMaster, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if m, ok := r.masters[scan]; ok {
		return m, nil
	}
	if m, ok := r.byGtin[scan]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("scan %q: %w", scan, domain.ErrUnknownItem)
}

func (r *MemoryInventoryRepository) SaveMaster(ctx context.Context, master *domain.ItemMaster) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	master.UpdatedAt = time.Now()
	r.masters[master.SKU] = master
	if master.GTIN != "" {
		r.byGtin[master.GTIN] = master
	}
	return nil
}

func (r *MemoryInventoryRepository) MoveStock(ctx context.Context, sku, locationName string, cmFromLeft int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := r.stock[sku]
	if len(items) == 0 {
		r.stock[sku] = []*domain.InventoryItem{{
			SKU: sku, UOM: "EA", LocationName: locationName, CmFromLeft: cmFromLeft, UpdatedAt: time.Now(),
		}}
		return nil
	}
	// One stock record per SKU moves; multi-location SKUs move the first.
	items[0].LocationName = locationName
	items[0].CmFromLeft = cmFromLeft
	items[0].UpdatedAt = time.Now()
	return nil
}

// MemoryWorkInstructionRepository stores instructions with secondary indexes
// recomputed on demand, never persisted (the simultaneous group view is a
// derived index over the flat list).
type MemoryWorkInstructionRepository struct {
	mu    sync.RWMutex
	byID  map[string]*domain.WorkInstruction
	byChe map[string][]string
}

func NewMemoryWorkInstructionRepository() *MemoryWorkInstructionRepository {
	return &MemoryWorkInstructionRepository{
		byID:  make(map[string]*domain.WorkInstruction),
		byChe: make(map[string][]string),
	}
}

func (r *MemoryWorkInstructionRepository) Save(ctx context.Context, wi *domain.WorkInstruction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[wi.ID]; !exists {
		r.byChe[wi.AssignedChe] = append(r.byChe[wi.AssignedChe], wi.ID)
	}
	r.byID[wi.ID] = wi
	return nil
}

func (r *MemoryWorkInstructionRepository) FindByID(ctx context.Context, id string) (*domain.WorkInstruction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wi, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("work instruction %s not found", id)
	}
	return wi, nil
}

func (r *MemoryWorkInstructionRepository) FindByChe(ctx context.Context, cheName string) ([]*domain.WorkInstruction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byChe[cheName]
	out := make([]*domain.WorkInstruction, 0, len(ids))
	for _, id := range ids {
		if wi, ok := r.byID[id]; ok {
			out = append(out, wi)
		}
	}
	return out, nil
}

func (r *MemoryWorkInstructionRepository) FindByDetail(ctx context.Context, detailID string) ([]*domain.WorkInstruction, error) {
	return r.scan(func(wi *domain.WorkInstruction) bool { return wi.DetailID == detailID })
}

func (r *MemoryWorkInstructionRepository) FindByGroup(ctx context.Context, groupKey string) ([]*domain.WorkInstruction, error) {
	if groupKey == "" {
		return nil, nil
	}
	return r.scan(func(wi *domain.WorkInstruction) bool { return wi.GroupKey() == groupKey })
}

func (r *MemoryWorkInstructionRepository) scan(match func(*domain.WorkInstruction) bool) ([]*domain.WorkInstruction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.WorkInstruction
	for _, wi := range r.byID {
		if match(wi) {
			out = append(out, wi)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.Compare(out[i].SortCode+out[i].ID, out[j].SortCode+out[j].ID) < 0
	})
	return out, nil
}

// ReplaceForChe swaps the CHE's active list. Terminal instructions already
// stored stay on record as historical fact.
func (r *MemoryWorkInstructionRepository) ReplaceForChe(ctx context.Context, cheName string, wis []*domain.WorkInstruction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []string
	for _, id := range r.byChe[cheName] {
		if wi, ok := r.byID[id]; ok && wi.IsTerminal() {
			kept = append(kept, id)
		} else {
			delete(r.byID, id)
		}
	}
	for _, wi := range wis {
		r.byID[wi.ID] = wi
		kept = append(kept, wi.ID)
	}
	r.byChe[cheName] = kept
	return nil
}

func (r *MemoryWorkInstructionRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	wi, ok := r.byID[id]
	if !ok {
		return nil
	}
	delete(r.byID, id)
	ids := r.byChe[wi.AssignedChe]
	for i, other := range ids {
		if other == id {
			r.byChe[wi.AssignedChe] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}
