package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/wms-platform/che-controller/internal/config"
	"github.com/wms-platform/che-controller/internal/domain"
	"github.com/wms-platform/che-controller/internal/facility"
	"github.com/wms-platform/che-controller/internal/metrics"
	"github.com/wms-platform/che-controller/pkg/logging"
)

// Errors
var (
	ErrConcurrentModification = errors.New("concurrent modification during recompute")
	ErrPathMismatch           = errors.New("requested location is on a different path")
)

// Notifier receives asynchronous pokes for CHEs whose displayed work was
// changed by another device (short-ahead, put-wall completion, remote
// actions). Implementations must not block the caller.
type Notifier interface {
	NotifyWorkChanged(cheName string)
}

type nopNotifier struct{}

func (nopNotifier) NotifyWorkChanged(string) {}

// Engine resolves order details against inventory and locations into work
// instructions, sequences them along a path, and owns every status
// transition. Order-scoped locking is the serialization point between CHEs.
type Engine struct {
	orders       OrderRepository
	inventory    InventoryRepository
	instructions WorkInstructionRepository
	fac          *facility.Facility
	props        config.Properties
	exporter     ExportSink
	notifier     Notifier
	met          *metrics.Metrics
	log          *logging.Logger
	locks        *keyedMutex
}

// New creates an engine. Pass nil exporter or metrics for no-op wiring.
func New(orders OrderRepository, inventory InventoryRepository, instructions WorkInstructionRepository,
	fac *facility.Facility, props config.Properties, exporter ExportSink, met *metrics.Metrics, log *logging.Logger) *Engine {
	if exporter == nil {
		exporter = NopExportSink{}
	}
	return &Engine{
		orders:       orders,
		inventory:    inventory,
		instructions: instructions,
		fac:          fac,
		props:        props,
		exporter:     exporter,
		notifier:     nopNotifier{},
		met:          met,
		log:          log.WithComponent("engine"),
		locks:        newKeyedMutex(),
	}
}

// SetNotifier installs the cross-device notifier after construction (the
// coordinator needs the engine first).
func (e *Engine) SetNotifier(n Notifier) {
	if n != nil {
		e.notifier = n
	}
}

// Properties returns the facility toggles the engine was built with.
func (e *Engine) Properties() config.Properties { return e.props }

// raise publishes a domain event onto the structured log stream.
func (e *Engine) raise(ctx context.Context, evt domain.DomainEvent) {
	e.log.Event(ctx, evt.EventType(), eventPayload(evt))
}

func eventPayload(evt domain.DomainEvent) map[string]any {
	switch ev := evt.(type) {
	case *domain.WorkInstructionTerminalEvent:
		return map[string]any{
			"instructionId": ev.InstructionID,
			"status":        string(ev.Status),
			"orderId":       ev.Record.OrderID,
			"actualQty":     ev.Record.ActualQuantity,
		}
	case *domain.WorkRecomputedEvent:
		return map[string]any{
			"che": ev.CheName, "path": ev.PathID, "instructions": ev.Instructions,
		}
	case *domain.DetailMismatchEvent:
		return map[string]any{
			"orderId":       ev.OrderID,
			"detailId":      ev.DetailID,
			"instructionId": ev.InstructionID,
			"wasStatus":     string(ev.WasStatus),
		}
	}
	return nil
}

// ComputeRequest names the CHE, its container setup, where it is starting
// from, and the path it last worked.
type ComputeRequest struct {
	CheName       string
	Uses          []*domain.ContainerUse
	StartLocation string // alias/full name; empty means path origin
	LastPathID    string
}

// Diagnostics reports what ComputeWork could not turn into work.
type Diagnostics struct {
	UnresolvedDetails []string // detail ids with no resolvable stock/location
	UnknownOrders     []string
	ReplacedStale     int // stale instructions discarded after a detail edit
}

// ComputeResult is the outcome of a work computation.
type ComputeResult struct {
	PathID         string
	ReviewRequired bool // CHE switched paths; an explicit re-confirm is needed
	StartPos       float64
	Instructions   []*domain.WorkInstruction
	Diagnostics    Diagnostics
}

// ComputeWork resolves all order details attached to the CHE into work
// instructions on one path, sequences them (wrapping at the start location
// for the path-distance policy), and atomically installs them as the CHE's
// active run. A consistency failure is retried once from fresh state; a
// second failure surfaces as no work rather than a partial result.
func (e *Engine) ComputeWork(ctx context.Context, req ComputeRequest) (*ComputeResult, error) {
	result, err := e.computeOnce(ctx, req)
	if errors.Is(err, ErrConcurrentModification) {
		e.log.Warn("Recompute hit concurrent modification, retrying once", "che", req.CheName)
		result, err = e.computeOnce(ctx, req)
		if errors.Is(err, ErrConcurrentModification) {
			e.log.Error("Recompute failed twice, surfacing no work", "che", req.CheName)
			if e.met != nil {
				e.met.RecordRecompute(false)
			}
			return &ComputeResult{}, nil
		}
	}
	if e.met != nil {
		e.met.RecordRecompute(err == nil)
	}
	return result, err
}

func (e *Engine) computeOnce(ctx context.Context, req ComputeRequest) (*ComputeResult, error) {
	unlock := e.locks.lockAll(orderIDs(req.Uses))
	defer unlock()

	result := &ComputeResult{}

	// Resolve the start location first: it nominates the path.
	var startLoc *facility.Location
	if req.StartLocation != "" {
		loc, err := e.fac.ResolveName(req.StartLocation)
		if err != nil {
			return nil, err
		}
		if !loc.IsModeled() {
			return nil, fmt.Errorf("location %s is not on any path: %w", req.StartLocation, facility.ErrLocationResolution)
		}
		startLoc = loc
		result.StartPos = loc.PosAlongPath
	}

	type candidate struct {
		detail *domain.OrderDetail
		use    *domain.ContainerUse
		stock  []*domain.InventoryItem
	}
	var candidates []candidate

	for _, use := range req.Uses {
		order, err := e.orders.FindOrder(ctx, use.OrderID)
		if err != nil {
			if errors.Is(err, domain.ErrUnknownOrder) {
				result.Diagnostics.UnknownOrders = append(result.Diagnostics.UnknownOrders, use.OrderID)
				e.log.WithError(domain.ErrUnknownContainer).Warn("Container setup names an unknown order",
					"containerId", use.ContainerID, "che", req.CheName)
				continue
			}
			return nil, err
		}
		for _, detail := range order.Details {
			if detail.Status == domain.DetailStatusComplete || detail.Status == domain.DetailStatusShort {
				continue
			}
			if err := e.discardStaleFor(ctx, detail, result); err != nil {
				return nil, err
			}
			stock, err := e.resolveStock(ctx, detail)
			if err != nil {
				if errors.Is(err, domain.ErrNoInventory) {
					result.Diagnostics.UnresolvedDetails = append(result.Diagnostics.UnresolvedDetails, detail.DetailID)
					continue
				}
				return nil, err
			}
			candidates = append(candidates, candidate{detail: detail, use: use, stock: stock})
		}
	}

	// Pick the working path: the start location's path when given, else the
	// last-known path, else the path whose nearest candidate sits closest to
	// its origin.
	pathID := ""
	switch {
	case startLoc != nil:
		pathID = startLoc.PathID
	case req.LastPathID != "":
		pathID = req.LastPathID
	default:
		best := 0.0
		for _, c := range candidates {
			for _, item := range c.stock {
				loc, err := e.fac.ResolveName(item.LocationName)
				if err != nil || !loc.IsModeled() {
					continue
				}
				if pathID == "" || loc.PosAlongPath < best {
					pathID = loc.PathID
					best = loc.PosAlongPath
				}
			}
		}
	}
	result.PathID = pathID
	result.ReviewRequired = req.LastPathID != "" && pathID != "" && pathID != req.LastPathID
	if pathID == "" {
		return result, nil
	}

	// Build one instruction per detail whose stock resolves on the path.
	var wis []*domain.WorkInstruction
	for _, c := range candidates {
		loc := e.stockLocationOnPath(c.stock, pathID)
		if loc == nil {
			result.Diagnostics.UnresolvedDetails = append(result.Diagnostics.UnresolvedDetails, c.detail.DetailID)
			continue
		}
		wi := domain.NewWorkInstruction(c.detail, loc.BestName(), pathID, loc.PosAlongPath,
			c.use.ContainerID, c.use.PositionIndex, req.CheName)
		wis = append(wis, wi)
	}

	// Sequence, wrap, housekeep, stamp sort codes, install.
	policy := ParsePolicy(e.props.WorkSeqr)
	wis = Sequence(policy, wis)
	if policy == PolicyPathDistance {
		if startLoc != nil {
			wis = WrapAtPosition(wis, result.StartPos)
		}
		wis = InjectHousekeeping(e.fac, wis)
	}
	AssignSortCodes(wis)

	if err := e.instructions.ReplaceForChe(ctx, req.CheName, wis); err != nil {
		return nil, err
	}

	e.raise(ctx, &domain.WorkRecomputedEvent{
		CheName: req.CheName, PathID: pathID, Instructions: len(wis), At: time.Now(),
	})
	result.Instructions = wis
	return result, nil
}

// discardStaleFor drops instructions that no longer match an edited detail.
// Executed quantity on terminal instructions stays on record; only the
// mismatch is logged and the stale active instruction removed.
func (e *Engine) discardStaleFor(ctx context.Context, detail *domain.OrderDetail, result *ComputeResult) error {
	existing, err := e.instructions.FindByDetail(ctx, detail.DetailID)
	if err != nil {
		return err
	}
	for _, wi := range existing {
		if detail.Matches(wi) {
			continue
		}
		result.Diagnostics.ReplacedStale++
		e.log.Warn("Order detail edited after work was built, discarding stale instruction",
			"orderId", detail.OrderID, "detailId", detail.DetailID,
			"instructionId", wi.ID, "wasStatus", string(wi.Status))
		e.raise(ctx, &domain.DetailMismatchEvent{
			OrderID: detail.OrderID, DetailID: detail.DetailID,
			InstructionID: wi.ID, WasStatus: wi.Status, At: time.Now(),
		})
		if !wi.IsTerminal() {
			if err := e.instructions.Delete(ctx, wi.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// resolveStock finds pickable stock for a detail. With LOCAPICK on, the
// order's preferred location wins when it resolves; otherwise real inventory
// decides. A detail with no stock at any modeled location is NoInventory.
func (e *Engine) resolveStock(ctx context.Context, detail *domain.OrderDetail) ([]*domain.InventoryItem, error) {
	if e.props.LocaPick && detail.PreferredLocation != "" {
		if loc, err := e.fac.ResolveName(detail.PreferredLocation); err == nil && loc.IsModeled() {
			return []*domain.InventoryItem{{
				SKU:          detail.ItemID,
				UOM:          detail.UOM,
				LocationName: loc.BestName(),
				Quantity:     detail.PlanQuantity,
			}}, nil
		}
	}
	stock, err := e.inventory.FindStockBySKU(ctx, detail.ItemID)
	if err != nil {
		return nil, err
	}
	var modeled []*domain.InventoryItem
	for _, item := range stock {
		if loc, err := e.fac.ResolveName(item.LocationName); err == nil && loc.IsModeled() {
			modeled = append(modeled, item)
		}
	}
	if len(modeled) == 0 {
		return nil, fmt.Errorf("detail %s item %s: %w", detail.DetailID, detail.ItemID, domain.ErrNoInventory)
	}
	return modeled, nil
}

// stockLocationOnPath picks the stock location on the target path nearest
// the path origin.
func (e *Engine) stockLocationOnPath(stock []*domain.InventoryItem, pathID string) *facility.Location {
	var best *facility.Location
	for _, item := range stock {
		loc, err := e.fac.ResolveName(item.LocationName)
		if err != nil || loc.PathID != pathID {
			continue
		}
		if best == nil || loc.PosAlongPath < best.PosAlongPath {
			best = loc
		}
	}
	return best
}

// ActiveWork returns the CHE's current run in sort order, housekeeping
// included, terminal instructions excluded.
func (e *Engine) ActiveWork(ctx context.Context, cheName string) ([]*domain.WorkInstruction, error) {
	all, err := e.instructions.FindByChe(ctx, cheName)
	if err != nil {
		return nil, err
	}
	var active []*domain.WorkInstruction
	for _, wi := range all {
		if !wi.IsTerminal() {
			active = append(active, wi)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].SortCode < active[j].SortCode })
	return active, nil
}

// SimultaneousGroup returns the non-housekeeping members of the
// instruction's group, the derived view over the flat list.
func (e *Engine) SimultaneousGroup(ctx context.Context, wi *domain.WorkInstruction) ([]*domain.WorkInstruction, error) {
	return e.instructions.FindByGroup(ctx, wi.GroupKey())
}

// CompletePick records a full (or substituted) pick and exports it. Double
// completes are idempotent no-ops.
func (e *Engine) CompletePick(ctx context.Context, instructionID string, actual int) error {
	wi, err := e.instructions.FindByID(ctx, instructionID)
	if err != nil {
		return err
	}
	unlock := e.locks.lockAll([]string{wi.OrderID})
	defer unlock()

	alreadyTerminal := wi.IsTerminal()
	if err := wi.Complete(actual); err != nil {
		if errors.Is(err, domain.ErrInstructionImmutable) {
			return nil
		}
		return err
	}
	if alreadyTerminal {
		return nil
	}
	if err := e.instructions.Save(ctx, wi); err != nil {
		return err
	}
	if err := e.mirrorDetail(ctx, wi); err != nil {
		return err
	}
	if err := e.emitTerminal(ctx, wi); err != nil {
		e.log.WithError(err).Error("Export publish failed, will retry on next transition",
			"instructionId", wi.ID)
	}
	if e.met != nil {
		e.met.RecordPickCompleted(string(wi.Type))
	}
	return nil
}

// ShortResult reports what a short did, including short-ahead propagation.
type ShortResult struct {
	Shorted    *domain.WorkInstruction
	ShortAhead []*domain.WorkInstruction
	NotifyChes []string
}

// ShortPick commits a confirmed short: the instruction goes SHORT with the
// actual quantity, and every still-NEW member of its simultaneous group is
// shorted ahead to zero (the location cannot fulfil them this pass).
// COMPLETE members are never touched. Callers run the confirmation dialog
// before calling; declining simply never calls this.
func (e *Engine) ShortPick(ctx context.Context, instructionID string, actual int) (*ShortResult, error) {
	wi, err := e.instructions.FindByID(ctx, instructionID)
	if err != nil {
		return nil, err
	}
	group, err := e.instructions.FindByGroup(ctx, wi.GroupKey())
	if err != nil {
		return nil, err
	}
	ids := []string{wi.OrderID}
	for _, member := range group {
		ids = append(ids, member.OrderID)
	}
	unlock := e.locks.lockAll(ids)
	defer unlock()

	if err := wi.Short(actual); err != nil {
		return nil, err
	}
	if err := e.instructions.Save(ctx, wi); err != nil {
		return nil, err
	}
	if err := e.mirrorDetail(ctx, wi); err != nil {
		return nil, err
	}
	if err := e.emitTerminal(ctx, wi); err != nil {
		e.log.WithError(err).Error("Export publish failed for short", "instructionId", wi.ID)
	}

	result := &ShortResult{Shorted: wi}
	seen := map[string]bool{}
	for _, member := range group {
		if member.ID == wi.ID || member.Status != domain.StatusNew {
			continue
		}
		if err := member.Short(0); err != nil {
			return nil, err
		}
		if err := e.instructions.Save(ctx, member); err != nil {
			return nil, err
		}
		if err := e.mirrorDetail(ctx, member); err != nil {
			return nil, err
		}
		if err := e.emitTerminal(ctx, member); err != nil {
			e.log.WithError(err).Error("Export publish failed for short-ahead", "instructionId", member.ID)
		}
		result.ShortAhead = append(result.ShortAhead, member)
		if member.AssignedChe != wi.AssignedChe && !seen[member.AssignedChe] {
			seen[member.AssignedChe] = true
			result.NotifyChes = append(result.NotifyChes, member.AssignedChe)
		}
	}

	for _, che := range result.NotifyChes {
		e.notifier.NotifyWorkChanged(che)
	}
	if e.met != nil {
		e.met.RecordPickShorted(string(wi.Type))
		if len(result.ShortAhead) > 0 {
			e.met.RecordShortAhead(len(result.ShortAhead))
		}
	}
	e.log.Event(ctx, "work_instruction.shorted", map[string]any{
		"instructionId": wi.ID, "actual": actual, "shortAhead": len(result.ShortAhead),
	})
	return result, nil
}

// SubstitutePick records that the worker scanned substituteItemID in place
// of the planned item. Returns ErrSubstituteNotAllowed (no state change)
// when the detail or the facility forbids substitution.
func (e *Engine) SubstitutePick(ctx context.Context, instructionID, substituteItemID string) error {
	wi, err := e.instructions.FindByID(ctx, instructionID)
	if err != nil {
		return err
	}
	order, err := e.orders.FindOrder(ctx, wi.OrderID)
	if err != nil {
		return err
	}
	detail, ok := order.Detail(wi.DetailID)
	if !ok {
		return fmt.Errorf("detail %s: %w", wi.DetailID, domain.ErrUnknownDetail)
	}
	if !e.props.OrderSub || !detail.SubstituteAllowed {
		return domain.ErrSubstituteNotAllowed
	}

	unlock := e.locks.lockAll([]string{wi.OrderID})
	defer unlock()

	if err := wi.Substitute(substituteItemID); err != nil {
		return err
	}
	if err := e.instructions.Save(ctx, wi); err != nil {
		return err
	}
	if e.met != nil {
		e.met.RecordSubstitution()
	}
	e.log.Event(ctx, "work_instruction.substituted", map[string]any{
		"instructionId": wi.ID, "substituteItemId": substituteItemID,
	})
	return nil
}

// mirrorDetail recomputes the owning detail's aggregate status.
func (e *Engine) mirrorDetail(ctx context.Context, wi *domain.WorkInstruction) error {
	if wi.IsHousekeeping() {
		return nil
	}
	order, err := e.orders.FindOrder(ctx, wi.OrderID)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownOrder) {
			return nil
		}
		return err
	}
	detail, ok := order.Detail(wi.DetailID)
	if !ok {
		return nil
	}
	siblings, err := e.instructions.FindByDetail(ctx, wi.DetailID)
	if err != nil {
		return err
	}
	detail.MirrorStatus(siblings)
	return e.orders.SaveDetail(ctx, detail)
}

// ResolveItemScan resolves an item/SKU/GTIN scan to a master, creating a
// placeholder master named by the GTIN when nothing matches. Placeholder
// merging with later-imported real SKUs is an explicit step, not assumed.
func (e *Engine) ResolveItemScan(ctx context.Context, scan string) (*domain.ItemMaster, error) {
	master, err := e.inventory.FindMasterByScan(ctx, scan)
	if err == nil {
		return master, nil
	}
	if !errors.Is(err, domain.ErrUnknownItem) {
		return nil, err
	}
	placeholder := &domain.ItemMaster{
		SKU:         scan,
		Description: scan,
		GTIN:        scan,
		Placeholder: true,
		CreatedAt:   time.Now(),
	}
	if err := e.inventory.SaveMaster(ctx, placeholder); err != nil {
		return nil, err
	}
	e.log.Info("Created placeholder item master from scan", "scan", scan)
	return placeholder, nil
}

// MoveItem relocates stock for the inventory scan flow.
func (e *Engine) MoveItem(ctx context.Context, sku, locationName string, cmFromLeft int) error {
	if _, err := e.fac.ResolveName(locationName); err != nil {
		return err
	}
	return e.inventory.MoveStock(ctx, sku, locationName, cmFromLeft)
}

func orderIDs(uses []*domain.ContainerUse) []string {
	ids := make([]string, 0, len(uses))
	for _, use := range uses {
		ids = append(ids, use.OrderID)
	}
	return ids
}
