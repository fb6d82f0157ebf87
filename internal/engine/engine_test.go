package engine

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/che-controller/internal/config"
	"github.com/wms-platform/che-controller/internal/domain"
	"github.com/wms-platform/che-controller/internal/facility"
	"github.com/wms-platform/che-controller/internal/metrics"
	"github.com/wms-platform/che-controller/pkg/logging"
)

func testLogger() *logging.Logger {
	return logging.New(&logging.Config{Level: logging.LevelError, ServiceName: "test", Output: io.Discard})
}

func intPtr(i int) *int { return &i }

// testFixture wires an engine over in-memory repositories and a small
// facility: path P1 with slots D301 (pos 10), D302 (pos 20) in bay B1 and
// D401 (pos 30) in bay B2. SKU1..SKU3 are stocked one per slot.
type testFixture struct {
	eng       *Engine
	orders    *MemoryOrderRepository
	inventory *MemoryInventoryRepository
	wis       *MemoryWorkInstructionRepository
	fac       *facility.Facility
	exports   *CollectingExportSink
	met       *metrics.Metrics
}

func newTestFixture(t *testing.T, props config.Properties) *testFixture {
	t.Helper()

	f := facility.NewFacility("F1")
	f.AddPath(&facility.Path{ID: "P1", Segments: []*facility.PathSegment{{Index: 0, Length: 100}}})

	a1 := &facility.Location{Name: "A1", Level: facility.LevelAisle, PathID: "P1"}
	require.NoError(t, f.AddLocation(nil, a1))
	b1 := &facility.Location{Name: "B1", Level: facility.LevelBay, PathID: "P1", PosAlongPath: 10}
	b2 := &facility.Location{Name: "B2", Level: facility.LevelBay, PathID: "P1", PosAlongPath: 30}
	require.NoError(t, f.AddLocation(a1, b1))
	require.NoError(t, f.AddLocation(a1, b2))
	for _, s := range []struct {
		parent *facility.Location
		alias  string
		pos    float64
		poscon int
	}{
		{b1, "D301", 10, 1},
		{b1, "D302", 20, 2},
		{b2, "D401", 30, 3},
	} {
		loc := &facility.Location{
			Name: "S" + s.alias, Level: facility.LevelSlot, Alias: s.alias,
			PathID: "P1", PosAlongPath: s.pos, PosconIndex: intPtr(s.poscon),
		}
		require.NoError(t, f.AddLocation(s.parent, loc))
	}
	// An unmodeled floor location: resolvable but on no path.
	require.NoError(t, f.AddLocation(nil, &facility.Location{Name: "FLOOR", Level: facility.LevelSlot, Alias: "FLOOR"}))

	orders := NewMemoryOrderRepository()
	inventory := NewMemoryInventoryRepository()
	wis := NewMemoryWorkInstructionRepository()
	exports := &CollectingExportSink{}

	ctx := context.Background()
	for sku, loc := range map[string]string{"SKU1": "D301", "SKU2": "D302", "SKU3": "D401"} {
		require.NoError(t, inventory.PutStock(ctx, &domain.InventoryItem{SKU: sku, UOM: "EA", LocationName: loc, Quantity: 100}))
	}

	met := metrics.New(metrics.DefaultConfig("test"))
	eng := New(orders, inventory, wis, f, props, exports, met, testLogger())
	return &testFixture{eng: eng, orders: orders, inventory: inventory, wis: wis, fac: f, exports: exports, met: met}
}

func (fx *testFixture) seedOrder(t *testing.T, orderID string, details ...*domain.OrderDetail) {
	t.Helper()
	for _, d := range details {
		d.OrderID = orderID
		if d.Status == "" {
			d.Status = domain.DetailStatusReleased
		}
		if d.UOM == "" {
			d.UOM = "EA"
		}
	}
	require.NoError(t, fx.orders.PutOrder(context.Background(), &domain.OrderHeader{OrderID: orderID, Details: details}))
}

func use(orderID string, pos int) *domain.ContainerUse {
	return domain.NewContainerUse(domain.NewContainer(orderID, orderID), "CHE1", pos)
}

func picksOf(wis []*domain.WorkInstruction) []*domain.WorkInstruction {
	var out []*domain.WorkInstruction
	for _, wi := range wis {
		if !wi.IsHousekeeping() {
			out = append(out, wi)
		}
	}
	return out
}

type recordingNotifier struct {
	mu  sync.Mutex
	chs []string
}

func (n *recordingNotifier) NotifyWorkChanged(che string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.chs = append(n.chs, che)
}

func (n *recordingNotifier) notified() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.chs...)
}

func TestComputeWork_OrdersAlongPath(t *testing.T) {
	fx := newTestFixture(t, config.DefaultProperties())
	fx.seedOrder(t, "ORD1",
		&domain.OrderDetail{DetailID: "D1", ItemID: "SKU3", PlanQuantity: 2},
		&domain.OrderDetail{DetailID: "D2", ItemID: "SKU1", PlanQuantity: 5},
	)

	result, err := fx.eng.ComputeWork(context.Background(), ComputeRequest{
		CheName: "CHE1",
		Uses:    []*domain.ContainerUse{use("ORD1", 1)},
	})
	require.NoError(t, err)
	assert.Equal(t, "P1", result.PathID)
	assert.False(t, result.ReviewRequired)

	picks := picksOf(result.Instructions)
	require.Len(t, picks, 2)
	assert.Equal(t, "D301", picks[0].LocationName, "nearest pick first")
	assert.Equal(t, "D401", picks[1].LocationName)

	// Sort codes are contiguous over the whole run, housekeeping included.
	for i, wi := range result.Instructions {
		assert.Len(t, wi.SortCode, 4)
		if i > 0 {
			assert.Greater(t, wi.SortCode, result.Instructions[i-1].SortCode)
		}
	}
}

func TestComputeWork_WrapsAtStartLocation(t *testing.T) {
	fx := newTestFixture(t, config.DefaultProperties())
	fx.seedOrder(t, "ORD1",
		&domain.OrderDetail{DetailID: "D1", ItemID: "SKU1", PlanQuantity: 1},
		&domain.OrderDetail{DetailID: "D2", ItemID: "SKU2", PlanQuantity: 1},
		&domain.OrderDetail{DetailID: "D3", ItemID: "SKU3", PlanQuantity: 1},
	)

	result, err := fx.eng.ComputeWork(context.Background(), ComputeRequest{
		CheName:       "CHE1",
		Uses:          []*domain.ContainerUse{use("ORD1", 1)},
		StartLocation: "D302",
	})
	require.NoError(t, err)

	picks := picksOf(result.Instructions)
	require.Len(t, picks, 3)
	assert.Equal(t, "D302", picks[0].LocationName)
	assert.Equal(t, "D401", picks[1].LocationName)
	assert.Equal(t, "D301", picks[2].LocationName, "run wraps around to the path start")
}

func TestComputeWork_PathSwitchNeedsReview(t *testing.T) {
	fx := newTestFixture(t, config.DefaultProperties())
	fx.seedOrder(t, "ORD1", &domain.OrderDetail{DetailID: "D1", ItemID: "SKU1", PlanQuantity: 1})

	result, err := fx.eng.ComputeWork(context.Background(), ComputeRequest{
		CheName:       "CHE1",
		Uses:          []*domain.ContainerUse{use("ORD1", 1)},
		StartLocation: "D301",
		LastPathID:    "P9",
	})
	require.NoError(t, err)
	assert.Equal(t, "P1", result.PathID)
	assert.True(t, result.ReviewRequired)
}

func TestComputeWork_Diagnostics(t *testing.T) {
	fx := newTestFixture(t, config.DefaultProperties())

	t.Run("unknown order", func(t *testing.T) {
		result, err := fx.eng.ComputeWork(context.Background(), ComputeRequest{
			CheName: "CHE1",
			Uses:    []*domain.ContainerUse{use("GHOST", 1)},
		})
		require.NoError(t, err)
		assert.Contains(t, result.Diagnostics.UnknownOrders, "GHOST")
		assert.Empty(t, result.Instructions)
	})

	t.Run("stock only at unmodeled location", func(t *testing.T) {
		require.NoError(t, fx.inventory.PutStock(context.Background(),
			&domain.InventoryItem{SKU: "SKU9", UOM: "EA", LocationName: "FLOOR", Quantity: 10}))
		fx.seedOrder(t, "ORD9", &domain.OrderDetail{DetailID: "D9", ItemID: "SKU9", PlanQuantity: 1})

		result, err := fx.eng.ComputeWork(context.Background(), ComputeRequest{
			CheName: "CHE1",
			Uses:    []*domain.ContainerUse{use("ORD9", 1)},
		})
		require.NoError(t, err)
		assert.Contains(t, result.Diagnostics.UnresolvedDetails, "D9")
		assert.Empty(t, result.Instructions)
	})

	t.Run("unresolvable start location", func(t *testing.T) {
		_, err := fx.eng.ComputeWork(context.Background(), ComputeRequest{
			CheName:       "CHE1",
			Uses:          nil,
			StartLocation: "NOWHERE",
		})
		assert.ErrorIs(t, err, facility.ErrLocationResolution)
	})

	t.Run("unmodeled start location", func(t *testing.T) {
		_, err := fx.eng.ComputeWork(context.Background(), ComputeRequest{
			CheName:       "CHE1",
			Uses:          nil,
			StartLocation: "FLOOR",
		})
		assert.ErrorIs(t, err, facility.ErrLocationResolution)
	})
}

func TestComputeWork_LocaPickPrefersOrderLocation(t *testing.T) {
	props := config.DefaultProperties()
	props.LocaPick = true
	fx := newTestFixture(t, props)
	fx.seedOrder(t, "ORD1", &domain.OrderDetail{
		DetailID: "D1", ItemID: "SKU1", PlanQuantity: 2, PreferredLocation: "D302",
	})

	result, err := fx.eng.ComputeWork(context.Background(), ComputeRequest{
		CheName: "CHE1",
		Uses:    []*domain.ContainerUse{use("ORD1", 1)},
	})
	require.NoError(t, err)
	picks := picksOf(result.Instructions)
	require.Len(t, picks, 1)
	assert.Equal(t, "D302", picks[0].LocationName, "preferred location wins over real stock")
}

func TestComputeWork_DiscardsStaleAfterDetailEdit(t *testing.T) {
	fx := newTestFixture(t, config.DefaultProperties())
	fx.seedOrder(t, "ORD1", &domain.OrderDetail{DetailID: "D1", ItemID: "SKU1", PlanQuantity: 3})
	ctx := context.Background()

	first, err := fx.eng.ComputeWork(ctx, ComputeRequest{
		CheName: "CHE1",
		Uses:    []*domain.ContainerUse{use("ORD1", 1)},
	})
	require.NoError(t, err)
	require.Len(t, picksOf(first.Instructions), 1)
	staleID := picksOf(first.Instructions)[0].ID

	// The host edits the detail to a different item after work was built.
	order, err := fx.orders.FindOrder(ctx, "ORD1")
	require.NoError(t, err)
	order.Details[0].ItemID = "SKU2"

	second, err := fx.eng.ComputeWork(ctx, ComputeRequest{
		CheName: "CHE1",
		Uses:    []*domain.ContainerUse{use("ORD1", 1)},
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, second.Diagnostics.ReplacedStale, 1)

	picks := picksOf(second.Instructions)
	require.Len(t, picks, 1)
	assert.Equal(t, "SKU2", picks[0].ItemID)
	assert.NotEqual(t, staleID, picks[0].ID)

	_, err = fx.wis.FindByID(ctx, staleID)
	assert.Error(t, err, "stale instruction must be gone")
}

func TestCompletePick_Idempotent(t *testing.T) {
	fx := newTestFixture(t, config.DefaultProperties())
	fx.seedOrder(t, "ORD1", &domain.OrderDetail{DetailID: "D1", ItemID: "SKU1", PlanQuantity: 3})
	ctx := context.Background()

	result, err := fx.eng.ComputeWork(ctx, ComputeRequest{
		CheName: "CHE1",
		Uses:    []*domain.ContainerUse{use("ORD1", 1)},
	})
	require.NoError(t, err)
	wi := picksOf(result.Instructions)[0]

	require.NoError(t, fx.eng.CompletePick(ctx, wi.ID, 3))
	require.NoError(t, fx.eng.CompletePick(ctx, wi.ID, 3), "double complete is a no-op")

	got, err := fx.wis.FindByID(ctx, wi.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusComplete, got.Status)
	assert.Equal(t, 3, got.ActualQuantity)
	assert.Len(t, fx.exports.Records, 1, "exactly one export per terminal instruction")

	order, err := fx.orders.FindOrder(ctx, "ORD1")
	require.NoError(t, err)
	assert.Equal(t, domain.DetailStatusComplete, order.Details[0].Status)
}

func TestShortPick_ShortAhead(t *testing.T) {
	fx := newTestFixture(t, config.DefaultProperties())
	notifier := &recordingNotifier{}
	fx.eng.SetNotifier(notifier)
	ctx := context.Background()

	// Three CHEs all want SKU1 at D301: one completes first, one shorts,
	// the third still has a NEW instruction in the same simultaneous group.
	fx.seedOrder(t, "ORD1", &domain.OrderDetail{DetailID: "D1", ItemID: "SKU1", PlanQuantity: 5})
	fx.seedOrder(t, "ORD2", &domain.OrderDetail{DetailID: "D2", ItemID: "SKU1", PlanQuantity: 3})
	fx.seedOrder(t, "ORD3", &domain.OrderDetail{DetailID: "D3", ItemID: "SKU1", PlanQuantity: 2})

	compute := func(che, orderID string) *domain.WorkInstruction {
		result, err := fx.eng.ComputeWork(ctx, ComputeRequest{
			CheName: che,
			Uses:    []*domain.ContainerUse{domain.NewContainerUse(domain.NewContainer(orderID, orderID), che, 1)},
		})
		require.NoError(t, err)
		picks := picksOf(result.Instructions)
		require.Len(t, picks, 1)
		return picks[0]
	}
	wi1 := compute("CHE1", "ORD1")
	wi2 := compute("CHE2", "ORD2")
	wi3 := compute("CHE3", "ORD3")
	require.Equal(t, wi1.GroupKey(), wi2.GroupKey())
	require.Equal(t, wi1.GroupKey(), wi3.GroupKey())

	require.NoError(t, fx.eng.CompletePick(ctx, wi3.ID, 2))

	result, err := fx.eng.ShortPick(ctx, wi1.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusShort, result.Shorted.Status)
	assert.Equal(t, 2, result.Shorted.ActualQuantity)

	// The NEW group member on CHE2 is shorted ahead to zero.
	require.Len(t, result.ShortAhead, 1)
	assert.Equal(t, wi2.ID, result.ShortAhead[0].ID)
	assert.Equal(t, domain.StatusShort, result.ShortAhead[0].Status)
	assert.Equal(t, 0, result.ShortAhead[0].ActualQuantity)
	assert.Equal(t, []string{"CHE2"}, result.NotifyChes)
	assert.Equal(t, []string{"CHE2"}, notifier.notified())

	// The already-complete member is never touched.
	got3, err := fx.wis.FindByID(ctx, wi3.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusComplete, got3.Status)
	assert.Equal(t, 2, got3.ActualQuantity)
}

func TestShortPick_Validation(t *testing.T) {
	fx := newTestFixture(t, config.DefaultProperties())
	fx.seedOrder(t, "ORD1", &domain.OrderDetail{DetailID: "D1", ItemID: "SKU1", PlanQuantity: 3})
	ctx := context.Background()

	result, err := fx.eng.ComputeWork(ctx, ComputeRequest{
		CheName: "CHE1",
		Uses:    []*domain.ContainerUse{use("ORD1", 1)},
	})
	require.NoError(t, err)
	wi := picksOf(result.Instructions)[0]

	_, err = fx.eng.ShortPick(ctx, wi.ID, 3)
	assert.ErrorIs(t, err, domain.ErrNotShortable, "shorting at plan quantity is not a short")

	_, err = fx.eng.ShortPick(ctx, wi.ID, -1)
	assert.ErrorIs(t, err, domain.ErrNotShortable)
}

func TestSubstitutePick(t *testing.T) {
	ctx := context.Background()

	t.Run("denied when facility property is off", func(t *testing.T) {
		fx := newTestFixture(t, config.DefaultProperties())
		fx.seedOrder(t, "ORD1", &domain.OrderDetail{
			DetailID: "D1", ItemID: "SKU1", PlanQuantity: 3, SubstituteAllowed: true,
		})
		result, err := fx.eng.ComputeWork(ctx, ComputeRequest{
			CheName: "CHE1", Uses: []*domain.ContainerUse{use("ORD1", 1)},
		})
		require.NoError(t, err)
		wi := picksOf(result.Instructions)[0]

		err = fx.eng.SubstitutePick(ctx, wi.ID, "SKU2")
		assert.ErrorIs(t, err, domain.ErrSubstituteNotAllowed)

		got, err := fx.wis.FindByID(ctx, wi.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusNew, got.Status, "denied substitution changes nothing")
		assert.False(t, fx.eng.CanSubstitute(ctx, wi.ID))
	})

	t.Run("denied when detail forbids it", func(t *testing.T) {
		props := config.DefaultProperties()
		props.OrderSub = true
		fx := newTestFixture(t, props)
		fx.seedOrder(t, "ORD1", &domain.OrderDetail{DetailID: "D1", ItemID: "SKU1", PlanQuantity: 3})
		result, err := fx.eng.ComputeWork(ctx, ComputeRequest{
			CheName: "CHE1", Uses: []*domain.ContainerUse{use("ORD1", 1)},
		})
		require.NoError(t, err)
		wi := picksOf(result.Instructions)[0]

		assert.ErrorIs(t, fx.eng.SubstitutePick(ctx, wi.ID, "SKU2"), domain.ErrSubstituteNotAllowed)
		assert.False(t, fx.eng.CanSubstitute(ctx, wi.ID))
	})

	t.Run("allowed substitution completes as substitution", func(t *testing.T) {
		props := config.DefaultProperties()
		props.OrderSub = true
		fx := newTestFixture(t, props)
		fx.seedOrder(t, "ORD1", &domain.OrderDetail{
			DetailID: "D1", ItemID: "SKU1", PlanQuantity: 3, SubstituteAllowed: true,
		})
		result, err := fx.eng.ComputeWork(ctx, ComputeRequest{
			CheName: "CHE1", Uses: []*domain.ContainerUse{use("ORD1", 1)},
		})
		require.NoError(t, err)
		wi := picksOf(result.Instructions)[0]
		assert.True(t, fx.eng.CanSubstitute(ctx, wi.ID))

		require.NoError(t, fx.eng.SubstitutePick(ctx, wi.ID, "SKU2"))
		require.NoError(t, fx.eng.CompletePick(ctx, wi.ID, 3))

		got, err := fx.wis.FindByID(ctx, wi.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusSubstitution, got.Status, "status survives completion")
		assert.Equal(t, "SKU2", got.SubstitutionItemID)
		assert.True(t, got.IsTerminal())
	})
}

func TestActiveWork_ExcludesTerminal(t *testing.T) {
	fx := newTestFixture(t, config.DefaultProperties())
	fx.seedOrder(t, "ORD1",
		&domain.OrderDetail{DetailID: "D1", ItemID: "SKU1", PlanQuantity: 1},
		&domain.OrderDetail{DetailID: "D2", ItemID: "SKU2", PlanQuantity: 1},
	)
	ctx := context.Background()

	result, err := fx.eng.ComputeWork(ctx, ComputeRequest{
		CheName: "CHE1", Uses: []*domain.ContainerUse{use("ORD1", 1)},
	})
	require.NoError(t, err)
	picks := picksOf(result.Instructions)
	require.Len(t, picks, 2)

	require.NoError(t, fx.eng.CompletePick(ctx, picks[0].ID, 1))

	active, err := fx.eng.ActiveWork(ctx, "CHE1")
	require.NoError(t, err)
	for _, wi := range active {
		assert.NotEqual(t, picks[0].ID, wi.ID)
	}
}

func TestResolveItemScan_CreatesPlaceholder(t *testing.T) {
	fx := newTestFixture(t, config.DefaultProperties())
	ctx := context.Background()

	known, err := fx.eng.ResolveItemScan(ctx, "SKU1")
	require.NoError(t, err)
	assert.Equal(t, "SKU1", known.SKU)
	assert.False(t, known.Placeholder)

	unknown, err := fx.eng.ResolveItemScan(ctx, "00012345678905")
	require.NoError(t, err)
	assert.True(t, unknown.Placeholder)
	assert.Equal(t, "00012345678905", unknown.GTIN)

	// The placeholder persists and resolves on the next scan.
	again, err := fx.eng.ResolveItemScan(ctx, "00012345678905")
	require.NoError(t, err)
	assert.Equal(t, unknown.SKU, again.SKU)
}

func TestMoveItem(t *testing.T) {
	fx := newTestFixture(t, config.DefaultProperties())
	ctx := context.Background()

	require.NoError(t, fx.eng.MoveItem(ctx, "SKU1", "D401", 12))
	stock, err := fx.inventory.FindStockBySKU(ctx, "SKU1")
	require.NoError(t, err)
	require.NotEmpty(t, stock)
	assert.Equal(t, "D401", stock[0].LocationName)
	assert.Equal(t, 12, stock[0].CmFromLeft)

	assert.ErrorIs(t, fx.eng.MoveItem(ctx, "SKU1", "NOWHERE", 0), facility.ErrLocationResolution)
}

func TestTerminalOutcomes_Counted(t *testing.T) {
	props := config.DefaultProperties()
	props.OrderSub = true
	fx := newTestFixture(t, props)
	ctx := context.Background()

	// ORD1 and ORD2 share SKU1's location, ORD3 picks SKU2 alone.
	fx.seedOrder(t, "ORD1", &domain.OrderDetail{DetailID: "D1", ItemID: "SKU1", PlanQuantity: 5})
	fx.seedOrder(t, "ORD2", &domain.OrderDetail{DetailID: "D2", ItemID: "SKU1", PlanQuantity: 3})
	fx.seedOrder(t, "ORD3", &domain.OrderDetail{DetailID: "D3", ItemID: "SKU2", PlanQuantity: 2, SubstituteAllowed: true})

	byDetail := map[string]*domain.WorkInstruction{}
	compute := func(che, orderID string) {
		result, err := fx.eng.ComputeWork(ctx, ComputeRequest{
			CheName: che, Uses: []*domain.ContainerUse{domain.NewContainerUse(domain.NewContainer(orderID, orderID), che, 1)},
		})
		require.NoError(t, err)
		for _, wi := range picksOf(result.Instructions) {
			byDetail[wi.DetailID] = wi
		}
	}
	compute("CHE1", "ORD1")
	compute("CHE2", "ORD2")
	compute("CHE3", "ORD3")

	require.NoError(t, fx.eng.SubstitutePick(ctx, byDetail["D3"].ID, "SKU9"))
	require.NoError(t, fx.eng.CompletePick(ctx, byDetail["D3"].ID, 2))
	_, err := fx.eng.ShortPick(ctx, byDetail["D1"].ID, 2)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(fx.met.PicksCompleted.WithLabelValues("test", string(domain.TypePick))))
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.met.PicksShorted.WithLabelValues("test", string(domain.TypePick))))
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.met.ShortAheadTotal), "the NEW group member on CHE2 shorts ahead")
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.met.SubstitutionsTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(fx.met.WorkRecomputes.WithLabelValues("test", "success")))
}

func TestDomainEvents_OnLogStream(t *testing.T) {
	fx := newTestFixture(t, config.DefaultProperties())
	var buf bytes.Buffer
	log := logging.New(&logging.Config{Level: logging.LevelInfo, ServiceName: "test", Output: &buf})
	eng := New(fx.orders, fx.inventory, fx.wis, fx.fac, config.DefaultProperties(), fx.exports, nil, log)
	ctx := context.Background()

	fx.seedOrder(t, "ORD1", &domain.OrderDetail{DetailID: "D1", ItemID: "SKU1", PlanQuantity: 3})
	result, err := eng.ComputeWork(ctx, ComputeRequest{
		CheName: "CHE1", Uses: []*domain.ContainerUse{use("ORD1", 1)},
	})
	require.NoError(t, err)
	wi := picksOf(result.Instructions)[0]
	assert.Contains(t, buf.String(), "work.recomputed")

	require.NoError(t, eng.CompletePick(ctx, wi.ID, 3))
	assert.Contains(t, buf.String(), "work_instruction.terminal")

	// An external edit swaps the item and re-releases the detail; the next
	// recompute flags the mismatch against the executed instruction.
	order, err := fx.orders.FindOrder(ctx, "ORD1")
	require.NoError(t, err)
	order.Details[0].ItemID = "SKU2"
	order.Details[0].Status = domain.DetailStatusReleased
	require.NoError(t, fx.orders.SaveDetail(ctx, order.Details[0]))
	_, err = eng.ComputeWork(ctx, ComputeRequest{
		CheName: "CHE1", Uses: []*domain.ContainerUse{use("ORD1", 1)},
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "order_detail.mismatch")
}
