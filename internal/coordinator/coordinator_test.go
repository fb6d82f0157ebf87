package coordinator

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/che-controller/internal/config"
	"github.com/wms-platform/che-controller/internal/device"
	"github.com/wms-platform/che-controller/internal/domain"
	"github.com/wms-platform/che-controller/internal/engine"
	"github.com/wms-platform/che-controller/internal/facility"
	"github.com/wms-platform/che-controller/pkg/logging"
)

func testLogger() *logging.Logger {
	return logging.New(&logging.Config{Level: logging.LevelError, ServiceName: "test", Output: io.Discard})
}

func intPtr(i int) *int { return &i }

type stackFixture struct {
	coord     *Coordinator
	eng       *engine.Engine
	fac       *facility.Facility
	transport *device.RecordingSink
	orders    *engine.MemoryOrderRepository
}

// newStackFixture wires coordinator, engine and machine factory the way the
// process entry point does: machines render through the coordinator's
// mirroring sink and the engine notifies through the coordinator.
func newStackFixture(t *testing.T) *stackFixture {
	t.Helper()

	f := facility.NewFacility("F1")
	f.AddPath(&facility.Path{ID: "P1", Segments: []*facility.PathSegment{{Index: 0, Length: 100}}})
	a1 := &facility.Location{Name: "A1", Level: facility.LevelAisle, PathID: "P1"}
	require.NoError(t, f.AddLocation(nil, a1))
	b1 := &facility.Location{Name: "B1", Level: facility.LevelBay, PathID: "P1", PosAlongPath: 10}
	require.NoError(t, f.AddLocation(a1, b1))
	require.NoError(t, f.AddLocation(b1, &facility.Location{
		Name: "S1", Level: facility.LevelSlot, Alias: "D301", PathID: "P1", PosAlongPath: 10, PosconIndex: intPtr(1),
	}))

	orders := engine.NewMemoryOrderRepository()
	inventory := engine.NewMemoryInventoryRepository()
	wis := engine.NewMemoryWorkInstructionRepository()
	require.NoError(t, inventory.PutStock(context.Background(),
		&domain.InventoryItem{SKU: "SKU1", UOM: "EA", LocationName: "D301", Quantity: 100}))

	eng := engine.New(orders, inventory, wis, f, config.DefaultProperties(), nil, nil, testLogger())
	transport := device.NewRecordingSink()
	coord := New(transport, testLogger())
	coord.SetFactory(func(cheName string) *device.Machine {
		m := device.NewMachine(cheName, eng, f, coord.Sink(), testLogger())
		m.SetRemote(coord)
		return m
	})
	eng.SetNotifier(coord)

	return &stackFixture{coord: coord, eng: eng, fac: f, transport: transport, orders: orders}
}

func (fx *stackFixture) seedOrder(t *testing.T, orderID string, qty int) {
	t.Helper()
	require.NoError(t, fx.orders.PutOrder(context.Background(), &domain.OrderHeader{
		OrderID: orderID,
		Details: []*domain.OrderDetail{{
			OrderID: orderID, DetailID: orderID + "-D1", ItemID: "SKU1", UOM: "EA",
			PlanQuantity: qty, Status: domain.DetailStatusReleased,
		}},
	}))
}

// pickReady walks a CHE to DO_PICK on its order.
func (fx *stackFixture) pickReady(t *testing.T, cheName, orderID string) *device.Machine {
	t.Helper()
	m := fx.coord.Machine(cheName)
	require.NotNil(t, m)
	ctx := context.Background()
	for _, raw := range []string{"U%W-" + cheName, "X%SETUP", "C%" + orderID, "P%1", "X%START"} {
		m.HandleScan(ctx, raw)
	}
	require.Equal(t, device.StateDoPick, m.State())
	return m
}

func TestMachine_CreatedOnFirstContact(t *testing.T) {
	fx := newStackFixture(t)

	assert.Empty(t, fx.coord.Names())
	m := fx.coord.Machine("CHE1")
	require.NotNil(t, m)
	assert.Same(t, m, fx.coord.Machine("CHE1"), "one machine per device")
	assert.Equal(t, []string{"CHE1"}, fx.coord.Names())
}

func TestMachine_NilWithoutFactory(t *testing.T) {
	coord := New(device.NewRecordingSink(), testLogger())
	assert.Nil(t, coord.Machine("CHE1"))
}

func TestLink_NoOpCases(t *testing.T) {
	fx := newStackFixture(t)
	ctx := context.Background()

	t.Run("link to self", func(t *testing.T) {
		linked, err := fx.coord.Link(ctx, "CHE-M", "CHE-M")
		require.NoError(t, err)
		assert.Empty(t, linked)
	})

	t.Run("link to a cart that is itself a controller", func(t *testing.T) {
		linked, err := fx.coord.Link(ctx, "CHE-A", "CHE-B")
		require.NoError(t, err)
		require.Equal(t, "CHE-B", linked)

		linked, err = fx.coord.Link(ctx, "CHE-X", "CHE-A")
		require.NoError(t, err)
		assert.Empty(t, linked, "a controlling mobile cannot be captured as a cart")
	})
}

func TestRemoteLink_EndToEnd(t *testing.T) {
	fx := newStackFixture(t)
	fx.seedOrder(t, "ORD1", 3)
	ctx := context.Background()

	cart := fx.pickReady(t, "CART1", "ORD1")

	mobile := fx.coord.Machine("MOBILE1")
	mobile.HandleScan(ctx, "U%W2")
	mobile.HandleScan(ctx, "X%REMOTE")
	require.Equal(t, device.StateRemote, mobile.State())

	mobile.HandleScan(ctx, "H%CART1")
	require.Equal(t, device.StateRemoteLinked, mobile.State())
	assert.Equal(t, "CART1", mobile.Snapshot().LinkedCart)

	t.Run("scans forward to the cart", func(t *testing.T) {
		mobile.HandleScan(ctx, "X%SHORT")
		assert.Equal(t, device.StateShortPick, cart.State())
		assert.Equal(t, device.StateRemoteLinked, mobile.State(), "the mobile itself does not transition")
		mobile.HandleScan(ctx, "X%NO")
		assert.Equal(t, device.StateDoPick, cart.State())
	})

	t.Run("cart display mirrors to the mobile", func(t *testing.T) {
		assert.Equal(t, fx.transport.LastDisplay("CART1"), fx.transport.LastDisplay("MOBILE1"))
	})

	t.Run("buttons forward to the cart", func(t *testing.T) {
		mobile.HandleButton(ctx, 1, 3)
		assert.Equal(t, device.StatePickComplete, cart.State())
	})

	t.Run("unlink restores independence", func(t *testing.T) {
		mobile.HandleScan(ctx, "X%REMOTE")
		assert.Equal(t, device.StateRemote, mobile.State())
		assert.Empty(t, mobile.Snapshot().LinkedCart)

		// Cart renders no longer reach the mobile.
		cart.HandleScan(ctx, "X%CLEAR")
		assert.NotEqual(t, fx.transport.LastDisplay("CART1"), fx.transport.LastDisplay("MOBILE1"))
	})
}

func TestLink_OverwritesPriorController(t *testing.T) {
	fx := newStackFixture(t)
	fx.seedOrder(t, "ORD1", 3)
	ctx := context.Background()

	cart := fx.pickReady(t, "CART1", "ORD1")
	first := fx.coord.Machine("MOBILE1")
	second := fx.coord.Machine("MOBILE2")
	first.HandleScan(ctx, "U%W1")
	second.HandleScan(ctx, "U%W2")

	first.HandleScan(ctx, "X%REMOTE")
	first.HandleScan(ctx, "H%CART1")
	require.Equal(t, device.StateRemoteLinked, first.State())

	second.HandleScan(ctx, "X%REMOTE")
	second.HandleScan(ctx, "H%CART1")
	require.Equal(t, device.StateRemoteLinked, second.State())

	// The cart now mirrors to the second mobile only.
	mobile, ok := fx.coord.mirrorFor("CART1")
	require.True(t, ok)
	assert.Equal(t, "MOBILE2", mobile)

	t.Run("deposed controller cannot keep driving", func(t *testing.T) {
		first.HandleScan(ctx, "X%SHORT")
		assert.Equal(t, device.StateDoPick, cart.State(), "the stale scan never reaches the cart")
		assert.Equal(t, device.StateRemote, first.State(), "the deposed mobile falls back to the link prompt")
		assert.Empty(t, first.Snapshot().LinkedCart)
	})

	t.Run("the new controller drives", func(t *testing.T) {
		second.HandleScan(ctx, "X%SHORT")
		assert.Equal(t, device.StateShortPick, cart.State())
		second.HandleScan(ctx, "X%NO")
		assert.Equal(t, device.StateDoPick, cart.State())
	})
}

func TestLink_DeposedButtonPressRejected(t *testing.T) {
	fx := newStackFixture(t)
	fx.seedOrder(t, "ORD1", 3)
	ctx := context.Background()

	cart := fx.pickReady(t, "CART1", "ORD1")
	first := fx.coord.Machine("MOBILE1")
	second := fx.coord.Machine("MOBILE2")
	first.HandleScan(ctx, "U%W1")
	second.HandleScan(ctx, "U%W2")
	for _, m := range []*device.Machine{first, second} {
		m.HandleScan(ctx, "X%REMOTE")
		m.HandleScan(ctx, "H%CART1")
	}
	require.Equal(t, device.StateRemoteLinked, second.State())

	first.HandleButton(ctx, 1, 3)
	assert.Equal(t, device.StateDoPick, cart.State(), "the stale press never completes the pick")
	assert.Equal(t, device.StateRemote, first.State())

	second.HandleButton(ctx, 1, 3)
	assert.Equal(t, device.StatePickComplete, cart.State())
}

func TestLinkedCancel_UnlinksLocally(t *testing.T) {
	fx := newStackFixture(t)
	fx.seedOrder(t, "ORD1", 3)
	ctx := context.Background()

	cart := fx.pickReady(t, "CART1", "ORD1")
	mobile := fx.coord.Machine("MOBILE1")
	mobile.HandleScan(ctx, "U%W1")
	mobile.HandleScan(ctx, "X%REMOTE")
	mobile.HandleScan(ctx, "H%CART1")
	require.Equal(t, device.StateRemoteLinked, mobile.State())

	mobile.HandleScan(ctx, "X%CANCEL")
	assert.Equal(t, device.StateRemote, mobile.State())
	assert.Empty(t, mobile.Snapshot().LinkedCart)
	assert.Equal(t, device.StateDoPick, cart.State(), "cancel stays local, the cart keeps its pick")

	_, ok := fx.coord.mirrorFor("CART1")
	assert.False(t, ok)
}

func TestLogout_ReleasesLink(t *testing.T) {
	fx := newStackFixture(t)
	ctx := context.Background()

	fx.coord.Machine("CART1")
	mobile := fx.coord.Machine("MOBILE1")
	mobile.HandleScan(ctx, "U%W1")
	mobile.HandleScan(ctx, "X%REMOTE")
	mobile.HandleScan(ctx, "H%CART1")
	require.Equal(t, device.StateRemoteLinked, mobile.State())

	mobile.HandleScan(ctx, "X%LOGOUT")
	assert.Equal(t, device.StateIdle, mobile.State())

	_, ok := fx.coord.mirrorFor("CART1")
	assert.False(t, ok, "logout must not leave the cart captive")
}

func TestShortAhead_NotifiesPeerMachine(t *testing.T) {
	fx := newStackFixture(t)
	fx.seedOrder(t, "ORD1", 5)
	fx.seedOrder(t, "ORD2", 3)
	ctx := context.Background()

	shorter := fx.pickReady(t, "CHE-A", "ORD1")
	peer := fx.pickReady(t, "CHE-B", "ORD2")

	// CHE-A shorts its pick; CHE-B's only instruction is in the same
	// simultaneous group, so the short-ahead empties CHE-B's run and the
	// coordinator pokes it to refresh.
	shorter.HandleScan(ctx, "X%SHORT")
	shorter.HandleButton(ctx, 1, 2)
	require.Equal(t, device.StateShortPickConfirm, shorter.State())
	shorter.HandleScan(ctx, "X%YES")
	require.Equal(t, device.StatePickComplete, shorter.State())

	assert.Eventually(t, func() bool {
		return peer.State() == device.StatePickComplete
	}, 2*time.Second, 10*time.Millisecond, "peer must refresh off the short-ahead")
}
