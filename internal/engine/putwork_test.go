package engine

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/che-controller/internal/config"
	"github.com/wms-platform/che-controller/internal/domain"
	"github.com/wms-platform/che-controller/internal/facility"
)

// addWall extends the fixture facility with put wall W1: slots P15..P17,
// poscon indexed 15..17.
func addWall(t *testing.T, fx *testFixture) {
	t.Helper()
	wall := &facility.Location{Name: "W1", Level: facility.LevelBay, Alias: "W1"}
	require.NoError(t, fx.fac.AddLocation(nil, wall))
	for i := 15; i <= 17; i++ {
		slot := &facility.Location{
			Name:        "S" + strconv.Itoa(i-14),
			Level:       facility.LevelSlot,
			Alias:       "P" + strconv.Itoa(i),
			PosconIndex: intPtr(i),
		}
		require.NoError(t, fx.fac.AddLocation(wall, slot))
	}
}

func TestAssignOrderToWall(t *testing.T) {
	fx := newTestFixture(t, config.DefaultProperties())
	addWall(t, fx)
	fx.seedOrder(t, "ORD1", &domain.OrderDetail{DetailID: "D1", ItemID: "SKU1", PlanQuantity: 2})
	ctx := context.Background()

	require.NoError(t, fx.eng.AssignOrderToWall(ctx, "ORD1", "P15"))

	order, err := fx.orders.FindOrder(ctx, "ORD1")
	require.NoError(t, err)
	assert.Equal(t, "W1", order.WallID)
	assert.Equal(t, "P15", order.WallSlot)

	t.Run("reassignment overwrites", func(t *testing.T) {
		require.NoError(t, fx.eng.AssignOrderToWall(ctx, "ORD1", "P16"))
		order, err := fx.orders.FindOrder(ctx, "ORD1")
		require.NoError(t, err)
		assert.Equal(t, "P16", order.WallSlot)
	})

	t.Run("unknown slot", func(t *testing.T) {
		err := fx.eng.AssignOrderToWall(ctx, "ORD1", "NOWHERE")
		assert.ErrorIs(t, err, facility.ErrLocationResolution)
	})

	t.Run("unknown order", func(t *testing.T) {
		err := fx.eng.AssignOrderToWall(ctx, "GHOST", "P15")
		assert.ErrorIs(t, err, domain.ErrUnknownOrder)
	})
}

func TestComputePutWork(t *testing.T) {
	fx := newTestFixture(t, config.DefaultProperties())
	addWall(t, fx)
	ctx := context.Background()

	// Three orders on the wall; two want SKU1, one wants something else.
	fx.seedOrder(t, "ORD1", &domain.OrderDetail{DetailID: "D1", ItemID: "SKU1", PlanQuantity: 2})
	fx.seedOrder(t, "ORD2", &domain.OrderDetail{DetailID: "D2", ItemID: "SKU1", PlanQuantity: 1})
	fx.seedOrder(t, "ORD3", &domain.OrderDetail{DetailID: "D3", ItemID: "SKU2", PlanQuantity: 4})
	require.NoError(t, fx.eng.AssignOrderToWall(ctx, "ORD1", "P16"))
	require.NoError(t, fx.eng.AssignOrderToWall(ctx, "ORD2", "P15"))
	require.NoError(t, fx.eng.AssignOrderToWall(ctx, "ORD3", "P17"))

	puts, err := fx.eng.ComputePutWork(ctx, "CHE1", "W1", "SKU1")
	require.NoError(t, err)
	require.Len(t, puts, 2, "one put per wall order wanting the item")

	// Slots light in slot-name order so the worker moves one way.
	assert.Equal(t, "P15", puts[0].LocationName)
	assert.Equal(t, "P16", puts[1].LocationName)
	assert.Equal(t, 15, puts[0].PositionIndex, "position index comes from the slot poscon")
	assert.Equal(t, domain.TypePut, puts[0].Type)
	assert.Equal(t, "ORD2", puts[0].OrderID)

	t.Run("details with an open put are not duplicated", func(t *testing.T) {
		again, err := fx.eng.ComputePutWork(ctx, "CHE1", "W1", "SKU1")
		require.NoError(t, err)
		assert.Empty(t, again)
	})

	t.Run("completed puts free the detail check but status blocks it", func(t *testing.T) {
		require.NoError(t, fx.eng.CompletePick(ctx, puts[0].ID, 1))
		again, err := fx.eng.ComputePutWork(ctx, "CHE1", "W1", "SKU1")
		require.NoError(t, err)
		assert.Empty(t, again, "the detail went complete with its put")
	})

	t.Run("no orders want the item", func(t *testing.T) {
		puts, err := fx.eng.ComputePutWork(ctx, "CHE1", "W1", "SKU9")
		require.NoError(t, err)
		assert.Empty(t, puts)
	})
}

func TestWallFeedback(t *testing.T) {
	fx := newTestFixture(t, config.DefaultProperties())
	addWall(t, fx)
	ctx := context.Background()

	fx.seedOrder(t, "ORD1", &domain.OrderDetail{DetailID: "D1", ItemID: "SKU1", PlanQuantity: 2})
	fx.seedOrder(t, "ORD2", &domain.OrderDetail{DetailID: "D2", ItemID: "SKU2", PlanQuantity: 3})
	require.NoError(t, fx.eng.AssignOrderToWall(ctx, "ORD1", "P15"))
	require.NoError(t, fx.eng.AssignOrderToWall(ctx, "ORD2", "P16"))

	t.Run("assigned but not live renders dashed", func(t *testing.T) {
		fb, err := fx.eng.WallFeedback(ctx, "W1")
		require.NoError(t, err)
		require.Len(t, fb, 2)
		for _, slot := range fb {
			assert.False(t, slot.Live)
			assert.False(t, slot.Complete)
		}
	})

	puts, err := fx.eng.ComputePutWork(ctx, "CHE1", "W1", "SKU1")
	require.NoError(t, err)
	require.Len(t, puts, 1)

	t.Run("live slot counts its open puts", func(t *testing.T) {
		fb, err := fx.eng.WallFeedback(ctx, "W1")
		require.NoError(t, err)
		require.Len(t, fb, 2)
		assert.Equal(t, "P15", fb[0].SlotName)
		assert.True(t, fb[0].Live)
		assert.Equal(t, 2, fb[0].Quantity)
		assert.Equal(t, 15, fb[0].PositionIndex)
		assert.False(t, fb[1].Live)
	})

	t.Run("all details terminal marks the slot complete", func(t *testing.T) {
		require.NoError(t, fx.eng.CompletePick(ctx, puts[0].ID, 2))
		fb, err := fx.eng.WallFeedback(ctx, "W1")
		require.NoError(t, err)
		assert.True(t, fb[0].Complete)
		assert.False(t, fb[0].Live)
	})
}
