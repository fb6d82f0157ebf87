package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/che-controller/internal/config"
	"github.com/wms-platform/che-controller/internal/coordinator"
	"github.com/wms-platform/che-controller/internal/device"
	"github.com/wms-platform/che-controller/internal/domain"
	"github.com/wms-platform/che-controller/internal/engine"
	"github.com/wms-platform/che-controller/internal/facility"
	"github.com/wms-platform/che-controller/pkg/logging"
)

type testEnv struct {
	router *gin.Engine
	coord  *coordinator.Coordinator
	eng    *engine.Engine
	fac    *facility.Facility
	orders *engine.MemoryOrderRepository
}

func intPtr(i int) *int { return &i }

// newTestEnv wires the full in-memory stack behind the router. withFactory
// false leaves the coordinator unable to create machines, which is how the
// handlers look before device transport comes up.
func newTestEnv(t *testing.T, withFactory bool) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logging.New(&logging.Config{Level: logging.LevelError, ServiceName: "test", Output: io.Discard})

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
	eng := engine.New(orders, inventory, wis, f, config.DefaultProperties(), nil, nil, log)

	coord := coordinator.New(device.NewRecordingSink(), log)
	if withFactory {
		coord.SetFactory(func(cheName string) *device.Machine {
			m := device.NewMachine(cheName, eng, f, coord.Sink(), log)
			m.SetRemote(coord)
			return m
		})
	}

	handlers := NewHandlers(coord, eng, f, orders, inventory, nil, log)
	router := gin.New()
	SetupRoutes(router, handlers, nil)

	return &testEnv{router: router, coord: coord, eng: eng, fac: f, orders: orders}
}

func performRequest(router *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, true)
	resp := performRequest(env.router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "F1")
}

func TestScanBadJSON(t *testing.T) {
	env := newTestEnv(t, true)
	resp := performRequest(env.router, http.MethodPost, "/api/v1/devices/CHE1/scan", []byte("{bad"))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestScanMissingCode(t *testing.T) {
	env := newTestEnv(t, true)
	resp := performRequest(env.router, http.MethodPost, "/api/v1/devices/CHE1/scan", []byte(`{}`))
	require.Equal(t, http.StatusBadRequest, resp.Code)

	var body struct {
		Code    string            `json:"code"`
		Details map[string]string `json:"details"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "VALIDATION_ERROR", body.Code)
	assert.Contains(t, body.Details, "code")
}

func TestScanWithoutTransport(t *testing.T) {
	env := newTestEnv(t, false)
	resp := performRequest(env.router, http.MethodPost, "/api/v1/devices/CHE1/scan", []byte(`{"code":"U%BADGE1"}`))
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestScanDrivesTheMachine(t *testing.T) {
	env := newTestEnv(t, true)
	resp := performRequest(env.router, http.MethodPost, "/api/v1/devices/CHE1/scan", []byte(`{"code":"U%BADGE1"}`))
	require.Equal(t, http.StatusOK, resp.Code)

	var snap device.Snapshot
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &snap))
	assert.Equal(t, device.StateReady, snap.State)
	assert.Equal(t, "BADGE1", snap.WorkerID)
}

func TestButtonValidation(t *testing.T) {
	env := newTestEnv(t, true)

	resp := performRequest(env.router, http.MethodPost, "/api/v1/devices/CHE1/button", []byte(`{"quantity":3}`))
	assert.Equal(t, http.StatusBadRequest, resp.Code, "position is required")

	resp = performRequest(env.router, http.MethodPost, "/api/v1/devices/CHE1/button", []byte(`{"position":1,"quantity":3}`))
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestGetDeviceNotFound(t *testing.T) {
	env := newTestEnv(t, false)
	resp := performRequest(env.router, http.MethodGet, "/api/v1/devices/CHE9", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestListDevices(t *testing.T) {
	env := newTestEnv(t, true)
	performRequest(env.router, http.MethodPost, "/api/v1/devices/CHE1/scan", []byte(`{"code":"U%BADGE1"}`))

	resp := performRequest(env.router, http.MethodGet, "/api/v1/devices", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "CHE1")
}

func TestImportOrder(t *testing.T) {
	env := newTestEnv(t, true)

	body := []byte(`{"orderId":"ORD1","details":[{"detailId":"D1","itemId":"SKU1","uom":"EA","planQuantity":3}]}`)
	resp := performRequest(env.router, http.MethodPost, "/api/v1/orders", body)
	require.Equal(t, http.StatusCreated, resp.Code)

	order, err := env.orders.FindOrder(context.Background(), "ORD1")
	require.NoError(t, err)
	require.Len(t, order.Details, 1)
	assert.Equal(t, "ORD1", order.Details[0].OrderID, "details inherit the header order id")
	assert.Equal(t, domain.DetailStatusReleased, order.Details[0].Status, "missing status defaults to released")
}

func TestImportOrderMissingID(t *testing.T) {
	env := newTestEnv(t, true)
	resp := performRequest(env.router, http.MethodPost, "/api/v1/orders", []byte(`{"details":[]}`))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestImportStock(t *testing.T) {
	env := newTestEnv(t, true)

	resp := performRequest(env.router, http.MethodPost, "/api/v1/inventory",
		[]byte(`{"sku":"SKU1","uom":"EA","location":"D301","quantity":10}`))
	assert.Equal(t, http.StatusCreated, resp.Code)

	t.Run("unmodeled location rejected", func(t *testing.T) {
		resp := performRequest(env.router, http.MethodPost, "/api/v1/inventory",
			[]byte(`{"sku":"SKU1","uom":"EA","location":"NOWHERE","quantity":10}`))
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})
}

func TestImportFacility(t *testing.T) {
	env := newTestEnv(t, true)

	body := []byte(`{
		"paths": [{"id":"P2","segments":[{"index":0,"length":50}]}],
		"locations": [
			{"name":"A2","level":"aisle"},
			{"name":"B9","level":"bay","parent":"A2"},
			{"name":"S9","level":"slot","parent":"B9","alias":"D901","posconIndex":4}
		],
		"associations": [{"aisle":"A2","pathId":"P2","segmentIndex":0}]
	}`)
	resp := performRequest(env.router, http.MethodPost, "/api/v1/facility/import", body)
	require.Equal(t, http.StatusOK, resp.Code)

	loc, err := env.fac.ResolveName("D901")
	require.NoError(t, err)
	assert.Equal(t, "S9", loc.Name)
	assert.Equal(t, "P2", loc.PathID, "association propagates the path to descendants")

	t.Run("duplicate alias conflicts", func(t *testing.T) {
		body := []byte(`{"locations":[{"name":"S10","level":"slot","parent":"B9","alias":"D901"}]}`)
		resp := performRequest(env.router, http.MethodPost, "/api/v1/facility/import", body)
		assert.Equal(t, http.StatusConflict, resp.Code)
	})

	t.Run("unknown parent rejected", func(t *testing.T) {
		body := []byte(`{"locations":[{"name":"S11","level":"slot","parent":"GHOST"}]}`)
		resp := performRequest(env.router, http.MethodPost, "/api/v1/facility/import", body)
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})
}

func TestGetWork(t *testing.T) {
	env := newTestEnv(t, true)
	resp := performRequest(env.router, http.MethodGet, "/api/v1/devices/CHE1/work", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "instructions")
}
