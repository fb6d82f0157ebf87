package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/che-controller/internal/coordinator"
	"github.com/wms-platform/che-controller/internal/device"
	"github.com/wms-platform/che-controller/internal/domain"
	"github.com/wms-platform/che-controller/internal/engine"
	"github.com/wms-platform/che-controller/internal/facility"
	"github.com/wms-platform/che-controller/internal/metrics"
	apperrors "github.com/wms-platform/che-controller/pkg/errors"
	"github.com/wms-platform/che-controller/pkg/logging"
)

// OrderImporter receives order seeds from the host platform's import feed.
type OrderImporter interface {
	PutOrder(ctx context.Context, order *domain.OrderHeader) error
}

// StockImporter receives inventory seeds.
type StockImporter interface {
	PutStock(ctx context.Context, item *domain.InventoryItem) error
}

// Handlers holds the HTTP handlers for the CHE controller.
type Handlers struct {
	coord     *coordinator.Coordinator
	eng       *engine.Engine
	fac       *facility.Facility
	orders    OrderImporter
	inventory StockImporter
	met       *metrics.Metrics
	log       *logging.Logger
}

// NewHandlers creates a new Handlers instance. Metrics may be nil.
func NewHandlers(coord *coordinator.Coordinator, eng *engine.Engine, fac *facility.Facility,
	orders OrderImporter, inventory StockImporter, met *metrics.Metrics, log *logging.Logger) *Handlers {
	return &Handlers{
		coord:     coord,
		eng:       eng,
		fac:       fac,
		orders:    orders,
		inventory: inventory,
		met:       met,
		log:       log.WithComponent("http"),
	}
}

// ScanRequest is one barcode delivered on behalf of a device.
type ScanRequest struct {
	Code string `json:"code" binding:"required"`
}

// Scan handles POST /api/v1/devices/:cheName/scan
func (h *Handlers) Scan(c *gin.Context) {
	cheName := c.Param("cheName")

	var req ScanRequest
	if appErr := bindJSON(c, &req); appErr != nil {
		respondError(c, appErr)
		return
	}

	machine := h.coord.Machine(cheName)
	if machine == nil {
		respondError(c, apperrors.ErrServiceUnavailable("device registry"))
		return
	}
	machine.HandleScan(c.Request.Context(), req.Code)
	if h.met != nil {
		h.met.RecordScan(string(device.ParseScan(req.Code).Kind))
	}

	c.JSON(http.StatusOK, machine.Snapshot())
}

// ButtonRequest is one poscon button press.
type ButtonRequest struct {
	Position int `json:"position" binding:"required,min=1"`
	Quantity int `json:"quantity" binding:"min=0"`
}

// Button handles POST /api/v1/devices/:cheName/button
func (h *Handlers) Button(c *gin.Context) {
	cheName := c.Param("cheName")

	var req ButtonRequest
	if appErr := bindJSON(c, &req); appErr != nil {
		respondError(c, appErr)
		return
	}

	machine := h.coord.Machine(cheName)
	if machine == nil {
		respondError(c, apperrors.ErrServiceUnavailable("device registry"))
		return
	}
	machine.HandleButton(c.Request.Context(), req.Position, req.Quantity)
	if h.met != nil {
		h.met.RecordButton()
	}

	c.JSON(http.StatusOK, machine.Snapshot())
}

// GetDevice handles GET /api/v1/devices/:cheName
func (h *Handlers) GetDevice(c *gin.Context) {
	machine := h.coord.Machine(c.Param("cheName"))
	if machine == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
		return
	}
	c.JSON(http.StatusOK, machine.Snapshot())
}

// ListDevices handles GET /api/v1/devices
func (h *Handlers) ListDevices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"devices": h.coord.Names()})
}

// GetWork handles GET /api/v1/devices/:cheName/work
func (h *Handlers) GetWork(c *gin.Context) {
	wis, err := h.eng.ActiveWork(c.Request.Context(), c.Param("cheName"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"instructions": wis})
}

// ImportOrder handles POST /api/v1/orders
func (h *Handlers) ImportOrder(c *gin.Context) {
	var order domain.OrderHeader
	if appErr := bindJSON(c, &order); appErr != nil {
		respondError(c, appErr)
		return
	}
	if order.OrderID == "" {
		respondError(c, apperrors.ErrValidation("orderId is required"))
		return
	}
	for _, detail := range order.Details {
		detail.OrderID = order.OrderID
		if detail.Status == "" {
			detail.Status = domain.DetailStatusReleased
		}
	}
	if err := h.orders.PutOrder(c.Request.Context(), &order); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, order)
}

// ImportStock handles POST /api/v1/inventory
func (h *Handlers) ImportStock(c *gin.Context) {
	var item domain.InventoryItem
	if appErr := bindJSON(c, &item); appErr != nil {
		respondError(c, appErr)
		return
	}
	if item.SKU == "" || item.LocationName == "" {
		respondError(c, apperrors.ErrValidation("sku and location are required"))
		return
	}
	if _, err := h.fac.ResolveName(item.LocationName); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.inventory.PutStock(c.Request.Context(), &item); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, item)
}

// LocationImport is one node of a facility topology import.
type LocationImport struct {
	Name         string  `json:"name" binding:"required"`
	Level        string  `json:"level" binding:"required,oneof=aisle bay tier slot"`
	Parent       string  `json:"parent"`
	Alias        string  `json:"alias"`
	PosAlongPath float64 `json:"posAlongPath"`
	PosconIndex  *int    `json:"posconIndex"`
	LedChannel   int     `json:"ledChannel"`
	LedOffset    int     `json:"ledOffset"`
	TapeID       int     `json:"tapeId"`
}

// PathImport declares one travel path and its segments.
type PathImport struct {
	ID       string `json:"id" binding:"required"`
	Segments []struct {
		Index    int     `json:"index"`
		StartPos float64 `json:"startPos"`
		Length   float64 `json:"length"`
	} `json:"segments"`
}

// AisleAssociation puts an imported aisle onto a path segment.
type AisleAssociation struct {
	Aisle        string `json:"aisle" binding:"required"`
	PathID       string `json:"pathId" binding:"required"`
	SegmentIndex int    `json:"segmentIndex"`
}

// FacilityImport is the topology seed: paths, then locations parent-first,
// then aisle-to-path associations.
type FacilityImport struct {
	Paths        []PathImport       `json:"paths"`
	Locations    []LocationImport   `json:"locations"`
	Associations []AisleAssociation `json:"associations"`
}

// ImportFacility handles POST /api/v1/facility/import
func (h *Handlers) ImportFacility(c *gin.Context) {
	var req FacilityImport
	if appErr := bindJSON(c, &req); appErr != nil {
		respondError(c, appErr)
		return
	}

	for _, p := range req.Paths {
		path := &facility.Path{ID: p.ID}
		for _, s := range p.Segments {
			path.Segments = append(path.Segments, &facility.PathSegment{
				Index: s.Index, StartPos: s.StartPos, Length: s.Length,
			})
		}
		h.fac.AddPath(path)
	}

	// The registry indexes full dotted names, but import rows reference their
	// parent by bare name. Rows already added this batch resolve first.
	imported := make(map[string]*facility.Location, len(req.Locations))
	for _, l := range req.Locations {
		var parent *facility.Location
		if l.Parent != "" {
			parent = imported[l.Parent]
			if parent == nil {
				loc, err := h.fac.ResolveName(l.Parent)
				if err != nil {
					c.JSON(http.StatusBadRequest, gin.H{"error": "parent " + l.Parent + " not found"})
					return
				}
				parent = loc
			}
		}
		loc := &facility.Location{
			Name:         l.Name,
			Level:        facility.Level(l.Level),
			Alias:        l.Alias,
			PosAlongPath: l.PosAlongPath,
			PosconIndex:  l.PosconIndex,
			LedChannel:   l.LedChannel,
			LedOffset:    l.LedOffset,
			TapeID:       l.TapeID,
		}
		if err := h.fac.AddLocation(parent, loc); err != nil {
			if errors.Is(err, facility.ErrDuplicateAlias) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		imported[l.Name] = loc
	}

	for _, a := range req.Associations {
		aisle, err := h.fac.ResolveName(a.Aisle)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "aisle " + a.Aisle + " not found"})
			return
		}
		path, err := h.fac.Path(a.PathID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		var seg *facility.PathSegment
		for _, s := range path.Segments {
			if s.Index == a.SegmentIndex {
				seg = s
				break
			}
		}
		if seg == nil {
			seg = &facility.PathSegment{Index: a.SegmentIndex}
		}
		if err := h.fac.AssociateAisle(aisle, a.PathID, seg); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	h.log.Info("Facility topology imported",
		"paths", len(req.Paths), "locations", len(req.Locations), "associations", len(req.Associations))
	c.JSON(http.StatusOK, gin.H{"status": "imported"})
}

// Health handles GET /health
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "facility": h.fac.Name()})
}
