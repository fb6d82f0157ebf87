package domain

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNoInventory = errors.New("no resolvable inventory for item")
	ErrUnknownItem = errors.New("unknown item")
)

// ItemMaster is the catalog identity of a SKU. Masters created on the fly
// from a GTIN scan are placeholders: they carry the GTIN as a provisional
// name until an import supplies the real SKU, and merging the two is an
// explicit resolution step, never assumed idempotent.
type ItemMaster struct {
	SKU         string    `bson:"sku" json:"sku"`
	Description string    `bson:"description" json:"description"`
	GTIN        string    `bson:"gtin,omitempty" json:"gtin,omitempty"`
	Placeholder bool      `bson:"placeholder" json:"placeholder"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt" json:"updatedAt"`
}

// InventoryItem is stock of one SKU at one location.
type InventoryItem struct {
	SKU          string    `bson:"sku" json:"sku"`
	UOM          string    `bson:"uom" json:"uom"`
	LocationName string    `bson:"location" json:"location"`
	CmFromLeft   int       `bson:"cmFromLeft" json:"cmFromLeft"`
	Quantity     int       `bson:"quantity" json:"quantity"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}
