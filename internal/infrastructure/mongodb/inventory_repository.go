package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/che-controller/internal/domain"
)

// InventoryRepository implements engine.InventoryRepository over two
// collections: item masters and stock records.
type InventoryRepository struct {
	masters *mongo.Collection
	stock   *mongo.Collection
}

// NewInventoryRepository creates the repository and its indexes.
func NewInventoryRepository(db *mongo.Database) *InventoryRepository {
	masters := db.Collection("item_masters")
	stock := db.Collection("inventory")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _ = masters.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "sku", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "gtin", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	})
	_, _ = stock.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "sku", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "location", Value: 1}},
		},
	})

	return &InventoryRepository{masters: masters, stock: stock}
}

// PutStock seeds a stock record (import boundary).
func (r *InventoryRepository) PutStock(ctx context.Context, item *domain.InventoryItem) error {
	item.UpdatedAt = time.Now()
	if _, err := r.stock.InsertOne(ctx, item); err != nil {
		return fmt.Errorf("failed to insert stock: %w", err)
	}
	return nil
}

// FindStockBySKU returns every stock record for a SKU.
func (r *InventoryRepository) FindStockBySKU(ctx context.Context, sku string) ([]*domain.InventoryItem, error) {
	cursor, err := r.stock.Find(ctx, bson.M{"sku": sku})
	if err != nil {
		return nil, fmt.Errorf("failed to find stock: %w", err)
	}
	defer cursor.Close(ctx)

	var items []*domain.InventoryItem
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed to decode stock: %w", err)
	}
	return items, nil
}

// FindMasterByScan resolves a SKU or GTIN scan to its item master.
func (r *InventoryRepository) FindMasterByScan(ctx context.Context, scan string) (*domain.ItemMaster, error) {
	var master domain.ItemMaster
	err := r.masters.FindOne(ctx, bson.M{
		"$or": []bson.M{{"sku": scan}, {"gtin": scan}},
	}).Decode(&master)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("scan %q: %w", scan, domain.ErrUnknownItem)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find item master: %w", err)
	}
	return &master, nil
}

// SaveMaster upserts an item master by SKU.
func (r *InventoryRepository) SaveMaster(ctx context.Context, master *domain.ItemMaster) error {
	master.UpdatedAt = time.Now()
	_, err := r.masters.ReplaceOne(
		ctx,
		bson.M{"sku": master.SKU},
		master,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save item master: %w", err)
	}
	return nil
}

// MoveStock relocates a SKU's stock record, creating one when the SKU has
// never been stocked.
func (r *InventoryRepository) MoveStock(ctx context.Context, sku, locationName string, cmFromLeft int) error {
	result, err := r.stock.UpdateOne(
		ctx,
		bson.M{"sku": sku},
		bson.M{"$set": bson.M{
			"location":   locationName,
			"cmFromLeft": cmFromLeft,
			"updatedAt":  time.Now(),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to move stock: %w", err)
	}
	if result.MatchedCount == 0 {
		return r.PutStock(ctx, &domain.InventoryItem{
			SKU:          sku,
			UOM:          "EA",
			LocationName: locationName,
			CmFromLeft:   cmFromLeft,
		})
	}
	return nil
}
