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

// OrderRepository implements engine.OrderRepository.
type OrderRepository struct {
	collection *mongo.Collection
}

// NewOrderRepository creates the repository and its indexes.
func NewOrderRepository(db *mongo.Database) *OrderRepository {
	collection := db.Collection("orders")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "orderId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "wallId", Value: 1}},
		},
	}
	_, _ = collection.Indexes().CreateMany(ctx, indexes)

	return &OrderRepository{collection: collection}
}

// PutOrder seeds or replaces an order (import boundary).
func (r *OrderRepository) PutOrder(ctx context.Context, order *domain.OrderHeader) error {
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	_, err := r.collection.ReplaceOne(
		ctx,
		bson.M{"orderId": order.OrderID},
		order,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

// FindOrder finds one order with its details.
func (r *OrderRepository) FindOrder(ctx context.Context, orderID string) (*domain.OrderHeader, error) {
	var order domain.OrderHeader
	err := r.collection.FindOne(ctx, bson.M{"orderId": orderID}).Decode(&order)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrUnknownOrder)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find order: %w", err)
	}
	return &order, nil
}

// SaveDetail writes one detail back into its order document.
func (r *OrderRepository) SaveDetail(ctx context.Context, detail *domain.OrderDetail) error {
	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"orderId": detail.OrderID, "details.detailId": detail.DetailID},
		bson.M{"$set": bson.M{"details.$": detail}},
	)
	if err != nil {
		return fmt.Errorf("failed to save order detail: %w", err)
	}
	if result.MatchedCount == 0 {
		// New detail on an existing order.
		push, err := r.collection.UpdateOne(
			ctx,
			bson.M{"orderId": detail.OrderID},
			bson.M{"$push": bson.M{"details": detail}},
		)
		if err != nil {
			return fmt.Errorf("failed to append order detail: %w", err)
		}
		if push.MatchedCount == 0 {
			return fmt.Errorf("order %s: %w", detail.OrderID, domain.ErrUnknownOrder)
		}
	}
	return nil
}

// FindOrderForWall returns the orders parked on one put wall.
func (r *OrderRepository) FindOrderForWall(ctx context.Context, wallID string) ([]*domain.OrderHeader, error) {
	opts := options.Find().SetSort(bson.D{{Key: "orderId", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"wallId": wallID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find wall orders: %w", err)
	}
	defer cursor.Close(ctx)

	var orders []*domain.OrderHeader
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("failed to decode wall orders: %w", err)
	}
	return orders, nil
}

// AssignWall binds an order to a put-wall slot, overwriting any prior
// assignment.
func (r *OrderRepository) AssignWall(ctx context.Context, orderID, wallID, wallSlot string) error {
	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"orderId": orderID},
		bson.M{"$set": bson.M{"wallId": wallID, "wallSlot": wallSlot}},
	)
	if err != nil {
		return fmt.Errorf("failed to assign order to wall: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("order %s: %w", orderID, domain.ErrUnknownOrder)
	}
	return nil
}
