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

// WorkInstructionRepository implements engine.WorkInstructionRepository.
type WorkInstructionRepository struct {
	collection *mongo.Collection
}

// NewWorkInstructionRepository creates the repository and its indexes.
func NewWorkInstructionRepository(db *mongo.Database) *WorkInstructionRepository {
	collection := db.Collection("work_instructions")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "instructionId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "assignedChe", Value: 1}, {Key: "status", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "detailId", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "itemId", Value: 1}, {Key: "location", Value: 1}},
		},
	}
	_, _ = collection.Indexes().CreateMany(ctx, indexes)

	return &WorkInstructionRepository{collection: collection}
}

// Save upserts one instruction by its id.
func (r *WorkInstructionRepository) Save(ctx context.Context, wi *domain.WorkInstruction) error {
	wi.UpdatedAt = time.Now()
	_, err := r.collection.ReplaceOne(
		ctx,
		bson.M{"instructionId": wi.ID},
		wi,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save work instruction: %w", err)
	}
	return nil
}

// FindByID finds one instruction.
func (r *WorkInstructionRepository) FindByID(ctx context.Context, id string) (*domain.WorkInstruction, error) {
	var wi domain.WorkInstruction
	err := r.collection.FindOne(ctx, bson.M{"instructionId": id}).Decode(&wi)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("work instruction %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find work instruction: %w", err)
	}
	return &wi, nil
}

// FindByChe returns every instruction assigned to a CHE, sort code order.
func (r *WorkInstructionRepository) FindByChe(ctx context.Context, cheName string) ([]*domain.WorkInstruction, error) {
	return r.findAll(ctx, bson.M{"assignedChe": cheName})
}

// FindByDetail returns every instruction built from one order detail.
func (r *WorkInstructionRepository) FindByDetail(ctx context.Context, detailID string) ([]*domain.WorkInstruction, error) {
	return r.findAll(ctx, bson.M{"detailId": detailID})
}

// FindByGroup returns the simultaneous group: same item at the same
// location. The group is a derived view, never persisted.
func (r *WorkInstructionRepository) FindByGroup(ctx context.Context, groupKey string) ([]*domain.WorkInstruction, error) {
	if groupKey == "" {
		return nil, nil
	}
	itemID, location, ok := splitGroupKey(groupKey)
	if !ok {
		return nil, nil
	}
	return r.findAll(ctx, bson.M{
		"itemId":   itemID,
		"location": location,
		"type":     bson.M{"$in": []string{string(domain.TypePick), string(domain.TypePut)}},
	})
}

func splitGroupKey(key string) (itemID, location string, ok bool) {
	for i := 0; i < len(key); i++ {
		if key[i] == '@' {
			return key[:i], key[i+1:], true
		}
	}
	return "", "", false
}

func (r *WorkInstructionRepository) findAll(ctx context.Context, filter bson.M) ([]*domain.WorkInstruction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "sortCode", Value: 1}, {Key: "instructionId", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find work instructions: %w", err)
	}
	defer cursor.Close(ctx)

	var wis []*domain.WorkInstruction
	if err := cursor.All(ctx, &wis); err != nil {
		return nil, fmt.Errorf("failed to decode work instructions: %w", err)
	}
	return wis, nil
}

// ReplaceForChe swaps the CHE's active run: non-terminal instructions are
// removed and the new run inserted. Terminal instructions stay on record.
// The engine's per-order locks serialize callers, so the two steps do not
// need a multi-document transaction.
func (r *WorkInstructionRepository) ReplaceForChe(ctx context.Context, cheName string, wis []*domain.WorkInstruction) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{
		"assignedChe": cheName,
		"$or": []bson.M{
			{"status": bson.M{"$in": []string{string(domain.StatusNew), string(domain.StatusInProgress)}}},
			{"status": string(domain.StatusSubstitution), "completedAt": bson.M{"$exists": false}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to clear active work instructions: %w", err)
	}
	if len(wis) == 0 {
		return nil
	}
	docs := make([]any, 0, len(wis))
	for _, wi := range wis {
		docs = append(docs, wi)
	}
	if _, err := r.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to install work instructions: %w", err)
	}
	return nil
}

// Delete removes one instruction.
func (r *WorkInstructionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"instructionId": id}); err != nil {
		return fmt.Errorf("failed to delete work instruction: %w", err)
	}
	return nil
}
