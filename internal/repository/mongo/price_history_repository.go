package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pricewatch/internal/model"
)

// PriceHistoryRepository handles append-only price history persistence
// (§3.3: no update, no delete, except the approval flag flip).
type PriceHistoryRepository struct {
	collection *mongo.Collection
}

// NewPriceHistoryRepository creates a new PriceHistoryRepository.
func NewPriceHistoryRepository(db *mongo.Database) *PriceHistoryRepository {
	return &PriceHistoryRepository{
		collection: db.Collection("price_history"),
	}
}

// Append inserts a new price history row.
func (r *PriceHistoryRepository) Append(ctx context.Context, row *model.PriceHistory) error {
	row.CreatedAt = time.Now().UTC()
	result, err := r.collection.InsertOne(ctx, row)
	if err != nil {
		return err
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		row.ID = oid
	}
	return nil
}

// GetByID retrieves one price history row.
func (r *PriceHistoryRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*model.PriceHistory, error) {
	var row model.PriceHistory
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&row)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ListByMachine returns a machine's price history, most recent first.
func (r *PriceHistoryRepository) ListByMachine(ctx context.Context, machineID primitive.ObjectID, limit int64) ([]*model.PriceHistory, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(limit)
	}
	cursor, err := r.collection.Find(ctx, bson.M{"machine_id": machineID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []*model.PriceHistory
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// ListPendingApproval returns every row still awaiting an operator decision.
func (r *PriceHistoryRepository) ListPendingApproval(ctx context.Context) ([]*model.PriceHistory, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"requires_approval": true})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []*model.PriceHistory
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// ResolveApproval flips requires_approval to false and records the
// decision, the one sanctioned mutation of an otherwise append-only row (§9
// Open Question resolution).
func (r *PriceHistoryRepository) ResolveApproval(ctx context.Context, id primitive.ObjectID, decision model.ApprovalDecision) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"requires_approval": false,
			"approval_decision": decision,
		}},
	)
	return err
}
