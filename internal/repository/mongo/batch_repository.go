package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"pricewatch/internal/model"
)

// BatchRepository handles batch dispatch record persistence (§3.5, §4.7).
type BatchRepository struct {
	collection *mongo.Collection
}

// NewBatchRepository creates a new BatchRepository.
func NewBatchRepository(db *mongo.Database) *BatchRepository {
	return &BatchRepository{
		collection: db.Collection("batches"),
	}
}

// Create inserts a new batch in PENDING status.
func (r *BatchRepository) Create(ctx context.Context, batch *model.Batch) error {
	batch.CreatedAt = time.Now().UTC()
	if batch.Status == "" {
		batch.Status = model.BatchPending
	}
	result, err := r.collection.InsertOne(ctx, batch)
	if err != nil {
		return err
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		batch.ID = oid
	}
	return nil
}

// GetByID retrieves a batch by its ID.
func (r *BatchRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*model.Batch, error) {
	var batch model.Batch
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&batch)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

// MarkStarted transitions a batch to RUNNING and stamps started_at.
func (r *BatchRepository) MarkStarted(ctx context.Context, id primitive.ObjectID) error {
	now := time.Now().UTC()
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": model.BatchRunning, "started_at": now}},
	)
	return err
}

// AppendResult records one machine's outcome and advances the success/failure
// counters, keeping the §8 property-4 invariant (Remaining() monotonically
// decreasing) true after every write.
func (r *BatchRepository) AppendResult(ctx context.Context, id primitive.ObjectID, result model.BatchResult) error {
	inc := bson.M{}
	if result.Success {
		inc["success_count"] = 1
	} else {
		inc["failure_count"] = 1
	}
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$push": bson.M{"results": result},
			"$inc":  inc,
		},
	)
	return err
}

// MarkFinished transitions a batch to its terminal status and stamps
// finished_at.
func (r *BatchRepository) MarkFinished(ctx context.Context, id primitive.ObjectID, status model.BatchStatus) error {
	now := time.Now().UTC()
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status, "finished_at": now}},
	)
	return err
}
