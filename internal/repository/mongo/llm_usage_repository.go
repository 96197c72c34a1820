package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// LLMUsageRepository tracks cumulative LLM spend per batch and per calendar
// month, the accounting side of C5 (§4.5 "Accounting").
type LLMUsageRepository struct {
	collection *mongo.Collection
}

// NewLLMUsageRepository creates a new LLMUsageRepository.
func NewLLMUsageRepository(db *mongo.Database) *LLMUsageRepository {
	return &LLMUsageRepository{
		collection: db.Collection("llm_usage"),
	}
}

// RecordUsage increments tokens/cost on the one document keyed by
// (batchID, current UTC month-key), upserting it if missing (batchID may be
// empty for ad-hoc single-machine extractions). Implements
// extractor.UsageSink.
func (r *LLMUsageRepository) RecordUsage(ctx context.Context, batchID string, promptTokens, completionTokens int, costUSD float64) {
	now := time.Now().UTC()
	monthKey := now.Format("2006-01")

	filter := bson.M{"batch_id": batchID, "month_key": monthKey}
	update := bson.M{
		"$inc": bson.M{
			"prompt_tokens":     promptTokens,
			"completion_tokens": completionTokens,
			"cost_usd":          costUSD,
		},
		"$set": bson.M{"updated_at": now},
		"$setOnInsert": bson.M{
			"batch_id":   batchID,
			"month_key":  monthKey,
			"created_at": now,
		},
	}
	opts := options.Update().SetUpsert(true)
	// Best-effort: a failed usage increment should never fail the extraction
	// it's accounting for.
	_, _ = r.collection.UpdateOne(ctx, filter, update, opts)
}

// MonthCostUSD returns the running LLM spend summed over every document
// with the given month key ("2006-01" form, UTC).
func (r *LLMUsageRepository) MonthCostUSD(ctx context.Context, monthKey string) (float64, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"month_key": monthKey})
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	var total float64
	var rows []struct {
		CostUSD float64 `bson:"cost_usd"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return 0, err
	}
	for _, row := range rows {
		total += row.CostUSD
	}
	return total, nil
}
