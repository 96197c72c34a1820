package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Batch tracks a single dispatch of extraction jobs over a set of machines
// (§3.5). Mutable only by the batch orchestrator.
type Batch struct {
	ID     primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Status BatchStatus        `json:"status" bson:"status"`

	CreatedAt  time.Time  `json:"created_at" bson:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty" bson:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty" bson:"finished_at,omitempty"`

	MachineIDs []primitive.ObjectID `json:"machine_ids" bson:"machine_ids"`

	SuccessCount int64 `json:"success_count" bson:"success_count"`
	FailureCount int64 `json:"failure_count" bson:"failure_count"`

	Results []BatchResult `json:"results" bson:"results"`

	// Debug requests dynamic-tier snapshot capture for every job in this
	// batch (§6.1 POST /batch body field).
	Debug bool `json:"debug" bson:"debug"`
}

// BatchResult is one machine's outcome within a Batch.
type BatchResult struct {
	MachineID      primitive.ObjectID  `json:"machine_id" bson:"machine_id"`
	Success        bool                `json:"success" bson:"success"`
	PriceHistoryID *primitive.ObjectID `json:"price_history_id,omitempty" bson:"price_history_id,omitempty"`
	TierUsed       Tier                `json:"tier_used,omitempty" bson:"tier_used,omitempty"`
	ReasonCode     string              `json:"reason_code,omitempty" bson:"reason_code,omitempty"`
}

// Remaining reports len(MachineIDs) - (SuccessCount + FailureCount), the
// invariant from spec §8 property 4.
func (b *Batch) Remaining() int64 {
	return int64(len(b.MachineIDs)) - b.SuccessCount - b.FailureCount
}

// IsComplete reports whether every dispatched machine has recorded an
// outcome.
func (b *Batch) IsComplete() bool {
	return b.Remaining() <= 0
}
