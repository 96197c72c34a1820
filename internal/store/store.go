// Package store defines the persistence contract the core requires (§6.3):
// machine reads/writes, append-only price history, and batch lifecycle.
// internal/repository/mongo provides the only implementation in this repo.
package store

import (
	"context"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"pricewatch/internal/model"
)

// MachineStore is the machine side of the §6.3 contract.
type MachineStore interface {
	GetMachine(ctx context.Context, id primitive.ObjectID) (*model.Machine, error)
	GetMachines(ctx context.Context, ids []primitive.ObjectID) ([]*model.Machine, error)
	UpdateMachinePrice(ctx context.Context, id primitive.ObjectID, price *decimal.Decimal) error
	UpdateMachineLearnedSelector(ctx context.Context, id primitive.ObjectID, domain string, sel model.LearnedSelector) error
}

// PriceHistoryStore is the append-only history side of the §6.3 contract.
type PriceHistoryStore interface {
	AppendPriceHistory(ctx context.Context, row *model.PriceHistory) error
	GetPriceHistory(ctx context.Context, id primitive.ObjectID) (*model.PriceHistory, error)
	ListPriceHistoryByMachine(ctx context.Context, machineID primitive.ObjectID, limit int64) ([]*model.PriceHistory, error)
	ResolveApproval(ctx context.Context, id primitive.ObjectID, decision model.ApprovalDecision) error
}

// BatchStore is the batch lifecycle side of the §6.3 contract.
type BatchStore interface {
	CreateBatch(ctx context.Context, batch *model.Batch) error
	GetBatch(ctx context.Context, id primitive.ObjectID) (*model.Batch, error)
	MarkBatchStarted(ctx context.Context, id primitive.ObjectID) error
	AppendBatchResult(ctx context.Context, id primitive.ObjectID, result model.BatchResult) error
	MarkBatchFinished(ctx context.Context, id primitive.ObjectID, status model.BatchStatus) error
}

// Store is the full §6.3 contract the orchestrator depends on.
type Store interface {
	MachineStore
	PriceHistoryStore
	BatchStore
}
