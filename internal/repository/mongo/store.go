package mongo

import (
	"context"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"pricewatch/internal/model"
)

// Store composes the per-aggregate repositories into the single contract
// internal/store.Store expects, mirroring the teacher's one-repo-per-
// aggregate layout behind this one facade struct.
type Store struct {
	Machines     *MachineRepository
	PriceHistory *PriceHistoryRepository
	Batches      *BatchRepository
}

// NewStore builds a Store over db.
func NewStore(db *mongo.Database) *Store {
	return &Store{
		Machines:     NewMachineRepository(db),
		PriceHistory: NewPriceHistoryRepository(db),
		Batches:      NewBatchRepository(db),
	}
}

func (s *Store) GetMachine(ctx context.Context, id primitive.ObjectID) (*model.Machine, error) {
	return s.Machines.GetByID(ctx, id)
}

func (s *Store) GetMachines(ctx context.Context, ids []primitive.ObjectID) ([]*model.Machine, error) {
	return s.Machines.GetByIDs(ctx, ids)
}

func (s *Store) UpdateMachinePrice(ctx context.Context, id primitive.ObjectID, price *decimal.Decimal) error {
	return s.Machines.UpdatePrice(ctx, id, price)
}

func (s *Store) UpdateMachineLearnedSelector(ctx context.Context, id primitive.ObjectID, domain string, sel model.LearnedSelector) error {
	return s.Machines.UpdateLearnedSelector(ctx, id, domain, sel)
}

func (s *Store) AppendPriceHistory(ctx context.Context, row *model.PriceHistory) error {
	return s.PriceHistory.Append(ctx, row)
}

func (s *Store) GetPriceHistory(ctx context.Context, id primitive.ObjectID) (*model.PriceHistory, error) {
	return s.PriceHistory.GetByID(ctx, id)
}

func (s *Store) ListPriceHistoryByMachine(ctx context.Context, machineID primitive.ObjectID, limit int64) ([]*model.PriceHistory, error) {
	return s.PriceHistory.ListByMachine(ctx, machineID, limit)
}

func (s *Store) ResolveApproval(ctx context.Context, id primitive.ObjectID, decision model.ApprovalDecision) error {
	return s.PriceHistory.ResolveApproval(ctx, id, decision)
}

func (s *Store) CreateBatch(ctx context.Context, batch *model.Batch) error {
	return s.Batches.Create(ctx, batch)
}

func (s *Store) GetBatch(ctx context.Context, id primitive.ObjectID) (*model.Batch, error) {
	return s.Batches.GetByID(ctx, id)
}

func (s *Store) MarkBatchStarted(ctx context.Context, id primitive.ObjectID) error {
	return s.Batches.MarkStarted(ctx, id)
}

func (s *Store) AppendBatchResult(ctx context.Context, id primitive.ObjectID, result model.BatchResult) error {
	return s.Batches.AppendResult(ctx, id, result)
}

func (s *Store) MarkBatchFinished(ctx context.Context, id primitive.ObjectID, status model.BatchStatus) error {
	return s.Batches.MarkFinished(ctx, id, status)
}
