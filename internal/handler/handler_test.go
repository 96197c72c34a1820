package handler

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"pricewatch/internal/model"
)

// fakeStore is an in-memory store.Store double for handler tests; it never
// touches Mongo, so these tests run without a real database.
type fakeStore struct {
	mu       sync.Mutex
	machines map[primitive.ObjectID]*model.Machine
	history  map[primitive.ObjectID]*model.PriceHistory
	batches  map[primitive.ObjectID]*model.Batch
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		machines: map[primitive.ObjectID]*model.Machine{},
		history:  map[primitive.ObjectID]*model.PriceHistory{},
		batches:  map[primitive.ObjectID]*model.Batch{},
	}
}

func (s *fakeStore) GetMachine(_ context.Context, id primitive.ObjectID) (*model.Machine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machines[id], nil
}

func (s *fakeStore) GetMachines(_ context.Context, ids []primitive.ObjectID) ([]*model.Machine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Machine
	for _, id := range ids {
		if m, ok := s.machines[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateMachinePrice(_ context.Context, id primitive.ObjectID, price *decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.machines[id]; ok {
		m.Price = price
	}
	return nil
}

func (s *fakeStore) UpdateMachineLearnedSelector(_ context.Context, id primitive.ObjectID, domain string, sel model.LearnedSelector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.machines[id]; ok {
		if m.LearnedSelectors == nil {
			m.LearnedSelectors = map[string]model.LearnedSelector{}
		}
		m.LearnedSelectors[domain] = sel
	}
	return nil
}

func (s *fakeStore) AppendPriceHistory(_ context.Context, row *model.PriceHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row.ID = primitive.NewObjectID()
	s.history[row.ID] = row
	return nil
}

func (s *fakeStore) GetPriceHistory(_ context.Context, id primitive.ObjectID) (*model.PriceHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history[id], nil
}

func (s *fakeStore) ListPriceHistoryByMachine(_ context.Context, machineID primitive.ObjectID, _ int64) ([]*model.PriceHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.PriceHistory
	for _, row := range s.history {
		if row.MachineID == machineID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *fakeStore) ResolveApproval(_ context.Context, id primitive.ObjectID, decision model.ApprovalDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.history[id]
	if !ok {
		return nil
	}
	row.RequiresApproval = false
	row.ApprovalDecision = decision
	return nil
}

func (s *fakeStore) CreateBatch(_ context.Context, batch *model.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch.ID = primitive.NewObjectID()
	s.batches[batch.ID] = batch
	return nil
}

func (s *fakeStore) GetBatch(_ context.Context, id primitive.ObjectID) (*model.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batches[id], nil
}

func (s *fakeStore) MarkBatchStarted(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.batches[id]; ok {
		b.Status = model.BatchRunning
	}
	return nil
}

func (s *fakeStore) AppendBatchResult(_ context.Context, id primitive.ObjectID, result model.BatchResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[id]
	if !ok {
		return nil
	}
	b.Results = append(b.Results, result)
	if result.Success {
		b.SuccessCount++
	} else {
		b.FailureCount++
	}
	return nil
}

func (s *fakeStore) MarkBatchFinished(_ context.Context, id primitive.ObjectID, status model.BatchStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.batches[id]; ok {
		b.Status = status
	}
	return nil
}
