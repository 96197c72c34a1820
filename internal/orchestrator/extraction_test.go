package orchestrator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"pricewatch/internal/extractor"
	"pricewatch/internal/model"
	"pricewatch/internal/siterule"
	"pricewatch/internal/store"
)

var _ store.Store = (*fakeStore)(nil)

// newStubPage starts an httptest.Server that always returns a trivial HTML
// body, so Fetch succeeds and the orchestrator proceeds straight to the
// stubbed tier extractors -- the page content itself is irrelevant to these
// tests since the tiers are replaced with fixed stubs.
func newStubPage(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>stub</body></html>"))
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func newTestFetcher() *extractor.Fetcher {
	f := extractor.NewFetcher("pricewatch-test", 5*time.Second)
	f.MaxRetries = 0
	return f
}

// fakeStore is an in-memory store.Store double, enough to exercise the
// orchestrator's read/write calls without a real Mongo connection. Guarded
// by a mutex since the batch runner drives it from multiple worker
// goroutines concurrently.
type fakeStore struct {
	mu       sync.Mutex
	machines map[primitive.ObjectID]*model.Machine
	history  []*model.PriceHistory
	batches  map[primitive.ObjectID]*model.Batch
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		machines: make(map[primitive.ObjectID]*model.Machine),
		batches:  make(map[primitive.ObjectID]*model.Batch),
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
	out := make([]*model.Machine, 0, len(ids))
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
			m.LearnedSelectors = make(map[string]model.LearnedSelector)
		}
		m.LearnedSelectors[domain] = sel
	}
	return nil
}

func (s *fakeStore) AppendPriceHistory(_ context.Context, row *model.PriceHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row.ID = primitive.NewObjectID()
	row.CreatedAt = time.Now().UTC()
	s.history = append(s.history, row)
	return nil
}

func (s *fakeStore) GetPriceHistory(_ context.Context, id primitive.ObjectID) (*model.PriceHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.history {
		if h.ID == id {
			return h, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) ListPriceHistoryByMachine(_ context.Context, machineID primitive.ObjectID, limit int64) ([]*model.PriceHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.PriceHistory
	for _, h := range s.history {
		if h.MachineID == machineID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *fakeStore) ResolveApproval(_ context.Context, id primitive.ObjectID, decision model.ApprovalDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.history {
		if h.ID == id {
			h.RequiresApproval = false
			h.ApprovalDecision = decision
		}
	}
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
		now := time.Now().UTC()
		b.StartedAt = &now
	}
	return nil
}

func (s *fakeStore) AppendBatchResult(_ context.Context, id primitive.ObjectID, result model.BatchResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.batches[id]; ok {
		b.Results = append(b.Results, result)
		if result.Success {
			b.SuccessCount++
		} else {
			b.FailureCount++
		}
	}
	return nil
}

func (s *fakeStore) MarkBatchFinished(_ context.Context, id primitive.ObjectID, status model.BatchStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.batches[id]; ok {
		b.Status = status
		now := time.Now().UTC()
		b.FinishedAt = &now
	}
	return nil
}

// stubExtractor is a single-tier extractor.Extractor double that either
// always succeeds with a fixed price or always fails with a fixed error.
type stubExtractor struct {
	result *extractor.Result
	err    error
}

func (s *stubExtractor) Extract(_ context.Context, _ extractor.Input) (*extractor.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func newMachine(url string, price *decimal.Decimal) *model.Machine {
	return &model.Machine{ID: primitive.NewObjectID(), Name: "Test Machine", ProductURL: url, Price: price}
}

func decPtr(s string) *decimal.Decimal {
	v := dec(s)
	return &v
}

func TestRunExtraction_StaticTierSucceedsNoDynamicOrLLM(t *testing.T) {
	st := newFakeStore()
	machine := newMachine(newStubPage(t), decPtr("999"))
	st.machines[machine.ID] = machine

	e := &Extractor{
		Fetcher: newTestFetcher(),
		Static:  &stubExtractor{result: &extractor.Result{Price: dec("1000"), Tier: model.TierStructuredData, SelectorOrPath: ".price"}},
		Dynamic: &stubExtractor{err: errors.New("should not be called")},
		Rules:   siterule.New(nil),
		Store:   st,

		FetchTimeout:   5 * time.Second,
		DynamicTimeout: 5 * time.Second,
		LLMTimeout:     5 * time.Second,
	}

	result, err := e.RunExtraction(context.Background(), machine.ID, nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.History.TierUsed != model.TierStructuredData {
		t.Fatalf("expected TierStructuredData, got %v", result.History.TierUsed)
	}
	if !machine.Price.Equal(dec("1000")) {
		t.Fatalf("machine price not updated, got %v", machine.Price)
	}
}

func TestRunExtraction_AllTiersFailYieldsNoPrice(t *testing.T) {
	st := newFakeStore()
	machine := newMachine(newStubPage(t), nil)
	st.machines[machine.ID] = machine

	e := &Extractor{
		Fetcher: newTestFetcher(),
		Static:  &stubExtractor{err: errors.New("static fails")},
		Dynamic: &stubExtractor{err: errors.New("dynamic fails")},
		LLM:     nil,
		Rules:   siterule.New(nil),
		Store:   st,

		FetchTimeout:   5 * time.Second,
		DynamicTimeout: 5 * time.Second,
		LLMTimeout:     5 * time.Second,
	}

	result, err := e.RunExtraction(context.Background(), machine.ID, nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatalf("expected failure when all tiers fail, got %+v", result)
	}
	if result.History.ValidationStatus != model.ValidationNoPrice {
		t.Fatalf("expected NO_PRICE, got %v", result.History.ValidationStatus)
	}
}

func TestRunExtraction_EscalatesToLLMWhenStaticAndDynamicFail(t *testing.T) {
	st := newFakeStore()
	machine := newMachine(newStubPage(t), nil)
	st.machines[machine.ID] = machine

	vendor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"price\": 2499.00, \"currency\": \"USD\", \"confidence\": 0.8, \"selector\": \"\"}"}}],"usage":{"prompt_tokens":400,"completion_tokens":20}}`))
	}))
	t.Cleanup(vendor.Close)

	llm := extractor.NewLLMExtractor(extractor.LLMVendorConfig{
		Endpoint:        vendor.URL,
		Model:           "test-model",
		APIKey:          "test-key",
		MaxPayloadChars: 2000,
	}, vendor.Client(), nil)

	e := &Extractor{
		Fetcher: newTestFetcher(),
		Static:  &stubExtractor{err: errors.New("static fails")},
		Dynamic: &stubExtractor{err: errors.New("dynamic fails")},
		LLM:     llm,
		Rules:   siterule.New(nil),
		Store:   st,

		FetchTimeout:   5 * time.Second,
		DynamicTimeout: 5 * time.Second,
		LLMTimeout:     5 * time.Second,
	}

	result, err := e.RunExtraction(context.Background(), machine.ID, nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success via LLM tier, got %+v", result)
	}
	if result.History.TierUsed != model.TierLLM {
		t.Fatalf("expected TierLLM, got %v", result.History.TierUsed)
	}
	if !machine.Price.Equal(dec("2499.00")) {
		t.Fatalf("machine price not updated from LLM tier, got %v", machine.Price)
	}
}

func TestRunExtraction_MachineNotFound(t *testing.T) {
	st := newFakeStore()
	e := &Extractor{Store: st, Rules: siterule.New(nil)}
	_, err := e.RunExtraction(context.Background(), primitive.NewObjectID(), nil, false)
	if err == nil {
		t.Fatal("expected error for missing machine")
	}
}

func TestRunExtraction_LargeChangeWithoutDigitCorrectionNeedsReview(t *testing.T) {
	st := newFakeStore()
	machine := newMachine(newStubPage(t), decPtr("1000"))
	st.machines[machine.ID] = machine

	e := &Extractor{
		Fetcher: newTestFetcher(),
		Static:  &stubExtractor{result: &extractor.Result{Price: dec("5000"), Tier: model.TierStructuredData, SelectorOrPath: ".price"}},
		Dynamic: &stubExtractor{err: errors.New("unused")},
		Rules:   siterule.New(nil),
		Store:   st,

		FetchTimeout:   5 * time.Second,
		DynamicTimeout: 5 * time.Second,
		LLMTimeout:     5 * time.Second,
	}

	result, err := e.RunExtraction(context.Background(), machine.ID, nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatalf("expected NEEDS_REVIEW to not count as success, got %+v", result)
	}
	if result.History.ValidationStatus != model.ValidationNeedsReview {
		t.Fatalf("got %v, want NEEDS_REVIEW", result.History.ValidationStatus)
	}
	if machine.Price.Equal(dec("5000")) {
		t.Fatal("machine price must not change on NEEDS_REVIEW")
	}
}
