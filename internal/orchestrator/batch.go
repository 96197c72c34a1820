package orchestrator

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"

	"pricewatch/internal/model"
	"pricewatch/internal/ratelimit"
	"pricewatch/internal/siterule"
	"pricewatch/internal/store"
)

// BatchConfig tunes the C7 dispatcher (§4.7, §5).
type BatchConfig struct {
	Workers              int
	PerDomainConcurrency int
	PerMachineTimeout    time.Duration
}

// DefaultBatchConfig mirrors §4.7's stated defaults.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		Workers:              5,
		PerDomainConcurrency: 2,
		PerMachineTimeout:    180 * time.Second,
	}
}

// BatchRunner dispatches extraction jobs for a Batch across a fixed worker
// pool, honoring per-domain concurrency caps and rate limits (§4.7).
type BatchRunner struct {
	Extractor *Extractor
	Store     store.Store
	Config    BatchConfig

	domainSem   *ratelimit.DomainSemaphore
	domainLimit *ratelimit.DomainLimiter
}

// NewBatchRunner builds a BatchRunner with its own per-domain semaphore and
// rate limiter, sized from cfg.
func NewBatchRunner(extractor *Extractor, st store.Store, cfg BatchConfig) *BatchRunner {
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	if cfg.PerDomainConcurrency <= 0 {
		cfg.PerDomainConcurrency = 2
	}
	if cfg.PerMachineTimeout <= 0 {
		cfg.PerMachineTimeout = 180 * time.Second
	}
	return &BatchRunner{
		Extractor:   extractor,
		Store:       st,
		Config:      cfg,
		domainSem:   ratelimit.NewDomainSemaphore(cfg.PerDomainConcurrency),
		domainLimit: ratelimit.New(3),
	}
}

// Dispatch creates a Batch record over machineIDs and runs it to completion.
// It returns once every job has recorded an outcome; callers that want
// fire-and-forget semantics should invoke this from their own goroutine
// or use DispatchAsync (which the HTTP handler for POST /batch calls).
func (r *BatchRunner) Dispatch(ctx context.Context, machineIDs []primitive.ObjectID, debug bool) (*model.Batch, error) {
	batch := &model.Batch{
		Status:     model.BatchPending,
		CreatedAt:  time.Now().UTC(),
		MachineIDs: machineIDs,
		Debug:      debug,
	}
	if err := r.Store.CreateBatch(ctx, batch); err != nil {
		return nil, err
	}
	return batch, r.Run(ctx, batch)
}

// DispatchAsync creates a Batch record over machineIDs and returns it
// immediately, running the batch in the background on a context detached
// from the caller's (§6.1 POST /batch: "creates a Batch, returns {batch_id},
// and dispatches asynchronously" -- the HTTP request must not block on it).
func (r *BatchRunner) DispatchAsync(ctx context.Context, machineIDs []primitive.ObjectID, debug bool) (*model.Batch, error) {
	batch := &model.Batch{
		Status:     model.BatchPending,
		CreatedAt:  time.Now().UTC(),
		MachineIDs: machineIDs,
		Debug:      debug,
	}
	if err := r.Store.CreateBatch(ctx, batch); err != nil {
		return nil, err
	}

	go func() {
		if err := r.Run(context.Background(), batch); err != nil {
			log.Printf("[orchestrator] batch %s: background run failed: %v", batch.ID.Hex(), err)
		}
	}()

	return batch, nil
}

// Run executes every job in batch concurrently and updates the store as
// results land. The batch is marked RUNNING on entry and COMPLETED once the
// job queue drains, whatever the individual jobs' outcomes (a job failure is
// recorded as that job's result and never stops the batch, §7). It is marked
// FAILED only when ctx is cancelled before the run finishes.
func (r *BatchRunner) Run(ctx context.Context, batch *model.Batch) error {
	if err := r.Store.MarkBatchStarted(ctx, batch.ID); err != nil {
		return err
	}

	jobs := make(chan primitive.ObjectID)
	group, groupCtx := errgroup.WithContext(ctx)

	for i := 0; i < r.Config.Workers; i++ {
		group.Go(func() error {
			for machineID := range jobs {
				r.runJob(groupCtx, batch, machineID)
			}
			return nil
		})
	}

	go func() {
		defer close(jobs)
		for _, id := range batch.MachineIDs {
			select {
			case jobs <- id:
			case <-groupCtx.Done():
				return
			}
		}
	}()

	// errgroup's workers never return an error themselves (runJob always
	// records its own outcome), so Wait itself returns nil; the only failure
	// is the parent context being cancelled, which cuts the run short --
	// that's a crash of the orchestrator itself, not of any one job.
	err := group.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		_ = r.Store.MarkBatchFinished(ctx, batch.ID, model.BatchFailed)
		return err
	}

	return r.Store.MarkBatchFinished(ctx, batch.ID, model.BatchCompleted)
}

// runJob runs one machine's extraction under the per-machine timeout, the
// per-domain semaphore, and the per-domain rate limiter, then records a
// BatchResult regardless of outcome.
func (r *BatchRunner) runJob(ctx context.Context, batch *model.Batch, machineID primitive.ObjectID) {
	jobCtx, cancel := context.WithTimeout(ctx, r.Config.PerMachineTimeout)
	defer cancel()

	machine, err := r.Store.GetMachine(jobCtx, machineID)
	if err != nil || machine == nil {
		r.recordResult(ctx, batch.ID, model.BatchResult{MachineID: machineID, Success: false, ReasonCode: "MACHINE_NOT_FOUND"})
		return
	}

	domain, err := siterule.DomainFromURL(machine.ProductURL)
	if err != nil {
		r.recordResult(ctx, batch.ID, model.BatchResult{MachineID: machineID, Success: false, ReasonCode: "FETCH_PERMANENT"})
		return
	}

	release, err := r.domainSem.Acquire(jobCtx, domain)
	if err != nil {
		r.recordResult(ctx, batch.ID, model.BatchResult{MachineID: machineID, Success: false, ReasonCode: "CANCELLED"})
		return
	}
	defer release()

	if err := r.domainLimit.Wait(jobCtx, domain); err != nil {
		r.recordResult(ctx, batch.ID, model.BatchResult{MachineID: machineID, Success: false, ReasonCode: "CANCELLED"})
		return
	}

	batchID := batch.ID
	result, err := r.Extractor.RunExtraction(jobCtx, machineID, &batchID, batch.Debug)
	if err != nil {
		log.Printf("[orchestrator] batch %s: extraction crashed for machine %s: %v", batch.ID.Hex(), machineID.Hex(), err)
		r.recordResult(ctx, batch.ID, model.BatchResult{MachineID: machineID, Success: false, ReasonCode: "FETCH_PERMANENT"})
		return
	}

	br := model.BatchResult{MachineID: machineID, Success: result.Success, ReasonCode: result.Reason}
	if result.History != nil {
		id := result.History.ID
		br.PriceHistoryID = &id
		br.TierUsed = result.History.TierUsed
	}
	r.recordResult(ctx, batch.ID, br)
}

func (r *BatchRunner) recordResult(ctx context.Context, batchID primitive.ObjectID, result model.BatchResult) {
	if err := r.Store.AppendBatchResult(ctx, batchID, result); err != nil {
		log.Printf("[orchestrator] batch %s: failed to record result for machine %s: %v", batchID.Hex(), result.MachineID.Hex(), err)
	}
}

// BatchSnapshot returns the current Batch record for status queries (§6.1
// GET /batch/{batch_id}). Every field is read straight from the store, which
// is the only place results are accumulated concurrently, so this is safe to
// call while a Run is still in flight -- there's no orchestrator-local state
// to race against.
func (r *BatchRunner) BatchSnapshot(ctx context.Context, batchID primitive.ObjectID) (*model.Batch, error) {
	return r.Store.GetBatch(ctx, batchID)
}
