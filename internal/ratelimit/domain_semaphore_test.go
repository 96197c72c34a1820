package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
)

// TestDomainSemaphore_NeverExceedsLimit runs many concurrent acquisitions
// against one domain and checks, via a counting mock, that in-flight count
// never exceeds the configured limit (§8 concurrency property).
func TestDomainSemaphore_NeverExceedsLimit(t *testing.T) {
	const limit = 2
	const jobs = 200

	sem := NewDomainSemaphore(limit)

	var inFlight int64
	var maxSeen int64
	var wg sync.WaitGroup

	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := sem.Acquire(context.Background(), "example.com")
			if err != nil {
				t.Errorf("acquire failed: %v", err)
				return
			}
			defer release()

			n := atomic.AddInt64(&inFlight, 1)
			for {
				old := atomic.LoadInt64(&maxSeen)
				if n <= old || atomic.CompareAndSwapInt64(&maxSeen, old, n) {
					break
				}
			}
			atomic.AddInt64(&inFlight, -1)
		}()
	}

	wg.Wait()

	if maxSeen > limit {
		t.Fatalf("max concurrent in-flight = %d, want <= %d", maxSeen, limit)
	}
}

func TestDomainSemaphore_IndependentPerDomain(t *testing.T) {
	sem := NewDomainSemaphore(1)

	releaseA, err := sem.Acquire(context.Background(), "a.com")
	if err != nil {
		t.Fatal(err)
	}
	defer releaseA()

	// A different domain must not be blocked by a.com's slot.
	if _, err := sem.Acquire(context.Background(), "b.com"); err != nil {
		t.Fatalf("expected b.com acquire to succeed immediately, got %v", err)
	}
}
