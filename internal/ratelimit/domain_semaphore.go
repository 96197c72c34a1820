package ratelimit

import (
	"context"
	"sync"
)

// DomainSemaphore caps how many extractions may run concurrently against
// the same domain, independent of the global worker pool size (§4.7,
// §5: "a map of per-domain semaphores so one site's pool isn't starved").
type DomainSemaphore struct {
	mu    sync.Mutex
	sems  map[string]chan struct{}
	limit int
}

// NewDomainSemaphore builds a DomainSemaphore with the given per-domain
// concurrency limit.
func NewDomainSemaphore(limit int) *DomainSemaphore {
	if limit <= 0 {
		limit = 2
	}
	return &DomainSemaphore{sems: make(map[string]chan struct{}), limit: limit}
}

// Acquire blocks until a slot opens for domain or ctx is cancelled. The
// returned release function must be called exactly once.
func (d *DomainSemaphore) Acquire(ctx context.Context, domain string) (func(), error) {
	sem := d.semFor(domain)
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() {
		once.Do(func() { <-sem })
	}, nil
}

func (d *DomainSemaphore) semFor(domain string) chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sems[domain]
	if !ok {
		s = make(chan struct{}, d.limit)
		d.sems[domain] = s
	}
	return s
}
