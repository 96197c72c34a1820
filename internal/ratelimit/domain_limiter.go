// Package ratelimit enforces per-domain politeness between the worker pool
// and the static/dynamic extractors (§5, §4.7).
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DomainLimiter is a token bucket per registrable domain: default 1 token
// every MinInterval, burst 1 (§5: "per-domain token bucket (default 1
// token / 3s, burst 1)").
type DomainLimiter struct {
	mu         sync.Mutex
	limiters   map[string]*rate.Limiter
	minInterval rate.Limit
	burst      int
}

// New builds a DomainLimiter with a minimum interval, in seconds, between
// token grants for the same domain.
func New(minIntervalSeconds int) *DomainLimiter {
	if minIntervalSeconds <= 0 {
		minIntervalSeconds = 3
	}
	return &DomainLimiter{
		limiters:    make(map[string]*rate.Limiter),
		minInterval: rate.Every(secondsToDuration(minIntervalSeconds)),
		burst:       1,
	}
}

// Wait blocks until a token is available for domain, or ctx is cancelled.
func (d *DomainLimiter) Wait(ctx context.Context, domain string) error {
	return d.limiterFor(domain).Wait(ctx)
}

func (d *DomainLimiter) limiterFor(domain string) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.limiters[domain]
	if !ok {
		l = rate.NewLimiter(d.minInterval, d.burst)
		d.limiters[domain] = l
	}
	return l
}

func secondsToDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}
