// Package browserpool provides a fixed-capacity pool of chromedp browser
// contexts for the dynamic extractor (§5: "fixed capacity, acquire/release
// with guaranteed release on all exit paths").
package browserpool

import (
	"context"
	"log"

	"github.com/chromedp/chromedp"
)

// Pool hands out browser contexts derived from a single shared allocator,
// bounded by a buffered channel acting as a counting semaphore.
type Pool struct {
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	tokens      chan struct{}
}

// New creates a Pool with the given capacity. The allocator is configured
// with the teacher's headless flag set (SPEC_FULL §0 provenance).
func New(ctx context.Context, capacity int) *Pool {
	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-setuid-sandbox", true),
			chromedp.Flag("disable-background-networking", true),
			chromedp.Flag("disable-default-apps", true),
			chromedp.Flag("disable-extensions", true),
			chromedp.Flag("disable-sync", true),
			chromedp.Flag("disable-translate", true),
			chromedp.Flag("mute-audio", true),
			chromedp.Flag("hide-scrollbars", true),
		)...,
	)

	if capacity <= 0 {
		capacity = 1
	}

	return &Pool{
		allocCtx:    allocCtx,
		cancelAlloc: cancel,
		tokens:      make(chan struct{}, capacity),
	}
}

// Acquire blocks until a pool slot is free or ctx is done, then returns a
// fresh browser-tab context and a release function. release MUST be called
// exactly once, on every exit path (success, failure, panic, cancellation).
func (p *Pool) Acquire(ctx context.Context) (context.Context, func(), error) {
	select {
	case p.tokens <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}

	tabCtx, cancelTab := chromedp.NewContext(p.allocCtx, chromedp.WithLogf(log.Printf))

	released := false
	release := func() {
		if released {
			return
		}
		released = true
		cancelTab()
		<-p.tokens
	}

	return tabCtx, release, nil
}

// Close shuts down the shared allocator. Call once at process shutdown.
func (p *Pool) Close() {
	p.cancelAlloc()
}
