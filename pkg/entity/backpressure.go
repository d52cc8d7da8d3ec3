package entity

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// semaphoreGate bounds the number of live entity slots the way
// hupe1980-vecgo's resource.Controller bounds concurrent background work
// against a weighted limit: Push acquires one unit of weight, Release
// returns it. A non-positive limit disables the gate (unbounded).
type semaphoreGate struct {
	sem   *semaphore.Weighted
	limit int64
}

func newSemaphoreGate(limit int64) *semaphoreGate {
	if limit <= 0 {
		return &semaphoreGate{}
	}
	return &semaphoreGate{sem: semaphore.NewWeighted(limit), limit: limit}
}

func (g *semaphoreGate) acquire() error {
	if g.sem == nil {
		return nil
	}
	return g.sem.Acquire(context.Background(), 1)
}

// acquireCtx is used by callers that want to honor cancellation while
// waiting on the high-water mark, e.g. the driver's structure_for_plan
// advancement loop.
func (g *semaphoreGate) acquireCtx(ctx context.Context) error {
	if g.sem == nil {
		return nil
	}
	return g.sem.Acquire(ctx, 1)
}

func (g *semaphoreGate) release() {
	if g.sem == nil {
		return
	}
	g.sem.Release(1)
}
