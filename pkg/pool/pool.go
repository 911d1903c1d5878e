// Package pool provides the fixed-size worker pool the protocol runs its
// per-counterparty I/O tasks on. Pool size defaults to the party count and
// is overridable by the RAYON_NUM_THREADS environment variable.
package pool

import (
	"context"
	"os"
	"strconv"

	"golang.org/x/sync/errgroup"
)

// Size resolves the worker pool size for a group of partyCount parties:
// RAYON_NUM_THREADS if set to a valid positive integer, else partyCount.
func Size(partyCount int) int {
	if v, ok := os.LookupEnv("RAYON_NUM_THREADS"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	if partyCount < 1 {
		return 1
	}
	return partyCount
}

// Group wraps errgroup.Group with a concurrency limit, giving every
// per-counterparty fan-out in the protocol a bounded number of simultaneous
// in-flight tasks instead of one goroutine per counterparty unconditionally.
type Group struct {
	g     *errgroup.Group
	ctx   context.Context
	limit int
}

// New builds a Group bounded to Size(partyCount) concurrent tasks.
func New(ctx context.Context, partyCount int) *Group {
	g, ctx := errgroup.WithContext(ctx)
	limit := Size(partyCount)
	g.SetLimit(limit)
	return &Group{g: g, ctx: ctx, limit: limit}
}

// Go schedules fn to run in the pool, blocking until a slot is free.
func (p *Group) Go(fn func() error) {
	p.g.Go(fn)
}

// Context returns the group's derived context, cancelled on first error.
func (p *Group) Context() context.Context { return p.ctx }

// Wait blocks until every scheduled task has returned, yielding the first
// non-nil error if any.
func (p *Group) Wait() error {
	return p.g.Wait()
}

// Limit reports the pool's concurrency bound.
func (p *Group) Limit() int { return p.limit }
