// Package lock supplies the abstract mutex the kernel facade wraps around
// the allocator core. The buddy and slab tiers do no locking themselves;
// the facade holds a Mutex interface rather than a sync.Mutex so it can
// swap in whatever primitive fits its scheduling model without touching
// allocator code.
package lock

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Mutex is the exclusive-lock primitive the kernel facade wraps around
// each allocator tier. There is no try-lock and no timeout in the core
// per the design's concurrency model: every acquire runs to completion.
type Mutex interface {
	Lock()
	Unlock()
}

// Weighted is a Mutex backed by a weighted semaphore of capacity one.
// golang.org/x/sync/semaphore is context-aware and trivially generalises
// to a shared/exclusive primitive if a future slab variant ever wants
// concurrent readers of a stats snapshot; a bare sync.Mutex would have to
// be replaced wholesale to get there.
type Weighted struct {
	sem *semaphore.Weighted
}

// NewWeighted returns a ready-to-use exclusive Mutex.
func NewWeighted() *Weighted {
	return &Weighted{sem: semaphore.NewWeighted(1)}
}

// Lock blocks until the mutex is acquired. The core never cancels an
// in-flight acquire, so this always passes context.Background(); Acquire
// only returns an error when the context is done, which never happens
// here.
func (w *Weighted) Lock() {
	if err := w.sem.Acquire(context.Background(), 1); err != nil {
		panic(err)
	}
}

// Unlock releases the mutex. Calling Unlock without a matching Lock is a
// programmer error in the caller, not something this type detects.
func (w *Weighted) Unlock() {
	w.sem.Release(1)
}
