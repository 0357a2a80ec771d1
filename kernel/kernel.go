// Package kernel is the locked facade the rest of a kernel image talks
// to: a single buddy instance bound to an arena, and a fixed registry of
// slab caches keyed by object kind, each independently locked. The core
// allocators in mazmem/buddy and mazmem/slab never log and never lock;
// this package adds both, plus the statistics export.
package kernel

import (
	"fmt"
	"unsafe"

	"github.com/prometheus/common/log"

	"mazmem/buddy"
	"mazmem/lock"
	"mazmem/slab"
)

// Buddy is the locked wrapper around one buddy.Arena: alloc_pages,
// free_pages and stat each acquire the arena's mutex for the duration of
// the call, matching the design's per-tier exclusive locking.
type Buddy struct {
	mu    lock.Mutex
	arena *buddy.Arena
	log   log.Logger
}

// NewBuddy initializes a buddy arena over mem under cfg's geometry and
// returns the locked facade around it. A BadConfig failure from the core
// is returned unchanged: the facade adds locking and logging, not
// validation.
func NewBuddy(mem []byte, cfg Config, logger log.Logger) (*Buddy, error) {
	if logger == nil {
		logger = log.Base()
	}
	arena, err := buddy.Init(mem, cfg.Levels, cfg.PageSize, cfg.Pages)
	if err != nil {
		logger.With("err", err).Error("buddy init failed")
		return nil, err
	}
	logger.With("levels", cfg.Levels).With("pages", cfg.Pages).Info("buddy arena initialized")
	return &Buddy{mu: lock.NewWeighted(), arena: arena, log: logger}, nil
}

// AllocPages acquires the arena lock and allocates a run of n pages,
// returning nil on OutOfMemory or BadRequest exactly as the core does —
// the facade adds no additional failure mode for allocation.
func (b *Buddy) AllocPages(n uint64) unsafe.Pointer {
	b.mu.Lock()
	defer b.mu.Unlock()
	ptr := b.arena.Alloc(n)
	if ptr == nil {
		b.log.With("pages", n).Debug("buddy alloc failed")
	}
	return ptr
}

// FreePages acquires the arena lock and releases a block previously
// returned by AllocPages. A bad pointer is fatal, per the core's
// contract; the facade does not recover from it.
func (b *Buddy) FreePages(ptr unsafe.Pointer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.arena.Free(ptr)
}

// Stat takes a locked snapshot of the arena's statistics.
func (b *Buddy) Stat() buddy.Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.arena.Stat()
}

// getPage and putPage adapt Buddy's locked single/multi-page alloc/free to
// the slab.GetPage/PutPage callback shape the slab tier expects.
func (b *Buddy) getPage(pages uint64) unsafe.Pointer { return b.AllocPages(pages) }
func (b *Buddy) putPage(ptr unsafe.Pointer)          { b.FreePages(ptr) }
func (b *Buddy) pageBase(ptr unsafe.Pointer) unsafe.Pointer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.arena.PageBase(ptr)
}

// SlabRegistry is the fixed set of independently locked slab caches keyed
// by Kind, each sourcing pages from one shared Buddy facade. Dispatch on
// an unregistered Kind is fatal, matching the design's UnknownKind
// failure mode.
type SlabRegistry struct {
	buddy  *Buddy
	caches map[Kind]*lockedCache
	log    log.Logger
}

type lockedCache struct {
	mu    lock.Mutex
	cache *slab.Cache
}

// NewSlabRegistry builds one slab cache per Kind in kinds, each with
// object size kindObjectSize[kind] and pgsize cfg.PageSize, sourcing pages
// from b.
func NewSlabRegistry(b *Buddy, cfg Config, logger log.Logger, kinds ...Kind) *SlabRegistry {
	if logger == nil {
		logger = log.Base()
	}
	r := &SlabRegistry{buddy: b, caches: make(map[Kind]*lockedCache, len(kinds)), log: logger}
	for _, k := range kinds {
		if !k.valid() {
			panic(fmt.Sprintf("kernel: cannot register unknown slab kind %d", k))
		}
		c := slab.Init(cfg.PageSize, kindObjectSize[k], b.getPage, b.putPage, b.pageBase)
		r.caches[k] = &lockedCache{mu: lock.NewWeighted(), cache: c}
		logger.With("kind", k.String()).With("cells", c.Cells()).Info("slab cache initialized")
	}
	return r
}

// Alloc dispatches to the cache registered for kind, acquiring that
// cache's own lock (never the buddy lock directly — the slab cache
// acquires it internally, on a page miss, via the lock order slab →
// buddy). An unregistered kind panics.
func (r *SlabRegistry) Alloc(kind Kind) unsafe.Pointer {
	lc := r.lockedCacheFor(kind)
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.cache.Alloc()
}

// Free dispatches a free to the cache registered for kind.
func (r *SlabRegistry) Free(kind Kind, ptr unsafe.Pointer) {
	lc := r.lockedCacheFor(kind)
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.cache.Free(ptr)
}

func (r *SlabRegistry) lockedCacheFor(kind Kind) *lockedCache {
	lc, ok := r.caches[kind]
	if !ok {
		panic(fmt.Sprintf("kernel: slab dispatch on unregistered kind %v", kind))
	}
	return lc
}
