package kernel

import (
	"sync"
	"unsafe"

	"github.com/prometheus/common/log"
)

// The design treats the buddy singleton and slab registry as process-wide
// state with an explicit lifecycle: InitGlobalBuddy before any allocator
// use, then InitGlobalSlabs, no teardown. A hosted Go program doesn't need
// a bare global to express that, but the lifecycle constraint itself is
// real, so it's enforced here rather than papered over with a sync.Once
// that silently no-ops on a second call: InitGlobalBuddy rejects a second
// call, and InitGlobalSlabs refuses to run before it. A second
// InitGlobalSlabs call replaces the registry.
var (
	globalMu       sync.Mutex
	globalBuddy    *Buddy
	globalRegistry *SlabRegistry
)

// InitGlobalBuddy initializes the process-wide buddy singleton exactly
// once. A second call returns errAlreadyInitialized without touching the
// existing arena.
func InitGlobalBuddy(mem []byte, cfg Config, logger log.Logger) error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalBuddy != nil {
		return errAlreadyInitialized
	}
	b, err := NewBuddy(mem, cfg, logger)
	if err != nil {
		return err
	}
	globalBuddy = b
	return nil
}

// InitGlobalSlabs registers the process-wide slab registry against the
// already-initialized global buddy singleton. Panics if called before
// InitGlobalBuddy, matching the design's init ordering.
func InitGlobalSlabs(cfg Config, logger log.Logger, kinds ...Kind) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalBuddy == nil {
		panic("kernel: InitGlobalSlabs called before InitGlobalBuddy")
	}
	globalRegistry = NewSlabRegistry(globalBuddy, cfg, logger, kinds...)
}

// GlobalBuddy returns the process-wide buddy facade. Panics if
// InitGlobalBuddy has not run.
func GlobalBuddy() *Buddy {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalBuddy == nil {
		panic("kernel: buddy facade used before InitGlobalBuddy")
	}
	return globalBuddy
}

// AllocPages allocates through the global buddy singleton.
func AllocPages(n uint64) unsafe.Pointer { return GlobalBuddy().AllocPages(n) }

// FreePages frees through the global buddy singleton.
func FreePages(ptr unsafe.Pointer) { GlobalBuddy().FreePages(ptr) }

// SlabAlloc allocates a cell of the given kind through the global slab
// registry. Panics if InitGlobalSlabs has not run, or kind is
// unregistered.
func SlabAlloc(kind Kind) unsafe.Pointer {
	globalMu.Lock()
	r := globalRegistry
	globalMu.Unlock()
	if r == nil {
		panic("kernel: slab facade used before InitGlobalSlabs")
	}
	return r.Alloc(kind)
}

// SlabFree frees a cell of the given kind through the global slab
// registry.
func SlabFree(kind Kind, ptr unsafe.Pointer) {
	globalMu.Lock()
	r := globalRegistry
	globalMu.Unlock()
	if r == nil {
		panic("kernel: slab facade used before InitGlobalSlabs")
	}
	r.Free(kind, ptr)
}
