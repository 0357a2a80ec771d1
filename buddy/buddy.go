// Package buddy implements the buddy page allocator described in the
// design: a family of free lists over power-of-two block sizes, backed by
// a per-page state table, both carved out of the same arena they manage.
// There is no heap underneath — every free-list node and every byte of
// bookkeeping lives inside the caller-supplied arena; Arena itself only
// holds a handful of cached addresses and slice headers pointing into it.
//
// Arena is not safe for concurrent use. The kernel package wraps one
// behind a mutex; callers embedding this package directly must supply
// their own serialization.
package buddy

import (
	"fmt"
	"math/bits"
	"unsafe"

	"mazmem/internal/flist"
)

// none marks a state-table entry that is not the first page of a live
// allocation — either free, or the interior of an allocated or free block.
const none int8 = -1

// freeHeader is the node a free block carries in its own first bytes.
// link.Key is the block's level, read directly by Free's coalesce loop
// when it lands on a neighbour without knowing in advance which free list
// (if any) that neighbour is on.
type freeHeader struct {
	link flist.Node[int32]
}

// Arena is one buddy-managed region: arenaSize = pages * pgsize bytes,
// carved into list heads, a state table, and a working area per the
// layout in the design doc.
type Arena struct {
	mem          []byte
	levels       int
	pgsize       uintptr
	base         uintptr
	dataBase     uintptr
	workingPages uint64

	stateTable []int8
	lists      []flist.List[int32]
}

// Init carves arena into list heads, a state table and a working area and
// populates the free lists with a left-to-right sweep of the working area,
// per the design's Init algorithm. mem must be at least pages*pgsize bytes;
// levels bounds the maximum block size at 2^(levels-1) pages.
func Init(mem []byte, levels int, pgsize uintptr, pages uint64) (*Arena, error) {
	if levels <= 0 {
		return nil, badConfig(errLevels, fmt.Sprintf("levels=%d", levels))
	}
	headerSize := unsafe.Sizeof(freeHeader{})
	if headerSize > pgsize {
		return nil, badConfig(errHeaderFit, fmt.Sprintf("pgsize=%d headerSize=%d", pgsize, headerSize))
	}

	listSize := uint64(unsafe.Sizeof(flist.List[int32]{}))
	listsBytes := uint64(levels) * listSize
	serv := (listsBytes+pages)/uint64(pgsize) + 1
	if serv >= pages {
		return nil, badConfig(errServGEPages, fmt.Sprintf("serv=%d pages=%d", serv, pages))
	}

	need := pages * uint64(pgsize)
	if uint64(len(mem)) < need {
		return nil, badConfig(errArenaShort, fmt.Sprintf("len(mem)=%d need=%d", len(mem), need))
	}

	base := uintptr(unsafe.Pointer(&mem[0]))
	stateTableBase := base + uintptr(listsBytes)
	dataBase := base + uintptr(serv)*pgsize
	workingPages := pages - serv

	lists := unsafe.Slice((*flist.List[int32])(unsafe.Pointer(base)), levels)
	stateTable := unsafe.Slice((*int8)(unsafe.Pointer(stateTableBase)), pages)

	for i := range lists {
		lists[i].Init(int32(i))
	}
	for i := range stateTable {
		stateTable[i] = none
	}

	a := &Arena{
		mem:          mem,
		levels:       levels,
		pgsize:       pgsize,
		base:         base,
		dataBase:     dataBase,
		workingPages: workingPages,
		stateTable:   stateTable,
		lists:        lists,
	}
	a.sweepInit()
	return a, nil
}

// sweepInit performs the single left-to-right pass over the working area
// described in the design: as many top-level blocks as fit, then at most
// one block per descending level for the tail.
func (a *Arena) sweepInit() {
	remaining := a.workingPages
	cursor := uint64(0)
	top := a.levels - 1

	topSize := uint64(1) << uint(top)
	for remaining >= topSize {
		a.publish(cursor, top)
		cursor += topSize
		remaining -= topSize
	}

	for lvl := top - 1; lvl >= 0; lvl-- {
		size := uint64(1) << uint(lvl)
		if remaining >= size {
			a.publish(cursor, lvl)
			cursor += size
			remaining -= size
		}
	}

	if remaining != 0 {
		panic("buddy: init sweep left a nonzero remainder")
	}
}

func (a *Arena) publish(pageIdx uint64, level int) {
	h := a.headerAt(a.pageAddr(pageIdx))
	a.lists[level].Insert(&h.link)
}

func (a *Arena) headerAt(addr uintptr) *freeHeader {
	return (*freeHeader)(unsafe.Pointer(addr))
}

func (a *Arena) pageAddr(p uint64) uintptr {
	return a.dataBase + uintptr(p)*a.pgsize
}

func (a *Arena) pageIndexOf(addr uintptr) uint64 {
	return uint64((addr - a.dataBase) / a.pgsize)
}

func blockAddr(n *flist.Node[int32]) uintptr {
	return uintptr(unsafe.Pointer(n))
}

// Alloc returns a pointer to one block of pages contiguous pages, or nil if
// pages is not a positive power of two, exceeds the arena's maximum block
// size, or no free block of a sufficient level exists. On success the
// returned pointer is both page-aligned and 2^k-page aligned; on failure
// the arena is unchanged.
func (a *Arena) Alloc(pages uint64) unsafe.Pointer {
	if pages == 0 || pages&(pages-1) != 0 {
		return nil
	}
	k := bits.TrailingZeros64(pages)
	if k >= a.levels {
		return nil
	}

	free := -1
	for lvl := k; lvl < a.levels; lvl++ {
		if a.lists[lvl].Len() > 0 {
			free = lvl
			break
		}
	}
	if free == -1 {
		return nil
	}

	node := a.lists[free].Pop()
	for lvl := free; lvl > k; lvl-- {
		secondAddr := blockAddr(node) + (a.pgsize << uint(lvl-1))
		second := a.headerAt(secondAddr)
		a.lists[lvl-1].Insert(&second.link)
	}

	addr := blockAddr(node)
	p := a.pageIndexOf(addr)
	a.stateTable[p] = int8(k)
	return unsafe.Pointer(addr)
}

// Free returns a previously allocated block to the arena, coalescing with
// its buddy at each level while the buddy is wholly free. ptr must equal a
// pointer previously returned by Alloc and not yet freed; any other value
// is a fatal programmer error and panics, matching the design's
// Corruption class of anomaly.
func (a *Arena) Free(ptr unsafe.Pointer) {
	addr := uintptr(ptr)
	if addr < a.dataBase || (addr-a.dataBase)%a.pgsize != 0 {
		panic("buddy: free of an unaligned or out-of-arena pointer")
	}
	p := a.pageIndexOf(addr)
	if p >= a.workingPages {
		panic("buddy: free pointer out of range")
	}

	k := a.stateTable[p]
	if k < 0 {
		panic("buddy: double free, or free of a pointer that is not an allocation base")
	}
	a.stateTable[p] = none

	level := int(k)
	for level < a.levels-1 {
		q := p ^ (uint64(1) << uint(level))
		if q+(uint64(1)<<uint(level)) > a.workingPages {
			break
		}
		if a.stateTable[q] != none {
			break
		}
		buddy := a.headerAt(a.pageAddr(q))
		bl := int(buddy.link.Key)
		if bl < level {
			break
		}
		if bl > level {
			panic("buddy: corrupt free list, buddy reports a level above the merge level")
		}
		a.lists[level].Remove(&buddy.link)
		if q < p {
			p = q
		}
		level++
	}

	h := a.headerAt(a.pageAddr(p))
	a.lists[level].Insert(&h.link)
}

// Stats is a read-only snapshot of buddy arena state.
type Stats struct {
	TotalPages uint64
	FreePages  uint64
	FreeBySize []uint64
}

// Stat takes a snapshot of the arena's current free-list state. Callers
// that need a consistent snapshot across concurrent mutators must take it
// under the same lock that guards Alloc/Free — Arena itself does no
// locking, per the design.
func (a *Arena) Stat() Stats {
	s := Stats{TotalPages: a.workingPages, FreeBySize: make([]uint64, a.levels)}
	for lvl := 0; lvl < a.levels; lvl++ {
		n := a.lists[lvl].Len()
		s.FreeBySize[lvl] = n
		s.FreePages += n << uint(lvl)
	}
	return s
}

// Levels returns the arena's number of block-size classes.
func (a *Arena) Levels() int { return a.levels }

// PageSize returns the arena's page size in bytes.
func (a *Arena) PageSize() uintptr { return a.pgsize }

// MaxAllocPages returns the largest request Alloc can ever satisfy
// (2^(levels-1) pages), regardless of current fragmentation.
func (a *Arena) MaxAllocPages() uint64 {
	return uint64(1) << uint(a.levels-1)
}

// PageBase masks a pointer anywhere inside the arena's working area down
// to the start of the page that contains it. This is the page_base_of
// helper the design calls for at the buddy/slab boundary: the slab tier
// only ever receives single-page allocations from Alloc, but a cell
// pointer handed back to Free can point anywhere inside that page, and
// this is the one place that arithmetic happens.
func (a *Arena) PageBase(ptr unsafe.Pointer) unsafe.Pointer {
	addr := uintptr(ptr)
	p := uint64((addr - a.dataBase) / a.pgsize)
	return unsafe.Pointer(a.pageAddr(p))
}
