// Package slab implements the second allocator tier: a cache of
// fixed-size cells carved from single buddy pages, indexed by occupancy so
// that free moves a page between occupancy classes in O(1); allocate scans
// the C occupancy lists below "full", fullest first.
//
// A Cache never calls into the Go allocator for its own bookkeeping beyond
// the Cache struct itself — the list-head block it requests once at Init,
// pages, bitmaps and cells are all addressed through the GetPage
// callback's return values with unsafe.Pointer, the same discipline the
// buddy package follows.
package slab

import "unsafe"

// Page is the per-page header every managed page carries in its first
// bytes, immediately followed by a one-byte-per-cell occupancy bitmap and
// then the cells themselves. usedCells is the page's used-cell count,
// stamped by the occupancy list on insert, letting a page be reclassified
// without touching any table outside the page itself.
type Page struct {
	link      node
	usedCells uint32
}

// node and list are a private, non-generic copy of the intrusive list
// shape used by the buddy tier (mazmem/internal/flist), re-expressed here
// over *Page instead of a generic Node so that Page can embed its linkage
// directly at a fixed, predictable offset — the slab header is a flat
// struct (prev, next, owning list, used-cell count) and bitmapAt/cellsBase
// below compute offsets past it with unsafe.Sizeof.
type node struct {
	prev, next *Page
	owner      *list
}

type list struct {
	head   Page
	length uint64
}

func (l *list) init(usedCells uint32) {
	l.head.link.prev = nil
	l.head.link.next = nil
	l.head.link.owner = l
	l.head.usedCells = usedCells
	l.length = 0
}

func (l *list) insertAfter(base, n *Page) {
	n.link.owner = l
	n.usedCells = l.head.usedCells
	n.link.prev = base
	n.link.next = base.link.next
	if base.link.next != nil {
		base.link.next.link.prev = n
	}
	base.link.next = n
	l.length++
}

func (l *list) insert(n *Page) {
	l.insertAfter(&l.head, n)
}

func (l *list) remove(n *Page) {
	if n.link.prev == nil {
		panic("slab: remove of unlinked page")
	}
	if l.length == 0 {
		panic("slab: remove from empty list")
	}
	prev, next := n.link.prev, n.link.next
	prev.link.next = next
	if next != nil {
		next.link.prev = prev
	}
	n.link.prev = nil
	n.link.next = nil
	l.length--
}

func (l *list) pop() *Page {
	first := l.head.link.next
	if first == nil {
		return nil
	}
	l.remove(first)
	return first
}

// GetPage requests n contiguous pages from the backing tier (always n=1
// for the cells path; Init may ask for more to host the list-head region).
// PutPage releases pages obtained that way. PageBase masks a cell pointer
// down to the Page header that owns it. These three callbacks are the
// cache's only contact with the buddy tier, matching the design's
// get_page/put_page/page_base_of trio.
type GetPage func(pages uint64) unsafe.Pointer
type PutPage func(ptr unsafe.Pointer)
type PageBase func(ptr unsafe.Pointer) unsafe.Pointer

// Cache is one fixed-object-size slab cache: pgsize and objectSize fix the
// per-page cell count C; C+1 occupancy lists (0..C) each hold pages with
// exactly that many used cells.
type Cache struct {
	pgsize     uintptr
	objectSize uintptr
	cells      uintptr

	getPage  GetPage
	putPage  PutPage
	pageBase PageBase

	lists []list
}

func headerSize() uintptr {
	return unsafe.Sizeof(Page{})
}

// Init computes the cache's cell count and carves its C+1 list heads out
// of one or more pages obtained from getPage, following
// init_lists/serv_pages in the reference slab allocator but with C+1
// heads rather than C: round the
// list-head region's byte size up to the next power-of-two page count and
// request that many pages once, up front.
func Init(pgsize, objectSize uintptr, getPage GetPage, putPage PutPage, pageBase PageBase) *Cache {
	cells := (pgsize - headerSize()) / (1 + objectSize)
	if int64(cells) <= 0 {
		panic("slab: page too small to hold even one cell of the requested size")
	}

	listsBytes := uintptr(cells+1) * unsafe.Sizeof(list{})
	servPages := servPagesFor(pgsize, uint64(listsBytes))

	listsMem := getPage(servPages)
	if listsMem == nil {
		panic("slab: buddy tier could not supply the list-head region at init")
	}

	lists := unsafe.Slice((*list)(listsMem), cells+1)
	for i := range lists {
		lists[i].init(uint32(i))
	}

	return &Cache{
		pgsize:     pgsize,
		objectSize: objectSize,
		cells:      cells,
		getPage:    getPage,
		putPage:    putPage,
		pageBase:   pageBase,
		lists:      lists,
	}
}

// servPagesFor mirrors serv_pages in the reference implementation: the
// smallest power-of-two page count whose byte capacity covers need.
func servPagesFor(pgsize uintptr, need uint64) uint64 {
	res := uint64(1)
	for res*uint64(pgsize) < need {
		res *= 2
	}
	return res
}

func (c *Cache) bitmapAt(page *Page) []byte {
	base := uintptr(unsafe.Pointer(page)) + headerSize()
	return unsafe.Slice((*byte)(unsafe.Pointer(base)), c.cells)
}

func (c *Cache) cellsBase(page *Page) uintptr {
	return uintptr(unsafe.Pointer(page)) + headerSize() + c.cells
}

func (c *Cache) newPage() *Page {
	raw := c.getPage(1)
	if raw == nil {
		return nil
	}
	page := (*Page)(raw)
	bitmap := c.bitmapAt(page)
	for i := range bitmap {
		bitmap[i] = 0
	}
	c.lists[0].insert(page)
	return page
}

func (c *Cache) allocFromPage(page *Page) unsafe.Pointer {
	bitmap := c.bitmapAt(page)
	i := uintptr(0)
	for bitmap[i] == 1 {
		i++
	}
	bitmap[i] = 1

	used := page.usedCells
	c.lists[used].remove(page)
	c.lists[used+1].insert(page)

	return unsafe.Pointer(c.cellsBase(page) + i*c.objectSize)
}

// Alloc returns a pointer to a fresh cell, pulling a new page from the
// buddy tier when every existing page is full. It returns nil only when
// the buddy tier itself cannot supply a fresh page — the cache never
// fails for any other reason.
func (c *Cache) Alloc() unsafe.Pointer {
	for u := int(c.cells) - 1; u >= 0; u-- {
		if c.lists[u].length > 0 {
			return c.allocFromPage(c.lists[u].head.link.next)
		}
	}
	page := c.newPage()
	if page == nil {
		return nil
	}
	return c.allocFromPage(page)
}

// Free returns a cell to its owning page, migrating the page to the
// occupancy list one below its current one. The cache trusts ptr to be a
// value previously returned by Alloc on this cache and not yet freed; it
// does not and cannot validate that, matching the design's stated
// boundary of trust between kernel subsystems.
func (c *Cache) Free(ptr unsafe.Pointer) {
	page := (*Page)(c.pageBase(ptr))

	used := page.usedCells
	c.lists[used].remove(page)
	c.lists[used-1].insert(page)

	bitmap := c.bitmapAt(page)
	i := (uintptr(ptr) - c.cellsBase(page)) / c.objectSize
	if bitmap[i] != 1 {
		panic("slab: free of a cell that is not currently allocated")
	}
	bitmap[i] = 0
}

// Cells returns the fixed number of cells per managed page.
func (c *Cache) Cells() uintptr { return c.cells }

// OccupancyLen returns the current length of the occupancy-class list u,
// for tests and statistics; u must be in [0, Cells()].
func (c *Cache) OccupancyLen(u int) uint64 {
	return c.lists[u].length
}
