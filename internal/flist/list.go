// Package flist implements the intrusive doubly-linked list behind the
// buddy tier's per-level free lists. The slab tier keeps its own private,
// non-generic copy of the same shape. Nodes are not separately allocated: a Node is meant to be the
// first field of whatever struct lives at the start of the memory block it
// represents, so the list never touches the Go heap once its owner has
// placed it over an arena byte range with unsafe.Pointer.
package flist

// Node is the linkage embedded at the front of a free block's header (the
// buddy tier). Key is the classifying datum stamped on insert — the buddy
// level for a free block — so that code holding only a
// pointer to a neighbour's Node can recover its class without consulting
// any table.
type Node[K any] struct {
	prev, next *Node[K]
	owner      *List[K]
	Key        K
}

// Linked reports whether n is currently attached to a list.
func (n *Node[K]) Linked() bool {
	return n.prev != nil
}

// List is a sentinel-headed doubly-linked list of Node[K]. The sentinel
// (head) itself carries the list's classifying key and is never returned
// by Pop or accepted by Remove.
type List[K any] struct {
	head   Node[K]
	length uint64
}

// Init resets l to the empty list and stamps key as the key every inserted
// node will receive.
func (l *List[K]) Init(key K) {
	l.head.prev = nil
	l.head.next = nil
	l.head.owner = l
	l.head.Key = key
	l.length = 0
}

// Len returns the number of real (non-sentinel) nodes currently linked.
func (l *List[K]) Len() uint64 {
	return l.length
}

// InsertAfter links n immediately after base, stamping l's classifying key
// into n and incrementing the length. base is typically &l.head; the
// buddy tier never passes anything else.
func (l *List[K]) InsertAfter(base, n *Node[K]) {
	n.owner = l
	n.Key = l.head.Key
	n.prev = base
	n.next = base.next
	if base.next != nil {
		base.next.prev = n
	}
	base.next = n
	l.length++
}

// Insert links n at the front of l (immediately after the sentinel head).
func (l *List[K]) Insert(n *Node[K]) {
	l.InsertAfter(&l.head, n)
}

// Remove detaches n from whatever list it is linked to. n must be linked;
// removing an unlinked node (or the sentinel head) is a programmer error
// and panics, matching the fatal/Corruption class of anomaly described for
// the tiers built on top of this list.
func (l *List[K]) Remove(n *Node[K]) {
	if n.prev == nil {
		panic("flist: remove of unlinked node")
	}
	if l.length == 0 {
		panic("flist: remove from empty list")
	}
	prev, next := n.prev, n.next
	prev.next = next
	if next != nil {
		next.prev = prev
	}
	n.prev = nil
	n.next = nil
	l.length--
}

// Pop removes and returns the first real node on l, or nil if l is empty.
func (l *List[K]) Pop() *Node[K] {
	first := l.head.next
	if first == nil {
		return nil
	}
	l.Remove(first)
	return first
}

// Key returns n's classifying key, read straight out of the node without
// walking the list that owns it. The buddy tier reads the same value
// through the Key field directly.
func Key[K any](n *Node[K]) K {
	return n.Key
}
