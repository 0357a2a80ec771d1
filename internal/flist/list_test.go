package flist

import (
	"testing"
	"unsafe"
)

type stub struct {
	link Node[int32]
	tag  string
}

func TestListInsertPopOrder(t *testing.T) {
	var l List[int32]
	l.Init(7)

	a := &stub{tag: "a"}
	b := &stub{tag: "b"}
	c := &stub{tag: "c"}

	l.Insert(&a.link)
	l.Insert(&b.link)
	l.Insert(&c.link)

	if got := l.Len(); got != 3 {
		t.Fatalf("Len() = %d, want 3", got)
	}

	// Insert always pushes to the front, so Pop order is LIFO: c, b, a.
	want := []string{"c", "b", "a"}
	for _, w := range want {
		n := l.Pop()
		if n == nil {
			t.Fatalf("Pop() = nil, want node for %q", w)
		}
		if n.Key != 7 {
			t.Fatalf("Pop().Key = %d, want 7", n.Key)
		}
		if got := (*stub)(unsafe.Pointer(n)).tag; got != w {
			t.Fatalf("Pop() returned %q, want %q", got, w)
		}
	}

	if l.Len() != 0 {
		t.Fatalf("Len() after draining = %d, want 0", l.Len())
	}
	if l.Pop() != nil {
		t.Fatalf("Pop() on empty list returned non-nil")
	}
}

func TestListRemoveMiddle(t *testing.T) {
	var l List[int32]
	l.Init(0)

	a := &stub{tag: "a"}
	b := &stub{tag: "b"}
	c := &stub{tag: "c"}
	l.Insert(&a.link) // list: a
	l.Insert(&b.link) // list: b, a
	l.Insert(&c.link) // list: c, b, a

	l.Remove(&b.link)
	if l.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", l.Len())
	}
	if b.link.Linked() {
		t.Fatalf("removed node reports Linked() = true")
	}

	first := l.Pop()
	second := l.Pop()
	if first != &c.link || second != &a.link {
		t.Fatalf("unexpected pop order after removing middle node")
	}
}

func TestRemoveUnlinkedPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Remove of unlinked node did not panic")
		}
	}()
	var l List[int32]
	l.Init(0)
	n := &stub{}
	l.Remove(&n.link)
}

func TestRemoveSentinelKeyUnaffected(t *testing.T) {
	var l List[int32]
	l.Init(3)
	n := &stub{}
	l.Insert(&n.link)
	if n.link.Key != 3 {
		t.Fatalf("inserted node key = %d, want 3 (stamped from list)", n.link.Key)
	}
	l.Remove(&n.link)
	if l.head.Key != 3 {
		t.Fatalf("sentinel key after Remove = %d, want 3", l.head.Key)
	}
}
