package kernel

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBuddy(t *testing.T) *Buddy {
	t.Helper()
	cfg := Config{Levels: 8, PageSize: 512, Pages: 600}
	mem := make([]byte, cfg.Pages*uint64(cfg.PageSize))
	b, err := NewBuddy(mem, cfg, nil)
	require.NoError(t, err)
	return b
}

func TestBuddyFacadeAllocFreeStat(t *testing.T) {
	b := newTestBuddy(t)
	before := b.Stat()

	ptr := b.AllocPages(4)
	require.NotNil(t, ptr)

	mid := b.Stat()
	assert.Less(t, mid.FreePages, before.FreePages)

	b.FreePages(ptr)
	after := b.Stat()
	assert.Equal(t, before, after)
}

func TestSlabRegistryDispatchByKind(t *testing.T) {
	b := newTestBuddy(t)
	reg := NewSlabRegistry(b, Config{PageSize: 512}, nil, KindVirtqDesc, KindVirtqUsed)

	p1 := reg.Alloc(KindVirtqDesc)
	p2 := reg.Alloc(KindVirtqUsed)
	require.NotNil(t, p1)
	require.NotNil(t, p2)

	reg.Free(KindVirtqDesc, p1)
	reg.Free(KindVirtqUsed, p2)
}

func TestSlabRegistryPanicsOnUnregisteredKind(t *testing.T) {
	b := newTestBuddy(t)
	reg := NewSlabRegistry(b, Config{PageSize: 512}, nil, KindVirtqDesc)

	assert.Panics(t, func() { reg.Alloc(KindPipeBuffer) })
}

func TestGlobalLifecycleOrdering(t *testing.T) {
	assert.Panics(t, func() { SlabAlloc(KindVirtqDesc) }, "slab facade before init")
}

func TestInitGlobalBuddyRejectsSecondCall(t *testing.T) {
	globalMu.Lock()
	globalBuddy = nil
	globalRegistry = nil
	globalMu.Unlock()

	cfg := Config{Levels: 6, PageSize: 256, Pages: 100}
	mem1 := make([]byte, cfg.Pages*uint64(cfg.PageSize))
	mem2 := make([]byte, cfg.Pages*uint64(cfg.PageSize))

	require.NoError(t, InitGlobalBuddy(mem1, cfg, nil))
	err := InitGlobalBuddy(mem2, cfg, nil)
	assert.Equal(t, errAlreadyInitialized, err)

	globalMu.Lock()
	globalBuddy = nil
	globalRegistry = nil
	globalMu.Unlock()
}

func TestCollectorExportsGauges(t *testing.T) {
	b := newTestBuddy(t)
	c := NewCollector(b)

	ch := make(chan prometheus.Metric, 64)
	c.Collect(ch)
	close(ch)

	var sawTotal, sawFree bool
	for m := range ch {
		var out dto.Metric
		require.NoError(t, m.Write(&out))
		desc := m.Desc().String()
		switch {
		case strings.Contains(desc, "mazmem_buddy_total_pages"):
			sawTotal = true
		case strings.Contains(desc, "mazmem_buddy_free_pages") && !strings.Contains(desc, "by_level"):
			sawFree = true
		}
	}
	assert.True(t, sawTotal)
	assert.True(t, sawFree)
}
