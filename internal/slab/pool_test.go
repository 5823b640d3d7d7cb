package slab

import "testing"

type record struct {
	Value int
	freed bool
}

func TestAllocZeroesAndGrowsBlocks(t *testing.T) {
	p := New[record](4, func(r *record) { r.freed = true })
	items := make([]*record, 10)
	for i := range items {
		items[i] = p.Alloc()
		items[i].Value = i
	}
	blocks, allocated, free := p.Stats()
	if blocks != 3 { // ceil(10/4)
		t.Fatalf("blocks = %d, want 3", blocks)
	}
	if allocated != 10 || free != 0 {
		t.Fatalf("allocated=%d free=%d, want 10/0", allocated, free)
	}
	for i, item := range items {
		if item.Value != i {
			t.Fatalf("item %d has Value=%d, want %d", i, item.Value, i)
		}
	}
}

func TestFreeAndReuse(t *testing.T) {
	p := New[record](4, nil)
	a := p.Alloc()
	a.Value = 42
	p.Free(a, false)

	b := p.Alloc()
	if b != a {
		t.Fatal("expected Alloc to reuse the freed slot")
	}
	if b.Value != 0 {
		t.Fatalf("reused slot should be zeroed, got Value=%d", b.Value)
	}
}

func TestFreeRunsDestructorWhenRequested(t *testing.T) {
	p := New[record](4, func(r *record) { r.freed = true })
	a := p.Alloc()
	p.Free(a, true)
	if !a.freed {
		t.Fatal("expected destructor to run on Free(ptr, true)")
	}
}

func TestCloseRunsDestructorOnLiveItemsOnlyOnce(t *testing.T) {
	calls := 0
	p := New[record](4, func(r *record) { calls++ })
	a := p.Alloc()
	p.Alloc()
	p.Free(a, false) // freed without running the destructor yet

	p.Close()
	// Only the still-live allocation should be destructed by Close; the
	// freed one was excluded so it isn't double-destructed.
	if calls != 1 {
		t.Fatalf("Close ran destructor %d times, want 1", calls)
	}
}

func TestDefaultItemsPerBlock(t *testing.T) {
	p := New[record](0, nil)
	if p.itemsPerBlock != 1024 {
		t.Fatalf("itemsPerBlock = %d, want default 1024", p.itemsPerBlock)
	}
}
