package parray

import (
	"context"
	"testing"
)

func intCmp(a, b int, _ any) int { return a - b }

func TestAddAndAt(t *testing.T) {
	a := New[int](0)
	for i := 0; i < 10; i++ {
		a.Add(i)
	}
	if a.Len() != 10 {
		t.Fatalf("Len() = %d, want 10", a.Len())
	}
	for i := 0; i < 10; i++ {
		if got := a.At(i); got != i {
			t.Fatalf("At(%d) = %d, want %d", i, got, i)
		}
	}
}

func TestInsertSorted(t *testing.T) {
	a := New[int](0)
	for _, v := range []int{5, 1, 3, 2, 4} {
		a.InsertSorted(v, intCmp, nil)
	}
	snap := a.Snapshot()
	for i := 1; i < len(snap); i++ {
		if snap[i-1] > snap[i] {
			t.Fatalf("not sorted: %v", snap)
		}
	}
}

func TestRemoveTailAndMiddle(t *testing.T) {
	a := New[int](0)
	a.AddMany([]int{0, 1, 2, 3, 4})
	a.Remove(3, 2) // tail remove
	if got := a.Snapshot(); len(got) != 3 {
		t.Fatalf("after tail remove = %v, want len 3", got)
	}

	a = New[int](0)
	a.AddMany([]int{0, 1, 2, 3, 4})
	a.Remove(1, 2) // middle remove
	want := []int{0, 3, 4}
	got := a.Snapshot()
	if len(got) != len(want) {
		t.Fatalf("after middle remove = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("after middle remove = %v, want %v", got, want)
		}
	}
}

// TestStealOffByOne pins the inherited darray_steal_or_remove quirk
// documented on Steal: stealing a middle (non-tail) range of n>1 elements
// removes one fewer element from the source than it copies into dest,
// because the "available" run length for a non-tail range is computed as
// len-i-1 rather than len-i-n. See DESIGN.md's Open Question entry.
func TestStealOffByOne(t *testing.T) {
	src := New[int](0)
	src.AddMany([]int{0, 1, 2, 3, 4, 5})
	dest := New[int](0)

	// Steal 2 elements at index 1 (values 1,2); this is a middle range
	// (doesn't reach the end), so the off-by-one applies.
	src.Steal(1, 2, dest)

	if got := dest.Snapshot(); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("dest after Steal = %v, want [1 2]", got)
	}
	// The pinned bug: only 1 element (not 2) is actually removed from src.
	got := src.Snapshot()
	if len(got) != 5 {
		t.Fatalf("src after Steal has len %d, want 5 (pinned off-by-one), got %v", len(got), got)
	}
}

func TestStealTailRangeIsClean(t *testing.T) {
	src := New[int](0)
	src.AddMany([]int{0, 1, 2, 3, 4})
	dest := New[int](0)

	// A tail range (reaches the end) steals cleanly, no off-by-one.
	src.Steal(3, 2, dest)

	if got := dest.Snapshot(); len(got) != 2 || got[0] != 3 || got[1] != 4 {
		t.Fatalf("dest after tail Steal = %v, want [3 4]", got)
	}
	if got := src.Snapshot(); len(got) != 3 {
		t.Fatalf("src after tail Steal = %v, want len 3", got)
	}
}

func TestSort(t *testing.T) {
	a := New[int](0)
	vals := []int{9, 2, 7, 1, 8, 3, 0, 6, 5, 4}
	a.AddMany(vals)
	a.Sort(intCmp, nil, nil)
	got := a.Snapshot()
	for i := 1; i < len(got); i++ {
		if got[i-1] > got[i] {
			t.Fatalf("not sorted: %v", got)
		}
	}
}

func TestSortParallelMatchesSerial(t *testing.T) {
	vals := make([]int, 5000)
	for i := range vals {
		vals[i] = len(vals) - i
	}

	a := New[int](0)
	a.AddMany(vals)
	if err := a.SortParallel(context.Background(), intCmp, nil, 4, nil); err != nil {
		t.Fatalf("SortParallel: %v", err)
	}
	got := a.Snapshot()
	for i := 1; i < len(got); i++ {
		if got[i-1] > got[i] {
			t.Fatalf("SortParallel result not sorted at index %d: %v", i, got[i-1:i+1])
		}
	}
	if len(got) != len(vals) {
		t.Fatalf("SortParallel lost elements: got %d, want %d", len(got), len(vals))
	}
}

func TestBinarySearch(t *testing.T) {
	a := New[int](0)
	a.AddMany([]int{1, 3, 5, 7, 9})
	if found, idx := a.BinarySearch(5, intCmp, nil); !found || idx != 2 {
		t.Fatalf("BinarySearch(5) = (%v, %d), want (true, 2)", found, idx)
	}
	if found, idx := a.BinarySearch(4, intCmp, nil); found || idx != 2 {
		t.Fatalf("BinarySearch(4) = (%v, %d), want (false, 2)", found, idx)
	}
}
