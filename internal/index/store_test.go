package index

import (
	"testing"

	"github.com/caldwell-labs/fsindex/internal/entry"
)

func buildTestStore() *Store {
	st := New(FlagName|FlagSize, nil)
	root := &entry.Entry{Name: "root", Kind: entry.KindFolder}
	st.Add(root)
	st.Add(&entry.Entry{Name: "b.txt", Parent: root, Kind: entry.KindFile, Size: 20})
	st.Add(&entry.Entry{Name: "a.txt", Parent: root, Kind: entry.KindFile, Size: 50})
	st.Add(&entry.Entry{Name: "c.txt", Parent: root, Kind: entry.KindFile, Size: 5})
	return st
}

func TestAddTracksCounts(t *testing.T) {
	st := buildTestStore()
	if st.NumFiles() != 3 {
		t.Fatalf("NumFiles() = %d, want 3", st.NumFiles())
	}
	if st.NumFolders() != 1 {
		t.Fatalf("NumFolders() = %d, want 1", st.NumFolders())
	}
}

func TestFilesSortedByNameIsAlwaysMaterialized(t *testing.T) {
	st := buildTestStore()
	if !st.IsMaterialized(PropName) {
		t.Fatal("PropName should always report materialized")
	}
	files := st.FilesSortedBy(PropName)
	if files.Len() != 3 {
		t.Fatalf("files.Len() = %d, want 3", files.Len())
	}
	if files.At(0).Name != "a.txt" || files.At(2).Name != "c.txt" {
		t.Fatalf("name order wrong: %q, %q, %q", files.At(0).Name, files.At(1).Name, files.At(2).Name)
	}
}

func TestFilesSortedByOtherPropertyMaterializesLazily(t *testing.T) {
	st := buildTestStore()
	if st.IsMaterialized(PropSize) {
		t.Fatal("PropSize should not be materialized before first request")
	}

	bySize := st.FilesSortedBy(PropSize)
	if !st.IsMaterialized(PropSize) {
		t.Fatal("PropSize should be materialized after FilesSortedBy")
	}
	if bySize.At(0).Name != "c.txt" || bySize.At(2).Name != "a.txt" {
		t.Fatalf("size order wrong: %q, %q, %q", bySize.At(0).Name, bySize.At(1).Name, bySize.At(2).Name)
	}

	// A later Add must also land correctly in the already-materialized
	// size array, not just the name array.
	st.Add(&entry.Entry{Name: "d.txt", Kind: entry.KindFile, Size: 1})
	bySize = st.FilesSortedBy(PropSize)
	if bySize.At(0).Name != "d.txt" {
		t.Fatalf("expected d.txt (size 1) to sort first, got %q", bySize.At(0).Name)
	}
}

func TestRemoveDeletesFromAllMaterializedArrays(t *testing.T) {
	st := buildTestStore()
	// Force PropSize to materialize before removing.
	st.FilesSortedBy(PropSize)

	files := st.FilesSortedBy(PropName)
	var victim *entry.Entry
	for i := 0; i < files.Len(); i++ {
		if files.At(i).Name == "b.txt" {
			victim = files.At(i)
		}
	}
	if victim == nil {
		t.Fatal("b.txt not found in name array")
	}

	if err := st.Remove(victim); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if st.NumFiles() != 2 {
		t.Fatalf("NumFiles() after remove = %d, want 2", st.NumFiles())
	}
	for _, e := range st.FilesSortedBy(PropName).Snapshot() {
		if e == victim {
			t.Fatal("victim still present in name array after Remove")
		}
	}
	for _, e := range st.FilesSortedBy(PropSize).Snapshot() {
		if e == victim {
			t.Fatal("victim still present in size array after Remove")
		}
	}
}

func TestRemoveUnknownEntryReturnsInvariantViolation(t *testing.T) {
	st := buildTestStore()
	stray := &entry.Entry{Name: "nowhere.txt", Kind: entry.KindFile}
	err := st.Remove(stray)
	if err == nil {
		t.Fatal("expected an error removing an entry never added to the store")
	}
	if _, ok := err.(*InvariantViolation); !ok {
		t.Fatalf("error type = %T, want *InvariantViolation", err)
	}
}

func TestPathCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewPathCache(2)
	a := &entry.Entry{Name: "a"}
	b := &entry.Entry{Name: "b"}
	cc := &entry.Entry{Name: "c"}

	c.Set("/a", a)
	c.Set("/b", b)
	// Touch /a so /b becomes the least-recently-used entry.
	if _, ok := c.Get("/a"); !ok {
		t.Fatal("expected /a to be cached")
	}
	c.Set("/c", cc)

	if _, ok := c.Get("/b"); ok {
		t.Fatal("expected /b to have been evicted")
	}
	if _, ok := c.Get("/a"); !ok {
		t.Fatal("expected /a to survive eviction")
	}
	if _, ok := c.Get("/c"); !ok {
		t.Fatal("expected /c to be cached")
	}
}

func TestPathCacheDelete(t *testing.T) {
	c := NewPathCache(4)
	e := &entry.Entry{Name: "x"}
	c.Set("/x", e)
	c.Delete("/x")
	if _, ok := c.Get("/x"); ok {
		t.Fatal("expected /x to be gone after Delete")
	}
}
