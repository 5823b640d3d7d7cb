package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/caldwell-labs/fsindex/internal/entry"
	"github.com/caldwell-labs/fsindex/internal/exclude"
	"github.com/caldwell-labs/fsindex/internal/index"
)

type testPool struct{ pool []*entry.Entry }

func (p *testPool) Alloc() *entry.Entry {
	e := &entry.Entry{}
	p.pool = append(p.pool, e)
	return e
}

func newTestWatcher(t *testing.T) (*Watcher, *index.Store, string) {
	t.Helper()
	dir := t.TempDir()
	store := index.New(index.FlagName, nil)
	root := &entry.Entry{Name: filepath.Base(dir), Kind: entry.KindFolder}
	store.Add(root)

	w, err := New(store, &testPool{}, exclude.New(), nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Add(dir, root); err != nil {
		t.Fatalf("Add: %v", err)
	}
	return w, store, dir
}

func TestOnCreatedFile(t *testing.T) {
	w, store, dir := newTestWatcher(t)
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	root, _ := w.paths.Get(filepath.Clean(dir))
	w.Dispatch(context.Background(), Event{Kind: Created, Parent: root, Name: "a.txt"})

	if store.NumFiles() != 1 {
		t.Fatalf("NumFiles = %d, want 1", store.NumFiles())
	}
	if root.Size != 5 {
		t.Fatalf("root.Size = %d, want 5", root.Size)
	}
}

func TestOnDeletedFile(t *testing.T) {
	w, store, dir := newTestWatcher(t)
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	root, _ := w.paths.Get(filepath.Clean(dir))
	w.Dispatch(context.Background(), Event{Kind: Created, Parent: root, Name: "a.txt"})

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	w.Dispatch(context.Background(), Event{Kind: Deleted, Parent: root, Name: "a.txt"})

	if store.NumFiles() != 0 {
		t.Fatalf("NumFiles = %d, want 0", store.NumFiles())
	}
	if root.Size != 0 {
		t.Fatalf("root.Size = %d, want 0 after delete", root.Size)
	}
}

func TestOnCreatedSubdirTriggersRescan(t *testing.T) {
	dir := t.TempDir()
	store := index.New(index.FlagName, nil)
	root := &entry.Entry{Name: filepath.Base(dir), Kind: entry.KindFolder}
	store.Add(root)

	var rescanned string
	rescan := func(ctx context.Context, path string, parent *entry.Entry) error {
		rescanned = path
		return nil
	}

	w, err := New(store, &testPool{}, exclude.New(), rescan, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Add(dir, root); err != nil {
		t.Fatalf("Add: %v", err)
	}

	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	w.Dispatch(context.Background(), Event{Kind: Created, Parent: root, Name: "sub"})

	if rescanned != sub {
		t.Fatalf("rescan path = %q, want %q", rescanned, sub)
	}
	if store.NumFolders() != 2 { // root + sub
		t.Fatalf("NumFolders = %d, want 2", store.NumFolders())
	}
}

func TestRemoveSubtreeDeletesDescendants(t *testing.T) {
	w, store, dir := newTestWatcher(t)
	root, _ := w.paths.Get(filepath.Clean(dir))

	sub := &entry.Entry{Name: "sub", Parent: root, Kind: entry.KindFolder}
	store.Add(sub)
	child := &entry.Entry{Name: "f.txt", Parent: sub, Kind: entry.KindFile, Size: 10}
	store.Add(child)
	entry.UpdateParentSize(child, 10)

	w.removeSubtree(sub)

	if store.NumFolders() != 1 { // only root is left
		t.Fatalf("NumFolders = %d, want 1", store.NumFolders())
	}
	if store.NumFiles() != 0 {
		t.Fatalf("NumFiles = %d, want 0", store.NumFiles())
	}
}
