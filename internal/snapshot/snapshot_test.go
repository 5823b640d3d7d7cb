package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/caldwell-labs/fsindex/internal/entry"
	"github.com/caldwell-labs/fsindex/internal/index"
)

type poolAlloc struct{}

func (poolAlloc) Alloc() *entry.Entry { return &entry.Entry{} }

func buildFixture() *index.Store {
	store := index.New(index.FlagName|index.FlagSize|index.FlagMtime, nil)
	root := &entry.Entry{Name: "root", Kind: entry.KindFolder}
	store.Add(root)

	sub := &entry.Entry{Name: "sub", Parent: root, Kind: entry.KindFolder}
	store.Add(sub)

	a := &entry.Entry{Name: "a.txt", Parent: root, Kind: entry.KindFile, Size: 10, Mtime: 100}
	store.Add(a)
	entry.UpdateParentSize(a, 10)

	b := &entry.Entry{Name: "b.txt", Parent: sub, Kind: entry.KindFile, Size: 20, Mtime: 200}
	store.Add(b)
	entry.UpdateParentSize(b, 20)

	return store
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := buildFixture()
	path := filepath.Join(t.TempDir(), "snap.fsdb")

	saveInfo, err := Save(store, path, nil)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saveInfo.NumFolders != 2 || saveInfo.NumFiles != 2 {
		t.Fatalf("Save info = %+v, want 2 folders/2 files", saveInfo)
	}

	loaded := index.New(index.FlagName|index.FlagSize|index.FlagMtime, nil)
	loadInfo, err := Load(loaded, poolAlloc{}, path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loadInfo.NumFolders != 2 || loadInfo.NumFiles != 2 {
		t.Fatalf("Load info = %+v, want 2 folders/2 files", loadInfo)
	}
	if loaded.NumFiles() != 2 || loaded.NumFolders() != 2 {
		t.Fatalf("loaded store has %d files/%d folders, want 2/2", loaded.NumFiles(), loaded.NumFolders())
	}

	names := map[string]bool{}
	files := loaded.FilesSortedBy(index.PropName)
	for i := 0; i < files.Len(); i++ {
		names[files.At(i).Name] = true
	}
	if !names["a.txt"] || !names["b.txt"] {
		t.Fatalf("missing expected file names, got %v", names)
	}
}

func TestLoadRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.fsdb")
	if err := os.WriteFile(path, []byte("XXXX"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := index.New(index.FlagName, nil)
	_, err := Load(store, poolAlloc{}, path, nil)
	if err == nil {
		t.Fatal("expected CorruptionError for bad magic, got nil")
	}
	if _, ok := err.(*CorruptionError); !ok {
		t.Fatalf("expected *CorruptionError, got %T: %v", err, err)
	}
}
