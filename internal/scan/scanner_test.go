package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/caldwell-labs/fsindex/internal/entry"
	"github.com/caldwell-labs/fsindex/internal/index"
)

func writeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "sub", "b.txt"), []byte("world!"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, ".hidden"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestRunIndexesTreeAndSkipsHidden(t *testing.T) {
	root := writeTree(t)
	st := index.New(index.FlagName|index.FlagSize, nil)
	pool := entry.NewPool()

	opts := DefaultOptions().WithWorkers(2)
	opts.Excludes.SetExcludeHidden(true)
	s := New(opts, st, pool, nil)

	res, err := s.Run(context.Background(), []Include{{Path: root, ID: 0}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// root folder + sub folder = 2 folders; a.txt + b.txt = 2 files
	// (.hidden is excluded).
	if res.Folders != 2 {
		t.Fatalf("Folders = %d, want 2", res.Folders)
	}
	if res.Files != 2 {
		t.Fatalf("Files = %d, want 2", res.Files)
	}
}

func TestRunPropagatesFileSizeToAncestors(t *testing.T) {
	root := writeTree(t)
	st := index.New(index.FlagName|index.FlagSize, nil)
	pool := entry.NewPool()

	s := New(DefaultOptions().WithWorkers(1), st, pool, nil)
	res, err := s.Run(context.Background(), []Include{{Path: root, ID: 0}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Roots) != 1 {
		t.Fatalf("Roots = %d, want 1", len(res.Roots))
	}
	// 5 ("hello") + 6 ("world!") + 1 (".hidden", not excluded by the
	// default options) = 12 bytes total under the root.
	if res.Roots[0].Size != 12 {
		t.Fatalf("root.Size = %d, want 12", res.Roots[0].Size)
	}
}

func TestScanSubtreeAttachesUnderExistingParent(t *testing.T) {
	root := writeTree(t)
	st := index.New(index.FlagName|index.FlagSize, nil)
	pool := entry.NewPool()

	parent := pool.Alloc()
	parent.Name = filepath.Base(root)
	parent.Kind = entry.KindFolder
	st.Add(parent)

	s := New(DefaultOptions().WithWorkers(1), st, pool, nil)
	if err := s.ScanSubtree(context.Background(), root, parent); err != nil {
		t.Fatalf("ScanSubtree: %v", err)
	}

	if st.NumFolders() != 2 { // parent + sub
		t.Fatalf("NumFolders() = %d, want 2", st.NumFolders())
	}
	if st.NumFiles() != 3 { // a.txt, .hidden, sub/b.txt (no exclude manager set to hide dotfiles here)
		t.Fatalf("NumFiles() = %d, want 3", st.NumFiles())
	}
}

func TestScanSubtreeRespectsContextCancellation(t *testing.T) {
	root := writeTree(t)
	st := index.New(index.FlagName, nil)
	pool := entry.NewPool()
	parent := pool.Alloc()
	parent.Name = filepath.Base(root)
	parent.Kind = entry.KindFolder
	st.Add(parent)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(DefaultOptions().WithWorkers(1), st, pool, nil)
	err := s.ScanSubtree(ctx, root, parent)
	if err == nil {
		t.Fatal("expected a context-cancellation error")
	}
}
