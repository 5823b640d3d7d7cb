package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/caldwell-labs/fsindex/internal/index"
	"github.com/caldwell-labs/fsindex/internal/scan"
	"github.com/caldwell-labs/fsindex/internal/searchengine"
	"github.com/caldwell-labs/fsindex/internal/workerpool"
)

func writeFixtureTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.go"), []byte("package main"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "b.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}
	return root
}

// waitFor subscribes, runs fn, and blocks for an event matching kind,
// failing the test after a generous timeout instead of hanging forever
// if a work item is silently dropped.
func waitFor(t *testing.T, db *Database, kind EventKind, fn func()) Event {
	t.Helper()
	ch := make(chan Event, 8)
	unsub := db.Events().Subscribe(func(ev Event) {
		if ev.Kind == kind {
			select {
			case ch <- ev:
			default:
			}
		}
	})
	defer unsub()

	fn()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for event %v", kind)
		return Event{}
	}
}

func TestScanThenSearch(t *testing.T) {
	root := writeFixtureTree(t)
	db := New(nil, workerpool.New(2))
	defer db.Close()

	scanEv := waitFor(t, db, EventScanFinished, func() {
		db.Scan([]scan.Include{{Path: root, ID: 0}}, nil)
	})
	if scanEv.DBInfo == nil || scanEv.DBInfo.Err != nil {
		t.Fatalf("scan failed: %+v", scanEv.DBInfo)
	}
	if scanEv.DBInfo.NumFiles != 2 {
		t.Fatalf("NumFiles = %d, want 2", scanEv.DBInfo.NumFiles)
	}

	searchEv := waitFor(t, db, EventSearchFinished, func() {
		db.Search("v1", "ext:go", index.PropName, searchengine.Ascending)
	})
	if searchEv.SearchInfo == nil || searchEv.SearchInfo.NumFiles != 1 {
		t.Fatalf("search result = %+v, want 1 file", searchEv.SearchInfo)
	}
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	root := writeFixtureTree(t)
	db := New(nil, workerpool.New(2))
	defer db.Close()

	waitFor(t, db, EventScanFinished, func() {
		db.Scan([]scan.Include{{Path: root, ID: 0}}, nil)
	})

	snapPath := filepath.Join(t.TempDir(), "snap.fsdb")
	saveEv := waitFor(t, db, EventSaveFinished, func() {
		db.SaveToFile(snapPath)
	})
	if saveEv.Err != nil {
		t.Fatalf("save failed: %v", saveEv.Err)
	}

	db2 := New(nil, workerpool.New(2))
	defer db2.Close()
	loadEv := waitFor(t, db2, EventLoadFinished, func() {
		db2.LoadFromFile(snapPath)
	})
	if loadEv.DBInfo == nil || loadEv.DBInfo.Err != nil {
		t.Fatalf("load failed: %+v", loadEv.DBInfo)
	}
	if loadEv.DBInfo.NumFiles != 2 {
		t.Fatalf("loaded NumFiles = %d, want 2", loadEv.DBInfo.NumFiles)
	}
}

func TestModifySelectionToggle(t *testing.T) {
	root := writeFixtureTree(t)
	db := New(nil, workerpool.New(2))
	defer db.Close()

	waitFor(t, db, EventScanFinished, func() {
		db.Scan([]scan.Include{{Path: root, ID: 0}}, nil)
	})
	waitFor(t, db, EventSearchFinished, func() {
		db.Search("v1", "", index.PropName, searchengine.Ascending)
	})

	view := db.View("v1")
	if view == nil {
		t.Fatal("expected view v1 to exist")
	}
	n := view.Result().Files.Len() + view.Result().Folders.Len()
	if n == 0 {
		t.Fatal("expected at least one row")
	}

	db.ModifySelection("v1", SelectionToggle, 0, 0)
	// ModifySelection has no completion event; poll briefly for the
	// worker goroutine to apply it.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f, d := view.NumSelected(); f+d == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("selection toggle never applied")
}
