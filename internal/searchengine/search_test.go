package searchengine

import (
	"context"
	"testing"
	"time"

	"github.com/caldwell-labs/fsindex/internal/entry"
	"github.com/caldwell-labs/fsindex/internal/index"
	"github.com/caldwell-labs/fsindex/internal/match"
	"github.com/caldwell-labs/fsindex/internal/query"
	"github.com/caldwell-labs/fsindex/internal/workerpool"
)

func buildStore() *index.Store {
	st := index.New(index.FlagName|index.FlagSize|index.FlagMtime, nil)
	root := &entry.Entry{Name: "root", Kind: entry.KindFolder}
	st.Add(root)
	st.Add(&entry.Entry{Name: "a.go", Parent: root, Kind: entry.KindFile, Size: 100})
	st.Add(&entry.Entry{Name: "b.txt", Parent: root, Kind: entry.KindFile, Size: 10})
	st.Add(&entry.Entry{Name: "c.go", Parent: root, Kind: entry.KindFile, Size: 5000})
	return st
}

func TestSearchEmptyQueryReturnsStoreArraysUnfiltered(t *testing.T) {
	st := buildStore()
	pool := workerpool.New(2)
	req := Request{Parsed: query.Parse(""), Property: index.PropName, Direction: Ascending, Now: time.Now()}

	res, err := Search(context.Background(), st, req, pool)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Filtered {
		t.Fatal("empty query result should not be marked Filtered")
	}
	if res.Files.Len() != 3 {
		t.Fatalf("Files.Len() = %d, want 3", res.Files.Len())
	}
}

func TestSearchFiltersByExtension(t *testing.T) {
	st := buildStore()
	pool := workerpool.New(2)
	req := Request{
		Parsed:    query.Parse("ext:go"),
		Property:  index.PropName,
		Direction: Ascending,
		Now:       time.Now(),
		Defaults:  match.Defaults{},
	}

	res, err := Search(context.Background(), st, req, pool)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !res.Filtered {
		t.Fatal("ext:go search should be marked Filtered")
	}
	if res.Files.Len() != 2 {
		t.Fatalf("Files.Len() = %d, want 2 (.go files)", res.Files.Len())
	}
}

func TestSearchHonorsDirection(t *testing.T) {
	st := buildStore()
	pool := workerpool.New(2)
	req := Request{Parsed: query.Parse(""), Property: index.PropName, Direction: Descending, Now: time.Now()}

	res, err := Search(context.Background(), st, req, pool)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Files.Len() < 2 {
		t.Fatal("expected at least 2 files")
	}
	first := res.Files.At(0).Name
	last := res.Files.At(res.Files.Len() - 1).Name
	if first < last {
		t.Fatalf("descending order not applied: first=%q last=%q", first, last)
	}
}

func TestTransitionNoOpWhenSamePropertyAndDirection(t *testing.T) {
	st := buildStore()
	pool := workerpool.New(2)
	req := Request{Parsed: query.Parse(""), Property: index.PropName, Direction: Ascending, Now: time.Now()}
	cur, err := Search(context.Background(), st, req, pool)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	got, err := Transition(context.Background(), st, cur, index.PropName, index.PropName, Ascending, pool)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if got != cur {
		t.Fatal("Transition(from==to) should return cur unchanged")
	}
}

func TestTransitionToMaterializedProperty(t *testing.T) {
	st := buildStore()
	pool := workerpool.New(2)
	req := Request{Parsed: query.Parse(""), Property: index.PropName, Direction: Ascending, Now: time.Now()}
	cur, err := Search(context.Background(), st, req, pool)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	got, err := Transition(context.Background(), st, cur, index.PropName, index.PropSize, Ascending, pool)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	for i := 1; i < got.Files.Len(); i++ {
		if got.Files.At(i-1).Size > got.Files.At(i).Size {
			t.Fatalf("Transition result not sorted by size: %+v then %+v", got.Files.At(i-1), got.Files.At(i))
		}
	}
}
