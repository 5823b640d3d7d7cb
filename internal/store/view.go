package store

import (
	"sync"

	"github.com/caldwell-labs/fsindex/internal/entry"
	"github.com/caldwell-labs/fsindex/internal/index"
	"github.com/caldwell-labs/fsindex/internal/query"
	"github.com/caldwell-labs/fsindex/internal/searchengine"
)

// SelectionOp is a ModifySelection work item's operation.
type SelectionOp int

const (
	SelectionSet SelectionOp = iota
	SelectionAdd
	SelectionRemove
	SelectionToggle
	SelectionClear
)

// View is a named presentation of the store: its own query, sort order,
// result snapshot, and selection (spec.md §3 "View").
type View struct {
	ID string

	mu            sync.Mutex
	queryText     string
	parsed        query.ParseResult
	sortProperty  index.Property
	sortDirection searchengine.Direction
	result        *searchengine.Result
	selection     map[*entry.Entry]struct{}
}

func newView(id string) *View {
	return &View{
		ID:        id,
		selection: make(map[*entry.Entry]struct{}),
		parsed:    query.Parse(""),
	}
}

// Selection returns a snapshot slice of the view's currently selected
// entries.
func (v *View) Selection() []*entry.Entry {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]*entry.Entry, 0, len(v.selection))
	for e := range v.selection {
		out = append(out, e)
	}
	return out
}

// NumSelected splits the selection count by kind.
func (v *View) NumSelected() (files, folders int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for e := range v.selection {
		if e.Kind == entry.KindFolder {
			folders++
		} else {
			files++
		}
	}
	return
}

// Result returns the view's current result snapshot (nil before the
// first Search/Sort completes).
func (v *View) Result() *searchengine.Result {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.result
}

// rowEntry resolves a combined row index (folders presented before
// files, matching a conventional file-manager listing) to the entry at
// that row, or nil if idx is out of range.
func (v *View) rowEntry(idx int) *entry.Entry {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.rowEntryLocked(idx)
}

func (v *View) rowEntryLocked(idx int) *entry.Entry {
	r := v.result
	if r == nil || idx < 0 {
		return nil
	}
	if idx < r.Folders.Len() {
		return r.Folders.At(idx)
	}
	idx -= r.Folders.Len()
	if idx < r.Files.Len() {
		return r.Files.At(idx)
	}
	return nil
}

func (v *View) applySelection(op SelectionOp, idx1, idx2 int) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if op == SelectionClear {
		v.selection = make(map[*entry.Entry]struct{})
		return
	}

	lo, hi := idx1, idx2
	if hi < lo {
		lo, hi = hi, lo
	}
	for i := lo; i <= hi; i++ {
		e := v.rowEntryLocked(i)
		if e == nil {
			continue
		}
		switch op {
		case SelectionSet:
			if i == lo {
				v.selection = make(map[*entry.Entry]struct{})
			}
			v.selection[e] = struct{}{}
		case SelectionAdd:
			v.selection[e] = struct{}{}
		case SelectionRemove:
			delete(v.selection, e)
		case SelectionToggle:
			if _, ok := v.selection[e]; ok {
				delete(v.selection, e)
			} else {
				v.selection[e] = struct{}{}
			}
		}
	}
}

// migrate re-selects, in newStore, the entry at the same (name, parent
// path) as each currently selected entry — spec.md §4.11 selection
// migration, run after a rescan replaces the store.
func (v *View) migrate(newStore *index.Store) {
	v.mu.Lock()
	old := v.selection
	v.mu.Unlock()
	if len(old) == 0 {
		return
	}

	next := make(map[*entry.Entry]struct{}, len(old))
	filesByPath := pathIndex(newStore.FilesSortedBy(index.PropPath))
	foldersByPath := pathIndex(newStore.FoldersSortedBy(index.PropPath))
	for e := range old {
		p := entry.Path(e)
		table := filesByPath
		if e.Kind == entry.KindFolder {
			table = foldersByPath
		}
		if match, ok := table[p]; ok {
			next[match] = struct{}{}
		}
	}

	v.mu.Lock()
	v.selection = next
	v.mu.Unlock()
}

func pathIndex(arr interface {
	Len() int
	At(int) *entry.Entry
}) map[string]*entry.Entry {
	out := make(map[string]*entry.Entry, arr.Len())
	for i := 0; i < arr.Len(); i++ {
		e := arr.At(i)
		out[entry.Path(e)] = e
	}
	return out
}
