package searchengine

import (
	"context"

	"github.com/caldwell-labs/fsindex/internal/entry"
	"github.com/caldwell-labs/fsindex/internal/index"
	"github.com/caldwell-labs/fsindex/internal/parray"
	"github.com/caldwell-labs/fsindex/internal/workerpool"
	"golang.org/x/sync/semaphore"
)

// Direction is a view's sort direction.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// Transition implements the three sort-transition cases of spec.md
// §4.11 for a view moving from its current sort order to to, given its
// current result set cur (built under from).
//
//  1. to == from: return cur unchanged.
//  2. the store already materialized `to`: if cur holds every entry
//     (an unfiltered view) return the store's to-sorted arrays directly;
//     otherwise mark cur's entries, walk the store's to-sorted array in
//     order and collect the marked ones — O(total items), no new sort.
//  3. otherwise: sort a copy of cur's own entries with the appropriate
//     comparator, parallel unless to is file-type (filesystem access
//     forces single-threaded, cached, execution).
func Transition(ctx context.Context, store *index.Store, cur *Result, from, to index.Property, dir Direction, pool *workerpool.Pool) (*Result, error) {
	if to == from {
		return applyDirection(cur, dir), nil
	}

	if store.IsMaterialized(to) {
		if !cur.Filtered {
			fa := store.FilesSortedBy(to).Retain()
			da := store.FoldersSortedBy(to).Retain()
			return applyDirection(&Result{Files: fa, Folders: da}, dir), nil
		}
		files := markWalk(cur.Files, store.FilesSortedBy(to))
		folders := markWalk(cur.Folders, store.FoldersSortedBy(to))
		fa := parray.New[*entry.Entry](len(files))
		fa.AddMany(files)
		da := parray.New[*entry.Entry](len(folders))
		da.AddMany(folders)
		return applyDirection(&Result{Files: fa, Folders: da, Filtered: true}, dir), nil
	}

	cmp := index.ComparatorFor(to)
	cmpCtx := store.CompareCtx()

	filesCopy := cloneArray(cur.Files)
	foldersCopy := cloneArray(cur.Folders)

	workers := 1
	var sem *semaphore.Weighted
	if pool != nil {
		workers = pool.Workers()
		sem = pool.Semaphore()
	}
	if to == index.PropFileType {
		// Filesystem access for content-type sniffing forces serial
		// execution so the sniffer cache stays coherent under one
		// goroutine at a time.
		filesCopy.Sort(cmp, cmpCtx, func() bool { return ctx.Err() != nil })
		foldersCopy.Sort(cmp, cmpCtx, func() bool { return ctx.Err() != nil })
	} else {
		if err := filesCopy.SortParallel(ctx, cmp, cmpCtx, workers, sem); err != nil {
			return nil, err
		}
		if err := foldersCopy.SortParallel(ctx, cmp, cmpCtx, workers, sem); err != nil {
			return nil, err
		}
	}

	return applyDirection(&Result{Files: filesCopy, Folders: foldersCopy, Filtered: cur.Filtered}, dir), nil
}

func cloneArray(a *parray.Array[*entry.Entry]) *parray.Array[*entry.Entry] {
	snap := a.Snapshot()
	out := parray.New[*entry.Entry](len(snap))
	out.AddMany(snap)
	return out
}

// markWalk sets the scratch Mark bit on every entry in view, walks full
// in order, and collects the marked entries — clearing Mark as it goes
// so the scratch bit never leaks into a later pass.
func markWalk(view, full *parray.Array[*entry.Entry]) []*entry.Entry {
	for i := 0; i < view.Len(); i++ {
		view.At(i).Mark = true
	}
	out := make([]*entry.Entry, 0, view.Len())
	for i := 0; i < full.Len(); i++ {
		e := full.At(i)
		if e.Mark {
			out = append(out, e)
			entry.ClearMark(e)
		}
	}
	return out
}

// applyDirection returns reversed copies of a result's arrays for Descending;
// Ascending is a no-op since every stored array is ascending already.
func applyDirection(r *Result, dir Direction) *Result {
	if dir == Ascending || r == nil {
		return r
	}
	return &Result{
		Files:    reversedView(r.Files),
		Folders:  reversedView(r.Folders),
		Filtered: r.Filtered,
	}
}

func reversedView(a *parray.Array[*entry.Entry]) *parray.Array[*entry.Entry] {
	snap := a.Snapshot()
	out := parray.New[*entry.Entry](len(snap))
	rev := make([]*entry.Entry, len(snap))
	for i, e := range snap {
		rev[len(snap)-1-i] = e
	}
	out.AddMany(rev)
	return out
}
