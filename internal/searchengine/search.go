// Package searchengine implements the parallel filter+sort engine of
// spec.md §4.11: an empty query returns the store's current sorted
// arrays untouched (no allocation), otherwise the chosen sorted array is
// chunked and filtered by a pool of workers whose local results are
// concatenated in chunk order to preserve the input sort.
package searchengine

import (
	"context"
	"time"

	"github.com/caldwell-labs/fsindex/internal/entry"
	"github.com/caldwell-labs/fsindex/internal/index"
	"github.com/caldwell-labs/fsindex/internal/match"
	"github.com/caldwell-labs/fsindex/internal/parray"
	"github.com/caldwell-labs/fsindex/internal/query"
	"github.com/caldwell-labs/fsindex/internal/workerpool"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Request parametrizes one search.
type Request struct {
	Parsed    query.ParseResult
	Property  index.Property
	Direction Direction
	Defaults  match.Defaults
	Now       time.Time
}

// Result holds the files/folders arrays a search produced. For an empty
// query these are the same array references the store already holds
// (Retain()'d, not copied) — spec.md §8 property 5.
type Result struct {
	Files, Folders *parray.Array[*entry.Entry]
	// Filtered is false when Files/Folders are the
	// store's own unfiltered arrays returned via the empty-query fast
	// path, true when they were built by an actual filter pass.
	Filtered bool
}

const chunkSize = 1000

// Search evaluates req against store, returning a Result. ctx cancellation
// is honored at every chunk boundary; a cancelled search returns
// ctx.Err() and the caller must leave the view's previous snapshot
// intact (spec.md §4.11, §5).
func Search(ctx context.Context, store *index.Store, req Request, pool *workerpool.Pool) (*Result, error) {
	filesArr := store.FilesSortedBy(req.Property)
	foldersArr := store.FoldersSortedBy(req.Property)

	if isEmptyQuery(req.Parsed.Root) {
		res := &Result{Files: filesArr.Retain(), Folders: foldersArr.Retain()}
		return applyDirection(res, req.Direction), nil
	}

	matcher := match.Compile(req.Parsed.Root, req.Defaults, req.Now)

	filesOut, err := filterParallel(ctx, filesArr.Snapshot(), matcher, pool)
	if err != nil {
		return nil, err
	}
	foldersOut, err := filterParallel(ctx, foldersArr.Snapshot(), matcher, pool)
	if err != nil {
		return nil, err
	}

	fa := parray.New[*entry.Entry](len(filesOut))
	fa.AddMany(filesOut)
	da := parray.New[*entry.Entry](len(foldersOut))
	da.AddMany(foldersOut)
	res := &Result{Files: fa, Folders: da, Filtered: true}
	return applyDirection(res, req.Direction), nil
}

// isEmptyQuery reports whether root has no atoms at all — a bare
// match-everything placeholder with no kind restriction — the case that
// takes the no-scan fast path.
func isEmptyQuery(root *query.Node) bool {
	return root != nil && root.Kind == query.NodeAtom &&
		root.Atom.Kind == query.AtomMatchAll && root.Atom.KindFilter == query.FilterNone
}

// numChunks computes N = min(pool workers, ceil(items/1000)).
func numChunks(items, workers int) int {
	if items == 0 {
		return 0
	}
	n := (items + chunkSize - 1) / chunkSize
	if n > workers {
		n = workers
	}
	if n < 1 {
		n = 1
	}
	return n
}

func filterParallel(ctx context.Context, items []*entry.Entry, matcher *match.Matcher, pool *workerpool.Pool) ([]*entry.Entry, error) {
	if len(items) == 0 {
		return nil, nil
	}
	workers := 1
	var sem *semaphore.Weighted
	if pool != nil {
		workers = pool.Workers()
		sem = pool.Semaphore()
	}
	n := numChunks(len(items), workers)
	if n <= 1 {
		return filterChunk(ctx, items, matcher)
	}

	ranges := splitRanges(len(items), n)
	results := make([][]*entry.Entry, n)
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range ranges {
		i, r := i, r
		g.Go(func() error {
			if sem != nil {
				if err := sem.Acquire(gctx, 1); err != nil {
					return err
				}
				defer sem.Release(1)
			}
			out, err := filterChunk(gctx, items[r[0]:r[1]], matcher)
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var total int
	for _, r := range results {
		total += len(r)
	}
	out := make([]*entry.Entry, 0, total)
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

func filterChunk(ctx context.Context, items []*entry.Entry, matcher *match.Matcher) ([]*entry.Entry, error) {
	var out []*entry.Entry
	for i, e := range items {
		if i%256 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if ok, _ := matcher.Eval(e, false); ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func splitRanges(n, parts int) [][2]int {
	ranges := make([][2]int, 0, parts)
	base := n / parts
	rem := n % parts
	start := 0
	for i := 0; i < parts; i++ {
		size := base
		if i < rem {
			size++
		}
		ranges = append(ranges, [2]int{start, start + size})
		start += size
	}
	return ranges
}
