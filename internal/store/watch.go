package store

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/caldwell-labs/fsindex/internal/entry"
	"github.com/caldwell-labs/fsindex/internal/exclude"
	"github.com/caldwell-labs/fsindex/internal/index"
	"github.com/caldwell-labs/fsindex/internal/scan"
	"github.com/caldwell-labs/fsindex/internal/slab"
	"github.com/caldwell-labs/fsindex/internal/watch"
	"go.uber.org/zap"
)

// EnableWatching turns on live filesystem watching (spec.md §4.6). If a
// scan has already completed, the watcher starts immediately; otherwise
// it starts as soon as the next Scan finishes.
func (d *Database) EnableWatching() error {
	d.mu.Lock()
	d.watching = true
	st, pool, excl, roots, incs := d.store, d.pool, d.excludes, d.roots, d.includes
	d.mu.Unlock()

	if len(roots) == 0 {
		return nil
	}
	return d.startWatch(st, pool, excl, roots, incs)
}

// DisableWatching stops any running watcher and prevents it from being
// recreated on a later scan.
func (d *Database) DisableWatching() {
	d.mu.Lock()
	d.watching = false
	w, cancel := d.watcher, d.watchCancel
	d.watcher, d.watchCancel = nil, nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if w != nil {
		w.Close()
	}
}

// restartWatch tears down the previous watcher, if any, and starts a fresh
// one over the current store and roots — called after a Scan swaps the
// store while watching is enabled (spec.md §4.6: watching survives a
// rescan).
func (d *Database) restartWatch() error {
	d.mu.Lock()
	w, cancel := d.watcher, d.watchCancel
	d.watcher, d.watchCancel = nil, nil
	st, pool, excl, roots, incs := d.store, d.pool, d.excludes, d.roots, d.includes
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if w != nil {
		w.Close()
	}
	return d.startWatch(st, pool, excl, roots, incs)
}

func (d *Database) startWatch(st *index.Store, pool *slab.Pool[entry.Entry], excl *exclude.Manager, roots []*entry.Entry, incs []scan.Include) error {
	rescan := d.rescanFunc(st, pool, excl)
	w, err := watch.New(st, pool, excl, rescan, d.log)
	if err != nil {
		return fmt.Errorf("store: start watcher: %w", err)
	}

	for i, root := range roots {
		path := root.Name
		if i < len(incs) {
			path = incs[i].Path
		}
		if err := w.Add(filepath.Clean(path), root); err != nil {
			d.log.Warn("store: failed to watch root", zap.String("path", path), zap.Error(err))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.mu.Lock()
	d.watcher, d.watchCancel = w, cancel
	d.mu.Unlock()

	go w.Run(ctx)
	return nil
}

// rescanFunc builds the watch.RescanFunc that drives the synthesized
// sub-scan a Created directory (or an explicit Rescan event) needs, since
// the notify backend never reports a new directory's existing contents.
func (d *Database) rescanFunc(st *index.Store, pool *slab.Pool[entry.Entry], excl *exclude.Manager) watch.RescanFunc {
	return func(ctx context.Context, path string, parent *entry.Entry) error {
		opts := scan.DefaultOptions().WithExcludes(excl)
		scanner := scan.New(opts, st, pool, d.log)
		return scanner.ScanSubtree(ctx, path, parent)
	}
}
