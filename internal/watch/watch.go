// Package watch translates a directory-change event stream into entry
// mutations against the index store, per spec.md §4.6. The translation
// from the host OS's notify API (fsnotify here) into the spec's
// {Created,Deleted,MovedFrom,MovedTo,Attrib,CloseWrite,DeleteSelf,
// MoveSelf,Unmount,Rescan} enum is this package's job; downstream of that
// translation the event-to-mutation mapping matches the spec exactly.
package watch

import (
	"context"
	"os"
	"path/filepath"

	"github.com/caldwell-labs/fsindex/internal/entry"
	"github.com/caldwell-labs/fsindex/internal/exclude"
	"github.com/caldwell-labs/fsindex/internal/index"
	"github.com/caldwell-labs/fsindex/internal/parray"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// indexArray is the concrete sorted-array type every index.Store
// accessor returns.
type indexArray = parray.Array[*entry.Entry]

// Kind is the spec's abstract event kind, independent of the host notify
// API's bitmask.
type Kind int

const (
	Created Kind = iota
	Deleted
	MovedFrom
	MovedTo
	Attrib
	CloseWrite
	DeleteSelf
	MoveSelf
	Unmount
	Rescan
)

// Event is one translated filesystem-change notification.
type Event struct {
	Kind   Kind
	Parent *entry.Entry
	Name   string
	IsDir  bool
}

// RescanFunc performs a recursive sub-scan of path, attaching new entries
// under parent. Supplied by the caller (internal/store wires this to
// internal/scan) so this package stays free of a direct scan dependency.
type RescanFunc func(ctx context.Context, path string, parent *entry.Entry) error

// entryPool is the minimal surface watch needs from the *slab.Pool[entry.Entry]
// that entry.NewPool returns — kept as
// an interface so tests can substitute a plain allocator, matching the
// scan package's own entryPool seam.
type entryPool interface {
	Alloc() *entry.Entry
}

// Watcher consumes fsnotify events for a set of watched roots and mutates
// an index.Store accordingly.
type Watcher struct {
	fsw      *fsnotify.Watcher
	store    *index.Store
	pool     entryPool
	excludes *exclude.Manager
	paths    *index.PathCache
	rescan   RescanFunc
	log      *zap.Logger
}

// New wraps an fsnotify.Watcher. pool allocates new entries; rescan
// performs the recursive sub-scan required on Created for directories and
// on Rescan events.
func New(store *index.Store, pool entryPool, excludes *exclude.Manager, rescan RescanFunc, log *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		fsw:      fsw,
		store:    store,
		pool:     pool,
		excludes: excludes,
		paths:    index.NewPathCache(8192),
		rescan:   rescan,
		log:      log,
	}, nil
}

// Add registers path (and its known root entry) for watching, recording it
// in the path cache so later events rooted at this path can be resolved
// back to the owning entry.
func (w *Watcher) Add(path string, root *entry.Entry) error {
	w.paths.Set(filepath.Clean(path), root)
	return w.fsw.Add(path)
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run translates fsnotify events into store mutations until ctx is done
// or the underlying watcher's channels close.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleRaw(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch: fsnotify error", zap.Error(err))
		}
	}
}

// handleRaw maps an fsnotify.Event's Op bitmask onto the spec's Kind enum
// and dispatches to the matching mutation. fsnotify does not distinguish
// MovedFrom/MovedTo by itself (both arrive as Rename on the source side
// and Create on the destination side, possibly in separate watched
// directories) — a Rename is treated as MovedFrom (or DeleteSelf/MoveSelf
// when it names a watched root itself), and a Create is always treated as
// a fresh Created. A true cross-directory move therefore surfaces as a
// delete plus a create rather than a dedicated move pair; this is the
// spec's documented degrade-to-simpler-events fallback for cases the
// notify backend cannot disambiguate (§4.6).
func (w *Watcher) handleRaw(ctx context.Context, ev fsnotify.Event) {
	dir, name := filepath.Split(ev.Name)
	dir = filepath.Clean(dir)

	parent, ok := w.paths.Get(dir)
	if !ok {
		if root, rok := w.paths.Get(filepath.Clean(ev.Name)); rok {
			w.handleRootEvent(ev, root)
		}
		return
	}

	info, statErr := os.Lstat(ev.Name)
	isDir := statErr == nil && info.IsDir()

	switch {
	case ev.Op&fsnotify.Create != 0:
		w.Dispatch(ctx, Event{Kind: Created, Parent: parent, Name: name, IsDir: isDir})
	case ev.Op&fsnotify.Remove != 0:
		w.Dispatch(ctx, Event{Kind: Deleted, Parent: parent, Name: name, IsDir: isDir})
	case ev.Op&fsnotify.Rename != 0:
		w.Dispatch(ctx, Event{Kind: MovedFrom, Parent: parent, Name: name, IsDir: isDir})
	case ev.Op&fsnotify.Write != 0:
		w.Dispatch(ctx, Event{Kind: CloseWrite, Parent: parent, Name: name, IsDir: isDir})
	case ev.Op&fsnotify.Chmod != 0:
		w.Dispatch(ctx, Event{Kind: Attrib, Parent: parent, Name: name, IsDir: isDir})
	}
}

func (w *Watcher) handleRootEvent(ev fsnotify.Event, root *entry.Entry) {
	switch {
	case ev.Op&fsnotify.Remove != 0:
		w.Dispatch(context.Background(), Event{Kind: DeleteSelf, Parent: root.Parent, Name: root.Name, IsDir: true})
	case ev.Op&fsnotify.Rename != 0:
		w.Dispatch(context.Background(), Event{Kind: MoveSelf, Parent: root.Parent, Name: root.Name, IsDir: true})
	}
}

// Dispatch applies a single translated event to the store. Exported so
// callers with their own event source (tests, or a transport other than
// fsnotify) can drive the same mutation logic directly.
func (w *Watcher) Dispatch(ctx context.Context, ev Event) {
	switch ev.Kind {
	case Created, MovedTo:
		w.onCreated(ctx, ev)
	case Deleted, MovedFrom, DeleteSelf:
		w.onDeleted(ev)
	case Attrib, CloseWrite:
		w.onAttrib(ev)
	case MoveSelf, Unmount:
		w.onDeleted(Event{Parent: ev.Parent, Name: ev.Name, IsDir: true})
	case Rescan:
		w.onRescan(ctx, ev)
	}
}

func (w *Watcher) onCreated(ctx context.Context, ev Event) {
	path := filepath.Join(entry.Path(ev.Parent), ev.Name)
	info, err := os.Lstat(path)
	if err != nil {
		return // already gone; nothing to index
	}
	if w.excludes != nil && w.excludes.Excludes(path, ev.Name, info.IsDir()) {
		return
	}
	if existing := w.lookupChild(ev.Parent, ev.Name); existing != nil {
		return // duplicate notification, already indexed
	}

	e := w.pool.Alloc()
	e.Name = ev.Name
	e.Parent = ev.Parent
	e.Mtime = info.ModTime().Unix()
	e.DBIndex = ev.Parent.DBIndex
	if info.IsDir() {
		e.Kind = entry.KindFolder
		ev.Parent.ChildFolders++
	} else {
		e.Kind = entry.KindFile
		e.Size = uint64(info.Size())
		ev.Parent.ChildFiles++
		entry.UpdateParentSize(e, int64(e.Size))
	}
	w.store.Add(e)
	w.paths.Set(filepath.Clean(path), e)

	// The notify API does not deliver interior contents of a newly
	// created directory, so a recursive sub-scan is synthesized.
	if info.IsDir() && w.rescan != nil {
		if err := w.rescan(ctx, path, e); err != nil {
			w.log.Warn("watch: sub-scan failed", zap.String("path", path), zap.Error(err))
		}
	}
}

func (w *Watcher) onDeleted(ev Event) {
	target := w.lookupChild(ev.Parent, ev.Name)
	if target == nil {
		return
	}
	path := filepath.Join(entry.Path(ev.Parent), ev.Name)

	if target.Kind == entry.KindFolder {
		w.removeSubtree(target)
		ev.Parent.ChildFolders--
	} else {
		entry.UpdateParentSize(target, -int64(target.Size))
		ev.Parent.ChildFiles--
		if err := w.store.Remove(target); err != nil {
			w.log.Error("watch: invariant violation removing file", zap.String("path", path), zap.Error(err))
		}
	}
	w.paths.Delete(path)
}

// removeSubtree removes folder and every entry beneath it. The store
// exposes no direct parent->children index, so descendants are collected
// by a single linear pass over the name-sorted arrays; this mirrors the
// teacher's straightforward collect-then-delete style rather than the
// original C implementation's packed-array contiguous-range steal, which
// depends on a path-prefix ordering this store does not maintain as
// primary storage.
func (w *Watcher) removeSubtree(folder *entry.Entry) {
	var descendants []*entry.Entry
	collectDescendants(w.store.FoldersSortedBy(index.PropName), folder, &descendants)
	collectDescendants(w.store.FilesSortedBy(index.PropName), folder, &descendants)

	for _, d := range descendants {
		w.paths.Delete(entry.Path(d))
		if err := w.store.Remove(d); err != nil {
			w.log.Error("watch: invariant violation removing descendant", zap.String("path", entry.Path(d)), zap.Error(err))
		}
	}
	if err := w.store.Remove(folder); err != nil {
		w.log.Error("watch: invariant violation removing folder", zap.String("path", entry.Path(folder)), zap.Error(err))
	}
}

func collectDescendants(arr *indexArray, root *entry.Entry, out *[]*entry.Entry) {
	for i := 0; i < arr.Len(); i++ {
		e := arr.At(i)
		if isDescendant(e, root) {
			*out = append(*out, e)
		}
	}
}

func isDescendant(e, root *entry.Entry) bool {
	for p := e.Parent; p != nil; p = p.Parent {
		if p == root {
			return true
		}
	}
	return false
}

func (w *Watcher) onAttrib(ev Event) {
	target := w.lookupChild(ev.Parent, ev.Name)
	if target == nil {
		return
	}
	path := filepath.Join(entry.Path(ev.Parent), ev.Name)
	info, err := os.Lstat(path)
	if err != nil {
		return
	}

	oldSize := int64(target.Size)
	target.Mtime = info.ModTime().Unix()
	if target.Kind == entry.KindFile {
		target.Size = uint64(info.Size())
		entry.UpdateParentSize(target, int64(target.Size)-oldSize)
	}
	// Reposition in whatever orderings have already been materialized
	// (size/mtime), matching the spec's "reposition in sorted arrays if
	// they exist" rule. Remove+Add touches every already-materialized
	// lazy array, not just name, so this is sufficient.
	if err := w.store.Remove(target); err == nil {
		w.store.Add(target)
	}
}

func (w *Watcher) onRescan(ctx context.Context, ev Event) {
	if target := w.lookupChild(ev.Parent, ev.Name); target != nil {
		w.removeSubtree(target)
	}
	path := filepath.Join(entry.Path(ev.Parent), ev.Name)
	if w.rescan != nil {
		w.rescan(ctx, path, ev.Parent)
	}
}

func (w *Watcher) lookupChild(parent *entry.Entry, name string) *entry.Entry {
	path := filepath.Join(entry.Path(parent), name)
	if e, ok := w.paths.Get(path); ok {
		return e
	}

	if e := findChild(w.store.FilesSortedBy(index.PropName), parent, name); e != nil {
		return e
	}
	return findChild(w.store.FoldersSortedBy(index.PropName), parent, name)
}

func findChild(arr *indexArray, parent *entry.Entry, name string) *entry.Entry {
	for i := 0; i < arr.Len(); i++ {
		e := arr.At(i)
		if e.Parent == parent && e.Name == name {
			return e
		}
	}
	return nil
}
