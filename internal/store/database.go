package store

import (
	"context"
	"sync"
	"time"

	"github.com/caldwell-labs/fsindex/internal/entry"
	"github.com/caldwell-labs/fsindex/internal/exclude"
	"github.com/caldwell-labs/fsindex/internal/index"
	"github.com/caldwell-labs/fsindex/internal/query"
	"github.com/caldwell-labs/fsindex/internal/scan"
	"github.com/caldwell-labs/fsindex/internal/searchengine"
	"github.com/caldwell-labs/fsindex/internal/slab"
	"github.com/caldwell-labs/fsindex/internal/snapshot"
	"github.com/caldwell-labs/fsindex/internal/watch"
	"github.com/caldwell-labs/fsindex/internal/workerpool"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// workKind enumerates the work item kinds of spec.md §4.12.
type workKind int

const (
	workLoad workKind = iota
	workSave
	workScan
	workRescan
	workSearch
	workSort
	workItemInfo
	workModifySelection
)

// workItem is one unit of database work. Kind+ViewID identifies its
// supersede group: a newly enqueued item of the same kind for the same
// view cancels and drops any earlier queued peer (spec.md §4.12).
type workItem struct {
	kind   workKind
	viewID string

	// Load/Save
	path string

	// Scan
	includes []scan.Include

	// Search/Sort
	queryText string
	property  index.Property
	direction searchengine.Direction

	// GetItemInfo
	rowIdx int
	mask   FieldMask

	// ModifySelection
	selOp      SelectionOp
	idx1, idx2 int

	ctx     context.Context
	cancel  context.CancelFunc
	dropped bool
}

func (w *workItem) key() pendingKey { return pendingKey{w.kind, w.viewID} }

type pendingKey struct {
	kind   workKind
	viewID string
}

// Database owns one index store, one worker goroutine draining workCh,
// and a Bus delivering completion events on its own notifier goroutine
// (spec.md §4.12).
type Database struct {
	log *zap.Logger
	bus *Bus
	cpu *workerpool.Pool

	mu       sync.Mutex // guards store, views, includes/excludes — held for a work item's duration (spec.md §5)
	store    *index.Store
	pool     *slab.Pool[entry.Entry]
	views    map[string]*View
	includes []scan.Include
	excludes *exclude.Manager
	roots    []*entry.Entry
	genID    string

	watching    bool
	watcher     *watch.Watcher
	watchCancel context.CancelFunc

	workCh    chan *workItem
	pendingMu sync.Mutex
	pending   map[pendingKey]*workItem

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates a Database with an empty store and starts its worker and
// notifier goroutines.
func New(log *zap.Logger, cpu *workerpool.Pool) *Database {
	if log == nil {
		log = zap.NewNop()
	}
	if cpu == nil {
		cpu = workerpool.New(0)
	}
	d := &Database{
		log:     log,
		bus:     NewBus(),
		cpu:     cpu,
		store:   index.New(0, log),
		pool:    entry.NewPool(),
		views:   make(map[string]*View),
		excludes: exclude.New(),
		workCh:  make(chan *workItem, 256),
		pending: make(map[pendingKey]*workItem),
		stopCh:  make(chan struct{}),
	}
	go d.run()
	return d
}

// Events returns the database's event bus for subscription.
func (d *Database) Events() *Bus { return d.bus }

// Store returns the database's current index store. Callers that need a
// stable view across a concurrent scan should prefer a View's Result
// instead; this accessor exists for read-only inspection.
func (d *Database) Store() *index.Store {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.store
}

// RegisterView creates (or returns the existing) view with the given id.
func (d *Database) RegisterView(id string) *View {
	d.mu.Lock()
	defer d.mu.Unlock()
	if v, ok := d.views[id]; ok {
		return v
	}
	v := newView(id)
	d.views[id] = v
	return v
}

// View returns a registered view, or nil.
func (d *Database) View(id string) *View {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.views[id]
}

// Close stops the worker and notifier goroutines. Safe to call once.
func (d *Database) Close() {
	d.stopOnce.Do(func() {
		close(d.stopCh)
		close(d.workCh)
		if d.watchCancel != nil {
			d.watchCancel()
		}
		if d.watcher != nil {
			d.watcher.Close()
		}
		d.bus.Close()
	})
}

// enqueue supersedes any earlier pending item of the same kind+view and
// submits item, returning its cancel func.
func (d *Database) enqueue(item *workItem) context.CancelFunc {
	ctx, cancel := context.WithCancel(context.Background())
	item.ctx, item.cancel = ctx, cancel

	d.pendingMu.Lock()
	if prior, ok := d.pending[item.key()]; ok {
		prior.dropped = true
		prior.cancel()
	}
	d.pending[item.key()] = item
	d.pendingMu.Unlock()

	select {
	case d.workCh <- item:
	case <-d.stopCh:
	}
	return cancel
}

func (d *Database) run() {
	for item := range d.workCh {
		d.pendingMu.Lock()
		if d.pending[item.key()] == item {
			delete(d.pending, item.key())
		}
		dropped := item.dropped
		d.pendingMu.Unlock()
		if dropped {
			continue
		}
		d.execute(item)
	}
}

func (d *Database) execute(item *workItem) {
	switch item.kind {
	case workLoad:
		d.doLoad(item)
	case workSave:
		d.doSave(item)
	case workScan:
		d.doScan(item)
	case workRescan:
		d.mu.Lock()
		item.includes = d.includes
		d.mu.Unlock()
		d.doScan(item)
	case workSearch:
		d.doSearch(item)
	case workSort:
		d.doSort(item)
	case workItemInfo:
		d.doItemInfo(item)
	case workModifySelection:
		d.doModifySelection(item)
	}
}

// LoadFromFile enqueues a LoadFromFile work item.
func (d *Database) LoadFromFile(path string) {
	d.enqueue(&workItem{kind: workLoad, path: path})
}

// SaveToFile enqueues a SaveToFile work item.
func (d *Database) SaveToFile(path string) {
	d.enqueue(&workItem{kind: workSave, path: path})
}

// Scan enqueues a Scan work item over includes, using excludes for the
// run and remembering both for a later Rescan.
func (d *Database) Scan(includes []scan.Include, excludes *exclude.Manager) {
	d.mu.Lock()
	d.includes = includes
	if excludes != nil {
		d.excludes = excludes
	}
	d.mu.Unlock()
	d.enqueue(&workItem{kind: workScan, includes: includes})
}

// Rescan re-runs the scan with the includes/excludes remembered from the
// last Scan call.
func (d *Database) Rescan() {
	d.enqueue(&workItem{kind: workRescan})
}

// Search enqueues a Search work item for viewID.
func (d *Database) Search(viewID, queryText string, prop index.Property, dir searchengine.Direction) {
	d.RegisterView(viewID)
	d.bus.Publish(Event{Kind: EventSearchStarted, ViewID: viewID})
	d.enqueue(&workItem{kind: workSearch, viewID: viewID, queryText: queryText, property: prop, direction: dir})
}

// Sort enqueues a Sort work item for viewID.
func (d *Database) Sort(viewID string, prop index.Property, dir searchengine.Direction) {
	d.bus.Publish(Event{Kind: EventSortStarted, ViewID: viewID})
	d.enqueue(&workItem{kind: workSort, viewID: viewID, property: prop, direction: dir})
}

// GetItemInfo enqueues a GetItemInfo work item for viewID.
func (d *Database) GetItemInfo(viewID string, rowIdx int, mask FieldMask) {
	d.enqueue(&workItem{kind: workItemInfo, viewID: viewID, rowIdx: rowIdx, mask: mask})
}

// ModifySelection enqueues a ModifySelection work item for viewID.
func (d *Database) ModifySelection(viewID string, op SelectionOp, idx1, idx2 int) {
	d.enqueue(&workItem{kind: workModifySelection, viewID: viewID, selOp: op, idx1: idx1, idx2: idx2})
}

func (d *Database) doLoad(item *workItem) {
	d.bus.Publish(Event{Kind: EventLoadStarted})
	d.mu.Lock()
	newStore := index.New(0, d.log)
	newPool := entry.NewPool()
	info, err := snapshot.Load(newStore, newPool, item.path, d.log)
	if err == nil {
		d.swapStoreLocked(newStore, newPool)
	}
	d.mu.Unlock()

	d.bus.Publish(Event{Kind: EventLoadFinished, DBInfo: &DBInfo{
		NumFiles: info.NumFiles, NumFolders: info.NumFolders, GenerationID: d.genID, Err: err,
	}})
}

func (d *Database) doSave(item *workItem) {
	d.bus.Publish(Event{Kind: EventSaveStarted})
	d.mu.Lock()
	store := d.store
	d.mu.Unlock()
	_, err := snapshot.Save(store, item.path, d.log)
	d.bus.Publish(Event{Kind: EventSaveFinished, Err: err})
}

func (d *Database) doScan(item *workItem) {
	d.bus.Publish(Event{Kind: EventScanStarted})

	// "the worker enforces a strict serial order between a Scan and any
	// subsequent Search: all prior searches against the old store are
	// cancelled before the scan begins" (spec.md §5).
	d.cancelPending(workSearch, "")
	d.cancelPending(workSort, "")

	opts := scan.DefaultOptions().WithExcludes(d.excludesSnapshot())
	newStore := index.New(0, d.log)
	newPool := entry.NewPool()
	scanner := scan.New(opts, newStore, newPool, d.log)

	res, err := scanner.Run(item.ctx, item.includes)
	if err != nil {
		d.bus.Publish(Event{Kind: EventScanFinished, DBInfo: &DBInfo{Err: err}})
		return
	}

	d.mu.Lock()
	d.swapStoreLocked(newStore, newPool)
	d.roots = res.Roots
	wasWatching := d.watching
	d.mu.Unlock()

	for _, v := range d.viewsSnapshot() {
		v.migrate(newStore)
	}

	if wasWatching {
		if err := d.restartWatch(); err != nil {
			d.log.Warn("store: failed to restart watcher after scan", zap.Error(err))
		}
	}

	d.bus.Publish(Event{Kind: EventScanFinished, DBInfo: &DBInfo{
		NumFiles: res.Files, NumFolders: res.Folders, GenerationID: d.genID,
	}})
}

func (d *Database) swapStoreLocked(s *index.Store, p *slab.Pool[entry.Entry]) {
	d.store = s
	d.pool = p
	d.genID = uuid.NewString()
}

func (d *Database) excludesSnapshot() *exclude.Manager {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.excludes
}

func (d *Database) viewsSnapshot() []*View {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*View, 0, len(d.views))
	for _, v := range d.views {
		out = append(out, v)
	}
	return out
}

func (d *Database) cancelPending(kind workKind, viewID string) {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()
	if viewID != "" {
		if prior, ok := d.pending[pendingKey{kind, viewID}]; ok {
			prior.dropped = true
			prior.cancel()
		}
		return
	}
	for k, prior := range d.pending {
		if k.kind == kind {
			prior.dropped = true
			prior.cancel()
		}
	}
}

func (d *Database) doSearch(item *workItem) {
	view := d.RegisterView(item.viewID)
	parsed := query.Parse(item.queryText)

	d.mu.Lock()
	st := d.store
	d.mu.Unlock()

	res, err := searchengine.Search(item.ctx, st, searchengine.Request{
		Parsed:    parsed,
		Property:  item.property,
		Direction: item.direction,
		Now:       time.Now(),
	}, d.cpu)
	if err != nil {
		return // cancelled: leave the view's previous snapshot intact (§5)
	}

	view.mu.Lock()
	view.queryText = item.queryText
	view.parsed = parsed
	view.sortProperty = item.property
	view.sortDirection = item.direction
	view.result = res
	view.mu.Unlock()

	nf, nfo := view.NumSelected()
	d.bus.Publish(Event{Kind: EventSearchFinished, ViewID: item.viewID, SearchInfo: &SearchInfo{
		Query: item.queryText, NumFiles: res.Files.Len(), NumFolders: res.Folders.Len(),
		NumSelectedFiles: nf, NumSelectedFolders: nfo,
		SortOrder: item.property, SortDirection: item.direction,
	}})
}

func (d *Database) doSort(item *workItem) {
	view := d.View(item.viewID)
	if view == nil {
		return
	}
	view.mu.Lock()
	cur := view.result
	from := view.sortProperty
	view.mu.Unlock()
	if cur == nil {
		return
	}

	d.mu.Lock()
	st := d.store
	d.mu.Unlock()

	res, err := searchengine.Transition(item.ctx, st, cur, from, item.property, item.direction, d.cpu)
	if err != nil {
		return
	}

	view.mu.Lock()
	view.sortProperty = item.property
	view.sortDirection = item.direction
	view.result = res
	view.mu.Unlock()

	nf, nfo := view.NumSelected()
	d.bus.Publish(Event{Kind: EventSortFinished, ViewID: item.viewID, SearchInfo: &SearchInfo{
		Query: view.queryText, NumFiles: res.Files.Len(), NumFolders: res.Folders.Len(),
		NumSelectedFiles: nf, NumSelectedFolders: nfo,
		SortOrder: item.property, SortDirection: item.direction,
	}})
}

func (d *Database) doItemInfo(item *workItem) {
	view := d.View(item.viewID)
	if view == nil {
		return
	}
	e := view.rowEntry(item.rowIdx)
	if e == nil {
		return
	}
	info := &EntryInfo{IsFolder: e.Kind == entry.KindFolder}
	if item.mask&FieldName != 0 {
		info.Name = e.Name
	}
	if item.mask&FieldPath != 0 {
		info.Path = entry.Path(e)
	}
	if item.mask&FieldSize != 0 {
		info.Size = e.Size
	}
	if item.mask&FieldMtime != 0 {
		info.Mtime = e.Mtime
	}
	if item.mask&FieldExtension != 0 {
		info.Extension = entry.Extension(e)
	}
	if item.mask&FieldParent != 0 && e.Parent != nil {
		info.ParentPath = entry.Path(e.Parent)
	}
	d.bus.Publish(Event{Kind: EventItemInfoReady, ViewID: item.viewID, EntryInfo: info})
}

func (d *Database) doModifySelection(item *workItem) {
	view := d.View(item.viewID)
	if view == nil {
		return
	}
	view.applySelection(item.selOp, item.idx1, item.idx2)
}
