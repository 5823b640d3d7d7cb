// Package store implements the view + work queue layer of spec.md §4.12:
// one Database per index-root set, a single worker goroutine draining a
// channel of WorkItems, a single notifier goroutine delivering completion
// events so two events for the same view are never observed out of
// order, and per-view selection that migrates across a store swap.
package store

import (
	"sync"

	"github.com/caldwell-labs/fsindex/internal/index"
	"github.com/caldwell-labs/fsindex/internal/searchengine"
)

// EventKind enumerates the named events of spec.md §6.3.
type EventKind int

const (
	EventLoadStarted EventKind = iota
	EventLoadFinished
	EventSaveStarted
	EventSaveFinished
	EventScanStarted
	EventScanFinished
	EventSearchStarted
	EventSearchFinished
	EventSortStarted
	EventSortFinished
	EventItemInfoReady
)

func (k EventKind) String() string {
	switch k {
	case EventLoadStarted:
		return "load-started"
	case EventLoadFinished:
		return "load-finished"
	case EventSaveStarted:
		return "save-started"
	case EventSaveFinished:
		return "save-finished"
	case EventScanStarted:
		return "scan-started"
	case EventScanFinished:
		return "scan-finished"
	case EventSearchStarted:
		return "search-started"
	case EventSearchFinished:
		return "search-finished"
	case EventSortStarted:
		return "sort-started"
	case EventSortFinished:
		return "sort-finished"
	case EventItemInfoReady:
		return "item-info-ready"
	}
	return "unknown"
}

// DBInfo summarizes a load/scan outcome.
type DBInfo struct {
	NumFiles     int
	NumFolders   int
	GenerationID string
	Err          error
}

// SearchInfo carries the result summary of a Search or Sort work item,
// matching spec.md §6.3 exactly.
type SearchInfo struct {
	Query              string
	NumFiles           int
	NumFolders         int
	NumSelectedFiles   int
	NumSelectedFolders int
	SortOrder          index.Property
	SortDirection      searchengine.Direction
}

// FieldMask selects which EntryInfo fields GetItemInfo populates, so a
// view doesn't have to materialize every field for every row.
type FieldMask uint8

const (
	FieldName FieldMask = 1 << iota
	FieldPath
	FieldSize
	FieldMtime
	FieldExtension
	FieldParent
)

// EntryInfo is the on-demand per-entry detail GetItemInfo publishes.
type EntryInfo struct {
	Name       string
	Path       string
	Size       uint64
	Mtime      int64
	Extension  string
	ParentPath string
	IsFolder   bool
}

// Event is one item posted to the event bus.
type Event struct {
	Kind       EventKind
	ViewID     string
	DBInfo     *DBInfo
	SearchInfo *SearchInfo
	EntryInfo  *EntryInfo
	Err        error
}

// Subscriber receives events on the bus's single notifier goroutine — it
// must not block for long, and must never call back into the Database
// synchronously (that would deadlock against the worker's lock).
type Subscriber func(Event)

// Bus is the single-notifier-thread event dispatcher of spec.md §6.3: a
// buffered channel drained by one goroutine, so subscribers never observe
// two events (for the same view or otherwise) out of order.
type Bus struct {
	mu   sync.Mutex
	subs map[int]Subscriber
	next int

	events chan Event
	done   chan struct{}
}

// NewBus creates a Bus and starts its notifier goroutine.
func NewBus() *Bus {
	b := &Bus{
		subs:   make(map[int]Subscriber),
		events: make(chan Event, 256),
		done:   make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Bus) run() {
	for {
		select {
		case ev := <-b.events:
			b.mu.Lock()
			subs := make([]Subscriber, 0, len(b.subs))
			for _, s := range b.subs {
				subs = append(subs, s)
			}
			b.mu.Unlock()
			for _, s := range subs {
				s(ev)
			}
		case <-b.done:
			return
		}
	}
}

// Subscribe registers fn and returns an unsubscribe function.
func (b *Bus) Subscribe(fn Subscriber) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Publish enqueues ev for delivery on the notifier goroutine.
func (b *Bus) Publish(ev Event) {
	select {
	case b.events <- ev:
	case <-b.done:
	}
}

// Close stops the notifier goroutine. Safe to call once.
func (b *Bus) Close() {
	close(b.done)
}
