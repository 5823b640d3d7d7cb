package index

import (
	"container/list"
	"sync"

	"github.com/caldwell-labs/fsindex/internal/entry"
)

// PathCache is an LRU cache from full path to the *entry.Entry at that
// path, used by the watcher to resolve an fsnotify path to the entry it
// names without storing a path string on every entry (spec.md §4.3 keeps
// paths implicit). Adapted from the teacher's internal/db dircache.go,
// generalized from int64 dir ids to entry pointers.
type PathCache struct {
	mu    sync.Mutex
	max   int
	ll    *list.List
	items map[string]*list.Element
}

type pathCacheEntry struct {
	key   string
	value *entry.Entry
}

// NewPathCache creates a cache holding at most max entries.
func NewPathCache(max int) *PathCache {
	if max <= 0 {
		max = 4096
	}
	return &PathCache{max: max, ll: list.New(), items: make(map[string]*list.Element)}
}

// Get returns the cached entry for path, if present, promoting it to
// most-recently-used.
func (c *PathCache) Get(path string) (*entry.Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[path]; ok {
		c.ll.MoveToFront(el)
		return el.Value.(pathCacheEntry).value, true
	}
	return nil, false
}

// Set inserts or updates the cached entry for path, evicting the least
// recently used entry if the cache is full.
func (c *PathCache) Set(path string, e *entry.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[path]; ok {
		el.Value = pathCacheEntry{key: path, value: e}
		c.ll.MoveToFront(el)
		return
	}
	el := c.ll.PushFront(pathCacheEntry{key: path, value: e})
	c.items[path] = el
	if c.ll.Len() > c.max {
		last := c.ll.Back()
		if last == nil {
			return
		}
		c.ll.Remove(last)
		delete(c.items, last.Value.(pathCacheEntry).key)
	}
}

// Delete removes path from the cache, e.g. after the entry it names is
// destroyed by a watcher Deleted event.
func (c *PathCache) Delete(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[path]; ok {
		c.ll.Remove(el)
		delete(c.items, path)
	}
}
