// Package index implements the secondary index store (spec.md §4.4): a
// family of sorted arrays over the same entry pool, one pair (files,
// folders) per indexed property. Name is always authoritative; other
// properties are built lazily the first time a view requests that
// ordering and then cached for the store's lifetime.
package index

import (
	"fmt"
	"sync"

	"github.com/caldwell-labs/fsindex/internal/entry"
	"github.com/caldwell-labs/fsindex/internal/parray"
	"go.uber.org/zap"
)

// Property identifies a sortable entry attribute.
type Property uint8

const (
	PropName Property = iota
	PropPath
	PropSize
	PropMtime
	PropExtension
	PropFileType
	PropDepth
	PropChildCount
)

// Flags records which properties are actually indexed for a given store,
// matching the on-disk index_flags bitmask (§6.1). Access/creation/change
// time bits are reserved and never set (SPEC_FULL.md §9).
type Flags uint64

const (
	FlagName Flags = 1 << iota
	FlagSize
	FlagMtime
	FlagPath
	FlagExtension
	FlagFileType
	FlagAccessTime
	FlagCreateTime
	FlagChangeTime
)

// InvariantViolation is raised when Remove cannot find an entry that the
// caller claimed was present — a programming error per spec.md §7.
type InvariantViolation struct {
	Op   string
	Path string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("index: invariant violation during %s: entry %q not found", e.Op, e.Path)
}

var comparators = map[Property]parray.Cmp[*entry.Entry]{
	PropName:       entry.CompareName,
	PropPath:       entry.ComparePath,
	PropSize:       entry.CompareSize,
	PropMtime:      entry.CompareMtime,
	PropExtension:  entry.CompareExtension,
	PropFileType:   entry.CompareFileType,
	PropDepth:      entry.CompareDepth,
	PropChildCount: entry.CompareChildCounts,
}

type lazyArray struct {
	once  sync.Once
	files *parray.Array[*entry.Entry]
	dirs  *parray.Array[*entry.Entry]
}

// Store holds, for each indexed property, sorted file and folder arrays
// over the same set of live entries.
type Store struct {
	mu sync.RWMutex

	log       *zap.Logger
	flags     Flags
	cmpCtx    *entry.CompareCtx
	numFiles  int
	numFolder int

	name *lazyArray // always built eagerly
	lazy map[Property]*lazyArray
}

// New creates an empty index store. flags records which properties the
// scanner populated (size/mtime/path are optional; name is implied).
func New(flags Flags, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		log:    log,
		flags:  flags | FlagName,
		cmpCtx: &entry.CompareCtx{Sniff: sniffFileType},
		name: &lazyArray{
			files: parray.New[*entry.Entry](1024),
			dirs:  parray.New[*entry.Entry](256),
		},
		lazy: make(map[Property]*lazyArray),
	}
	return s
}

// sniffFileType is the default content-type sniffer: extension-based, no
// filesystem access, so it stays usable for in-memory test fixtures. A
// production caller may override via CompareCtx before first use.
func sniffFileType(e *entry.Entry) string {
	if e.Kind == entryKindFolder() {
		return "inode/directory"
	}
	if ext := entry.Extension(e); ext != "" {
		return "ext/" + ext
	}
	return "application/octet-stream"
}

func entryKindFolder() entry.Kind { return entry.KindFolder }

// Flags returns the indexed-property bitmask.
func (s *Store) Flags() Flags {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags
}

// NumFiles returns the live file count.
func (s *Store) NumFiles() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.numFiles
}

// NumFolders returns the live folder count.
func (s *Store) NumFolders() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.numFolder
}

// Add inserts e into the name-sorted array and every other sorted array
// already materialized, at the position given by that array's comparator.
func (s *Store) Add(e *entry.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.name
	if e.Kind == entry.KindFolder {
		target.dirs.InsertSorted(e, entry.CompareName, s.cmpCtx)
		s.numFolder++
	} else {
		target.files.InsertSorted(e, entry.CompareName, s.cmpCtx)
		s.numFiles++
	}

	for prop, la := range s.lazy {
		cmp := comparators[prop]
		if e.Kind == entry.KindFolder {
			la.dirs.InsertSorted(e, cmp, s.cmpCtx)
		} else {
			la.files.InsertSorted(e, cmp, s.cmpCtx)
		}
	}
}

// Remove deletes e from every sorted array. If e cannot be found in the
// name-sorted array by binary search (a bug indicator), Remove falls back
// to a linear scan and, failing that too, returns an *InvariantViolation —
// callers in the worker goroutine are expected to treat this as fatal and
// log the entry's path before aborting (spec.md §7).
func (s *Store) Remove(e *entry.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	arr := s.name.files
	if e.Kind == entry.KindFolder {
		arr = s.name.dirs
	}
	if !removeFrom(arr, e, entry.CompareName, s.cmpCtx) {
		s.log.Error("index: entry missing from name-sorted array, falling back to linear scan",
			zap.String("path", entry.Path(e)))
		if !removeLinear(arr, e) {
			return &InvariantViolation{Op: "remove", Path: entry.Path(e)}
		}
	}

	for prop, la := range s.lazy {
		cmp := comparators[prop]
		target := la.files
		if e.Kind == entry.KindFolder {
			target = la.dirs
		}
		if !removeFrom(target, e, cmp, s.cmpCtx) {
			removeLinear(target, e)
		}
	}

	if e.Kind == entry.KindFolder {
		s.numFolder--
	} else {
		s.numFiles--
	}
	return nil
}

func removeFrom(arr *parray.Array[*entry.Entry], e *entry.Entry, cmp parray.Cmp[*entry.Entry], ctx any) bool {
	found, idx := arr.BinarySearch(e, cmp, ctx)
	if !found {
		return false
	}
	// BinarySearch returns the lower-bound index for equal keys; walk
	// forward over ties to find the exact pointer.
	for i := idx; i < arr.Len(); i++ {
		if arr.At(i) == e {
			arr.Remove(i, 1)
			return true
		}
		if cmp(arr.At(i), e, ctx) != 0 {
			break
		}
	}
	return false
}

func removeLinear(arr *parray.Array[*entry.Entry], e *entry.Entry) bool {
	for i := 0; i < arr.Len(); i++ {
		if arr.At(i) == e {
			arr.Remove(i, 1)
			return true
		}
	}
	return false
}

// FilesSortedBy returns the file array sorted by prop, building it lazily
// on first request. PropName is always already built.
func (s *Store) FilesSortedBy(prop Property) *parray.Array[*entry.Entry] {
	return s.arrayFor(prop, true)
}

// FoldersSortedBy is the folder analogue of FilesSortedBy.
func (s *Store) FoldersSortedBy(prop Property) *parray.Array[*entry.Entry] {
	return s.arrayFor(prop, false)
}

func (s *Store) arrayFor(prop Property, files bool) *parray.Array[*entry.Entry] {
	if prop == PropName {
		s.mu.RLock()
		defer s.mu.RUnlock()
		if files {
			return s.name.files
		}
		return s.name.dirs
	}

	s.mu.Lock()
	la, ok := s.lazy[prop]
	if !ok {
		la = &lazyArray{}
		s.lazy[prop] = la
	}
	s.mu.Unlock()

	la.once.Do(func() {
		s.mu.RLock()
		filesSnap := s.name.files.Snapshot()
		dirsSnap := s.name.dirs.Snapshot()
		s.mu.RUnlock()

		cmp := comparators[prop]
		fa := parray.New[*entry.Entry](len(filesSnap))
		fa.AddMany(filesSnap)
		fa.Sort(cmp, s.cmpCtx, nil)

		da := parray.New[*entry.Entry](len(dirsSnap))
		da.AddMany(dirsSnap)
		da.Sort(cmp, s.cmpCtx, nil)

		s.mu.Lock()
		la.files = fa
		la.dirs = da
		s.mu.Unlock()
	})

	if files {
		return la.files
	}
	return la.dirs
}

// IsMaterialized reports whether prop's sorted arrays have already been
// built (PropName is always materialized). Used by the snapshot writer to
// decide which sorted_arrays entries to persist.
func (s *Store) IsMaterialized(prop Property) bool {
	if prop == PropName {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	la, ok := s.lazy[prop]
	return ok && la.files != nil
}

// ComparatorFor exposes the comparator function for a property, used by
// the watcher when it needs to reposition an entry manually and by the
// search/sort engine when materializing a fresh comparison context.
func ComparatorFor(prop Property) parray.Cmp[*entry.Entry] {
	return comparators[prop]
}

// CompareCtx returns the store's shared comparator context (file-type
// sniffer cache), so other packages can reuse the same cache instead of
// re-sniffing.
func (s *Store) CompareCtx() *entry.CompareCtx {
	return s.cmpCtx
}
