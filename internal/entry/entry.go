// Package entry defines the File/Folder record that backs every sorted
// array in the index store. Entries are allocated from a slab.Pool so
// their addresses stay stable for the lifetime of the store — sorted
// arrays hold raw *Entry references, never copies.
package entry

import (
	"strings"

	"github.com/caldwell-labs/fsindex/internal/slab"
)

// itemsPerBlock matches the block size the scanner expects to pay off:
// large enough that a typical directory tree's entries land in a handful
// of blocks, small enough that a short-lived scan of a tiny tree doesn't
// over-allocate.
const itemsPerBlock = 4096

// NewPool creates a slab pool of entries with Reset wired as the
// destructor, so freed entries come back zeroed.
func NewPool() *slab.Pool[Entry] {
	return slab.New[Entry](itemsPerBlock, Reset)
}

// Kind distinguishes a File entry from a Folder entry.
type Kind uint8

const (
	KindFile Kind = iota
	KindFolder
)

func (k Kind) String() string {
	if k == KindFolder {
		return "folder"
	}
	return "file"
}

// Entry is a file or folder record in the store. The prefix fields are
// shared by both kinds; ChildFiles/ChildFolders only apply to folders.
//
// AccessTime, CreateTime and ChangeTime are defined per the on-disk format
// (§6.1 index_flags bits) but are never populated — see SPEC_FULL.md §9
// Open Questions, reproduced from the original implementation as-is.
type Entry struct {
	Name    string
	Parent  *Entry
	Size    uint64
	Mtime   int64
	Kind    Kind
	Mark    bool
	DBIndex uint16
	Idx     int32

	AccessTime int64
	CreateTime int64
	ChangeTime int64

	ChildFiles   int32
	ChildFolders int32

	fileType string
}

// Reset clears an entry back to its zero value; used by the slab pool's
// destructor path when an entry is freed and its slot is about to be
// reused for something else.
func Reset(e *Entry) {
	*e = Entry{}
}

// IsRoot reports whether e is an index root (no parent within this
// entry's own tree).
func (e *Entry) IsRoot() bool {
	return e.Parent == nil
}

// AppendPath recursively appends ancestor names separated by '/' then e's
// own name, building the full path without ever storing it on the entry.
func AppendPath(buf *strings.Builder, e *Entry) {
	if e == nil {
		return
	}
	if e.Parent != nil {
		AppendPath(buf, e.Parent)
		buf.WriteByte('/')
	}
	buf.WriteString(e.Name)
}

// Path is a convenience wrapper around AppendPath for callers that don't
// need to reuse a builder across many entries.
func Path(e *Entry) string {
	var b strings.Builder
	AppendPath(&b, e)
	return b.String()
}

// Depth returns the number of ancestors between e and its index root.
func Depth(e *Entry) int {
	d := 0
	for p := e.Parent; p != nil; p = p.Parent {
		d++
	}
	return d
}

// UpdateParentSize propagates a signed size delta up through every
// ancestor folder, so a folder's Size always equals the sum of descendant
// file sizes (spec invariant: a file's size contributes to every ancestor
// folder's size exactly once).
func UpdateParentSize(e *Entry, delta int64) {
	for p := e.Parent; p != nil; p = p.Parent {
		if delta < 0 && uint64(-delta) > p.Size {
			p.Size = 0
		} else {
			p.Size = uint64(int64(p.Size) + delta)
		}
	}
}

// Extension returns the entry's name extension, lowercased, without the
// leading dot. Returns "" for files with no extension and for folders.
func Extension(e *Entry) string {
	if e.Kind == KindFolder {
		return ""
	}
	idx := strings.LastIndexByte(e.Name, '.')
	if idx <= 0 || idx == len(e.Name)-1 {
		return ""
	}
	return strings.ToLower(e.Name[idx+1:])
}

// FileType returns a cached content-type string for the entry, computing
// it via sniff on first access. The index store's file-type comparator
// threads this cache through its context so repeated sorts don't re-sniff.
func FileType(e *Entry, sniff func(*Entry) string) string {
	if e.fileType == "" && sniff != nil {
		e.fileType = sniff(e)
	}
	return e.fileType
}

// SetFileType overwrites the cached content-type string directly, used by
// the snapshot codec and tests that don't want to sniff the filesystem.
func SetFileType(e *Entry, ft string) {
	e.fileType = ft
}

// ClearMark zeroes the scratch bit used by sort-transition algorithms
// (§4.11 case 2). Every algorithm that sets Mark must clear it when done.
func ClearMark(e *Entry) {
	e.Mark = false
}
