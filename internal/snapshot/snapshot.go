// Package snapshot implements the on-disk binary format of spec.md §6.1:
// a header, a folder block, a file block and a set of sorted-array index
// vectors, written with prefix-compressed names. Save follows the
// teacher's flock-then-atomic-rename pattern from its old
// internal/snapshot manager, adapted from a SQLite database file to this
// format's own header/block layout.
package snapshot

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"syscall"

	"github.com/caldwell-labs/fsindex/internal/entry"
	"github.com/caldwell-labs/fsindex/internal/index"
	"github.com/caldwell-labs/fsindex/internal/parray"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	magic      = "FSDB"
	majorVer   = 0
	minorVer   = 0
	maxNameLen = 255
)

// CorruptionError reports the specific reason a Load was rejected, per
// the LoadCorruption error class of spec.md §7.
type CorruptionError struct {
	Reason string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("snapshot: load corruption: %s", e.Reason)
}

// Info is returned on a successful Load or Save, echoed through the
// load-finished/save-finished events (spec.md §6.3 DbInfo).
type Info struct {
	GenerationID string
	NumFolders   int
	NumFiles     int
}

// Save writes store to path using the spec's binary layout, guarded by an
// advisory exclusive flock on a sibling temp file and an atomic rename
// over the destination — mirrors the teacher's snapshot manager save
// path, generalized from a SQLite file copy to this format's own writer.
func Save(store *index.Store, path string, log *zap.Logger) (Info, error) {
	if log == nil {
		log = zap.NewNop()
	}
	tmp := path + ".tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return Info{}, fmt.Errorf("snapshot: open temp file: %w", err)
	}
	defer os.Remove(tmp)

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		return Info{}, fmt.Errorf("snapshot: lock temp file: %w", err)
	}
	defer syscall.Flock(int(f.Fd()), syscall.LOCK_UN)

	info, err := writeAll(f, store)
	if err != nil {
		f.Close()
		return Info{}, fmt.Errorf("snapshot: write: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return Info{}, fmt.Errorf("snapshot: sync: %w", err)
	}
	if err := f.Close(); err != nil {
		return Info{}, fmt.Errorf("snapshot: close: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return Info{}, fmt.Errorf("snapshot: rename: %w", err)
	}
	log.Info("snapshot: save finished", zap.String("path", path),
		zap.Int("folders", info.NumFolders), zap.Int("files", info.NumFiles))
	return info, nil
}

func writeAll(f *os.File, store *index.Store) (Info, error) {
	folders := store.FoldersSortedBy(index.PropName).Snapshot()
	files := store.FilesSortedBy(index.PropName).Snapshot()

	idx := buildIndex(folders, files)

	w := bufio.NewWriter(f)
	if _, err := w.WriteString(magic); err != nil {
		return Info{}, err
	}
	if err := writeU8(w, majorVer); err != nil {
		return Info{}, err
	}
	if err := writeU8(w, minorVer); err != nil {
		return Info{}, err
	}
	if err := writeU64(w, uint64(store.Flags())); err != nil {
		return Info{}, err
	}
	if err := writeU32(w, uint32(len(folders))); err != nil {
		return Info{}, err
	}
	if err := writeU32(w, uint32(len(files))); err != nil {
		return Info{}, err
	}

	flags := store.Flags()
	folderBlock, err := encodeBlock(folders, idx, flags, true)
	if err != nil {
		return Info{}, err
	}
	fileBlock, err := encodeBlock(files, idx, flags, false)
	if err != nil {
		return Info{}, err
	}

	if err := writeU64(w, uint64(len(folderBlock))); err != nil {
		return Info{}, err
	}
	if err := writeU64(w, uint64(len(fileBlock))); err != nil {
		return Info{}, err
	}
	if err := writeU32(w, 0); err != nil { // num_indexes, reserved
		return Info{}, err
	}
	if err := writeU32(w, 0); err != nil { // num_excludes, reserved
		return Info{}, err
	}
	if _, err := w.Write(folderBlock); err != nil {
		return Info{}, err
	}
	if _, err := w.Write(fileBlock); err != nil {
		return Info{}, err
	}

	if err := writeSortedArrays(w, store, idx, folders, files); err != nil {
		return Info{}, err
	}
	if err := w.Flush(); err != nil {
		return Info{}, err
	}

	return Info{GenerationID: uuid.NewString(), NumFolders: len(folders), NumFiles: len(files)}, nil
}

// entryIndex maps every live entry to its position within the
// folder_block or file_block it belongs to, so parent_idx references and
// sorted-array vectors can be written as plain u32s.
type entryIndex map[*entry.Entry]uint32

func buildIndex(folders, files []*entry.Entry) entryIndex {
	idx := make(entryIndex, len(folders)+len(files))
	for i, e := range folders {
		idx[e] = uint32(i)
	}
	for i, e := range files {
		idx[e] = uint32(i)
	}
	return idx
}

func encodeBlock(entries []*entry.Entry, idx entryIndex, flags index.Flags, isFolder bool) ([]byte, error) {
	var buf bytes.Buffer
	prev := ""
	for _, e := range entries {
		if len(e.Name) > maxNameLen {
			return nil, fmt.Errorf("name %q exceeds %d bytes", e.Name, maxNameLen)
		}
		if strings.ContainsRune(e.Name, '/') {
			return nil, fmt.Errorf("name %q contains '/'", e.Name)
		}

		if isFolder {
			writeU16Str(&buf, e.DBIndex)
		}

		shared := sharedPrefixLen(prev, e.Name)
		if shared > maxNameLen {
			shared = maxNameLen
		}
		suffix := e.Name[shared:]
		buf.WriteByte(byte(shared))
		buf.WriteByte(byte(len(suffix)))
		buf.WriteString(suffix)
		prev = e.Name

		if flags&index.FlagSize != 0 {
			writeU64Str(&buf, e.Size)
		}
		if flags&index.FlagMtime != 0 {
			writeU64Str(&buf, uint64(e.Mtime))
		}

		parentIdx := idx[e]
		if e.Parent != nil {
			parentIdx = idx[e.Parent]
		}
		writeU32Str(&buf, parentIdx)
	}
	return buf.Bytes(), nil
}

func sharedPrefixLen(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

func writeSortedArrays(w *bufio.Writer, store *index.Store, idx entryIndex, folders, files []*entry.Entry) error {
	props := materializedProperties(store)
	if err := writeU32(w, uint32(len(props))); err != nil {
		return err
	}
	for _, prop := range props {
		if err := writeU32(w, uint32(prop)+1); err != nil { // id: 1..N, never 0
			return err
		}
		if err := writeIndexVector(w, store.FoldersSortedBy(prop), idx); err != nil {
			return err
		}
		if err := writeIndexVector(w, store.FilesSortedBy(prop), idx); err != nil {
			return err
		}
	}
	return nil
}

// materializedProperties returns, in a stable order, every property whose
// sorted array has already been built — PropName is always included since
// it is eager.
func materializedProperties(store *index.Store) []index.Property {
	all := []index.Property{
		index.PropName, index.PropPath, index.PropSize, index.PropMtime,
		index.PropExtension, index.PropFileType, index.PropDepth, index.PropChildCount,
	}
	var out []index.Property
	for _, p := range all {
		if p == index.PropName || store.IsMaterialized(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func writeIndexVector(w *bufio.Writer, arr *parray.Array[*entry.Entry], idx entryIndex) error {
	n := arr.Len()
	for i := 0; i < n; i++ {
		if err := writeU32(w, idx[arr.At(i)]); err != nil {
			return err
		}
	}
	return nil
}

func writeU8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

func writeU32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func writeU64(w io.Writer, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func writeU16Str(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeU32Str(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64Str(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}
