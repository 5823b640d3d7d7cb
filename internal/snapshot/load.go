package snapshot

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/caldwell-labs/fsindex/internal/entry"
	"github.com/caldwell-labs/fsindex/internal/index"
	"go.uber.org/zap"
)

// Load reads a snapshot file written by Save and populates store, which
// must be empty. Any corruption — bad magic, unknown major version, a
// short read, an inconsistent sorted-array id, or a parent_idx out of
// range — aborts the load, per spec.md §7 LoadCorruption: the caller gets
// back an empty, unmodified store and a *CorruptionError.
func Load(store *index.Store, pool interface{ Alloc() *entry.Entry }, path string, log *zap.Logger) (Info, error) {
	if log == nil {
		log = zap.NewNop()
	}
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	info, folders, files, err := readAll(r, pool)
	if err != nil {
		log.Warn("snapshot: load corruption, returning empty store", zap.Error(err))
		return Info{}, err
	}

	for _, e := range folders {
		store.Add(e)
	}
	for _, e := range files {
		store.Add(e)
	}
	return info, nil
}

func readAll(r *bufio.Reader, pool interface{ Alloc() *entry.Entry }) (Info, []*entry.Entry, []*entry.Entry, error) {
	var magicBuf [4]byte
	if _, err := io.ReadFull(r, magicBuf[:]); err != nil {
		return Info{}, nil, nil, &CorruptionError{Reason: "short read of magic"}
	}
	if string(magicBuf[:]) != magic {
		return Info{}, nil, nil, &CorruptionError{Reason: "bad magic"}
	}

	major, err := readU8(r)
	if err != nil {
		return Info{}, nil, nil, &CorruptionError{Reason: "short read of major version"}
	}
	if major != majorVer {
		return Info{}, nil, nil, &CorruptionError{Reason: "unsupported major version"}
	}
	minor, err := readU8(r)
	if err != nil {
		return Info{}, nil, nil, &CorruptionError{Reason: "short read of minor version"}
	}
	if minor > minorVer {
		return Info{}, nil, nil, &CorruptionError{Reason: "minor version newer than this build"}
	}

	flagsRaw, err := readU64(r)
	if err != nil {
		return Info{}, nil, nil, &CorruptionError{Reason: "short read of index_flags"}
	}
	flags := index.Flags(flagsRaw)

	numFolders, err := readU32(r)
	if err != nil {
		return Info{}, nil, nil, &CorruptionError{Reason: "short read of num_folders"}
	}
	numFiles, err := readU32(r)
	if err != nil {
		return Info{}, nil, nil, &CorruptionError{Reason: "short read of num_files"}
	}
	if _, err := readU64(r); err != nil { // folder_block_size, unused on load
		return Info{}, nil, nil, &CorruptionError{Reason: "short read of folder_block_size"}
	}
	if _, err := readU64(r); err != nil { // file_block_size, unused on load
		return Info{}, nil, nil, &CorruptionError{Reason: "short read of file_block_size"}
	}
	if _, err := readU32(r); err != nil { // num_indexes, reserved
		return Info{}, nil, nil, &CorruptionError{Reason: "short read of num_indexes"}
	}
	if _, err := readU32(r); err != nil { // num_excludes, reserved
		return Info{}, nil, nil, &CorruptionError{Reason: "short read of num_excludes"}
	}

	folders, parentIdx, err := decodeBlock(r, pool, int(numFolders), flags, true)
	if err != nil {
		return Info{}, nil, nil, err
	}
	files, fileParentIdx, err := decodeBlock(r, pool, int(numFiles), flags, false)
	if err != nil {
		return Info{}, nil, nil, err
	}

	if err := linkParents(folders, parentIdx, folders); err != nil {
		return Info{}, nil, nil, err
	}
	if err := linkParents(files, fileParentIdx, folders); err != nil {
		return Info{}, nil, nil, err
	}
	for _, e := range files {
		if e.Kind == entry.KindFile {
			entry.UpdateParentSize(e, int64(e.Size))
		}
	}

	if err := skipSortedArrays(r, int(numFolders), int(numFiles)); err != nil {
		return Info{}, nil, nil, err
	}

	return Info{NumFolders: int(numFolders), NumFiles: int(numFiles)}, folders, files, nil
}

func decodeBlock(r *bufio.Reader, pool interface{ Alloc() *entry.Entry }, n int, flags index.Flags, isFolder bool) ([]*entry.Entry, []uint32, error) {
	entries := make([]*entry.Entry, 0, n)
	parentIdx := make([]uint32, 0, n)
	prev := ""

	for i := 0; i < n; i++ {
		e := pool.Alloc()
		if isFolder {
			dbIdx, err := readU16(r)
			if err != nil {
				return nil, nil, &CorruptionError{Reason: "short read of db_index"}
			}
			e.DBIndex = dbIdx
			e.Kind = entry.KindFolder
		} else {
			e.Kind = entry.KindFile
		}

		shared, err := readU8(r)
		if err != nil {
			return nil, nil, &CorruptionError{Reason: "short read of name_shared"}
		}
		suffixLen, err := readU8(r)
		if err != nil {
			return nil, nil, &CorruptionError{Reason: "short read of name_suffix_len"}
		}
		if int(shared) > len(prev) {
			return nil, nil, &CorruptionError{Reason: "name_shared exceeds previous name length"}
		}
		suffix := make([]byte, suffixLen)
		if _, err := io.ReadFull(r, suffix); err != nil {
			return nil, nil, &CorruptionError{Reason: "short read of name_suffix"}
		}
		name := prev[:shared] + string(suffix)
		e.Name = name
		prev = name

		if flags&index.FlagSize != 0 {
			size, err := readU64(r)
			if err != nil {
				return nil, nil, &CorruptionError{Reason: "short read of size"}
			}
			e.Size = size
		}
		if flags&index.FlagMtime != 0 {
			mtime, err := readU64(r)
			if err != nil {
				return nil, nil, &CorruptionError{Reason: "short read of mtime"}
			}
			e.Mtime = int64(mtime)
		}

		pIdx, err := readU32(r)
		if err != nil {
			return nil, nil, &CorruptionError{Reason: "short read of parent_idx"}
		}

		entries = append(entries, e)
		parentIdx = append(parentIdx, pIdx)
	}
	return entries, parentIdx, nil
}

// linkParents resolves each entry's parent_idx against the folder block
// (the only block folders or files may reference, per §6.1: file
// parent-index references point into the folder block, and a folder's
// own parent_idx equals its own idx iff it is a root).
func linkParents(entries []*entry.Entry, parentIdx []uint32, folders []*entry.Entry) error {
	for i, e := range entries {
		pi := parentIdx[i]
		if int(pi) >= len(folders) {
			return &CorruptionError{Reason: "parent_idx out of range"}
		}
		parent := folders[pi]
		if parent == e {
			continue // root: parent_idx equals own idx
		}
		e.Parent = parent
		if e.Kind == entry.KindFolder {
			parent.ChildFolders++
		} else {
			parent.ChildFiles++
		}
	}
	return nil
}

// skipSortedArrays consumes the sorted_arrays section without
// reconstructing it — the store rebuilds any non-name ordering lazily on
// first request, so the persisted index vectors only need validating for
// structural corruption, not retained.
func skipSortedArrays(r *bufio.Reader, numFolders, numFiles int) error {
	numArrays, err := readU32(r)
	if err != nil {
		return &CorruptionError{Reason: "short read of num_sorted_arrays"}
	}
	for a := uint32(0); a < numArrays; a++ {
		id, err := readU32(r)
		if err != nil {
			return &CorruptionError{Reason: "short read of sorted array id"}
		}
		if id == 0 || id > uint32(index.PropChildCount)+1 {
			return &CorruptionError{Reason: "sorted array id out of range"}
		}
		for i := 0; i < numFolders; i++ {
			v, err := readU32(r)
			if err != nil {
				return &CorruptionError{Reason: "short read of folder_indices"}
			}
			if int(v) >= numFolders {
				return &CorruptionError{Reason: "sorted array folder index out of range"}
			}
		}
		for i := 0; i < numFiles; i++ {
			v, err := readU32(r)
			if err != nil {
				return &CorruptionError{Reason: "short read of file_indices"}
			}
			if int(v) >= numFiles {
				return &CorruptionError{Reason: "sorted array file index out of range"}
			}
		}
	}
	return nil
}

func readU8(r io.Reader) (uint8, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func readU16(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func readU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readU64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}
