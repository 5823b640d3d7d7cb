package scan

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"syscall"

	"github.com/caldwell-labs/fsindex/internal/entry"
	"go.uber.org/zap"
)

// worker drains the scanner's dirQueue, falling back to a local stack
// when the queue is full so producers never deadlock against a full
// channel (mirrors the teacher's worker.go enqueueOrStack strategy).
type worker struct {
	id    int
	s     *Scanner
	stack []dirWork
}

func (w *worker) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if n := len(w.stack); n > 0 {
			work := w.stack[n-1]
			w.stack = w.stack[:n-1]
			w.process(ctx, work)
			continue
		}
		select {
		case <-ctx.Done():
			return
		case work, ok := <-w.s.dirQueue:
			if !ok {
				return
			}
			w.process(ctx, work)
		}
	}
}

func (w *worker) process(ctx context.Context, work dirWork) {
	defer atomic.AddInt64(&w.s.inFlight, -1)
	w.processDirectory(ctx, work)
}

func (w *worker) processDirectory(ctx context.Context, work dirWork) {
	childFolders, err := w.s.scanDirectory(ctx, work)
	if err != nil {
		return
	}
	for i := len(childFolders) - 1; i >= 0; i-- {
		w.enqueueOrStack(ctx, childFolders[i])
		if ctx.Err() != nil {
			return
		}
	}
}

// scanDirectory lists work.path, indexing every child under work.parent and
// returning the subdirectories discovered (for the caller to queue). Shared
// by the worker pool's processDirectory and ScanSubtree's standalone walk.
func (s *Scanner) scanDirectory(ctx context.Context, work dirWork) ([]dirWork, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	s.reportStatus(work.path)

	dirEntries, err := os.ReadDir(work.path)
	if err != nil {
		s.recordError(work.path, err)
		return nil, err
	}

	var childFolders []dirWork
	for i, de := range dirEntries {
		if i%100 == 0 && ctx.Err() != nil {
			return childFolders, ctx.Err()
		}

		name := de.Name()
		if name == "." || name == ".." {
			continue
		}
		if s.opts.Excludes != nil && s.opts.Excludes.ExcludeHidden() && name[0] == '.' {
			continue
		}
		if len(name) >= 256 {
			s.log.Debug("scan: name too long, skipping", zap.Int("name_len", len(name)))
			continue
		}

		childPath := filepath.Join(work.path, name)
		info, err := os.Lstat(childPath)
		if err != nil {
			s.recordError(childPath, err)
			continue
		}

		var dev uint64
		if st, ok := info.Sys().(*syscall.Stat_t); ok {
			dev = uint64(st.Dev)
		}
		isDir := info.IsDir()

		if work.oneFS && dev != 0 && work.dev != 0 && dev != work.dev {
			continue
		}
		if s.opts.Excludes != nil && s.opts.Excludes.Excludes(childPath, name, isDir) {
			continue
		}

		if isDir {
			child := s.pool.Alloc()
			child.Name = name
			child.Parent = work.parent
			child.Kind = entry.KindFolder
			child.Mtime = info.ModTime().Unix()
			child.DBIndex = work.rootID
			s.store.Add(child)
			work.parent.ChildFolders++

			childFolders = append(childFolders, dirWork{
				path:   childPath,
				parent: child,
				depth:  work.depth + 1,
				rootID: work.rootID,
				oneFS:  work.oneFS,
				dev:    work.dev,
			})
		} else {
			child := s.pool.Alloc()
			child.Name = name
			child.Parent = work.parent
			child.Kind = entry.KindFile
			child.Size = uint64(info.Size())
			child.Mtime = info.ModTime().Unix()
			child.DBIndex = work.rootID
			s.store.Add(child)
			work.parent.ChildFiles++
			entry.UpdateParentSize(child, int64(child.Size))
		}
	}

	return childFolders, nil
}

func (w *worker) enqueueOrStack(ctx context.Context, work dirWork) {
	if ctx.Err() != nil {
		return
	}
	atomic.AddInt64(&w.s.inFlight, 1)
	select {
	case w.s.dirQueue <- work:
	default:
		w.stack = append(w.stack, work)
	}
}
