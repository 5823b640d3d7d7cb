package scan

import (
	"context"
	"os"
	"syscall"

	"github.com/caldwell-labs/fsindex/internal/entry"
)

// ScanSubtree performs a synchronous, single-goroutine recursive walk of
// path, attaching newly discovered entries under parent. internal/watch
// calls this on Created (for directories) and Rescan events, since the
// notify backend never reports a new directory's existing contents
// (spec.md §4.6) — it runs standalone, without the worker pool or dirQueue
// a full Run uses, since it is driven by a single watch event at a time.
func (s *Scanner) ScanSubtree(ctx context.Context, path string, parent *entry.Entry) error {
	var dev uint64
	if info, err := os.Lstat(path); err == nil {
		if st, ok := info.Sys().(*syscall.Stat_t); ok {
			dev = uint64(st.Dev)
		}
	}

	stack := []dirWork{{path: path, parent: parent, depth: entry.Depth(parent), rootID: parent.DBIndex, dev: dev}}
	for len(stack) > 0 {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n := len(stack) - 1
		work := stack[n]
		stack = stack[:n]

		children, err := s.scanDirectory(ctx, work)
		if err != nil {
			continue
		}
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return nil
}
