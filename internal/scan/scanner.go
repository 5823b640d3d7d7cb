// Package scan implements the recursive directory walk of spec.md §4.5: a
// worker pool that honors one-filesystem, hidden-file and exclude rules
// while allocating entries straight into the index store (no staging
// through a SQL ingester — the store *is* the in-memory database).
package scan

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/caldwell-labs/fsindex/internal/entry"
	"github.com/caldwell-labs/fsindex/internal/index"
	"go.uber.org/zap"
)

// StatusFunc is invoked at most once per StatusIntervalMs with the
// directory currently being processed.
type StatusFunc func(path string)

// Result summarizes a finished scan.
type Result struct {
	Files, Folders int
	Errors         int
	Roots          []*entry.Entry
}

// Scanner coordinates the walk across one or more include roots.
type Scanner struct {
	opts  *Options
	store *index.Store
	pool  entryPool
	log   *zap.Logger

	dirQueue  chan dirWork
	inFlight  int64
	errCount  int64
	closeOnce sync.Once
	wg        sync.WaitGroup

	statusFn     StatusFunc
	lastStatusAt atomic.Int64 // unix nanos
}

type dirWork struct {
	path   string
	parent *entry.Entry
	depth  int
	rootID uint16
	oneFS  bool
	dev    uint64
}

// entryPool is the minimal surface scan needs from the *slab.Pool[entry.Entry]
// that entry.NewPool returns — kept as
// an interface so tests can substitute a plain allocator.
type entryPool interface {
	Alloc() *entry.Entry
}

// New creates a Scanner that allocates entries from pool and indexes them
// in store.
func New(opts *Options, store *index.Store, pool entryPool, log *zap.Logger) *Scanner {
	if opts == nil {
		opts = DefaultOptions()
	}
	if log == nil {
		log = zap.NewNop()
	}
	queueSize := opts.Workers * 2048
	if queueSize < 4096 {
		queueSize = 4096
	}
	return &Scanner{
		opts:     opts,
		store:    store,
		pool:     pool,
		log:      log,
		dirQueue: make(chan dirWork, queueSize),
	}
}

// SetStatusFunc installs the throttled directory-progress callback.
func (s *Scanner) SetStatusFunc(fn StatusFunc) {
	s.statusFn = fn
}

// Run walks every include root, returning once all roots are fully
// scanned, the context is cancelled, or MaxErrors is exceeded.
func (s *Scanner) Run(ctx context.Context, includes []Include) (*Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var roots []*entry.Entry
	for _, inc := range includes {
		root, dev, err := s.openRoot(inc)
		if err != nil {
			s.log.Warn("scan: failed to stat include root", zap.String("path", inc.Path), zap.Error(err))
			continue
		}
		roots = append(roots, root)
		s.store.Add(root)

		atomic.AddInt64(&s.inFlight, 1)
		work := dirWork{path: inc.Path, parent: root, depth: 0, rootID: inc.ID, oneFS: inc.OneFilesystem, dev: dev}
		select {
		case s.dirQueue <- work:
		case <-ctx.Done():
			atomic.AddInt64(&s.inFlight, -1)
		}
	}

	for i := 0; i < s.opts.Workers; i++ {
		w := &worker{id: i, s: s}
		s.wg.Add(1)
		go func(w *worker) {
			defer s.wg.Done()
			w.run(ctx)
		}(w)
	}

	go s.monitor(ctx, cancel)
	s.wg.Wait()
	s.closeQueue()

	if ctx.Err() != nil && ctx.Err() != context.Canceled {
		return nil, ctx.Err()
	}

	return &Result{
		Files:   s.store.NumFiles(),
		Folders: s.store.NumFolders(),
		Errors:  int(atomic.LoadInt64(&s.errCount)),
		Roots:   roots,
	}, nil
}

func (s *Scanner) openRoot(inc Include) (*entry.Entry, uint64, error) {
	info, err := os.Lstat(inc.Path)
	if err != nil {
		return nil, 0, err
	}
	var dev uint64
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		dev = uint64(st.Dev)
	}
	root := s.pool.Alloc()
	root.Name = filepath.Base(inc.Path)
	root.Kind = entry.KindFolder
	root.Mtime = info.ModTime().Unix()
	root.DBIndex = inc.ID
	return root, dev, nil
}

func (s *Scanner) monitor(ctx context.Context, cancel context.CancelFunc) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.closeQueue()
			return
		case <-ticker.C:
			if atomic.LoadInt64(&s.inFlight) == 0 {
				s.closeQueue()
				return
			}
			if s.opts.MaxErrors > 0 && atomic.LoadInt64(&s.errCount) >= int64(s.opts.MaxErrors) {
				cancel()
				return
			}
		}
	}
}

func (s *Scanner) closeQueue() {
	s.closeOnce.Do(func() { close(s.dirQueue) })
}

func (s *Scanner) reportStatus(path string) {
	if s.statusFn == nil {
		return
	}
	now := time.Now().UnixNano()
	last := s.lastStatusAt.Load()
	interval := int64(s.opts.StatusIntervalMs) * int64(time.Millisecond)
	if now-last < interval {
		return
	}
	if s.lastStatusAt.CompareAndSwap(last, now) {
		s.statusFn(path)
	}
}

func (s *Scanner) recordError(path string, err error) {
	atomic.AddInt64(&s.errCount, 1)
	s.log.Warn("scan: ScanIO error, skipping entry", zap.String("path", path), zap.Error(err))
}
