package scan

import "github.com/caldwell-labs/fsindex/internal/exclude"

// Include describes one root directory to be scanned, per spec.md §4.5.
type Include struct {
	Path          string
	OneFilesystem bool
	ScanAfterLoad bool
	ID            uint16
}

// Options configures a scan run.
type Options struct {
	// Workers is the number of concurrent directory processors.
	Workers int

	// Excludes holds the active path/glob/hidden-file rules.
	Excludes *exclude.Manager

	// MaxErrors aborts the scan once this many ScanIO errors have been
	// observed. Zero means unlimited.
	MaxErrors int

	// StatusIntervalMs throttles the directory-in-progress callback; the
	// spec requires at most one callback per 100ms.
	StatusIntervalMs int
}

// DefaultOptions returns sensible defaults, mirroring the teacher's
// DefaultOptions but without any SQL batching knobs.
func DefaultOptions() *Options {
	return &Options{
		Workers:          8,
		Excludes:         exclude.New(),
		MaxErrors:        0,
		StatusIntervalMs: 100,
	}
}

// WithWorkers sets the worker count.
func (o *Options) WithWorkers(n int) *Options {
	o.Workers = n
	return o
}

// WithExcludes sets the exclude manager.
func (o *Options) WithExcludes(m *exclude.Manager) *Options {
	o.Excludes = m
	return o
}

// WithMaxErrors sets the maximum ScanIO error count before abort.
func (o *Options) WithMaxErrors(n int) *Options {
	o.MaxErrors = n
	return o
}
