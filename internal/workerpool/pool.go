// Package workerpool sizes and shares the bounded CPU worker pool spec.md
// §5 describes: T = previous power of two <= logical CPUs, capped at 8,
// used by both parallel sort (parray.SortParallel) and parallel search
// (searchengine.Search) so the two never oversubscribe the machine
// together.
package workerpool

import (
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Pool bounds concurrent CPU-heavy work across every parallel sort and
// search a Database runs.
type Pool struct {
	workers int
	sem     *semaphore.Weighted
}

// New creates a pool sized per spec.md §5. A workers value <= 0 derives
// the size from runtime.NumCPU().
func New(workers int) *Pool {
	if workers <= 0 {
		workers = Size(runtime.NumCPU())
	}
	if workers < 1 {
		workers = 1
	}
	return &Pool{workers: workers, sem: semaphore.NewWeighted(int64(workers))}
}

// Size computes T = previous power of two <= cpus, capped at 8.
func Size(cpus int) int {
	if cpus < 1 {
		return 1
	}
	if cpus > 8 {
		cpus = 8
	}
	p := 1
	for p*2 <= cpus {
		p *= 2
	}
	return p
}

// Workers returns the pool's configured worker count.
func (p *Pool) Workers() int {
	return p.workers
}

// Semaphore exposes the shared weighted semaphore so parray.SortParallel
// and searchengine.Search can both bound their goroutine fan-out against
// the same budget.
func (p *Pool) Semaphore() *semaphore.Weighted {
	return p.sem
}
