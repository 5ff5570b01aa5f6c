package sched

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool is the fixed-size thread pool spec.md §4.5 describes ("Thread pool
// (size = hardware parallelism)"). Grounded on the teacher's own
// goroutine-dispatch loop (vm/table.go's SplitInput), generalized from a
// wait-and-join-once shape to a pool tasks can re-submit themselves onto
// indefinitely (a PartitionPipelineWaker firing resubmits its task),
// using golang.org/x/sync/semaphore.Weighted (a teacher dep) to bound
// concurrent goroutines instead of a raw unbounded `go func` per
// partition.
type Pool struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

// NewPool builds a pool with the given worker count, defaulting to
// runtime.GOMAXPROCS(0) (spec.md §4.5's "hardware parallelism").
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Pool{sem: semaphore.NewWeighted(int64(workers))}
}

// Submit registers t as a live task for the lifetime of the query (its
// WaitGroup entry is released only when t reaches a terminal outcome, not
// merely when one Run call returns Pending) and schedules its first run.
func (p *Pool) Submit(t *PartitionPipelineTask) {
	p.wg.Add(1)
	p.Spawn(t)
}

// Spawn schedules one Run call for t onto a pool worker and returns at
// once; the spawned goroutine waits for a free slot. This is also what a PartitionPipelineWaker.Wake calls to
// re-submit a parked task.
func (p *Pool) Spawn(t *PartitionPipelineTask) {
	go func() {
		_ = p.sem.Acquire(context.Background(), 1)
		defer p.sem.Release(1)
		t.Run(p)
	}()
}

// Wait blocks until every task Submit'd to the pool has reached a
// terminal outcome (ExecuteDone or an error reported to its error sink).
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) taskFinished() {
	p.wg.Done()
}
