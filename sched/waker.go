// Package sched implements the thread-pool scheduler of spec.md §4.5: a
// fixed-size worker pool drives many independent PartitionPipelineTasks,
// each re-spawned by its own waker when the operator it suspended on
// becomes ready again (spec.md §5's suspension-point model). Grounded on
// the teacher's own goroutine-per-partition dispatch (vm/table.go's
// SplitInput), adapted from a blocking wait-group join to a
// re-spawning-task model driven by golang.org/x/sync/errgroup +
// semaphore.Weighted (both teacher deps).
package sched

import "github.com/coredbio/coredb/exec"

// PartitionPipelineWaker is the concrete exec.Waker a PartitionPipelineTask
// installs into whatever operator state it suspends on. Wake re-spawns a
// fresh PartitionPipelineTask onto the pool (spec.md §4.5: "The waker's
// wake_by_ref re-spawns a fresh PartitionPipelineTask onto the pool").
type PartitionPipelineWaker struct {
	pool *Pool
	task *PartitionPipelineTask
}

var _ exec.Waker = (*PartitionPipelineWaker)(nil)

// Wake re-submits the owning task to the pool. It is safe to call exactly
// once per waker instance; the task installs a fresh waker on its next
// Pending return (spec.md §9: "wakers are single-shot per registration").
func (w *PartitionPipelineWaker) Wake() {
	w.pool.Spawn(w.task)
}
