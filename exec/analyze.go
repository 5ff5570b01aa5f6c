package exec

import (
	"sync/atomic"

	"github.com/coredbio/coredb/array"
)

// Analyze is a transparent pass-through that counts every row and batch
// flowing through it, for EXPLAIN ANALYZE-style profiling (spec.md §4.3.6).
// It never buffers: PollPush immediately becomes available for PollPull
// to drain, matching the teacher's own zero-copy profiling wrapper
// (vm/stat.go's row counters layered over an existing QuerySink).
type Analyze struct {
	Label string

	rows    int64
	batches int64
}

type analyzePartitionState struct {
	slot singleSlot[*array.Batch]
}

func (a *Analyze) NewPartitionState() any { return &analyzePartitionState{} }

func (a *Analyze) PollPush(cx *Context, partitionState any, batch *array.Batch) PollPushResult {
	ps := partitionState.(*analyzePartitionState)
	if ps.slot.full() {
		ps.slot.registerWaiter(cx)
		return PollPushResult{Status: PushPending, Batch: batch}
	}
	atomic.AddInt64(&a.rows, int64(batch.NumRows))
	atomic.AddInt64(&a.batches, 1)
	ps.slot.fill(batch)
	return PollPushResult{Status: Pushed}
}

func (a *Analyze) PollFinalizePush(cx *Context, partitionState any) PollFinalizeResult {
	ps := partitionState.(*analyzePartitionState)
	ps.slot.markDone()
	return PollFinalizeResult{Status: Finalized}
}

func (a *Analyze) PollPull(cx *Context, partitionState any) PollPullResult {
	ps := partitionState.(*analyzePartitionState)
	if b, ok := ps.slot.take(); ok {
		return PollPullResult{Status: PullBatch, Batch: b}
	}
	if ps.slot.done {
		return PollPullResult{Status: PullExhausted}
	}
	ps.slot.registerWaiter(cx)
	return PollPullResult{Status: PullPending}
}

// RowCount and BatchCount report the running totals across every
// partition, safe to read concurrently with in-flight polls.
func (a *Analyze) RowCount() int64   { return atomic.LoadInt64(&a.rows) }
func (a *Analyze) BatchCount() int64 { return atomic.LoadInt64(&a.batches) }
