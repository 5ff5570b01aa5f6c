package exec

import (
	"github.com/coredbio/coredb/array"
	"github.com/coredbio/coredb/kernel"
	"github.com/coredbio/coredb/physicalexpr"
)

// Filter is a stateless operator that evaluates a boolean predicate
// against each pushed batch and composes the resulting selection with any
// selection the batch already carries (spec.md §4.3.1). Grounded on the
// teacher's own Filter naming (vm/filter.go), adapted from a blocking
// io.WriteCloser push chain to the poll/waker contract of spec.md §4.3.
type Filter struct {
	Predicate physicalexpr.Expr
}

type filterPartitionState struct {
	slot singleSlot[*array.Batch]
}

func (f *Filter) NewPartitionState() any { return &filterPartitionState{} }

func (f *Filter) PollPush(cx *Context, partitionState any, batch *array.Batch) PollPushResult {
	ps := partitionState.(*filterPartitionState)
	if ps.slot.full() {
		ps.slot.registerWaiter(cx)
		return PollPushResult{Status: PushPending, Batch: batch}
	}
	pred, err := f.Predicate.Eval(batch)
	if err != nil {
		return PollPushResult{Err: err}
	}
	sel := kernel.Select(pred)
	ps.slot.fill(batch.Select(sel))
	return PollPushResult{Status: Pushed}
}

func (f *Filter) PollFinalizePush(cx *Context, partitionState any) PollFinalizeResult {
	ps := partitionState.(*filterPartitionState)
	ps.slot.markDone()
	return PollFinalizeResult{Status: Finalized}
}

func (f *Filter) PollPull(cx *Context, partitionState any) PollPullResult {
	ps := partitionState.(*filterPartitionState)
	if b, ok := ps.slot.take(); ok {
		return PollPullResult{Status: PullBatch, Batch: b}
	}
	if ps.slot.done {
		return PollPullResult{Status: PullExhausted}
	}
	ps.slot.registerWaiter(cx)
	return PollPullResult{Status: PullPending}
}
