package exec

import (
	"github.com/coredbio/coredb/array"
	"github.com/coredbio/coredb/physicalexpr"
)

// Project is a stateless operator that evaluates a list of output
// expressions against each pushed batch and emits a new batch (spec.md
// §4.3.1). When the operator has zero input columns (e.g. `SELECT 1`),
// scalar-valued output arrays of length 1 are broadcast to the batch's
// row count.
type Project struct {
	Outputs []physicalexpr.Expr
	// NoInputColumns marks a projection with no column references at
	// all, triggering the length-1 broadcast rule.
	NoInputColumns bool
}

type projectPartitionState struct {
	slot singleSlot[*array.Batch]
}

func (p *Project) NewPartitionState() any { return &projectPartitionState{} }

func (p *Project) PollPush(cx *Context, partitionState any, batch *array.Batch) PollPushResult {
	ps := partitionState.(*projectPartitionState)
	if ps.slot.full() {
		ps.slot.registerWaiter(cx)
		return PollPushResult{Status: PushPending, Batch: batch}
	}
	cols := make([]*array.Array, len(p.Outputs))
	for i, e := range p.Outputs {
		out, err := e.Eval(batch)
		if err != nil {
			return PollPushResult{Err: err}
		}
		if p.NoInputColumns && out.LogicalLen() == 1 && batch.NumRows != 1 {
			out = broadcast(out, batch.NumRows)
		}
		cols[i] = out
	}
	ps.slot.fill(array.NewBatch(cols, batch.NumRows))
	return PollPushResult{Status: Pushed}
}

func broadcast(a *array.Array, n int) *array.Array {
	idx := make([]int32, n)
	return a.Select(array.NewSelection(idx))
}

func (p *Project) PollFinalizePush(cx *Context, partitionState any) PollFinalizeResult {
	ps := partitionState.(*projectPartitionState)
	ps.slot.markDone()
	return PollFinalizeResult{Status: Finalized}
}

func (p *Project) PollPull(cx *Context, partitionState any) PollPullResult {
	ps := partitionState.(*projectPartitionState)
	if b, ok := ps.slot.take(); ok {
		return PollPullResult{Status: PullBatch, Batch: b}
	}
	if ps.slot.done {
		return PollPullResult{Status: PullExhausted}
	}
	ps.slot.registerWaiter(cx)
	return PollPullResult{Status: PullPending}
}
