package exec

import "github.com/coredbio/coredb/array"

// Values is a source operator that emits a single fixed batch built at
// plan time (spec.md §4.3.6: literal row construction for `VALUES (...)`
// and single-row `SELECT` with no FROM clause). Grounded on the teacher's
// own literal-row plan node (plan/values.go).
type Values struct {
	Batch *array.Batch
}

type valuesPartitionState struct {
	emitted bool
}

func (v *Values) NewPartitionState() any { return &valuesPartitionState{} }

func (v *Values) PollPush(cx *Context, partitionState any, batch *array.Batch) PollPushResult {
	panic("exec: Values has no push side")
}

func (v *Values) PollFinalizePush(cx *Context, partitionState any) PollFinalizeResult {
	return PollFinalizeResult{Status: Finalized}
}

func (v *Values) PollPull(cx *Context, partitionState any) PollPullResult {
	ps := partitionState.(*valuesPartitionState)
	if ps.emitted {
		return PollPullResult{Status: PullExhausted}
	}
	ps.emitted = true
	return PollPullResult{Status: PullBatch, Batch: v.Batch}
}
