package exec

import "github.com/coredbio/coredb/array"

// Empty is the zero-row source used when a query's predicate is
// statically known to select nothing (spec.md §4.3.6: "Empty always
// returns Exhausted on the first pull"). Grounded on the teacher's own
// no-op plan node (plan/noop.go).
type Empty struct{}

func (Empty) NewPartitionState() any { return nil }

func (Empty) PollPush(cx *Context, partitionState any, batch *array.Batch) PollPushResult {
	panic("exec: Empty has no push side")
}

func (Empty) PollFinalizePush(cx *Context, partitionState any) PollFinalizeResult {
	return PollFinalizeResult{Status: Finalized}
}

func (Empty) PollPull(cx *Context, partitionState any) PollPullResult {
	return PollPullResult{Status: PullExhausted}
}
