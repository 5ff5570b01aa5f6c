// Package exec implements the non-blocking operator state machines of
// spec.md §4.3: Filter, Project, HashAggregate, HashJoin, OrderBy,
// MergeSorted, Limit, BatchResizer, Materialize, CopyTo/Insert,
// TableFunction/Scan, Empty, Analyze, Values, and CreateSchema/
// CreateTable. Every operator exposes poll_push / poll_finalize_push /
// poll_pull with explicit pending wakers (spec.md §4.3, §5).
//
// The teacher's own push chain (vm.QuerySink / vm.rowConsumer in
// vm/filter.go, vm/limit.go) is a blocking io.WriteCloser chain driven
// synchronously by one goroutine per table chunk; it has no notion of
// "Pending" or a waker, because sneller's execution model never needs one.
// spec.md §5 requires exactly that non-blocking poll/waker model, so
// exec's contract is new code grounded on spec.md's own description, kept
// in the teacher's naming and error-handling idiom rather than ported
// from vm's blocking chain.
package exec

import "github.com/coredbio/coredb/array"

// Waker is installed by an operator before it returns Pending, and invoked
// by whatever resource will later make progress possible (an output slot
// draining, an input queue filling, a sink future resolving, a broadcast
// receiver advancing, a join/aggregate build barrier releasing). Wakers
// are single-shot per registration: Wake may only be called once for each
// time it was handed to an operator, and the operator must re-register a
// fresh waker on every subsequent Pending return (spec.md §9).
type Waker interface {
	Wake()
}

// Context carries the current poll's waker and a cancellation check.
// It is the cx argument spec.md §4.3 passes to every poll method.
type Context struct {
	Waker    Waker
	Canceled func() bool
}

// IsCanceled reports whether the query driving this poll has been
// canceled (spec.md §5: "QueryHandle::cancel() sets a query-wide flag").
func (c *Context) IsCanceled() bool {
	return c.Canceled != nil && c.Canceled()
}

// PushStatus is the outcome of a PollPush call.
type PushStatus int

const (
	// Pushed indicates the batch was fully consumed.
	Pushed PushStatus = iota
	// PushPending indicates the operator could not accept the batch yet;
	// the caller must retry the same batch later, after the waker
	// installed during this call fires.
	PushPending
	// PushBreak indicates the operator will not accept any more input;
	// PollFinalizePush must not be called afterwards.
	PushBreak
)

// PollPushResult is returned by PollPush. An Err makes Status
// meaningless; the pipeline task forwards Err to the query-wide error
// sink (spec.md §7: "poll_push/poll_pull encode the error as
// Ready(Some(Err))") and treats the partition as broken.
type PollPushResult struct {
	Status PushStatus
	// Batch is the batch to retry, populated only when Status is
	// PushPending.
	Batch *array.Batch
	Err   error
}

// FinalizeStatus is the outcome of a PollFinalizePush call.
type FinalizeStatus int

const (
	// Finalized indicates the operator has completed its build/finalize
	// phase.
	Finalized FinalizeStatus = iota
	// FinalizePending indicates finalize is still in progress (e.g.
	// waiting on sibling partitions at a barrier).
	FinalizePending
)

// PollFinalizeResult is returned by PollFinalizePush.
type PollFinalizeResult struct {
	Status FinalizeStatus
	Err    error
}

// PullStatus is the outcome of a PollPull call.
type PullStatus int

const (
	// PullBatch indicates a batch is available.
	PullBatch PullStatus = iota
	// PullPending indicates no batch is available yet.
	PullPending
	// PullExhausted indicates the operator has no more output and will
	// not produce any, ever.
	PullExhausted
)

// PollPullResult is returned by PollPull.
type PollPullResult struct {
	Status PullStatus
	Batch  *array.Batch
	Err    error
}

// Operator is the interface every physical operator implements (spec.md
// §4.3). Partition-local state is created once per partition by
// NewPartitionState and thereafter passed back in by the caller on every
// poll call, owned exclusively by the scheduler (spec.md §3:
// "Ownership"). Operator-wide state that must be visible and
// synchronized across partitions (an aggregate's global hash table, a
// join's build-side barrier) lives inside the Operator value itself and
// must be safe for concurrent use from multiple partitions' polls.
type Operator interface {
	// NewPartitionState constructs the per-partition state this operator
	// needs; it is called once when a partition pipeline is built.
	NewPartitionState() any

	// PollPush pushes one batch of input into the operator. Operators
	// with no input side (sources) should never have PollPush called and
	// may panic if it is.
	PollPush(cx *Context, partitionState any, batch *array.Batch) PollPushResult

	// PollFinalizePush signals that no partition will push any more
	// input; operators with a build/barrier phase (HashAggregate,
	// HashJoin, OrderBy) use this to trigger their merge.
	PollFinalizePush(cx *Context, partitionState any) PollFinalizeResult

	// PollPull pulls one batch of output from the operator.
	PollPull(cx *Context, partitionState any) PollPullResult
}
