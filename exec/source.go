package exec

import "github.com/coredbio/coredb/array"

// SourcePuller is the external collaborator a TableFunction/Scan source
// drives: TryPull is the non-blocking form of spec.md §4.3.8's
// `pull() -> Option<Batch>` future, with ok=false meaning the pull has
// not produced a result yet (retry after being woken) and batch=nil,
// ok=true meaning the source is exhausted.
type SourcePuller interface {
	TryPull() (batch *array.Batch, ok bool, err error)
}

// Scan is the TableFunction/Scan source operator: it owns an in-flight
// pull across poll invocations, stored in its partition state, matching
// spec.md §4.3.8 ("the operator owns the in-flight pull future across
// poll invocations"). Grounded on the teacher's own table-scan iterator
// (vm/table.go's rowConsumer source side).
type Scan struct {
	NewPuller func() SourcePuller
}

type scanPartitionState struct {
	puller    SourcePuller
	exhausted bool
	waiters   []Waker
}

func (s *Scan) NewPartitionState() any {
	return &scanPartitionState{puller: s.NewPuller()}
}

func (s *Scan) PollPush(cx *Context, partitionState any, batch *array.Batch) PollPushResult {
	panic("exec: Scan has no push side")
}

func (s *Scan) PollFinalizePush(cx *Context, partitionState any) PollFinalizeResult {
	return PollFinalizeResult{Status: Finalized}
}

func (s *Scan) PollPull(cx *Context, partitionState any) PollPullResult {
	ps := partitionState.(*scanPartitionState)
	if ps.exhausted {
		return PollPullResult{Status: PullExhausted}
	}
	batch, ok, err := ps.puller.TryPull()
	if err != nil {
		return PollPullResult{Err: err}
	}
	if !ok {
		if cx != nil && cx.Waker != nil {
			ps.waiters = append(ps.waiters, cx.Waker)
		}
		return PollPullResult{Status: PullPending}
	}
	if batch == nil {
		ps.exhausted = true
		return PollPullResult{Status: PullExhausted}
	}
	return PollPullResult{Status: PullBatch, Batch: batch}
}
