package exec

import "github.com/coredbio/coredb/array"

// SinkWriter is the external collaborator a CopyTo/Insert sink drives
// through a non-blocking TryPush/TryFinalize pair: each reports ok=true
// when the call completed, or ok=false when Sink must retry it on a later
// poll.
type SinkWriter interface {
	// TryPush attempts to write batch; ok=false means it was not
	// accepted and the caller must retry after resource becomes ready.
	TryPush(batch *array.Batch) (ok bool, err error)
	// TryFinalize attempts to flush/close the sink; ok=false means
	// finalize has not completed yet.
	TryFinalize() (ok bool, err error)
}

// sinkPhase is the CopyTo/Insert three-state machine (spec.md §4.3.8):
// Writing accepts pushed batches, Finalizing drains the writer's close,
// Finished has nothing left to do.
type sinkPhase int

const (
	sinkWriting sinkPhase = iota
	sinkFinalizing
	sinkFinished
)

// Sink is the CopyTo/Insert operator: every pushed batch is forwarded to
// Writer.TryPush; PollFinalizePush drives Writer.TryFinalize to
// completion. Grounded on the teacher's own insert/copy sink shape
// (db/... table writer, cmd/snellerd ingest handlers), generalized to the
// explicit Writing/Finalizing/Finished machine spec.md names.
type Sink struct {
	NewWriter func() SinkWriter
}

type sinkPartitionState struct {
	writer  SinkWriter
	phase   sinkPhase
	pending *array.Batch // batch awaiting TryPush retry
	waiters []Waker
}

func (s *Sink) NewPartitionState() any {
	return &sinkPartitionState{writer: s.NewWriter()}
}

func (s *Sink) PollPush(cx *Context, partitionState any, batch *array.Batch) PollPushResult {
	ps := partitionState.(*sinkPartitionState)
	target := batch
	if ps.pending != nil {
		target = ps.pending
	}
	ok, err := ps.writer.TryPush(target)
	if err != nil {
		return PollPushResult{Err: err}
	}
	if !ok {
		ps.pending = target
		ps.registerWaiter(cx)
		return PollPushResult{Status: PushPending, Batch: batch}
	}
	ps.pending = nil
	return PollPushResult{Status: Pushed}
}

func (s *Sink) PollFinalizePush(cx *Context, partitionState any) PollFinalizeResult {
	ps := partitionState.(*sinkPartitionState)
	if ps.phase == sinkFinished {
		return PollFinalizeResult{Status: Finalized}
	}
	ps.phase = sinkFinalizing
	ok, err := ps.writer.TryFinalize()
	if err != nil {
		return PollFinalizeResult{Err: err}
	}
	if !ok {
		ps.registerWaiter(cx)
		return PollFinalizeResult{Status: FinalizePending}
	}
	ps.phase = sinkFinished
	return PollFinalizeResult{Status: Finalized}
}

// PollPull on a pure sink always reports Exhausted: a sink has no output
// side of its own (its query-visible result, if any, is a row count a
// caller reads off the writer directly).
func (s *Sink) PollPull(cx *Context, partitionState any) PollPullResult {
	return PollPullResult{Status: PullExhausted}
}

func (ps *sinkPartitionState) registerWaiter(cx *Context) {
	if cx != nil && cx.Waker != nil {
		ps.waiters = append(ps.waiters, cx.Waker)
	}
}
