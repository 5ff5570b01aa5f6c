package sched

import (
	"context"
	"sync"
	"testing"

	"github.com/coredbio/coredb/array"
	"github.com/coredbio/coredb/exec"
)

func rowsBatch(n int) *array.Batch {
	vals := make([]int64, n)
	for i := range vals {
		vals[i] = int64(i)
	}
	col := &array.Array{
		Type:     array.DataType{ID: array.Int64},
		Storage:  &array.Int64Storage{Values: vals},
		Validity: array.NewBitmapAllValid(n),
	}
	return array.NewBatch([]*array.Array{col}, n)
}

// TestChainSingleStageDrain exercises the degenerate one-stage chain: the
// final-drain path is reached immediately (finalizedUpTo >= len-1 at
// construction), so PollExecute never touches the push side at all.
func TestChainSingleStageDrain(t *testing.T) {
	src := &exec.Values{Batch: rowsBatch(3)}
	var got []*array.Batch
	c := &Chain{
		Stages:  []exec.Operator{src},
		States:  []any{src.NewPartitionState()},
		Results: func(b *array.Batch) { got = append(got, b) },
	}

	pool := NewPool(2)
	h := NewQueryHandle(pool, []*Chain{c})
	if err := h.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].NumRows != 3 {
		t.Fatalf("got %+v", got)
	}
}

// flakySink implements exec.Operator directly (rather than using
// exec.Sink) so the test can capture the exact Waker each suspension
// installs and fire it itself, exercising Pool's re-spawn-on-Wake path
// deterministically instead of racing a background writer.
type flakySink struct {
	mu           sync.Mutex
	pushN        int
	finalN       int
	pushed       []*array.Batch
	wakerCh      chan exec.Waker
	finalWakerCh chan exec.Waker
}

func newFlakySink() *flakySink {
	return &flakySink{wakerCh: make(chan exec.Waker, 1), finalWakerCh: make(chan exec.Waker, 1)}
}

func (f *flakySink) NewPartitionState() any { return nil }

func (f *flakySink) PollPush(cx *exec.Context, _ any, b *array.Batch) exec.PollPushResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushN++
	if f.pushN == 1 {
		f.wakerCh <- cx.Waker
		return exec.PollPushResult{Status: exec.PushPending, Batch: b}
	}
	f.pushed = append(f.pushed, b)
	return exec.PollPushResult{Status: exec.Pushed}
}

func (f *flakySink) PollFinalizePush(cx *exec.Context, _ any) exec.PollFinalizeResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalN++
	if f.finalN == 1 {
		f.finalWakerCh <- cx.Waker
		return exec.PollFinalizeResult{Status: exec.FinalizePending}
	}
	return exec.PollFinalizeResult{Status: exec.Finalized}
}

func (f *flakySink) PollPull(cx *exec.Context, _ any) exec.PollPullResult {
	return exec.PollPullResult{Status: exec.PullExhausted}
}

// TestChainTwoStageSuspendAndWake drives a source→sink chain where the
// sink rejects its first push and its first finalize, checking that each
// suspension's waker, once fired, resumes the pipeline to completion.
func TestChainTwoStageSuspendAndWake(t *testing.T) {
	src := &exec.Values{Batch: rowsBatch(5)}
	sink := newFlakySink()
	c := &Chain{
		Stages: []exec.Operator{src, sink},
		States: []any{src.NewPartitionState(), sink.NewPartitionState()},
	}

	pool := NewPool(2)
	h := NewQueryHandle(pool, []*Chain{c})

	errCh := make(chan error, 1)
	go func() { errCh <- h.Run(context.Background()) }()

	(<-sink.wakerCh).Wake()
	(<-sink.finalWakerCh).Wake()

	if err := <-errCh; err != nil {
		t.Fatal(err)
	}
	if len(sink.pushed) != 1 || sink.pushed[0].NumRows != 5 {
		t.Fatalf("pushed = %+v", sink.pushed)
	}
	if sink.pushN < 2 || sink.finalN < 2 {
		t.Fatalf("expected a retried push and finalize, got pushN=%d finalN=%d", sink.pushN, sink.finalN)
	}
}

// stuckSink never accepts a push or a finalize; a task parked on it only
// ever makes progress again via cancellation.
type stuckSink struct{}

func (stuckSink) NewPartitionState() any { return nil }
func (stuckSink) PollPush(cx *exec.Context, _ any, b *array.Batch) exec.PollPushResult {
	return exec.PollPushResult{Status: exec.PushPending, Batch: b}
}
func (stuckSink) PollFinalizePush(cx *exec.Context, _ any) exec.PollFinalizeResult {
	return exec.PollFinalizeResult{Status: exec.FinalizePending}
}
func (stuckSink) PollPull(cx *exec.Context, _ any) exec.PollPullResult {
	return exec.PollPullResult{Status: exec.PullExhausted}
}

func TestQueryHandleCancelPreCanceledContext(t *testing.T) {
	src := &exec.Values{Batch: rowsBatch(1)}
	c := &Chain{
		Stages: []exec.Operator{src, stuckSink{}},
		States: []any{src.NewPartitionState(), stuckSink{}.NewPartitionState()},
	}

	pool := NewPool(2)
	h := NewQueryHandle(pool, []*Chain{c})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.Run(ctx); err == nil {
		t.Fatal("expected an error from a pre-canceled context")
	}
}
