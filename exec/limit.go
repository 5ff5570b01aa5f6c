package exec

import (
	"sync"
	"sync/atomic"

	"github.com/coredbio/coredb/array"
)

// Limit applies an OFFSET/LIMIT pair across the whole query, not per
// partition: a shared counter pair tracks how many rows remain to skip
// and how many remain to emit, so a multi-partition Limit still produces
// exactly Count rows total (spec.md §4.3.1). Grounded on the teacher's
// own vm/limit.go (a shared atomic row budget across concurrent table
// chunks), generalized to the explicit PushBreak signal spec.md §4.3
// requires once the budget is exhausted.
type Limit struct {
	Offset int64
	Count  int64 // <0 means unlimited

	remainingOffset int64
	remainingCount  int64
	initOnce        sync.Once
}

type limitPartitionState struct {
	slot singleSlot[*array.Batch]
}

func (l *Limit) init() {
	l.initOnce.Do(func() {
		atomic.StoreInt64(&l.remainingOffset, l.Offset)
		if l.Count < 0 {
			atomic.StoreInt64(&l.remainingCount, -1)
		} else {
			atomic.StoreInt64(&l.remainingCount, l.Count)
		}
	})
}

func (l *Limit) NewPartitionState() any { return &limitPartitionState{} }

// PollPush consumes rows from batch against the shared offset/count
// budget, emitting the surviving slice (possibly empty, possibly the
// whole batch) and returning PushBreak once the budget can admit no more
// rows, signaling every partition to stop pushing (spec.md §4.3.1: "once
// Count rows have been emitted, remaining partitions should stop").
func (l *Limit) PollPush(cx *Context, partitionState any, batch *array.Batch) PollPushResult {
	l.init()
	ps := partitionState.(*limitPartitionState)
	if ps.slot.full() {
		ps.slot.registerWaiter(cx)
		return PollPushResult{Status: PushPending, Batch: batch}
	}

	n := int64(batch.NumRows)
	skip := claimBudget(&l.remainingOffset, n)
	afterSkip := n - skip
	if afterSkip <= 0 {
		return l.statusAfterClaim()
	}

	take := afterSkip
	if limit := atomic.LoadInt64(&l.remainingCount); limit >= 0 {
		take = claimBudget(&l.remainingCount, afterSkip)
	}
	if take <= 0 {
		return l.statusAfterClaim()
	}

	sliced := batch.Slice(int(skip), int(take))
	ps.slot.fill(sliced)
	return l.statusAfterClaim()
}

func (l *Limit) statusAfterClaim() PollPushResult {
	if atomic.LoadInt64(&l.remainingCount) == 0 {
		return PollPushResult{Status: PushBreak}
	}
	return PollPushResult{Status: Pushed}
}

// claimBudget atomically claims up to want units from a shared counter
// that starts non-negative and may be permanently unlimited (-1, never
// touched by this function — callers must not call it on an unlimited
// counter).
func claimBudget(counter *int64, want int64) int64 {
	for {
		cur := atomic.LoadInt64(counter)
		if cur <= 0 {
			return 0
		}
		claim := want
		if claim > cur {
			claim = cur
		}
		if atomic.CompareAndSwapInt64(counter, cur, cur-claim) {
			return claim
		}
	}
}

func (l *Limit) PollFinalizePush(cx *Context, partitionState any) PollFinalizeResult {
	ps := partitionState.(*limitPartitionState)
	ps.slot.markDone()
	return PollFinalizeResult{Status: Finalized}
}

func (l *Limit) PollPull(cx *Context, partitionState any) PollPullResult {
	ps := partitionState.(*limitPartitionState)
	if b, ok := ps.slot.take(); ok {
		return PollPullResult{Status: PullBatch, Batch: b}
	}
	if ps.slot.done {
		return PollPullResult{Status: PullExhausted}
	}
	ps.slot.registerWaiter(cx)
	return PollPullResult{Status: PullPending}
}
