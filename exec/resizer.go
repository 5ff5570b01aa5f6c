package exec

import "github.com/coredbio/coredb/array"

// BatchResizer accumulates pushed batches and re-slices them to a fixed
// target row count, so downstream operators always see uniformly sized
// batches regardless of how upstream chunked its output (spec.md
// §4.3.1). Grounded on the teacher's own chunk-size normalization in
// vm/table.go, adapted to the poll/waker contract: an overshoot batch is
// sliced, with the remainder buffered for the next PollPull rather than
// pushed back to the caller.
type BatchResizer struct {
	TargetSize int
}

type resizerPartitionState struct {
	buffered []*array.Batch // rows not yet emitted, in arrival order
	total    int
	done     bool
	waiters  []Waker
}

func (ps *resizerPartitionState) wake() {
	for _, w := range ps.waiters {
		w.Wake()
	}
	ps.waiters = ps.waiters[:0]
}

func (r *BatchResizer) targetSize() int {
	if r.TargetSize <= 0 {
		return 4096
	}
	return r.TargetSize
}

func (r *BatchResizer) NewPartitionState() any { return &resizerPartitionState{} }

func (r *BatchResizer) PollPush(cx *Context, partitionState any, batch *array.Batch) PollPushResult {
	ps := partitionState.(*resizerPartitionState)
	if batch.NumRows > 0 {
		ps.buffered = append(ps.buffered, batch)
		ps.total += batch.NumRows
	}
	ps.wake()
	return PollPushResult{Status: Pushed}
}

func (r *BatchResizer) PollFinalizePush(cx *Context, partitionState any) PollFinalizeResult {
	ps := partitionState.(*resizerPartitionState)
	ps.done = true
	ps.wake()
	return PollFinalizeResult{Status: Finalized}
}

// PollPull emits one TargetSize-row batch at a time, gathered from
// however many buffered batches are needed, via Interleave (which copies
// the gathered rows; a lone buffered batch of exactly the needed size is
// passed through uncopied). The final, possibly short, chunk is emitted
// once PollPush has been finalized and fewer than TargetSize rows remain.
func (r *BatchResizer) PollPull(cx *Context, partitionState any) PollPullResult {
	ps := partitionState.(*resizerPartitionState)
	target := r.targetSize()

	if ps.total == 0 {
		if ps.done {
			return PollPullResult{Status: PullExhausted}
		}
		if cx != nil && cx.Waker != nil {
			ps.waiters = append(ps.waiters, cx.Waker)
		}
		return PollPullResult{Status: PullPending}
	}
	if ps.total < target && !ps.done {
		if cx != nil && cx.Waker != nil {
			ps.waiters = append(ps.waiters, cx.Waker)
		}
		return PollPullResult{Status: PullPending}
	}

	n := target
	if n > ps.total {
		n = ps.total
	}

	if len(ps.buffered) == 1 && ps.buffered[0].NumRows == n {
		b := ps.buffered[0]
		ps.buffered = nil
		ps.total -= n
		return PollPullResult{Status: PullBatch, Batch: b}
	}

	var refs []array.RowRef
	remaining := n
	consumed := 0
	var rest *array.Batch
	for consumed < len(ps.buffered) && remaining > 0 {
		b := ps.buffered[consumed]
		take := b.NumRows
		if take > remaining {
			take = remaining
		}
		for row := 0; row < take; row++ {
			refs = append(refs, array.RowRef{Src: int32(consumed), Row: int32(row)})
		}
		remaining -= take
		if take == b.NumRows {
			consumed++
		} else {
			rest = b.Slice(take, b.NumRows-take)
		}
	}

	var numCols int
	if len(ps.buffered) > 0 {
		numCols = ps.buffered[0].NumCols()
	}
	cols := make([]*array.Array, numCols)
	for ci := 0; ci < numCols; ci++ {
		srcArrays := make([]*array.Array, consumed+1)
		for i := 0; i <= consumed && i < len(ps.buffered); i++ {
			srcArrays[i] = ps.buffered[i].Column(ci)
		}
		cols[ci] = array.Interleave(srcArrays[:min(consumed+1, len(ps.buffered))], refs)
	}
	if rest != nil {
		ps.buffered[consumed] = rest
	}
	ps.buffered = ps.buffered[consumed:]
	ps.total -= n

	return PollPullResult{Status: PullBatch, Batch: array.NewBatch(cols, n)}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
