package exec

import (
	"sort"
	"sync"

	"github.com/coredbio/coredb/array"
	"github.com/coredbio/coredb/physicalexpr"
)

// OrderBy sorts every pushed row by a list of key expressions (spec.md
// §4.3.4). Every partition buffers its own pushed rows; at the finalize
// barrier the buffered rows from every partition are merged and sorted
// once, then drained through PollPull in fixed-size chunks -- the same
// partition-local-build-then-barrier-merge shape as HashAggregate,
// grounded on the teacher's own order-by buffering (plan/order.go, which
// spills a full in-memory run before emitting), generalized to the
// explicit poll/waker contract.
type OrderBy struct {
	Keys      []physicalexpr.Expr
	KeySpecs  []SortKeySpec
	ChunkSize int
	NumPartitions int

	mu                sync.Mutex
	pendingPartitions int
	pendingInit       bool
	localRuns         [][]sortedRow
	sorted            []sortedRow
	merged            bool
	waiters           []Waker

	pullMu   sync.Mutex
	pullAt   int
}

type sortedRow struct {
	key    []byte
	batch  *array.Batch
	row    int
}

type orderByPartitionState struct {
	rows         []sortedRow
	finalizeOnce bool
}

func (o *OrderBy) chunkSize() int {
	if o.ChunkSize <= 0 {
		return 4096
	}
	return o.ChunkSize
}

func (o *OrderBy) NewPartitionState() any { return &orderByPartitionState{} }

func (o *OrderBy) PollPush(cx *Context, partitionState any, batch *array.Batch) PollPushResult {
	ps := partitionState.(*orderByPartitionState)
	keyCols := make([]*array.Array, len(o.Keys))
	for i, e := range o.Keys {
		c, err := e.Eval(batch)
		if err != nil {
			return PollPushResult{Err: err}
		}
		keyCols[i] = c
	}
	for row := 0; row < batch.NumRows; row++ {
		ps.rows = append(ps.rows, sortedRow{
			key:   EncodeRowKey(keyCols, row, o.KeySpecs),
			batch: batch,
			row:   row,
		})
	}
	return PollPushResult{Status: Pushed}
}

func (o *OrderBy) PollFinalizePush(cx *Context, partitionState any) PollFinalizeResult {
	ps := partitionState.(*orderByPartitionState)

	o.mu.Lock()
	if !o.pendingInit {
		o.pendingInit = true
		o.pendingPartitions = o.NumPartitions
		if o.pendingPartitions <= 0 {
			o.pendingPartitions = 1
		}
	}
	if !ps.finalizeOnce {
		ps.finalizeOnce = true
		o.localRuns = append(o.localRuns, ps.rows)
		o.pendingPartitions--
	}
	ready := o.pendingPartitions <= 0
	if ready && !o.merged {
		o.mergeLocked()
	}
	var waiters []Waker
	if ready {
		waiters, o.waiters = o.waiters, nil
	} else if cx != nil && cx.Waker != nil {
		o.waiters = append(o.waiters, cx.Waker)
	}
	o.mu.Unlock()

	for _, w := range waiters {
		w.Wake()
	}
	if ready {
		return PollFinalizeResult{Status: Finalized}
	}
	return PollFinalizeResult{Status: FinalizePending}
}

func (o *OrderBy) mergeLocked() {
	o.merged = true
	n := 0
	for _, run := range o.localRuns {
		n += len(run)
	}
	all := make([]sortedRow, 0, n)
	for _, run := range o.localRuns {
		all = append(all, run...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return bytesLess(all[i].key, all[j].key)
	})
	o.sorted = all
}

func bytesLess(a, b []byte) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

func (o *OrderBy) PollPull(cx *Context, partitionState any) PollPullResult {
	o.mu.Lock()
	merged := o.merged
	o.mu.Unlock()
	if !merged {
		if cx != nil && cx.Waker != nil {
			o.mu.Lock()
			o.waiters = append(o.waiters, cx.Waker)
			o.mu.Unlock()
		}
		return PollPullResult{Status: PullPending}
	}

	o.pullMu.Lock()
	defer o.pullMu.Unlock()
	if o.pullAt >= len(o.sorted) {
		return PollPullResult{Status: PullExhausted}
	}
	n := len(o.sorted) - o.pullAt
	if cs := o.chunkSize(); n > cs {
		n = cs
	}
	chunk := o.sorted[o.pullAt : o.pullAt+n]
	o.pullAt += n
	return PollPullResult{Status: PullBatch, Batch: gatherRows(chunk)}
}

// gatherRows builds one output batch from a slice of sortedRow, each
// potentially from a different source batch (schemas must all match).
func gatherRows(rows []sortedRow) *array.Batch {
	if len(rows) == 0 {
		return array.NewBatch(nil, 0)
	}
	numCols := rows[0].batch.NumCols()
	cols := make([]*array.Array, numCols)
	for ci := 0; ci < numCols; ci++ {
		srcArrays := make([]*array.Array, len(rows))
		refs := make([]array.RowRef, len(rows))
		for i, r := range rows {
			srcArrays[i] = r.batch.Column(ci)
			refs[i] = array.RowRef{Src: int32(i), Row: int32(r.row)}
		}
		cols[ci] = array.Interleave(srcArrays, refs)
	}
	return array.NewBatch(cols, len(rows))
}
