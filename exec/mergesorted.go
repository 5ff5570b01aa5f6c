package exec

import (
	"container/heap"
	"sync"

	"github.com/coredbio/coredb/array"
)

// SortedRun is one already-sorted sequence of batches plus one sort-key
// column resolver per batch, the unit MergeSorted merges (spec.md §4.3.4: "a k-way
// merger over RowReference iterators").
type SortedRun struct {
	Batches  []*array.Batch
	KeyExprs []sortKeyColumnFunc
}

// sortKeyColumnFunc resolves a run's sort-key columns for one of its
// batches; the cursor calls it once per batch rather than re-evaluating
// key expressions on every row comparison.
type sortKeyColumnFunc func(batch *array.Batch) []*array.Array

// runCursor walks one SortedRun batch-by-batch, row-by-row.
type runCursor struct {
	run        SortedRun
	specs      []SortKeySpec
	batchIdx   int
	row        int
	keyCols    []*array.Array
	key        []byte
}

func newRunCursor(run SortedRun, specs []SortKeySpec) *runCursor {
	c := &runCursor{run: run, specs: specs}
	c.advanceBatchIfNeeded()
	c.computeKey()
	return c
}

func (c *runCursor) advanceBatchIfNeeded() {
	for c.batchIdx < len(c.run.Batches) && c.row >= c.run.Batches[c.batchIdx].NumRows {
		c.batchIdx++
		c.row = 0
	}
	if c.batchIdx < len(c.run.Batches) {
		c.keyCols = c.run.KeyExprs[c.batchIdx](c.run.Batches[c.batchIdx])
	}
}

func (c *runCursor) computeKey() {
	if c.exhausted() {
		return
	}
	c.key = EncodeRowKey(c.keyCols, c.row, c.specs)
}

func (c *runCursor) exhausted() bool { return c.batchIdx >= len(c.run.Batches) }

func (c *runCursor) currentBatch() *array.Batch { return c.run.Batches[c.batchIdx] }

func (c *runCursor) advance() {
	c.row++
	c.advanceBatchIfNeeded()
	c.computeKey()
}

// mergeHeap is a min-heap of runCursors ordered by their current row key.
type mergeHeap []*runCursor

func (h mergeHeap) Len() int            { return len(h) }
func (h mergeHeap) Less(i, j int) bool  { return bytesLess(h[i].key, h[j].key) }
func (h mergeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x any)         { *h = append(*h, x.(*runCursor)) }
func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// MergeSorted merges N pre-sorted runs into one globally sorted stream
// via a min-heap over per-run row cursors (spec.md §4.3.4), used when
// upstream partitions already produced sorted output (e.g. each
// OrderBy partition's own local run) and only a merge, not a full
// re-sort, is needed to restore a single global order.
type MergeSorted struct {
	KeySpecs  []SortKeySpec
	Runs      func() []SortedRun // read once, on the first PollPull
	ChunkSize int

	mu      sync.Mutex
	started bool
	h       mergeHeap

	pullMu sync.Mutex
}

type mergeSortedPartitionState struct{}

func (m *MergeSorted) chunkSize() int {
	if m.ChunkSize <= 0 {
		return 4096
	}
	return m.ChunkSize
}

func (m *MergeSorted) NewPartitionState() any { return &mergeSortedPartitionState{} }

// PollPush is unused: MergeSorted is a source fed by Runs, not by pushed
// batches.
func (m *MergeSorted) PollPush(cx *Context, partitionState any, batch *array.Batch) PollPushResult {
	panic("exec: MergeSorted has no push side")
}

func (m *MergeSorted) PollFinalizePush(cx *Context, partitionState any) PollFinalizeResult {
	return PollFinalizeResult{Status: Finalized}
}

func (m *MergeSorted) ensureStarted() {
	if m.started {
		return
	}
	m.started = true
	for _, run := range m.Runs() {
		c := newRunCursor(run, m.KeySpecs)
		if !c.exhausted() {
			m.h = append(m.h, c)
		}
	}
	heap.Init(&m.h)
}

// PollPull drains up to ChunkSize rows in merged order. Grounded on the
// teacher's own merge-iterator style (plan/order.go's runMerger),
// generalized to a heap keyed by the byte-encoded sort key rather than a
// single-column comparator.
func (m *MergeSorted) PollPull(cx *Context, partitionState any) PollPullResult {
	m.pullMu.Lock()
	defer m.pullMu.Unlock()

	m.mu.Lock()
	m.ensureStarted()
	m.mu.Unlock()

	if m.h.Len() == 0 {
		return PollPullResult{Status: PullExhausted}
	}

	n := m.chunkSize()
	rows := make([]sortedRow, 0, n)
	for m.h.Len() > 0 && len(rows) < n {
		c := m.h[0]
		rows = append(rows, sortedRow{batch: c.currentBatch(), row: c.row})
		c.advance()
		if c.exhausted() {
			heap.Pop(&m.h)
		} else {
			heap.Fix(&m.h, 0)
		}
	}
	return PollPullResult{Status: PullBatch, Batch: gatherRows(rows)}
}
