package exec

import (
	"sync"

	"github.com/coredbio/coredb/array"
	"github.com/coredbio/coredb/kernel"
	"github.com/coredbio/coredb/physicalexpr"
)

// AggregateSpec names one output aggregate column: its state constructor,
// the input expression it reads (nil for a "unit accessor" aggregate like
// COUNT(*) that needs no input column, spec.md §4.3.2), and its output
// type.
type AggregateSpec struct {
	NewState kernel.AggregateFunc
	Input    physicalexpr.Expr
	OutType  array.DataType
	Name     string
}

// groupAddr is a stable (chunk_idx, row_idx_within_chunk) address into an
// aggTable's group chunks (spec.md §3: "GroupChunk"). Chunks never move,
// so a groupAddr handed out by findOrCreate stays valid for the table's
// lifetime.
type groupAddr struct {
	chunk, row int
}

// groupChunk is a contiguous block of groups: one hash, one materialized
// key row, and one aggregate state per (group, aggregate) (spec.md §3).
type groupChunk struct {
	chunkIdx int
	hashes   []uint64
	keys     [][]array.Scalar         // keys[col][row]
	states   [][]kernel.AggregateState // states[aggIdx][row]
}

// aggTable is the open-addressed (via Go map buckets keyed by hash, with
// an explicit equality check to resolve collisions) group hash table
// spec.md §4.3.2 describes.
type aggTable struct {
	chunkSize int
	keyTypes  []array.DataType
	newStates func() []kernel.AggregateState

	buckets map[uint64][]groupAddr
	chunks  []*groupChunk
}

func newAggTable(chunkSize int, keyTypes []array.DataType, newStates func() []kernel.AggregateState) *aggTable {
	return &aggTable{
		chunkSize: chunkSize,
		keyTypes:  keyTypes,
		newStates: newStates,
		buckets:   make(map[uint64][]groupAddr),
	}
}

func (t *aggTable) groupCount() int {
	if len(t.chunks) == 0 {
		return 0
	}
	n := 0
	for _, c := range t.chunks {
		n += len(c.hashes)
	}
	return n
}

func rowKeyEquals(keys [][]array.Scalar, row int, candidate []array.Scalar) bool {
	for i, v := range candidate {
		if !array.ScalarEqual(keys[i][row], v) {
			return false
		}
	}
	return true
}

// findOrCreateGroupIndex is find_or_create_group_index (spec.md §4.3.2):
// look up (hash, group_row_equals) in the table; on hit return the
// existing address, on miss allocate a new group in every aggregate
// state vector (asserting the index agrees across all of them, which
// holds here by construction since every chunk's state vectors only ever
// grow in lockstep with its keys) and append the new group's key row.
func (t *aggTable) findOrCreateGroupIndex(hash uint64, keyRow []array.Scalar) groupAddr {
	for _, addr := range t.buckets[hash] {
		c := t.chunks[addr.chunk]
		if rowKeyEquals(c.keys, addr.row, keyRow) {
			return addr
		}
	}
	c := t.currentChunk()
	row := len(c.hashes)
	c.hashes = append(c.hashes, hash)
	for i, v := range keyRow {
		c.keys[i] = append(c.keys[i], v)
	}
	states := t.newStates()
	if len(states) != len(c.states) {
		panic("aggTable: new_group returned the wrong number of aggregate states")
	}
	for i, s := range states {
		c.states[i] = append(c.states[i], s)
	}
	addr := groupAddr{chunk: c.chunkIdx, row: row}
	t.buckets[hash] = append(t.buckets[hash], addr)
	return addr
}

func (t *aggTable) currentChunk() *groupChunk {
	if len(t.chunks) == 0 || len(t.chunks[len(t.chunks)-1].hashes) >= t.chunkSize {
		c := &groupChunk{
			chunkIdx: len(t.chunks),
			keys:     make([][]array.Scalar, len(t.keyTypes)),
			states:   make([][]kernel.AggregateState, len(t.newStates())),
		}
		// newStates() above was only called to learn the aggregate
		// count; discard its instances, currentChunk does not itself
		// allocate a group.
		t.chunks = append(t.chunks, c)
	}
	return t.chunks[len(t.chunks)-1]
}

// HashAggregate groups rows by zero or more key columns and maintains one
// aggregate state per (group, aggregate) (spec.md §4.3.2). Grounded on the
// teacher's own group-by hash table (vm/hash_aggregate.go) for the overall
// shape (a local per-partition table merged into a global one at
// finalize), and on the cockroach colexec hash-joiner's build/probe phase
// split (other_examples) for the barrier/merge discipline, adapted here to
// an aggregate rather than a join.
type HashAggregate struct {
	KeyExprs  []physicalexpr.Expr
	KeyTypes  []array.DataType
	Aggs      []AggregateSpec
	ChunkSize int
	// NumPartitions must be set before the first PollFinalizePush call;
	// it bounds how many partition-local tables must report in before
	// the barrier releases the merge.
	NumPartitions int

	mu                 sync.Mutex
	pendingPartitions  int
	pendingInitialized bool
	localTables        []*aggTable
	global             *aggTable
	merged             bool
	waiters            []Waker

	pullMu     sync.Mutex
	pullChunk  int
	pullOffset int
}

type hashAggPartitionState struct {
	local        *aggTable
	finalizeOnce bool
}

func (h *HashAggregate) newStates() []kernel.AggregateState {
	states := make([]kernel.AggregateState, len(h.Aggs))
	for i, spec := range h.Aggs {
		states[i] = spec.NewState()
	}
	return states
}

func (h *HashAggregate) chunkSize() int {
	if h.ChunkSize <= 0 {
		return 4096
	}
	return h.ChunkSize
}

func (h *HashAggregate) NewPartitionState() any {
	return &hashAggPartitionState{local: newAggTable(h.chunkSize(), h.KeyTypes, h.newStates)}
}

func (h *HashAggregate) PollPush(cx *Context, partitionState any, batch *array.Batch) PollPushResult {
	ps := partitionState.(*hashAggPartitionState)

	keyCols := make([]*array.Array, len(h.KeyExprs))
	for i, e := range h.KeyExprs {
		col, err := e.Eval(batch)
		if err != nil {
			return PollPushResult{Err: err}
		}
		keyCols[i] = col
	}

	groupOf := make([]int, batch.NumRows)
	chunkOf := make([]int, batch.NumRows)
	for row := 0; row < batch.NumRows; row++ {
		keyRow := make([]array.Scalar, len(keyCols))
		for i, c := range keyCols {
			keyRow[i] = c.LogicalValue(row)
		}
		hash := array.RowHash(keyCols, row)
		addr := ps.local.findOrCreateGroupIndex(hash, keyRow)
		groupOf[row] = addr.row
		chunkOf[row] = addr.chunk
	}

	for ai, spec := range h.Aggs {
		statesForRow := func(row int) kernel.AggregateState {
			c := ps.local.chunks[chunkOf[row]]
			return c.states[ai][groupOf[row]]
		}
		if spec.Input == nil {
			for row := 0; row < batch.NumRows; row++ {
				statesForRow(row).Update(array.Scalar{})
			}
			continue
		}
		col, err := spec.Input.Eval(batch)
		if err != nil {
			return PollPushResult{Err: err}
		}
		for row := 0; row < batch.NumRows; row++ {
			if !col.IsValid(row) {
				continue
			}
			statesForRow(row).Update(col.LogicalValue(row))
		}
	}

	return PollPushResult{Status: Pushed}
}

// PollFinalizePush implements the build-side barrier (spec.md §5: "no
// partition emits results until all partitions have finalized the
// build"). The last partition to call this merges every partition-local
// table into the operator's global table and wakes every waiter.
func (h *HashAggregate) PollFinalizePush(cx *Context, partitionState any) PollFinalizeResult {
	ps := partitionState.(*hashAggPartitionState)

	h.mu.Lock()
	if !h.pendingInitialized {
		h.pendingInitialized = true
		h.pendingPartitions = h.NumPartitions
		if h.pendingPartitions <= 0 {
			h.pendingPartitions = 1
		}
	}
	if !ps.finalizeOnce {
		ps.finalizeOnce = true
		h.localTables = append(h.localTables, ps.local)
		h.pendingPartitions--
	}
	ready := h.pendingPartitions <= 0
	if ready && !h.merged {
		h.mergeLocked()
	}
	var waiters []Waker
	if ready {
		waiters, h.waiters = h.waiters, nil
	} else if cx != nil && cx.Waker != nil {
		h.waiters = append(h.waiters, cx.Waker)
	}
	h.mu.Unlock()

	for _, w := range waiters {
		w.Wake()
	}
	if ready {
		return PollFinalizeResult{Status: Finalized}
	}
	return PollFinalizeResult{Status: FinalizePending}
}

// mergeLocked performs the global merge; h.mu must be held.
func (h *HashAggregate) mergeLocked() {
	h.merged = true
	if len(h.localTables) == 1 {
		h.global = h.localTables[0]
	} else {
		h.global = newAggTable(h.chunkSize(), h.KeyTypes, h.newStates)
		for _, local := range h.localTables {
			for _, c := range local.chunks {
				for row := range c.hashes {
					keyRow := make([]array.Scalar, len(c.keys))
					for ki := range c.keys {
						keyRow[ki] = c.keys[ki][row]
					}
					addr := h.global.findOrCreateGroupIndex(c.hashes[row], keyRow)
					gc := h.global.chunks[addr.chunk]
					for ai := range h.Aggs {
						gc.states[ai][addr.row].Merge(c.states[ai][row])
					}
				}
			}
		}
	}
	// spec.md §4.3.2 edge case: a grouping-free aggregate over zero rows
	// still yields exactly one row of initial states.
	if len(h.KeyTypes) == 0 && h.global.groupCount() == 0 {
		h.global.findOrCreateGroupIndex(0, nil)
	}
}

// PollPull emits finalized output in chunks of the target batch size
// (spec.md §4.3.2).
func (h *HashAggregate) PollPull(cx *Context, partitionState any) PollPullResult {
	h.mu.Lock()
	merged := h.merged
	h.mu.Unlock()
	if !merged {
		if cx != nil && cx.Waker != nil {
			h.mu.Lock()
			h.waiters = append(h.waiters, cx.Waker)
			h.mu.Unlock()
		}
		return PollPullResult{Status: PullPending}
	}

	h.pullMu.Lock()
	defer h.pullMu.Unlock()
	if h.pullChunk >= len(h.global.chunks) {
		return PollPullResult{Status: PullExhausted}
	}
	c := h.global.chunks[h.pullChunk]
	start := h.pullOffset
	n := len(c.hashes) - start
	h.pullChunk++
	h.pullOffset = 0

	cols := make([]*array.Array, 0, len(h.KeyTypes)+len(h.Aggs))
	for ki, kt := range h.KeyTypes {
		cols = append(cols, kernel.ScalarsToArray(kt, c.keys[ki][start:start+n]))
	}
	for ai, spec := range h.Aggs {
		cols = append(cols, kernel.Finalize(c.states[ai][start:start+n], spec.OutType))
	}
	return PollPullResult{Status: PullBatch, Batch: array.NewBatch(cols, n)}
}
