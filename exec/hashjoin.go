package exec

import (
	"sync"

	"github.com/coredbio/coredb/array"
	"github.com/coredbio/coredb/kernel"
	"github.com/coredbio/coredb/physicalexpr"
)

// JoinType names the six join semantics HashJoin supports (spec.md §4.3.3).
type JoinType int

const (
	InnerJoin JoinType = iota
	LeftJoin
	RightJoin
	FullJoin
	SemiJoin
	AntiJoin
)

// buildRow is one materialized row of the build side: its batch/row
// address (for Interleave gathers) and whether any probe has matched it
// yet (needed by Left/Full to emit build-side rows with no probe match).
type buildRow struct {
	batchIdx, rowIdx int
	matched          bool
}

// HashJoin implements the equi-join of spec.md §4.3.3: a build phase
// materializes every left-side condition column and hashes it into a
// shared table, a barrier releases the probe phase, and every partition
// independently probes with its own right-side batches. Grounded on
// `other_examples/74e00bf0_jakewins-cockroach__pkg-sql-colexec-hashjoiner.go.go`
// for the overall build-then-probe phase split and bucket-chaining idea
// (the teacher itself has no standalone hash-join operator; its join
// support lives in the excluded `plan/` query-planning front end),
// generalized here to the left/right/full/semi/anti matrix spec.md
// §4.3.3 requires.
//
// Per spec.md §4.3.3's "precomputed conditions" design (and the Rust
// ground truth's LeftPrecomputedJoinCondition), the left side's condition
// columns are evaluated exactly once per build batch, not once per probed
// candidate pair: HashJoinBuild.PollPush evaluates and caches them
// alongside the batch; probe() only ever gathers from that cache by row
// index. The build side is driven by the ordinary PollPush/
// PollFinalizePush contract every other operator in this package honors
// (one HashJoinBuild per build-side partition, each with its own
// partition-local batches/cache), not a wholesale callback read once at
// finalize. A finalize barrier merges every build partition's
// partition-local rows into one global table, adjusting batch_idx by a
// running per-partition offset and appending each partition's cached
// condition arrays in the same order so the two stay aligned (spec.md
// §4.3.3 "Merge"), mirroring exec/hashaggregate.go's own
// partition-local-then-merged barrier.
type HashJoin struct {
	Type JoinType
	// LeftConditions/RightConditions are evaluated pairwise: condition i
	// is LeftConditions[i] = RightConditions[i].
	LeftConditions  []physicalexpr.Expr
	RightConditions []physicalexpr.Expr
	// NumBuildPartitions must be set before the first build-side
	// PollFinalizePush call; it bounds how many HashJoinBuild partitions
	// must report in before the merge barrier releases the probe side.
	NumBuildPartitions int
	// NumProbePartitions bounds how many probe-side partitions must
	// finalize their own pushes before Left/Full unmatched build rows are
	// emitted.
	NumProbePartitions int

	mu sync.Mutex

	// build-side barrier: accumulates one hashJoinBuildPartitionState per
	// build partition, merged into the fields below once every build
	// partition has finalized.
	buildPendingInit bool
	buildPending     int
	builds           []*hashJoinBuildPartitionState

	// merged build-side state; valid once built == true.
	built           bool
	buildBatches    []*array.Batch
	leftPrecomputed [][]*array.Array // leftPrecomputed[batchIdx][condIdx]
	buckets         map[uint64][]int // hash -> indices into rows
	rows            []buildRow
	waiters         []Waker // probe partitions waiting on `built`

	rightColTypes []array.DataType

	// probe-side finalize barrier, independent of the build barrier
	// above: counts how many probe partitions have finished pushing
	// right batches, so Left/Full unmatched rows are emitted exactly
	// once, after every probe has had a chance to mark a match.
	pendingInit       bool
	pendingPartitions int

	unmatchedOnce sync.Once
}

// Build returns the operator a build-side (left-hand) partition pipeline
// should push left batches into. Each build partition gets its own
// HashJoinBuild partition state via NewPartitionState, independent of any
// other build or probe partition.
func (j *HashJoin) Build() *HashJoinBuild { return &HashJoinBuild{join: j} }

// HashJoinBuild is the build-side adapter operator for a HashJoin: it
// precomputes and caches one left batch's condition columns per push,
// and stages the batch for the merge barrier at finalize (spec.md
// §4.3.3's "Build side (push)").
type HashJoinBuild struct {
	join *HashJoin
}

type hashJoinBuildPartitionState struct {
	batches      []*array.Batch
	precomputed  [][]*array.Array // precomputed[i] is batches[i]'s cached condition columns
	finalizeOnce bool
}

func (b *HashJoinBuild) NewPartitionState() any { return &hashJoinBuildPartitionState{} }

func (b *HashJoinBuild) PollPush(cx *Context, partitionState any, batch *array.Batch) PollPushResult {
	ps := partitionState.(*hashJoinBuildPartitionState)
	cols, err := b.join.evalConditions(b.join.LeftConditions, batch)
	if err != nil {
		return PollPushResult{Err: err}
	}
	ps.batches = append(ps.batches, batch)
	ps.precomputed = append(ps.precomputed, cols)
	return PollPushResult{Status: Pushed}
}

func (b *HashJoinBuild) PollFinalizePush(cx *Context, partitionState any) PollFinalizeResult {
	ps := partitionState.(*hashJoinBuildPartitionState)
	return b.join.finalizeBuildPartition(cx, ps)
}

// PollPull is never called: HashJoinBuild only ever sits on the push side
// of a build-side partition pipeline.
func (b *HashJoinBuild) PollPull(cx *Context, partitionState any) PollPullResult {
	panic("exec: HashJoinBuild has no pull side")
}

type hashJoinPartitionState struct {
	finalizeOnce bool
	// queue holds probe-side output batches this partition has produced
	// but not yet had pulled.
	queue []*array.Batch
	// gotUnmatched reports whether this partition has already emitted
	// the (single, process-wide) batch of unmatched build-side rows for
	// Left/Full joins.
	gotUnmatched bool
}

func (j *HashJoin) NewPartitionState() any { return &hashJoinPartitionState{} }

// PollPush on a HashJoin pushes probe-side (right) batches; the build
// side is pushed independently through HashJoinBuild and merged at its
// own barrier (spec.md §4.3.3's "build once, probe many" phase split,
// §5's "Join probe must not start until all left-side pushes have
// finalized and the global table is merged").
func (j *HashJoin) PollPush(cx *Context, partitionState any, batch *array.Batch) PollPushResult {
	ps := partitionState.(*hashJoinPartitionState)

	j.mu.Lock()
	built := j.built
	if built && j.rightColTypes == nil {
		types := make([]array.DataType, batch.NumCols())
		for i, c := range batch.Columns {
			types[i] = c.Type
		}
		j.rightColTypes = types
	}
	if !built && cx != nil && cx.Waker != nil {
		j.waiters = append(j.waiters, cx.Waker)
	}
	j.mu.Unlock()
	if !built {
		return PollPushResult{Status: PushPending, Batch: batch}
	}

	out, err := j.probe(batch)
	if err != nil {
		return PollPushResult{Err: err}
	}
	if out != nil {
		ps.queue = append(ps.queue, out)
	}
	return PollPushResult{Status: Pushed}
}

func (j *HashJoin) evalConditions(exprs []physicalexpr.Expr, batch *array.Batch) ([]*array.Array, error) {
	cols := make([]*array.Array, len(exprs))
	for i, e := range exprs {
		c, err := e.Eval(batch)
		if err != nil {
			return nil, err
		}
		cols[i] = c
	}
	return cols, nil
}

// probe matches one right-side batch against the (already built) global
// table and returns the joined output batch, or nil if this batch
// produced no rows (e.g. Semi/Anti with no matches, or Inner with none).
// Every candidate's left condition values are read from
// j.leftPrecomputed (cached once per build batch by HashJoinBuild) rather
// than re-evaluated per pair, per spec.md §4.3.3.
func (j *HashJoin) probe(right *array.Batch) (*array.Batch, error) {
	rightCols, err := j.evalConditions(j.RightConditions, right)
	if err != nil {
		return nil, err
	}

	var leftRefs, rightRefs []array.RowRef
	matchedAny := make([]bool, right.NumRows)

	for row := 0; row < right.NumRows; row++ {
		hash := array.RowHash(rightCols, row)
		j.mu.Lock()
		candidates := append([]int(nil), j.buckets[hash]...)
		j.mu.Unlock()
		for _, ri := range candidates {
			j.mu.Lock()
			br := j.rows[ri]
			leftCols := j.leftPrecomputed[br.batchIdx]
			j.mu.Unlock()
			if !rowKeyMatches(leftCols, br.rowIdx, rightCols, row) {
				continue
			}
			matchedAny[row] = true
			j.mu.Lock()
			j.rows[ri].matched = true
			j.mu.Unlock()
			if j.Type == SemiJoin || j.Type == AntiJoin {
				continue
			}
			leftRefs = append(leftRefs, array.RowRef{Src: int32(br.batchIdx), Row: int32(br.rowIdx)})
			rightRefs = append(rightRefs, array.RowRef{Src: 0, Row: int32(row)})
		}
		// A probed (right-side) row with no left match still needs to
		// surface for RIGHT/FULL (every right row must appear); the
		// symmetric case -- a left row that never gets matched by any
		// right row across the whole probe phase -- is handled once,
		// after probing completes, by emitUnmatchedOnce for LEFT/FULL.
		if !matchedAny[row] && (j.Type == RightJoin || j.Type == FullJoin) {
			leftRefs = append(leftRefs, array.RowRef{Src: -1, Row: -1})
			rightRefs = append(rightRefs, array.RowRef{Src: 0, Row: int32(row)})
		}
	}

	switch j.Type {
	case SemiJoin:
		return j.gatherSingleSide(right, matchedAny, true), nil
	case AntiJoin:
		return j.gatherSingleSide(right, matchedAny, false), nil
	}

	return j.gatherJoined(right, leftRefs, rightRefs), nil
}

func rowKeyMatches(leftCols []*array.Array, leftRow int, rightCols []*array.Array, rightRow int) bool {
	for i := range leftCols {
		if leftCols[i].IsValid(leftRow) != rightCols[i].IsValid(rightRow) {
			return false
		}
		if !leftCols[i].IsValid(leftRow) {
			continue
		}
		if !array.ScalarEqual(leftCols[i].LogicalValue(leftRow), rightCols[i].LogicalValue(rightRow)) {
			return false
		}
	}
	return true
}

func (j *HashJoin) gatherSingleSide(right *array.Batch, matched []bool, keep bool) *array.Batch {
	idx := make([]int32, 0, len(matched))
	for row, m := range matched {
		if m == keep {
			idx = append(idx, int32(row))
		}
	}
	if len(idx) == 0 {
		return nil
	}
	return right.Select(array.NewSelection(idx))
}

// gatherJoined builds the combined output batch: every left condition's
// parent batch columns gathered via leftRefs, followed by right's own
// columns gathered via rightRefs. A leftRefs entry with Src -1 produces an
// all-null left side for that row (unmatched right rows of Right/Full joins).
func (j *HashJoin) gatherJoined(right *array.Batch, leftRefs, rightRefs []array.RowRef) *array.Batch {
	n := len(leftRefs)
	if n == 0 {
		return nil
	}
	var leftNumCols int
	if len(j.buildBatches) > 0 {
		leftNumCols = j.buildBatches[0].NumCols()
	}
	cols := make([]*array.Array, 0, leftNumCols+right.NumCols())
	for ci := 0; ci < leftNumCols; ci++ {
		srcArrays := make([]*array.Array, len(j.buildBatches))
		for bi, b := range j.buildBatches {
			srcArrays[bi] = b.Column(ci)
		}
		cols = append(cols, interleaveWithNulls(srcArrays, leftRefs))
	}
	for ci := 0; ci < right.NumCols(); ci++ {
		cols = append(cols, array.Interleave([]*array.Array{right.Column(ci)}, rightRefs))
	}
	return array.NewBatch(cols, n)
}

// interleaveWithNulls is array.Interleave, except a ref with Src < 0
// always produces a null output row regardless of source validity.
func interleaveWithNulls(arrays []*array.Array, refs []array.RowRef) *array.Array {
	hasNull := false
	for _, r := range refs {
		if r.Src < 0 {
			hasNull = true
			break
		}
	}
	if !hasNull {
		return array.Interleave(arrays, refs)
	}
	present := make([]array.RowRef, 0, len(refs))
	positions := make([]int, 0, len(refs))
	for i, r := range refs {
		if r.Src >= 0 {
			present = append(present, r)
			positions = append(positions, i)
		}
	}
	var t array.DataType
	if len(arrays) > 0 {
		t = arrays[0].Type
	}
	scalars := make([]array.Scalar, len(refs))
	for i := range scalars {
		scalars[i] = array.NullScalar(t)
	}
	if len(present) > 0 {
		gathered := array.Interleave(arrays, present)
		for gi, pos := range positions {
			scalars[pos] = gathered.LogicalValue(gi)
		}
	}
	return kernel.ScalarsToArray(t, scalars)
}

// finalizeBuildPartition implements the build-side barrier (spec.md §5:
// "Join probe must not start until all left-side pushes have finalized
// and the global table is merged"). The build partition that observes
// every sibling has reported in merges their partition-local caches into
// the global table and wakes every probe partition waiting on `built`.
func (j *HashJoin) finalizeBuildPartition(cx *Context, ps *hashJoinBuildPartitionState) PollFinalizeResult {
	j.mu.Lock()
	if !j.buildPendingInit {
		j.buildPendingInit = true
		j.buildPending = j.NumBuildPartitions
		if j.buildPending <= 0 {
			j.buildPending = 1
		}
	}
	if !ps.finalizeOnce {
		ps.finalizeOnce = true
		j.builds = append(j.builds, ps)
		j.buildPending--
	}
	ready := j.buildPending <= 0
	if ready && !j.built {
		j.mergeBuildLocked()
	}
	var waiters []Waker
	if ready {
		waiters, j.waiters = j.waiters, nil
	} else if cx != nil && cx.Waker != nil {
		j.waiters = append(j.waiters, cx.Waker)
	}
	j.mu.Unlock()

	for _, w := range waiters {
		w.Wake()
	}
	if ready {
		return PollFinalizeResult{Status: Finalized}
	}
	return PollFinalizeResult{Status: FinalizePending}
}

// mergeBuildLocked is the spec.md §4.3.3 "Merge" step: every build
// partition's locally-cached batches and precomputed condition arrays are
// appended, in partition order, into the single global
// buildBatches/leftPrecomputed vectors, and each partition's row keys are
// reinserted into the global bucket table with batch_idx shifted by the
// running offset so they address the right slot of the now-global
// buildBatches. j.mu must be held.
func (j *HashJoin) mergeBuildLocked() {
	j.built = true
	j.buckets = make(map[uint64][]int)
	for _, build := range j.builds {
		offset := len(j.buildBatches)
		for bi, batch := range build.batches {
			j.buildBatches = append(j.buildBatches, batch)
			cols := build.precomputed[bi]
			j.leftPrecomputed = append(j.leftPrecomputed, cols)
			globalIdx := offset + bi
			for row := 0; row < batch.NumRows; row++ {
				hash := array.RowHash(cols, row)
				idx := len(j.rows)
				j.rows = append(j.rows, buildRow{batchIdx: globalIdx, rowIdx: row})
				j.buckets[hash] = append(j.buckets[hash], idx)
			}
		}
	}
}

// PollFinalizePush is the probe side's own finalize: it does not touch
// the build barrier (that is finalizeBuildPartition's job, called via
// HashJoinBuild), only counts how many probe partitions are done pushing
// right batches so Left/Full unmatched build rows can be emitted exactly
// once, after every probe has had a chance to mark a match.
func (j *HashJoin) PollFinalizePush(cx *Context, partitionState any) PollFinalizeResult {
	ps := partitionState.(*hashJoinPartitionState)

	j.mu.Lock()
	if !j.pendingInit {
		j.pendingInit = true
		j.pendingPartitions = j.NumProbePartitions
		if j.pendingPartitions <= 0 {
			j.pendingPartitions = 1
		}
	}
	if !ps.finalizeOnce {
		ps.finalizeOnce = true
		j.pendingPartitions--
	}
	j.mu.Unlock()
	return PollFinalizeResult{Status: Finalized}
}

func (j *HashJoin) PollPull(cx *Context, partitionState any) PollPullResult {
	ps := partitionState.(*hashJoinPartitionState)
	if len(ps.queue) > 0 {
		b := ps.queue[0]
		ps.queue = ps.queue[1:]
		return PollPullResult{Status: PullBatch, Batch: b}
	}

	j.mu.Lock()
	built := j.built
	pending := j.pendingPartitions
	if !built && cx != nil && cx.Waker != nil {
		j.waiters = append(j.waiters, cx.Waker)
	}
	j.mu.Unlock()
	if !built {
		return PollPullResult{Status: PullPending}
	}

	// Left/Full joins emit every unmatched build-side (left) row exactly
	// once, from whichever partition observes (pendingPartitions <= 0)
	// first -- i.e. after every partition has finished probing, so
	// "matched" is final (spec.md §4.3.3: unmatched build rows surface
	// once the probe side is exhausted).
	if (j.Type == LeftJoin || j.Type == FullJoin) && !ps.gotUnmatched && pending <= 0 {
		ps.gotUnmatched = true
		b := j.emitUnmatchedOnce()
		if b != nil {
			return PollPullResult{Status: PullBatch, Batch: b}
		}
	}
	return PollPullResult{Status: PullExhausted}
}

func (j *HashJoin) emitUnmatchedOnce() *array.Batch {
	var out *array.Batch
	j.unmatchedOnce.Do(func() {
		j.mu.Lock()
		var leftRefs []array.RowRef
		for _, r := range j.rows {
			if r.matched {
				continue
			}
			leftRefs = append(leftRefs, array.RowRef{Src: int32(r.batchIdx), Row: int32(r.rowIdx)})
		}
		j.mu.Unlock()
		if len(leftRefs) == 0 {
			return
		}
		var leftNumCols int
		if len(j.buildBatches) > 0 {
			leftNumCols = j.buildBatches[0].NumCols()
		}
		cols := make([]*array.Array, 0, leftNumCols+len(j.rightColTypes))
		for ci := 0; ci < leftNumCols; ci++ {
			srcArrays := make([]*array.Array, len(j.buildBatches))
			for bi, b := range j.buildBatches {
				srcArrays[bi] = b.Column(ci)
			}
			cols = append(cols, array.Interleave(srcArrays, leftRefs))
		}
		n := len(leftRefs)
		for _, t := range j.rightColTypes {
			scalars := make([]array.Scalar, n)
			for i := range scalars {
				scalars[i] = array.NullScalar(t)
			}
			cols = append(cols, kernel.ScalarsToArray(t, scalars))
		}
		out = array.NewBatch(cols, n)
	})
	return out
}
