package exec

import (
	"testing"

	"github.com/coredbio/coredb/array"
	"github.com/coredbio/coredb/kernel"
	"github.com/coredbio/coredb/physicalexpr"
)

// noopWaker satisfies Waker for tests that never actually need to block.
type noopWaker struct{}

func (noopWaker) Wake() {}

func testCtx() *Context { return &Context{Waker: noopWaker{}} }

func i64Col(vals []int64) *array.Array {
	valid := array.NewBitmapAllValid(len(vals))
	return &array.Array{Type: array.DataType{ID: array.Int64}, Storage: &array.Int64Storage{Values: vals}, Validity: valid}
}

func strCol(vals []string) *array.Array {
	offsets := make([]int32, len(vals)+1)
	var data []byte
	for i, v := range vals {
		data = append(data, v...)
		offsets[i+1] = int32(len(data))
	}
	return &array.Array{Type: array.DataType{ID: array.Utf8}, Storage: &array.VarlenStorage{Offsets: offsets, Data: data}, Validity: array.NewBitmapAllValid(len(vals))}
}

// pullAll drains every batch an operator partition produces, assuming the
// build/finalize barrier has already released (tests here are single
// partition, so PollFinalizePush is expected to finalize immediately).
func pullAll(t *testing.T, op Operator, ps any) []*array.Batch {
	t.Helper()
	var out []*array.Batch
	for i := 0; i < 10000; i++ {
		r := op.PollPull(testCtx(), ps)
		if r.Err != nil {
			t.Fatalf("PollPull: %v", r.Err)
		}
		switch r.Status {
		case PullBatch:
			out = append(out, r.Batch)
		case PullExhausted:
			return out
		case PullPending:
			continue
		}
	}
	t.Fatalf("pullAll: too many iterations, possible stuck Pending loop")
	return nil
}

func TestHashAggregateGroupBySum(t *testing.T) {
	agg := &HashAggregate{
		KeyExprs: []physicalexpr.Expr{&physicalexpr.Column{Index: 0, Typ: array.DataType{ID: array.Utf8}}},
		KeyTypes: []array.DataType{{ID: array.Utf8}},
		Aggs: []AggregateSpec{
			{NewState: kernel.NewSumInt64, Input: &physicalexpr.Column{Index: 1, Typ: array.DataType{ID: array.Int64}}, OutType: array.DataType{ID: array.Int64}},
		},
		NumPartitions: 1,
	}
	ps := agg.NewPartitionState()

	keys := strCol([]string{"a", "a", "b", "a"})
	vals := i64Col([]int64{1, 2, 3, 4})
	batch := array.NewBatch([]*array.Array{keys, vals}, 4)

	if r := agg.PollPush(testCtx(), ps, batch); r.Err != nil || r.Status != Pushed {
		t.Fatalf("PollPush: status=%v err=%v", r.Status, r.Err)
	}
	if r := agg.PollFinalizePush(testCtx(), ps); r.Err != nil || r.Status != Finalized {
		t.Fatalf("PollFinalizePush: status=%v err=%v", r.Status, r.Err)
	}

	batches := pullAll(t, agg, ps)
	got := map[string]int64{}
	for _, b := range batches {
		for row := 0; row < b.NumRows; row++ {
			got[b.Column(0).LogicalValue(row).Str] = b.Column(1).LogicalValue(row).I64
		}
	}
	if got["a"] != 7 || got["b"] != 3 {
		t.Fatalf("unexpected group sums: %+v", got)
	}
}

func TestHashAggregateEmptyInputNoKeysYieldsOneRow(t *testing.T) {
	agg := &HashAggregate{
		Aggs: []AggregateSpec{
			{NewState: kernel.NewCountStar, OutType: array.DataType{ID: array.Int64}},
		},
		NumPartitions: 1,
	}
	ps := agg.NewPartitionState()
	if r := agg.PollFinalizePush(testCtx(), ps); r.Status != Finalized {
		t.Fatalf("expected immediate Finalized, got %v (err=%v)", r.Status, r.Err)
	}
	batches := pullAll(t, agg, ps)
	total := 0
	for _, b := range batches {
		total += b.NumRows
	}
	if total != 1 {
		t.Fatalf("expected exactly one row for a keyless aggregate over empty input, got %d", total)
	}
}

func TestHashJoinInner(t *testing.T) {
	leftKey := i64Col([]int64{1, 2, 3})
	leftVal := strCol([]string{"x", "y", "z"})
	leftBatch := array.NewBatch([]*array.Array{leftKey, leftVal}, 3)

	join := &HashJoin{
		Type:               InnerJoin,
		LeftConditions:     []physicalexpr.Expr{&physicalexpr.Column{Index: 0, Typ: array.DataType{ID: array.Int64}}},
		RightConditions:    []physicalexpr.Expr{&physicalexpr.Column{Index: 0, Typ: array.DataType{ID: array.Int64}}},
		NumBuildPartitions: 1,
		NumProbePartitions: 1,
	}
	build := join.Build()
	bps := build.NewPartitionState()
	if r := build.PollPush(testCtx(), bps, leftBatch); r.Err != nil || r.Status != Pushed {
		t.Fatalf("build push: status=%v err=%v", r.Status, r.Err)
	}
	if r := build.PollFinalizePush(testCtx(), bps); r.Status != Finalized {
		t.Fatalf("build finalize: status=%v err=%v", r.Status, r.Err)
	}

	ps := join.NewPartitionState()
	rightKey := i64Col([]int64{2, 3, 9})
	rightBatch := array.NewBatch([]*array.Array{rightKey}, 3)
	if r := join.PollPush(testCtx(), ps, rightBatch); r.Err != nil || r.Status != Pushed {
		t.Fatalf("probe push: status=%v err=%v", r.Status, r.Err)
	}
	if r := join.PollFinalizePush(testCtx(), ps); r.Status != Finalized {
		t.Fatalf("probe finalize: status=%v err=%v", r.Status, r.Err)
	}

	batches := pullAll(t, join, ps)
	total := 0
	for _, b := range batches {
		total += b.NumRows
	}
	if total != 2 {
		t.Fatalf("expected 2 matched rows (keys 2 and 3), got %d", total)
	}
}

func TestHashJoinLeftUnmatched(t *testing.T) {
	leftKey := i64Col([]int64{1, 2})
	leftBatch := array.NewBatch([]*array.Array{leftKey}, 2)

	join := &HashJoin{
		Type:               LeftJoin,
		LeftConditions:     []physicalexpr.Expr{&physicalexpr.Column{Index: 0, Typ: array.DataType{ID: array.Int64}}},
		RightConditions:    []physicalexpr.Expr{&physicalexpr.Column{Index: 0, Typ: array.DataType{ID: array.Int64}}},
		NumBuildPartitions: 1,
		NumProbePartitions: 1,
	}
	build := join.Build()
	bps := build.NewPartitionState()
	build.PollPush(testCtx(), bps, leftBatch)
	build.PollFinalizePush(testCtx(), bps)

	ps := join.NewPartitionState()
	rightKey := i64Col([]int64{2})
	rightBatch := array.NewBatch([]*array.Array{rightKey}, 1)
	join.PollPush(testCtx(), ps, rightBatch)
	join.PollFinalizePush(testCtx(), ps)

	batches := pullAll(t, join, ps)
	total := 0
	for _, b := range batches {
		total += b.NumRows
	}
	if total != 2 {
		t.Fatalf("expected 2 rows (1 matched + 1 unmatched left), got %d", total)
	}
}

func TestHashJoinMergesMultipleBuildPartitions(t *testing.T) {
	leftBatchA := array.NewBatch([]*array.Array{i64Col([]int64{1, 2})}, 2)
	leftBatchB := array.NewBatch([]*array.Array{i64Col([]int64{3, 4})}, 2)

	join := &HashJoin{
		Type:               InnerJoin,
		LeftConditions:     []physicalexpr.Expr{&physicalexpr.Column{Index: 0, Typ: array.DataType{ID: array.Int64}}},
		RightConditions:    []physicalexpr.Expr{&physicalexpr.Column{Index: 0, Typ: array.DataType{ID: array.Int64}}},
		NumBuildPartitions: 2,
		NumProbePartitions: 1,
	}

	buildA := join.Build()
	bpsA := buildA.NewPartitionState()
	if r := buildA.PollPush(testCtx(), bpsA, leftBatchA); r.Err != nil || r.Status != Pushed {
		t.Fatalf("build A push: status=%v err=%v", r.Status, r.Err)
	}
	if r := buildA.PollFinalizePush(testCtx(), bpsA); r.Status != FinalizePending {
		t.Fatalf("build A finalize: expected FinalizePending before sibling reports in, got status=%v err=%v", r.Status, r.Err)
	}

	buildB := join.Build()
	bpsB := buildB.NewPartitionState()
	if r := buildB.PollPush(testCtx(), bpsB, leftBatchB); r.Err != nil || r.Status != Pushed {
		t.Fatalf("build B push: status=%v err=%v", r.Status, r.Err)
	}
	if r := buildB.PollFinalizePush(testCtx(), bpsB); r.Status != Finalized {
		t.Fatalf("build B finalize: expected Finalized once every build partition reports in, got status=%v err=%v", r.Status, r.Err)
	}

	if got := len(join.buildBatches); got != 2 {
		t.Fatalf("expected both build partitions' batches merged, got %d batches", got)
	}
	if got := len(join.leftPrecomputed); got != 2 {
		t.Fatalf("expected precomputed condition columns merged in lockstep with buildBatches, got %d", got)
	}

	ps := join.NewPartitionState()
	rightBatch := array.NewBatch([]*array.Array{i64Col([]int64{2, 3, 5})}, 3)
	if r := join.PollPush(testCtx(), ps, rightBatch); r.Err != nil || r.Status != Pushed {
		t.Fatalf("probe push: status=%v err=%v", r.Status, r.Err)
	}
	join.PollFinalizePush(testCtx(), ps)

	batches := pullAll(t, join, ps)
	total := 0
	for _, b := range batches {
		total += b.NumRows
	}
	if total != 2 {
		t.Fatalf("expected 2 matched rows (keys 2 and 3, spread across both build partitions), got %d", total)
	}
}

func TestOrderByAsc(t *testing.T) {
	ob := &OrderBy{
		Keys:          []physicalexpr.Expr{&physicalexpr.Column{Index: 0, Typ: array.DataType{ID: array.Int64}}},
		KeySpecs:      []SortKeySpec{{}},
		NumPartitions: 1,
	}
	ps := ob.NewPartitionState()
	batch := array.NewBatch([]*array.Array{i64Col([]int64{5, 3, 8, 1, 4})}, 5)
	if r := ob.PollPush(testCtx(), ps, batch); r.Err != nil {
		t.Fatalf("push: %v", r.Err)
	}
	if r := ob.PollFinalizePush(testCtx(), ps); r.Status != Finalized {
		t.Fatalf("finalize: status=%v err=%v", r.Status, r.Err)
	}
	batches := pullAll(t, ob, ps)
	var got []int64
	for _, b := range batches {
		for row := 0; row < b.NumRows; row++ {
			got = append(got, b.Column(0).LogicalValue(row).I64)
		}
	}
	want := []int64{1, 3, 4, 5, 8}
	if len(got) != len(want) {
		t.Fatalf("want %v got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("want %v got %v", want, got)
		}
	}
}

func TestOrderByDescNullsFirst(t *testing.T) {
	col := i64Col([]int64{1, 0, 2})
	col.Validity.Unset(1)
	ob := &OrderBy{
		Keys:          []physicalexpr.Expr{&physicalexpr.Column{Index: 0, Typ: array.DataType{ID: array.Int64}}},
		KeySpecs:      []SortKeySpec{{Desc: true, NullsFirst: true}},
		NumPartitions: 1,
	}
	ps := ob.NewPartitionState()
	batch := array.NewBatch([]*array.Array{col}, 3)
	ob.PollPush(testCtx(), ps, batch)
	ob.PollFinalizePush(testCtx(), ps)
	batches := pullAll(t, ob, ps)
	var gotNull []bool
	var gotVal []int64
	for _, b := range batches {
		for row := 0; row < b.NumRows; row++ {
			gotNull = append(gotNull, !b.Column(0).IsValid(row))
			if b.Column(0).IsValid(row) {
				gotVal = append(gotVal, b.Column(0).LogicalValue(row).I64)
			} else {
				gotVal = append(gotVal, 0)
			}
		}
	}
	if !gotNull[0] {
		t.Fatalf("expected null first, got nulls=%v vals=%v", gotNull, gotVal)
	}
	if gotVal[1] != 2 || gotVal[2] != 1 {
		t.Fatalf("expected descending 2, 1 after the null, got %v", gotVal)
	}
}

func TestMergeSortedTwoRuns(t *testing.T) {
	keyColFn := func(b *array.Batch) []*array.Array { return []*array.Array{b.Column(0)} }
	run1 := SortedRun{
		Batches:  []*array.Batch{array.NewBatch([]*array.Array{i64Col([]int64{1, 4, 7})}, 3)},
		KeyExprs: []sortKeyColumnFunc{keyColFn},
	}
	run2 := SortedRun{
		Batches:  []*array.Batch{array.NewBatch([]*array.Array{i64Col([]int64{2, 3, 9})}, 3)},
		KeyExprs: []sortKeyColumnFunc{keyColFn},
	}
	m := &MergeSorted{
		KeySpecs: []SortKeySpec{{}},
		Runs:     func() []SortedRun { return []SortedRun{run1, run2} },
	}
	ps := m.NewPartitionState()
	m.PollFinalizePush(testCtx(), ps)
	batches := pullAll(t, m, ps)
	var got []int64
	for _, b := range batches {
		for row := 0; row < b.NumRows; row++ {
			got = append(got, b.Column(0).LogicalValue(row).I64)
		}
	}
	want := []int64{1, 2, 3, 4, 7, 9}
	if len(got) != len(want) {
		t.Fatalf("want %v got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("want %v got %v", want, got)
		}
	}
}

func TestLimitOffsetAndCount(t *testing.T) {
	l := &Limit{Offset: 1, Count: 2}
	ps := l.NewPartitionState()
	batch := array.NewBatch([]*array.Array{i64Col([]int64{10, 20, 30, 40})}, 4)
	r := l.PollPush(testCtx(), ps, batch)
	if r.Err != nil {
		t.Fatalf("push: %v", r.Err)
	}
	if r.Status != PushBreak {
		t.Fatalf("expected PushBreak once Count is exhausted, got %v", r.Status)
	}
	l.PollFinalizePush(testCtx(), ps)
	batches := pullAll(t, l, ps)
	var got []int64
	for _, b := range batches {
		for row := 0; row < b.NumRows; row++ {
			got = append(got, b.Column(0).LogicalValue(row).I64)
		}
	}
	want := []int64{20, 30}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("want %v got %v", want, got)
	}
}

func TestBatchResizerConcatenatesAndSlices(t *testing.T) {
	r := &BatchResizer{TargetSize: 3}
	ps := r.NewPartitionState()
	r.PollPush(testCtx(), ps, array.NewBatch([]*array.Array{i64Col([]int64{1, 2})}, 2))
	r.PollPush(testCtx(), ps, array.NewBatch([]*array.Array{i64Col([]int64{3, 4, 5})}, 3))
	r.PollFinalizePush(testCtx(), ps)

	batches := pullAll(t, r, ps)
	var got []int64
	for _, b := range batches {
		if b.NumRows > 3 {
			t.Fatalf("batch exceeds target size: %d rows", b.NumRows)
		}
		for row := 0; row < b.NumRows; row++ {
			got = append(got, b.Column(0).LogicalValue(row).I64)
		}
	}
	want := []int64{1, 2, 3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("want %v got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("want %v got %v", want, got)
		}
	}
}

func TestMaterializeFanOut(t *testing.T) {
	m := &Materialize{NumConsumers: 2}
	b1 := array.NewBatch([]*array.Array{i64Col([]int64{1})}, 1)
	m.PollPush(testCtx(), m.ConsumerPartitionState(0), b1)
	m.PollFinalizePush(testCtx(), m.ConsumerPartitionState(0))

	for c := 0; c < 2; c++ {
		ps := m.ConsumerPartitionState(c)
		batches := pullAll(t, m, ps)
		if len(batches) != 1 || batches[0].Column(0).LogicalValue(0).I64 != 1 {
			t.Fatalf("consumer %d: expected to see the one broadcast batch, got %v", c, batches)
		}
	}
}

func TestMaterializeBackpressure(t *testing.T) {
	m := &Materialize{NumConsumers: 2, Capacity: 2}
	ps0 := m.ConsumerPartitionState(0)
	ps1 := m.ConsumerPartitionState(1)

	push := func(v int64) PollPushResult {
		b := array.NewBatch([]*array.Array{i64Col([]int64{v})}, 1)
		return m.PollPush(testCtx(), ps0, b)
	}

	if r := push(1); r.Status != Pushed {
		t.Fatalf("push 1: want Pushed, got %+v", r)
	}
	if r := push(2); r.Status != Pushed {
		t.Fatalf("push 2: want Pushed, got %+v", r)
	}
	// Neither consumer has pulled anything yet, so the backlog (2) is
	// already at Capacity; a third push must block rather than grow the
	// buffer without bound.
	r := push(3)
	if r.Status != PushPending {
		t.Fatalf("push 3: want PushPending once backlog reaches capacity, got %+v", r)
	}
	if r.Batch == nil || r.Batch.Column(0).LogicalValue(0).I64 != 3 {
		t.Fatalf("push 3: expected the pending batch handed back for retry, got %+v", r.Batch)
	}

	// Draining consumer 0 alone isn't enough: consumer 1 is still the
	// slowest and hasn't read anything, so the backlog is still 2.
	if pr := m.PollPull(testCtx(), ps0); pr.Status != PullBatch {
		t.Fatalf("consumer 0 pull 1: want PullBatch, got %+v", pr)
	}
	if r := push(3); r.Status != PushPending {
		t.Fatalf("push 3 after only consumer 0 drained: want still PushPending, got %+v", r)
	}

	// Once the slowest consumer (1) also drains one batch, the backlog
	// drops below capacity and the pending push succeeds.
	if pr := m.PollPull(testCtx(), ps1); pr.Status != PullBatch {
		t.Fatalf("consumer 1 pull 1: want PullBatch, got %+v", pr)
	}
	if r := push(3); r.Status != Pushed {
		t.Fatalf("push 3 after both consumers drained one: want Pushed, got %+v", r)
	}

	m.PollFinalizePush(testCtx(), ps0)
	if bs := pullAll(t, m, ps0); len(bs) != 2 {
		t.Fatalf("consumer 0: want 2 remaining batches, got %d", len(bs))
	}
	if bs := pullAll(t, m, ps1); len(bs) != 2 {
		t.Fatalf("consumer 1: want 2 remaining batches, got %d", len(bs))
	}
}

func TestAnalyzeCountsRows(t *testing.T) {
	a := &Analyze{}
	ps := a.NewPartitionState()
	a.PollPush(testCtx(), ps, array.NewBatch([]*array.Array{i64Col([]int64{1, 2, 3})}, 3))
	a.PollFinalizePush(testCtx(), ps)
	pullAll(t, a, ps)
	if a.RowCount() != 3 || a.BatchCount() != 1 {
		t.Fatalf("want rows=3 batches=1, got rows=%d batches=%d", a.RowCount(), a.BatchCount())
	}
}

func TestValuesEmitsOnceThenExhausted(t *testing.T) {
	v := &Values{Batch: array.NewBatch([]*array.Array{i64Col([]int64{42})}, 1)}
	ps := v.NewPartitionState()
	r := v.PollPull(testCtx(), ps)
	if r.Status != PullBatch || r.Batch.Column(0).LogicalValue(0).I64 != 42 {
		t.Fatalf("unexpected first pull: %+v", r)
	}
	r2 := v.PollPull(testCtx(), ps)
	if r2.Status != PullExhausted {
		t.Fatalf("expected Exhausted on second pull, got %v", r2.Status)
	}
}

func TestEmptyAlwaysExhausted(t *testing.T) {
	var e Empty
	r := e.PollPull(testCtx(), e.NewPartitionState())
	if r.Status != PullExhausted {
		t.Fatalf("want PullExhausted, got %v", r.Status)
	}
}

type fakeSinkWriter struct {
	accepted []*array.Batch
	finalized bool
}

func (f *fakeSinkWriter) TryPush(b *array.Batch) (bool, error) {
	f.accepted = append(f.accepted, b)
	return true, nil
}
func (f *fakeSinkWriter) TryFinalize() (bool, error) {
	f.finalized = true
	return true, nil
}

func TestSinkWritingFinalizingFinished(t *testing.T) {
	w := &fakeSinkWriter{}
	s := &Sink{NewWriter: func() SinkWriter { return w }}
	ps := s.NewPartitionState()
	batch := array.NewBatch([]*array.Array{i64Col([]int64{1})}, 1)
	if r := s.PollPush(testCtx(), ps, batch); r.Status != Pushed || r.Err != nil {
		t.Fatalf("push: status=%v err=%v", r.Status, r.Err)
	}
	if r := s.PollFinalizePush(testCtx(), ps); r.Status != Finalized || r.Err != nil {
		t.Fatalf("finalize: status=%v err=%v", r.Status, r.Err)
	}
	if len(w.accepted) != 1 || !w.finalized {
		t.Fatalf("writer did not see push+finalize: accepted=%d finalized=%v", len(w.accepted), w.finalized)
	}
}

type fakePuller struct {
	batches []*array.Batch
	i       int
}

func (f *fakePuller) TryPull() (*array.Batch, bool, error) {
	if f.i >= len(f.batches) {
		return nil, true, nil
	}
	b := f.batches[f.i]
	f.i++
	return b, true, nil
}

func TestScanDrainsPuller(t *testing.T) {
	puller := &fakePuller{batches: []*array.Batch{
		array.NewBatch([]*array.Array{i64Col([]int64{1})}, 1),
		array.NewBatch([]*array.Array{i64Col([]int64{2})}, 1),
	}}
	s := &Scan{NewPuller: func() SourcePuller { return puller }}
	ps := s.NewPartitionState()
	batches := pullAll(t, s, ps)
	if len(batches) != 2 {
		t.Fatalf("want 2 batches, got %d", len(batches))
	}
}

func TestDDLRunsOnceThenExhausted(t *testing.T) {
	ran := 0
	d := &DDL{Action: func() (*array.Batch, error) {
		ran++
		return array.NewBatch(nil, 1), nil
	}}
	ps := d.NewPartitionState()
	r1 := d.PollPull(testCtx(), ps)
	if r1.Status != PullBatch {
		t.Fatalf("want PullBatch, got %v", r1.Status)
	}
	r2 := d.PollPull(testCtx(), ps)
	if r2.Status != PullExhausted {
		t.Fatalf("want PullExhausted on second pull, got %v", r2.Status)
	}
	if ran != 1 {
		t.Fatalf("want Action to run exactly once, ran %d times", ran)
	}
}
