package kernel

import "github.com/coredbio/coredb/array"

// AggregateState is the per-group state an aggregate function maintains.
// Every aggregate function defines new_group (its constructor),
// update, merge, and finalize, per spec.md §4.3.2. An aggregate that needs
// no input value at all (COUNT(*)) still implements Update but ignores its
// argument — the "unit accessor" spec.md describes.
type AggregateState interface {
	// Update folds one non-null input value into the state.
	Update(v array.Scalar)
	// Merge folds another state (typically a partition-local state) into
	// this one, used by the StateCombiner.
	Merge(other AggregateState)
	// Finalize materializes the state into its output scalar, and
	// whether the result is valid (false for e.g. SUM/MIN/MAX over zero
	// rows).
	Finalize() (array.Scalar, bool)
}

// AggregateFunc is an aggregate's new_group constructor.
type AggregateFunc func() AggregateState

// UnaryUpdate drives a UnaryUpdater (spec.md §4.2): for every row selected
// by sel (nil selects every row) that is non-null in in, it resolves the
// row's target group via groupOf and invokes that group's Update.
func UnaryUpdate(sel *array.Bitmap, in *array.Array, groupOf func(row int) int, states []AggregateState) {
	n := in.LogicalLen()
	for row := 0; row < n; row++ {
		if sel != nil && !sel.Get(row) {
			continue
		}
		if !in.IsValid(row) {
			continue
		}
		states[groupOf(row)].Update(in.LogicalValue(row))
	}
}

// UnaryUpdateUnit drives the "unit accessor" case (COUNT(*)): every
// selected row updates its group's state regardless of any input column,
// since there isn't one.
func UnaryUpdateUnit(sel *array.Bitmap, numRows int, groupOf func(row int) int, states []AggregateState) {
	for row := 0; row < numRows; row++ {
		if sel != nil && !sel.Get(row) {
			continue
		}
		states[groupOf(row)].Update(array.Scalar{})
	}
}

// BinaryUpdate drives a BinaryUpdater over two input columns (e.g. a
// covariance-style aggregate), updating with a 2-element list Scalar per
// row.
func BinaryUpdate(sel *array.Bitmap, l, r *array.Array, groupOf func(row int) int, states []AggregateState) {
	n := l.LogicalLen()
	for row := 0; row < n; row++ {
		if sel != nil && !sel.Get(row) {
			continue
		}
		if !l.IsValid(row) || !r.IsValid(row) {
			continue
		}
		states[groupOf(row)].Update(array.Scalar{List: []array.Scalar{l.LogicalValue(row), r.LogicalValue(row)}})
	}
}

// Combine is the StateCombiner (spec.md §4.2, §4.3.2): it merges a drained
// vector of partition-local states into target states using the mapping
// from partition-local group index to the merged global group index.
func Combine(local []AggregateState, target []AggregateState, mapping []int) {
	for i, s := range local {
		target[mapping[i]].Merge(s)
	}
}

// Finalize is the StateFinalizer (spec.md §4.2): it materializes every
// state into an (output, valid) pair and appends into an output array of
// type out.
func Finalize(states []AggregateState, out array.DataType) *array.Array {
	scalars := make([]array.Scalar, len(states))
	for i, s := range states {
		v, ok := s.Finalize()
		if !ok {
			scalars[i] = array.NullScalar(out)
		} else {
			scalars[i] = v
		}
	}
	return scalarsToArray(out, scalars)
}

// --- concrete aggregate functions ---

// sumInt64State implements SUM over an int64 column.
type sumInt64State struct {
	sum  int64
	seen bool
}

func (s *sumInt64State) Update(v array.Scalar) {
	s.seen = true
	s.sum += v.I64
}
func (s *sumInt64State) Merge(other AggregateState) {
	o := other.(*sumInt64State)
	if !o.seen {
		return
	}
	s.seen = true
	s.sum += o.sum
}
func (s *sumInt64State) Finalize() (array.Scalar, bool) {
	if !s.seen {
		return array.Scalar{}, false
	}
	return array.Int64Scalar(s.sum), true
}

// NewSumInt64 is SUM(int64)'s new_group constructor.
func NewSumInt64() AggregateState { return &sumInt64State{} }

// sumFloat64State implements SUM over a float64 column.
type sumFloat64State struct {
	sum  float64
	seen bool
}

func (s *sumFloat64State) Update(v array.Scalar) {
	s.seen = true
	s.sum += v.F64
}
func (s *sumFloat64State) Merge(other AggregateState) {
	o := other.(*sumFloat64State)
	if !o.seen {
		return
	}
	s.seen = true
	s.sum += o.sum
}
func (s *sumFloat64State) Finalize() (array.Scalar, bool) {
	if !s.seen {
		return array.Scalar{}, false
	}
	return array.Float64Scalar(s.sum), true
}

// NewSumFloat64 is SUM(float64)'s new_group constructor.
func NewSumFloat64() AggregateState { return &sumFloat64State{} }

// countState implements COUNT(column): counts non-null updates.
type countState struct{ n int64 }

func (s *countState) Update(array.Scalar)        { s.n++ }
func (s *countState) Merge(other AggregateState) { s.n += other.(*countState).n }
func (s *countState) Finalize() (array.Scalar, bool) {
	return array.Int64Scalar(s.n), true
}

// NewCount is COUNT(column)'s new_group constructor.
func NewCount() AggregateState { return &countState{} }

// NewCountStar is COUNT(*)'s new_group constructor; it is driven by
// UnaryUpdateUnit, which ignores any particular input column.
func NewCountStar() AggregateState { return &countState{} }

// minInt64State implements MIN over an int64 column.
type minInt64State struct {
	min  int64
	seen bool
}

func (s *minInt64State) Update(v array.Scalar) {
	if !s.seen || v.I64 < s.min {
		s.min = v.I64
	}
	s.seen = true
}
func (s *minInt64State) Merge(other AggregateState) {
	o := other.(*minInt64State)
	if !o.seen {
		return
	}
	if !s.seen || o.min < s.min {
		s.min = o.min
	}
	s.seen = true
}
func (s *minInt64State) Finalize() (array.Scalar, bool) {
	if !s.seen {
		return array.Scalar{}, false
	}
	return array.Int64Scalar(s.min), true
}

// NewMinInt64 is MIN(int64)'s new_group constructor.
func NewMinInt64() AggregateState { return &minInt64State{} }

// maxInt64State implements MAX over an int64 column.
type maxInt64State struct {
	max  int64
	seen bool
}

func (s *maxInt64State) Update(v array.Scalar) {
	if !s.seen || v.I64 > s.max {
		s.max = v.I64
	}
	s.seen = true
}
func (s *maxInt64State) Merge(other AggregateState) {
	o := other.(*maxInt64State)
	if !o.seen {
		return
	}
	if !s.seen || o.max > s.max {
		s.max = o.max
	}
	s.seen = true
}
func (s *maxInt64State) Finalize() (array.Scalar, bool) {
	if !s.seen {
		return array.Scalar{}, false
	}
	return array.Int64Scalar(s.max), true
}

// NewMaxInt64 is MAX(int64)'s new_group constructor.
func NewMaxInt64() AggregateState { return &maxInt64State{} }
