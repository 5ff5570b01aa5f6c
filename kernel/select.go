package kernel

import "github.com/coredbio/coredb/array"

// Select appends the logical positions of in's true rows to a selection
// vector (spec.md §4.2: "A SelectExecutor takes a boolean array and
// appends the positions of its true rows to a selection vector. valid=false
// rows are treated as false."). This is the kernel Filter (exec/filter.go)
// drives to turn a predicate result into the selection composed onto the
// input batch.
func Select(in *array.Array) *array.Selection {
	n := in.LogicalLen()
	idx := make([]int32, 0, n)
	for i := 0; i < n; i++ {
		if in.IsValid(i) && in.LogicalValue(i).Bool {
			idx = append(idx, int32(i))
		}
	}
	return array.NewSelection(idx)
}
