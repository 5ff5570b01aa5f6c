package kernel

import (
	"fmt"

	"github.com/coredbio/coredb/array"
)

// UniformAny is the N-ary generalization of BinaryAny (spec.md §4.2): all
// inputs must share logical length; their validities are unioned and f is
// invoked with the per-row slice of scalar values for surviving rows.
func UniformAny(inputs []*array.Array, out array.DataType, f func([]array.Scalar) (array.Scalar, error)) (*array.Array, error) {
	if len(inputs) == 0 {
		return scalarsToArray(out, nil), nil
	}
	n := inputs[0].LogicalLen()
	for _, in := range inputs[1:] {
		if in.LogicalLen() != n {
			return nil, fmt.Errorf("uniform executor: mismatched logical lengths %d and %d", n, in.LogicalLen())
		}
	}
	scalars := make([]array.Scalar, n)
	row := make([]array.Scalar, len(inputs))
	for i := 0; i < n; i++ {
		anyNull := false
		for k, in := range inputs {
			row[k] = in.LogicalValue(i)
			if row[k].Null {
				anyNull = true
			}
		}
		if anyNull {
			scalars[i] = array.NullScalar(out)
			continue
		}
		v, err := f(row)
		if err != nil {
			return nil, err
		}
		scalars[i] = v
	}
	return scalarsToArray(out, scalars), nil
}
