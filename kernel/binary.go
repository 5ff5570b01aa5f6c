package kernel

import (
	"fmt"

	"golang.org/x/exp/constraints"

	"github.com/coredbio/coredb/array"
)

// checkEqualLen errors if l and r do not share a logical length, as
// spec.md §4.2 requires ("error if not") before a BinaryExecutor may run.
func checkEqualLen(l, r *array.Array) error {
	if l.LogicalLen() != r.LogicalLen() {
		return fmt.Errorf("binary executor: mismatched logical lengths %d and %d", l.LogicalLen(), r.LogicalLen())
	}
	return nil
}

// BinaryAny executes f over every logical row of l and r (which must share
// a logical length), unions their validities, and invokes f only for
// surviving (both-valid) rows (spec.md §4.2). The fallible variant
// propagates f's error and short-circuits.
func BinaryAny(l, r *array.Array, out array.DataType, f func(array.Scalar, array.Scalar) (array.Scalar, error)) (*array.Array, error) {
	if err := checkEqualLen(l, r); err != nil {
		return nil, err
	}
	n := l.LogicalLen()
	scalars := make([]array.Scalar, n)
	for i := 0; i < n; i++ {
		lv, rv := l.LogicalValue(i), r.LogicalValue(i)
		if lv.Null || rv.Null {
			scalars[i] = array.NullScalar(out)
			continue
		}
		v, err := f(lv, rv)
		if err != nil {
			return nil, err
		}
		scalars[i] = v
	}
	return scalarsToArray(out, scalars), nil
}

// executeUniformBinary is the shared generic body of the monomorphic
// same-type binary fast paths: one implementation over
// constraints.Integer | constraints.Float instead of a copy per numeric
// width (the same division of labor as executeUniformUnary in unary.go).
func executeUniformBinary[T constraints.Integer | constraints.Float](l, r *array.Array, extract func(array.Scalar) T, f func(T, T) T) ([]T, *array.Bitmap, error) {
	if err := checkEqualLen(l, r); err != nil {
		return nil, nil, err
	}
	n := l.LogicalLen()
	out := make([]T, n)
	valid := array.NewBitmap(n)
	for i := 0; i < n; i++ {
		if !l.IsValid(i) || !r.IsValid(i) {
			continue
		}
		out[i] = f(extract(l.LogicalValue(i)), extract(r.LogicalValue(i)))
		valid.Set(i)
	}
	return out, valid, nil
}

// ExecuteInt64Int64ToInt64 is the monomorphic fast path for an
// (int64, int64) -> int64 binary kernel (arithmetic: add/sub/mul; integer
// over/underflow follows Go's native int64 wraparound, per spec.md §4.2's
// error policy).
func ExecuteInt64Int64ToInt64(l, r *array.Array, f func(int64, int64) int64) (*array.Array, error) {
	out, valid, err := executeUniformBinary(l, r, func(s array.Scalar) int64 { return s.I64 }, f)
	if err != nil {
		return nil, err
	}
	return &array.Array{Type: array.DataType{ID: array.Int64}, Storage: &array.Int64Storage{Values: out}, Validity: valid}, nil
}

// ExecuteFloat64Float64ToFloat64 is the monomorphic fast path for an
// (float64, float64) -> float64 binary kernel.
func ExecuteFloat64Float64ToFloat64(l, r *array.Array, f func(float64, float64) float64) (*array.Array, error) {
	out, valid, err := executeUniformBinary(l, r, func(s array.Scalar) float64 { return s.F64 }, f)
	if err != nil {
		return nil, err
	}
	return &array.Array{Type: array.DataType{ID: array.Float64}, Storage: &array.Float64Storage{Values: out}, Validity: valid}, nil
}

// ExecuteCompare is the monomorphic fast path for any (l, r) -> bool
// comparison kernel, dispatching l and r's scalar values through cmp. Used
// by physicalexpr's comparison and boolean operators, and so by Filter
// predicates (spec.md §4.3.1).
func ExecuteCompare(l, r *array.Array, cmp func(array.Scalar, array.Scalar) bool) (*array.Array, error) {
	if err := checkEqualLen(l, r); err != nil {
		return nil, err
	}
	n := l.LogicalLen()
	bits := array.NewBitmap(n)
	valid := array.NewBitmap(n)
	for i := 0; i < n; i++ {
		if !l.IsValid(i) || !r.IsValid(i) {
			continue
		}
		valid.Set(i)
		bits.PutBool(i, cmp(l.LogicalValue(i), r.LogicalValue(i)))
	}
	return &array.Array{Type: array.DataType{ID: array.Boolean}, Storage: &array.BoolStorage{Bits: bits, N: n}, Validity: valid}, nil
}
