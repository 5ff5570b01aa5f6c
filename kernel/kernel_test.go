package kernel

import (
	"testing"

	"github.com/coredbio/coredb/array"
)

func i64arr(vals []int64) *array.Array {
	return &array.Array{Type: array.DataType{ID: array.Int64}, Storage: &array.Int64Storage{Values: vals}}
}

func TestExecuteInt64ToInt64(t *testing.T) {
	a := i64arr([]int64{1, 2, 3})
	out := ExecuteInt64ToInt64(a, func(v int64) (int64, bool) { return v * 10, true })
	for i, want := range []int64{10, 20, 30} {
		if out.LogicalValue(i).I64 != want {
			t.Fatalf("row %d: want %d got %d", i, want, out.LogicalValue(i).I64)
		}
	}
}

func TestExecuteInt64Int64ToInt64ValidityUnion(t *testing.T) {
	l := i64arr([]int64{1, 2, 3})
	r := i64arr([]int64{10, 20, 30})
	rv := array.NewBitmapAllValid(3)
	rv.Unset(1)
	r.Validity = rv
	out, err := ExecuteInt64Int64ToInt64(l, r, func(a, b int64) int64 { return a + b })
	if err != nil {
		t.Fatal(err)
	}
	if out.LogicalValue(0).I64 != 11 {
		t.Fatalf("row0: want 11 got %d", out.LogicalValue(0).I64)
	}
	if !out.LogicalValue(1).Null {
		t.Fatalf("row1: expected null (right input null)")
	}
	if out.LogicalValue(2).I64 != 33 {
		t.Fatalf("row2: want 33 got %d", out.LogicalValue(2).I64)
	}
}

func TestExecuteCompareMismatchedLen(t *testing.T) {
	l := i64arr([]int64{1, 2})
	r := i64arr([]int64{1, 2, 3})
	_, err := ExecuteCompare(l, r, func(a, b array.Scalar) bool { return true })
	if err == nil {
		t.Fatalf("expected error on mismatched logical length")
	}
}

func TestSelect(t *testing.T) {
	b := &array.BoolStorage{Bits: array.NewBitmap(4), N: 4}
	b.Bits.Set(0)
	b.Bits.Set(2)
	arr := &array.Array{Type: array.DataType{ID: array.Boolean}, Storage: b}
	sel := Select(arr)
	if sel.Len() != 2 || sel.At(0) != 0 || sel.At(1) != 2 {
		t.Fatalf("unexpected selection: len=%d", sel.Len())
	}
}

func TestAggregateSumAndCombine(t *testing.T) {
	// two groups: group 0 gets rows {0,2}, group 1 gets row {1}
	in := i64arr([]int64{1, 2, 3})
	states := []AggregateState{NewSumInt64(), NewSumInt64()}
	groupOf := func(row int) int { return []int{0, 1, 0}[row] }
	UnaryUpdate(nil, in, groupOf, states)

	out := Finalize(states, array.DataType{ID: array.Int64})
	if out.LogicalValue(0).I64 != 4 || out.LogicalValue(1).I64 != 2 {
		t.Fatalf("unexpected sums: %d, %d", out.LogicalValue(0).I64, out.LogicalValue(1).I64)
	}

	// merge a second partition's states into the first
	partition2 := []AggregateState{NewSumInt64(), NewSumInt64()}
	in2 := i64arr([]int64{100, 200})
	UnaryUpdate(nil, in2, func(row int) int { return row }, partition2)
	Combine(partition2, states, []int{0, 1})
	out2 := Finalize(states, array.DataType{ID: array.Int64})
	if out2.LogicalValue(0).I64 != 104 || out2.LogicalValue(1).I64 != 202 {
		t.Fatalf("unexpected merged sums: %d, %d", out2.LogicalValue(0).I64, out2.LogicalValue(1).I64)
	}
}

func TestCastUtf8ToInt64Error(t *testing.T) {
	a := &array.Array{Type: array.DataType{ID: array.Utf8}, Storage: &array.VarlenStorage{
		Offsets: []int32{0, 3},
		Data:    []byte("abc"),
	}, Validity: array.NewBitmapAllValid(1)}
	_, err := Cast(a, array.DataType{ID: array.Int64})
	if err == nil {
		t.Fatalf("expected cast error")
	}
}

func TestCastInt64ToUtf8(t *testing.T) {
	a := i64arr([]int64{42})
	a.Validity = array.NewBitmapAllValid(1)
	out, err := Cast(a, array.DataType{ID: array.Utf8})
	if err != nil {
		t.Fatal(err)
	}
	if out.LogicalValue(0).Str != "42" {
		t.Fatalf("want \"42\" got %q", out.LogicalValue(0).Str)
	}
}
