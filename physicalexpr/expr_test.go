package physicalexpr

import (
	"testing"

	"github.com/coredbio/coredb/array"
)

func col(i int, t array.DataType) *Column { return &Column{Index: i, Typ: t} }

func i64Array(vals []int64) *array.Array {
	return &array.Array{Type: array.DataType{ID: array.Int64}, Storage: &array.Int64Storage{Values: vals},
		Validity: array.NewBitmapAllValid(len(vals))}
}

func TestFilterPredicate(t *testing.T) {
	batch := array.NewBatch([]*array.Array{i64Array([]int64{1, 2, 3})}, 3)
	pred := &BinaryOp{Op: ">", Left: col(0, array.DataType{ID: array.Int64}), Right: &Literal{Value: array.Int64Scalar(1)}, Out: array.DataType{ID: array.Boolean}}
	out, err := pred.Eval(batch)
	if err != nil {
		t.Fatal(err)
	}
	want := []bool{false, true, true}
	for i, w := range want {
		if out.LogicalValue(i).Bool != w {
			t.Fatalf("row %d: want %v got %v", i, w, out.LogicalValue(i).Bool)
		}
	}
}

func TestProjectArithmetic(t *testing.T) {
	batch := array.NewBatch([]*array.Array{i64Array([]int64{1, 2, 3})}, 3)
	proj := &BinaryOp{Op: "*", Left: col(0, array.DataType{ID: array.Int64}), Right: &Literal{Value: array.Int64Scalar(10)}, Out: array.DataType{ID: array.Int64}}
	out, err := proj.Eval(batch)
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{10, 20, 30}
	for i, w := range want {
		if out.LogicalValue(i).I64 != w {
			t.Fatalf("row %d: want %d got %d", i, w, out.LogicalValue(i).I64)
		}
	}
}
