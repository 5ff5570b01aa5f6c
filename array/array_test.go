package array

import "testing"

func int64Array(values []int64, nulls ...int) *Array {
	a := &Array{Type: DataType{ID: Int64}, Storage: &Int64Storage{Values: values}}
	if len(nulls) > 0 {
		v := NewBitmapAllValid(len(values))
		for _, n := range nulls {
			v.Unset(n)
		}
		a.Validity = v
	}
	return a
}

func TestLogicalLenIdentity(t *testing.T) {
	a := int64Array([]int64{1, 2, 3})
	if a.LogicalLen() != 3 || a.PhysicalLen() != 3 {
		t.Fatalf("expected len 3, got logical=%d physical=%d", a.LogicalLen(), a.PhysicalLen())
	}
}

func TestSelectComposition(t *testing.T) {
	a := int64Array([]int64{10, 20, 30, 40})
	sel1 := a.Select(NewSelection([]int32{3, 1}))
	if sel1.LogicalLen() != 2 {
		t.Fatalf("expected logical len 2, got %d", sel1.LogicalLen())
	}
	if v := sel1.LogicalValue(0); v.I64 != 40 {
		t.Fatalf("expected 40, got %d", v.I64)
	}
	// compose a second selection over the first
	sel2 := sel1.Select(NewSelection([]int32{1, 0}))
	if v := sel2.LogicalValue(0); v.I64 != 20 {
		t.Fatalf("expected 20 got %d", v.I64)
	}
	if v := sel2.LogicalValue(1); v.I64 != 40 {
		t.Fatalf("expected 40 got %d", v.I64)
	}
}

func TestLogicalValueNull(t *testing.T) {
	a := int64Array([]int64{1, 2, 3}, 1)
	if !a.LogicalValue(1).Null {
		t.Fatalf("expected row 1 null")
	}
	if a.LogicalValue(0).Null {
		t.Fatalf("expected row 0 valid")
	}
}

func TestFilter(t *testing.T) {
	a := int64Array([]int64{1, 2, 3, 4, 5})
	bm := NewBitmap(5)
	bm.Set(1)
	bm.Set(3)
	out := Filter(a, bm)
	if out.LogicalLen() != 2 {
		t.Fatalf("expected 2 rows, got %d", out.LogicalLen())
	}
	if out.LogicalValue(0).I64 != 2 || out.LogicalValue(1).I64 != 4 {
		t.Fatalf("unexpected filter result")
	}
}

func TestBitmapAnd(t *testing.T) {
	a := NewBitmap(4)
	a.Set(0)
	a.Set(1)
	b := NewBitmap(4)
	b.Set(1)
	b.Set(2)
	and := And(a, b, 4)
	if and.Get(0) || !and.Get(1) || and.Get(2) || and.Get(3) {
		t.Fatalf("unexpected AND result")
	}
	if and.PopCount() != 1 {
		t.Fatalf("expected popcount 1, got %d", and.PopCount())
	}
}

func TestBitmapNilIsAllValid(t *testing.T) {
	var b *Bitmap
	if !b.Get(0) || b.PopCount() != 0 {
		t.Fatalf("nil bitmap should read as all-valid but report 0 popcount")
	}
}

func TestBatchSlice(t *testing.T) {
	a := int64Array([]int64{1, 2, 3, 4, 5})
	b := NewBatch([]*Array{a}, 5)
	s := b.Slice(1, 2)
	if s.NumRows != 2 {
		t.Fatalf("expected 2 rows, got %d", s.NumRows)
	}
	if s.Column(0).LogicalValue(0).I64 != 2 || s.Column(0).LogicalValue(1).I64 != 3 {
		t.Fatalf("unexpected slice contents")
	}
}

func TestInterleave(t *testing.T) {
	a := int64Array([]int64{1, 2, 3})
	b := int64Array([]int64{10, 20, 30})
	out := Interleave([]*Array{a, b}, []RowRef{{Src: 0, Row: 2}, {Src: 1, Row: 0}, {Src: 0, Row: 0}})
	want := []int64{3, 10, 1}
	for i, w := range want {
		if out.LogicalValue(i).I64 != w {
			t.Fatalf("row %d: expected %d, got %d", i, w, out.LogicalValue(i).I64)
		}
	}
}

func TestRowHashStable(t *testing.T) {
	a := int64Array([]int64{1, 2, 3})
	b := int64Array([]int64{1, 2, 3})
	if RowHash([]*Array{a}, 0) != RowHash([]*Array{b}, 0) {
		t.Fatalf("expected stable hash across equal arrays")
	}
	if RowHash([]*Array{a}, 0) == RowHash([]*Array{a}, 1) {
		t.Fatalf("expected different hashes for different values (flaky but overwhelmingly likely)")
	}
}

func TestRowEquals(t *testing.T) {
	a := int64Array([]int64{1, 2, 3})
	b := int64Array([]int64{9, 2, 9})
	if !RowEquals([]*Array{a}, 1, []*Array{b}, 1) {
		t.Fatalf("expected row 1 equal")
	}
	if RowEquals([]*Array{a}, 0, []*Array{b}, 0) {
		t.Fatalf("expected row 0 unequal")
	}
}
