package ipcformat

import (
	"bytes"
	"testing"

	"github.com/coredbio/coredb/array"
)

func i64Col(vals []int64, valid []bool) *array.Array {
	b := array.NewBitmap(len(vals))
	for i, v := range valid {
		if v {
			b.Set(i)
		}
	}
	return &array.Array{Type: array.DataType{ID: array.Int64}, Storage: &array.Int64Storage{Values: vals}, Validity: b}
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

func TestWriterReaderRoundTripMultipleBatches(t *testing.T) {
	b1 := array.NewBatch([]*array.Array{i64Col([]int64{1, 0, 3}, []bool{true, false, true}), strCol([]string{"a", "b", "c"})}, 3)
	b2 := array.NewBatch([]*array.Array{i64Col([]int64{4, 5}, []bool{true, true}), strCol([]string{"d", "e"})}, 2)

	schema := SchemaOf(b1, []string{"n", "s"})
	var buf bytes.Buffer
	w := NewWriter(&buf, schema)
	if err := w.WriteBatch(b1); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteBatch(b2); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r := NewReader(&buf)
	var got []*array.Batch
	for {
		b, ok, err := r.ReadBatch()
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		got = append(got, b)
	}
	if len(got) != 2 {
		t.Fatalf("got %d batches, want 2", len(got))
	}
	if got[0].NumRows != 3 || got[1].NumRows != 2 {
		t.Fatalf("row counts: %d, %d", got[0].NumRows, got[1].NumRows)
	}
	if got[0].Column(0).IsValid(1) {
		t.Fatal("row 1 of first batch's int column should be null")
	}
	if got[0].Column(1).LogicalValue(2).Str != "c" {
		t.Fatalf("got %q, want c", got[0].Column(1).LogicalValue(2).Str)
	}
	if got[1].Column(0).LogicalValue(0).I64 != 4 {
		t.Fatalf("got %d, want 4", got[1].Column(0).LogicalValue(0).I64)
	}
	if len(r.Schema.Fields) != 2 || r.Schema.Fields[0].Name != "n" {
		t.Fatalf("schema: %+v", r.Schema)
	}
}

func TestWriterReaderEmptyStream(t *testing.T) {
	b1 := array.NewBatch([]*array.Array{i64Col([]int64{1}, []bool{true})}, 1)
	schema := SchemaOf(b1, []string{"n"})
	var buf bytes.Buffer
	w := NewWriter(&buf, schema)
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	r := NewReader(&buf)
	_, ok, err := r.ReadBatch()
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected no batches on an immediately-closed stream")
	}
}
