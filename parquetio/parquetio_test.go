package parquetio

import (
	"bytes"
	"testing"

	"github.com/coredbio/coredb/array"
	"github.com/coredbio/coredb/coreerr"
)

func TestULEB128RoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 127, 128, 624485, 1 << 40, ^uint64(0)} {
		buf := EncodeULEB128(nil, v)
		got, n, err := DecodeULEB128(buf)
		if err != nil {
			t.Fatalf("decode %d: %v", v, err)
		}
		if got != v || n != len(buf) {
			t.Fatalf("round trip %d: got %d, consumed %d/%d", v, got, n, len(buf))
		}
	}
}

func TestULEB128TruncatedErrors(t *testing.T) {
	buf := EncodeULEB128(nil, 624485)
	_, _, err := DecodeULEB128(buf[:1])
	if err == nil {
		t.Fatal("expected truncated sequence error")
	}
}

func TestHybridRLERoundTripConstant(t *testing.T) {
	levels := make([]int, 100)
	for i := range levels {
		levels[i] = 1
	}
	enc := EncodeHybridRLE(levels, bitWidthFor(1))
	got, _, err := DecodeHybridRLE(enc, bitWidthFor(1), len(levels))
	if err != nil {
		t.Fatal(err)
	}
	for i := range levels {
		if got[i] != levels[i] {
			t.Fatalf("level %d: want %d got %d", i, levels[i], got[i])
		}
	}
}

func TestHybridRLERoundTripMixed(t *testing.T) {
	levels := []int{1, 0, 1, 1, 0, 0, 1, 0, 1, 1, 0}
	enc := EncodeHybridRLE(levels, 1)
	got, _, err := DecodeHybridRLE(enc, 1, len(levels))
	if err != nil {
		t.Fatal(err)
	}
	for i := range levels {
		if got[i] != levels[i] {
			t.Fatalf("level %d: want %d got %d", i, levels[i], got[i])
		}
	}
}

func i64Col(vals []int64, valid []bool) *array.Array {
	b := array.NewBitmap(len(vals))
	for i, v := range valid {
		if v {
			b.Set(i)
		}
	}
	return &array.Array{Type: array.DataType{ID: array.Int64}, Storage: &array.Int64Storage{Values: vals}, Validity: b}
}

func strColAllValid(vals []string) *array.Array {
	offsets := make([]int32, len(vals)+1)
	var data []byte
	for i, v := range vals {
		data = append(data, v...)
		offsets[i+1] = int32(len(data))
	}
	return &array.Array{Type: array.DataType{ID: array.Utf8}, Storage: &array.VarlenStorage{Offsets: offsets, Data: data}, Validity: array.NewBitmapAllValid(len(vals))}
}

func TestWriterReaderRoundTripInt64WithNulls(t *testing.T) {
	col := ColumnDescriptor{
		Path:        []string{"v"},
		Physical:    PhysicalInt64,
		Logical:     array.DataType{ID: array.Int64},
		MaxDefLevel: 1,
		Optional:    true,
	}
	arr := i64Col([]int64{10, 0, 30, 0, 50}, []bool{true, false, true, false, true})

	var buf bytes.Buffer
	w := NewWriter(&buf, []ColumnDescriptor{col}, CompressionZstd)
	if err := w.WriteRowGroup([]*array.Array{arr}, 5); err != nil {
		t.Fatal(err)
	}
	meta, err := w.Close()
	if err != nil {
		t.Fatal(err)
	}
	if meta.NumRows != 5 {
		t.Fatalf("NumRows = %d, want 5", meta.NumRows)
	}

	rt, err := ReadTrailer(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	if len(rt.RowGroups) != 1 || len(rt.RowGroups[0].Columns) != 1 {
		t.Fatalf("unexpected row group shape: %+v", rt.RowGroups)
	}
	cc := rt.RowGroups[0].Columns[0]

	body := buf.Bytes()[cc.DataPageOffset:]
	pos := 0
	pages := func() (Page, bool, error) {
		if pos >= len(body) {
			return Page{}, false, nil
		}
		h, n, err := DecodePageHeaderV2(body[pos:])
		if err != nil {
			return Page{}, false, err
		}
		pos += n
		pageBody := body[pos : pos+h.CompressedPageSize]
		pos += h.CompressedPageSize
		return Page{Header: h, Body: pageBody}, true, nil
	}
	reader := NewValuesReader(col, CompressionZstd, pages)
	out, err := reader.ReadRecords(5)
	if err != nil {
		t.Fatal(err)
	}
	if out.LogicalLen() != 5 {
		t.Fatalf("LogicalLen = %d, want 5", out.LogicalLen())
	}
	want := []int64{10, 0, 30, 0, 50}
	wantValid := []bool{true, false, true, false, true}
	for i := range want {
		if out.IsValid(i) != wantValid[i] {
			t.Fatalf("row %d validity = %v, want %v", i, out.IsValid(i), wantValid[i])
		}
		if wantValid[i] && out.LogicalValue(i).I64 != want[i] {
			t.Fatalf("row %d = %d, want %d", i, out.LogicalValue(i).I64, want[i])
		}
	}
}

func TestWriterReaderRoundTripByteArray(t *testing.T) {
	col := ColumnDescriptor{
		Path:        []string{"s"},
		Physical:    PhysicalByteArray,
		Logical:     array.DataType{ID: array.Utf8},
		MaxDefLevel: 0,
	}
	arr := strColAllValid([]string{"a", "bb", "ccc"})

	var buf bytes.Buffer
	w := NewWriter(&buf, []ColumnDescriptor{col}, CompressionUncompressed)
	if err := w.WriteRowGroup([]*array.Array{arr}, 3); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Close(); err != nil {
		t.Fatal(err)
	}

	rt, err := ReadTrailer(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	cc := rt.RowGroups[0].Columns[0]
	body := buf.Bytes()[cc.DataPageOffset:]
	h, n, err := DecodePageHeaderV2(body)
	if err != nil {
		t.Fatal(err)
	}
	pageBody := body[n : n+h.CompressedPageSize]
	used := false
	reader := NewValuesReader(col, CompressionUncompressed, func() (Page, bool, error) {
		if used {
			return Page{}, false, nil
		}
		used = true
		return Page{Header: h, Body: pageBody}, true, nil
	})
	out, err := reader.ReadRecords(3)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a", "bb", "ccc"}
	for i, w := range want {
		if out.LogicalValue(i).Str != w {
			t.Fatalf("row %d = %q, want %q", i, out.LogicalValue(i).Str, w)
		}
	}
}

func TestWriterReaderRoundTripDeltaLengthByteArray(t *testing.T) {
	col := ColumnDescriptor{
		Path:        []string{"s"},
		Physical:    PhysicalByteArray,
		Logical:     array.DataType{ID: array.Utf8},
		MaxDefLevel: 0,
		Encoding:    EncodingDeltaLengthByteArray,
	}
	arr := strColAllValid([]string{"a", "bb", "ccc"})

	var buf bytes.Buffer
	w := NewWriter(&buf, []ColumnDescriptor{col}, CompressionUncompressed)
	if err := w.WriteRowGroup([]*array.Array{arr}, 3); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Close(); err != nil {
		t.Fatal(err)
	}

	rt, err := ReadTrailer(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	cc := rt.RowGroups[0].Columns[0]
	if cc.Encodings[0] != EncodingDeltaLengthByteArray {
		t.Fatalf("column chunk meta encoding = %v, want DELTA_LENGTH_BYTE_ARRAY", cc.Encodings[0])
	}
	body := buf.Bytes()[cc.DataPageOffset:]
	h, n, err := DecodePageHeaderV2(body)
	if err != nil {
		t.Fatal(err)
	}
	if h.Encoding != EncodingDeltaLengthByteArray {
		t.Fatalf("page header encoding = %v, want DELTA_LENGTH_BYTE_ARRAY", h.Encoding)
	}
	pageBody := body[n : n+h.CompressedPageSize]
	used := false
	reader := NewValuesReader(col, CompressionUncompressed, func() (Page, bool, error) {
		if used {
			return Page{}, false, nil
		}
		used = true
		return Page{Header: h, Body: pageBody}, true, nil
	})
	out, err := reader.ReadRecords(3)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a", "bb", "ccc"}
	for i, w := range want {
		if out.LogicalValue(i).Str != w {
			t.Fatalf("row %d = %q, want %q", i, out.LogicalValue(i).Str, w)
		}
	}
}

func TestWriterRejectsUnsupportedEncoding(t *testing.T) {
	col := ColumnDescriptor{
		Path:        []string{"s"},
		Physical:    PhysicalByteArray,
		Logical:     array.DataType{ID: array.Utf8},
		MaxDefLevel: 0,
		Encoding:    EncodingRLEDictionary,
	}
	arr := strColAllValid([]string{"a"})
	var buf bytes.Buffer
	w := NewWriter(&buf, []ColumnDescriptor{col}, CompressionUncompressed)
	err := w.WriteRowGroup([]*array.Array{arr}, 1)
	if err == nil || !coreerr.Is(err, coreerr.NotImplemented) {
		t.Fatalf("expected NotImplemented error, got %v", err)
	}
}

func TestReaderRejectsUnsupportedEncoding(t *testing.T) {
	col := ColumnDescriptor{
		Path:        []string{"n"},
		Physical:    PhysicalInt64,
		Logical:     array.DataType{ID: array.Int64},
		MaxDefLevel: 0,
	}
	h := PageHeaderV2{Encoding: EncodingDeltaBinaryPacked, NumValues: 1, NumRows: 1, CompressedPageSize: 8, UncompressedPageSize: 8}
	used := false
	reader := NewValuesReader(col, CompressionUncompressed, func() (Page, bool, error) {
		if used {
			return Page{}, false, nil
		}
		used = true
		return Page{Header: h, Body: make([]byte, 8)}, true, nil
	})
	_, err := reader.ReadRecords(1)
	if err == nil || !coreerr.Is(err, coreerr.NotImplemented) {
		t.Fatalf("expected NotImplemented error, got %v", err)
	}
}

func TestColumnDescriptorsPreorderWalk(t *testing.T) {
	meta := &FileMetadata{
		Schema: []SchemaElement{
			{Name: "schema", NumChildren: 2},
			{Name: "a", Physical: PhysicalInt64, Logical: array.DataType{ID: array.Int64}},
			{Name: "b", Optional: true, Physical: PhysicalByteArray, Logical: array.DataType{ID: array.Utf8}},
		},
	}
	descs := meta.ColumnDescriptors()
	if len(descs) != 2 {
		t.Fatalf("got %d descriptors, want 2", len(descs))
	}
	if descs[0].Path[0] != "a" || descs[0].MaxDefLevel != 0 {
		t.Fatalf("descriptor a: %+v", descs[0])
	}
	if descs[1].Path[0] != "b" || descs[1].MaxDefLevel != 1 {
		t.Fatalf("descriptor b: %+v", descs[1])
	}
}
