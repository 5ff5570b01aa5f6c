package parquetio

import (
	"github.com/coredbio/coredb/array"
	"github.com/coredbio/coredb/coreerr"
)

// buildArray turns one page's definition levels and decoded (already
// decompressed, level-sections stripped) value bytes into an array of the
// column's logical type, per the per-logical-type rules of spec.md §4.4:
// primitives map definition levels straight to a validity bitmap
// (level == max_def_level means valid), varlen columns decode into the
// offset+data layout, booleans unpack a bit-packed page. The page's
// declared encoding selects the value decoder; an encoding this reader
// does not implement for the column's physical type is a NotImplemented
// error naming both, per spec.md §4.4, rather than being silently
// misdecoded as PLAIN bytes.
func buildArray(col ColumnDescriptor, defLevels []int, raw []byte, encoding Encoding) (*array.Array, error) {
	n := len(defLevels)
	valid := NewValidityFromLevels(defLevels, col.MaxDefLevel)
	numValid := valid.PopCount()

	if encoding == EncodingDeltaLengthByteArray {
		if col.Physical != PhysicalByteArray {
			return nil, coreerr.New(coreerr.NotImplemented, "parquet: encoding DELTA_LENGTH_BYTE_ARRAY unsupported for physical type %d", col.Physical)
		}
		return buildByteArrayDeltaLength(col, raw, valid, numValid, n)
	}
	if encoding != EncodingPlain {
		return nil, coreerr.New(coreerr.NotImplemented, "parquet: encoding %d unsupported for physical type %d", encoding, col.Physical)
	}

	switch col.Physical {
	case PhysicalBoolean:
		vals, err := PlainDecodeBoolean(raw, numValid)
		if err != nil {
			return nil, err
		}
		full := make([]bool, n)
		spread(vals, valid, full)
		return &array.Array{Type: col.Logical, Storage: boolStorage(full), Validity: valid}, nil
	case PhysicalInt32:
		vals, err := PlainDecodeInt32(raw, numValid)
		if err != nil {
			return nil, err
		}
		full := make([]int32, n)
		spreadInt32(vals, valid, full)
		return &array.Array{Type: col.Logical, Storage: &array.Int32Storage{Values: full}, Validity: valid}, nil
	case PhysicalInt64:
		vals, err := PlainDecodeInt64(raw, numValid)
		if err != nil {
			return nil, err
		}
		full := make([]int64, n)
		spreadInt64(vals, valid, full)
		return &array.Array{Type: col.Logical, Storage: &array.Int64Storage{Values: full}, Validity: valid}, nil
	case PhysicalFloat:
		vals, err := PlainDecodeFloat32(raw, numValid)
		if err != nil {
			return nil, err
		}
		full := make([]float32, n)
		spreadFloat32(vals, valid, full)
		return &array.Array{Type: col.Logical, Storage: &array.Float32Storage{Values: full}, Validity: valid}, nil
	case PhysicalDouble:
		vals, err := PlainDecodeFloat64(raw, numValid)
		if err != nil {
			return nil, err
		}
		full := make([]float64, n)
		spreadFloat64(vals, valid, full)
		return &array.Array{Type: col.Logical, Storage: &array.Float64Storage{Values: full}, Validity: valid}, nil
	case PhysicalByteArray:
		vals, err := PlainDecodeByteArray(raw, numValid)
		if err != nil {
			return nil, err
		}
		offsets := make([]int32, n+1)
		var data []byte
		vi := 0
		for i := 0; i < n; i++ {
			if valid.Get(i) {
				data = append(data, vals[vi]...)
				vi++
			}
			offsets[i+1] = int32(len(data))
		}
		return &array.Array{Type: col.Logical, Storage: &array.VarlenStorage{Offsets: offsets, Data: data}, Validity: valid}, nil
	default:
		return nil, coreerr.New(coreerr.NotImplemented, "parquet: physical type %d", col.Physical)
	}
}

// buildByteArrayDeltaLength decodes a DELTA_LENGTH_BYTE_ARRAY page: a
// DeltaEncodeLengths-encoded length stream for every present value,
// followed by their concatenated raw bytes (spec.md §4.4; the length
// stream's own wire format is the Open Question (c) resolution recorded
// in parquetio/encoder.go's DeltaEncodeLengths doc comment).
func buildByteArrayDeltaLength(col ColumnDescriptor, raw []byte, valid *array.Bitmap, numValid, n int) (*array.Array, error) {
	lengths, used, err := DeltaDecodeLengths(raw, numValid)
	if err != nil {
		return nil, err
	}
	body := raw[used:]
	offsets := make([]int32, n+1)
	var data []byte
	bodyPos := 0
	li := 0
	for i := 0; i < n; i++ {
		if valid.Get(i) {
			l := lengths[li]
			li++
			if bodyPos+l > len(body) {
				return nil, coreerr.New(coreerr.Parse, "parquet: truncated DELTA_LENGTH_BYTE_ARRAY value")
			}
			data = append(data, body[bodyPos:bodyPos+l]...)
			bodyPos += l
		}
		offsets[i+1] = int32(len(data))
	}
	return &array.Array{Type: col.Logical, Storage: &array.VarlenStorage{Offsets: offsets, Data: data}, Validity: valid}, nil
}

// NewValidityFromLevels builds a validity bitmap where bit i is set iff
// defLevels[i] == maxDefLevel (spec.md §4.4: "level == max_def_level
// means valid").
func NewValidityFromLevels(defLevels []int, maxDefLevel int) *array.Bitmap {
	b := array.NewBitmap(len(defLevels))
	for i, lv := range defLevels {
		if lv == maxDefLevel {
			b.Set(i)
		}
	}
	return b
}

func spread(vals []bool, valid *array.Bitmap, out []bool) {
	vi := 0
	for i := range out {
		if valid.Get(i) {
			out[i] = vals[vi]
			vi++
		}
	}
}
func spreadInt32(vals []int32, valid *array.Bitmap, out []int32) {
	vi := 0
	for i := range out {
		if valid.Get(i) {
			out[i] = vals[vi]
			vi++
		}
	}
}
func spreadInt64(vals []int64, valid *array.Bitmap, out []int64) {
	vi := 0
	for i := range out {
		if valid.Get(i) {
			out[i] = vals[vi]
			vi++
		}
	}
}
func spreadFloat32(vals []float32, valid *array.Bitmap, out []float32) {
	vi := 0
	for i := range out {
		if valid.Get(i) {
			out[i] = vals[vi]
			vi++
		}
	}
}
func spreadFloat64(vals []float64, valid *array.Bitmap, out []float64) {
	vi := 0
	for i := range out {
		if valid.Get(i) {
			out[i] = vals[vi]
			vi++
		}
	}
}

func boolStorage(vals []bool) *array.BoolStorage {
	b := array.NewBitmap(len(vals))
	for i, v := range vals {
		if v {
			b.Set(i)
		}
	}
	return &array.BoolStorage{Bits: b, N: len(vals)}
}

// concatArrays gathers every row of every part array, in order, via
// Interleave (spec.md §4.1's gather primitive), producing a single
// array of the requested type. An empty parts list yields a zero-row
// array of t so callers never special-case "no pages read".
func concatArrays(t array.DataType, parts []*array.Array) *array.Array {
	if len(parts) == 0 {
		return zeroArray(t)
	}
	var refs []array.RowRef
	for pi, p := range parts {
		for r := 0; r < p.LogicalLen(); r++ {
			refs = append(refs, array.RowRef{Src: int32(pi), Row: int32(r)})
		}
	}
	return array.Interleave(parts, refs)
}

func zeroArray(t array.DataType) *array.Array {
	switch t.ID {
	case array.Boolean:
		return array.NewArray(t, &array.BoolStorage{Bits: array.NewBitmap(0), N: 0})
	case array.Int32:
		return array.NewArray(t, &array.Int32Storage{})
	case array.Int64:
		return array.NewArray(t, &array.Int64Storage{})
	case array.Float32:
		return array.NewArray(t, &array.Float32Storage{})
	case array.Float64:
		return array.NewArray(t, &array.Float64Storage{})
	default:
		return array.NewArray(t, &array.VarlenStorage{Offsets: []int32{0}})
	}
}

// padWithNulls extends arr to n rows by appending all-null rows, used
// when a column ran out of pages before n records were read (spec.md
// §4.4: "pads with nulls when the number of values read is less than the
// number of levels read").
func padWithNulls(arr *array.Array, n int) *array.Array {
	have := arr.LogicalLen()
	if have >= n {
		return arr
	}
	valid := array.NewBitmap(n)
	for i := 0; i < have; i++ {
		if arr.IsValid(i) {
			valid.Set(i)
		}
	}
	switch s := arr.Storage.(type) {
	case *array.Int32Storage:
		vals := append(append([]int32(nil), s.Values...), make([]int32, n-have)...)
		return &array.Array{Type: arr.Type, Storage: &array.Int32Storage{Values: vals}, Validity: valid}
	case *array.Int64Storage:
		vals := append(append([]int64(nil), s.Values...), make([]int64, n-have)...)
		return &array.Array{Type: arr.Type, Storage: &array.Int64Storage{Values: vals}, Validity: valid}
	case *array.Float32Storage:
		vals := append(append([]float32(nil), s.Values...), make([]float32, n-have)...)
		return &array.Array{Type: arr.Type, Storage: &array.Float32Storage{Values: vals}, Validity: valid}
	case *array.Float64Storage:
		vals := append(append([]float64(nil), s.Values...), make([]float64, n-have)...)
		return &array.Array{Type: arr.Type, Storage: &array.Float64Storage{Values: vals}, Validity: valid}
	case *array.BoolStorage:
		bits := array.NewBitmap(n)
		for i := 0; i < have; i++ {
			if s.Bits.Get(i) {
				bits.Set(i)
			}
		}
		return &array.Array{Type: arr.Type, Storage: &array.BoolStorage{Bits: bits, N: n}, Validity: valid}
	case *array.VarlenStorage:
		offsets := append([]int32(nil), s.Offsets[:have+1]...)
		for i := have; i < n; i++ {
			offsets = append(offsets, offsets[len(offsets)-1])
		}
		return &array.Array{Type: arr.Type, Storage: &array.VarlenStorage{Offsets: offsets, Data: s.Data}, Validity: valid}
	default:
		return arr
	}
}
