package exec

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/coredbio/coredb/array"
)

// SortKeySpec is one ORDER BY term's direction and null ordering (spec.md
// §4.3.4); the key expression itself is held by the operator alongside it.
type SortKeySpec struct {
	Desc       bool
	NullsFirst bool
}

// EncodeRowKey builds a lexicographically comparable byte key for one
// logical row across a set of already-evaluated sort columns, honoring
// per-column ASC/DESC and NULLS FIRST/LAST (spec.md §4.3.4: "row encoding
// ... lexicographically comparable byte keys"). Descending columns are
// encoded by bit-complementing their ascending value encoding (the null
// tag byte is left as is), so a plain
// bytes.Compare over the whole key reproduces the requested ordering.
func EncodeRowKey(cols []*array.Array, row int, specs []SortKeySpec) []byte {
	var buf bytes.Buffer
	for i, c := range cols {
		spec := specs[i]
		start := buf.Len()
		valid := c.IsValid(row)

		// Null tag byte: 0 sorts before 1, so NULLS FIRST wants nulls
		// tagged 0 and NULLS LAST wants them tagged 1 -- independent of
		// the column's own ASC/DESC, per spec.md §4.3.4.
		nullTag := byte(1)
		if spec.NullsFirst {
			nullTag = 0
		}
		if !valid {
			buf.WriteByte(nullTag)
			appendZeroValueKey(&buf, c.Type)
		} else {
			if spec.NullsFirst {
				buf.WriteByte(1)
			} else {
				buf.WriteByte(0)
			}
			appendValueKey(&buf, c.LogicalValue(row))
		}

		if spec.Desc {
			complementRange(buf.Bytes()[start+1:])
		}
	}
	return buf.Bytes()
}

func complementRange(b []byte) {
	for i := range b {
		b[i] = ^b[i]
	}
}

func appendZeroValueKey(buf *bytes.Buffer, t array.DataType) {
	appendValueKey(buf, array.NullScalar(t))
}

// appendValueKey appends the ascending-order byte encoding of one
// non-null scalar's value. Signed integers and floats are encoded so
// that unsigned byte comparison matches numeric ordering (sign-flip for
// integers, the standard float-to-sortable-uint trick for floats).
func appendValueKey(buf *bytes.Buffer, v array.Scalar) {
	var tmp [8]byte
	switch v.Type.ID {
	case array.Boolean:
		if v.Bool {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case array.Int32:
		binary.BigEndian.PutUint32(tmp[:4], uint32(v.I32)^0x80000000)
		buf.Write(tmp[:4])
	case array.Int64:
		binary.BigEndian.PutUint64(tmp[:], uint64(v.I64)^0x8000000000000000)
		buf.Write(tmp[:])
	case array.Float32:
		buf.Write(sortableFloat32Bytes(v.F32))
	case array.Float64:
		buf.Write(sortableFloat64Bytes(v.F64))
	case array.Utf8:
		appendEscapedTerminated(buf, []byte(v.Str))
	case array.Binary:
		appendEscapedTerminated(buf, v.Bytes)
	default:
		// Struct/List keys are rare in practice for ORDER BY; fall back
		// to a stable recursive encoding of the child scalars.
		for _, e := range v.List {
			appendValueKey(buf, e)
		}
	}
}

// appendEscapedTerminated appends v with every 0x00 byte escaped to
// 0x00 0xFF, followed by a 0x00 0x00 terminator, so that a byte-wise
// comparison of the whole concatenated key never lets a short string
// look like a prefix of a longer one from a following column (the
// standard order-preserving escape used for variable-length fields in a
// composite byte key).
func appendEscapedTerminated(buf *bytes.Buffer, v []byte) {
	for _, b := range v {
		if b == 0x00 {
			buf.WriteByte(0x00)
			buf.WriteByte(0xFF)
		} else {
			buf.WriteByte(b)
		}
	}
	buf.WriteByte(0x00)
	buf.WriteByte(0x00)
}

func sortableFloat32Bytes(f float32) []byte {
	bits := math.Float32bits(f)
	if bits&0x80000000 != 0 {
		bits = ^bits
	} else {
		bits |= 0x80000000
	}
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], bits)
	return b[:]
}

func sortableFloat64Bytes(f float64) []byte {
	bits := math.Float64bits(f)
	if bits&0x8000000000000000 != 0 {
		bits = ^bits
	} else {
		bits |= 0x8000000000000000
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], bits)
	return b[:]
}
