package array

import (
	"encoding/binary"
	"math"

	"github.com/dchest/siphash"
)

// hashKey0, hashKey1 are fixed siphash keys. The hash only needs to be
// stable within a single query execution (it seeds an in-memory hash
// table), so a fixed key is sufficient and avoids the cost of per-query
// random key generation.
const (
	hashKey0 uint64 = 0x736e656c6c657221
	hashKey1 uint64 = 0x636f726564627630
)

// RowHash computes the stable 64-bit hash over one logical row across a
// set of key columns (spec.md §4.3.2, §4.3.3: "a stable 64-bit hash").
// Grounded on the teacher's own row hashing (vm/interphash.go,
// plan/input.go, expr/redact.go), all of which call
// github.com/dchest/siphash's siphash.Hash(k0, k1, buf) over a
// byte-serialized span; here the span is built by serializing each
// column's scalar value for the row in a fixed, type-tagged layout.
// Int32 and Int64 share one tag and a widened 8-byte value, as do Float32
// and Float64, so equal values of different widths hash alike.
func RowHash(cols []*Array, row int) uint64 {
	buf := make([]byte, 0, 9*len(cols))
	for _, c := range cols {
		buf = appendScalarHashBytes(buf, c.LogicalValue(row))
	}
	return siphash.Hash(hashKey0, hashKey1, buf)
}

func appendScalarHashBytes(buf []byte, s Scalar) []byte {
	if s.Null {
		return append(buf, 0)
	}
	var tmp [8]byte
	switch s.Type.ID {
	case Boolean:
		if s.Bool {
			return append(buf, 1, 1)
		}
		return append(buf, 1, 0)
	case Int32:
		binary.LittleEndian.PutUint64(tmp[:], uint64(int64(s.I32)))
		return append(append(buf, 2), tmp[:]...)
	case Int64:
		binary.LittleEndian.PutUint64(tmp[:], uint64(s.I64))
		return append(append(buf, 2), tmp[:]...)
	case Float32:
		binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(float64(s.F32)))
		return append(append(buf, 3), tmp[:]...)
	case Float64:
		binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(s.F64))
		return append(append(buf, 3), tmp[:]...)
	case Utf8:
		buf = append(buf, 4)
		return append(buf, s.Str...)
	case Binary:
		buf = append(buf, 5)
		return append(buf, s.Bytes...)
	default:
		buf = append(buf, 6)
		for _, e := range s.List {
			buf = appendScalarHashBytes(buf, e)
		}
		return buf
	}
}

// RowEquals reports whether logical row i of cols equals logical row j of
// other (or the same cols when other is nil), used to resolve hash
// collisions in the aggregate and join hash tables (spec.md §4.3.2's
// group_row_equals).
func RowEquals(cols []*Array, i int, other []*Array, j int) bool {
	if other == nil {
		other = cols
	}
	for k := range cols {
		if !scalarEqual(cols[k].LogicalValue(i), other[k].LogicalValue(j)) {
			return false
		}
	}
	return true
}

// ScalarEqual reports whether two scalars are logically equal, coercing
// across numeric widths when their types differ. Exported for callers
// that need to compare individually materialized scalars outside a
// column context, such as the HashAggregate group-key builder
// (exec/hashaggregate.go).
func ScalarEqual(a, b Scalar) bool { return scalarEqual(a, b) }

func scalarEqual(a, b Scalar) bool {
	if a.Null != b.Null {
		return false
	}
	if a.Null {
		return true
	}
	if a.Type.ID != b.Type.ID {
		af, aok := a.AsFloat64()
		bf, bok := b.AsFloat64()
		return aok && bok && af == bf
	}
	switch a.Type.ID {
	case Boolean:
		return a.Bool == b.Bool
	case Int32:
		return a.I32 == b.I32
	case Int64:
		return a.I64 == b.I64
	case Float32:
		return a.F32 == b.F32
	case Float64:
		return a.F64 == b.F64
	case Utf8:
		return a.Str == b.Str
	case Binary:
		return string(a.Bytes) == string(b.Bytes)
	default:
		if len(a.List) != len(b.List) {
			return false
		}
		for i := range a.List {
			if !scalarEqual(a.List[i], b.List[i]) {
				return false
			}
		}
		return true
	}
}
