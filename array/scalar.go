package array

// Scalar is the tagged-union result of Array.LogicalValue (spec.md §4.1).
// Grounded on rayexec_bullet/src/scalar.rs (original_source): a closed
// enum of possible scalar representations, translated here to a Go tagged
// struct with one populated field per TypeID.
type Scalar struct {
	Type  DataType
	Null  bool
	Bool  bool
	I32   int32
	I64   int64
	F32   float32
	F64   float64
	Str   string // Utf8
	Bytes []byte // Binary
	List  []Scalar
}

// NullScalar returns a null Scalar of the given type.
func NullScalar(t DataType) Scalar {
	return Scalar{Type: t, Null: true}
}

func BoolScalar(v bool) Scalar     { return Scalar{Type: DataType{ID: Boolean}, Bool: v} }
func Int32Scalar(v int32) Scalar   { return Scalar{Type: DataType{ID: Int32}, I32: v} }
func Int64Scalar(v int64) Scalar   { return Scalar{Type: DataType{ID: Int64}, I64: v} }
func Float32Scalar(v float32) Scalar { return Scalar{Type: DataType{ID: Float32}, F32: v} }
func Float64Scalar(v float64) Scalar { return Scalar{Type: DataType{ID: Float64}, F64: v} }
func Utf8Scalar(v string) Scalar   { return Scalar{Type: DataType{ID: Utf8}, Str: v} }
func BinaryScalar(v []byte) Scalar { return Scalar{Type: DataType{ID: Binary}, Bytes: v} }

// AsInt64 coerces numeric scalar kinds to int64, for use sites (e.g. the
// physicalexpr evaluator, join condition hashing) that want one numeric
// representation regardless of storage width. Returns 0, false for
// non-numeric or null scalars.
func (s Scalar) AsInt64() (int64, bool) {
	if s.Null {
		return 0, false
	}
	switch s.Type.ID {
	case Int32:
		return int64(s.I32), true
	case Int64:
		return s.I64, true
	case Float32:
		return int64(s.F32), true
	case Float64:
		return int64(s.F64), true
	default:
		return 0, false
	}
}

// AsFloat64 coerces numeric scalar kinds to float64.
func (s Scalar) AsFloat64() (float64, bool) {
	if s.Null {
		return 0, false
	}
	switch s.Type.ID {
	case Int32:
		return float64(s.I32), true
	case Int64:
		return float64(s.I64), true
	case Float32:
		return float64(s.F32), true
	case Float64:
		return s.F64, true
	default:
		return 0, false
	}
}
