package kernel

import (
	"fmt"
	"strconv"

	"github.com/coredbio/coredb/array"
	"github.com/coredbio/coredb/coreerr"
)

// Cast converts in to the target type, scoped to the primitive/primitive
// and primitive/varlen directions spec.md's scenarios actually exercise
// (SPEC_FULL.md §3, grounded on rayexec_bullet/src/compute/cast.rs). A
// value that cannot be parsed (e.g. casting the string "abc" to Int64)
// produces a coreerr.User error naming the offending value, per spec.md
// §7's "predicate cast failed at runtime for a specific value".
func Cast(in *array.Array, to array.DataType) (*array.Array, error) {
	if in.Type.Equal(to) {
		return in, nil
	}
	switch to.ID {
	case array.Int64:
		return castToInt64(in)
	case array.Float64:
		return castToFloat64(in)
	case array.Utf8:
		return castToUtf8(in)
	default:
		return nil, coreerr.New(coreerr.NotImplemented, "cast from %s to %s", in.Type, to)
	}
}

func castToInt64(in *array.Array) (*array.Array, error) {
	switch in.Type.ID {
	case array.Int32, array.Int64, array.Float32, array.Float64:
		return UnaryAny(in, array.DataType{ID: array.Int64}, func(s array.Scalar) (array.Scalar, bool) {
			v, _ := s.AsInt64()
			return array.Int64Scalar(v), true
		}), nil
	case array.Utf8:
		var outerErr error
		out := UnaryAny(in, array.DataType{ID: array.Int64}, func(s array.Scalar) (array.Scalar, bool) {
			v, err := strconv.ParseInt(s.Str, 10, 64)
			if err != nil {
				outerErr = coreerr.Wrap(coreerr.User, err, "cannot cast %q to int64", s.Str)
				return array.Scalar{}, false
			}
			return array.Int64Scalar(v), true
		})
		if outerErr != nil {
			return nil, outerErr
		}
		return out, nil
	default:
		return nil, coreerr.New(coreerr.NotImplemented, "cast from %s to int64", in.Type)
	}
}

func castToFloat64(in *array.Array) (*array.Array, error) {
	switch in.Type.ID {
	case array.Int32, array.Int64, array.Float32, array.Float64:
		return UnaryAny(in, array.DataType{ID: array.Float64}, func(s array.Scalar) (array.Scalar, bool) {
			v, _ := s.AsFloat64()
			return array.Float64Scalar(v), true
		}), nil
	case array.Utf8:
		var outerErr error
		out := UnaryAny(in, array.DataType{ID: array.Float64}, func(s array.Scalar) (array.Scalar, bool) {
			v, err := strconv.ParseFloat(s.Str, 64)
			if err != nil {
				outerErr = coreerr.Wrap(coreerr.User, err, "cannot cast %q to float64", s.Str)
				return array.Scalar{}, false
			}
			return array.Float64Scalar(v), true
		})
		if outerErr != nil {
			return nil, outerErr
		}
		return out, nil
	default:
		return nil, coreerr.New(coreerr.NotImplemented, "cast from %s to float64", in.Type)
	}
}

func castToUtf8(in *array.Array) (*array.Array, error) {
	return UnaryAny(in, array.DataType{ID: array.Utf8}, func(s array.Scalar) (array.Scalar, bool) {
		switch in.Type.ID {
		case array.Int32:
			return array.Utf8Scalar(strconv.FormatInt(int64(s.I32), 10)), true
		case array.Int64:
			return array.Utf8Scalar(strconv.FormatInt(s.I64, 10)), true
		case array.Float32:
			return array.Utf8Scalar(strconv.FormatFloat(float64(s.F32), 'g', -1, 32)), true
		case array.Float64:
			return array.Utf8Scalar(strconv.FormatFloat(s.F64, 'g', -1, 64)), true
		case array.Boolean:
			return array.Utf8Scalar(fmt.Sprintf("%v", s.Bool)), true
		default:
			return array.Scalar{}, false
		}
	}), nil
}
