// Package physicalexpr implements the minimal physical-expression
// evaluator the Filter, Project, and HashJoin condition operators need to
// be exercised end to end (SPEC_FULL.md §0): column references, literals,
// and unary/binary scalar operators evaluated directly against a Batch.
// Parsing and binding a SQL expression tree into this representation is
// the logical-planner's job and stays out of scope per spec.md §1; this
// package only evaluates an already-built physical expression.
package physicalexpr

import (
	"fmt"

	"github.com/coredbio/coredb/array"
	"github.com/coredbio/coredb/kernel"
)

// Expr is a physical scalar expression evaluable against a Batch, one
// column's worth of output per call.
type Expr interface {
	// Eval evaluates the expression against b, returning an array of
	// logical length b.NumRows (a Literal instead returns length 1 when b
	// has zero rows; see Project's broadcast rule, spec.md §4.3.1).
	Eval(b *array.Batch) (*array.Array, error)
	// Type returns the expression's static result type.
	Type() array.DataType
}

// Column references input column i of the batch being evaluated.
type Column struct {
	Index int
	Typ   array.DataType
}

func (c *Column) Eval(b *array.Batch) (*array.Array, error) { return b.Column(c.Index), nil }
func (c *Column) Type() array.DataType                      { return c.Typ }

// Literal is a constant scalar, broadcast to the batch's row count.
type Literal struct {
	Value array.Scalar
}

func (l *Literal) Eval(b *array.Batch) (*array.Array, error) {
	n := b.NumRows
	if n == 0 {
		n = 1
	}
	scalars := make([]array.Scalar, n)
	for i := range scalars {
		scalars[i] = l.Value
	}
	return literalArray(l.Value.Type, scalars), nil
}
func (l *Literal) Type() array.DataType { return l.Value.Type }

func literalArray(t array.DataType, scalars []array.Scalar) *array.Array {
	valid := array.NewBitmap(len(scalars))
	for i, s := range scalars {
		valid.PutBool(i, !s.Null)
	}
	switch t.ID {
	case array.Boolean:
		bits := array.NewBitmap(len(scalars))
		for i, s := range scalars {
			bits.PutBool(i, s.Bool)
		}
		return &array.Array{Type: t, Storage: &array.BoolStorage{Bits: bits, N: len(scalars)}, Validity: valid}
	case array.Int64:
		vals := make([]int64, len(scalars))
		for i, s := range scalars {
			vals[i] = s.I64
		}
		return &array.Array{Type: t, Storage: &array.Int64Storage{Values: vals}, Validity: valid}
	case array.Float64:
		vals := make([]float64, len(scalars))
		for i, s := range scalars {
			vals[i] = s.F64
		}
		return &array.Array{Type: t, Storage: &array.Float64Storage{Values: vals}, Validity: valid}
	case array.Utf8, array.Binary:
		offsets := make([]int32, len(scalars)+1)
		var data []byte
		for i, s := range scalars {
			if t.ID == array.Utf8 {
				data = append(data, s.Str...)
			} else {
				data = append(data, s.Bytes...)
			}
			offsets[i+1] = int32(len(data))
		}
		return &array.Array{Type: t, Storage: &array.VarlenStorage{Offsets: offsets, Data: data}, Validity: valid}
	default:
		panic(fmt.Sprintf("physicalexpr: unsupported literal type %s", t))
	}
}

// BinaryOp applies a named binary operator to the results of Left and
// Right.
type BinaryOp struct {
	Op          string
	Left, Right Expr
	Out         array.DataType
}

func (b *BinaryOp) Type() array.DataType { return b.Out }

func (b *BinaryOp) Eval(batch *array.Batch) (*array.Array, error) {
	l, err := b.Left.Eval(batch)
	if err != nil {
		return nil, err
	}
	r, err := b.Right.Eval(batch)
	if err != nil {
		return nil, err
	}
	return EvalBinary(b.Op, l, r, b.Out)
}

// EvalBinary dispatches a named binary operator over two already-evaluated
// arrays; BinaryOp.Eval is its caller.
func EvalBinary(op string, l, r *array.Array, out array.DataType) (*array.Array, error) {
	switch op {
	case "+":
		return arith(l, r, func(a, b int64) int64 { return a + b }, func(a, b float64) float64 { return a + b })
	case "-":
		return arith(l, r, func(a, b int64) int64 { return a - b }, func(a, b float64) float64 { return a - b })
	case "*":
		return arith(l, r, func(a, b int64) int64 { return a * b }, func(a, b float64) float64 { return a * b })
	case "=":
		return kernel.ExecuteCompare(l, r, scalarEq)
	case "!=":
		return kernel.ExecuteCompare(l, r, func(a, b array.Scalar) bool { return !scalarEq(a, b) })
	case "<":
		return kernel.ExecuteCompare(l, r, func(a, b array.Scalar) bool { return scalarLess(a, b) })
	case "<=":
		return kernel.ExecuteCompare(l, r, func(a, b array.Scalar) bool { return !scalarLess(b, a) })
	case ">":
		return kernel.ExecuteCompare(l, r, func(a, b array.Scalar) bool { return scalarLess(b, a) })
	case ">=":
		return kernel.ExecuteCompare(l, r, func(a, b array.Scalar) bool { return !scalarLess(a, b) })
	case "and":
		return kernel.ExecuteCompare(l, r, func(a, b array.Scalar) bool { return a.Bool && b.Bool })
	case "or":
		return kernel.ExecuteCompare(l, r, func(a, b array.Scalar) bool { return a.Bool || b.Bool })
	default:
		return nil, fmt.Errorf("physicalexpr: unsupported binary operator %q", op)
	}
}

func arith(l, r *array.Array, iop func(int64, int64) int64, fop func(float64, float64) float64) (*array.Array, error) {
	if l.Type.ID == array.Float64 || r.Type.ID == array.Float64 || l.Type.ID == array.Float32 || r.Type.ID == array.Float32 {
		return kernel.BinaryAny(l, r, array.DataType{ID: array.Float64}, func(a, b array.Scalar) (array.Scalar, error) {
			av, _ := a.AsFloat64()
			bv, _ := b.AsFloat64()
			return array.Float64Scalar(fop(av, bv)), nil
		})
	}
	return kernel.ExecuteInt64Int64ToInt64(l, r, iop)
}

func scalarEq(a, b array.Scalar) bool {
	if a.Type.ID != b.Type.ID {
		af, _ := a.AsFloat64()
		bf, _ := b.AsFloat64()
		return af == bf
	}
	switch a.Type.ID {
	case array.Int32:
		return a.I32 == b.I32
	case array.Int64:
		return a.I64 == b.I64
	case array.Float32:
		return a.F32 == b.F32
	case array.Float64:
		return a.F64 == b.F64
	case array.Utf8:
		return a.Str == b.Str
	case array.Binary:
		return string(a.Bytes) == string(b.Bytes)
	case array.Boolean:
		return a.Bool == b.Bool
	default:
		return false
	}
}

func scalarLess(a, b array.Scalar) bool {
	if a.Type.ID == array.Utf8 {
		return a.Str < b.Str
	}
	af, _ := a.AsFloat64()
	bf, _ := b.AsFloat64()
	return af < bf
}

// UnaryOp applies a named unary operator to the result of Input.
type UnaryOp struct {
	Op    string
	Input Expr
	Out   array.DataType
}

func (u *UnaryOp) Type() array.DataType { return u.Out }

func (u *UnaryOp) Eval(batch *array.Batch) (*array.Array, error) {
	in, err := u.Input.Eval(batch)
	if err != nil {
		return nil, err
	}
	switch u.Op {
	case "neg":
		if in.Type.ID == array.Float64 {
			return kernel.ExecuteFloat64ToFloat64(in, func(v float64) (float64, bool) { return -v, true }), nil
		}
		return kernel.ExecuteInt64ToInt64(in, func(v int64) (int64, bool) { return -v, true }), nil
	case "is_null":
		n := in.LogicalLen()
		bits := array.NewBitmap(n)
		for i := 0; i < n; i++ {
			bits.PutBool(i, !in.IsValid(i))
		}
		return &array.Array{Type: array.DataType{ID: array.Boolean}, Storage: &array.BoolStorage{Bits: bits, N: n}}, nil
	case "not":
		n := in.LogicalLen()
		bits := array.NewBitmap(n)
		valid := array.NewBitmap(n)
		for i := 0; i < n; i++ {
			if !in.IsValid(i) {
				continue
			}
			valid.Set(i)
			bits.PutBool(i, !in.LogicalValue(i).Bool)
		}
		return &array.Array{Type: array.DataType{ID: array.Boolean}, Storage: &array.BoolStorage{Bits: bits, N: n}, Validity: valid}, nil
	default:
		return nil, fmt.Errorf("physicalexpr: unsupported unary operator %q", u.Op)
	}
}
