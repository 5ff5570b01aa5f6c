package array

import "fmt"

// TypeID enumerates the logical element types an Array may hold. Grounded
// on the closed-tag shape of rayexec_bullet's scalar/datatype enums
// (original_source) translated to a Go tagged constant set, the same way
// the teacher uses a closed ion.Type tag (ion/datum.go) to dispatch
// storage behavior.
type TypeID int

const (
	Invalid TypeID = iota
	Boolean
	Int32
	Int64
	Float32
	Float64
	Utf8
	Binary
	List
	Struct
)

func (t TypeID) String() string {
	switch t {
	case Boolean:
		return "boolean"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Utf8:
		return "utf8"
	case Binary:
		return "binary"
	case List:
		return "list"
	case Struct:
		return "struct"
	default:
		return "invalid"
	}
}

// DataType is the logical element type of an Array (spec.md §3: "an
// element data type"). List types carry an Elem DataType; Struct types
// carry field names and DataTypes via the StructFields slice.
type DataType struct {
	ID     TypeID
	Elem   *DataType      // valid when ID == List
	Fields []StructField  // valid when ID == Struct
}

// StructField names one child of a Struct DataType.
type StructField struct {
	Name string
	Type DataType
}

func (t DataType) String() string {
	switch t.ID {
	case List:
		return fmt.Sprintf("list<%s>", t.Elem)
	case Struct:
		return fmt.Sprintf("struct%v", t.Fields)
	default:
		return t.ID.String()
	}
}

// IsNumeric reports whether the type is a fixed-width numeric primitive
// usable by the generic kernel executors.
func (t DataType) IsNumeric() bool {
	switch t.ID {
	case Int32, Int64, Float32, Float64:
		return true
	default:
		return false
	}
}

// IsVarlen reports whether the type is stored in one of the two varlen
// layouts (spec.md §3).
func (t DataType) IsVarlen() bool {
	return t.ID == Utf8 || t.ID == Binary
}

// Equal compares two DataTypes structurally.
func (t DataType) Equal(o DataType) bool {
	if t.ID != o.ID {
		return false
	}
	switch t.ID {
	case List:
		return t.Elem.Equal(*o.Elem)
	case Struct:
		if len(t.Fields) != len(o.Fields) {
			return false
		}
		for i := range t.Fields {
			if t.Fields[i].Name != o.Fields[i].Name || !t.Fields[i].Type.Equal(o.Fields[i].Type) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// ListOf builds a List DataType with the given element type.
func ListOf(elem DataType) DataType {
	e := elem
	return DataType{ID: List, Elem: &e}
}

// StructOf builds a Struct DataType from named fields.
func StructOf(fields ...StructField) DataType {
	return DataType{ID: Struct, Fields: fields}
}
