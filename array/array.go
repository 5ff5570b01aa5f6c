// Package array implements the columnar data plane described in spec.md
// §3/§4.1: typed physical storage, an optional validity bitmap, an
// optional logical selection vector, and the Batch that groups arrays of
// equal logical length.
//
// Arrays are represented as a tagged sum (Storage is a closed set of
// concrete kinds) so kernels can dispatch once on the tag and then operate
// on monomorphic physical storage, per spec.md §9's polymorphism note.
package array

import "fmt"

// Storage is the physical backing of an Array: one of the concrete kinds
// below. PhysicalLen reports the storage's own length, independent of any
// selection vector layered on top.
type Storage interface {
	PhysicalLen() int
}

// Int32Storage is fixed-width int32 storage.
type Int32Storage struct{ Values []int32 }

func (s *Int32Storage) PhysicalLen() int { return len(s.Values) }

// Int64Storage is fixed-width int64 storage.
type Int64Storage struct{ Values []int64 }

func (s *Int64Storage) PhysicalLen() int { return len(s.Values) }

// Float32Storage is fixed-width float32 storage.
type Float32Storage struct{ Values []float32 }

func (s *Float32Storage) PhysicalLen() int { return len(s.Values) }

// Float64Storage is fixed-width float64 storage.
type Float64Storage struct{ Values []float64 }

func (s *Float64Storage) PhysicalLen() int { return len(s.Values) }

// BoolStorage is a packed boolean bitmap (distinct from the array's
// validity bitmap).
type BoolStorage struct {
	Bits *Bitmap
	N    int
}

func (s *BoolStorage) PhysicalLen() int { return s.N }

// VarlenStorage is the offset+data layout for Utf8/Binary arrays: Offsets
// has length n+1 and is non-decreasing (spec.md §3); Data[Offsets[i]:
// Offsets[i+1]] is the i'th physical value.
type VarlenStorage struct {
	Offsets []int32
	Data    []byte
}

func (s *VarlenStorage) PhysicalLen() int {
	if len(s.Offsets) == 0 {
		return 0
	}
	return len(s.Offsets) - 1
}

func (s *VarlenStorage) At(i int) []byte {
	return s.Data[s.Offsets[i]:s.Offsets[i+1]]
}

// InlinePrefixThreshold is the inline/prefix short-string threshold
// (spec.md §3): values at or under this length are stored entirely
// in-line; longer values store a 4-byte prefix plus an indirect
// (buffer, offset, length) pointer into Heap.
const InlinePrefixThreshold = 12

// InlineEntry is one entry of the inline/prefix+indirect varlen layout.
type InlineEntry struct {
	Length int32
	Prefix [4]byte
	Inline [InlinePrefixThreshold]byte // valid when Length <= InlinePrefixThreshold
	Offset int32                       // valid when Length > InlinePrefixThreshold: byte offset into Heap
}

// InlineStorage is the inline/prefix+indirect varlen layout (spec.md §3),
// used for short strings where avoiding an indirection through Data pays
// for itself.
type InlineStorage struct {
	Entries []InlineEntry
	Heap    []byte
}

func (s *InlineStorage) PhysicalLen() int { return len(s.Entries) }

func (s *InlineStorage) At(i int) []byte {
	e := s.Entries[i]
	if e.Length <= InlinePrefixThreshold {
		return e.Inline[:e.Length]
	}
	return s.Heap[e.Offset : e.Offset+e.Length]
}

// MakeInlineEntry builds an InlineEntry for value v, appending to heap
// when v exceeds the inline threshold. Returns the entry and the
// (possibly extended) heap.
func MakeInlineEntry(v []byte, heap []byte) (InlineEntry, []byte) {
	e := InlineEntry{Length: int32(len(v))}
	n := copy(e.Prefix[:], v)
	_ = n
	if len(v) <= InlinePrefixThreshold {
		copy(e.Inline[:], v)
		return e, heap
	}
	e.Offset = int32(len(heap))
	heap = append(heap, v...)
	return e, heap
}

// ListStorage is a child array plus a non-decreasing Offsets slice of
// length n+1 delimiting each list's child rows (spec.md §3: "a child-array
// list with offsets").
type ListStorage struct {
	Offsets []int32
	Child   *Array
}

func (s *ListStorage) PhysicalLen() int {
	if len(s.Offsets) == 0 {
		return 0
	}
	return len(s.Offsets) - 1
}

// StructStorage is a set of named children sharing logical length
// (spec.md §3: "a named-children struct").
type StructStorage struct {
	Names    []string
	Children []*Array
}

func (s *StructStorage) PhysicalLen() int {
	if len(s.Children) == 0 {
		return 0
	}
	return s.Children[0].PhysicalLen()
}

// Array is a logical columnar vector: a data type, typed physical storage,
// an optional validity bitmap, and an optional selection vector (spec.md
// §3). Arrays are immutable after construction and may be shared by many
// batches; building a new Array never mutates shared storage.
type Array struct {
	Type      DataType
	Storage   Storage
	Validity  *Bitmap // nil means all-valid
	Selection *Selection
}

// NewArray constructs an Array from storage with no validity bitmap and
// the identity selection.
func NewArray(t DataType, storage Storage) *Array {
	return &Array{Type: t, Storage: storage}
}

// PhysicalLen returns the length of the underlying storage, ignoring any
// selection vector.
func (a *Array) PhysicalLen() int { return a.Storage.PhysicalLen() }

// LogicalLen returns the selection length if a selection is present,
// otherwise the physical length (spec.md §4.1).
func (a *Array) LogicalLen() int {
	if n := a.Selection.Len(); n >= 0 {
		return n
	}
	return a.PhysicalLen()
}

// checkInvariants validates the invariants spec.md §3 requires of an
// array's shape. It is used by tests and by operators before they trust
// input shapes blindly (coreerr.Internal on violation is the caller's
// responsibility; this just returns nil or an error naming the violation).
func (a *Array) checkInvariants() error {
	phys := a.PhysicalLen()
	if m := a.Selection.Max(); m >= phys {
		return fmt.Errorf("selection index %d out of range for physical length %d", m, phys)
	}
	if a.Validity != nil && a.Validity.Len() != phys {
		return fmt.Errorf("validity length %d does not match physical length %d", a.Validity.Len(), phys)
	}
	return nil
}

// Select produces a new array with the given selection composed with any
// selection a already carries (spec.md §4.1: "select always wins over
// physical ordering"). The storage and validity bitmap are shared, not
// copied.
func (a *Array) Select(sel *Selection) *Array {
	if sel == nil {
		return a
	}
	composed := Compose(a.Selection, sel, sel.Len())
	return &Array{Type: a.Type, Storage: a.Storage, Validity: a.Validity, Selection: composed}
}

// physicalIndex resolves a logical row index through the array's
// selection vector.
func (a *Array) physicalIndex(i int) int { return a.Selection.At(i) }

// IsValid reports whether logical row i is non-null.
func (a *Array) IsValid(i int) bool {
	return a.Validity.Get(a.physicalIndex(i))
}

// LogicalValue resolves selection and validity for logical row i and
// returns the corresponding Scalar, or a null Scalar if the row is invalid
// (spec.md §4.1).
func (a *Array) LogicalValue(i int) Scalar {
	p := a.physicalIndex(i)
	if !a.Validity.Get(p) {
		return NullScalar(a.Type)
	}
	switch s := a.Storage.(type) {
	case *Int32Storage:
		return Int32Scalar(s.Values[p])
	case *Int64Storage:
		return Int64Scalar(s.Values[p])
	case *Float32Storage:
		return Float32Scalar(s.Values[p])
	case *Float64Storage:
		return Float64Scalar(s.Values[p])
	case *BoolStorage:
		return BoolScalar(s.Bits.Get(p))
	case *VarlenStorage:
		if a.Type.ID == Utf8 {
			return Utf8Scalar(string(s.At(p)))
		}
		return BinaryScalar(s.At(p))
	case *InlineStorage:
		if a.Type.ID == Utf8 {
			return Utf8Scalar(string(s.At(p)))
		}
		return BinaryScalar(s.At(p))
	case *ListStorage:
		start, end := s.Offsets[p], s.Offsets[p+1]
		out := make([]Scalar, 0, end-start)
		for r := start; r < end; r++ {
			out = append(out, s.Child.LogicalValue(int(r)))
		}
		return Scalar{Type: a.Type, List: out}
	case *StructStorage:
		out := make([]Scalar, len(s.Children))
		for i, c := range s.Children {
			out[i] = c.LogicalValue(p)
		}
		return Scalar{Type: a.Type, List: out}
	default:
		panic(fmt.Sprintf("array: unhandled storage kind %T", s))
	}
}

// Batch is an ordered sequence of arrays of equal logical length, plus an
// explicit row count so a zero-column, non-zero-row batch (COUNT(*) over
// no projected columns) is representable (spec.md §3). Batches are
// immutable after construction.
type Batch struct {
	Columns []*Array
	NumRows int
}

// NewBatch constructs a Batch, trusting numRows rather than deriving it
// from columns so that zero-column batches carry a meaningful row count.
func NewBatch(columns []*Array, numRows int) *Batch {
	return &Batch{Columns: columns, NumRows: numRows}
}

// Column returns the i'th column array.
func (b *Batch) Column(i int) *Array { return b.Columns[i] }

// NumCols returns the column count.
func (b *Batch) NumCols() int { return len(b.Columns) }

// Select produces a new batch with the given selection applied to every
// column, sharing buffers with b (spec.md §3: "projection and selection
// produce new batches sharing buffers").
func (b *Batch) Select(sel *Selection) *Batch {
	if sel == nil {
		return b
	}
	cols := make([]*Array, len(b.Columns))
	for i, c := range b.Columns {
		cols[i] = c.Select(sel)
	}
	return &Batch{Columns: cols, NumRows: sel.Len()}
}

// Project produces a new batch retaining only the named column indices, in
// order, sharing buffers with b.
func (b *Batch) Project(indices []int) *Batch {
	cols := make([]*Array, len(indices))
	for i, idx := range indices {
		cols[i] = b.Columns[idx]
	}
	return &Batch{Columns: cols, NumRows: b.NumRows}
}

// Slice returns the logical row range [start, start+length) of b as a new
// batch, implemented via a selection vector so no data is copied.
func (b *Batch) Slice(start, length int) *Batch {
	idx := make([]int32, length)
	for i := range idx {
		idx[i] = int32(start + i)
	}
	return b.Select(NewSelection(idx))
}
