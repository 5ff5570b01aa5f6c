package array

// Selection is a logical_index -> physical_index mapping (spec.md §3,
// §4.1). A nil *Selection is the identity mapping: logical_index ==
// physical_index and logical_len == physical_len.
type Selection struct {
	indices []int32
}

// NewSelection wraps an explicit slice of physical indices.
func NewSelection(indices []int32) *Selection {
	return &Selection{indices: indices}
}

// Identity returns nil, the canonical identity selection.
func Identity() *Selection { return nil }

// Len returns the logical length implied by the selection, or -1 if it is
// the identity selection (callers must fall back to physical length).
func (s *Selection) Len() int {
	if s == nil {
		return -1
	}
	return len(s.indices)
}

// At resolves logical index i to a physical index.
func (s *Selection) At(i int) int {
	if s == nil {
		return i
	}
	return int(s.indices[i])
}

// Max returns the maximum physical index referenced by the selection, or
// -1 if the selection is empty or identity (callers must supply their own
// bound in that case).
func (s *Selection) Max() int {
	if s == nil || len(s.indices) == 0 {
		return -1
	}
	m := s.indices[0]
	for _, v := range s.indices[1:] {
		if v > m {
			m = v
		}
	}
	return int(m)
}

// Compose builds a new Selection that resolves outer's indices through
// base: result.At(i) == base.At(outer.At(i)) (a nil base is the identity).
// This is the rule used by Array.Select
// when an array already carrying a selection is selected again (spec.md
// §4.1: "select ... composes with any existing one").
func Compose(base *Selection, outer *Selection, outerLen int) *Selection {
	if outer == nil {
		return base
	}
	out := make([]int32, outerLen)
	for i := 0; i < outerLen; i++ {
		p := outer.At(i)
		if base != nil {
			p = base.At(p)
		}
		out[i] = int32(p)
	}
	return NewSelection(out)
}

// Indices returns the raw physical index slice, or nil for the identity
// selection.
func (s *Selection) Indices() []int32 {
	if s == nil {
		return nil
	}
	return s.indices
}
