package addr

import "kernix/errs"

// Unit is satisfied by Pa and Va: the two granularities a Block can be
// built from (frames of physical memory, pages of virtual memory).
type Unit interface {
	~uintptr
}

// Block is a contiguous, half-open [Start, End) run of page-granular
// units. Frame blocks and page blocks share this one generic type
// (spec.md §3: "Block<Page>"), matching the original's Block<Page>.
type Block[T Unit] struct {
	start T
	end   T
}

// NewBlock builds a Block spanning count pages/frames starting at start.
// start must already be page-aligned; count must be positive.
func NewBlock[T Unit](start T, count int) (Block[T], errs.Err_t) {
	if count <= 0 {
		return Block[T]{}, errs.InvalidArgument
	}
	if uintptr(start)&PageOffsetMask != 0 {
		return Block[T]{}, errs.InvalidAlignment
	}
	return Block[T]{start: start, end: start + T(count)*PageSize}, errs.OK
}

// FromIndex builds a Block from two absolute addresses [start, end).
// Returns InvalidArgument if end < start, or InvalidAlignment if either
// bound is misaligned.
func FromIndex[T Unit](start, end T) (Block[T], errs.Err_t) {
	if end < start {
		return Block[T]{}, errs.InvalidArgument
	}
	if uintptr(start)&PageOffsetMask != 0 || uintptr(end)&PageOffsetMask != 0 {
		return Block[T]{}, errs.InvalidAlignment
	}
	return Block[T]{start: start, end: end}, errs.OK
}

func (b Block[T]) Start() T { return b.start }
func (b Block[T]) End() T   { return b.end }

// Count returns the number of pages/frames in the block.
func (b Block[T]) Count() int {
	return int((uintptr(b.end) - uintptr(b.start)) / PageSize)
}

// IsEmpty reports whether the block spans zero pages.
func (b Block[T]) IsEmpty() bool { return b.start == b.end }

// Contains reports whether addr lies within [Start, End).
func (b Block[T]) Contains(a T) bool {
	return a >= b.start && a < b.end
}

// ContainsBlock reports whether other is fully inside b.
func (b Block[T]) ContainsBlock(other Block[T]) bool {
	return other.start >= b.start && other.end <= b.end
}

// Overlaps reports whether b and other share at least one page.
func (b Block[T]) Overlaps(other Block[T]) bool {
	return b.start < other.end && other.start < b.end
}

// Index returns the offset, in pages, of addr from the block's start.
// The caller must ensure Contains(addr).
func (b Block[T]) Index(a T) int {
	return int((uintptr(a) - uintptr(b.start)) / PageSize)
}

func (b Block[T]) String() string {
	return Size(uintptr(b.end-b.start)).String()
}
