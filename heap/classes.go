// Package heap is the kernel's general-purpose allocator: a per-class
// Quarry (slab) cache fronting a Dispatcher that falls back to the page
// allocator for anything too big to fit a slab class (component D).
//
// Grounded on the teacher's allocator-less style (biscuit pre-allocates
// everything it needs and relies on the Go runtime's own allocator for
// the rest); no teacher file implements a slab allocator, so the slab
// mechanics here follow the data model's own description directly,
// shaped the way the pack's other size-classed allocators
// (oisee-z80-optimizer's arena pools) lay out class tables.
package heap

// class describes one fixed-size slab class: every slot is class.size
// bytes, aligned to class.align.
type class struct {
	size  int
	align int
}

// classes are sixteen classes spanning the powers of two from 8 to 2048
// bytes, with one interleaved half-step between each pair of powers from
// 16 upward (none between 8 and 16) for finer-grained packing — 8,16,32,64,...,2048 are the power-of-two
// anchors; 24,48,96,... fill the gaps.
var classes = [16]class{
	{8, 8}, {16, 16}, {24, 8}, {32, 32},
	{48, 16}, {64, 64}, {96, 32}, {128, 128},
	{192, 64}, {256, 256}, {384, 128}, {512, 512},
	{768, 256}, {1024, 1024}, {1536, 512}, {2048, 2048},
}

// maxClassSize is the largest slab-servable allocation; anything bigger
// goes to the big (page-granular) allocator.
const maxClassSize = 2048

// classFor returns the index of the smallest class that satisfies both
// size and align, bumping to a larger class when align exceeds the
// natural class's own alignment. ok is false when no slab class fits
// (size or align too large), meaning the big allocator must serve it.
func classFor(size, align int) (idx int, ok bool) {
	if size > maxClassSize || align > maxClassSize {
		return 0, false
	}
	for i, c := range classes {
		if c.size >= size && c.align >= align {
			return i, true
		}
	}
	return 0, false
}
