// Package frame owns all physical RAM, handing out and reclaiming
// page-sized frames and reference-counting the ones shared between
// address spaces (component B).
//
// Grounded on the teacher's mem.Physmem_t (biscuit/src/mem/mem.go), which
// tracks free pages with a per-CPU free list and a side Refcnt field on a
// dense Physpg_t table. This package keeps the side-table-of-refcounts
// idea but replaces the free list with the dynamic bitmap-plus-rover the
// allocator is required to use, since a free list cannot answer count()
// or "lowest free frame" without a linear walk.
package frame

import (
	"fmt"

	"kernix/addr"
	"kernix/errs"
	"kernix/klog"
	"kernix/lock"
)

// Allocator owns a contiguous range of physical frames starting at Base.
// The free set is a dynamic bitmap (one bit per frame, set meaning free)
// scanned by a rover index in round-robin order; shared-frame refcounts
// live in a sparse side table since counts above 1 are rare.
type Allocator struct {
	mu lock.IRQSpinlock

	base   addr.Pa // physical address of frame 0
	nframe int     // total frames under management

	free  []uint64 // bitmap, 1 = free
	rover int      // next bitmap word to scan from

	refcnt map[int]int32 // frame index -> refcount, for counts > 1

	nfree int // cached count of free frames, for O(1) Count()

	ram [][addr.PageSize]byte // simulated backing store, one slot per frame
}

// NewAllocator builds an allocator over nframe frames starting at base,
// all initially free.
func NewAllocator(base addr.Pa, nframe int) *Allocator {
	words := (nframe + 63) / 64
	a := &Allocator{
		base:   base,
		nframe: nframe,
		free:   make([]uint64, words),
		refcnt: make(map[int]int32),
		nfree:  nframe,
		ram:    make([][addr.PageSize]byte, nframe),
	}
	for i := range a.free {
		a.free[i] = ^uint64(0)
	}
	// Clear any bits past nframe in the last word.
	if rem := nframe % 64; rem != 0 {
		a.free[len(a.free)-1] = (uint64(1) << rem) - 1
	}
	klog.WithFields(klog.Fields{"base": base, "frames": nframe}).Info("frame allocator initialized")
	return a
}

// FrameGuard exclusively owns one physical frame until it is stored into
// a page-table entry, handed to Reference, or Released back to the
// allocator it came from.
type FrameGuard struct {
	a     *Allocator
	frame int
}

// Pa returns the physical address this guard owns.
func (g FrameGuard) Pa() addr.Pa {
	return g.a.base + addr.Pa(g.frame)*addr.PageSize
}

// Release drops this guard's reference through Deallocate: the frame's
// refcount is decremented and the frame is freed once it reaches zero.
// Used when a partially-built mapping must be unwound because a later
// step in the same operation failed.
func (g FrameGuard) Release() {
	g.a.Deallocate(g.Pa())
}

// Page returns the backing storage for the frame at physical address p,
// the simulated equivalent of the teacher's direct-map (mem.Dmap): a
// kernel-accessible view of a frame's bytes given only its physical
// address, with no separate virtual mapping required. Panics if p does
// not name a frame under this allocator's management, mirroring the
// teacher's Dmap which assumes its caller already validated the frame.
func (a *Allocator) Page(p addr.Pa) *[addr.PageSize]byte {
	idx, e := a.frameOf(p)
	if e.IsErr() {
		panic(fmt.Sprintf("frame: Page of out-of-range address %s", p))
	}
	return &a.ram[idx]
}

func (a *Allocator) frameOf(p addr.Pa) (int, errs.Err_t) {
	if p < a.base {
		return 0, errs.InvalidArgument
	}
	idx := int((p - a.base) / addr.PageSize)
	if idx >= a.nframe {
		return 0, errs.InvalidArgument
	}
	return idx, errs.OK
}

func (a *Allocator) setFree(idx int, free bool) {
	word, bit := idx/64, uint(idx%64)
	if free {
		a.free[word] |= 1 << bit
	} else {
		a.free[word] &^= 1 << bit
	}
}

func (a *Allocator) isFree(idx int) bool {
	word, bit := idx/64, uint(idx%64)
	return a.free[word]&(1<<bit) != 0
}

// Allocate returns the lowest-index free frame it can find scanning from
// the rover, marks it used with refcount 1, and advances the rover.
// Returns NoFrame if every frame is in use.
func (a *Allocator) Allocate() (FrameGuard, errs.Err_t) {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := len(a.free)
	for i := 0; i < n; i++ {
		word := (a.rover + i) % n
		if a.free[word] == 0 {
			continue
		}
		bit := trailingZeros64(a.free[word])
		idx := word*64 + bit
		if idx >= a.nframe {
			continue
		}
		a.setFree(idx, false)
		a.nfree--
		delete(a.refcnt, idx) // refcount 1 is implicit, absent from the table
		a.rover = word
		return FrameGuard{a: a, frame: idx}, errs.OK
	}
	return FrameGuard{}, errs.NoFrame
}

// Reference increments the refcount of an already-allocated frame and
// returns a new guard over it. Calling Reference on a free frame is a
// programming error (the caller would be creating a reference to memory
// nothing owns) and panics.
func (a *Allocator) Reference(p addr.Pa) FrameGuard {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx, e := a.frameOf(p)
	if e.IsErr() {
		panic(fmt.Sprintf("frame: Reference of out-of-range address %s", p))
	}
	if a.isFree(idx) {
		panic(fmt.Sprintf("frame: Reference of free frame %d", idx))
	}
	cur, ok := a.refcnt[idx]
	if !ok {
		cur = 1
	}
	a.refcnt[idx] = cur + 1
	return FrameGuard{a: a, frame: idx}
}

// Deallocate decrements the refcount of the frame backing p; when it
// reaches zero the frame is marked free.
func (a *Allocator) Deallocate(p addr.Pa) {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx, e := a.frameOf(p)
	if e.IsErr() {
		return
	}
	if a.isFree(idx) {
		return
	}
	cur, ok := a.refcnt[idx]
	if !ok {
		cur = 1
	}
	cur--
	if cur <= 0 {
		delete(a.refcnt, idx)
		a.setFree(idx, true)
		a.nfree++
		if idx < a.rover*64 {
			a.rover = idx / 64
		}
		return
	}
	a.refcnt[idx] = cur
}

// Count returns the number of currently free frames.
func (a *Allocator) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.nfree
}

// Refcount returns the current reference count of the frame backing p,
// or 0 if it is free.
func (a *Allocator) Refcount(p addr.Pa) int32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	idx, e := a.frameOf(p)
	if e.IsErr() {
		return 0
	}
	if a.isFree(idx) {
		return 0
	}
	if cnt, ok := a.refcnt[idx]; ok {
		return cnt
	}
	return 1
}

func trailingZeros64(x uint64) int {
	n := 0
	for x&1 == 0 {
		x >>= 1
		n++
	}
	return n
}
