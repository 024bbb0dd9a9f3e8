package vmm

import (
	"kernix/addr"
	"kernix/arch"
	"kernix/errs"
)

// Layout describes a requested virtual allocation: size in bytes and a
// minimum alignment (which may exceed the page size).
type Layout struct {
	Size  uintptr
	Align uintptr
}

// chainEntry names one level of the page-table walk: the physical frame
// of the table at that level, and the index of the entry this walk is
// following within it.
type chainEntry struct {
	tablePa addr.Pa
	index   int
}

// walkChain descends L4->L3->L2->L1 for va, creating intermediate tables
// when create is true, and returns every level visited so callers can
// both read/write the final leaf and walk back up to drop now-empty
// intermediate tables.
func (as *AddressSpace) walkChain(va addr.Va, create bool) ([4]chainEntry, errs.Err_t) {
	var chain [4]chainEntry
	cur := as.root
	indices := [4]int{l4index(va), l3index(va), l2index(va), l1index(va)}

	for level := 0; level < 4; level++ {
		chain[level] = chainEntry{tablePa: cur, index: indices[level]}
		if level == 3 {
			break
		}
		t := tableAt(as.alloc.Page(cur))
		pte := t[indices[level]]
		if !pte.IsPresent() {
			if !create {
				return chain, errs.NoPage
			}
			g, e := as.alloc.Allocate()
			if e.IsErr() {
				return chain, errs.NoFrame
			}
			*tableAt(as.alloc.Page(g.Pa())) = table{}
			t[indices[level]] = NewLeaf(g.Pa(), User|Write)
			as.incCount(cur)
			cur = g.Pa()
		} else {
			cur = pte.Frame()
		}
	}
	return chain, errs.OK
}

func (as *AddressSpace) incCount(tablePa addr.Pa) {
	if as.present == nil {
		as.present = make(map[addr.Pa]int)
	}
	as.present[tablePa]++
}

func (as *AddressSpace) decCount(tablePa addr.Pa) int {
	as.present[tablePa]--
	n := as.present[tablePa]
	if n <= 0 {
		delete(as.present, tablePa)
	}
	return n
}

// installLeaf maps va to frame with flags, failing InvalidArgument if
// something is already mapped there. Intermediate tables are created as
// needed; if walkChain runs out of frames partway down, the tables it
// already created stay linked in (empty) and are not released here.
func (as *AddressSpace) installLeaf(va addr.Va, frame addr.Pa, flags PTE) errs.Err_t {
	chain, e := as.walkChain(va, true)
	if e.IsErr() {
		return e
	}
	l1 := tableAt(as.alloc.Page(chain[3].tablePa))
	if l1[chain[3].index].IsPresent() {
		return errs.InvalidArgument
	}
	l1[chain[3].index] = NewLeaf(frame, flags)
	as.incCount(chain[3].tablePa)
	return errs.OK
}

// clearLeaf unmaps va, returning the frame it held (if any) to the
// allocator and dropping any intermediate table whose present count
// falls to zero.
func (as *AddressSpace) clearLeaf(va addr.Va) {
	chain, e := as.walkChain(va, false)
	if e.IsErr() {
		return
	}
	l1 := tableAt(as.alloc.Page(chain[3].tablePa))
	pte := l1[chain[3].index]
	if !pte.IsPresent() {
		return
	}
	as.alloc.Deallocate(pte.Frame())
	l1[chain[3].index] = 0
	arch.InvalidatePage(uintptr(va))

	if as.decCount(chain[3].tablePa) > 0 {
		return
	}
	// L1 table is now empty: free it and unlink it from its L2 parent,
	// cascading upward while each freed level's parent also empties out.
	for level := 2; level >= 0; level-- {
		child := chain[level+1]
		as.alloc.Deallocate(child.tablePa)
		parent := tableAt(as.alloc.Page(chain[level].tablePa))
		parent[chain[level].index] = 0
		if as.decCount(chain[level].tablePa) > 0 {
			break
		}
		if level == 0 {
			break // never drop the root itself
		}
	}
}

// Allocate finds an unused virtual span of npages satisfying layout in
// the lower half, maps it with freshly allocated frames, and returns the
// resulting block. Partial allocation is unrolled on failure.
func (as *AddressSpace) Allocate(layout Layout, flags PTE) (addr.Block[addr.Va], errs.Err_t) {
	as.mu.Lock()
	defer as.mu.Unlock()

	npages := int(addr.RoundUp(layout.Size, addr.PageSize) / addr.PageSize)
	if npages == 0 {
		npages = 1
	}
	align := layout.Align
	if align < addr.PageSize {
		align = addr.PageSize
	}

	start := addr.RoundUp(as.hint, addr.Va(align))
	for tries := 0; tries < 2; tries++ {
		for candidate := start; candidate+addr.Va(npages)*addr.PageSize <= LowerHalfLimit; candidate += addr.Va(align) {
			if as.rangeFree(candidate, npages) {
				b, e := as.mapFreshRange(candidate, npages, flags)
				if e.IsErr() {
					return addr.Block[addr.Va]{}, e
				}
				as.hint = candidate + addr.Va(npages)*addr.PageSize
				return b, errs.OK
			}
		}
		start = addr.PageSize // wrap around once
	}
	return addr.Block[addr.Va]{}, errs.NoFrame
}

func (as *AddressSpace) rangeFree(start addr.Va, npages int) bool {
	for i := 0; i < npages; i++ {
		if pte, e := as.lookup(start + addr.Va(i)*addr.PageSize); e == errs.OK && pte.IsPresent() {
			return false
		}
	}
	return true
}

func (as *AddressSpace) mapFreshRange(start addr.Va, npages int, flags PTE) (addr.Block[addr.Va], errs.Err_t) {
	mapped := 0
	for i := 0; i < npages; i++ {
		g, e := as.alloc.Allocate()
		if e.IsErr() {
			as.unmapN(start, mapped)
			return addr.Block[addr.Va]{}, errs.NoFrame
		}
		if e := as.installLeaf(start+addr.Va(i)*addr.PageSize, g.Pa(), flags); e.IsErr() {
			g.Release()
			as.unmapN(start, mapped)
			return addr.Block[addr.Va]{}, e
		}
		mapped++
	}
	return addr.NewBlock(start, npages)
}

func (as *AddressSpace) unmapN(start addr.Va, n int) {
	for i := 0; i < n; i++ {
		as.clearLeaf(start + addr.Va(i)*addr.PageSize)
	}
}

// Reserve maps freshly allocated frames into a caller-supplied block,
// failing InvalidArgument if any page in the block is already mapped.
func (as *AddressSpace) Reserve(block addr.Block[addr.Va], flags PTE) errs.Err_t {
	as.mu.Lock()
	defer as.mu.Unlock()

	n := block.Count()
	if !as.rangeFree(block.Start(), n) {
		return errs.InvalidArgument
	}
	_, e := as.mapFreshRange(block.Start(), n, flags)
	return e
}

// Deallocate unmaps and frees every page in block.
func (as *AddressSpace) Deallocate(block addr.Block[addr.Va]) {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.unmapN(block.Start(), block.Count())
}

// Map installs caller-provided frames (one per page of block, in order)
// with flags, without allocating — the caller already owns a reference
// to each frame via a FrameGuard it is transferring into the mapping.
func (as *AddressSpace) Map(block addr.Block[addr.Va], frames []addr.Pa, flags PTE) errs.Err_t {
	as.mu.Lock()
	defer as.mu.Unlock()

	if len(frames) != block.Count() {
		return errs.InvalidArgument
	}
	mapped := 0
	for i, f := range frames {
		va := block.Start() + addr.Va(i)*addr.PageSize
		if e := as.installLeaf(va, f, flags); e.IsErr() {
			as.unmapN(block.Start(), mapped)
			return e
		}
		mapped++
	}
	return errs.OK
}

// Unmap unmaps every page in block, returning each frame to the
// allocator (decrementing its refcount).
func (as *AddressSpace) Unmap(block addr.Block[addr.Va]) {
	as.Deallocate(block)
}

// CopyMapping copies each present source PTE in srcBlock to the
// corresponding offset in dstBlock, incrementing the source frame's
// refcount and unmapping whatever was previously at the destination.
// flags, when non-nil, replaces the copied PTE's flags; when nil each
// leaf keeps the source's own flags. src and dst may be the same address
// space only if the blocks are identical (a flags-only change, which
// requires flags != nil) or disjoint.
func CopyMapping(src, dst *AddressSpace, srcBlock, dstBlock addr.Block[addr.Va], flags *PTE) errs.Err_t {
	if srcBlock.Count() != dstBlock.Count() {
		return errs.InvalidArgument
	}
	sameAS := src == dst
	identical := srcBlock.Start() == dstBlock.Start() && srcBlock.End() == dstBlock.End()
	if sameAS && !identical {
		if srcBlock.Overlaps(dstBlock) {
			return errs.InvalidArgument
		}
	}
	if sameAS && identical && flags == nil {
		return errs.InvalidArgument
	}

	if !sameAS {
		src.mu.Lock()
		defer src.mu.Unlock()
	}
	dst.mu.Lock()
	defer dst.mu.Unlock()

	n := srcBlock.Count()
	for i := 0; i < n; i++ {
		sva := srcBlock.Start() + addr.Va(i)*addr.PageSize
		dva := dstBlock.Start() + addr.Va(i)*addr.PageSize

		spte, e := src.lookup(sva)
		if e.IsErr() || !spte.IsPresent() {
			continue
		}
		leafFlags := spte & ^addrMask &^ Present
		if flags != nil {
			leafFlags = *flags
		}

		if sameAS && identical {
			chain, e := dst.walkChain(dva, false)
			if e.IsErr() {
				continue
			}
			t := tableAt(dst.alloc.Page(chain[3].tablePa))
			t[chain[3].index] = NewLeaf(spte.Frame(), leafFlags)
			continue
		}

		if dpte, e := dst.lookup(dva); e == errs.OK && dpte.IsPresent() {
			dst.clearLeaf(dva)
		}
		frame := dst.alloc.Reference(spte.Frame())
		if e := dst.installLeaf(dva, frame.Pa(), leafFlags); e.IsErr() {
			frame.Release()
			return e
		}
	}
	return errs.OK
}

// DropSubtree recursively frees every table and frame reachable from a
// dying process's lower half, for a process that exits while still
// holding mapped resources.
func (as *AddressSpace) DropSubtree() {
	as.mu.Lock()
	defer as.mu.Unlock()

	root := tableAt(as.alloc.Page(as.root))
	for l4 := 0; l4 < 256; l4++ {
		pte := root[l4]
		if !pte.IsPresent() {
			continue
		}
		as.dropTable(pte.Frame(), 2)
		root[l4] = 0
	}
	as.present = nil
}

// dropTable frees every present entry in the table at pa at the given
// depth (2 = L3, 1 = L2, 0 = L1 holding leaves), then the table itself.
func (as *AddressSpace) dropTable(pa addr.Pa, depth int) {
	t := tableAt(as.alloc.Page(pa))
	for i := 0; i < 512; i++ {
		pte := t[i]
		if !pte.IsPresent() {
			continue
		}
		if depth == 0 {
			as.alloc.Deallocate(pte.Frame())
		} else {
			as.dropTable(pte.Frame(), depth-1)
		}
	}
	as.alloc.Deallocate(pa)
}
