package vmm

import (
	"kernix/addr"
	"kernix/arch"
	"kernix/errs"
)

// LeafInfo describes one present leaf mapping found by WalkUserLeaves:
// the virtual address it backs, the physical frame it points at, and
// its flag bits (Present is implied and not included).
type LeafInfo struct {
	VA    addr.Va
	Frame addr.Pa
	Flags PTE
}

// FlagBits returns p's flag bits (Write|User|NoExec|Huge|COW), stripping
// the frame address and the Present bit — the form fork and CoW fault
// resolution exchange when moving a mapping between PTEs.
func (p PTE) FlagBits() PTE { return p &^ addrMask &^ Present }

// WalkUserLeaves returns every present leaf mapping in the lower half
// (the user-accessible L4 slots) of as, in ascending virtual-address
// order. It lets fork enumerate a parent's mappings without vmm needing
// to know anything about fork's per-page policy.
func (as *AddressSpace) WalkUserLeaves() []LeafInfo {
	as.mu.Lock()
	defer as.mu.Unlock()

	var out []LeafInfo
	root := tableAt(as.alloc.Page(as.root))
	for i4 := 0; i4 < 256; i4++ {
		e4 := root[i4]
		if !e4.IsPresent() {
			continue
		}
		as.walkLeaves3(e4.Frame(), addr.Va(i4)<<39, &out)
	}
	return out
}

func (as *AddressSpace) walkLeaves3(pa addr.Pa, base addr.Va, out *[]LeafInfo) {
	t := tableAt(as.alloc.Page(pa))
	for i := 0; i < 512; i++ {
		e := t[i]
		if !e.IsPresent() {
			continue
		}
		as.walkLeaves2(e.Frame(), base|addr.Va(i)<<30, out)
	}
}

func (as *AddressSpace) walkLeaves2(pa addr.Pa, base addr.Va, out *[]LeafInfo) {
	t := tableAt(as.alloc.Page(pa))
	for i := 0; i < 512; i++ {
		e := t[i]
		if !e.IsPresent() {
			continue
		}
		as.walkLeaves1(e.Frame(), base|addr.Va(i)<<21, out)
	}
}

func (as *AddressSpace) walkLeaves1(pa addr.Pa, base addr.Va, out *[]LeafInfo) {
	t := tableAt(as.alloc.Page(pa))
	for i := 0; i < 512; i++ {
		e := t[i]
		if !e.IsPresent() {
			continue
		}
		va := base | addr.Va(i)<<12
		*out = append(*out, LeafInfo{VA: va, Frame: e.Frame(), Flags: e.FlagBits()})
	}
}

// LeafAt returns the leaf PTE for va without creating anything, for
// callers (the CoW fault handler) that need to inspect a mapping's
// flags rather than just its frame.
func (as *AddressSpace) LeafAt(va addr.Va) (PTE, errs.Err_t) {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.lookup(va)
}

// InstallLeaf maps va to frame with flags in as, failing InvalidArgument
// if va is already mapped. Exported for fork, which installs pages one
// at a time at addresses it discovered by walking the parent rather
// than as a single contiguous block.
func (as *AddressSpace) InstallLeaf(va addr.Va, frame addr.Pa, flags PTE) errs.Err_t {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.installLeaf(va, frame, flags)
}

// SetLeafFlags rewrites the flag bits of the already-present leaf at va,
// keeping its frame and refcount untouched. Used by CoW fork to turn a
// parent's writable PTE read-only-and-COW without disturbing the frame
// it points at.
func (as *AddressSpace) SetLeafFlags(va addr.Va, flags PTE) errs.Err_t {
	as.mu.Lock()
	defer as.mu.Unlock()

	chain, e := as.walkChain(va, false)
	if e.IsErr() {
		return e
	}
	l1 := tableAt(as.alloc.Page(chain[3].tablePa))
	pte := l1[chain[3].index]
	if !pte.IsPresent() {
		return errs.NoPage
	}
	l1[chain[3].index] = NewLeaf(pte.Frame(), flags)
	arch.InvalidatePage(uintptr(va))
	return errs.OK
}

// ReplaceLeaf overwrites the already-present leaf at va to point at a
// different frame with different flags, without touching either
// frame's refcount — the caller (CoW fault resolution) owns that
// bookkeeping since it knows which frame is being abandoned.
func (as *AddressSpace) ReplaceLeaf(va addr.Va, frame addr.Pa, flags PTE) errs.Err_t {
	as.mu.Lock()
	defer as.mu.Unlock()

	chain, e := as.walkChain(va, false)
	if e.IsErr() {
		return e
	}
	l1 := tableAt(as.alloc.Page(chain[3].tablePa))
	if !l1[chain[3].index].IsPresent() {
		return errs.NoPage
	}
	l1[chain[3].index] = NewLeaf(frame, flags)
	arch.InvalidatePage(uintptr(va))
	return errs.OK
}
