// Package cow implements eager and copy-on-write fork, and the in-kernel
// page-fault resolution that backs the CoW half of it (component I).
//
// Grounded on the teacher's Sys_pgfault (biscuit/src/vm/as.go): a
// writable CoW PTE is resolved by allocating a fresh frame, copying the
// old page's content into it, and installing it writable — unless the
// old frame's refcount shows this mapping is the only owner, in which
// case the fault is resolved by flipping the PTE writable in place with
// no copy at all (the teacher's "claim the page, skip the copy" path).
package cow

import (
	"kernix/addr"
	"kernix/errs"
	"kernix/vmm"
)

// EagerFork duplicates every present user leaf page from parent into
// child as an independently-owned copy: a freshly allocated frame, a
// byte-for-byte copy of the source page, mapped with the same flags.
// This is the fork baseline the spec calls for before CoW: no sharing,
// so it can never observe a CoW fault.
func EagerFork(parent, child *vmm.AddressSpace) errs.Err_t {
	for _, leaf := range parent.WalkUserLeaves() {
		g, e := child.Allocator().Allocate()
		if e.IsErr() {
			return e
		}
		copy(child.Allocator().Page(g.Pa())[:], parent.Allocator().Page(leaf.Frame)[:])
		if e := child.InstallLeaf(leaf.VA, g.Pa(), leaf.Flags); e.IsErr() {
			g.Release()
			return e
		}
	}
	return errs.OK
}

// Fork implements copy-on-write fork: every writable user leaf in
// parent has its writable bit cleared and the software COW bit set (in
// parent, in place), its frame's refcount bumped, and the resulting
// read-only, CoW-marked PTE copied into child at the same address.
// Read-only leaves are shared as-is, with no CoW bit, since there is
// nothing a write could corrupt for another owner to notice.
func Fork(parent, child *vmm.AddressSpace) errs.Err_t {
	for _, leaf := range parent.WalkUserLeaves() {
		flags := leaf.Flags
		if flags&vmm.Write != 0 {
			flags = (flags &^ vmm.Write) | vmm.COW
			if e := parent.SetLeafFlags(leaf.VA, flags); e.IsErr() {
				return e
			}
		}
		g := parent.Allocator().Reference(leaf.Frame)
		if e := child.InstallLeaf(leaf.VA, g.Pa(), flags); e.IsErr() {
			g.Release()
			return e
		}
	}
	return errs.OK
}

// Resolve handles a CoW page fault at va in as, returning errs.OK once
// the page is writable and safe to retry, errs.PermissionDenied if the
// leaf is not a present, user, COW-marked PTE (the signal to the caller
// that the fault belongs to the user trap handler instead), or the
// lookup's error if va has no leaf at all. Whether the fault was a
// write is not checked here; HandleFault only calls Resolve for write
// faults.
func Resolve(as *vmm.AddressSpace, va addr.Va) errs.Err_t {
	pte, e := as.LeafAt(va.RoundDown())
	if e.IsErr() {
		return e
	}
	if !pte.IsPresent() || !pte.IsUser() || !pte.IsCOW() {
		return errs.PermissionDenied
	}

	frame := pte.Frame()
	alloc := as.Allocator()
	newFlags := (pte.FlagBits() &^ vmm.COW) | vmm.Write

	if alloc.Refcount(frame) == 1 {
		// Single owner: no other mapping can observe the copy we would
		// otherwise make, so just widen this PTE in place.
		return as.SetLeafFlags(va.RoundDown(), newFlags)
	}

	g, e := alloc.Allocate()
	if e.IsErr() {
		return e
	}
	copy(alloc.Page(g.Pa())[:], alloc.Page(frame)[:])
	if e := as.ReplaceLeaf(va.RoundDown(), g.Pa(), newFlags); e.IsErr() {
		g.Release()
		return e
	}
	alloc.Deallocate(frame)
	return errs.OK
}
