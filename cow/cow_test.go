package cow

import (
	"testing"

	"github.com/stretchr/testify/require"

	"kernix/addr"
	"kernix/frame"
	"kernix/proc"
	"kernix/trap"
	"kernix/vmm"
)

func newSpace(t *testing.T, alloc *frame.Allocator) *vmm.AddressSpace {
	t.Helper()
	as, e := vmm.New(alloc)
	require.True(t, e.IsErr() == false)
	return as
}

func TestEagerForkCopiesContentIndependently(t *testing.T) {
	alloc := frame.NewAllocator(0, 4096)
	parent := newSpace(t, alloc)
	child := newSpace(t, alloc)

	block, e := parent.Allocate(vmm.Layout{Size: addr.PageSize}, vmm.User|vmm.Write)
	require.True(t, e.IsErr() == false)
	pa, e := parent.Translate(block.Start())
	require.True(t, e.IsErr() == false)
	copy(alloc.Page(pa)[:], []byte("original"))

	require.True(t, EagerFork(parent, child).IsErr() == false)

	cpa, e := child.Translate(block.Start())
	require.True(t, e.IsErr() == false)
	require.NotEqual(t, pa, cpa)
	require.Equal(t, byte('o'), alloc.Page(cpa)[0])

	alloc.Page(cpa)[0] = 'X'
	require.Equal(t, byte('o'), alloc.Page(pa)[0])
}

func TestCowForkSharesFramesAndMarksReadOnly(t *testing.T) {
	alloc := frame.NewAllocator(0, 4096)
	parent := newSpace(t, alloc)
	child := newSpace(t, alloc)

	block, e := parent.Allocate(vmm.Layout{Size: addr.PageSize}, vmm.User|vmm.Write)
	require.True(t, e.IsErr() == false)
	pa, e := parent.Translate(block.Start())
	require.True(t, e.IsErr() == false)
	require.Equal(t, int32(1), alloc.Refcount(pa))

	require.True(t, Fork(parent, child).IsErr() == false)
	require.Equal(t, int32(2), alloc.Refcount(pa))

	cpa, e := child.Translate(block.Start())
	require.True(t, e.IsErr() == false)
	require.Equal(t, pa, cpa)

	ppte, e := parent.LeafAt(block.Start())
	require.True(t, e.IsErr() == false)
	require.False(t, ppte.IsWrite())
	require.True(t, ppte.IsCOW())

	cpte, e := child.LeafAt(block.Start())
	require.True(t, e.IsErr() == false)
	require.True(t, cpte.IsCOW())
}

func TestCowForkSharesReadOnlyPagesWithoutCowBit(t *testing.T) {
	alloc := frame.NewAllocator(0, 4096)
	parent := newSpace(t, alloc)
	child := newSpace(t, alloc)

	block, e := parent.Allocate(vmm.Layout{Size: addr.PageSize}, vmm.User)
	require.True(t, e.IsErr() == false)

	require.True(t, Fork(parent, child).IsErr() == false)

	ppte, e := parent.LeafAt(block.Start())
	require.True(t, e.IsErr() == false)
	require.False(t, ppte.IsCOW())
	require.False(t, ppte.IsWrite())
}

func TestResolveSingleOwnerFastPathSkipsCopy(t *testing.T) {
	alloc := frame.NewAllocator(0, 4096)
	parent := newSpace(t, alloc)
	child := newSpace(t, alloc)

	block, e := parent.Allocate(vmm.Layout{Size: addr.PageSize}, vmm.User|vmm.Write)
	require.True(t, e.IsErr() == false)
	require.True(t, Fork(parent, child).IsErr() == false)

	// Child drops its reference, leaving parent the sole owner again.
	dropBlock, e := addr.NewBlock(block.Start(), 1)
	require.True(t, e.IsErr() == false)
	child.Deallocate(dropBlock)
	pa, e := parent.Translate(block.Start())
	require.True(t, e.IsErr() == false)
	require.Equal(t, int32(1), alloc.Refcount(pa))

	require.True(t, Resolve(parent, block.Start()).IsErr() == false)

	pte, e := parent.LeafAt(block.Start())
	require.True(t, e.IsErr() == false)
	require.True(t, pte.IsWrite())
	require.False(t, pte.IsCOW())
	require.Equal(t, pa, pte.Frame())
}

func TestResolveCopiesWhenSharedAndDropsOldRefcount(t *testing.T) {
	alloc := frame.NewAllocator(0, 4096)
	parent := newSpace(t, alloc)
	child := newSpace(t, alloc)

	block, e := parent.Allocate(vmm.Layout{Size: addr.PageSize}, vmm.User|vmm.Write)
	require.True(t, e.IsErr() == false)
	oldPa, _ := parent.Translate(block.Start())
	copy(alloc.Page(oldPa)[:], []byte("shared"))

	require.True(t, Fork(parent, child).IsErr() == false)
	require.Equal(t, int32(2), alloc.Refcount(oldPa))

	require.True(t, Resolve(parent, block.Start()).IsErr() == false)

	newPa, e := parent.Translate(block.Start())
	require.True(t, e.IsErr() == false)
	require.NotEqual(t, oldPa, newPa)
	require.Equal(t, byte('s'), alloc.Page(newPa)[0])
	require.Equal(t, int32(1), alloc.Refcount(oldPa))

	pte, _ := parent.LeafAt(block.Start())
	require.True(t, pte.IsWrite())
	require.False(t, pte.IsCOW())
}

func TestResolveRejectsNonCowFault(t *testing.T) {
	alloc := frame.NewAllocator(0, 4096)
	as := newSpace(t, alloc)

	block, e := as.Allocate(vmm.Layout{Size: addr.PageSize}, vmm.User|vmm.Write)
	require.True(t, e.IsErr() == false)

	e = Resolve(as, block.Start())
	require.True(t, e.IsErr())
}

func TestHandleFaultFallsBackToUserTrapHandlerOnAltStack(t *testing.T) {
	alloc := frame.NewAllocator(0, 4096)
	as := newSpace(t, alloc)
	p := &proc.Process{AS: as, TrapHandler: addr.Va(0x40_0000)}

	faultVA := addr.Va(0x20_0000)
	code := trap.DecodePageFaultError(0) // not present, not write, not user

	e := HandleFault(p, code, faultVA)
	require.True(t, e.IsErr() == false)
	require.Equal(t, uint64(p.TrapHandler), p.Regs.RIP)
	require.Equal(t, uint64(faultVA), p.Regs.RDI)
	require.NotZero(t, p.AltStack)
	require.Equal(t, uint64(p.AltStack)+altStackSize, p.Regs.RSP)
}

func TestHandleFaultWithNoHandlerIsPermissionDenied(t *testing.T) {
	alloc := frame.NewAllocator(0, 4096)
	as := newSpace(t, alloc)
	p := &proc.Process{AS: as}

	e := HandleFault(p, trap.DecodePageFaultError(0), addr.Va(0x1000))
	require.True(t, e.IsErr())
}
