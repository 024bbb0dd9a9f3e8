package heap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"kernix/errs"
	"kernix/frame"
	"kernix/vmm"
)

func newTestDispatcher(t *testing.T, nframe int) *Dispatcher {
	t.Helper()
	alloc := frame.NewAllocator(0, nframe)
	as, e := vmm.New(alloc)
	require.Equal(t, errs.OK, e)
	return NewDispatcher(as)
}

func TestSmallAllocationsPackOneQuarry(t *testing.T) {
	d := newTestDispatcher(t, 64)

	a, e := d.Allocate(8, 8)
	require.Equal(t, errs.OK, e)
	b, e := d.Allocate(8, 8)
	require.Equal(t, errs.OK, e)

	require.Equal(t, a.RoundDown(), b.RoundDown())
	require.NotEqual(t, a, b)
}

func TestAlignmentBumpsToLargerClass(t *testing.T) {
	idx, ok := classFor(8, 32)
	require.True(t, ok)
	require.Equal(t, 32, classes[idx].size)
}

func TestOversizeAllocationGoesToBigAllocator(t *testing.T) {
	d := newTestDispatcher(t, 64)

	va, e := d.Allocate(4096, 8)
	require.Equal(t, errs.OK, e)
	_, isBig := d.bigBlocks[va]
	require.True(t, isBig)
}

func TestDeallocateKeepsLoneEmptyQuarryPage(t *testing.T) {
	d := newTestDispatcher(t, 64)
	before := d.as.Allocator().Count()

	va, e := d.Allocate(8, 8)
	require.Equal(t, errs.OK, e)
	require.Less(t, d.as.Allocator().Count(), before)

	d.Deallocate(va)
	// A lone quarry is kept around rather than freed (len(quarries)==1),
	// matching "not the last" from the quarry-release rule.
	require.Less(t, d.as.Allocator().Count(), before)
}

func TestBytesReadsWrittenContent(t *testing.T) {
	d := newTestDispatcher(t, 64)
	va, e := d.Allocate(16, 8)
	require.Equal(t, errs.OK, e)

	b, e := d.Bytes(va)
	require.Equal(t, errs.OK, e)
	b[0] = 0x42

	b2, _ := d.Bytes(va)
	require.Equal(t, byte(0x42), b2[0])
}

func TestProfileReportsLiveClasses(t *testing.T) {
	d := newTestDispatcher(t, 64)
	_, e := d.Allocate(8, 8)
	require.Equal(t, errs.OK, e)

	p := d.Profile()
	require.NotEmpty(t, p.Sample)
}
