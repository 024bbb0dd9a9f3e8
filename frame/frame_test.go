package frame

import (
	"testing"

	"github.com/stretchr/testify/require"

	"kernix/addr"
	"kernix/errs"
)

func TestAllocateLowestIndexFirst(t *testing.T) {
	a := NewAllocator(0, 4)
	require.Equal(t, 4, a.Count())

	g0, e := a.Allocate()
	require.Equal(t, errs.OK, e)
	require.Equal(t, addr.Pa(0), g0.Pa())
	require.Equal(t, 3, a.Count())

	g1, e := a.Allocate()
	require.Equal(t, errs.OK, e)
	require.Equal(t, addr.Pa(addr.PageSize), g1.Pa())
	require.Equal(t, 2, a.Count())
}

func TestDeallocateFreesAndRewindsRover(t *testing.T) {
	a := NewAllocator(0, 4)
	g0, _ := a.Allocate()
	g1, _ := a.Allocate()
	_ = g1
	require.Equal(t, 2, a.Count())

	a.Deallocate(g0.Pa())
	require.Equal(t, 3, a.Count())

	g2, e := a.Allocate()
	require.Equal(t, errs.OK, e)
	require.Equal(t, addr.Pa(0), g2.Pa())
}

func TestExhaustionReturnsNoFrame(t *testing.T) {
	a := NewAllocator(0, 2)
	_, e1 := a.Allocate()
	_, e2 := a.Allocate()
	require.Equal(t, errs.OK, e1)
	require.Equal(t, errs.OK, e2)

	_, e3 := a.Allocate()
	require.Equal(t, errs.NoFrame, e3)
}

func TestReferenceIncrementsRefcountAndBlocksFree(t *testing.T) {
	a := NewAllocator(0, 2)
	g, _ := a.Allocate()
	require.EqualValues(t, 1, a.Refcount(g.Pa()))

	a.Reference(g.Pa())
	require.EqualValues(t, 2, a.Refcount(g.Pa()))

	a.Deallocate(g.Pa())
	require.EqualValues(t, 1, a.Refcount(g.Pa()))
	require.Equal(t, 1, a.Count())

	a.Deallocate(g.Pa())
	require.EqualValues(t, 0, a.Refcount(g.Pa()))
	require.Equal(t, 2, a.Count())
}

func TestReferenceOfFreeFramePanics(t *testing.T) {
	a := NewAllocator(0, 1)
	require.Panics(t, func() {
		a.Reference(0)
	})
}

func TestCountRoundTripsUnderChurn(t *testing.T) {
	a := NewAllocator(0, 8)
	before := a.Count()

	var guards []FrameGuard
	for i := 0; i < 5; i++ {
		g, e := a.Allocate()
		require.Equal(t, errs.OK, e)
		guards = append(guards, g)
	}
	for _, g := range guards {
		g.Release()
	}
	require.Equal(t, before, a.Count())
}
