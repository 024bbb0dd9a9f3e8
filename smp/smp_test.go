package smp

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kernix/arch"
	"kernix/errs"
	"kernix/proc"
)

// buildMADT assembles a minimal MADT byte blob: the 44-byte header
// (SDTHeader + LapicAddr + Flags) followed by one Processor Local APIC
// entry per (apicID, enabled) pair.
func buildMADT(lapicAddr uint32, entries []struct {
	id      uint32
	enabled bool
}) []byte {
	buf := make([]byte, madtHeaderLen+8*len(entries))
	binary.LittleEndian.PutUint32(buf[36:40], lapicAddr)

	pos := madtHeaderLen
	for _, e := range entries {
		buf[pos] = byte(madtEntryLocalAPIC)
		buf[pos+1] = 8
		buf[pos+3] = byte(e.id)
		var flags uint32
		if e.enabled {
			flags = localAPICFlagEnabled
		}
		binary.LittleEndian.PutUint32(buf[pos+4:pos+8], flags)
		pos += 8
	}
	return buf
}

func TestParseMADTExtractsBSPAndAPs(t *testing.T) {
	buf := buildMADT(0xfee00000, []struct {
		id      uint32
		enabled bool
	}{
		{id: 0, enabled: true},
		{id: 1, enabled: true},
		{id: 2, enabled: true},
	})

	top, e := ParseMADT(buf, 0)
	require.True(t, e.IsErr() == false)
	require.EqualValues(t, 0, top.BSPLapicID)
	require.Equal(t, []uint32{1, 2}, top.APLapicIDs)
	require.EqualValues(t, 0xfee00000, top.LapicBase)
}

func TestParseMADTSkipsDisabledEntries(t *testing.T) {
	buf := buildMADT(0xfee00000, []struct {
		id      uint32
		enabled bool
	}{
		{id: 0, enabled: true},
		{id: 1, enabled: false},
		{id: 2, enabled: true},
	})

	top, e := ParseMADT(buf, 0)
	require.True(t, e.IsErr() == false)
	require.Equal(t, []uint32{2}, top.APLapicIDs)
}

func TestParseMADTRejectsShortBuffer(t *testing.T) {
	_, e := ParseMADT(make([]byte, 10), 0)
	require.Equal(t, errs.InvalidArgument, e)
}

func TestParseMADTRejectsTruncatedEntry(t *testing.T) {
	buf := buildMADT(0xfee00000, []struct {
		id      uint32
		enabled bool
	}{{id: 0, enabled: true}})
	truncated := buf[:len(buf)-4]

	_, e := ParseMADT(truncated, 0)
	require.Equal(t, errs.Fmt, e)
}

func newTestScheduler() *proc.Scheduler {
	var table proc.Table
	return proc.NewScheduler(&table, func(p *proc.Process) bool { return false })
}

func TestBringupMarksAllCPUsOnline(t *testing.T) {
	prevHalt := arch.Halt
	arch.Halt = func() { time.Sleep(time.Millisecond) }
	defer func() { arch.Halt = prevHalt }()

	top := Topology{BSPLapicID: 0, APLapicIDs: []uint32{1, 2, 3}}
	sched := newTestScheduler()

	set, e := Bringup(top, sched, 0xdeadbeef)
	require.True(t, e.IsErr() == false)
	require.Equal(t, 4, set.Len())

	bsp, ok := set.BSP()
	require.True(t, ok)
	require.True(t, bsp.IsBSP)
	require.True(t, bsp.Online())

	for _, id := range top.APLapicIDs {
		pc, ok := set.Get(id)
		require.True(t, ok)
		require.False(t, pc.IsBSP)
		require.True(t, pc.Online())
	}
}

func TestBringupAssignsDistinctSequentialIDs(t *testing.T) {
	prevHalt := arch.Halt
	arch.Halt = func() { time.Sleep(time.Millisecond) }
	defer func() { arch.Halt = prevHalt }()

	top := Topology{BSPLapicID: 5, APLapicIDs: []uint32{6, 7}}
	set, e := Bringup(top, newTestScheduler(), 0)
	require.True(t, e.IsErr() == false)

	bsp, _ := set.BSP()
	require.Equal(t, 0, bsp.ID)
	ap1, _ := set.Get(6)
	ap2, _ := set.Get(7)
	require.Equal(t, 1, ap1.ID)
	require.Equal(t, 2, ap2.ID)
}

func TestBringupTimesOutWhenAPNeverComesOnline(t *testing.T) {
	prevStart := StartAP
	StartAP = func(lapicID uint32, entry func()) { /* never runs entry */ }
	defer func() { StartAP = prevStart }()

	top := Topology{BSPLapicID: 0, APLapicIDs: []uint32{1}}
	_, e := Bringup(top, newTestScheduler(), 0)
	require.Equal(t, errs.Timeout, e)
}
