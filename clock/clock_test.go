package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kernix/arch"
)

func TestSeqLockDetectsConcurrentWrite(t *testing.T) {
	var l SeqLock
	start := l.BeginRead()
	require.False(t, l.Retry(start))

	l.BeginWrite()
	require.True(t, l.Retry(start))
	l.EndWrite()

	start2 := l.BeginRead()
	require.False(t, l.Retry(start2))
}

func TestClockProjectsWallTimeFromTSC(t *testing.T) {
	prev := arch.ReadTSC
	var tick uint64
	arch.ReadTSC = func() uint64 { return tick }
	defer func() { arch.ReadTSC = prev }()

	c := New()
	require.False(t, c.Established())

	boot := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	const hz = 1_000_000_000 // 1 tick per nanosecond, for round numbers
	c.Establish(boot, 0, hz)
	require.True(t, c.Established())

	tick = 5 * hz // 5 seconds of ticks
	require.Equal(t, boot.Add(5*time.Second), c.Now())
}

func TestSessionIDIsStableAcrossReads(t *testing.T) {
	c := New()
	require.NotEqual(t, c.SessionID.String(), "")
	id := c.SessionID
	require.Equal(t, id, c.SessionID)
}
