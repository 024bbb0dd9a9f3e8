package blkcache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"kernix/errs"
)

// memDisk is an in-memory Disk used purely for testing the cache's
// eviction and flush behavior without a real device.
type memDisk struct {
	blocks map[int][BlockSize]byte
	reads  int
	writes int
}

func newMemDisk() *memDisk {
	return &memDisk{blocks: make(map[int][BlockSize]byte)}
}

func (m *memDisk) ReadBlock(block int, buf *[BlockSize]byte) errs.Err_t {
	m.reads++
	*buf = m.blocks[block]
	return errs.OK
}

func (m *memDisk) WriteBlock(block int, buf *[BlockSize]byte) errs.Err_t {
	m.writes++
	m.blocks[block] = *buf
	return errs.OK
}

func TestReadMissLoadsFromDisk(t *testing.T) {
	disk := newMemDisk()
	disk.blocks[3] = [BlockSize]byte{1, 2, 3}
	c := New(4)
	c.Attach(0, disk)

	buf, e := c.Read(0, 3)
	require.True(t, e.IsErr() == false)
	require.Equal(t, byte(1), buf[0])
	require.Equal(t, 1, disk.reads)

	_, e = c.Read(0, 3)
	require.True(t, e.IsErr() == false)
	require.Equal(t, 1, disk.reads, "second read should hit the cache")
}

func TestWriteMarksDirtyAndDoesNotFlushImmediately(t *testing.T) {
	disk := newMemDisk()
	c := New(4)
	c.Attach(0, disk)

	var buf [BlockSize]byte
	buf[0] = 9
	e := c.Write(0, 1, buf)
	require.True(t, e.IsErr() == false)
	require.Equal(t, 0, disk.writes)

	got, e := c.Read(0, 1)
	require.True(t, e.IsErr() == false)
	require.Equal(t, byte(9), got[0])
}

func TestFlushBlockWritesDirtyEntry(t *testing.T) {
	disk := newMemDisk()
	c := New(4)
	c.Attach(0, disk)

	var buf [BlockSize]byte
	buf[0] = 5
	require.True(t, c.Write(0, 2, buf).IsErr() == false)

	require.True(t, c.FlushBlock(0, 2).IsErr() == false)
	require.Equal(t, 1, disk.writes)
	require.Equal(t, byte(5), disk.blocks[2][0])

	require.True(t, c.FlushBlock(0, 2).IsErr() == false)
	require.Equal(t, 1, disk.writes, "flushing a clean block is a no-op")
}

func TestEvictionIsStrictLRU(t *testing.T) {
	disk := newMemDisk()
	c := New(2)
	c.Attach(0, disk)

	_, e := c.Read(0, 1)
	require.True(t, e.IsErr() == false)
	_, e = c.Read(0, 2)
	require.True(t, e.IsErr() == false)

	// Touch block 1 so block 2 becomes the least recently used.
	_, e = c.Read(0, 1)
	require.True(t, e.IsErr() == false)

	_, e = c.Read(0, 3)
	require.True(t, e.IsErr() == false)
	require.Equal(t, 2, c.Len())

	stats := c.Stats()
	require.Equal(t, uint64(1), stats.Evictions)

	// Block 2 should have been evicted; reading it again is a fresh miss.
	missesBefore := disk.reads
	_, e = c.Read(0, 2)
	require.True(t, e.IsErr() == false)
	require.Greater(t, disk.reads, missesBefore)
}

func TestEvictionFlushesDirtyVictim(t *testing.T) {
	disk := newMemDisk()
	c := New(1)
	c.Attach(0, disk)

	var buf [BlockSize]byte
	buf[0] = 7
	require.True(t, c.Write(0, 1, buf).IsErr() == false)

	// Forces eviction of block 1, which is dirty.
	_, e := c.Read(0, 2)
	require.True(t, e.IsErr() == false)

	require.Equal(t, 1, disk.writes)
	require.Equal(t, byte(7), disk.blocks[1][0])
}

func TestFlushAllWritesEveryDirtyBlock(t *testing.T) {
	disk := newMemDisk()
	c := New(4)
	c.Attach(0, disk)

	var b1, b2 [BlockSize]byte
	b1[0], b2[0] = 1, 2
	require.True(t, c.Write(0, 1, b1).IsErr() == false)
	require.True(t, c.Write(0, 2, b2).IsErr() == false)

	require.True(t, c.FlushAll().IsErr() == false)
	require.Equal(t, 2, disk.writes)
	require.Equal(t, byte(1), disk.blocks[1][0])
	require.Equal(t, byte(2), disk.blocks[2][0])
}

func TestReadFromUnattachedDiskFails(t *testing.T) {
	c := New(2)
	_, e := c.Read(0, 1)
	require.True(t, e.IsErr())
}
