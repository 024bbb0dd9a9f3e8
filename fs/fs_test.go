package fs

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"kernix/blkcache"
	"kernix/errs"
)

func newTestFS(t *testing.T, totalBlocks, inodeCount int) (*FileSystem, *blkcache.Cache) {
	t.Helper()
	cache := blkcache.New(totalBlocks)
	disk := newRamDisk(totalBlocks)
	cache.Attach(0, disk)

	fsys, e := Format(cache, 0, totalBlocks, inodeCount, uuid.New())
	require.True(t, e.IsErr() == false, "%v", e)
	return fsys, cache
}

// ramDisk is an in-memory Disk backing fs's own tests, independent of
// blkcache's internal test double.
type ramDisk struct {
	blocks [][blkcache.BlockSize]byte
}

func newRamDisk(n int) *ramDisk {
	return &ramDisk{blocks: make([][blkcache.BlockSize]byte, n)}
}

func (d *ramDisk) ReadBlock(block int, buf *[blkcache.BlockSize]byte) errs.Err_t {
	*buf = d.blocks[block]
	return errs.OK
}

func (d *ramDisk) WriteBlock(block int, buf *[blkcache.BlockSize]byte) errs.Err_t {
	d.blocks[block] = *buf
	return errs.OK
}

func TestFormatAllocatesRootAsInodeOne(t *testing.T) {
	fsys, _ := newTestFS(t, 64, 32)

	in, e := fsys.readInode(RootInode)
	require.True(t, e.IsErr() == false)
	require.True(t, in.IsDir())
	require.Equal(t, uint64(0), in.Size)
}

func TestCreateAndLookupRoundTrip(t *testing.T) {
	fsys, _ := newTestFS(t, 64, 32)

	num, e := fsys.Create(RootInode, "hello.txt", KindFile)
	require.True(t, e.IsErr() == false)

	got, e := fsys.Lookup("hello.txt")
	require.True(t, e.IsErr() == false)
	require.Equal(t, num, got)
}

func TestLookupMissingNameFails(t *testing.T) {
	fsys, _ := newTestFS(t, 64, 32)

	_, e := fsys.Lookup("nope")
	require.Equal(t, errs.FileNotFound, e)
}

func TestCreateDuplicateNameFails(t *testing.T) {
	fsys, _ := newTestFS(t, 64, 32)

	_, e := fsys.Create(RootInode, "dup", KindFile)
	require.True(t, e.IsErr() == false)

	_, e = fsys.Create(RootInode, "dup", KindFile)
	require.Equal(t, errs.FileExists, e)
}

func TestMkdirNestedLookup(t *testing.T) {
	fsys, _ := newTestFS(t, 64, 32)

	sub, e := fsys.Mkdir(RootInode, "sub")
	require.True(t, e.IsErr() == false)

	_, e = fsys.Create(sub, "leaf.txt", KindFile)
	require.True(t, e.IsErr() == false)

	num, e := fsys.Lookup("sub/leaf.txt")
	require.True(t, e.IsErr() == false)

	in, e := fsys.readInode(num)
	require.True(t, e.IsErr() == false)
	require.False(t, in.IsDir())
}

func TestWriteReadRoundTripWithinOneBlock(t *testing.T) {
	fsys, _ := newTestFS(t, 64, 32)

	num, e := fsys.Create(RootInode, "f", KindFile)
	require.True(t, e.IsErr() == false)

	data := []byte("the quick brown fox")
	n, e := fsys.WriteFile(num, 0, data)
	require.True(t, e.IsErr() == false)
	require.Equal(t, len(data), n)

	buf := make([]byte, len(data))
	n, e = fsys.ReadFile(num, 0, buf)
	require.True(t, e.IsErr() == false)
	require.Equal(t, len(data), n)
	require.Equal(t, data, buf)
}

func TestWriteStraddlingDirectToIndirectBoundary(t *testing.T) {
	// Plenty of blocks for NDirect direct blocks plus a couple into the
	// indirect range, the bitmap blocks, inode table, and the superblock.
	fsys, _ := newTestFS(t, 64, 32)

	num, e := fsys.Create(RootInode, "big", KindFile)
	require.True(t, e.IsErr() == false)

	// Span from the last direct block into the first indirect block.
	spanStart := int64(NDirect-1) * blkcache.BlockSize
	data := make([]byte, 2*blkcache.BlockSize)
	for i := range data {
		data[i] = byte(i % 251)
	}

	n, e := fsys.WriteFile(num, spanStart, data)
	require.True(t, e.IsErr() == false)
	require.Equal(t, len(data), n)

	buf := make([]byte, len(data))
	n, e = fsys.ReadFile(num, spanStart, buf)
	require.True(t, e.IsErr() == false)
	require.Equal(t, len(data), n)
	require.Equal(t, data, buf)

	in, e := fsys.readInode(num)
	require.True(t, e.IsErr() == false)
	require.NotZero(t, in.Indirect)
}

func TestReadPastEndOfFileReturnsZero(t *testing.T) {
	fsys, _ := newTestFS(t, 64, 32)

	num, e := fsys.Create(RootInode, "f", KindFile)
	require.True(t, e.IsErr() == false)
	_, e = fsys.WriteFile(num, 0, []byte("abc"))
	require.True(t, e.IsErr() == false)

	buf := make([]byte, 10)
	n, e := fsys.ReadFile(num, 100, buf)
	require.True(t, e.IsErr() == false)
	require.Equal(t, 0, n)
}

func TestWritePastMaxFileSizeOverflows(t *testing.T) {
	fsys, _ := newTestFS(t, 64, 32)

	num, e := fsys.Create(RootInode, "f", KindFile)
	require.True(t, e.IsErr() == false)

	_, e = fsys.WriteFile(num, MaxFileSize-1, []byte("ab"))
	require.Equal(t, errs.Overflow, e)
}

func TestUnlinkRemovesEntryAndFreesInode(t *testing.T) {
	fsys, _ := newTestFS(t, 64, 32)

	num, e := fsys.Create(RootInode, "gone", KindFile)
	require.True(t, e.IsErr() == false)
	_, e = fsys.WriteFile(num, 0, []byte("data"))
	require.True(t, e.IsErr() == false)

	require.True(t, fsys.Unlink(RootInode, "gone").IsErr() == false)

	_, e = fsys.Lookup("gone")
	require.Equal(t, errs.FileNotFound, e)

	// The freed inode number must be reusable.
	again, e := fsys.Create(RootInode, "reused", KindFile)
	require.True(t, e.IsErr() == false)
	require.Equal(t, num, again)
}

func TestReaddirListsOnlyLiveEntries(t *testing.T) {
	fsys, _ := newTestFS(t, 64, 32)

	_, e := fsys.Create(RootInode, "a", KindFile)
	require.True(t, e.IsErr() == false)
	_, e = fsys.Create(RootInode, "b", KindFile)
	require.True(t, e.IsErr() == false)
	require.True(t, fsys.Unlink(RootInode, "a").IsErr() == false)

	entries, e := fsys.Readdir(RootInode)
	require.True(t, e.IsErr() == false)
	require.Len(t, entries, 1)
	require.Equal(t, "b", entries[0].Name())
}

func TestCreateOnNonDirectoryParentFails(t *testing.T) {
	fsys, _ := newTestFS(t, 64, 32)

	f, e := fsys.Create(RootInode, "notadir", KindFile)
	require.True(t, e.IsErr() == false)

	_, e = fsys.Create(f, "child", KindFile)
	require.Equal(t, errs.NotDirectory, e)
}

func TestTruncateClearsSizeAndBlockPointers(t *testing.T) {
	fsys, _ := newTestFS(t, 64, 32)

	num, e := fsys.Create(RootInode, "f", KindFile)
	require.True(t, e.IsErr() == false)
	data := make([]byte, 3*blkcache.BlockSize)
	_, e = fsys.WriteFile(num, 0, data)
	require.True(t, e.IsErr() == false)

	require.True(t, fsys.Truncate(num).IsErr() == false)

	in, e := fsys.readInode(num)
	require.True(t, e.IsErr() == false)
	require.Equal(t, uint64(0), in.Size)
	for _, b := range in.Direct {
		require.Zero(t, b)
	}
}

func TestDirectoryEntryNameRoundTrip(t *testing.T) {
	var d DirectoryEntry
	d.Inode = 7
	require.True(t, d.SetName("readme.md").IsErr() == false)

	var buf [DirectoryEntrySize]byte
	d.encodeInto(buf[:])
	got := decodeDirectoryEntry(buf[:])
	require.Equal(t, uint64(7), got.Inode)
	require.Equal(t, "readme.md", got.Name())
	require.False(t, got.IsFree())
}

func TestDirectoryEntryRejectsInvalidNames(t *testing.T) {
	var d DirectoryEntry
	require.Equal(t, errs.InvalidArgument, d.SetName(""))
	require.Equal(t, errs.InvalidArgument, d.SetName("has/slash"))

	over := make([]byte, MaxNameLen+1)
	for i := range over {
		over[i] = 'x'
	}
	require.Equal(t, errs.InvalidArgument, d.SetName(string(over)))
}

func TestBitmapRoverReusesFreedBitFirst(t *testing.T) {
	_, cache := newTestFS(t, 64, 32)
	fsys, e := Mount(cache, 0)
	require.True(t, e.IsErr() == false)

	a, e := fsys.blockBitmap.alloc()
	require.True(t, e.IsErr() == false)
	b, e := fsys.blockBitmap.alloc()
	require.True(t, e.IsErr() == false)
	require.NotEqual(t, a, b)

	require.True(t, fsys.blockBitmap.free(a).IsErr() == false)

	c, e := fsys.blockBitmap.alloc()
	require.True(t, e.IsErr() == false)
	require.Equal(t, a, c, "freeing a lower bit should rewind the rover to it")
}
