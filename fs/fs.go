package fs

import (
	"encoding/binary"
	"strings"

	"github.com/google/uuid"

	"kernix/blkcache"
	"kernix/errs"
)

// RootInode is the fixed inode number of the root directory. Format
// allocates it first, so it is always 1.
const RootInode = 1

// FileSystem is a mounted volume: a superblock plus the two free-space
// bitmaps it describes, all reached through a shared block cache.
type FileSystem struct {
	cache *blkcache.Cache
	disk  int
	sb    Superblock

	blockBitmap *bitmap
	inodeBitmap *bitmap
}

// Mount reads an existing superblock off disk and attaches its bitmaps.
func Mount(cache *blkcache.Cache, disk int) (*FileSystem, errs.Err_t) {
	sb, e := readSuperblock(cache, disk)
	if e.IsErr() {
		return nil, e
	}
	fsys := &FileSystem{cache: cache, disk: disk, sb: sb}
	fsys.blockBitmap = &bitmap{fs: fsys, start: sb.BlockBitmapStart, count: sb.BlockCount - sb.DataStart}
	fsys.inodeBitmap = &bitmap{fs: fsys, start: sb.InodeBitmapStart, count: sb.InodeCount}
	return fsys, errs.OK
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }

// Format lays out a fresh volume of totalBlocks blocks with room for
// inodeCount inodes: block 0 is the boot block, block 1 the superblock,
// then the block bitmap, the inode bitmap, the inode table, and finally
// the data region, each a contiguous run of blocks in that order. It
// allocates and writes an empty root directory inode before returning.
func Format(cache *blkcache.Cache, disk int, totalBlocks, inodeCount int, volumeID uuid.UUID) (*FileSystem, errs.Err_t) {
	blockBitmapBlocks := ceilDiv(totalBlocks, blkcache.BlockSize*8)
	inodeBitmapBlocks := ceilDiv(inodeCount, blkcache.BlockSize*8)
	inodeTableBlocks := ceilDiv(inodeCount, InodesPerBlock)

	blockBitmapStart := SuperblockNum + 1
	inodeBitmapStart := blockBitmapStart + blockBitmapBlocks
	inodeTableStart := inodeBitmapStart + inodeBitmapBlocks
	dataStart := inodeTableStart + inodeTableBlocks
	if dataStart >= totalBlocks {
		return nil, errs.InvalidArgument
	}

	sb := Superblock{
		BlockCount:       totalBlocks,
		InodeCount:       inodeCount,
		BlockBitmapStart: blockBitmapStart,
		InodeBitmapStart: inodeBitmapStart,
		InodeTableStart:  inodeTableStart,
		InodeTableBlocks: inodeTableBlocks,
		DataStart:        dataStart,
		VolumeID:         volumeID,
	}
	if e := writeSuperblock(cache, disk, sb); e.IsErr() {
		return nil, e
	}

	var zero [blkcache.BlockSize]byte
	for b := blockBitmapStart; b < dataStart; b++ {
		if e := cache.Write(disk, b, zero); e.IsErr() {
			return nil, e
		}
	}

	fsys := &FileSystem{cache: cache, disk: disk, sb: sb}
	fsys.blockBitmap = &bitmap{fs: fsys, start: blockBitmapStart, count: totalBlocks - dataStart}
	fsys.inodeBitmap = &bitmap{fs: fsys, start: inodeBitmapStart, count: inodeCount}

	rootNum, e := fsys.allocInode()
	if e.IsErr() {
		return nil, e
	}
	if rootNum != RootInode {
		return nil, errs.Medium
	}
	if e := fsys.writeInode(rootNum, Inode{Kind: KindDir}); e.IsErr() {
		return nil, e
	}

	return fsys, errs.OK
}

func (fsys *FileSystem) allocBlock() (int, errs.Err_t) {
	i, e := fsys.blockBitmap.alloc()
	if e.IsErr() {
		return 0, e
	}
	abs := fsys.sb.DataStart + i
	var zero [blkcache.BlockSize]byte
	if e := fsys.cache.Write(fsys.disk, abs, zero); e.IsErr() {
		return 0, e
	}
	return abs, errs.OK
}

func (fsys *FileSystem) freeBlock(abs int) errs.Err_t {
	return fsys.blockBitmap.free(abs - fsys.sb.DataStart)
}

func (fsys *FileSystem) allocInode() (int, errs.Err_t) {
	i, e := fsys.inodeBitmap.alloc()
	if e.IsErr() {
		return 0, e
	}
	return i + 1, errs.OK
}

func (fsys *FileSystem) freeInode(num int) errs.Err_t {
	return fsys.inodeBitmap.free(num - 1)
}

// blockForOffset resolves the index'th logical block of in without
// allocating; a hole (never-written block) reads back as block 0.
func (fsys *FileSystem) blockForOffset(in *Inode, index int) (uint64, errs.Err_t) {
	if index < NDirect {
		return in.Direct[index], errs.OK
	}
	idx2 := index - NDirect
	if idx2 >= blkcache.BlockSize/8 {
		return 0, errs.Overflow
	}
	if in.Indirect == 0 {
		return 0, errs.OK
	}
	buf, e := fsys.cache.Read(fsys.disk, int(in.Indirect))
	if e.IsErr() {
		return 0, e
	}
	return binary.LittleEndian.Uint64(buf[idx2*8 : idx2*8+8]), errs.OK
}

// ensureBlockForOffset is blockForOffset's write-path counterpart: it
// allocates the indirect block and/or the target data block if either is
// still a hole. The caller is responsible for persisting in afterward.
func (fsys *FileSystem) ensureBlockForOffset(in *Inode, index int) (uint64, errs.Err_t) {
	if index < NDirect {
		if in.Direct[index] == 0 {
			b, e := fsys.allocBlock()
			if e.IsErr() {
				return 0, e
			}
			in.Direct[index] = uint64(b)
		}
		return in.Direct[index], errs.OK
	}
	idx2 := index - NDirect
	if idx2 >= blkcache.BlockSize/8 {
		return 0, errs.Overflow
	}
	if in.Indirect == 0 {
		b, e := fsys.allocBlock()
		if e.IsErr() {
			return 0, e
		}
		in.Indirect = uint64(b)
	}
	buf, e := fsys.cache.Read(fsys.disk, int(in.Indirect))
	if e.IsErr() {
		return 0, e
	}
	existing := binary.LittleEndian.Uint64(buf[idx2*8 : idx2*8+8])
	if existing != 0 {
		return existing, errs.OK
	}
	b, e := fsys.allocBlock()
	if e.IsErr() {
		return 0, e
	}
	binary.LittleEndian.PutUint64(buf[idx2*8:idx2*8+8], uint64(b))
	if e := fsys.cache.Write(fsys.disk, int(in.Indirect), buf); e.IsErr() {
		return 0, e
	}
	return uint64(b), errs.OK
}

// freeFile releases every data block, the indirect block if any, and
// finally the inode itself.
func (fsys *FileSystem) freeFile(num int) errs.Err_t {
	in, e := fsys.readInode(num)
	if e.IsErr() {
		return e
	}
	for _, b := range in.Direct {
		if b != 0 {
			if e := fsys.freeBlock(int(b)); e.IsErr() {
				return e
			}
		}
	}
	if in.Indirect != 0 {
		buf, e := fsys.cache.Read(fsys.disk, int(in.Indirect))
		if e.IsErr() {
			return e
		}
		for i := 0; i < blkcache.BlockSize/8; i++ {
			b := binary.LittleEndian.Uint64(buf[i*8 : i*8+8])
			if b != 0 {
				if e := fsys.freeBlock(int(b)); e.IsErr() {
					return e
				}
			}
		}
		if e := fsys.freeBlock(int(in.Indirect)); e.IsErr() {
			return e
		}
	}
	return fsys.freeInode(num)
}

// Lookup resolves a '/'-separated path, relative to the root directory,
// to an inode number.
func (fsys *FileSystem) Lookup(path string) (int, errs.Err_t) {
	path = strings.Trim(path, "/")
	cur := RootInode
	if path == "" {
		return cur, errs.OK
	}
	for _, part := range strings.Split(path, "/") {
		next, e := fsys.dirLookup(cur, part)
		if e.IsErr() {
			return 0, e
		}
		cur = next
	}
	return cur, errs.OK
}

// Create allocates a new, empty inode of the given kind and links it
// into parent under name.
func (fsys *FileSystem) Create(parent int, name string, kind Kind) (int, errs.Err_t) {
	num, e := fsys.allocInode()
	if e.IsErr() {
		return 0, e
	}
	if e := fsys.writeInode(num, Inode{Kind: kind}); e.IsErr() {
		return 0, e
	}
	if e := fsys.addDirEntry(parent, name, num); e.IsErr() {
		fsys.freeInode(num)
		return 0, e
	}
	return num, errs.OK
}

// Mkdir is Create specialized to KindDir.
func (fsys *FileSystem) Mkdir(parent int, name string) (int, errs.Err_t) {
	return fsys.Create(parent, name, KindDir)
}

// Unlink removes name from parent and frees the inode and blocks it
// named. It does not check whether a removed directory is empty; callers
// that need that guarantee check Readdir first.
func (fsys *FileSystem) Unlink(parent int, name string) errs.Err_t {
	num, e := fsys.dirLookup(parent, name)
	if e.IsErr() {
		return e
	}
	if e := fsys.removeDirEntry(parent, name); e.IsErr() {
		return e
	}
	return fsys.freeFile(num)
}

// Readdir returns every live entry of the directory inode num.
func (fsys *FileSystem) Readdir(num int) ([]DirectoryEntry, errs.Err_t) {
	return fsys.listDir(num)
}
