package fs

import (
	"encoding/binary"

	"kernix/blkcache"
	"kernix/errs"
)

// Kind distinguishes a regular file from a directory.
type Kind uint32

const (
	KindFile Kind = iota
	KindDir
)

// NDirect is the number of direct block pointers an inode carries
// before falling back to its single indirect block.
const NDirect = 10

// InodeSize is the fixed on-disk size of one inode: a power of two so
// inodes pack an integral count per block (kind u32 + pad + size u64 +
// NDirect+1 block pointers comes to 104 bytes; 128 is the next power of
// two, giving 32 inodes per 4096-byte block).
const InodeSize = 128

// InodesPerBlock is how many inodes fit in one inode-table block.
const InodesPerBlock = blkcache.BlockSize / InodeSize

// MaxFileSize is the largest file this layout can address: NDirect
// direct blocks plus one indirect block's worth of pointers.
const MaxFileSize = int64(NDirect+blkcache.BlockSize/8) * blkcache.BlockSize

// Inode is the fixed-size on-disk inode: kind, byte size, and the
// direct + single-indirect block lists spec.md §4.K and §6 require.
type Inode struct {
	Kind     Kind
	Size     uint64
	Direct   [NDirect]uint64
	Indirect uint64
}

// IsDir reports whether the inode is a directory.
func (in *Inode) IsDir() bool { return in.Kind == KindDir }

func decodeInode(buf []byte) Inode {
	var in Inode
	in.Kind = Kind(binary.LittleEndian.Uint32(buf[0:4]))
	in.Size = binary.LittleEndian.Uint64(buf[8:16])
	for i := 0; i < NDirect; i++ {
		off := 16 + i*8
		in.Direct[i] = binary.LittleEndian.Uint64(buf[off : off+8])
	}
	in.Indirect = binary.LittleEndian.Uint64(buf[16+NDirect*8 : 16+NDirect*8+8])
	return in
}

func (in *Inode) encodeInto(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(in.Kind))
	binary.LittleEndian.PutUint64(buf[8:16], in.Size)
	for i := 0; i < NDirect; i++ {
		off := 16 + i*8
		binary.LittleEndian.PutUint64(buf[off:off+8], in.Direct[i])
	}
	binary.LittleEndian.PutUint64(buf[16+NDirect*8:16+NDirect*8+8], in.Indirect)
}

// inodeLocation returns the inode-table block and the byte offset
// within it that inode number num lives at. Inode 0 is reserved to
// mean "free directory entry", so the first live inode is number 1.
func (fs *FileSystem) inodeLocation(num int) (block int, offset int) {
	idx := num - 1
	block = fs.sb.InodeTableStart + idx/InodesPerBlock
	offset = (idx % InodesPerBlock) * InodeSize
	return
}

func (fs *FileSystem) readInode(num int) (Inode, errs.Err_t) {
	block, offset := fs.inodeLocation(num)
	buf, e := fs.cache.Read(fs.disk, block)
	if e.IsErr() {
		return Inode{}, e
	}
	return decodeInode(buf[offset : offset+InodeSize]), errs.OK
}

func (fs *FileSystem) writeInode(num int, in Inode) errs.Err_t {
	block, offset := fs.inodeLocation(num)
	buf, e := fs.cache.Read(fs.disk, block)
	if e.IsErr() {
		return e
	}
	in.encodeInto(buf[offset : offset+InodeSize])
	return fs.cache.Write(fs.disk, block, buf)
}
