package fs

import (
	"kernix/blkcache"
	"kernix/errs"
)

// ReadFile copies up to len(buf) bytes starting at offset out of the
// file inode num, returning the count actually copied (short only at
// end of file).
func (fsys *FileSystem) ReadFile(num int, offset int64, buf []byte) (int, errs.Err_t) {
	in, e := fsys.readInode(num)
	if e.IsErr() {
		return 0, e
	}
	if in.IsDir() {
		return 0, errs.NotFile
	}
	if offset < 0 {
		return 0, errs.InvalidArgument
	}
	if offset >= int64(in.Size) {
		return 0, errs.OK
	}

	toRead := int64(len(buf))
	if remaining := int64(in.Size) - offset; toRead > remaining {
		toRead = remaining
	}

	var total int64
	for total < toRead {
		pos := offset + total
		idx := int(pos / blkcache.BlockSize)
		within := int(pos % blkcache.BlockSize)

		blk, e := fsys.blockForOffset(&in, idx)
		if e.IsErr() {
			return int(total), e
		}

		n := blkcache.BlockSize - within
		if remain := toRead - total; int64(n) > remain {
			n = int(remain)
		}

		if blk == 0 {
			for i := 0; i < n; i++ {
				buf[int(total)+i] = 0
			}
		} else {
			page, e := fsys.cache.Read(fsys.disk, int(blk))
			if e.IsErr() {
				return int(total), e
			}
			copy(buf[total:], page[within:within+n])
		}
		total += int64(n)
	}
	return int(total), errs.OK
}

// WriteFile writes data at offset into the file inode num, allocating
// blocks (and growing Size) as needed. It rejects writes that would grow
// the file past MaxFileSize.
func (fsys *FileSystem) WriteFile(num int, offset int64, data []byte) (int, errs.Err_t) {
	in, e := fsys.readInode(num)
	if e.IsErr() {
		return 0, e
	}
	if in.IsDir() {
		return 0, errs.NotFile
	}
	if offset < 0 {
		return 0, errs.InvalidArgument
	}
	end := offset + int64(len(data))
	if end > MaxFileSize {
		return 0, errs.Overflow
	}

	var total int64
	for total < int64(len(data)) {
		pos := offset + total
		idx := int(pos / blkcache.BlockSize)
		within := int(pos % blkcache.BlockSize)

		blk, e := fsys.ensureBlockForOffset(&in, idx)
		if e.IsErr() {
			return int(total), e
		}
		page, e := fsys.cache.Read(fsys.disk, int(blk))
		if e.IsErr() {
			return int(total), e
		}

		n := blkcache.BlockSize - within
		if remain := int64(len(data)) - total; int64(n) > remain {
			n = int(remain)
		}
		copy(page[within:within+n], data[total:total+int64(n)])
		if e := fsys.cache.Write(fsys.disk, int(blk), page); e.IsErr() {
			return int(total), e
		}
		total += int64(n)
	}

	if end > int64(in.Size) {
		in.Size = uint64(end)
	}
	if e := fsys.writeInode(num, in); e.IsErr() {
		return int(total), e
	}
	return int(total), errs.OK
}

// Truncate sets the file's size to 0, freeing every block it held.
func (fsys *FileSystem) Truncate(num int) errs.Err_t {
	in, e := fsys.readInode(num)
	if e.IsErr() {
		return e
	}
	if in.IsDir() {
		return errs.NotFile
	}
	for i, b := range in.Direct {
		if b != 0 {
			if e := fsys.freeBlock(int(b)); e.IsErr() {
				return e
			}
			in.Direct[i] = 0
		}
	}
	if in.Indirect != 0 {
		buf, e := fsys.cache.Read(fsys.disk, int(in.Indirect))
		if e.IsErr() {
			return e
		}
		for i := 0; i < blkcache.BlockSize/8; i++ {
			off := i * 8
			b := uint64(buf[off]) | uint64(buf[off+1])<<8 | uint64(buf[off+2])<<16 | uint64(buf[off+3])<<24 |
				uint64(buf[off+4])<<32 | uint64(buf[off+5])<<40 | uint64(buf[off+6])<<48 | uint64(buf[off+7])<<56
			if b != 0 {
				if e := fsys.freeBlock(int(b)); e.IsErr() {
					return e
				}
			}
		}
		if e := fsys.freeBlock(int(in.Indirect)); e.IsErr() {
			return e
		}
		in.Indirect = 0
	}
	in.Size = 0
	return fsys.writeInode(num, in)
}
