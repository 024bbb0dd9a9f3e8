package fs

import (
	"kernix/blkcache"
	"kernix/errs"
)

func blocksFor(size uint64) int {
	return int((size + blkcache.BlockSize - 1) / blkcache.BlockSize)
}

func (fsys *FileSystem) dirLookup(parentNum int, name string) (int, errs.Err_t) {
	parent, e := fsys.readInode(parentNum)
	if e.IsErr() {
		return 0, e
	}
	if !parent.IsDir() {
		return 0, errs.NotDirectory
	}

	for idx := 0; idx < blocksFor(parent.Size); idx++ {
		blk, e := fsys.blockForOffset(&parent, idx)
		if e.IsErr() {
			return 0, e
		}
		if blk == 0 {
			continue
		}
		buf, e := fsys.cache.Read(fsys.disk, int(blk))
		if e.IsErr() {
			return 0, e
		}
		for slot := 0; slot < EntriesPerBlock; slot++ {
			off := slot * DirectoryEntrySize
			ent := decodeDirectoryEntry(buf[off : off+DirectoryEntrySize])
			if !ent.IsFree() && ent.Name() == name {
				return int(ent.Inode), errs.OK
			}
		}
	}
	return 0, errs.FileNotFound
}

func (fsys *FileSystem) addDirEntry(parentNum int, name string, childNum int) errs.Err_t {
	parent, e := fsys.readInode(parentNum)
	if e.IsErr() {
		return e
	}
	if !parent.IsDir() {
		return errs.NotDirectory
	}
	if _, e := fsys.dirLookup(parentNum, name); e == errs.OK {
		return errs.FileExists
	}

	var entry DirectoryEntry
	entry.Inode = uint64(childNum)
	if e := entry.SetName(name); e.IsErr() {
		return e
	}

	nblocks := blocksFor(parent.Size)
	for idx := 0; idx < nblocks; idx++ {
		blk, e := fsys.blockForOffset(&parent, idx)
		if e.IsErr() {
			return e
		}
		if blk == 0 {
			continue
		}
		buf, e := fsys.cache.Read(fsys.disk, int(blk))
		if e.IsErr() {
			return e
		}
		for slot := 0; slot < EntriesPerBlock; slot++ {
			off := slot * DirectoryEntrySize
			existing := decodeDirectoryEntry(buf[off : off+DirectoryEntrySize])
			if existing.IsFree() {
				entry.encodeInto(buf[off : off+DirectoryEntrySize])
				return fsys.cache.Write(fsys.disk, int(blk), buf)
			}
		}
	}

	// No free slot in any existing block: grow the directory by one.
	blk, e := fsys.ensureBlockForOffset(&parent, nblocks)
	if e.IsErr() {
		return e
	}
	buf, e := fsys.cache.Read(fsys.disk, int(blk))
	if e.IsErr() {
		return e
	}
	entry.encodeInto(buf[0:DirectoryEntrySize])
	if e := fsys.cache.Write(fsys.disk, int(blk), buf); e.IsErr() {
		return e
	}
	parent.Size = uint64(nblocks+1) * blkcache.BlockSize
	return fsys.writeInode(parentNum, parent)
}

func (fsys *FileSystem) removeDirEntry(parentNum int, name string) errs.Err_t {
	parent, e := fsys.readInode(parentNum)
	if e.IsErr() {
		return e
	}
	if !parent.IsDir() {
		return errs.NotDirectory
	}

	for idx := 0; idx < blocksFor(parent.Size); idx++ {
		blk, e := fsys.blockForOffset(&parent, idx)
		if e.IsErr() {
			return e
		}
		if blk == 0 {
			continue
		}
		buf, e := fsys.cache.Read(fsys.disk, int(blk))
		if e.IsErr() {
			return e
		}
		for slot := 0; slot < EntriesPerBlock; slot++ {
			off := slot * DirectoryEntrySize
			ent := decodeDirectoryEntry(buf[off : off+DirectoryEntrySize])
			if !ent.IsFree() && ent.Name() == name {
				ent.SetFree()
				ent.encodeInto(buf[off : off+DirectoryEntrySize])
				return fsys.cache.Write(fsys.disk, int(blk), buf)
			}
		}
	}
	return errs.FileNotFound
}

func (fsys *FileSystem) listDir(num int) ([]DirectoryEntry, errs.Err_t) {
	in, e := fsys.readInode(num)
	if e.IsErr() {
		return nil, e
	}
	if !in.IsDir() {
		return nil, errs.NotDirectory
	}

	var out []DirectoryEntry
	for idx := 0; idx < blocksFor(in.Size); idx++ {
		blk, e := fsys.blockForOffset(&in, idx)
		if e.IsErr() {
			return nil, e
		}
		if blk == 0 {
			continue
		}
		buf, e := fsys.cache.Read(fsys.disk, int(blk))
		if e.IsErr() {
			return nil, e
		}
		for slot := 0; slot < EntriesPerBlock; slot++ {
			off := slot * DirectoryEntrySize
			ent := decodeDirectoryEntry(buf[off : off+DirectoryEntrySize])
			if !ent.IsFree() {
				out = append(out, ent)
			}
		}
	}
	return out, errs.OK
}
