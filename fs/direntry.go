package fs

import (
	"kernix/blkcache"
	"kernix/errs"
)

// MaxNameLen is the longest name a DirectoryEntry can hold: 128 bytes
// total minus the 8-byte inode field, taken from the original file
// system's directory_entry module rather than re-derived.
const MaxNameLen = 128 - 8

// DirectoryEntrySize is the fixed on-disk size of one DirectoryEntry:
// an 8-byte inode number followed by a null-padded name. BlockSize must
// divide evenly by it so a directory block can be read as an array of
// entries by arithmetic alone.
const DirectoryEntrySize = 8 + MaxNameLen

func init() {
	if blkcache.BlockSize%DirectoryEntrySize != 0 {
		panic("fs: block size does not divide evenly by DirectoryEntrySize")
	}
}

// EntriesPerBlock is how many DirectoryEntry slots fit in one directory
// block.
const EntriesPerBlock = blkcache.BlockSize / DirectoryEntrySize

// DirectoryEntry is one slot of a directory's data blocks: an inode
// number (0 meaning the slot is free) and the name of the file or
// subdirectory it names.
type DirectoryEntry struct {
	Inode uint64
	name  [MaxNameLen]byte
}

// IsFree reports whether this slot holds no entry.
func (d *DirectoryEntry) IsFree() bool { return d.Inode == 0 }

// SetFree clears this slot.
func (d *DirectoryEntry) SetFree() { d.Inode = 0 }

// Name decodes the entry's name, stopping at the first NUL byte (or the
// end of the field if the name fills it exactly).
func (d *DirectoryEntry) Name() string {
	n := len(d.name)
	for i, b := range d.name {
		if b == 0 {
			n = i
			break
		}
	}
	return string(d.name[:n])
}

// SetName validates and stores name, rejecting anything the original
// file system would: empty, too long, containing NUL, '/', or any
// non-ASCII byte.
func (d *DirectoryEntry) SetName(name string) errs.Err_t {
	if e := validateName(name); e.IsErr() {
		return e
	}
	var buf [MaxNameLen]byte
	copy(buf[:], name)
	d.name = buf
	return errs.OK
}

func validateName(name string) errs.Err_t {
	if len(name) == 0 || len(name) > MaxNameLen {
		return errs.InvalidArgument
	}
	for i := 0; i < len(name); i++ {
		b := name[i]
		if b == 0 || b == '/' || b >= 0x80 {
			return errs.InvalidArgument
		}
	}
	return errs.OK
}

func decodeDirectoryEntry(buf []byte) DirectoryEntry {
	var d DirectoryEntry
	d.Inode = uint64(buf[0]) | uint64(buf[1])<<8 | uint64(buf[2])<<16 | uint64(buf[3])<<24 |
		uint64(buf[4])<<32 | uint64(buf[5])<<40 | uint64(buf[6])<<48 | uint64(buf[7])<<56
	copy(d.name[:], buf[8:8+MaxNameLen])
	return d
}

func (d *DirectoryEntry) encodeInto(buf []byte) {
	v := d.Inode
	for i := 0; i < 8; i++ {
		buf[i] = byte(v)
		v >>= 8
	}
	copy(buf[8:8+MaxNameLen], d.name[:])
}
