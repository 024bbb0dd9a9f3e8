package vmm

import (
	"unsafe"

	"kernix/addr"
)

// PTE is a single page-table entry: present/user/writable/executable
// flags, the software COW bit used for copy-on-write, and a physical
// frame address packed into the high bits the way real x86-64 PTEs do.
type PTE uint64

// Hardware and software PTE bits (component C's data model).
const (
	Present PTE = 1 << 0
	Write   PTE = 1 << 1
	User    PTE = 1 << 2
	NoExec  PTE = 1 << 63

	// Huge marks a large-page leaf. This kernel only ever maps 4KiB
	// pages; the bit is defined for parity with the hardware layout but
	// the walker never sets or interprets it.
	Huge PTE = 1 << 7

	// COW is a software-defined bit (ignored by hardware, bit 9 of every
	// x86-64 PTE) marking a writable page that was shared copy-on-write
	// by fork: present, read-only, and owned by more than one address
	// space until the fault handler resolves it.
	COW PTE = 1 << 9
)

// addrMask isolates the physical-frame bits of a PTE (bits 12-51).
const addrMask PTE = 0x000ffffffffff000

// NewLeaf builds a present leaf PTE pointing at frame, with flags.
func NewLeaf(frame addr.Pa, flags PTE) PTE {
	return PTE(frame)&addrMask | flags | Present
}

// Frame extracts the physical frame address a PTE points at.
func (p PTE) Frame() addr.Pa { return addr.Pa(p & addrMask) }

func (p PTE) IsPresent() bool { return p&Present != 0 }
func (p PTE) IsWrite() bool   { return p&Write != 0 }
func (p PTE) IsUser() bool    { return p&User != 0 }
func (p PTE) IsCOW() bool     { return p&COW != 0 }

// WithFlags returns a copy of p with its flag bits replaced, keeping the
// frame address, always present.
func (p PTE) WithFlags(flags PTE) PTE {
	return pteBits(p.Frame()) | flags | Present
}

func pteBits(f addr.Pa) PTE { return PTE(f) & addrMask }

// table is the in-memory shape of a single page-table page: 512 64-bit
// entries. Reinterpreting a page's raw bytes as a table, rather than
// decoding it entry by entry, mirrors the teacher's own Pg2bytes /
// Bytepg2pg / pg2pmap casts (biscuit/src/mem/mem.go) between page
// representations.
type table [512]PTE

func tableAt(page *[addr.PageSize]byte) *table {
	return (*table)(unsafe.Pointer(page))
}

// Indices into the four paging levels for a virtual address.
func l4index(va addr.Va) int { return int((va >> 39) & 0x1ff) }
func l3index(va addr.Va) int { return int((va >> 30) & 0x1ff) }
func l2index(va addr.Va) int { return int((va >> 21) & 0x1ff) }
func l1index(va addr.Va) int { return int((va >> 12) & 0x1ff) }
