// Package trap implements the IDT install point, per-vector trap
// statistics, page-fault error decoding, and the sentinel-frame
// backtrace walker (component E). TSS and IST stacks are not modeled:
// installing a handler selects no stack.
//
// Grounded on the teacher's kernel/chentry.go and defs/device.go for the
// one-IDT-before-user-mode shape and the mnemonic-table habit; the
// sentinel-frame backtrace has no single teacher file (biscuit runs its
// traps on the Go runtime's own stacks), so it follows the data model's
// description directly, built the way the teacher builds its other
// fixed-size lookup tables.
package trap

import "strconv"

// Vector identifies one of the 256 possible IDT entries.
type Vector int

// The x86-64 CPU exception vectors this kernel distinguishes in its
// mnemonic table; vectors above 31 are maskable/external interrupts and
// report only their number.
const (
	DivideError       Vector = 0
	Debug             Vector = 1
	NMI               Vector = 2
	Breakpoint        Vector = 3
	Overflow          Vector = 4
	BoundRange        Vector = 5
	InvalidOpcode     Vector = 6
	DeviceNotAvail    Vector = 7
	DoubleFault       Vector = 8
	InvalidTSS        Vector = 10
	SegmentNotPresent Vector = 11
	StackFault        Vector = 12
	GeneralProtection Vector = 13
	PageFault         Vector = 14
)

var mnemonics = map[Vector]string{
	DivideError:       "#DE",
	Debug:             "#DB",
	NMI:               "NMI",
	Breakpoint:        "#BP",
	Overflow:          "#OF",
	BoundRange:        "#BR",
	InvalidOpcode:     "#UD",
	DeviceNotAvail:    "#NM",
	DoubleFault:       "#DF",
	InvalidTSS:        "#TS",
	SegmentNotPresent: "#NP",
	StackFault:        "#SS",
	GeneralProtection: "#GP",
	PageFault:         "#PF",
}

// Mnemonic returns a 3-4 character name for v, or its raw decimal number
// for vectors with no entry in the mnemonic table.
func (v Vector) Mnemonic() string {
	if s, ok := mnemonics[v]; ok {
		return s
	}
	return strconv.Itoa(int(v))
}

// Handler processes a trap that has already had its full register file
// spilled to frame.
type Handler func(frame *Frame)

// Frame is the register file spilled to the kernel stack on trap entry,
// matching the data model's "full register file" requirement. It holds
// the generic fields every vector needs; per-vector extras (the
// page-fault error code, in particular) are decoded from ErrorCode by
// the caller.
type Frame struct {
	Vector    Vector
	ErrorCode uint64
	RIP, RSP  uint64
	RBP       uint64
	FromUser  bool
}

// IDT is the installed interrupt descriptor table: one handler per
// vector, absent entries left nil. Double-fault and page-fault handlers
// are installed like any other; the table records no IST stack for them.
type IDT struct {
	handlers [256]Handler
	stats    Stats
}

// NewIDT returns an empty table ready to have handlers installed before
// user mode starts.
func NewIDT() *IDT {
	return &IDT{}
}

// Install registers h as the handler for vector v, overwriting any
// previous handler.
func (t *IDT) Install(v Vector, h Handler) {
	t.handlers[v] = h
}

// Dispatch records the trap in the statistics table and invokes the
// installed handler, if any. A vector with no installed handler is
// itself recorded but otherwise ignored, mirroring spurious-interrupt
// handling on real hardware.
func (t *IDT) Dispatch(f *Frame) {
	t.stats.Record(f.Vector)
	if h := t.handlers[f.Vector]; h != nil {
		h(f)
	}
}

// Stats returns the per-vector occurrence counters accumulated so far.
func (t *IDT) Stats() *Stats { return &t.stats }
