// Package proc implements the process abstraction, its register file,
// and the round-robin scheduler (component G).
//
// Grounded on the teacher's process table (biscuit's per-process
// Tnote/Proc bookkeeping) for the overall shape of "process struct +
// table + scheduler queue"; the PID encoding, RFlags bits, and ExitCode
// enum are taken from the original kernel's process module rather than
// re-derived, since the distilled spec names the requirement (a PID
// that survives slot reuse without aliasing) without pinning the exact
// bit layout.
package proc

import "fmt"

// MaxSlots bounds the process table: a PID's slot field is 16 bits.
const MaxSlots = 1 << 16

// PID identifies a process as either the sentinel Current (meaning "the
// process making this call") or an {epoch, slot} pair packed into one
// value so a stale PID from a reused slot can never alias a live one:
// the epoch increments every time a slot is reused.
type PID uint64

// Current is the sentinel PID meaning "whichever process is presently
// executing this syscall" — never a real process's encoded PID, since
// it does not correspond to any valid epoch:slot pairing a live process
// could hold.
const Current PID = ^PID(0) - 1

// NewPID packs an epoch and slot into a PID.
func NewPID(epoch uint32, slot uint16) PID {
	return PID(epoch)<<16 | PID(slot)
}

// Epoch returns the epoch component of a non-sentinel PID.
func (p PID) Epoch() uint32 { return uint32(p >> 16) }

// Slot returns the slot component of a non-sentinel PID.
func (p PID) Slot() uint16 { return uint16(p) }

// IsCurrent reports whether p is the Current sentinel.
func (p PID) IsCurrent() bool { return p == Current }

func (p PID) String() string {
	if p.IsCurrent() {
		return "pid:current"
	}
	return fmt.Sprintf("pid:%d.%d", p.Epoch(), p.Slot())
}
