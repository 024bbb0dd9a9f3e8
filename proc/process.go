package proc

import (
	"kernix/addr"
	"kernix/vmm"
)

// ExitCode is the value a user program passes to sys_exit.
type ExitCode int

const (
	ExitOk ExitCode = iota
	ExitPanic
	ExitUnimplementedSyscall
)

// State is a process's position in its lifecycle.
type State int

const (
	// Exofork is the state a process is created in: it has an address
	// space and a PID but has not yet been promoted to Runnable by its
	// parent.
	Exofork State = iota
	Runnable
	Running
)

// Process owns an address space, a saved register file, its lifecycle
// state, and the bookkeeping a parent/child relationship and a
// user-installed trap handler need.
type Process struct {
	PID    PID
	Parent PID // zero is also a valid PID (epoch 0, slot 0); use HasParent

	AS    *vmm.AddressSpace
	Regs  Registers
	State State

	// TrapHandler is the user virtual address registered via
	// set_trap_handler, or 0 if none was installed.
	TrapHandler addr.Va

	// AltStack is the one-page alternate user stack a non-CoW fault is
	// delivered on, allocated lazily the first time this process takes
	// such a fault so a handler that itself faults cannot corrupt the
	// stack the original fault interrupted.
	AltStack addr.Va

	hasParent bool
}

// HasParent reports whether this process was created by exofork (every
// process except the very first has one).
func (p *Process) HasParent() bool { return p.hasParent }

// SetParent records p's parent PID.
func (p *Process) SetParent(parent PID) {
	p.Parent = parent
	p.hasParent = true
}
