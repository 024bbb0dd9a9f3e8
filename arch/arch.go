// Package arch isolates the handful of primitives that, on real x86-64
// hardware, can only be expressed in assembly or by touching a control
// register directly: toggling the interrupt flag, loading CR3, flushing a
// TLB entry, halting, and reading the timestamp counter. Every other
// package calls through these function variables instead of inlining
// assembly, so the rest of the module stays ordinary, testable Go and a
// test can substitute its own hardware model by reassigning them.
//
// The default implementations model a single logical CPU with one
// software interrupt flag; they are enough to exercise the locking,
// scheduling and paging logic without real hardware underneath, the same
// way the pack's CPU/VM emulators (rcornwell-S370, SchawnnDev-awesomeVM)
// model a machine's registers as plain Go state instead of syscalling
// into real silicon.
package arch

import "sync/atomic"

var interruptsEnabled atomic.Bool

func init() {
	interruptsEnabled.Store(true)
}

// InterruptsEnabled reports the current state of the interrupt flag.
func InterruptsEnabled() bool {
	return interruptsEnabled.Load()
}

// DisableInterrupts clears the interrupt flag (cli).
func DisableInterrupts() {
	interruptsEnabled.Store(false)
}

// EnableInterrupts sets the interrupt flag (sti).
func EnableInterrupts() {
	interruptsEnabled.Store(true)
}

// Halt parks the logical CPU until the next interrupt (hlt). The default
// implementation is a no-op; a test harness driving an idle scheduler
// loop can replace it to block on a channel instead of busy-looping.
var Halt = func() {}

// Pause yields to a sibling hardware thread inside a spin loop (pause).
var Pause = func() {}

// LoadCR3 switches the active top-level page table to the given
// physical address, modeling the CR3 write an address-space switch does.
var LoadCR3 = func(physRoot uintptr) {}

// InvalidatePage flushes a single virtual address from the TLB (invlpg).
var InvalidatePage = func(va uintptr) {}

// ReadTSC returns the current value of the timestamp counter (rdtsc).
// The default counts logical ticks so correlation-point arithmetic in
// the clock package has something monotonic to work with in tests.
var ReadTSC = func() uint64 {
	return tscTick.Add(1)
}

var tscTick atomic.Uint64

// SetGSBase loads the GS segment base with the address of the calling
// CPU's per-CPU struct (wrgsbase), the mechanism smp.Bringup uses to
// give each logical CPU access to its own state without a lock. The
// default is a no-op since this model gives each logical CPU its own
// goroutine rather than its own register file.
var SetGSBase = func(base uintptr) {}
