// Package smp models multi-processor bring-up (component L): parsing
// ACPI's table of CPU ids and the local APIC's address, then starting
// each application processor and handing it into the same scheduler
// loop the bootstrap processor runs.
//
// A real x86-64 SIPI sequence (save the low-memory frame, write a
// trampoline, send INIT then SIPI, poll for the AP to come up, restore
// the frame) is not literal machinery Go can express — there is no
// second core for a goroutine to run on. Instead this package gives
// each logical CPU its own goroutine running proc.Scheduler.Run, the
// same one-kernel-thread-per-CPU model spec.md §5 describes, sharing
// the scheduler's single global run queue behind its spinlock exactly
// as the teacher's own single-core build does. StartAP is the seam
// where a real bring-up sequence (or a test's fake one) plugs in.
package smp

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"

	"kernix/proc"
)

// PerCPU is the state a logical CPU reaches through its GS base once
// booted. Padded with cpu.CacheLinePad on both sides so neighboring
// entries in a CPUSet never share a cache line — two CPUs bouncing the
// same line on every scheduler tick would serialize work no lock could
// explain.
type PerCPU struct {
	_ cpu.CacheLinePad

	ID      int
	LapicID uint32
	IsBSP   bool

	online atomic.Bool

	Scheduler *proc.Scheduler

	_ cpu.CacheLinePad
}

// Online reports whether this CPU has completed bring-up and is running
// its scheduler loop.
func (pc *PerCPU) Online() bool { return pc.online.Load() }

func (pc *PerCPU) markOnline() { pc.online.Store(true) }
