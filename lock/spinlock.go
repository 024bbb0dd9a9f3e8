// Package lock implements two spinlock variants: a plain busy-wait
// spinlock with a self-deadlock detector, and an IRQ spinlock that
// additionally disables interrupts while held. Both turn into
// pass-through locks once the kernel is panicking so the crash path can
// still reach the log (the "knockdown" mode).
//
// Grounded on the teacher's habit of embedding sync.Mutex directly into
// data structures (mem.Physmem_t, vm.Vm_t); this package gives that
// pattern a name and adds the deadlock/knockdown semantics a bare
// sync.Mutex cannot express.
package lock

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"kernix/arch"
)

// panicking turns every spinlock in the address space into a pass-through
// lock. Set once, by the panic path, and never cleared.
var panicking atomic.Bool

// Knockdown puts every spinlock into pass-through mode. Called exactly
// once, from the kernel's panic handler, so that whatever code is trying
// to print the panic message does not itself deadlock on a lock some
// other CPU died holding.
func Knockdown() {
	panicking.Store(true)
}

// IsPanicking reports whether the kernel has entered knockdown mode.
func IsPanicking() bool {
	return panicking.Load()
}

// owner records where a spinlock was last acquired, for deadlock reports.
type owner struct {
	file string
	line int
	held atomic.Bool
}

// Spinlock is a busy-wait mutual-exclusion lock. Re-acquiring it from the
// same goroutine (modeling: the same CPU) without first releasing it is a
// programming error and panics with the file:line of both the original
// acquisition and the re-entrant attempt, unless the kernel is already
// panicking.
type Spinlock struct {
	state atomic.Bool
	own   owner
}

// Lock busy-waits until the lock is acquired.
func (l *Spinlock) Lock() {
	if panicking.Load() {
		return
	}
	_, file, line, _ := runtime.Caller(1)
	for !l.state.CompareAndSwap(false, true) {
		if l.own.held.Load() {
			panic(fmt.Sprintf("spinlock: self re-acquire at %s:%d, held since %s:%d",
				file, line, l.own.file, l.own.line))
		}
		runtime.Gosched()
	}
	l.own.file, l.own.line = file, line
	l.own.held.Store(true)
}

// TryLock attempts to acquire the lock without blocking.
func (l *Spinlock) TryLock() bool {
	if panicking.Load() {
		return true
	}
	if l.state.CompareAndSwap(false, true) {
		_, file, line, _ := runtime.Caller(1)
		l.own.file, l.own.line = file, line
		l.own.held.Store(true)
		return true
	}
	return false
}

// Unlock releases the lock.
func (l *Spinlock) Unlock() {
	if panicking.Load() {
		return
	}
	l.own.held.Store(false)
	l.state.Store(false)
}

// IRQSpinlock adds interrupt-disabling to Spinlock. A real kernel keys
// nesting depth off the current CPU via a GS-relative per-CPU struct;
// here the depth counter lives directly on the lock, since nested
// IRQSpinlock acquisitions on one logical CPU are always LIFO.
type IRQSpinlock struct {
	inner Spinlock
	depth atomic.Int32
	prior atomic.Bool // interrupt-flag state saved by the outermost lock
}

// Lock disables interrupts via the arch hook and acquires the inner
// spinlock. Nested acquisitions leave interrupts disabled.
func (l *IRQSpinlock) Lock() {
	wasEnabled := arch.InterruptsEnabled()
	arch.DisableInterrupts()
	l.inner.Lock()
	if l.depth.Add(1) == 1 {
		l.prior.Store(wasEnabled)
	}
}

// Unlock releases the inner spinlock and, on the outermost unlock,
// restores the interrupt-flag state observed by the first Lock call.
func (l *IRQSpinlock) Unlock() {
	if l.depth.Add(-1) == 0 && l.prior.Load() {
		arch.EnableInterrupts()
	}
	l.inner.Unlock()
}

// TryLock attempts to acquire without blocking; on success it has the
// same interrupt-disabling effect as Lock.
func (l *IRQSpinlock) TryLock() bool {
	wasEnabled := arch.InterruptsEnabled()
	arch.DisableInterrupts()
	if l.inner.TryLock() {
		if l.depth.Add(1) == 1 {
			l.prior.Store(wasEnabled)
		}
		return true
	}
	if wasEnabled {
		arch.EnableInterrupts()
	}
	return false
}
