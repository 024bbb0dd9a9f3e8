package proc

import (
	"kernix/errs"
	"kernix/lock"
)

// slot holds one process-table entry and the epoch counter that makes
// PIDs non-aliasing across slot reuse.
type slot struct {
	proc  *Process
	epoch uint32
}

// Table is the fixed-size process table: at most one process per slot,
// epoch incremented every time a slot is recycled so a PID captured
// before a process died can never resolve to its slot's next occupant.
type Table struct {
	mu    lock.Spinlock
	slots [MaxSlots]slot
}

// Insert places proc into the first free slot and returns its PID.
// Returns NoProcessSlot if the table is full.
func (t *Table) Insert(proc *Process) (PID, errs.Err_t) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.slots {
		if t.slots[i].proc == nil {
			pid := NewPID(t.slots[i].epoch, uint16(i))
			proc.PID = pid
			t.slots[i].proc = proc
			return pid, errs.OK
		}
	}
	return 0, errs.NoProcessSlot
}

// Lookup resolves pid to its process, tolerating a PID whose slot is
// empty or has since been recycled under a different epoch — the
// scheduler queue may hold PIDs for processes that have already exited.
func (t *Table) Lookup(pid PID) (*Process, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if pid.IsCurrent() || int(pid.Slot()) >= len(t.slots) {
		return nil, false
	}
	s := &t.slots[pid.Slot()]
	if s.proc == nil || s.epoch != pid.Epoch() {
		return nil, false
	}
	return s.proc, true
}

// Remove deletes the process at pid and bumps its slot's epoch so any
// PID still referring to it (e.g. sitting in the run queue) will fail
// Lookup from now on.
func (t *Table) Remove(pid PID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if int(pid.Slot()) >= len(t.slots) {
		return
	}
	s := &t.slots[pid.Slot()]
	if s.proc == nil || s.epoch != pid.Epoch() {
		return
	}
	s.proc = nil
	s.epoch++
}
