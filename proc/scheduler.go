package proc

import (
	"kernix/arch"
	"kernix/lock"
)

// EnterUserMode switches into p (loading its address space, GS base,
// and register file, then returning control to it) and reports whether
// control came back because of a pre-emption (true) rather than a
// syscall or exit (false). The real implementation lives outside this
// package (it needs the CPU's iretq/cr3-switch primitives); the
// scheduler only needs its return value.
type EnterUserMode func(p *Process) (preempted bool)

// Scheduler is the kernel's single global FIFO run queue.
//
// Grounded on the original's round-robin scheduler
// (original_source/kernel/src/process/scheduler.rs): run_one dequeues,
// tolerates a stale PID, and only re-enqueues on pre-emption; run calls
// run_one in a loop and halts when the queue was empty.
type Scheduler struct {
	mu    lock.Spinlock
	queue []PID

	table *Table
	enter EnterUserMode
}

// NewScheduler builds a scheduler over table, using enter to hand a
// runnable process control.
func NewScheduler(table *Table, enter EnterUserMode) *Scheduler {
	return &Scheduler{table: table, enter: enter}
}

// Enqueue appends pid to the back of the run queue.
func (s *Scheduler) Enqueue(pid PID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, pid)
}

func (s *Scheduler) dequeue() (PID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return 0, false
	}
	pid := s.queue[0]
	s.queue = s.queue[1:]
	return pid, true
}

// RunOne pops the next PID, looks it up (tolerating a stale PID whose
// process has already exited), switches into it if found, and
// re-enqueues it on pre-emption. Returns false only when the queue was
// empty, so Run knows when to halt.
func (s *Scheduler) RunOne() bool {
	pid, ok := s.dequeue()
	if !ok {
		return false
	}
	p, found := s.table.Lookup(pid)
	if !found {
		return true
	}
	p.State = Running
	if s.enter(p) {
		p.State = Runnable
		s.Enqueue(pid)
	}
	return true
}

// Run is the kernel's final loop: call RunOne, and halt the CPU until
// the next interrupt whenever the queue was empty. Fairness is strict
// FIFO; starvation is bounded by the slice length a timer tick enforces
// outside this package.
func (s *Scheduler) Run() {
	for {
		if !s.RunOne() {
			arch.Halt()
		}
	}
}

// Len reports the number of PIDs currently queued, for tests.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}
