package smp

import (
	"sync"
	"unsafe"

	"kernix/arch"
	"kernix/errs"
	"kernix/proc"
)

// StartAP is the seam a real boot path (or a test) plugs a bring-up
// sequence into. The real implementation saves the BIOS-reserved low
// memory frame, writes a trampoline there, sends INIT then SIPI to
// lapicID's local APIC, waits for the AP to leave the trampoline, and
// restores the saved frame. entry is the code the AP should run once it
// is up; the default invokes it immediately, modeling an AP that always
// starts successfully.
var StartAP = func(lapicID uint32, entry func()) { entry() }

const onlinePollAttempts = 10000

// CPUSet holds every logical CPU's PerCPU record, keyed by LAPIC id.
type CPUSet struct {
	mu  sync.Mutex
	cpu map[uint32]*PerCPU
	bsp uint32
}

func newCPUSet() *CPUSet {
	return &CPUSet{cpu: make(map[uint32]*PerCPU)}
}

// Get looks up the PerCPU record for a LAPIC id.
func (s *CPUSet) Get(lapicID uint32) (*PerCPU, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pc, ok := s.cpu[lapicID]
	return pc, ok
}

// BSP returns the bootstrap processor's record.
func (s *CPUSet) BSP() (*PerCPU, bool) { return s.Get(s.bsp) }

// Len reports how many logical CPUs (BSP included) are in the set.
func (s *CPUSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cpu)
}

func (s *CPUSet) add(pc *PerCPU) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cpu[pc.LapicID] = pc
}

// Bringup boots the BSP's own PerCPU record immediately, then starts
// each AP in top.APLapicIDs in turn: StartAP sends its INIT+SIPI and
// runs entry, which loads the shared kernel page tables, points GS at
// the AP's PerCPU struct, marks it online, and launches its own
// goroutine running sched.Run — the same run loop every CPU (BSP
// included) ultimately sits in, since APs do not run user work of their
// own in this system, only steal from the shared queue. Bringup blocks
// until each AP reports online (or onlinePollAttempts is exhausted)
// before moving to the next one, so a hung AP is reported against its
// own id rather than masked by a later one succeeding.
func Bringup(top Topology, sched *proc.Scheduler, kernelCR3 uintptr) (*CPUSet, errs.Err_t) {
	set := newCPUSet()
	set.bsp = top.BSPLapicID

	bsp := &PerCPU{ID: 0, LapicID: top.BSPLapicID, IsBSP: true, Scheduler: sched}
	bsp.markOnline()
	set.add(bsp)

	for i, id := range top.APLapicIDs {
		pc := &PerCPU{ID: i + 1, LapicID: id, Scheduler: sched}
		set.add(pc)

		entry := func() {
			arch.LoadCR3(kernelCR3)
			arch.SetGSBase(uintptr(unsafe.Pointer(pc)))
			pc.markOnline()
			go sched.Run()
		}
		StartAP(id, entry)

		if !waitOnline(pc) {
			return set, errs.Timeout
		}
	}
	return set, errs.OK
}

func waitOnline(pc *PerCPU) bool {
	for i := 0; i < onlinePollAttempts; i++ {
		if pc.Online() {
			return true
		}
		arch.Pause()
	}
	return pc.Online()
}
