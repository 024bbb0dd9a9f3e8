package cow

import (
	"kernix/addr"
	"kernix/errs"
	"kernix/proc"
	"kernix/trap"
	"kernix/vmm"
)

// altStackSize is the single page a user trap handler runs on, so that
// a handler which itself faults corrupts only that page rather than
// whatever stack the original fault interrupted.
const altStackSize = addr.PageSize

// HandleFault is the in-kernel #PF entry point: try CoW resolution
// first, and if the fault isn't a CoW fault, hand it to p's registered
// user trap handler on its alternate stack. Returns PermissionDenied if
// neither applies (no handler registered), the signal that the process
// should be killed rather than resumed.
func HandleFault(p *proc.Process, code trap.PageFaultError, faultVA addr.Va) errs.Err_t {
	if code.Write() {
		if e := Resolve(p.AS, faultVA); e == errs.OK {
			return errs.OK
		}
	}

	if p.TrapHandler == 0 {
		return errs.PermissionDenied
	}
	return installTrampoline(p, faultVA, code)
}

// installTrampoline rewrites p's saved register file so that, on return
// to user mode, execution resumes inside the registered trap handler
// rather than at the faulting instruction. The fault address is passed
// as the handler's first argument (rdi) and the original rip/rsp are
// not preserved here — resuming the faulting instruction itself is the
// handler's responsibility (e.g. via a longjmp-style mechanism), which
// is outside this kernel's syscall surface.
func installTrampoline(p *proc.Process, faultVA addr.Va, code trap.PageFaultError) errs.Err_t {
	if p.AltStack == 0 {
		block, e := p.AS.Allocate(vmm.Layout{Size: altStackSize}, vmm.User|vmm.Write)
		if e.IsErr() {
			return e
		}
		p.AltStack = block.Start()
	}

	p.Regs.RSP = uint64(p.AltStack) + altStackSize
	p.Regs.RIP = uint64(p.TrapHandler)
	p.Regs.RDI = uint64(faultVA)
	p.Regs.RSI = uint64(code)
	return errs.OK
}
