package syscall

import (
	"kernix/addr"
	"kernix/errs"
	"kernix/klog"
	"kernix/proc"
	"kernix/vmm"
)

// AllowedFlags masks which PTE bits a syscall may request directly; a
// user program can ask for USER|WRITE but never PRESENT or the
// software CoW bit, which only the kernel itself ever sets.
const AllowedFlags = vmm.User | vmm.Write

// Dispatcher routes a syscall number and its arguments to the operation
// it names, given the process that issued it.
type Dispatcher struct {
	Table     *proc.Table
	Scheduler *proc.Scheduler

	// NewAddressSpace is used only to give exofork's child an address space;
	// the caller supplies how a fresh AddressSpace is built (it needs a
	// frame allocator and the shared higher half installed).
	NewAddressSpace func() (*vmm.AddressSpace, errs.Err_t)
}

// Dispatch executes one syscall on behalf of current and returns the
// value to place in rax and the ResultCode to report.
func (d *Dispatcher) Dispatch(current *proc.Process, num Number, args Args) (uint64, ResultCode) {
	switch num {
	case Exit:
		return d.exit(current, args)
	case LogValue:
		return d.logValue(current, args)
	case SchedYield:
		return d.schedYield(current)
	case Exofork:
		return d.exofork(current)
	case Map:
		return d.mapCall(current, args)
	case Unmap:
		return d.unmapCall(current, args)
	case CopyMapping:
		return d.copyMapping(current, args)
	case SetTrapHandler:
		return d.setTrapHandler(current, args)
	case SetState:
		return d.setState(current, args)
	default:
		return 0, Unimplemented
	}
}

func (d *Dispatcher) resolve(current *proc.Process, pid proc.PID) (*proc.Process, ResultCode) {
	if pid.IsCurrent() {
		return current, Ok
	}
	p, ok := d.Table.Lookup(pid)
	if !ok {
		return nil, NoProcess
	}
	return p, Ok
}

func (d *Dispatcher) exit(current *proc.Process, args Args) (uint64, ResultCode) {
	current.AS.DropSubtree()
	d.Table.Remove(current.PID)
	klog.WithFields(klog.Fields{"pid": current.PID, "code": proc.ExitCode(args.A0)}).Info("process exited")
	return 0, Ok
}

func (d *Dispatcher) schedYield(current *proc.Process) (uint64, ResultCode) {
	current.State = proc.Runnable
	d.Scheduler.Enqueue(current.PID)
	return 0, Ok
}

func (d *Dispatcher) exofork(current *proc.Process) (uint64, ResultCode) {
	as, e := d.NewAddressSpace()
	if e.IsErr() {
		return 0, FromErr(e)
	}
	child := &proc.Process{AS: as, State: proc.Exofork}
	child.SetParent(current.PID)
	pid, e := d.Table.Insert(child)
	if e.IsErr() {
		return 0, FromErr(e)
	}
	return uint64(pid), Ok
}

// setState promotes a child to Runnable. Only the parent may promote its
// own child, and only to Runnable — every other request is rejected.
func (d *Dispatcher) setState(current *proc.Process, args Args) (uint64, ResultCode) {
	childPID := proc.PID(args.A0)
	newState := proc.State(args.A1)

	child, ok := d.Table.Lookup(childPID)
	if !ok {
		return 0, NoProcess
	}
	if !child.HasParent() || child.Parent != current.PID {
		return 0, PermissionDenied
	}
	if newState != proc.Runnable {
		return 0, InvalidArgument
	}
	child.State = proc.Runnable
	d.Scheduler.Enqueue(childPID)
	return 0, Ok
}

func (d *Dispatcher) setTrapHandler(current *proc.Process, args Args) (uint64, ResultCode) {
	current.TrapHandler = addr.Va(args.A0)
	return 0, Ok
}

func blockFromArgs(start, npages uint64) (addr.Block[addr.Va], errs.Err_t) {
	if npages == 0 || npages > 1<<20 {
		return addr.Block[addr.Va]{}, errs.InvalidArgument
	}
	return addr.NewBlock(addr.Va(start), int(npages))
}

func (d *Dispatcher) mapCall(current *proc.Process, args Args) (uint64, ResultCode) {
	target, rc := d.resolve(current, proc.PID(args.A0))
	if rc != Ok {
		return 0, rc
	}
	block, e := blockFromArgs(args.A1, args.A2)
	if e.IsErr() {
		return 0, FromErr(e)
	}
	flags := vmm.PTE(args.A3) & AllowedFlags

	if e := target.AS.Reserve(block, flags); e.IsErr() {
		return 0, FromErr(e)
	}
	return 0, Ok
}

func (d *Dispatcher) unmapCall(current *proc.Process, args Args) (uint64, ResultCode) {
	target, rc := d.resolve(current, proc.PID(args.A0))
	if rc != Ok {
		return 0, rc
	}
	block, e := blockFromArgs(args.A1, args.A2)
	if e.IsErr() {
		return 0, FromErr(e)
	}
	target.AS.Deallocate(block)
	return 0, Ok
}

func (d *Dispatcher) copyMapping(current *proc.Process, args Args) (uint64, ResultCode) {
	src, rc := d.resolve(current, proc.PID(args.A0))
	if rc != Ok {
		return 0, rc
	}
	dst, rc := d.resolve(current, proc.PID(args.A1))
	if rc != Ok {
		return 0, rc
	}
	srcBlock, e := blockFromArgs(args.A2, args.A3)
	if e.IsErr() {
		return 0, FromErr(e)
	}
	dstBlock, e := blockFromArgs(args.A4, args.A3)
	if e.IsErr() {
		return 0, FromErr(e)
	}
	// All-ones in A5 is the "no flags override" sentinel: a register has
	// no other way to say "no override" (0 would itself be a valid, if
	// useless, flag set), so copy_mapping's "keep each source PTE's own
	// flags" case is requested by passing ^uint64(0).
	var flagsArg *vmm.PTE
	if args.A5 != ^uint64(0) {
		f := vmm.PTE(args.A5) & AllowedFlags
		flagsArg = &f
	}
	e = vmm.CopyMapping(src.AS, dst.AS, srcBlock, dstBlock, flagsArg)
	return 0, FromErr(e)
}
