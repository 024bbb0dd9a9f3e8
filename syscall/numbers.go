package syscall

// Number identifies one of the nine calls this kernel exposes,
// transported in rax by the syscall instruction.
type Number int

const (
	Exit           Number = 0
	LogValue       Number = 1
	SchedYield     Number = 2
	Exofork        Number = 3
	Map            Number = 4
	Unmap          Number = 5
	CopyMapping    Number = 6
	SetState       Number = 7
	SetTrapHandler Number = 8
)

// Args carries the up to six arguments a syscall takes, transported in
// rdi, rsi, rdx, r10, r8, r9 — the syscall instruction clobbers rcx and
// r11, so those two general-purpose argument registers are skipped in
// favor of r10 in the fourth position, same as the Linux x86-64 ABI this
// convention is modeled on.
type Args struct {
	A0, A1, A2, A3, A4, A5 uint64
}
