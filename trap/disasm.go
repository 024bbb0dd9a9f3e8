package trap

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

// DisassembleFault decodes the instruction at the faulting RIP from its
// raw bytes, for a trap report that names the offending instruction
// instead of dumping hex. Returns a best-effort string even on a decode
// error, since a report that can't disassemble the faulting instruction
// is still more useful with the raw bytes attached than without them.
func DisassembleFault(code []byte) string {
	inst, err := x86asm.Decode(code, 64)
	if err != nil {
		return fmt.Sprintf("<undecodable: % x>", code)
	}
	return x86asm.GNUSyntax(inst, 0, nil)
}
