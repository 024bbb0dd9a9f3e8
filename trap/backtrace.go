package trap

import "kernix/addr"

// ReadWord reads the 8-byte word at va, returning ok=false if the
// address is unreadable (unmapped, out of the kernel stack region). The
// backtrace walker is parameterized over this so it can run against
// either a live address space or, in tests, a plain in-memory stack.
type ReadWord func(va addr.Va) (uint64, bool)

// sentinelFrame is the pair of zero words every entry function pushes
// below a fresh RBP, terminating the frame-pointer chain so the
// backtrace walker has a definite stop condition instead of reading
// until it hits unmapped memory.
const sentinelFrame = 0

// Backtrace walks the RBP chain starting at rbp, returning the sequence
// of return addresses found. It stops when it reaches a sentinel frame
// (saved RBP and return address both zero) or a word it cannot read.
func Backtrace(read ReadWord, rbp addr.Va) []addr.Va {
	var frames []addr.Va
	cur := rbp
	for i := 0; i < 256; i++ { // bound the walk against a corrupt chain
		savedRBP, ok := read(cur)
		if !ok {
			break
		}
		retAddr, ok := read(cur + 8)
		if !ok {
			break
		}
		if savedRBP == sentinelFrame && retAddr == sentinelFrame {
			break
		}
		frames = append(frames, addr.Va(retAddr))
		if addr.Va(savedRBP) <= cur {
			break // chain must move outward; otherwise it's corrupt
		}
		cur = addr.Va(savedRBP)
	}
	return frames
}
