package syscall

import (
	"bytes"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"kernix/addr"
	"kernix/errs"
	"kernix/klog"
	"kernix/proc"
	"kernix/vmm"
)

// maxLogValueLen bounds a single log_value call so a user program cannot
// make the kernel copy an unbounded buffer out of its address space.
const maxLogValueLen = 4096

// readUserBytes copies n bytes starting at va out of as, validating that
// every byte lies within a present, user-accessible mapping. It crosses
// page boundaries transparently since the caller's buffer need not be
// page-aligned or fit in a single page.
func readUserBytes(as *vmm.AddressSpace, va addr.Va, n int) ([]byte, errs.Err_t) {
	if va+addr.Va(n) < va {
		return nil, errs.Overflow
	}
	if n == 0 {
		if va >= vmm.LowerHalfLimit {
			return nil, errs.PermissionDenied
		}
		return nil, errs.OK
	}

	buf := make([]byte, 0, n)
	cur := va
	remaining := n
	for remaining > 0 {
		pa, e := as.TranslateUser(cur.RoundDown())
		if e.IsErr() {
			return nil, errs.PermissionDenied
		}
		page := as.Allocator().Page(pa)
		off := int(cur.Offset())
		chunk := addr.PageSize - off
		if chunk > remaining {
			chunk = remaining
		}
		buf = append(buf, page[off:off+chunk]...)
		cur += addr.Va(chunk)
		remaining -= chunk
	}
	return buf, errs.OK
}

// validateUTF8 reports whether b is well-formed UTF-8. The x/text
// decoder does not fail on ill-formed input; it replaces each ill-formed
// sequence with U+FFFD, so b is valid exactly when decoding leaves it
// unchanged.
func validateUTF8(b []byte) bool {
	out, _, err := transform.Bytes(unicode.UTF8.NewDecoder(), b)
	return err == nil && bytes.Equal(out, b)
}

func (d *Dispatcher) logValue(current *proc.Process, args Args) (uint64, ResultCode) {
	level := args.A0
	ptr := addr.Va(args.A1)
	length := args.A2
	value := args.A3

	if length > maxLogValueLen {
		return 0, Overflow
	}

	b, e := readUserBytes(current.AS, ptr, int(length))
	if e.IsErr() {
		return 0, FromErr(e)
	}
	if !validateUTF8(b) {
		return 0, InvalidArgument
	}

	msg := bytes.TrimRight(b, "\x00")
	fields := klog.Fields{"pid": current.PID, "level": level, "value": value}
	switch level {
	case 0:
		klog.WithFields(fields).Debug(string(msg))
	case 1:
		klog.WithFields(fields).Info(string(msg))
	case 2:
		klog.WithFields(fields).Warn(string(msg))
	default:
		klog.WithFields(fields).Error(string(msg))
	}
	return 0, Ok
}
