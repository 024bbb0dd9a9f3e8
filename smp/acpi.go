package smp

import (
	"encoding/binary"

	"kernix/addr"
	"kernix/errs"
)

// madtEntryType is one Multiple APIC Description Table subentry's kind.
type madtEntryType uint8

const madtEntryLocalAPIC madtEntryType = 0

const madtHeaderLen = 44 // SDTHeader (36 bytes) + LapicAddr (4) + Flags (4)

// localAPICFlagEnabled marks a Processor Local APIC entry as usable;
// entries without it describe a socket that is physically present but
// disabled and must not be sent an INIT/SIPI.
const localAPICFlagEnabled = 1

// Topology is what parsing the MADT tells the kernel about the
// machine's CPUs and their local APIC: the LAPIC's MMIO address (mapped
// KERNEL_MMIO, uncached, by the caller) and which enabled CPU ids are
// APs waiting to be started.
type Topology struct {
	BSPLapicID uint32
	APLapicIDs []uint32
	LapicBase  addr.Pa
}

// ParseMADT walks a Multiple APIC Description Table's fixed header
// followed by a variable-length entry stream, picking out every enabled
// Processor Local APIC entry. bspLapicID is supplied by the caller
// (real firmware hands it back from reading the current core's own
// LAPIC ID register, not from the table itself) so this function can
// split the enabled entries into "the BSP" and "the APs" instead of
// guessing from table order.
//
// Grounded on the fixed-header-plus-entries shape of
// gopheros/device/acpi/table.SDTHeader, generalized to decode with
// encoding/binary rather than an unsafe struct overlay since a MADT
// arrives as a flat byte blob copied out of ACPI-reclaimable memory, not
// a page the kernel keeps mapped.
func ParseMADT(buf []byte, bspLapicID uint32) (Topology, errs.Err_t) {
	if len(buf) < madtHeaderLen {
		return Topology{}, errs.InvalidArgument
	}

	top := Topology{
		BSPLapicID: bspLapicID,
		LapicBase:  addr.Pa(binary.LittleEndian.Uint32(buf[36:40])),
	}

	pos := madtHeaderLen
	for pos+2 <= len(buf) {
		entryType := madtEntryType(buf[pos])
		entryLen := int(buf[pos+1])
		if entryLen < 2 || pos+entryLen > len(buf) {
			return Topology{}, errs.Fmt
		}

		if entryType == madtEntryLocalAPIC {
			if entryLen < 8 {
				return Topology{}, errs.Fmt
			}
			apicID := uint32(buf[pos+3])
			flags := binary.LittleEndian.Uint32(buf[pos+4 : pos+8])
			if flags&localAPICFlagEnabled != 0 && apicID != bspLapicID {
				top.APLapicIDs = append(top.APLapicIDs, apicID)
			}
		}

		pos += entryLen
	}
	return top, errs.OK
}
