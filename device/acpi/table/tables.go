// Package table describes the binary layout of the ACPI structures that the
// bootloader consumes and decodes them out of physical memory.
package table

import "github.com/seal9055/vfuzz/kernel/mm/phys"

// Sizes of the fixed-layout structures, in bytes.
const (
	SizeofRSDP    = 20
	SizeofExtRSDP = 36
	SizeofSDT     = 36

	// SizeofMADT is the size of the MADT fields that follow the SDT
	// header and precede the variable sized entries.
	SizeofMADT = 8

	SizeofMADTEntryLocalAPIC   = 8
	SizeofMADTEntryLocalX2APIC = 16
)

// RSDPDescriptor defines the root system descriptor pointer for ACPI 1.0. This
// is used as the entry-point for parsing ACPI data.
type RSDPDescriptor struct {
	// The signature must contain "RSD PTR " (last byte is a space).
	Signature [8]byte

	// A value that when added to the sum of all other bytes contained in
	// this descriptor should result in the value 0.
	Checksum uint8

	OEMID [6]byte

	// ACPI revision number. It is 0 for ACPI1.0 and 2 for versions 2.0 to 6.x.
	Revision uint8

	// Physical address of 32-bit root system descriptor table.
	RSDTAddr uint32
}

// ExtRSDPDescriptor extends RSDPDescriptor with additional fields. It is used
// when RSDPDescriptor.Revision is 2.
type ExtRSDPDescriptor struct {
	RSDPDescriptor

	// The size of the entire descriptor, including the RSDPDescriptor part.
	Length uint32

	// Physical address of 64-bit extended system descriptor table.
	XSDTAddr uint64

	// A value that when added to the sum of all extended bytes contained
	// in this descriptor should result in the value 0.
	ExtendedChecksum uint8

	Reserved [3]byte
}

// SDTHeader defines the common header for all ACPI-related tables.
type SDTHeader struct {
	// The signature defines the table type.
	Signature [4]byte

	// The length of the table, header included.
	Length uint32

	Revision uint8

	// A value that when added to the sum of all other bytes in the table
	// should result in the value 0.
	Checksum uint8

	// OEM specific information
	OEMID       [6]byte
	OEMTableID  [8]byte
	OEMRevision uint32

	// Information about the ASL compiler that generated this table
	CreatorID       uint32
	CreatorRevision uint32
}

// MADT (Multiple APIC Description Table) holds the fields that follow the SDT
// header of the table with signature "APIC". A series of variable sized
// records (see MADTEntry) comes after them.
type MADT struct {
	// Physical address at which each processor can access its local
	// interrupt controller.
	LocalControllerAddress uint32

	// Bit 0 is set when the platform also has dual 8259 PICs.
	Flags uint32
}

// MADTEntryType describes the type of a MADT record.
type MADTEntryType uint8

// MADT record types. Only the processor records are decoded; the rest are
// listed so they can be named in diagnostics.
const (
	MADTEntryTypeLocalAPIC MADTEntryType = iota
	MADTEntryTypeIOAPIC
	MADTEntryTypeIntSrcOverride
	MADTEntryTypeNMISource
	MADTEntryTypeLocalAPICNMI
	MADTEntryTypeLocalAPICAddrOverride
	MADTEntryTypeIOSAPIC
	MADTEntryTypeLocalSAPIC
	MADTEntryTypePlatformIntSrc
	MADTEntryTypeLocalX2APIC
)

// Processor flags shared by local APIC and local x2APIC records.
const (
	// ProcessorEnabled is set if the processor is ready for use.
	ProcessorEnabled uint32 = 1 << 0

	// ProcessorOnlineCapable is set if the processor is disabled but the
	// OS may enable it at runtime.
	ProcessorOnlineCapable uint32 = 1 << 1
)

// MADTEntry is the header shared by all MADT records.
type MADTEntry struct {
	Type MADTEntryType

	// Length of the record, header included.
	Length uint8
}

// MADTEntryLocalAPIC describes a single logical processor and its local
// interrupt controller.
type MADTEntryLocalAPIC struct {
	ProcessorID uint8
	APICID      uint8
	Flags       uint32
}

// MADTEntryLocalX2APIC is the x2APIC counterpart of MADTEntryLocalAPIC,
// used for processors whose APIC ID does not fit in 8 bits.
type MADTEntryLocalX2APIC struct {
	X2APICID uint32
	Flags    uint32

	// ACPI processor UID (matches the processor object in the namespace).
	ProcessorUID uint32
}

// Usable returns true when a processor with the supplied flags can be
// brought up.
func Usable(flags uint32) bool {
	return flags&(ProcessorEnabled|ProcessorOnlineCapable) != 0
}

// ReadRSDP decodes the ACPI 1.0 root pointer at addr.
func ReadRSDP(mem phys.Memory, addr uint64) RSDPDescriptor {
	var rsdp RSDPDescriptor

	phys.ReadBytes(mem, addr, rsdp.Signature[:])
	rsdp.Checksum = mem.Uint8(addr + 8)
	phys.ReadBytes(mem, addr+9, rsdp.OEMID[:])
	rsdp.Revision = mem.Uint8(addr + 15)
	rsdp.RSDTAddr = mem.Uint32(addr + 16)
	return rsdp
}

// ReadExtRSDP decodes the ACPI 2.0+ root pointer at addr.
func ReadExtRSDP(mem phys.Memory, addr uint64) ExtRSDPDescriptor {
	rsdp := ExtRSDPDescriptor{RSDPDescriptor: ReadRSDP(mem, addr)}

	rsdp.Length = mem.Uint32(addr + 20)
	rsdp.XSDTAddr = mem.Uint64(addr + 24)
	rsdp.ExtendedChecksum = mem.Uint8(addr + 32)
	phys.ReadBytes(mem, addr+33, rsdp.Reserved[:])
	return rsdp
}

// ReadSDTHeader decodes the table header at addr.
func ReadSDTHeader(mem phys.Memory, addr uint64) SDTHeader {
	var hdr SDTHeader

	phys.ReadBytes(mem, addr, hdr.Signature[:])
	hdr.Length = mem.Uint32(addr + 4)
	hdr.Revision = mem.Uint8(addr + 8)
	hdr.Checksum = mem.Uint8(addr + 9)
	phys.ReadBytes(mem, addr+10, hdr.OEMID[:])
	phys.ReadBytes(mem, addr+16, hdr.OEMTableID[:])
	hdr.OEMRevision = mem.Uint32(addr + 24)
	hdr.CreatorID = mem.Uint32(addr + 28)
	hdr.CreatorRevision = mem.Uint32(addr + 32)
	return hdr
}

// ReadMADT decodes the MADT fields located at addr (right after the header).
func ReadMADT(mem phys.Memory, addr uint64) MADT {
	return MADT{
		LocalControllerAddress: mem.Uint32(addr),
		Flags:                  mem.Uint32(addr + 4),
	}
}

// ReadMADTEntry decodes the record header at addr.
func ReadMADTEntry(mem phys.Memory, addr uint64) MADTEntry {
	return MADTEntry{
		Type:   MADTEntryType(mem.Uint8(addr)),
		Length: mem.Uint8(addr + 1),
	}
}

// ReadMADTEntryLocalAPIC decodes the body of the type 0 record at addr.
func ReadMADTEntryLocalAPIC(mem phys.Memory, addr uint64) MADTEntryLocalAPIC {
	return MADTEntryLocalAPIC{
		ProcessorID: mem.Uint8(addr + 2),
		APICID:      mem.Uint8(addr + 3),
		Flags:       mem.Uint32(addr + 4),
	}
}

// ReadMADTEntryLocalX2APIC decodes the body of the type 9 record at addr.
func ReadMADTEntryLocalX2APIC(mem phys.Memory, addr uint64) MADTEntryLocalX2APIC {
	return MADTEntryLocalX2APIC{
		X2APICID:     mem.Uint32(addr + 4),
		Flags:        mem.Uint32(addr + 8),
		ProcessorUID: mem.Uint32(addr + 12),
	}
}
