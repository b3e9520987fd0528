// Package e820 decodes the memory map that the real-mode stage collects via
// BIOS INT 15h/AX=E820h and hands over to the bootloader.
//
// The map is laid out as a 64-bit entry count followed by up to MaxEntries
// 24-byte entries.
package e820

import (
	"github.com/seal9055/vfuzz/kernel"
	"github.com/seal9055/vfuzz/kernel/mem"
	"github.com/seal9055/vfuzz/kernel/mm/phys"
)

const (
	// MaxEntries is the capacity of the map handed over by the real-mode
	// stage.
	MaxEntries = 32

	headerSize = 8
	entrySize  = 24
)

// EntryType defines the type of a memory map entry.
type EntryType uint32

const (
	// Available indicates that the memory region is available for use.
	Available EntryType = iota + 1

	// Reserved indicates that the memory region is not available for use.
	Reserved

	// ACPIReclaimable indicates a memory region that holds ACPI tables that
	// can be reused once they have been parsed.
	ACPIReclaimable

	// NVS indicates memory that must be preserved when hibernating.
	NVS

	// Unusable indicates memory that was found to be faulty.
	Unusable

	// Any value >= typeUnknown is reported as Reserved.
	typeUnknown
)

// String implements fmt.Stringer for EntryType.
func (t EntryType) String() string {
	switch t {
	case Available:
		return "available"
	case Reserved:
		return "reserved"
	case ACPIReclaimable:
		return "ACPI (reclaimable)"
	case NVS:
		return "NVS"
	case Unusable:
		return "unusable"
	default:
		return "unknown"
	}
}

// Entry describes a memory region.
type Entry struct {
	// The physical address for this memory region.
	Base uint64

	// The length of the memory region.
	Length uint64

	Type EntryType
}

// End returns the address one past the last byte of the region.
func (e Entry) End() uint64 {
	return e.Base + e.Length
}

// Visitor is invoked by Map.Visit for each memory region. The visitor must
// return true to continue or false to abort the scan.
type Visitor func(entry Entry) bool

var ErrTooManyEntries = &kernel.Error{Module: "e820", Message: "memory map holds more entries than supported"}

// Map provides access to a memory map located in physical memory.
type Map struct {
	mem   phys.Memory
	addr  uint64
	count int
}

// Open validates the memory map header at addr.
func Open(mem phys.Memory, addr uint64) (Map, *kernel.Error) {
	count := mem.Uint64(addr)
	if count > MaxEntries {
		return Map{}, ErrTooManyEntries
	}

	return Map{mem: mem, addr: addr, count: int(count)}, nil
}

// Len returns the number of entries in the map.
func (m Map) Len() int {
	return m.count
}

// Visit invokes visitor for each entry in map order. Entries with an unknown
// type are reported as Reserved.
func (m Map) Visit(visitor Visitor) {
	for i := 0; i < m.count; i++ {
		addr := m.addr + headerSize + uint64(i*entrySize)
		entry := Entry{
			Base:   m.mem.Uint64(addr),
			Length: m.mem.Uint64(addr + 8),
			Type:   EntryType(m.mem.Uint32(addr + 16)),
		}

		if entry.Type == 0 || entry.Type >= typeUnknown {
			entry.Type = Reserved
		}

		if !visitor(entry) {
			return
		}
	}
}

// Available returns the total size of the available regions.
func (m Map) Available() mem.Size {
	var total mem.Size
	m.Visit(func(entry Entry) bool {
		if entry.Type == Available {
			total += mem.Size(entry.Length)
		}
		return true
	})

	return total
}
