package tablegen

import (
	"github.com/seal9055/vfuzz/device/acpi/table"
	"github.com/seal9055/vfuzz/kernel/mem"
	"github.com/seal9055/vfuzz/kernel/mm/phys"
)

// Well-known physical addresses of the BIOS data areas.
const (
	// EBDAPointerAddr holds the real-mode segment of the EBDA.
	EBDAPointerAddr = 0x40e

	// DefaultEBDA is where most BIOSes place the EBDA.
	DefaultEBDA = 0x9fc00

	// DefaultRSDPAddr is used when the root pointer lives in the BIOS
	// read-only area.
	DefaultRSDPAddr = 0xf52e0

	// TableBase is where the generated tables are laid out.
	TableBase = 0x100000
)

// Platform describes the firmware tables of a synthetic machine.
type Platform struct {
	// Revision is written into the root pointer. Revision 2 selects an
	// ExtRSDP and an XSDT; any other value selects an RSDP and an RSDT.
	Revision uint8

	// EBDA is the physical address of the extended BIOS data area. Zero
	// leaves the EBDA pointer blank.
	EBDA uint64

	// RSDPInEBDA places the root pointer 16 bytes into the EBDA instead of
	// at DefaultRSDPAddr.
	RSDPInEBDA bool

	// Tables are referenced, in order, by the RSDT/XSDT.
	Tables [][]byte
}

// Layout reports where the pieces of a built Platform ended up.
type Layout struct {
	RSDPAddr   uint64
	RootAddr   uint64
	TableAddrs []uint64
}

// Build lays out the platform into a phys.Image that covers the first
// megabyte of physical memory plus the generated tables.
func (p *Platform) Build() (*phys.Image, Layout) {
	var (
		layout  Layout
		next    = uint64(TableBase)
		entries []uint64
	)

	for _, t := range p.Tables {
		layout.TableAddrs = append(layout.TableAddrs, next)
		entries = append(entries, next)
		next = align16(next + uint64(len(t)))
	}

	var root []byte
	if p.Revision == 2 {
		root = XSDT(entries...)
	} else {
		entries32 := make([]uint32, len(entries))
		for i, addr := range entries {
			entries32[i] = uint32(addr)
		}
		root = RSDT(entries32...)
	}
	layout.RootAddr = next
	next = align16(next + uint64(len(root)))

	img := phys.NewImage(0, mem.Size(next).Pages()<<mem.PageShift)

	for i, t := range p.Tables {
		phys.WriteBytes(img, layout.TableAddrs[i], t)
	}
	phys.WriteBytes(img, layout.RootAddr, root)

	if p.EBDA != 0 {
		img.PutUint16(EBDAPointerAddr, uint16(p.EBDA>>4))
	}

	layout.RSDPAddr = DefaultRSDPAddr
	if p.RSDPInEBDA {
		layout.RSDPAddr = p.EBDA + 16
	}

	var rsdp []byte
	if p.Revision == 2 {
		rsdp = ExtRSDP(0, layout.RootAddr)
	} else {
		rsdp = RSDP(uint32(layout.RootAddr))
	}

	// Patch in non-standard revisions so parsers can be tested against them.
	if rsdp[15] != p.Revision {
		rsdp[15] = p.Revision
		rsdp[8] = 0
		rsdp[8] = Checksum(rsdp[:table.SizeofRSDP])
	}
	phys.WriteBytes(img, layout.RSDPAddr, rsdp)

	return img, layout
}

func align16(addr uint64) uint64 {
	return (addr + 15) &^ 15
}
