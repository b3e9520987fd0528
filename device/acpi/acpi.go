// Package acpi locates the ACPI tables provided by the firmware, validates
// them and extracts the processor topology needed to bring up the
// application processors.
package acpi

import (
	"io"

	"github.com/seal9055/vfuzz/device/acpi/table"
	"github.com/seal9055/vfuzz/kernel"
	"github.com/seal9055/vfuzz/kernel/kfmt"
	"github.com/seal9055/vfuzz/kernel/mm/phys"
	"github.com/seal9055/vfuzz/kernel/sync"
)

// Supported values of the RSDP revision field.
const (
	acpiRev1     uint8 = 0
	acpiRev2Plus uint8 = 2
)

// maxTables is the capacity of the table directory kept by ParsedACPI.
const maxTables = 32

var (
	ErrRSDPSignatureNotFound = &kernel.Error{Module: "acpi", Message: "could not locate ACPI RSDP"}
	ErrInvalidVersion        = &kernel.Error{Module: "acpi", Message: "unsupported RSDP revision"}
	ErrRSDPChecksum          = &kernel.Error{Module: "acpi", Message: "RSDP checksum mismatch"}
	ErrRSDPExtendedChecksum  = &kernel.Error{Module: "acpi", Message: "extended RSDP checksum mismatch"}
	ErrInvalidRSDTSignature  = &kernel.Error{Module: "acpi", Message: "invalid RSDT signature"}
	ErrInvalidRSDTTableSize  = &kernel.Error{Module: "acpi", Message: "RSDT payload is not a multiple of 4 bytes"}
	ErrInvalidXSDTSignature  = &kernel.Error{Module: "acpi", Message: "invalid XSDT signature"}
	ErrInvalidXSDTTableSize  = &kernel.Error{Module: "acpi", Message: "XSDT payload is not a multiple of 8 bytes"}
	ErrSDTChecksum           = &kernel.Error{Module: "acpi", Message: "detected checksum mismatch while parsing ACPI table"}

	madtSignature = [4]byte{'A', 'P', 'I', 'C'}
)

// RootPointer holds either an ACPI 1.0 RSDP or an ACPI 2.0+ extended RSDP.
// Which one is present is decided by the RSDP revision; the accessor for the
// other variant reports false.
type RootPointer struct {
	kind rootKind

	// The legacy descriptor is stored in the embedded part of desc.
	desc table.ExtRSDPDescriptor
}

type rootKind uint8

const (
	rootNone rootKind = iota
	rootLegacy
	rootExtended
)

// Legacy returns the ACPI 1.0 root pointer.
func (rp *RootPointer) Legacy() (table.RSDPDescriptor, bool) {
	if rp.kind != rootLegacy {
		return table.RSDPDescriptor{}, false
	}
	return rp.desc.RSDPDescriptor, true
}

// Extended returns the ACPI 2.0+ root pointer.
func (rp *RootPointer) Extended() (table.ExtRSDPDescriptor, bool) {
	if rp.kind != rootExtended {
		return table.ExtRSDPDescriptor{}, false
	}
	return rp.desc, true
}

func (rp *RootPointer) setLegacy(rsdp table.RSDPDescriptor) {
	rp.kind = rootLegacy
	rp.desc = table.ExtRSDPDescriptor{RSDPDescriptor: rsdp}
}

func (rp *RootPointer) setExtended(rsdp table.ExtRSDPDescriptor) {
	rp.kind = rootExtended
	rp.desc = rsdp
}

// RsdtConfig describes how to walk the entries of the RSDT or XSDT.
type RsdtConfig struct {
	// EntrySize is 4 for the RSDT and 8 for the XSDT.
	EntrySize int

	// StartAddr is the physical address of the first entry.
	StartAddr uint64

	NumEntries int
}

// TableInfo records a table referenced by the RSDT/XSDT.
type TableInfo struct {
	Signature  [4]byte
	Addr       uint64
	Length     uint32
	OEMID      [6]byte
	OEMTableID [8]byte
}

// ParsedACPI is a validated snapshot of the firmware tables. It also tracks
// the progress of application processor bring-up (see LaunchNextAP).
type ParsedACPI struct {
	// Version is the RSDP revision: 0 for ACPI 1.0, 2 for ACPI 2.0+.
	Version uint8

	Root RootPointer

	Rsdt RsdtConfig

	// Processors lists the APIC IDs of all usable processors, in MADT
	// order. The bootstrap processor is included.
	Processors ProcessorList

	// LocalAPICAddr and MADTFlags are copied from the MADT.
	LocalAPICAddr uint32
	MADTFlags     uint32

	tables    [maxTables]TableInfo
	numTables int

	// cursor indexes the next entry of Processors to bring up.
	cursor     int
	launchLock sync.Spinlock
}

// Parse allocates a ParsedACPI and populates it via (*ParsedACPI).Parse. The
// partially populated value is returned along with any error.
func Parse(mem phys.Memory, w io.Writer) (*ParsedACPI, *kernel.Error) {
	p := &ParsedACPI{}
	return p, p.Parse(mem, w)
}

// Parse locates the RSDP, resolves the RSDT/XSDT and walks the tables it
// references, decoding the MADT. Table information is logged to w. The first
// error encountered is returned; p may be partially populated in that case.
func (p *ParsedACPI) Parse(mem phys.Memory, w io.Writer) *kernel.Error {
	if err := p.locateRSDP(mem); err != nil {
		return err
	}

	if err := p.resolveRootTable(mem); err != nil {
		return err
	}

	for i := 0; i < p.Rsdt.NumEntries; i++ {
		entryAddr := p.Rsdt.StartAddr + uint64(i*p.Rsdt.EntrySize)

		var tableAddr uint64
		switch p.Rsdt.EntrySize {
		case 4:
			tableAddr = uint64(mem.Uint32(entryAddr))
		default:
			tableAddr = mem.Uint64(entryAddr)
		}

		header := table.ReadSDTHeader(mem, tableAddr)
		p.recordTable(tableAddr, &header)
		kfmt.Fprintf(w, "%s at 0x%16x %6x (%6s %8s)\n",
			header.Signature[:],
			tableAddr,
			header.Length,
			header.OEMID[:],
			header.OEMTableID[:],
		)

		if header.Signature != madtSignature {
			continue
		}

		start := tableAddr + table.SizeofSDT
		end := tableAddr + uint64(header.Length)
		if err := p.parseMADT(mem, start, end); err != nil {
			return err
		}
	}

	kfmt.Fprintf(w, "ACPI rev %d; %d usable processor(s)\n", p.Version, p.Processors.Len())
	return nil
}

// Tables returns the tables referenced by the RSDT/XSDT in the order they
// were encountered. At most maxTables entries are recorded.
func (p *ParsedACPI) Tables() []TableInfo {
	return p.tables[:p.numTables]
}

func (p *ParsedACPI) recordTable(addr uint64, header *table.SDTHeader) {
	if p.numTables == maxTables {
		return
	}

	p.tables[p.numTables] = TableInfo{
		Signature:  header.Signature,
		Addr:       addr,
		Length:     header.Length,
		OEMID:      header.OEMID,
		OEMTableID: header.OEMTableID,
	}
	p.numTables++
}
