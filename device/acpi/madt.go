package acpi

import (
	"github.com/seal9055/vfuzz/device/acpi/table"
	"github.com/seal9055/vfuzz/kernel"
	"github.com/seal9055/vfuzz/kernel/mm/phys"
)

var (
	ErrInvalidAPICEntrySize   = &kernel.Error{Module: "acpi", Message: "local APIC MADT entry has an invalid length"}
	ErrInvalidX2APICEntrySize = &kernel.Error{Module: "acpi", Message: "local x2APIC MADT entry has an invalid length"}
)

// parseMADT walks the MADT records in [start, end) and appends every usable
// processor to p.Processors. start points just past the SDT header. Records
// of other types are skipped; a record that would extend past end stops the
// walk.
func (p *ParsedACPI) parseMADT(mem phys.Memory, start, end uint64) *kernel.Error {
	madt := table.ReadMADT(mem, start)
	p.LocalAPICAddr = madt.LocalControllerAddress
	p.MADTFlags = madt.Flags

	for cur := start + table.SizeofMADT; cur+2 <= end; {
		entry := table.ReadMADTEntry(mem, cur)
		if cur+uint64(entry.Length) > end {
			break
		}

		switch entry.Type {
		case table.MADTEntryTypeLocalAPIC:
			if entry.Length != table.SizeofMADTEntryLocalAPIC {
				return ErrInvalidAPICEntrySize
			}

			rec := table.ReadMADTEntryLocalAPIC(mem, cur)
			if table.Usable(rec.Flags) {
				if err := p.Processors.Append(uint32(rec.APICID)); err != nil {
					return err
				}
			}
		case table.MADTEntryTypeLocalX2APIC:
			if entry.Length != table.SizeofMADTEntryLocalX2APIC {
				return ErrInvalidX2APICEntrySize
			}

			rec := table.ReadMADTEntryLocalX2APIC(mem, cur)
			if table.Usable(rec.Flags) {
				if err := p.Processors.Append(rec.X2APICID); err != nil {
					return err
				}
			}
		default:
			// A record shorter than its own header cannot be skipped.
			if entry.Length < 2 {
				return nil
			}
		}

		cur += uint64(entry.Length)
	}

	return nil
}
