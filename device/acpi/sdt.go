package acpi

import (
	"github.com/seal9055/vfuzz/device/acpi/table"
	"github.com/seal9055/vfuzz/kernel"
	"github.com/seal9055/vfuzz/kernel/mm/phys"
)

var (
	rsdtSignature = [4]byte{'R', 'S', 'D', 'T'}
	xsdtSignature = [4]byte{'X', 'S', 'D', 'T'}

	// Upper bound for the length declared by a table header.
	maxSDTLength uint32 = 1 << 20
)

// readSDT reads the header of the table at addr and verifies that the whole
// table, as described by the header length, sums to zero. Lengths outside
// [SizeofSDT, maxSDTLength] fail the check without summing.
func readSDT(mem phys.Memory, addr uint64) (table.SDTHeader, *kernel.Error) {
	header := table.ReadSDTHeader(mem, addr)
	if header.Length < table.SizeofSDT || header.Length > maxSDTLength ||
		phys.Checksum(mem, addr, uint64(header.Length)) != 0 {
		return header, ErrSDTChecksum
	}

	return header, nil
}

// resolveRootTable validates the RSDT (ACPI 1.0) or XSDT (ACPI 2.0+) pointed
// to by the root pointer and records how to iterate its entries.
func (p *ParsedACPI) resolveRootTable(mem phys.Memory) *kernel.Error {
	var (
		addr      uint64
		signature [4]byte
		entrySize int
		errSig    *kernel.Error
		errSize   *kernel.Error
	)

	if rsdp, ok := p.Root.Extended(); ok {
		addr, signature, entrySize = rsdp.XSDTAddr, xsdtSignature, 8
		errSig, errSize = ErrInvalidXSDTSignature, ErrInvalidXSDTTableSize
	} else {
		rsdp, _ := p.Root.Legacy()
		addr, signature, entrySize = uint64(rsdp.RSDTAddr), rsdtSignature, 4
		errSig, errSize = ErrInvalidRSDTSignature, ErrInvalidRSDTTableSize
	}

	header, err := readSDT(mem, addr)
	if err != nil {
		return err
	}

	if header.Signature != signature {
		return errSig
	}

	payload := int(header.Length) - table.SizeofSDT
	if payload%entrySize != 0 {
		return errSize
	}

	p.Rsdt = RsdtConfig{
		EntrySize:  entrySize,
		StartAddr:  addr + table.SizeofSDT,
		NumEntries: payload / entrySize,
	}
	return nil
}
