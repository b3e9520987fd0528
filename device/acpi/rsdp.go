package acpi

import (
	"github.com/seal9055/vfuzz/device/acpi/table"
	"github.com/seal9055/vfuzz/kernel"
	"github.com/seal9055/vfuzz/kernel/mm/phys"
)

var (
	// The 16-bit real-mode segment of the EBDA is stored at this address.
	ebdaPtrAddr uint64 = 0x40e

	// The number of bytes at the start of the EBDA that may hold the RSDP.
	ebdaSearchLen uint64 = 1024

	// RSDP must be located in the physical memory region 0xe0000 to 0xfffff
	// when it is not found in the EBDA.
	rsdpLocationLow uint64 = 0xe0000
	rsdpLocationHi  uint64 = 0xfffff

	// The RSDP is always aligned to a 16-byte boundary.
	rsdpAlignment uint64 = 16

	// Upper bound for the length declared by an extended RSDP.
	maxExtRSDPLength uint32 = 4096

	rsdpSignature = [8]byte{'R', 'S', 'D', ' ', 'P', 'T', 'R', ' '}
)

// locateRSDP searches the first KiB of the EBDA and then the BIOS read-only
// area for the RSDP signature. The first match is validated and stored in p.
func (p *ParsedACPI) locateRSDP(mem phys.Memory) *kernel.Error {
	addr, found := scanRSDP(mem)
	if !found {
		return ErrRSDPSignatureNotFound
	}

	if phys.Checksum(mem, addr, table.SizeofRSDP) != 0 {
		return ErrRSDPChecksum
	}

	rsdp := table.ReadRSDP(mem, addr)
	switch rsdp.Revision {
	case acpiRev1:
		p.Root.setLegacy(rsdp)
	case acpiRev2Plus:
		// The extended checksum covers the whole descriptor; the first
		// 20 bytes already sum to zero so only the tail is summed.
		ext := table.ReadExtRSDP(mem, addr)
		if ext.Length < table.SizeofExtRSDP || ext.Length > maxExtRSDPLength ||
			phys.Checksum(mem, addr+table.SizeofRSDP, uint64(ext.Length)-table.SizeofRSDP) != 0 {
			return ErrRSDPExtendedChecksum
		}
		p.Root.setExtended(ext)
	default:
		return ErrInvalidVersion
	}

	p.Version = rsdp.Revision
	return nil
}

func scanRSDP(mem phys.Memory) (uint64, bool) {
	if ebda := ebdaBase(mem); ebda != 0 {
		if addr, found := scanRegion(mem, ebda, ebda+ebdaSearchLen); found {
			return addr, true
		}
	}

	return scanRegion(mem, rsdpLocationLow, rsdpLocationHi)
}

// ebdaBase converts the real-mode segment stored in the BIOS data area into a
// physical address aligned to rsdpAlignment.
func ebdaBase(mem phys.Memory) uint64 {
	seg := uint64(mem.Uint16(ebdaPtrAddr))
	return (seg << 4) &^ (rsdpAlignment - 1)
}

// scanRegion checks every aligned address in [start, end) for the RSDP
// signature.
func scanRegion(mem phys.Memory, start, end uint64) (uint64, bool) {
	for addr := start; addr+uint64(len(rsdpSignature)) <= end; addr += rsdpAlignment {
		if hasSignature(mem, addr) {
			return addr, true
		}
	}

	return 0, false
}

func hasSignature(mem phys.Memory, addr uint64) bool {
	for i, b := range rsdpSignature {
		if mem.Uint8(addr+uint64(i)) != b {
			return false
		}
	}

	return true
}
