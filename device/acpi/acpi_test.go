package acpi

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/seal9055/vfuzz/device/acpi/table"
	"github.com/seal9055/vfuzz/device/acpi/table/tablegen"
	"github.com/seal9055/vfuzz/kernel"
	"github.com/seal9055/vfuzz/kernel/mm/phys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enabled(ids ...uint8) *tablegen.MADT {
	madt := tablegen.NewMADT()
	for i, id := range ids {
		madt.LocalAPIC(uint8(i), id, table.ProcessorEnabled)
	}
	return madt
}

func parsePlatform(t *testing.T, p tablegen.Platform) (*ParsedACPI, *kernel.Error) {
	t.Helper()
	img, _ := p.Build()
	return Parse(img, nil)
}

func TestParseLegacy(t *testing.T) {
	madt := tablegen.NewMADT().
		LocalAPIC(0, 0, table.ProcessorEnabled).
		LocalAPIC(1, 1, table.ProcessorEnabled).
		LocalAPIC(2, 2, 0).
		LocalAPIC(3, 3, table.ProcessorOnlineCapable)
	facp := tablegen.SDT("FACP", 1, make([]byte, 80))

	img, layout := (&tablegen.Platform{
		EBDA:   tablegen.DefaultEBDA,
		Tables: [][]byte{facp, madt.Bytes()},
	}).Build()

	var log bytes.Buffer
	p, err := Parse(img, &log)
	require.Nil(t, err)

	assert.Equal(t, acpiRev1, p.Version)
	rsdp, ok := p.Root.Legacy()
	require.True(t, ok)
	assert.Equal(t, uint32(layout.RootAddr), rsdp.RSDTAddr)
	_, ok = p.Root.Extended()
	assert.False(t, ok)

	assert.Equal(t, RsdtConfig{EntrySize: 4, StartAddr: layout.RootAddr + table.SizeofSDT, NumEntries: 2}, p.Rsdt)
	assert.Equal(t, []uint32{0, 1, 3}, p.Processors.IDs())
	assert.Equal(t, uint32(0xfee00000), p.LocalAPICAddr)
	assert.Equal(t, uint32(1), p.MADTFlags)

	tables := p.Tables()
	require.Len(t, tables, 2)
	assert.Equal(t, [4]byte{'F', 'A', 'C', 'P'}, tables[0].Signature)
	assert.Equal(t, layout.TableAddrs[0], tables[0].Addr)
	assert.Equal(t, madtSignature, tables[1].Signature)
	assert.Equal(t, layout.TableAddrs[1], tables[1].Addr)

	assert.Contains(t, log.String(), "FACP at 0x")
	assert.Contains(t, log.String(), "APIC at 0x")
	assert.Contains(t, log.String(), "3 usable processor(s)")
}

func TestParseExtended(t *testing.T) {
	madt := tablegen.NewMADT().
		LocalX2APIC(0, table.ProcessorEnabled, 0).
		LocalX2APIC(0x100, table.ProcessorEnabled, 1).
		LocalX2APIC(0x101, 0, 2)

	img, layout := (&tablegen.Platform{
		Revision:   2,
		EBDA:       tablegen.DefaultEBDA,
		RSDPInEBDA: true,
		Tables:     [][]byte{madt.Bytes()},
	}).Build()

	p, err := Parse(img, nil)
	require.Nil(t, err)

	assert.Equal(t, acpiRev2Plus, p.Version)
	rsdp, ok := p.Root.Extended()
	require.True(t, ok)
	assert.Equal(t, layout.RootAddr, rsdp.XSDTAddr)
	assert.Equal(t, uint32(table.SizeofExtRSDP), rsdp.Length)
	_, ok = p.Root.Legacy()
	assert.False(t, ok)

	assert.Equal(t, RsdtConfig{EntrySize: 8, StartAddr: layout.RootAddr + table.SizeofSDT, NumEntries: 1}, p.Rsdt)
	assert.Equal(t, []uint32{0, 0x100}, p.Processors.IDs())
}

func TestLocateRSDP(t *testing.T) {
	t.Run("in EBDA", func(t *testing.T) {
		img, layout := (&tablegen.Platform{EBDA: tablegen.DefaultEBDA, RSDPInEBDA: true}).Build()

		var p ParsedACPI
		require.Nil(t, p.locateRSDP(img))
		rsdp, _ := p.Root.Legacy()
		assert.Equal(t, uint32(layout.RootAddr), rsdp.RSDTAddr)
	})

	t.Run("EBDA preferred over BIOS area", func(t *testing.T) {
		img, layout := (&tablegen.Platform{EBDA: tablegen.DefaultEBDA, RSDPInEBDA: true}).Build()

		// A second, broken, RSDP in the BIOS area must not be looked at.
		decoy := tablegen.RSDP(0xdead)
		decoy[8]++
		phys.WriteBytes(img, tablegen.DefaultRSDPAddr, decoy)

		var p ParsedACPI
		require.Nil(t, p.locateRSDP(img))
		rsdp, _ := p.Root.Legacy()
		assert.Equal(t, uint32(layout.RootAddr), rsdp.RSDTAddr)
	})

	t.Run("without EBDA pointer", func(t *testing.T) {
		img, _ := (&tablegen.Platform{}).Build()

		var p ParsedACPI
		assert.Nil(t, p.locateRSDP(img))
	})

	t.Run("unaligned signature is ignored", func(t *testing.T) {
		img := phys.NewImage(0, 1<<20)
		phys.WriteBytes(img, tablegen.DefaultRSDPAddr+4, tablegen.RSDP(0x1000))

		var p ParsedACPI
		assert.Equal(t, ErrRSDPSignatureNotFound, p.locateRSDP(img))
	})

	t.Run("not found", func(t *testing.T) {
		var p ParsedACPI
		assert.Equal(t, ErrRSDPSignatureNotFound, p.locateRSDP(phys.NewImage(0, 1<<20)))
	})

	t.Run("search region overrides", func(t *testing.T) {
		defer func(low, hi uint64) {
			rsdpLocationLow, rsdpLocationHi = low, hi
		}(rsdpLocationLow, rsdpLocationHi)

		img, _ := (&tablegen.Platform{}).Build()
		rsdpLocationLow, rsdpLocationHi = 0xe0000, tablegen.DefaultRSDPAddr

		var p ParsedACPI
		assert.Equal(t, ErrRSDPSignatureNotFound, p.locateRSDP(img))
	})

	t.Run("unsupported revision", func(t *testing.T) {
		for _, rev := range []uint8{1, 3, 0xff} {
			_, err := parsePlatform(t, tablegen.Platform{Revision: rev})
			assert.Equal(t, ErrInvalidVersion, err, "revision %d", rev)
		}
	})
}

func TestRSDPChecksum(t *testing.T) {
	for _, rev := range []uint8{0, 2} {
		img, layout := (&tablegen.Platform{Revision: rev}).Build()
		var p ParsedACPI
		require.Nil(t, p.locateRSDP(img), "revision %d", rev)

		// Bytes 0-7 hold the signature; corrupting them hides the RSDP.
		for off := uint64(8); off < table.SizeofRSDP; off++ {
			addr := layout.RSDPAddr + off
			orig := img.Uint8(addr)
			img.PutUint8(addr, orig^0x01)

			var p ParsedACPI
			assert.Equal(t, ErrRSDPChecksum, p.locateRSDP(img), "revision %d, offset %d", rev, off)

			img.PutUint8(addr, orig)
		}
	}
}

func TestRSDPExtendedChecksum(t *testing.T) {
	img, layout := (&tablegen.Platform{Revision: 2}).Build()

	for off := uint64(table.SizeofRSDP); off < table.SizeofExtRSDP; off++ {
		addr := layout.RSDPAddr + off
		orig := img.Uint8(addr)
		img.PutUint8(addr, orig^0x80)

		var p ParsedACPI
		assert.Equal(t, ErrRSDPExtendedChecksum, p.locateRSDP(img), "offset %d", off)

		img.PutUint8(addr, orig)
	}

	// Declared lengths outside the descriptor bounds are rejected without
	// summing the memory they cover.
	for _, length := range []uint32{20, maxExtRSDPLength + 1, 0xffffffff} {
		img.PutUint32(layout.RSDPAddr+20, length)
		var p ParsedACPI
		assert.Equal(t, ErrRSDPExtendedChecksum, p.locateRSDP(img), "length %d", length)
	}
}

func TestReadSDT(t *testing.T) {
	const addr = 0x2000

	for length := table.SizeofSDT; length <= 100; length++ {
		img := phys.NewImage(0, 0x4000)
		sdt := tablegen.SDT("TEST", 1, bytes.Repeat([]byte{0xa5}, length-table.SizeofSDT))
		phys.WriteBytes(img, addr, sdt)

		header, err := readSDT(img, addr)
		require.Nil(t, err, "length %d", length)
		assert.Equal(t, uint32(length), header.Length)
		assert.Equal(t, [4]byte{'T', 'E', 'S', 'T'}, header.Signature)

		last := uint64(addr + length - 1)
		img.PutUint8(last, img.Uint8(last)+1)
		_, err = readSDT(img, addr)
		assert.Equal(t, ErrSDTChecksum, err, "length %d", length)
	}

	t.Run("length shorter than header", func(t *testing.T) {
		img := phys.NewImage(0, 0x4000)
		sdt := tablegen.SDT("TEST", 1, nil)
		sdt[4] = 0
		phys.WriteBytes(img, addr, tablegen.Refresh(sdt))

		_, err := readSDT(img, addr)
		assert.Equal(t, ErrSDTChecksum, err)
	})

	t.Run("length above limit", func(t *testing.T) {
		for _, length := range []uint32{maxSDTLength + 1, 0xffffffff} {
			img := phys.NewImage(0, 0x4000)
			sdt := tablegen.SDT("TEST", 1, nil)
			binary.LittleEndian.PutUint32(sdt[4:], length)
			phys.WriteBytes(img, addr, tablegen.Refresh(sdt))

			_, err := readSDT(img, addr)
			assert.Equal(t, ErrSDTChecksum, err, "length %d", length)
		}
	})
}

func TestResolveRootTable(t *testing.T) {
	specs := []struct {
		name     string
		revision uint8
		root     []byte
		expErr   *kernel.Error
		expCount int
	}{
		{"RSDT empty", 0, tablegen.RSDT(), nil, 0},
		{"RSDT three entries", 0, tablegen.RSDT(1, 2, 3), nil, 3},
		{"XSDT two entries", 2, tablegen.XSDT(1, 2), nil, 2},
		{"RSDT wrong signature", 0, tablegen.SDT("XSDT", 1, make([]byte, 8)), ErrInvalidRSDTSignature, 0},
		{"XSDT wrong signature", 2, tablegen.SDT("RSDT", 1, make([]byte, 8)), ErrInvalidXSDTSignature, 0},
		{"RSDT ragged payload", 0, tablegen.SDT("RSDT", 1, make([]byte, 6)), ErrInvalidRSDTTableSize, 0},
		{"XSDT ragged payload", 2, tablegen.SDT("XSDT", 1, make([]byte, 12)), ErrInvalidXSDTTableSize, 0},
		{"bad checksum", 0, func() []byte { b := tablegen.RSDT(1); b[9]++; return b }(), ErrSDTChecksum, 0},
	}

	for _, spec := range specs {
		t.Run(spec.name, func(t *testing.T) {
			img, layout := (&tablegen.Platform{Revision: spec.revision}).Build()
			phys.WriteBytes(img, layout.RootAddr, spec.root)

			var p ParsedACPI
			require.Nil(t, p.locateRSDP(img))

			err := p.resolveRootTable(img)
			assert.Equal(t, spec.expErr, err)
			if spec.expErr == nil {
				assert.Equal(t, spec.expCount, p.Rsdt.NumEntries)
				assert.Equal(t, layout.RootAddr+table.SizeofSDT, p.Rsdt.StartAddr)
			}
		})
	}
}

func TestParseMADT(t *testing.T) {
	t.Run("APIC ID range", func(t *testing.T) {
		for id := 3; id <= 0x100; id++ {
			madt := tablegen.NewMADT()
			if id > 0xff {
				madt.LocalX2APIC(uint32(id), table.ProcessorEnabled, 0)
			} else {
				madt.LocalAPIC(0, uint8(id), table.ProcessorEnabled)
			}

			p, err := parsePlatform(t, tablegen.Platform{Tables: [][]byte{madt.Bytes()}})
			require.Nil(t, err, "id %d", id)
			assert.Equal(t, []uint32{uint32(id)}, p.Processors.IDs())
		}
	})

	t.Run("mixed local APIC and x2APIC records", func(t *testing.T) {
		madt := tablegen.NewMADT().
			LocalAPIC(0, 3, table.ProcessorEnabled).
			LocalX2APIC(0x100, table.ProcessorOnlineCapable, 1)

		p, err := parsePlatform(t, tablegen.Platform{Revision: 2, Tables: [][]byte{madt.Bytes()}})
		require.Nil(t, err)
		assert.Equal(t, []uint32{3, 0x100}, p.Processors.IDs())
	})

	t.Run("capacity", func(t *testing.T) {
		ids := make([]uint8, MaxCores)
		for i := range ids {
			ids[i] = uint8(i)
		}

		p, err := parsePlatform(t, tablegen.Platform{Tables: [][]byte{enabled(ids...).Bytes()}})
		require.Nil(t, err)
		assert.Equal(t, MaxCores, p.Processors.Len())

		p, err = parsePlatform(t, tablegen.Platform{Tables: [][]byte{enabled(append(ids, MaxCores)...).Bytes()}})
		assert.Equal(t, ErrTooManyCores, err)
		assert.Equal(t, MaxCores, p.Processors.Len())
	})

	t.Run("unusable processors do not count towards capacity", func(t *testing.T) {
		madt := enabled(0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15)
		madt.LocalAPIC(16, 16, 0).LocalX2APIC(17, 0, 17)

		p, err := parsePlatform(t, tablegen.Platform{Tables: [][]byte{madt.Bytes()}})
		require.Nil(t, err)
		assert.Equal(t, MaxCores, p.Processors.Len())
	})

	t.Run("other record types are skipped", func(t *testing.T) {
		madt := tablegen.NewMADT().
			LocalAPIC(0, 4, table.ProcessorEnabled).
			IOAPIC(1, 0xfec00000, 0).
			Raw(0x7f, 6, []byte{1, 2, 3, 4}).
			LocalX2APIC(9, table.ProcessorEnabled, 1)

		p, err := parsePlatform(t, tablegen.Platform{Tables: [][]byte{madt.Bytes()}})
		require.Nil(t, err)
		assert.Equal(t, []uint32{4, 9}, p.Processors.IDs())
	})

	t.Run("truncated record", func(t *testing.T) {
		madt := tablegen.NewMADT().
			LocalAPIC(0, 1, table.ProcessorEnabled).
			Raw(table.MADTEntryTypeLocalAPIC, 8, []byte{1, 2})

		p, err := parsePlatform(t, tablegen.Platform{Tables: [][]byte{madt.Bytes()}})
		require.Nil(t, err)
		assert.Equal(t, []uint32{1}, p.Processors.IDs())
	})

	t.Run("zero length record stops the walk", func(t *testing.T) {
		madt := tablegen.NewMADT().
			LocalAPIC(0, 1, table.ProcessorEnabled).
			Raw(0x7f, 0, nil).
			LocalAPIC(1, 2, table.ProcessorEnabled)

		p, err := parsePlatform(t, tablegen.Platform{Tables: [][]byte{madt.Bytes()}})
		require.Nil(t, err)
		assert.Equal(t, []uint32{1}, p.Processors.IDs())
	})

	t.Run("invalid local APIC length", func(t *testing.T) {
		madt := tablegen.NewMADT().Raw(table.MADTEntryTypeLocalAPIC, 6, []byte{0, 1, 1, 0})

		_, err := parsePlatform(t, tablegen.Platform{Tables: [][]byte{madt.Bytes()}})
		assert.Equal(t, ErrInvalidAPICEntrySize, err)
	})

	t.Run("invalid local x2APIC length", func(t *testing.T) {
		madt := tablegen.NewMADT().Raw(table.MADTEntryTypeLocalX2APIC, 12, make([]byte, 10))

		_, err := parsePlatform(t, tablegen.Platform{Tables: [][]byte{madt.Bytes()}})
		assert.Equal(t, ErrInvalidX2APICEntrySize, err)
	})

	t.Run("child tables are not checksummed", func(t *testing.T) {
		madt := enabled(0, 1).Bytes()
		madt[9]++

		p, err := parsePlatform(t, tablegen.Platform{Tables: [][]byte{madt}})
		require.Nil(t, err)
		assert.Equal(t, 2, p.Processors.Len())
	})

	t.Run("no MADT", func(t *testing.T) {
		p, err := parsePlatform(t, tablegen.Platform{Tables: [][]byte{tablegen.SDT("HPET", 1, make([]byte, 20))}})
		require.Nil(t, err)
		assert.Zero(t, p.Processors.Len())
		assert.Equal(t, LaunchDone, p.LaunchState())
	})
}

func TestTableDirectoryCapacity(t *testing.T) {
	tables := make([][]byte, maxTables+4)
	for i := range tables {
		tables[i] = tablegen.SDT("SSDT", 1, nil)
	}

	p, err := parsePlatform(t, tablegen.Platform{Revision: 2, Tables: tables})
	require.Nil(t, err)
	assert.Equal(t, maxTables+4, p.Rsdt.NumEntries)
	assert.Len(t, p.Tables(), maxTables)
}
