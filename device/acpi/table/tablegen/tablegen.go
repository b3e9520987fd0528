// Package tablegen assembles ACPI firmware structures in memory. It is used
// to build the synthetic platforms that exercise the bootloader's ACPI parser
// in tests and by the fwimage tool.
package tablegen

import (
	"bytes"
	"encoding/binary"

	"github.com/seal9055/vfuzz/device/acpi/table"
)

var (
	// OEMID is stamped into every generated structure.
	OEMID = [6]byte{'V', 'F', 'U', 'Z', 'Z', ' '}

	// creatorID is "VFZG" in little-endian byte order.
	creatorID uint32 = 0x475a4656
)

// Checksum returns the value that, stored in a checksum byte that is
// currently zero, makes the 8-bit sum of b equal to zero.
func Checksum(b []byte) uint8 {
	var sum uint8
	for _, v := range b {
		sum += v
	}
	return -sum
}

// RSDP returns an ACPI 1.0 root pointer referencing the RSDT at rsdtAddr.
func RSDP(rsdtAddr uint32) []byte {
	b := make([]byte, table.SizeofRSDP)
	writeRSDP(b, 0, rsdtAddr)
	b[8] = Checksum(b[:table.SizeofRSDP])
	return b
}

// ExtRSDP returns an ACPI 2.0+ root pointer referencing the XSDT at xsdtAddr
// (and, for legacy consumers, the RSDT at rsdtAddr).
func ExtRSDP(rsdtAddr uint32, xsdtAddr uint64) []byte {
	b := make([]byte, table.SizeofExtRSDP)
	writeRSDP(b, 2, rsdtAddr)
	binary.LittleEndian.PutUint32(b[20:], table.SizeofExtRSDP)
	binary.LittleEndian.PutUint64(b[24:], xsdtAddr)

	b[8] = Checksum(b[:table.SizeofRSDP])
	b[32] = Checksum(b[table.SizeofRSDP:])
	return b
}

func writeRSDP(b []byte, revision uint8, rsdtAddr uint32) {
	copy(b[0:], "RSD PTR ")
	copy(b[9:], OEMID[:])
	b[15] = revision
	binary.LittleEndian.PutUint32(b[16:], rsdtAddr)
}

// SDT returns a table with the supplied signature whose header length and
// checksum cover payload.
func SDT(signature string, revision uint8, payload []byte) []byte {
	buf := &bytes.Buffer{}

	var sig [4]byte
	copy(sig[:], signature)
	buf.Write(sig[:])
	binary.Write(buf, binary.LittleEndian, uint32(table.SizeofSDT+len(payload)))
	buf.WriteByte(revision)
	buf.WriteByte(0) // checksum placeholder
	buf.Write(OEMID[:])

	var oemTableID [8]byte
	copy(oemTableID[:], "VFUZZ")
	copy(oemTableID[5:], signature)
	buf.Write(oemTableID[:])

	binary.Write(buf, binary.LittleEndian, uint32(1)) // OEM revision
	binary.Write(buf, binary.LittleEndian, creatorID)
	binary.Write(buf, binary.LittleEndian, uint32(1)) // creator revision
	buf.Write(payload)

	b := buf.Bytes()
	b[9] = Checksum(b)
	return b
}

// Refresh recomputes the checksum of the SDT in b after it has been edited.
func Refresh(b []byte) []byte {
	b[9] = 0
	b[9] = Checksum(b)
	return b
}

// RSDT returns a root table with 32-bit pointers to entries.
func RSDT(entries ...uint32) []byte {
	payload := make([]byte, 4*len(entries))
	for i, addr := range entries {
		binary.LittleEndian.PutUint32(payload[4*i:], addr)
	}
	return SDT("RSDT", 1, payload)
}

// XSDT returns an extended root table with 64-bit pointers to entries.
func XSDT(entries ...uint64) []byte {
	payload := make([]byte, 8*len(entries))
	for i, addr := range entries {
		binary.LittleEndian.PutUint64(payload[8*i:], addr)
	}
	return SDT("XSDT", 1, payload)
}

// MADT assembles a Multiple APIC Description Table one record at a time.
type MADT struct {
	LocalAPICAddr uint32
	Flags         uint32

	records bytes.Buffer
}

// NewMADT returns a MADT that advertises the local APIC at its architectural
// default address and the presence of legacy PICs.
func NewMADT() *MADT {
	return &MADT{LocalAPICAddr: 0xfee00000, Flags: 1}
}

// LocalAPIC appends a type 0 record.
func (m *MADT) LocalAPIC(processorID, apicID uint8, flags uint32) *MADT {
	m.records.Write([]byte{byte(table.MADTEntryTypeLocalAPIC), table.SizeofMADTEntryLocalAPIC, processorID, apicID})
	binary.Write(&m.records, binary.LittleEndian, flags)
	return m
}

// LocalX2APIC appends a type 9 record.
func (m *MADT) LocalX2APIC(apicID, flags, processorUID uint32) *MADT {
	m.records.Write([]byte{byte(table.MADTEntryTypeLocalX2APIC), table.SizeofMADTEntryLocalX2APIC, 0, 0})
	binary.Write(&m.records, binary.LittleEndian, apicID)
	binary.Write(&m.records, binary.LittleEndian, flags)
	binary.Write(&m.records, binary.LittleEndian, processorUID)
	return m
}

// IOAPIC appends a type 1 record.
func (m *MADT) IOAPIC(id uint8, addr, gsiBase uint32) *MADT {
	m.records.Write([]byte{byte(table.MADTEntryTypeIOAPIC), 12, id, 0})
	binary.Write(&m.records, binary.LittleEndian, addr)
	binary.Write(&m.records, binary.LittleEndian, gsiBase)
	return m
}

// Raw appends a record whose declared length may disagree with its body.
func (m *MADT) Raw(entryType table.MADTEntryType, length uint8, body []byte) *MADT {
	m.records.Write([]byte{byte(entryType), length})
	m.records.Write(body)
	return m
}

// Bytes returns the finished table.
func (m *MADT) Bytes() []byte {
	payload := make([]byte, table.SizeofMADT, table.SizeofMADT+m.records.Len())
	binary.LittleEndian.PutUint32(payload[0:], m.LocalAPICAddr)
	binary.LittleEndian.PutUint32(payload[4:], m.Flags)
	payload = append(payload, m.records.Bytes()...)
	return SDT("APIC", 4, payload)
}
