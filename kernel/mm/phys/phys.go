// Package phys provides the only path through which the bootloader touches
// physical memory. Callers receive copied values; nothing outside this package
// holds a pointer into firmware-owned memory.
package phys

// Memory provides single, uncached, little-endian accesses to physical
// addresses. Accesses are unchecked: reading an address that is not backed by
// RAM or a device returns whatever the platform returns.
type Memory interface {
	Uint8(addr uint64) uint8
	Uint16(addr uint64) uint16
	Uint32(addr uint64) uint32
	Uint64(addr uint64) uint64

	PutUint8(addr uint64, v uint8)
	PutUint16(addr uint64, v uint16)
	PutUint32(addr uint64, v uint32)
	PutUint64(addr uint64, v uint64)
}

// ReadBytes copies len(dst) bytes starting at addr into dst.
func ReadBytes(mem Memory, addr uint64, dst []byte) {
	for i := range dst {
		dst[i] = mem.Uint8(addr + uint64(i))
	}
}

// WriteBytes copies src into physical memory starting at addr.
func WriteBytes(mem Memory, addr uint64, src []byte) {
	for i, b := range src {
		mem.PutUint8(addr+uint64(i), b)
	}
}

// Checksum returns the 8-bit wrapping sum of length bytes starting at addr.
// ACPI structures are valid when their checksum is 0.
func Checksum(mem Memory, addr, length uint64) uint8 {
	var sum uint8
	for off := uint64(0); off < length; off++ {
		sum += mem.Uint8(addr + off)
	}

	return sum
}
