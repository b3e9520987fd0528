package phys

import "unsafe"

// Direct accesses physical memory by dereferencing the address itself. It is
// only valid while physical memory is identity mapped, which is the case for
// the whole of the bootloader's lifetime.
type Direct struct{}

// Uint8 reads the byte at addr.
//
//go:nosplit
func (Direct) Uint8(addr uint64) uint8 {
	return *(*uint8)(unsafe.Pointer(uintptr(addr)))
}

// Uint16 reads the 16-bit word at addr.
//
//go:nosplit
func (Direct) Uint16(addr uint64) uint16 {
	return *(*uint16)(unsafe.Pointer(uintptr(addr)))
}

// Uint32 reads the 32-bit word at addr.
//
//go:nosplit
func (Direct) Uint32(addr uint64) uint32 {
	return *(*uint32)(unsafe.Pointer(uintptr(addr)))
}

// Uint64 reads the 64-bit word at addr.
//
//go:nosplit
func (Direct) Uint64(addr uint64) uint64 {
	return *(*uint64)(unsafe.Pointer(uintptr(addr)))
}

// PutUint8 stores v at addr.
//
//go:nosplit
func (Direct) PutUint8(addr uint64, v uint8) {
	*(*uint8)(unsafe.Pointer(uintptr(addr))) = v
}

// PutUint16 stores v at addr.
//
//go:nosplit
func (Direct) PutUint16(addr uint64, v uint16) {
	*(*uint16)(unsafe.Pointer(uintptr(addr))) = v
}

// PutUint32 stores v at addr.
//
//go:nosplit
func (Direct) PutUint32(addr uint64, v uint32) {
	*(*uint32)(unsafe.Pointer(uintptr(addr))) = v
}

// PutUint64 stores v at addr.
//
//go:nosplit
func (Direct) PutUint64(addr uint64, v uint64) {
	*(*uint64)(unsafe.Pointer(uintptr(addr))) = v
}
