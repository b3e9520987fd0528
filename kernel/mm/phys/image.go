package phys

import "encoding/binary"

// Image is a Memory backed by a byte slice that appears at physical address
// Base. Reads outside the image return 0 and writes outside it are dropped,
// mimicking unpopulated address space. Images are used by tests and by the
// host-side tools that inspect firmware dumps.
type Image struct {
	Base uint64
	Data []byte
}

// NewImage returns an Image of size bytes mapped at base.
func NewImage(base, size uint64) *Image {
	return &Image{Base: base, Data: make([]byte, size)}
}

// Contains returns true if the width bytes starting at addr are backed by
// the image.
func (img *Image) Contains(addr, width uint64) bool {
	if addr < img.Base {
		return false
	}

	off := addr - img.Base
	return off <= uint64(len(img.Data)) && width <= uint64(len(img.Data))-off
}

func (img *Image) slice(addr, width uint64) []byte {
	if !img.Contains(addr, width) {
		return nil
	}

	off := addr - img.Base
	return img.Data[off : off+width]
}

// Uint8 reads the byte at addr.
func (img *Image) Uint8(addr uint64) uint8 {
	if b := img.slice(addr, 1); b != nil {
		return b[0]
	}
	return 0
}

// Uint16 reads the 16-bit word at addr.
func (img *Image) Uint16(addr uint64) uint16 {
	if b := img.slice(addr, 2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

// Uint32 reads the 32-bit word at addr.
func (img *Image) Uint32(addr uint64) uint32 {
	if b := img.slice(addr, 4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

// Uint64 reads the 64-bit word at addr.
func (img *Image) Uint64(addr uint64) uint64 {
	if b := img.slice(addr, 8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

// PutUint8 stores v at addr.
func (img *Image) PutUint8(addr uint64, v uint8) {
	if b := img.slice(addr, 1); b != nil {
		b[0] = v
	}
}

// PutUint16 stores v at addr.
func (img *Image) PutUint16(addr uint64, v uint16) {
	if b := img.slice(addr, 2); b != nil {
		binary.LittleEndian.PutUint16(b, v)
	}
}

// PutUint32 stores v at addr.
func (img *Image) PutUint32(addr uint64, v uint32) {
	if b := img.slice(addr, 4); b != nil {
		binary.LittleEndian.PutUint32(b, v)
	}
}

// PutUint64 stores v at addr.
func (img *Image) PutUint64(addr uint64, v uint64) {
	if b := img.slice(addr, 8); b != nil {
		binary.LittleEndian.PutUint64(b, v)
	}
}
