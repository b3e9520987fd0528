package acpi

import "github.com/seal9055/vfuzz/kernel"

// MaxCores is the number of processors that a ProcessorList can hold.
const MaxCores = 16

var ErrTooManyCores = &kernel.Error{Module: "acpi", Message: "platform reports more usable processors than supported"}

// ProcessorList is a fixed-capacity list of APIC IDs.
type ProcessorList struct {
	ids   [MaxCores]uint32
	count int
}

// Append adds id to the list. It returns ErrTooManyCores if the list is full.
func (l *ProcessorList) Append(id uint32) *kernel.Error {
	if l.count == MaxCores {
		return ErrTooManyCores
	}

	l.ids[l.count] = id
	l.count++
	return nil
}

// Len returns the number of recorded IDs.
func (l *ProcessorList) Len() int {
	return l.count
}

// At returns the i-th recorded ID.
func (l *ProcessorList) At(i int) uint32 {
	return l.ids[i]
}

// IDs returns the recorded IDs in insertion order.
func (l *ProcessorList) IDs() []uint32 {
	return l.ids[:l.count]
}
