package acpi

import (
	"github.com/seal9055/vfuzz/kernel"
	"github.com/seal9055/vfuzz/kernel/kfmt"
)

// APWaker is implemented by the local interrupt controller of the processor
// executing LaunchNextAP.
type APWaker interface {
	// ID returns the APIC ID of the executing processor.
	ID() uint32

	// IsBootstrap reports whether the executing processor is the BSP.
	IsBootstrap() bool

	// WakeAP sends the INIT-SIPI-SIPI sequence to the processor with the
	// given APIC ID.
	WakeAP(apicID uint32) *kernel.Error
}

// LaunchState describes the progress of application processor bring-up.
type LaunchState uint8

const (
	// LaunchIdle means no processor has been processed yet.
	LaunchIdle LaunchState = iota

	// LaunchAdvancing means some but not all processors have been processed.
	LaunchAdvancing

	// LaunchDone means every processor has been processed.
	LaunchDone
)

func (s LaunchState) String() string {
	switch s {
	case LaunchIdle:
		return "idle"
	case LaunchAdvancing:
		return "advancing"
	default:
		return "done"
	}
}

// LaunchNextAP processes the processor at the launch cursor and advances the
// cursor by one. The entry that matches the APIC ID of an executing BSP is
// skipped without sending any IPI. Once every processor has been processed
// the call does nothing. The cursor is left unchanged if waking fails.
//
// The BSP drives bring-up by calling LaunchNextAP until Remaining reports
// zero. Started processors never call back into it. A spinlock serializes
// cursor updates.
func (p *ParsedACPI) LaunchNextAP(w APWaker) *kernel.Error {
	p.launchLock.Acquire()
	defer p.launchLock.Release()

	if p.cursor >= p.Processors.Len() {
		return nil
	}

	target := p.Processors.At(p.cursor)
	if w.IsBootstrap() && target == w.ID() {
		kfmt.Printf("[smp] skipping BSP (APIC ID %d)\n", target)
		p.cursor++
		return nil
	}

	kfmt.Printf("[smp] waking AP with APIC ID %d\n", target)
	if err := w.WakeAP(target); err != nil {
		return err
	}

	p.cursor++
	return nil
}

// Cursor returns the index of the next processor to be processed.
func (p *ParsedACPI) Cursor() int {
	p.launchLock.Acquire()
	defer p.launchLock.Release()
	return p.cursor
}

// Remaining returns the number of processors not yet processed.
func (p *ParsedACPI) Remaining() int {
	p.launchLock.Acquire()
	defer p.launchLock.Release()
	return p.Processors.Len() - p.cursor
}

// LaunchState reports the bring-up progress.
func (p *ParsedACPI) LaunchState() LaunchState {
	p.launchLock.Acquire()
	defer p.launchLock.Release()

	switch {
	case p.cursor >= p.Processors.Len():
		return LaunchDone
	case p.cursor == 0:
		return LaunchIdle
	default:
		return LaunchAdvancing
	}
}
