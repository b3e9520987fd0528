// Package apic enables the local APIC of the executing processor and drives
// the interprocessor interrupts used to start the application processors.
package apic

import (
	"io"

	"github.com/seal9055/vfuzz/kernel"
	"github.com/seal9055/vfuzz/kernel/cpu"
	"github.com/seal9055/vfuzz/kernel/kfmt"
)

const (
	// IA32_APIC_BASE model specific register.
	msrAPICBase = 0x1b

	// DefaultBase is the architectural physical address of the local APIC
	// register block.
	DefaultBase = 0xfee00000

	baseFlagBSP    = 1 << 8
	baseFlagX2APIC = 1 << 10
	baseFlagEnable = 1 << 11
	baseFlagsMask  = 0xfff

	// Data ports of the master and slave 8259 PICs.
	picMasterData = 0x21
	picSlaveData  = 0xa1
)

var (
	ErrNoAPICSupport = &kernel.Error{Module: "apic", Message: "processor does not support a local APIC"}

	// The following functions are mocked by tests.
	hasAPICFn       = cpu.HasAPIC
	hasX2APICFn     = cpu.HasX2APIC
	readMSRFn       = cpu.ReadMSR
	writeMSRFn      = cpu.WriteMSR
	portWriteByteFn = cpu.PortWriteByte
)

// Init enables the local APIC of the executing processor at DefaultBase.
// Both legacy PICs are masked first so that they cannot deliver interrupts
// once the APIC takes over. The APIC is switched to x2APIC mode when the
// processor supports it; otherwise it stays in xAPIC mode and the fallback
// is reported to w.
func Init(w io.Writer) *kernel.Error {
	if !hasAPICFn() {
		return ErrNoAPICSupport
	}

	x2apic := hasX2APICFn()
	if !x2apic {
		kfmt.Fprintf(w, "x2APIC not supported; using xAPIC mode\n")
	}

	portWriteByteFn(picSlaveData, 0xff)
	portWriteByteFn(picMasterData, 0xff)

	base := DefaultBase | (readMSRFn(msrAPICBase) & baseFlagsMask) | baseFlagEnable
	writeMSRFn(msrAPICBase, base)

	// x2APIC mode is entered from xAPIC mode.
	if x2apic {
		writeMSRFn(msrAPICBase, base|baseFlagX2APIC)
		kfmt.Fprintf(w, "x2APIC mode enabled\n")
	}

	kfmt.Fprintf(w, "local APIC enabled at 0x%x (BSP: %t)\n", Base(), IsBootstrap())
	return nil
}

// Base returns the physical address of the local APIC register block.
func Base() uint64 {
	return readMSRFn(msrAPICBase) &^ baseFlagsMask
}

// Offset returns the flag bits of the IA32_APIC_BASE register.
func Offset() uint64 {
	return readMSRFn(msrAPICBase) & baseFlagsMask
}

// X2APICMode returns true if the local APIC is enabled in x2APIC mode.
func X2APICMode() bool {
	return readMSRFn(msrAPICBase)&baseFlagX2APIC != 0
}

// IsBootstrap returns true if the executing processor is the bootstrap
// processor.
func IsBootstrap() bool {
	return readMSRFn(msrAPICBase)&baseFlagBSP != 0
}
