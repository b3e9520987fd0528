package cpu

var (
	cpuidFn = ID
)

// Feature flags reported by CPUID leaf 1.
const (
	// featureEDXAPIC is set in EDX when an on-chip local APIC is present.
	featureEDXAPIC = 1 << 9

	// featureECXX2APIC is set in ECX when the local APIC supports x2APIC mode.
	featureECXX2APIC = 1 << 21
)

// DisableInterrupts disables interrupt handling.
func DisableInterrupts()

// Halt disables interrupts and stops instruction execution. It never returns.
func Halt()

// Pause hints the processor that the caller is inside a spin-wait loop.
func Pause()

// ID returns information about the CPU and its features. It
// is implemented as a CPUID instruction with EAX=leaf (ECX=0) and
// returns the values in EAX, EBX, ECX and EDX.
func ID(leaf uint32) (uint32, uint32, uint32, uint32)

// ReadMSR returns the value of the model-specific register reg.
func ReadMSR(reg uint32) uint64

// WriteMSR stores val into the model-specific register reg.
func WriteMSR(reg uint32, val uint64)

// HasAPIC returns true if the processor provides an on-chip local APIC.
func HasAPIC() bool {
	_, _, _, edx := cpuidFn(1)
	return edx&featureEDXAPIC != 0
}

// HasX2APIC returns true if the local APIC can be switched to x2APIC mode.
func HasX2APIC() bool {
	_, _, ecx, _ := cpuidFn(1)
	return ecx&featureECXX2APIC != 0
}

// PortWriteByte writes a uint8 value to the requested port.
func PortWriteByte(port uint16, val uint8)

// PortReadByte reads a uint8 value from the requested port.
func PortReadByte(port uint16) uint8
