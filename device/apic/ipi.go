package apic

import (
	"github.com/seal9055/vfuzz/device/pit"
	"github.com/seal9055/vfuzz/kernel"
	"github.com/seal9055/vfuzz/kernel/cpu"
	"github.com/seal9055/vfuzz/kernel/mm/phys"
)

// Register offsets within the local APIC register block.
const (
	regID      = 0x20
	regICRLow  = 0x300
	regICRHigh = 0x310

	// windowSize is the extent of the register block.
	windowSize = 0x400

	// x2APIC mode replaces the register block with MSRs.
	msrX2APICID  = 0x802
	msrX2APICICR = 0x830
)

// Interrupt command register fields.
const (
	icrDeliveryInit    = 5 << 8
	icrDeliveryStartup = 6 << 8
	icrDeliveryPending = 1 << 12
	icrLevelAssert     = 1 << 14
	icrTriggerLevel    = 1 << 15

	icrDestShift   = 24
	icrX2DestShift = 32
)

// Delays of the INIT-SIPI-SIPI sequence in microseconds.
const (
	initDelayUs    = 10000
	startupDelayUs = 200
)

// MaxXAPICID is the largest APIC ID that can be targeted in xAPIC mode.
// x2APIC mode addresses the full 32-bit ID.
const MaxXAPICID = 0xff

var (
	ErrUnaddressableAPICID = &kernel.Error{Module: "apic", Message: "APIC ID cannot be addressed in xAPIC mode"}

	delayFn = pit.Delay
	pauseFn = cpu.Pause
)

// Controller drives the local APIC register block of the executing
// processor.
type Controller struct {
	regs phys.Memory
	base uint64

	// x2apic selects the MSR interface over the register block.
	x2apic bool

	// startupVector is the page number (physical address >> 12) at which
	// woken processors start executing in real mode.
	startupVector uint8
}

// NewController returns a Controller for the register block at Base(),
// accessed through mem. If Init switched the APIC to x2APIC mode the
// controller uses the x2APIC MSRs instead and mem is not accessed. Started
// processors begin executing at physical address startupVector<<12.
func NewController(mem phys.Memory, startupVector uint8) Controller {
	return Controller{
		regs:          mem,
		base:          Base(),
		x2apic:        X2APICMode(),
		startupVector: startupVector,
	}
}

func (c *Controller) read(reg uint64) uint32 {
	if reg >= windowSize {
		return 0
	}
	return c.regs.Uint32(c.base + reg)
}

func (c *Controller) write(reg uint64, val uint32) {
	if reg >= windowSize {
		return
	}
	c.regs.PutUint32(c.base+reg, val)
}

// ID returns the APIC ID of the executing processor.
func (c *Controller) ID() uint32 {
	if c.x2apic {
		return uint32(readMSRFn(msrX2APICID))
	}
	return c.read(regID) >> 24
}

// IsBootstrap returns true if the executing processor is the bootstrap
// processor.
func (c *Controller) IsBootstrap() bool {
	return IsBootstrap()
}

// SendInit asserts an INIT IPI at the processor with the given APIC ID.
func (c *Controller) SendInit(apicID uint32) *kernel.Error {
	return c.sendIPI(apicID, icrDeliveryInit|icrLevelAssert|icrTriggerLevel)
}

// SendInitDeassert de-asserts a previously sent INIT IPI.
func (c *Controller) SendInitDeassert(apicID uint32) *kernel.Error {
	return c.sendIPI(apicID, icrDeliveryInit|icrTriggerLevel)
}

// SendStartup sends a startup IPI carrying the controller's startup vector.
func (c *Controller) SendStartup(apicID uint32) *kernel.Error {
	return c.sendIPI(apicID, icrDeliveryStartup|uint32(c.startupVector))
}

// WakeAP runs the INIT-SIPI-SIPI sequence against the processor with the
// given APIC ID.
func (c *Controller) WakeAP(apicID uint32) *kernel.Error {
	if err := c.SendInit(apicID); err != nil {
		return err
	}
	if err := c.SendInitDeassert(apicID); err != nil {
		return err
	}
	delayFn(initDelayUs)

	for i := 0; i < 2; i++ {
		if err := c.SendStartup(apicID); err != nil {
			return err
		}
		delayFn(startupDelayUs)
	}

	return nil
}

// sendIPI issues cmd to the processor with the given APIC ID. In x2APIC mode
// destination and command go out in a single ICR MSR write. In xAPIC mode
// the destination is written to the high half of the ICR followed by the
// command to the low half, which triggers the IPI, and sendIPI then waits
// for the local APIC to accept it.
func (c *Controller) sendIPI(apicID, cmd uint32) *kernel.Error {
	if c.x2apic {
		writeMSRFn(msrX2APICICR, uint64(apicID)<<icrX2DestShift|uint64(cmd))
		return nil
	}

	if apicID > MaxXAPICID {
		return ErrUnaddressableAPICID
	}

	c.write(regICRHigh, apicID<<icrDestShift)
	c.write(regICRLow, cmd)

	for c.read(regICRLow)&icrDeliveryPending != 0 {
		pauseFn()
	}

	return nil
}
