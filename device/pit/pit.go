// Package pit implements busy-wait delays on top of channel 2 of the 8254
// programmable interval timer.
package pit

import "github.com/seal9055/vfuzz/kernel/cpu"

const (
	// Frequency is the input clock of the PIT in Hz.
	Frequency = 1193182

	portChannel2 = 0x42
	portCommand  = 0x43

	// Port B of the keyboard controller gates channel 2 and exposes its
	// output.
	portControl = 0x61

	controlGate    = 1 << 0
	controlSpeaker = 1 << 1
	controlOutput  = 1 << 5

	// Channel 2, low byte then high byte, mode 0 (interrupt on terminal
	// count), binary.
	cmdChannel2OneShot = 0xb0

	maxCount = 0xffff
)

var (
	portReadByteFn  = cpu.PortReadByte
	portWriteByteFn = cpu.PortWriteByte
	pauseFn         = cpu.Pause
)

// Delay blocks for at least the given number of microseconds.
func Delay(us uint32) {
	ticks := (uint64(us)*Frequency + 999999) / 1000000
	for ticks > 0 {
		count := ticks
		if count > maxCount {
			count = maxCount
		}

		oneShot(uint16(count))
		ticks -= count
	}
}

// oneShot arms channel 2 with count and spins until its output goes high.
func oneShot(count uint16) {
	ctl := portReadByteFn(portControl)
	ctl = (ctl &^ (controlSpeaker | controlGate))
	portWriteByteFn(portControl, ctl)

	portWriteByteFn(portCommand, cmdChannel2OneShot)
	portWriteByteFn(portChannel2, uint8(count))
	portWriteByteFn(portChannel2, uint8(count>>8))

	// Counting starts on the rising edge of the gate.
	portWriteByteFn(portControl, ctl|controlGate)

	for portReadByteFn(portControl)&controlOutput == 0 {
		pauseFn()
	}
}
