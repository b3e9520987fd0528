// Package serial drives a 16550-compatible UART. It is used as the output
// sink of kfmt on machines without a usable display.
package serial

import "github.com/seal9055/vfuzz/kernel/cpu"

// COM1 is the I/O port base of the first serial port.
const COM1 = 0x3f8

// Register offsets from the port base.
const (
	regData        = 0 // divisor low byte while DLAB is set
	regIntEnable   = 1 // divisor high byte while DLAB is set
	regFIFOControl = 2
	regLineControl = 3
	regModemCtrl   = 4
	regLineStatus  = 5
)

const (
	lineControlDLAB = 0x80
	lineControl8N1  = 0x03

	// Enable and clear both FIFOs with a 14-byte threshold.
	fifoEnable = 0xc7

	// DTR, RTS and OUT2.
	modemReady = 0x0b

	lineStatusTxEmpty = 0x20

	// baseClock is the UART clock divided by 16.
	baseClock = 115200
)

var (
	portReadByteFn  = cpu.PortReadByte
	portWriteByteFn = cpu.PortWriteByte
)

// Port is an initialized serial port. It implements io.Writer and translates
// "\n" to "\r\n".
type Port struct {
	base uint16
}

// Open programs the UART at base for baud bits/s, 8 data bits, no parity and
// one stop bit with interrupts disabled. Rates above baseClock, including a
// zero baud, select baseClock; rates too slow for the 16-bit divisor select
// the slowest one.
func Open(base uint16, baud uint32) Port {
	divisor := uint16(1)
	if baud != 0 && baud <= baseClock {
		divisor = uint16(min(baseClock/baud, 0xffff))
	}

	portWriteByteFn(base+regIntEnable, 0)
	portWriteByteFn(base+regLineControl, lineControlDLAB)
	portWriteByteFn(base+regData, uint8(divisor))
	portWriteByteFn(base+regIntEnable, uint8(divisor>>8))
	portWriteByteFn(base+regLineControl, lineControl8N1)
	portWriteByteFn(base+regFIFOControl, fifoEnable)
	portWriteByteFn(base+regModemCtrl, modemReady)

	return Port{base: base}
}

// Write implements io.Writer. It never fails.
func (p Port) Write(data []byte) (int, error) {
	for _, b := range data {
		if b == '\n' {
			p.putByte('\r')
		}
		p.putByte(b)
	}

	return len(data), nil
}

func (p Port) putByte(b byte) {
	for portReadByteFn(p.base+regLineStatus)&lineStatusTxEmpty == 0 {
	}
	portWriteByteFn(p.base+regData, b)
}
