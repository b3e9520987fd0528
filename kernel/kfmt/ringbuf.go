package kfmt

import "io"

// ringBufferSize is the capacity of the early output buffer. It must be a
// power of 2. 2K is enough to hold the memory map and ACPI summary that the
// bootloader prints before the serial port comes up.
const ringBufferSize = 2048

// ringBuffer is a fixed-size FIFO that overwrites its oldest contents when
// full. It captures Printf output until an output sink is attached.
type ringBuffer struct {
	buffer         [ringBufferSize]byte
	rIndex, wIndex int
}

// Write appends p to the buffer, discarding the oldest bytes if needed.
func (rb *ringBuffer) Write(p []byte) (int, error) {
	for _, b := range p {
		rb.buffer[rb.wIndex] = b
		rb.wIndex = (rb.wIndex + 1) & (ringBufferSize - 1)

		// Writer caught up with the reader; drop the oldest byte.
		if rb.wIndex == rb.rIndex {
			rb.rIndex = (rb.rIndex + 1) & (ringBufferSize - 1)
		}
	}

	return len(p), nil
}

// Read copies up to len(p) buffered bytes into p. Data that wraps around the
// end of the buffer is returned by subsequent calls. Read returns io.EOF once
// the buffer is empty.
func (rb *ringBuffer) Read(p []byte) (int, error) {
	if rb.rIndex == rb.wIndex {
		return 0, io.EOF
	}

	end := rb.wIndex
	if rb.rIndex > rb.wIndex {
		end = ringBufferSize
	}

	n := copy(p, rb.buffer[rb.rIndex:end])
	rb.rIndex = (rb.rIndex + n) & (ringBufferSize - 1)
	return n, nil
}
