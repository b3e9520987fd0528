// Package kmain implements the entry point of the stage 2 bootloader: it
// brings up the diagnostic console, reports the memory map, enables the local
// APIC, discovers the processors described by ACPI and starts them.
package kmain

import (
	"io"

	"github.com/seal9055/vfuzz/device/acpi"
	"github.com/seal9055/vfuzz/device/apic"
	"github.com/seal9055/vfuzz/device/serial"
	"github.com/seal9055/vfuzz/kernel"
	"github.com/seal9055/vfuzz/kernel/cpu"
	"github.com/seal9055/vfuzz/kernel/hal/e820"
	"github.com/seal9055/vfuzz/kernel/kfmt"
	"github.com/seal9055/vfuzz/kernel/mem"
	"github.com/seal9055/vfuzz/kernel/mm/phys"
)

// Config holds the boot tunables.
type Config struct {
	// StartupVector is the page number of the real-mode trampoline that
	// started application processors execute.
	StartupVector uint8

	// SerialPort and SerialBaud select the diagnostic console.
	SerialPort uint16
	SerialBaud uint32
}

// DefaultConfig places the AP trampoline at 0x8000 and logs to COM1.
var DefaultConfig = Config{
	StartupVector: 0x08,
	SerialPort:    serial.COM1,
	SerialBaud:    115200,
}

var (
	errKmainReturned = &kernel.Error{Module: "kmain", Message: "Kmain returned"}

	prefixE820 = []byte("[e820] ")
	prefixAPIC = []byte("[apic] ")
	prefixACPI = []byte("[acpi] ")

	// Global state; there is no allocator at this stage.
	com        serial.Port
	platform   acpi.ParsedACPI
	controller apic.Controller

	// The following are mocked by tests.
	disableInterruptsFn = cpu.DisableInterrupts
	consoleFn           = openConsole
	apicInitFn          = apic.Init
	newWakerFn          = newController
	panicFn             = kfmt.Panic
	haltFn              = cpu.Halt
)

// physMem provides access to identity-mapped physical memory.
var physMem phys.Memory = phys.Direct{}

// Kmain is invoked by the real-mode stage once the processor runs in long
// mode. memLayoutPtr is the physical address of the E820 memory map collected
// by the BIOS.
//
// Kmain is not expected to return. Any error raised during bring-up is fatal
// and halts the processor.
//
//go:noinline
func Kmain(memLayoutPtr uintptr) {
	if err := boot(DefaultConfig, uint64(memLayoutPtr)); err != nil {
		panicFn(err)
		return
	}

	haltFn()

	// Use panicFn instead of panic to prevent the compiler from treating
	// the call as dead code.
	panicFn(errKmainReturned)
}

// boot runs with interrupts disabled until the processor halts.
func boot(cfg Config, memLayoutAddr uint64) *kernel.Error {
	disableInterruptsFn()

	kfmt.SetOutputSink(consoleFn(cfg))
	kfmt.Printf("vfuzz stage 2\n")

	var w = kfmt.PrefixWriter{Sink: kfmt.GetOutputSink()}

	w.Prefix = prefixE820
	memMap, err := e820.Open(physMem, memLayoutAddr)
	if err != nil {
		return err
	}
	memMap.Visit(func(entry e820.Entry) bool {
		kfmt.Fprintf(&w, "[0x%16x:0x%16x] - %s\n", entry.Base, entry.End(), entry.Type.String())
		return true
	})
	kfmt.Fprintf(&w, "%d MiB available\n", uint64(memMap.Available()/mem.Mb))

	w.Prefix = prefixAPIC
	if err = apicInitFn(&w); err != nil {
		return err
	}

	w.Prefix = prefixACPI
	platform = acpi.ParsedACPI{}
	if err = platform.Parse(physMem, &w); err != nil {
		return err
	}

	waker := newWakerFn(physMem, cfg.StartupVector)
	for platform.Remaining() > 0 {
		if err = platform.LaunchNextAP(waker); err != nil {
			return err
		}
	}

	kfmt.Printf("[smp] bring-up complete: %d processor(s)\n", platform.Processors.Len())
	return nil
}

func openConsole(cfg Config) io.Writer {
	com = serial.Open(cfg.SerialPort, cfg.SerialBaud)
	return &com
}

func newController(mem phys.Memory, startupVector uint8) acpi.APWaker {
	controller = apic.NewController(mem, startupVector)
	return &controller
}
