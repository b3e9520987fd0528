package kfmt

import (
	"github.com/seal9055/vfuzz/kernel"
	"github.com/seal9055/vfuzz/kernel/cpu"
)

var (
	// cpuHaltFn is mocked by tests.
	cpuHaltFn = cpu.Halt

	errRuntimePanic = &kernel.Error{Module: "rt", Message: "unknown cause"}
)

// Panic reports the supplied error (if not nil) to the output sink and halts
// the CPU. Bring-up has no degraded mode, so every *kernel.Error that reaches
// the boot sequence ends here. Panic does not return on hardware; it only
// returns when tests replace cpuHaltFn.
func Panic(e interface{}) {
	var err *kernel.Error

	switch t := e.(type) {
	case *kernel.Error:
		err = t
	case string:
		errRuntimePanic.Message = t
		err = errRuntimePanic
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	}

	Printf("\n-----------------------------------\n")
	if err != nil {
		Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	Printf("*** boot failed: system halted ***")
	Printf("\n-----------------------------------\n")

	cpuHaltFn()
}
