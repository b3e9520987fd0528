package kmain

import (
	"bytes"
	"io"
	"testing"

	"github.com/seal9055/vfuzz/device/acpi"
	"github.com/seal9055/vfuzz/device/acpi/table"
	"github.com/seal9055/vfuzz/device/acpi/table/tablegen"
	"github.com/seal9055/vfuzz/device/apic"
	"github.com/seal9055/vfuzz/kernel"
	"github.com/seal9055/vfuzz/kernel/hal/e820"
	"github.com/seal9055/vfuzz/kernel/kfmt"
	"github.com/seal9055/vfuzz/kernel/mm/phys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const memLayoutAddr = 0x5000

type fakeWaker struct {
	err    *kernel.Error
	vector uint8
	woken  []uint32
}

func (w *fakeWaker) ID() uint32        { return 0 }
func (w *fakeWaker) IsBootstrap() bool { return true }

func (w *fakeWaker) WakeAP(apicID uint32) *kernel.Error {
	if w.err != nil {
		return w.err
	}
	w.woken = append(w.woken, apicID)
	return nil
}

type bootResult struct {
	out    bytes.Buffer
	waker  fakeWaker
	panics []interface{}
	halts  int

	// interruptsOff counts calls to disable interrupts; consoleInterruptsOff
	// records the count when the console was opened.
	interruptsOff        int
	consoleInterruptsOff int
}

func writeMemLayout(img *phys.Image, count uint64, entries ...e820.Entry) {
	img.PutUint64(memLayoutAddr, count)
	for i, e := range entries {
		addr := uint64(memLayoutAddr + 8 + i*24)
		img.PutUint64(addr, e.Base)
		img.PutUint64(addr+8, e.Length)
		img.PutUint32(addr+16, uint32(e.Type))
	}
}

func testPlatform(ids ...uint8) *phys.Image {
	madt := tablegen.NewMADT()
	for i, id := range ids {
		madt.LocalAPIC(uint8(i), id, table.ProcessorEnabled)
	}

	img, _ := (&tablegen.Platform{
		EBDA:   tablegen.DefaultEBDA,
		Tables: [][]byte{tablegen.SDT("FACP", 1, make([]byte, 80)), madt.Bytes()},
	}).Build()

	writeMemLayout(img, 3,
		e820.Entry{Base: 0, Length: 0x9fc00, Type: e820.Available},
		e820.Entry{Base: 0x9fc00, Length: 0x400, Type: e820.Reserved},
		e820.Entry{Base: 0x100000, Length: 0x7f00000, Type: e820.Available},
	)
	return img
}

func install(t *testing.T, mem phys.Memory, apicErr *kernel.Error) *bootResult {
	res := &bootResult{}

	origMem, origConsole, origAPIC := physMem, consoleFn, apicInitFn
	origWaker, origPanic, origHalt := newWakerFn, panicFn, haltFn
	origCLI := disableInterruptsFn
	t.Cleanup(func() {
		physMem, consoleFn, apicInitFn = origMem, origConsole, origAPIC
		newWakerFn, panicFn, haltFn = origWaker, origPanic, origHalt
		disableInterruptsFn = origCLI
		kfmt.SetOutputSink(nil)
	})

	physMem = mem
	disableInterruptsFn = func() { res.interruptsOff++ }
	consoleFn = func(Config) io.Writer {
		res.consoleInterruptsOff = res.interruptsOff
		return &res.out
	}
	apicInitFn = func(w io.Writer) *kernel.Error {
		kfmt.Fprintf(w, "enabled\n")
		return apicErr
	}
	newWakerFn = func(_ phys.Memory, vector uint8) acpi.APWaker {
		res.waker.vector = vector
		return &res.waker
	}
	panicFn = func(e interface{}) { res.panics = append(res.panics, e) }
	haltFn = func() { res.halts++ }

	return res
}

func TestKmain(t *testing.T) {
	res := install(t, testPlatform(0, 1, 2), nil)

	Kmain(memLayoutAddr)

	assert.Equal(t, 1, res.halts)
	assert.Equal(t, []interface{}{errKmainReturned}, res.panics)
	assert.Equal(t, 1, res.interruptsOff)
	assert.Equal(t, 1, res.consoleInterruptsOff, "interrupts must be disabled before the console is opened")
	assert.Equal(t, []uint32{1, 2}, res.waker.woken)
	assert.Equal(t, DefaultConfig.StartupVector, res.waker.vector)

	out := res.out.String()
	assert.Contains(t, out, "vfuzz stage 2\n")
	assert.Contains(t, out, "[e820] [0x0000000000000000:0x000000000009fc00] - available\n")
	assert.Contains(t, out, "[e820] [0x000000000009fc00:0x00000000000a0000] - reserved\n")
	assert.Contains(t, out, "[e820] 127 MiB available\n")
	assert.Contains(t, out, "[apic] enabled\n")
	assert.Contains(t, out, "[acpi] FACP at 0x")
	assert.Contains(t, out, "[acpi] APIC at 0x")
	assert.Contains(t, out, "[smp] bring-up complete: 3 processor(s)\n")
}

func TestKmainErrors(t *testing.T) {
	wakeErr := &kernel.Error{Module: "test", Message: "IPI not delivered"}

	specs := []struct {
		name    string
		img     func() *phys.Image
		apicErr *kernel.Error
		wakeErr *kernel.Error
		expErr  *kernel.Error
	}{
		{
			"memory map too large",
			func() *phys.Image {
				img := testPlatform(0)
				img.PutUint64(memLayoutAddr, e820.MaxEntries+1)
				return img
			},
			nil, nil, e820.ErrTooManyEntries,
		},
		{
			"no APIC",
			func() *phys.Image { return testPlatform(0) },
			apic.ErrNoAPICSupport, nil, apic.ErrNoAPICSupport,
		},
		{
			"no ACPI tables",
			func() *phys.Image {
				img := phys.NewImage(0, 1<<20)
				writeMemLayout(img, 0)
				return img
			},
			nil, nil, acpi.ErrRSDPSignatureNotFound,
		},
		{
			"too many processors",
			func() *phys.Image {
				return testPlatform(0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16)
			},
			nil, nil, acpi.ErrTooManyCores,
		},
		{
			"wake failure",
			func() *phys.Image { return testPlatform(0, 1) },
			nil, wakeErr, wakeErr,
		},
	}

	for _, spec := range specs {
		t.Run(spec.name, func(t *testing.T) {
			res := install(t, spec.img(), spec.apicErr)
			res.waker.err = spec.wakeErr

			Kmain(memLayoutAddr)

			require.Len(t, res.panics, 1)
			assert.Equal(t, spec.expErr, res.panics[0])
			assert.Zero(t, res.halts)
			assert.Equal(t, 1, res.interruptsOff)
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	assert.Equal(t, uint16(0x3f8), DefaultConfig.SerialPort)
	assert.Equal(t, uint32(115200), DefaultConfig.SerialBaud)
	assert.Equal(t, uint8(0x08), DefaultConfig.StartupVector)
}
