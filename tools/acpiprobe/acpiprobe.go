// Command acpiprobe runs the bootloader's ACPI parser against a raw image of
// physical memory (e.g. produced by fwimage or dumped from a VM) and reports
// what it found.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/seal9055/vfuzz/device/acpi"
	"github.com/seal9055/vfuzz/kernel/mm/phys"
	"github.com/seal9055/vfuzz/tools/internal/translate"
	"golang.org/x/sys/unix"
)

func exit(err error) {
	fmt.Fprintf(os.Stderr, "[acpiprobe] error: %s\n", err.Error())
	os.Exit(1)
}

// mapImage maps the file at path into memory. Pages are mapped private so
// writes by the caller never reach the file.
func mapImage(path string) ([]byte, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}

	if info.Size() == 0 {
		return nil, nil, fmt.Errorf("%s: empty image", path)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(info.Size()), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, fmt.Errorf("mmap %s: %w", path, err)
	}

	return data, func() error { return unix.Munmap(data) }, nil
}

// probe parses the ACPI tables contained in the image at path, which holds
// physical memory starting at base, and writes a report to w. The parser's
// own log is also sent to w when verbose is set.
func probe(w io.Writer, path string, base uint64, verbose bool) error {
	data, unmap, err := mapImage(path)
	if err != nil {
		return err
	}
	defer unmap()

	var parserLog io.Writer = io.Discard
	if verbose {
		parserLog = w
	}

	p, kerr := acpi.Parse(&phys.Image{Base: base, Data: data}, parserLog)
	if kerr != nil {
		return fmt.Errorf("%s: %w", path, kerr)
	}

	report(w, p, verbose)
	return nil
}

func report(w io.Writer, p *acpi.ParsedACPI, verbose bool) {
	rootName := "RSDT"
	if p.Rsdt.EntrySize == 8 {
		rootName = "XSDT"
	}

	fmt.Fprintln(w, translate.From("ACPI revision: %d", p.Version))
	fmt.Fprintln(w, translate.From("%s: %d entries of %d bytes at 0x%x", rootName, p.Rsdt.NumEntries, p.Rsdt.EntrySize, p.Rsdt.StartAddr))
	fmt.Fprintln(w, translate.From("local APIC address: 0x%x", p.LocalAPICAddr))

	if verbose {
		for _, t := range p.Tables() {
			fmt.Fprintln(w, translate.From("  %s at 0x%x, %d bytes", string(t.Signature[:]), t.Addr, t.Length))
		}
	}

	fmt.Fprintln(w, translate.From("usable processors: %d", p.Processors.Len()))
	for i, id := range p.Processors.IDs() {
		fmt.Fprintln(w, translate.From("  cpu%d: APIC ID 0x%x", i, id))
	}
}

func runTool() error {
	base := flag.Uint64("base", 0, "the physical address of the first byte of the image")
	verbose := flag.Bool("v", false, "list every table and show the parser log")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, translate.From("acpiprobe: parse the ACPI tables in a physical memory image\n\n"))
		fmt.Fprint(os.Stderr, translate.From("Usage: acpiprobe [options] image\n"))
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		exit(errors.New("missing image file argument"))
	}

	return probe(os.Stdout, flag.Arg(0), *base, *verbose)
}

func main() {
	if err := runTool(); err != nil {
		exit(err)
	}
}
