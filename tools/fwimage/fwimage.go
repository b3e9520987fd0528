// Command fwimage builds a physical memory image holding the ACPI tables of
// a synthetic machine described by a starlark script. The image can be fed to
// acpiprobe or loaded into an emulator.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/seal9055/vfuzz/tools/internal/translate"
)

func exit(err error) {
	fmt.Fprintf(os.Stderr, "[fwimage] error: %s\n", err.Error())
	os.Exit(1)
}

// writeImage builds the platform described by script and writes the raw
// image to w.
func writeImage(w io.Writer, script string, src interface{}) (int, error) {
	platform, err := loadPlatform(script, src)
	if err != nil {
		return 0, err
	}

	img, layout := platform.Build()
	log.Print(translate.From("RSDP at 0x%x, root table at 0x%x, %d table(s)", layout.RSDPAddr, layout.RootAddr, len(layout.TableAddrs)))

	return w.Write(img.Data)
}

func runTool() error {
	script := flag.String("script", "platform.star", "the starlark script describing the platform")
	output := flag.String("o", "image.bin", "the file to write the image to or - to output to STDOUT")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, translate.From("fwimage: build a memory image with synthetic ACPI tables\n\n"))
		fmt.Fprint(os.Stderr, translate.From("Usage: fwimage [options]\n"))
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 0 {
		exit(errors.New("unexpected arguments"))
	}

	var out io.Writer = os.Stdout
	if *output != "-" {
		f, err := os.Create(*output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	n, err := writeImage(out, *script, nil)
	if err != nil {
		return err
	}

	log.Print(translate.From("wrote %d bytes to %s", n, *output))
	return nil
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("[fwimage] ")

	if err := runTool(); err != nil {
		exit(err)
	}
}
