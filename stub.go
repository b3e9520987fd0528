package main

import "github.com/seal9055/vfuzz/kernel/kmain"

var memLayoutPtr uintptr

// main makes a dummy call to the actual bootloader entrypoint function. It is
// intentionally defined to prevent the Go compiler from optimizing away the
// real code.
//
// A global variable is passed as an argument to Kmain to prevent the compiler
// from inlining the actual call and removing Kmain from the generated .o file.
func main() {
	kmain.Kmain(memLayoutPtr)
}
