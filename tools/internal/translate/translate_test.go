package translate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrom(t *testing.T) {
	assert.Equal(t, "wrote image.bin", From("wrote %s", "image.bin"))
	assert.Equal(t, "APIC IDs: 0 1 2", From("APIC IDs: %d %d %d", 0, 1, 2))
	assert.Equal(t, "base 0xfee00000", From("base 0x%x", 0xfee00000))
}

func TestNewPrinterDefaultLocale(t *testing.T) {
	p := newPrinter(nil)
	assert.Equal(t, "1,234 cores", p.Sprintf("%d cores", 1234))
}
