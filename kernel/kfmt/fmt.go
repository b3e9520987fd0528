package kfmt

import (
	"io"
	"unsafe"
)

// numBufSize is the size of the scratch buffer used when formatting numbers.
// A 64-bit value in base 8 needs 22 digits; the extra room holds padding and
// the sign.
const numBufSize = 32

var (
	errMissingArg   = []byte("(MISSING)")
	errWrongArgType = []byte("%!(WRONGTYPE)")
	errNoVerb       = []byte("%!(NOVERB)")
	errExtraArg     = []byte("%!(EXTRA)")
	trueValue       = []byte("true")
	falseValue      = []byte("false")

	numBuf [numBufSize]byte

	// oneByte forwards single characters to emit without converting
	// strings to byte slices (which would allocate).
	oneByte = []byte{0}

	// earlyBuffer captures output written before an output sink has been
	// attached (e.g. before the serial port is initialized).
	earlyBuffer ringBuffer

	// outputSink receives the output of Printf. While nil, output is
	// captured by earlyBuffer.
	outputSink io.Writer
)

// SetOutputSink makes w the target for calls to Printf and replays any output
// that was captured by the early ring buffer.
func SetOutputSink(w io.Writer) {
	outputSink = w
	if w != nil {
		io.Copy(w, &earlyBuffer)
	}
}

// GetOutputSink returns the currently active output sink.
func GetOutputSink() io.Writer {
	return outputSink
}

// Printf is a minimal, allocation-free Printf that is safe to call before
// the Go allocator has been set up (and, in the bootloader, when it never
// will be). It supports the following verbs:
//
//	%s  string or []byte
//	%d  base 10 integer
//	%o  base 8 integer
//	%x  base 16 integer (lower-case)
//	%t  bool
//	%%  a literal percent sign
//
// A decimal width may precede the verb. Strings and base-10 integers are
// left-padded with spaces; base-8 and base-16 integers with zeroes.
//
// Values are matched against built-in types only. Printf never looks for
// io.Stringer since that would require the itables to be initialized.
func Printf(format string, args ...interface{}) {
	Fprintf(outputSink, format, args...)
}

// Fprintf behaves like Printf but writes its output to w.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	var (
		argIndex, width int
		fmtLen          = len(format)
	)

	for i := 0; i < fmtLen; i++ {
		if format[i] != '%' {
			emitByte(w, format[i])
			continue
		}

		// Consume the width (if any) and locate the verb.
		width = 0
		for i++; i < fmtLen && format[i] >= '0' && format[i] <= '9'; i++ {
			width = width*10 + int(format[i]-'0')
		}

		if i == fmtLen {
			emit(w, errNoVerb)
			break
		}

		verb := format[i]
		switch verb {
		case '%':
			emitByte(w, '%')
			continue
		case 'd', 'o', 'x', 's', 't':
		default:
			emit(w, errNoVerb)
			continue
		}

		if argIndex >= len(args) {
			emit(w, errMissingArg)
			continue
		}

		switch verb {
		case 'd':
			fmtInt(w, args[argIndex], 10, width)
		case 'o':
			fmtInt(w, args[argIndex], 8, width)
		case 'x':
			fmtInt(w, args[argIndex], 16, width)
		case 's':
			fmtString(w, args[argIndex], width)
		case 't':
			fmtBool(w, args[argIndex])
		}
		argIndex++
	}

	for ; argIndex < len(args); argIndex++ {
		emit(w, errExtraArg)
	}
}

func fmtBool(w io.Writer, v interface{}) {
	b, ok := v.(bool)
	switch {
	case !ok:
		emit(w, errWrongArgType)
	case b:
		emit(w, trueValue)
	default:
		emit(w, falseValue)
	}
}

func fmtString(w io.Writer, v interface{}, width int) {
	switch s := v.(type) {
	case string:
		emitRepeat(w, ' ', width-len(s))
		for i := 0; i < len(s); i++ {
			emitByte(w, s[i])
		}
	case []byte:
		emitRepeat(w, ' ', width-len(s))
		emit(w, s)
	default:
		emit(w, errWrongArgType)
	}
}

// fmtInt formats any built-in integer type in the requested base. The digits
// are produced in reverse order into numBuf and flipped before being emitted.
func fmtInt(w io.Writer, v interface{}, base uint64, width int) {
	var (
		uval uint64
		neg  bool
		pad  byte = '0'
	)

	switch n := v.(type) {
	case uint8:
		uval = uint64(n)
	case uint16:
		uval = uint64(n)
	case uint32:
		uval = uint64(n)
	case uint64:
		uval = n
	case uint:
		uval = uint64(n)
	case uintptr:
		uval = uint64(n)
	case int8:
		uval, neg = abs(int64(n))
	case int16:
		uval, neg = abs(int64(n))
	case int32:
		uval, neg = abs(int64(n))
	case int64:
		uval, neg = abs(n)
	case int:
		uval, neg = abs(int64(n))
	default:
		emit(w, errWrongArgType)
		return
	}

	if base == 10 {
		pad = ' '
	}

	if width >= numBufSize {
		width = numBufSize - 1
	}

	end := 0
	for {
		digit := byte(uval % base)
		if digit < 10 {
			numBuf[end] = '0' + digit
		} else {
			numBuf[end] = 'a' + digit - 10
		}
		end++

		if uval /= base; uval == 0 {
			break
		}
	}

	for ; end < width; end++ {
		numBuf[end] = pad
	}

	// The sign replaces the left-most space padding character or, if there
	// is none, is appended to the number.
	if neg {
		signPos := end
		for signPos > 0 && numBuf[signPos-1] == ' ' {
			signPos--
		}
		if signPos == end {
			end++
		}
		numBuf[signPos] = '-'
	}

	for l, r := 0, end-1; l < r; l, r = l+1, r-1 {
		numBuf[l], numBuf[r] = numBuf[r], numBuf[l]
	}

	emit(w, numBuf[:end])
}

func abs(v int64) (uint64, bool) {
	if v < 0 {
		return uint64(-v), true
	}
	return uint64(v), false
}

func emitRepeat(w io.Writer, ch byte, count int) {
	for ; count > 0; count-- {
		emitByte(w, ch)
	}
}

func emitByte(w io.Writer, ch byte) {
	oneByte[0] = ch
	emit(w, oneByte)
}

// emit hides p from escape analysis before handing it to w. Without this the
// compiler cannot prove that p does not escape through the io.Writer call and
// moves every argument of Printf to the heap.
func emit(w io.Writer, p []byte) {
	emitNoEscape(w, noEscape(unsafe.Pointer(&p)))
}

func emitNoEscape(w io.Writer, bufPtr unsafe.Pointer) {
	p := *(*[]byte)(bufPtr)
	if w == nil {
		earlyBuffer.Write(p)
		return
	}

	w.Write(p)
}

// noEscape hides a pointer from escape analysis. Copied from runtime/stubs.go.
//
//go:nosplit
func noEscape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
