package kfmt

import "io"

// PrefixWriter is an io.Writer that injects Prefix at the start of every line
// written to Sink. The boot sequence uses it to tag the output of each
// subsystem (e.g. "[acpi] ").
type PrefixWriter struct {
	// A writer where all writes get sent to.
	Sink io.Writer

	// The prefix injected at the beginning of each line.
	Prefix []byte

	// midLine is set while the last write did not end with a line feed.
	midLine bool
}

// Write writes p to the sink, prefixing each new line. The returned byte
// count does not include the injected prefixes.
func (w *PrefixWriter) Write(p []byte) (int, error) {
	var written, lineStart int

	for i := 0; i < len(p); i++ {
		if p[i] != '\n' && i != len(p)-1 {
			continue
		}

		if !w.midLine {
			w.Sink.Write(w.Prefix)
		}

		n, err := w.Sink.Write(p[lineStart : i+1])
		written += n
		if err != nil {
			return written, err
		}

		w.midLine = p[i] != '\n'
		lineStart = i + 1
	}

	return written, nil
}
