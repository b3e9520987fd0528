//go:build amd64

package mem

const (
	// PageShift is equal to log2(PageSize). Physical addresses are turned
	// into page numbers (e.g. the SIPI startup vector) by shifting right
	// by PageShift.
	PageShift = 12

	// PageSize defines the system's page size in bytes.
	PageSize = Size(1 << PageShift)

	// PageOffsetMask selects the offset of an address within its page.
	PageOffsetMask = uint64(PageSize - 1)
)
