package kernel

// Error describes an error raised while bringing the platform up. Errors are
// declared as package-level pointers to Error so they can be returned and
// compared by identity before any memory allocator exists.
type Error struct {
	// The module that raised the error (e.g. "acpi").
	Module string

	// The error message
	Message string
}

// Error implements the error interface. The module name is prepended so that
// host-side tools can surface the error without additional context.
func (e *Error) Error() string {
	if e.Module == "" {
		return e.Message
	}

	return e.Module + ": " + e.Message
}
