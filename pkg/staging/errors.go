package staging

// StagingError reports an I/O failure while creating, tagging or removing
// staging directories.
//
// Whether it is fatal depends on where it happens: session root creation and
// teardown abort the run, a per-layout directory failure only aborts the
// files that needed it.
type StagingError struct {
	// Op is the operation that failed (e.g., "create staging dir")
	Op string

	// Path is the directory involved
	Path string

	// Err is the underlying error
	Err error
}

// Error implements the error interface.
func (e *StagingError) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *StagingError) Unwrap() error {
	return e.Err
}
