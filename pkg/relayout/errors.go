package relayout

import (
	"errors"

	"github.com/marmos91/cephfs-relayout/pkg/layout"
)

var (
	// ErrMultiLink is returned for files with more than one hard link.
	// Rewriting one link would leave the others on the old inode.
	ErrMultiLink = errors.New("file has multiple hard links")

	// ErrNotRegular is returned for anything but a regular file.
	ErrNotRegular = errors.New("not a regular file")

	// ErrSourceChanged is returned when the original file was modified
	// while it was being copied.
	ErrSourceChanged = errors.New("file changed during copy")
)

// PlacementError reports that data did not end up under the requested layout.
//
// Before the replace step it means the staging directory did not place the
// copy (the original is untouched). After the replace step it means the
// replace primitive kept the old placement; the content at Path is still
// byte-identical to the original.
type PlacementError struct {
	// Path is the file that was checked
	Path string

	// Stage is "staged" or "replaced"
	Stage string

	// Want is the target layout
	Want layout.Layout

	// Got is the layout read back (nil when absent)
	Got *layout.Layout
}

// Error implements the error interface.
func (e *PlacementError) Error() string {
	got := "no layout"
	if e.Got != nil {
		got = e.Got.String()
	}
	return e.Stage + " copy " + e.Path + " has " + got + ", want " + e.Want.String()
}

// StagingError reports an I/O failure during the copy or replace maneuver.
type StagingError struct {
	// Op is the step that failed (e.g., "copy", "rename")
	Op string

	// Path is the file involved
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
