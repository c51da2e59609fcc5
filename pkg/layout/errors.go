package layout

import "errors"

// ErrUnsupported is returned by accessors on platforms without the extended
// attribute calls the layout attributes need.
var ErrUnsupported = errors.New("layout attributes are not supported on this platform")

// ParseError reports a malformed layout attribute.
//
// It is fatal for the path being resolved: a file whose attribute cannot be
// parsed is skipped, and a directory whose attribute cannot be parsed fails
// the resolution of every path below it.
type ParseError struct {
	// Path is the file or directory the attribute was read from (if known)
	Path string

	// Text is the raw attribute value
	Text string

	// Reason describes what was wrong with it
	Reason string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	msg := "malformed layout attribute"
	if e.Path != "" {
		msg += " on " + e.Path
	}
	return msg + ": " + e.Reason + " (" + e.Text + ")"
}
