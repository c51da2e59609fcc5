//go:build linux

package layout

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// XattrAccessor implements Accessor with extended attributes.
//
// Reads use the composite attribute (ceph.dir.layout / ceph.file.layout).
// Writes set the individual sub-attributes (ceph.dir.layout.pool, ...),
// which is the form CephFS accepts for setting a directory layout.
type XattrAccessor struct {
	opts XattrOptions
}

// NewXattrAccessor creates an accessor using the given attribute names.
// Empty names fall back to the CephFS defaults.
func NewXattrAccessor(opts XattrOptions) *XattrAccessor {
	opts.applyDefaults()
	return &XattrAccessor{opts: opts}
}

// Read implements Accessor.
func (a *XattrAccessor) Read(path string, kind Kind) (*Layout, error) {
	raw, err := getxattr(path, a.opts.attrName(kind))
	if err != nil {
		if errors.Is(err, unix.ENODATA) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s layout of %s: %w", kind, path, err)
	}

	l, err := Parse(string(raw))
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			perr.Path = path
		}
		return nil, err
	}
	return &l, nil
}

// Write implements Accessor.
func (a *XattrAccessor) Write(path string, l Layout) error {
	for _, f := range l.Fields() {
		name := a.opts.DirAttr + "." + f.Name
		if err := unix.Setxattr(path, name, []byte(f.Value), 0); err != nil {
			return fmt.Errorf("set %s=%s on %s: %w", name, f.Value, path, err)
		}
	}
	return nil
}

// getxattr reads an attribute, growing the buffer when the kernel reports
// it is too small.
func getxattr(path, name string) ([]byte, error) {
	buf := make([]byte, 256)
	for {
		sz, err := unix.Getxattr(path, name, buf)
		if err == nil {
			return buf[:sz], nil
		}
		if !errors.Is(err, unix.ERANGE) {
			return nil, err
		}

		// Ask for the exact size, then retry with a buffer that fits
		sz, err = unix.Getxattr(path, name, nil)
		if err != nil {
			return nil, err
		}
		buf = make([]byte, sz+1)
	}
}
