//go:build linux

package relayout

import (
	"bytes"
	"errors"
	"strings"

	"golang.org/x/sys/unix"
)

// placementXattrPrefix names the virtual attributes that describe where data
// lives. They belong to the new inode and are never copied.
const placementXattrPrefix = "ceph."

// carriesXattr reports whether attribute name moves with the file content.
func carriesXattr(name string) bool {
	return name != "" && !strings.HasPrefix(name, placementXattrPrefix)
}

// copyXattrs copies the extended attributes of src onto dst, POSIX ACLs
// included. A filesystem without xattr support has nothing to copy.
func copyXattrs(src, dst string) error {
	names, err := listxattr(src)
	if err != nil {
		if errors.Is(err, unix.ENOTSUP) {
			return nil
		}
		return &StagingError{Op: "listxattr", Path: src, Err: err}
	}

	for _, name := range names {
		if !carriesXattr(name) {
			continue
		}
		value, err := lgetxattr(src, name)
		if err != nil {
			if errors.Is(err, unix.ENODATA) {
				// Removed since the listing
				continue
			}
			return &StagingError{Op: "getxattr " + name, Path: src, Err: err}
		}
		if err := unix.Lsetxattr(dst, name, value, 0); err != nil {
			return &StagingError{Op: "setxattr " + name, Path: dst, Err: err}
		}
	}
	return nil
}

// listxattr returns the attribute names of path, growing the buffer when the
// list changes size between the size query and the read.
func listxattr(path string) ([]string, error) {
	for {
		sz, err := unix.Llistxattr(path, nil)
		if err != nil {
			return nil, err
		}
		if sz == 0 {
			return nil, nil
		}
		buf := make([]byte, sz)
		sz, err = unix.Llistxattr(path, buf)
		if errors.Is(err, unix.ERANGE) {
			continue
		}
		if err != nil {
			return nil, err
		}

		var names []string
		for _, name := range bytes.Split(buf[:sz], []byte{0}) {
			if len(name) > 0 {
				names = append(names, string(name))
			}
		}
		return names, nil
	}
}

func lgetxattr(path, name string) ([]byte, error) {
	for {
		sz, err := unix.Lgetxattr(path, name, nil)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, sz)
		sz, err = unix.Lgetxattr(path, name, buf)
		if errors.Is(err, unix.ERANGE) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return buf[:sz], nil
	}
}
