// Package staging manages the transient directories a relayout copies data
// through.
//
// A Session owns one root directory created under the scratch space at the
// start of a run. Below it, one staging directory exists per distinct target
// layout, tagged with that layout when it is created. Copying a file into a
// staging directory makes the storage system place the new data under the
// directory's layout.
//
// The session root must live on the same filesystem as the tree being
// reconciled: the final replace is a rename, and renames do not cross mounts.
package staging

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/marmos91/cephfs-relayout/internal/logger"
	"github.com/marmos91/cephfs-relayout/pkg/layout"
	"github.com/marmos91/cephfs-relayout/pkg/metrics"
)

// Session is one run's staging area.
//
// Thread Safety:
// Not safe for concurrent use. A parallel walker would need ForLayout to be
// locked so that each layout still maps to exactly one directory.
type Session struct {
	root     string
	accessor layout.Accessor
	metrics  metrics.RelayoutMetrics
	dirs     map[layout.Layout]string
	closed   bool
}

// NewSession creates a fresh session root under scratchRoot.
//
// Failure here is fatal for the run.
func NewSession(scratchRoot string, accessor layout.Accessor, m metrics.RelayoutMetrics) (*Session, error) {
	info, err := os.Stat(scratchRoot)
	if err != nil {
		return nil, &StagingError{Op: "stat scratch root", Path: scratchRoot, Err: err}
	}
	if !info.IsDir() {
		return nil, &StagingError{Op: "stat scratch root", Path: scratchRoot, Err: syscall.ENOTDIR}
	}

	root := filepath.Join(scratchRoot, "relayout-"+uuid.NewString())
	if err := os.Mkdir(root, 0700); err != nil {
		return nil, &StagingError{Op: "create session root", Path: root, Err: err}
	}

	logger.Debug("Created session root %s", root)

	return &Session{
		root:     root,
		accessor: accessor,
		metrics:  metrics.OrNoop(m),
		dirs:     make(map[layout.Layout]string),
	}, nil
}

// Root returns the session root directory.
func (s *Session) Root() string {
	return s.root
}

// ForLayout returns the staging directory tagged with l, creating and
// tagging it on first use. Layouts differing in any field, pool included,
// get distinct directories.
func (s *Session) ForLayout(l layout.Layout) (string, error) {
	if s.closed {
		return "", &StagingError{Op: "create staging dir", Path: s.root, Err: os.ErrClosed}
	}
	if dir, ok := s.dirs[l]; ok {
		return dir, nil
	}

	dir, err := os.MkdirTemp(s.root, "layout-")
	if err != nil {
		return "", &StagingError{Op: "create staging dir", Path: s.root, Err: err}
	}

	if err := s.accessor.Write(dir, l); err != nil {
		// An untagged directory would place copies under the wrong layout
		_ = os.Remove(dir)
		return "", &StagingError{Op: "tag staging dir", Path: dir, Err: err}
	}

	logger.Debug("Created staging dir %s for %s", dir, l)
	s.metrics.RecordStagingDir()
	s.dirs[l] = dir
	return dir, nil
}

// Len returns the number of staging directories created so far.
func (s *Session) Len() int {
	return len(s.dirs)
}

// SameDevice reports whether path lives on the same filesystem as the
// session root.
func (s *Session) SameDevice(path string) (bool, error) {
	rootDev, err := device(s.root)
	if err != nil {
		return false, err
	}
	pathDev, err := device(path)
	if err != nil {
		return false, err
	}
	return rootDev == pathDev, nil
}

// Close removes the session root and everything below it.
//
// Failure here is fatal for the run. Calling Close twice is a no-op.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := os.RemoveAll(s.root); err != nil {
		return &StagingError{Op: "remove session root", Path: s.root, Err: err}
	}
	logger.Debug("Removed session root %s", s.root)
	return nil
}

func device(path string) (uint64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, fmt.Errorf("no device information for %s", path)
	}
	return uint64(st.Dev), nil
}
