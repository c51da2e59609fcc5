// Package layouttest provides an in-memory stand-in for CephFS layout
// attributes, for tests running on an ordinary local filesystem.
package layouttest

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/marmos91/cephfs-relayout/pkg/layout"
)

type inode struct {
	dev uint64
	ino uint64
}

// Simulator implements layout.Accessor with CephFS placement semantics.
//
// Directory layouts are attached to paths. File layouts are attached to
// inodes, and an inode the simulator has never seen takes the effective
// layout of its parent directory the first time it is read. That models
// "a file's layout is fixed when it is created": a copy written into a
// tagged directory reads back the tag, while a rename keeps whatever the
// inode already had.
type Simulator struct {
	mu        sync.Mutex
	dirs      map[string]layout.Layout
	files     map[inode]*layout.Layout
	handles   map[inode]*os.File
	malformed map[string]string
	reads     int

	// DropWrites makes Write succeed without recording anything, as if the
	// storage system ignored the directory tag.
	DropWrites bool

	// FailWrites, when set, is returned by every Write.
	FailWrites error
}

// NewSimulator creates an empty simulator.
func NewSimulator() *Simulator {
	return &Simulator{
		dirs:      make(map[string]layout.Layout),
		files:     make(map[inode]*layout.Layout),
		handles:   make(map[inode]*os.File),
		malformed: make(map[string]string),
	}
}

// Close releases the descriptors held on tracked inodes.
func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ino, f := range s.handles {
		_ = f.Close()
		delete(s.handles, ino)
	}
	return nil
}

// SetDir attaches an explicit layout to a directory.
func (s *Simulator) SetDir(path string, l layout.Layout) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirs[filepath.Clean(path)] = l
}

// SetFile pins the layout of the file currently at path.
func (s *Simulator) SetFile(path string, l layout.Layout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ino, err := s.track(path)
	if err != nil {
		return err
	}
	s.files[ino] = &l
	return nil
}

// SetUnplaced marks the file currently at path as carrying no layout.
func (s *Simulator) SetUnplaced(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ino, err := s.track(path)
	if err != nil {
		return err
	}
	s.files[ino] = nil
	return nil
}

// SetMalformed makes reads of path return a parse error for text.
func (s *Simulator) SetMalformed(path, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.malformed[filepath.Clean(path)] = text
}

// DirLayout returns the explicit layout recorded on a directory.
func (s *Simulator) DirLayout(path string) (layout.Layout, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.dirs[filepath.Clean(path)]
	return l, ok
}

// Reads returns how many times Read has been called.
func (s *Simulator) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// Read implements layout.Accessor.
func (s *Simulator) Read(path string, kind layout.Kind) (*layout.Layout, error) {
	path = filepath.Clean(path)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++

	if text, ok := s.malformed[path]; ok {
		_, err := layout.Parse(text)
		if err == nil {
			return nil, fmt.Errorf("simulator: %q is not malformed", text)
		}
		if perr, ok := err.(*layout.ParseError); ok {
			perr.Path = path
		}
		return nil, err
	}

	if kind == layout.KindDir {
		l, ok := s.dirs[path]
		if !ok {
			return nil, nil
		}
		return &l, nil
	}

	ino, err := s.track(path)
	if err != nil {
		return nil, err
	}
	if l, ok := s.files[ino]; ok {
		if l == nil {
			return nil, nil
		}
		out := *l
		return &out, nil
	}

	// First sight of this inode: it was created under its parent's layout
	inherited := s.effectiveDir(filepath.Dir(path))
	s.files[ino] = inherited
	if inherited == nil {
		return nil, nil
	}
	out := *inherited
	return &out, nil
}

// Write implements layout.Accessor.
func (s *Simulator) Write(path string, l layout.Layout) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWrites != nil {
		return s.FailWrites
	}
	if s.DropWrites {
		return nil
	}
	s.dirs[filepath.Clean(path)] = l
	return nil
}

// effectiveDir returns the nearest explicit layout at or above dir.
func (s *Simulator) effectiveDir(dir string) *layout.Layout {
	for {
		if l, ok := s.dirs[dir]; ok {
			return &l
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil
		}
		dir = parent
	}
}

// track returns the inode of the file at path and keeps a descriptor open on
// it, so the inode number cannot be recycled for another file while the
// simulator still remembers its layout. Callers hold s.mu.
func (s *Simulator) track(path string) (inode, error) {
	f, err := os.Open(path)
	if err != nil {
		return inode{}, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return inode{}, err
	}
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		_ = f.Close()
		return inode{}, fmt.Errorf("simulator: no inode information for %s", path)
	}

	ino := inode{dev: uint64(st.Dev), ino: uint64(st.Ino)}
	if _, held := s.handles[ino]; held {
		_ = f.Close()
	} else {
		s.handles[ino] = f
	}
	return ino, nil
}
