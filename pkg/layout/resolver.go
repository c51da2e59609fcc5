package layout

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/marmos91/cephfs-relayout/pkg/metrics"
)

// Resolver computes the effective layout of files and directories.
//
// A directory without an explicit layout inherits the layout of its nearest
// labeled ancestor. A file without an explicit layout has never been placed
// and resolves to nil; files never inherit.
//
// Results are cached per absolute path for the lifetime of the Resolver, which
// is one run. The tree is assumed not to be relabeled concurrently by anyone
// else, so successful results are never re-read. Errors are not cached.
//
// Thread Safety:
// Not safe for concurrent use. A run is single-threaded.
type Resolver struct {
	accessor Accessor
	metrics  metrics.RelayoutMetrics
	cache    map[string]*Layout
}

// NewResolver creates a resolver reading attributes through accessor.
// m may be nil.
func NewResolver(accessor Accessor, m metrics.RelayoutMetrics) *Resolver {
	return &Resolver{
		accessor: accessor,
		metrics:  metrics.OrNoop(m),
		cache:    make(map[string]*Layout),
	}
}

// Resolve returns the effective layout of path, or nil if there is none.
//
// For a directory chain of N unlabeled ancestors above a labeled one, the walk
// takes O(N) attribute reads and fills the cache for every directory on the
// way, so later lookups under any of them are a map hit.
func (r *Resolver) Resolve(path string) (*Layout, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	if l, ok := r.cache[abs]; ok {
		r.metrics.RecordResolve(true)
		return l, nil
	}
	r.metrics.RecordResolve(false)

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", abs, err)
	}

	if !info.IsDir() {
		l, err := r.accessor.Read(abs, KindFile)
		if err != nil {
			return nil, err
		}
		r.cache[abs] = l
		return l, nil
	}

	return r.resolveDir(abs)
}

// resolveDir walks up from dir until it finds a cached entry, an explicit
// layout or the filesystem root, then records the answer for every directory
// it passed.
func (r *Resolver) resolveDir(dir string) (*Layout, error) {
	var (
		pending []string
		found   *Layout
	)

	current := dir
	for {
		if l, ok := r.cache[current]; ok {
			found = l
			break
		}

		l, err := r.accessor.Read(current, KindDir)
		if err != nil {
			return nil, err
		}
		pending = append(pending, current)
		if l != nil {
			found = l
			break
		}

		parent := filepath.Dir(current)
		if parent == current {
			// Reached the root without finding a label
			break
		}
		current = parent
	}

	for _, p := range pending {
		r.cache[p] = found
	}
	return found, nil
}

// Len returns the number of cached paths.
func (r *Resolver) Len() int {
	return len(r.cache)
}

// Cached returns the cached result for path, if any. Relative paths are
// made absolute the same way Resolve does.
func (r *Resolver) Cached(path string) (*Layout, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, false
	}
	l, ok := r.cache[abs]
	return l, ok
}

// Reset drops every cached result.
func (r *Resolver) Reset() {
	r.cache = make(map[string]*Layout)
}
