// Package relayout rewrites a single file so that its data is placed under a
// new layout, without changing its content, ownership, permissions (ACLs
// and other extended attributes included), timestamps or path.
//
// The maneuver:
//  1. copy the bytes into a staging directory tagged with the target layout,
//     which makes the storage system allocate the copy under that layout
//  2. check the copy reads back the target layout
//  3. rename(2) the copy over the original, which atomically swaps the
//     directory entry to the new inode and consumes the staged entry
//  4. check the original path now reads back the target layout
//
// Until step 3 the original is never modified, so any failure leaves it
// exactly as it was. Step 4 catches a replace that kept the old inode (a
// metadata-only move back).
package relayout

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/marmos91/cephfs-relayout/internal/logger"
	"github.com/marmos91/cephfs-relayout/internal/ratelimiter"
	"github.com/marmos91/cephfs-relayout/pkg/layout"
	"github.com/marmos91/cephfs-relayout/pkg/metrics"
)

const copyBufferSize = 4 << 20 // 4MiB, the default CephFS object size

// Request describes one file to relayout.
type Request struct {
	// Path is the file to rewrite
	Path string

	// Current is the file's present layout
	Current layout.Layout

	// Target is the layout the file must end up with
	Target layout.Layout

	// StagingDir is a directory tagged with Target
	StagingDir string
}

// Result reports a successful relayout.
type Result struct {
	// Savings is the estimated raw-storage delta (negative means more space used)
	Savings int64

	// BytesCopied is the number of bytes rewritten
	BytesCopied int64

	// Duration is the wall time of the maneuver
	Duration time.Duration
}

// Executor performs relayouts.
//
// The caller must only pass single-link regular files. The executor checks
// again and refuses anything else, but never tries to handle multi-link files.
type Executor struct {
	accessor  layout.Accessor
	estimator *Estimator
	limiter   *ratelimiter.RateLimiter
	metrics   metrics.RelayoutMetrics

	// copy moves the bytes; it must perform a real data write (no reflink or
	// server-side copy) so the storage system places the new data
	copy func(dst io.Writer, src io.Reader) (int64, error)

	// replace swaps the staged copy into place
	replace func(staged, target string) error
}

// NewExecutor creates an executor.
//
// limiter and m may be nil.
func NewExecutor(accessor layout.Accessor, estimator *Estimator, limiter *ratelimiter.RateLimiter, m metrics.RelayoutMetrics) *Executor {
	return &Executor{
		accessor:  accessor,
		estimator: estimator,
		limiter:   limiter,
		metrics:   metrics.OrNoop(m),
		copy: func(dst io.Writer, src io.Reader) (int64, error) {
			return io.CopyBuffer(dst, src, make([]byte, copyBufferSize))
		},
		replace: os.Rename,
	}
}

// Estimator returns the savings estimator used by the executor.
func (e *Executor) Estimator() *Estimator {
	return e.estimator
}

// Relayout rewrites req.Path under req.Target.
//
// On error the original file is unchanged, except for a *PlacementError with
// Stage "replaced", where the content is unchanged but the placement is not
// the requested one.
func (e *Executor) Relayout(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	before, err := os.Lstat(req.Path)
	if err != nil {
		return nil, &StagingError{Op: "stat", Path: req.Path, Err: err}
	}
	if !before.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: %w", req.Path, ErrNotRegular)
	}
	st, ok := before.Sys().(*syscall.Stat_t)
	if !ok {
		return nil, &StagingError{Op: "stat", Path: req.Path, Err: fmt.Errorf("no inode information")}
	}
	if uint64(st.Nlink) > 1 {
		return nil, fmt.Errorf("%s: %w", req.Path, ErrMultiLink)
	}

	staged := filepath.Join(req.StagingDir, uuid.NewString())
	logger.Debug("Copying %s to temp location %s", req.Path, staged)

	copied, err := e.stage(ctx, req.Path, staged, before, st)
	if err != nil {
		discard(staged)
		return nil, err
	}

	if err := e.verify(staged, "staged", req.Target); err != nil {
		discard(staged)
		return nil, err
	}

	after, err := os.Lstat(req.Path)
	if err != nil {
		discard(staged)
		return nil, &StagingError{Op: "stat", Path: req.Path, Err: err}
	}
	if !os.SameFile(before, after) || after.Size() != before.Size() || !after.ModTime().Equal(before.ModTime()) {
		discard(staged)
		return nil, fmt.Errorf("%s: %w", req.Path, ErrSourceChanged)
	}

	savings := e.estimator.Estimate(before.Size(), req.Current.Pool, req.Target.Pool)

	logger.Debug("Moving %s back on top of original %s", staged, req.Path)
	if err := e.replace(staged, req.Path); err != nil {
		discard(staged)
		return nil, &StagingError{Op: "rename", Path: req.Path, Err: err}
	}

	if err := e.verify(req.Path, "replaced", req.Target); err != nil {
		return nil, err
	}

	result := &Result{
		Savings:     savings,
		BytesCopied: copied,
		Duration:    time.Since(start),
	}

	e.metrics.AddBytesCopied(result.BytesCopied)
	e.metrics.AddSavings(result.Savings)
	e.metrics.ObserveRelayout(result.Duration)

	logger.Debug("Relayouted %s (%s) in %v", req.Path, humanize.Bytes(uint64(copied)), result.Duration)
	return result, nil
}

// stage writes a full copy of path to staged and carries over owner, mode,
// extended attributes (ACLs included) and timestamps. The caller removes
// staged on error.
func (e *Executor) stage(ctx context.Context, path, staged string, info os.FileInfo, st *syscall.Stat_t) (int64, error) {
	src, err := os.Open(path)
	if err != nil {
		return 0, &StagingError{Op: "open", Path: path, Err: err}
	}
	defer func() { _ = src.Close() }()

	dst, err := os.OpenFile(staged, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return 0, &StagingError{Op: "create", Path: staged, Err: err}
	}

	copied, err := e.copy(dst, e.limiter.Reader(ctx, src))
	if err != nil {
		_ = dst.Close()
		return 0, &StagingError{Op: "copy", Path: path, Err: err}
	}
	if copied != info.Size() {
		_ = dst.Close()
		return 0, fmt.Errorf("%s: copied %d of %d bytes: %w", path, copied, info.Size(), ErrSourceChanged)
	}

	if err := dst.Sync(); err != nil {
		_ = dst.Close()
		return 0, &StagingError{Op: "sync", Path: staged, Err: err}
	}
	if err := dst.Close(); err != nil {
		return 0, &StagingError{Op: "close", Path: staged, Err: err}
	}

	// Owner first: chown clears setuid/setgid and file capabilities, so
	// xattrs and the mode go on after it. Setting an ACL may rewrite the
	// group bits, so the mode goes last.
	if err := os.Chown(staged, int(st.Uid), int(st.Gid)); err != nil {
		return 0, &StagingError{Op: "chown", Path: staged, Err: err}
	}
	if err := copyXattrs(path, staged); err != nil {
		return 0, err
	}
	mode := info.Mode() & (os.ModePerm | os.ModeSetuid | os.ModeSetgid | os.ModeSticky)
	if err := os.Chmod(staged, mode); err != nil {
		return 0, &StagingError{Op: "chmod", Path: staged, Err: err}
	}
	if err := os.Chtimes(staged, accessTime(st, info), info.ModTime()); err != nil {
		return 0, &StagingError{Op: "chtimes", Path: staged, Err: err}
	}

	return copied, nil
}

// verify reads back the file layout of path and compares it with want.
func (e *Executor) verify(path, stage string, want layout.Layout) error {
	got, err := e.accessor.Read(path, layout.KindFile)
	if err != nil {
		return &StagingError{Op: "verify " + stage + " layout", Path: path, Err: err}
	}
	if got == nil || *got != want {
		return &PlacementError{Path: path, Stage: stage, Want: want, Got: got}
	}
	return nil
}

func discard(staged string) {
	if err := os.Remove(staged); err != nil && !os.IsNotExist(err) {
		logger.Warn("Failed to remove staged copy %s: %v", staged, err)
	}
}
