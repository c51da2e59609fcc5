// Package migrate reconciles a directory tree against its directory layouts.
//
// The orchestrator walks the tree bottom-up, children before parents. In
// each directory it resolves the effective layout once, then for every
// regular file it decides, by policy, whether the file has drifted and hands
// drifted files to the relayout executor.
//
// Per-file problems (multi-link files, unplaced files, malformed attributes,
// failed copies) are recorded and the walk continues. Only session-level
// failures abort the run: the staging session cannot be created or removed,
// or the scratch space is on a different filesystem than the tree.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/marmos91/cephfs-relayout/internal/logger"
	"github.com/marmos91/cephfs-relayout/pkg/journal"
	"github.com/marmos91/cephfs-relayout/pkg/layout"
	"github.com/marmos91/cephfs-relayout/pkg/metrics"
	"github.com/marmos91/cephfs-relayout/pkg/relayout"
	"github.com/marmos91/cephfs-relayout/pkg/staging"
)

// ErrCrossDevice is returned when the scratch root and the target tree are
// on different filesystems.
var ErrCrossDevice = errors.New("scratch root is not on the same filesystem as the target tree")

// Options configures a run.
type Options struct {
	// ScratchRoot is where the session root is created. It must be on the
	// same filesystem as the tree.
	ScratchRoot string

	// Policy decides which differences trigger a relayout
	Policy Policy

	// DryRun reports mismatches without touching any file
	DryRun bool

	// Exclude lists path prefixes that are not scanned
	Exclude []string
}

// Orchestrator runs reconciliation passes.
type Orchestrator struct {
	opts     Options
	accessor layout.Accessor
	executor *relayout.Executor
	journal  *journal.Journal
	metrics  metrics.RelayoutMetrics
}

// New creates an orchestrator.
//
// j and m may be nil.
func New(opts Options, accessor layout.Accessor, executor *relayout.Executor, j *journal.Journal, m metrics.RelayoutMetrics) *Orchestrator {
	if opts.Policy == "" {
		opts.Policy = PolicyLayout
	}
	return &Orchestrator{
		opts:     opts,
		accessor: accessor,
		executor: executor,
		journal:  j,
		metrics:  metrics.OrNoop(m),
	}
}

// run holds the state of one pass. Nothing in it outlives Run.
type run struct {
	*Orchestrator
	journal  *journal.Journal
	resolver *layout.Resolver
	session  *staging.Session
	exclude  []string
	report   *Report

	// profiled caches, per pool, whether the estimator has a profile for it
	profiled map[string]bool
}

// Run reconciles the tree below root.
//
// The returned error is non-nil only for session-level failures or when ctx
// is cancelled; the report is returned in every case where the walk started.
func (o *Orchestrator) Run(ctx context.Context, root string) (report *Report, err error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("invalid root %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("invalid root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("invalid root %s: %w", abs, syscall.ENOTDIR)
	}

	session, err := staging.NewSession(o.opts.ScratchRoot, o.accessor, o.metrics)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			logger.Error("Failed to remove session root: %v", cerr)
			err = errors.Join(err, cerr)
		}
	}()

	same, err := session.SameDevice(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to compare filesystems: %w", err)
	}
	if !same {
		return nil, fmt.Errorf("%w: %s vs %s", ErrCrossDevice, o.opts.ScratchRoot, abs)
	}

	r := &run{
		Orchestrator: o,
		journal:      o.journal,
		resolver:     layout.NewResolver(o.accessor, o.metrics),
		session:      session,
		exclude:      o.exclusions(abs, session.Root()),
		profiled:     make(map[string]bool),
		report:       &Report{Root: abs, DryRun: o.opts.DryRun},
	}

	if r.journal != nil {
		id, err := r.journal.NewRun()
		if err != nil {
			logger.Warn("Journal unavailable, continuing without it: %v", err)
			r.journal = nil
		} else {
			r.report.RunID = id
		}
	}

	logger.Info("Starting scan of %s (policy=%s dry_run=%v)", abs, o.opts.Policy, o.opts.DryRun)

	if err := r.walk(ctx, abs); err != nil {
		return r.report, err
	}
	return r.report, nil
}

// exclusions returns the cleaned absolute prefixes that are never scanned:
// the configured ones, this run's session root, and the scratch root when it
// lies strictly below the walk root. A scratch root at or above the walk root
// is not excluded, or it would prune the whole tree.
func (o *Orchestrator) exclusions(root, sessionRoot string) []string {
	var out []string
	add := func(p string) {
		if p == "" {
			return
		}
		if abs, err := filepath.Abs(p); err == nil {
			out = append(out, abs)
		}
	}

	add(sessionRoot)
	if scratch, err := filepath.Abs(o.opts.ScratchRoot); err == nil && within(scratch, root) {
		add(scratch)
	}
	for _, p := range o.opts.Exclude {
		add(p)
	}
	return out
}

// within reports whether path lies strictly below dir.
func within(path, dir string) bool {
	return strings.HasPrefix(path, strings.TrimSuffix(dir, "/")+"/")
}

func (r *run) excluded(path string) bool {
	for _, p := range r.exclude {
		if path == p || within(path, p) {
			return true
		}
	}
	return false
}

// walk visits dir's subdirectories first, then dir itself. Symlinks to
// directories are not followed.
func (r *run) walk(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if r.excluded(dir) {
		logger.Info("Skipping excluded %s", dir)
		r.report.Excluded++
		r.record(journal.Entry{Path: dir, Outcome: journal.OutcomeSkip, Reason: ReasonExcluded})
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		r.fail(dir, ReasonUnreadableDir, err)
		return nil
	}

	var files []os.DirEntry
	for _, entry := range entries {
		if entry.IsDir() {
			if err := r.walk(ctx, filepath.Join(dir, entry.Name())); err != nil {
				return err
			}
			continue
		}
		files = append(files, entry)
	}

	return r.processDirectory(ctx, dir, files)
}

func (r *run) processDirectory(ctx context.Context, dir string, files []os.DirEntry) error {
	r.report.Directories++
	logger.Info("Looking at %s", dir)
	logger.Info("## Total savings so far: %s ##", FormatBytes(r.report.Savings))

	dirLayout, err := r.resolver.Resolve(dir)
	if err != nil {
		r.fail(dir, ReasonUnreadableLayout, err)
		return nil
	}
	if dirLayout == nil {
		logger.Warn("No layout found for %s or any parent, skipping %d entries", dir, len(files))
		r.report.SkippedNoLayout++
		r.record(journal.Entry{Path: dir, Outcome: journal.OutcomeSkip, Reason: ReasonNoLayout})
		return nil
	}
	logger.Info("Layout for %s: %s", dir, dirLayout)

	for _, entry := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.processFile(ctx, filepath.Join(dir, entry.Name()), *dirLayout)
	}
	return nil
}

func (r *run) processFile(ctx context.Context, path string, dirLayout layout.Layout) {
	r.report.Files++

	info, err := os.Lstat(path)
	if err != nil {
		r.fail(path, ReasonStat, err)
		return
	}
	if !info.Mode().IsRegular() {
		logger.Debug("Skipping %s: not a regular file", path)
		r.report.SkippedNotRegular++
		r.skip(path, ReasonNotRegular)
		return
	}

	if n := linkCount(info); n > 1 {
		logger.Info("Skipping %s due to multiple hard links (%d)", path, n)
		r.report.SkippedMultiLink++
		r.skip(path, ReasonMultiLink)
		return
	}

	fileLayout, err := r.resolver.Resolve(path)
	if err != nil {
		r.fail(path, ReasonUnreadableLayout, err)
		return
	}
	if fileLayout == nil {
		logger.Debug("Skipping %s: no layout recorded", path)
		r.report.SkippedUnplaced++
		r.skip(path, ReasonUnplaced)
		return
	}

	if !r.opts.Policy.NeedsRelayout(*fileLayout, dirLayout) {
		r.report.InPlace++
		r.metrics.RecordFile(string(journal.OutcomeInPlace), "")
		r.record(journal.Entry{Path: path, Outcome: journal.OutcomeInPlace, Size: info.Size(), From: fileLayout})
		return
	}

	r.report.Mismatched++
	logger.Info("File layout of %s doesn't match dir layout: %s", path, fileLayout)
	r.checkProfiles(fileLayout.Pool, dirLayout.Pool)

	if r.opts.DryRun {
		estimate := r.executor.Estimator().Estimate(info.Size(), fileLayout.Pool, dirLayout.Pool)
		r.report.Savings += estimate
		logger.Info("Would relayout %s to %s, saving %s", path, dirLayout, FormatBytes(estimate))
		r.metrics.RecordFile(string(journal.OutcomeMismatch), "")
		r.record(journal.Entry{
			Path: path, Outcome: journal.OutcomeMismatch, Size: info.Size(),
			From: fileLayout, To: &dirLayout, Savings: estimate,
		})
		return
	}

	stagingDir, err := r.session.ForLayout(dirLayout)
	if err != nil {
		r.fail(path, ReasonStaging, err)
		return
	}

	result, err := r.executor.Relayout(ctx, relayout.Request{
		Path:       path,
		Current:    *fileLayout,
		Target:     dirLayout,
		StagingDir: stagingDir,
	})
	if err != nil {
		r.fail(path, failureReason(err), err)
		return
	}

	r.report.Relayouted++
	r.report.BytesCopied += result.BytesCopied
	r.report.Savings += result.Savings
	logger.Info("Relayouted %s to %s, saved %s", path, dirLayout, FormatBytes(result.Savings))

	r.metrics.RecordFile(string(journal.OutcomeRelayout), "")
	r.record(journal.Entry{
		Path: path, Outcome: journal.OutcomeRelayout, Size: info.Size(),
		From: fileLayout, To: &dirLayout, Savings: result.Savings,
	})
}

// checkProfiles warns once per pool that has no redundancy profile. Savings
// involving such a pool are computed with the default profile, so a move
// between two of them always estimates zero.
func (r *run) checkProfiles(pools ...string) {
	est := r.executor.Estimator()
	for _, pool := range pools {
		if _, seen := r.profiled[pool]; seen {
			continue
		}
		_, ok := est.Lookup(pool)
		r.profiled[pool] = ok
		if ok {
			continue
		}
		logger.Warn("No redundancy profile for pool %s, savings estimates assume %d+%d",
			pool, est.Default.DataChunks, est.Default.CodingChunks)
		r.report.UnprofiledPools = append(r.report.UnprofiledPools, pool)
	}
}

func (r *run) skip(path, reason string) {
	r.metrics.RecordFile(string(journal.OutcomeSkip), reason)
	r.record(journal.Entry{Path: path, Outcome: journal.OutcomeSkip, Reason: reason})
}

func (r *run) fail(path, reason string, err error) {
	logger.Error("Failed on %s (%s): %v", path, reason, err)
	r.report.Failed++
	r.report.Failures = append(r.report.Failures, Failure{Path: path, Reason: reason, Err: err})
	r.metrics.RecordFile(string(journal.OutcomeFailed), reason)
	r.record(journal.Entry{Path: path, Outcome: journal.OutcomeFailed, Reason: reason + ": " + err.Error()})
}

// record writes to the journal. A journal failure is logged and otherwise
// ignored; it never stops a run.
func (r *run) record(e journal.Entry) {
	if r.journal == nil {
		return
	}
	if err := r.journal.Record(e); err != nil {
		logger.Warn("Failed to journal %s: %v", e.Path, err)
	}
}

func failureReason(err error) string {
	var placement *relayout.PlacementError
	switch {
	case errors.As(err, &placement):
		return ReasonPlacement
	case errors.Is(err, relayout.ErrSourceChanged):
		return ReasonChanged
	case errors.Is(err, relayout.ErrMultiLink):
		return ReasonMultiLink
	default:
		return ReasonRelayout
	}
}

func linkCount(info os.FileInfo) uint64 {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return uint64(st.Nlink)
	}
	return 1
}
