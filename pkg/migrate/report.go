package migrate

import (
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/marmos91/cephfs-relayout/internal/logger"
)

// Skip and failure reasons. They appear in logs, the journal and metrics.
const (
	ReasonMultiLink        = "multi-link"
	ReasonUnplaced         = "unplaced"
	ReasonNoLayout         = "no layout"
	ReasonNotRegular       = "not regular"
	ReasonExcluded         = "excluded"
	ReasonUnreadableDir    = "unreadable directory"
	ReasonUnreadableLayout = "unreadable layout"
	ReasonStat             = "stat failed"
	ReasonStaging          = "staging failed"
	ReasonPlacement        = "placement not applied"
	ReasonChanged          = "changed during copy"
	ReasonRelayout         = "relayout failed"
)

// Failure is a path the run could not fix.
type Failure struct {
	Path   string
	Reason string
	Err    error
}

// Report aggregates the outcome of a run.
type Report struct {
	// Root is the absolute path that was scanned
	Root string

	// RunID identifies the run in the journal (empty without a journal)
	RunID string

	// DryRun is true when no file was modified
	DryRun bool

	Directories int
	Files       int

	// InPlace files already matched their directory's layout
	InPlace int

	// Mismatched files differed from their directory's layout
	Mismatched int

	// Relayouted files were rewritten successfully
	Relayouted int

	SkippedMultiLink  int
	SkippedUnplaced   int
	SkippedNotRegular int
	SkippedNoLayout   int
	Excluded          int
	Failed            int

	// BytesCopied is the amount of data rewritten
	BytesCopied int64

	// Savings is the summed raw-storage estimate, negative when the run
	// used more space. In a dry run it is the projected figure.
	Savings int64

	// Failures lists every path that was not fixed because of an error
	Failures []Failure

	// UnprofiledPools lists the pools, in discovery order, that had no
	// configured redundancy profile. Savings involving them used the default.
	UnprofiledPools []string
}

// Log writes the summary at INFO level, and every failure at WARN level.
func (r *Report) Log() {
	if r.DryRun {
		logger.Info("Dry run of %s: %d mismatched files, would save %s", r.Root, r.Mismatched, FormatBytes(r.Savings))
	} else {
		logger.Info("Saved space in total: %s (%d files relayouted, %s rewritten)",
			FormatBytes(r.Savings), r.Relayouted, humanize.Bytes(uint64(r.BytesCopied)))
	}
	logger.Info("Scanned %d directories, %d files: %d in place, %d mismatched",
		r.Directories, r.Files, r.InPlace, r.Mismatched)
	logger.Info("Skipped: %d multi-link, %d unplaced, %d not regular, %d in directories without layout, %d excluded",
		r.SkippedMultiLink, r.SkippedUnplaced, r.SkippedNotRegular, r.SkippedNoLayout, r.Excluded)

	if len(r.UnprofiledPools) > 0 {
		logger.Warn("Savings for pools without a redundancy profile used the default profile: %s",
			strings.Join(r.UnprofiledPools, ", "))
	}

	if r.Failed > 0 {
		logger.Warn("Failed: %d", r.Failed)
		for _, f := range r.Failures {
			logger.Warn("  %s: %s: %v", f.Path, f.Reason, f.Err)
		}
	}
}

// FormatBytes renders a signed byte count the way humanize does unsigned ones.
func FormatBytes(n int64) string {
	if n < 0 {
		return "-" + humanize.Bytes(uint64(-n))
	}
	return humanize.Bytes(uint64(n))
}
