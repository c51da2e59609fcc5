package migrate

import (
	"fmt"

	"github.com/marmos91/cephfs-relayout/pkg/layout"
)

// Policy decides when a file's layout counts as drifted from its directory's.
type Policy string

const (
	// PolicyLayout relayouts on any difference: stripe count, object size or
	// pool. This is the default.
	PolicyLayout Policy = "layout"

	// PolicyPool relayouts only when the pool differs and tolerates striping
	// differences.
	PolicyPool Policy = "pool"
)

// ParsePolicy validates a policy name. The empty string selects PolicyLayout.
func ParsePolicy(name string) (Policy, error) {
	switch Policy(name) {
	case "", PolicyLayout:
		return PolicyLayout, nil
	case PolicyPool:
		return PolicyPool, nil
	default:
		return "", fmt.Errorf("unknown policy %q (want %q or %q)", name, PolicyLayout, PolicyPool)
	}
}

// NeedsRelayout reports whether a file with layout file, living in a
// directory with effective layout dir, must be rewritten.
func (p Policy) NeedsRelayout(file, dir layout.Layout) bool {
	if p == PolicyPool {
		return !file.SamePool(dir)
	}
	return file != dir
}
