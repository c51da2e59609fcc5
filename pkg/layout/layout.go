// Package layout models CephFS file and directory layouts and the means of
// reading them from (and writing them to) the filesystem.
//
// A layout decides how a file's data is chunked into RADOS objects and which
// data pool holds those objects. CephFS exposes it as a virtual extended
// attribute:
//
//	ceph.dir.layout  = "stripe_unit=4194304 stripe_count=1 object_size=4194304 pool=cephfs_data"
//	ceph.file.layout = same encoding, fixed when the file is created
//
// A new file takes the effective layout of its parent directory at creation
// time and keeps it for life. Rewriting the data into a directory that carries
// a different layout is therefore the only way to move an existing file.
package layout

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind selects which layout attribute namespace applies to a path.
type Kind int

const (
	// KindFile reads the per-file attribute (ceph.file.layout)
	KindFile Kind = iota

	// KindDir reads the per-directory attribute (ceph.dir.layout)
	KindDir
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	default:
		return "unknown"
	}
}

// Layout is the placement descriptor of a file or directory.
//
// Layout is a plain comparable value: two layouts are equal when all three
// fields are equal, and a Layout can be used directly as a map key.
// stripe_unit is not part of the model.
type Layout struct {
	// StripeCount is the number of objects a stripe is spread over
	StripeCount int64 `json:"stripe_count" yaml:"stripe_count"`

	// ObjectSize is the size in bytes of each RADOS object
	ObjectSize int64 `json:"object_size" yaml:"object_size"`

	// Pool is the data pool holding the objects
	Pool string `json:"pool" yaml:"pool"`
}

// SamePool reports whether both layouts place data in the same pool,
// ignoring striping parameters.
func (l Layout) SamePool(other Layout) bool {
	return l.Pool == other.Pool
}

// Field is a single named layout attribute, as written to a directory.
type Field struct {
	Name  string
	Value string
}

// Fields returns the layout attributes in the order they are written to a
// staging directory.
func (l Layout) Fields() []Field {
	return []Field{
		{Name: "stripe_count", Value: strconv.FormatInt(l.StripeCount, 10)},
		{Name: "object_size", Value: strconv.FormatInt(l.ObjectSize, 10)},
		{Name: "pool", Value: l.Pool},
	}
}

func (l Layout) String() string {
	return fmt.Sprintf("stripe_count=%d object_size=%d pool=%s", l.StripeCount, l.ObjectSize, l.Pool)
}

// Parse decodes the key=value token encoding of a layout attribute.
//
// Accepted keys are stripe_unit (parsed, then dropped), stripe_count,
// object_size and pool. Anything else is rejected: an unknown key, a token
// with no '=', a repeated key, a missing required key or a non-numeric
// integer field all yield a *ParseError.
func Parse(text string) (Layout, error) {
	trimmed := strings.Trim(text, "'\" \t\r\n\x00")

	var (
		l    Layout
		seen = make(map[string]bool, 4)
	)

	for _, token := range strings.Fields(trimmed) {
		key, value, ok := strings.Cut(token, "=")
		if !ok {
			return Layout{}, &ParseError{Text: text, Reason: fmt.Sprintf("token %q has no '=' separator", token)}
		}
		if seen[key] {
			return Layout{}, &ParseError{Text: text, Reason: fmt.Sprintf("duplicate key %q", key)}
		}
		seen[key] = true

		switch key {
		case "stripe_unit":
			if _, err := parseInt(key, value); err != nil {
				return Layout{}, &ParseError{Text: text, Reason: err.Error()}
			}
		case "stripe_count":
			n, err := parseInt(key, value)
			if err != nil {
				return Layout{}, &ParseError{Text: text, Reason: err.Error()}
			}
			l.StripeCount = n
		case "object_size":
			n, err := parseInt(key, value)
			if err != nil {
				return Layout{}, &ParseError{Text: text, Reason: err.Error()}
			}
			l.ObjectSize = n
		case "pool":
			if value == "" {
				return Layout{}, &ParseError{Text: text, Reason: "empty pool"}
			}
			l.Pool = value
		default:
			return Layout{}, &ParseError{Text: text, Reason: fmt.Sprintf("unexpected key %q", key)}
		}
	}

	for _, required := range []string{"stripe_count", "object_size", "pool"} {
		if !seen[required] {
			return Layout{}, &ParseError{Text: text, Reason: fmt.Sprintf("missing %s", required)}
		}
	}

	return l, nil
}

func parseInt(key, value string) (int64, error) {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", key, value)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s: %d must be positive", key, n)
	}
	return n, nil
}
