package layout

// Default attribute names exposed by CephFS.
const (
	DefaultDirAttr  = "ceph.dir.layout"
	DefaultFileAttr = "ceph.file.layout"
)

// Accessor reads and writes layout attributes.
//
// Implementations:
//   - XattrAccessor: the real thing, backed by extended attributes
//   - layouttest.Simulator: an in-memory model of CephFS placement for tests
type Accessor interface {
	// Read returns the explicit layout attached to path.
	//
	// A nil layout with a nil error means the attribute is absent: for a
	// directory, look at the parent; for a file, the file has never been
	// placed. Malformed attribute text returns a *ParseError.
	Read(path string, kind Kind) (*Layout, error)

	// Write tags a directory with the given layout. Used only on freshly
	// created staging directories.
	Write(path string, l Layout) error
}

// XattrOptions configures the attribute names used by XattrAccessor.
type XattrOptions struct {
	// DirAttr is the directory layout attribute (default: ceph.dir.layout)
	DirAttr string `mapstructure:"dir_attr"`

	// FileAttr is the file layout attribute (default: ceph.file.layout)
	FileAttr string `mapstructure:"file_attr"`
}

func (o *XattrOptions) applyDefaults() {
	if o.DirAttr == "" {
		o.DirAttr = DefaultDirAttr
	}
	if o.FileAttr == "" {
		o.FileAttr = DefaultFileAttr
	}
}

// attrName returns the attribute consulted for the given kind.
func (o XattrOptions) attrName(kind Kind) string {
	if kind == KindDir {
		return o.DirAttr
	}
	return o.FileAttr
}
