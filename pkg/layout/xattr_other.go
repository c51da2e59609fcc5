//go:build !linux

package layout

// XattrAccessor is unavailable outside Linux; every call returns
// ErrUnsupported.
type XattrAccessor struct {
	opts XattrOptions
}

// NewXattrAccessor creates an accessor that always fails with ErrUnsupported.
func NewXattrAccessor(opts XattrOptions) *XattrAccessor {
	opts.applyDefaults()
	return &XattrAccessor{opts: opts}
}

// Read implements Accessor.
func (a *XattrAccessor) Read(path string, kind Kind) (*Layout, error) {
	return nil, ErrUnsupported
}

// Write implements Accessor.
func (a *XattrAccessor) Write(path string, l Layout) error {
	return ErrUnsupported
}
