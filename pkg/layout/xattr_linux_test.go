//go:build linux

package layout

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// Ordinary filesystems don't expose ceph.* attributes, so these tests point
// the accessor at user.* names instead.
func userXattrAccessor(t *testing.T) (*XattrAccessor, string) {
	t.Helper()
	dir := t.TempDir()
	if err := unix.Setxattr(dir, "user.relayout.check", []byte("1"), 0); err != nil {
		t.Skipf("user extended attributes not supported here: %v", err)
	}
	return NewXattrAccessor(XattrOptions{
		DirAttr:  "user.relayout.dir",
		FileAttr: "user.relayout.file",
	}), dir
}

func TestNewXattrAccessorDefaults(t *testing.T) {
	a := NewXattrAccessor(XattrOptions{})
	assert.Equal(t, DefaultDirAttr, a.opts.attrName(KindDir))
	assert.Equal(t, DefaultFileAttr, a.opts.attrName(KindFile))
}

func TestXattrAccessorRead(t *testing.T) {
	a, dir := userXattrAccessor(t)

	t.Run("AbsentAttribute", func(t *testing.T) {
		got, err := a.Read(dir, KindDir)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("DirectoryLayout", func(t *testing.T) {
		sub := filepath.Join(dir, "labeled")
		require.NoError(t, os.Mkdir(sub, 0755))
		require.NoError(t, unix.Setxattr(sub, "user.relayout.dir",
			[]byte("stripe_unit=4194304 stripe_count=1 object_size=4194304 pool=cephfs_data"), 0))

		got, err := a.Read(sub, KindDir)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, Layout{StripeCount: 1, ObjectSize: 4194304, Pool: "cephfs_data"}, *got)
	})

	t.Run("FileLayoutUsesFileAttribute", func(t *testing.T) {
		path := filepath.Join(dir, "f")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
		require.NoError(t, unix.Setxattr(path, "user.relayout.dir",
			[]byte("stripe_count=1 object_size=1 pool=wrong"), 0))
		require.NoError(t, unix.Setxattr(path, "user.relayout.file",
			[]byte("stripe_count=2 object_size=65536 pool=right"), 0))

		got, err := a.Read(path, KindFile)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "right", got.Pool)
	})

	t.Run("MalformedAttribute", func(t *testing.T) {
		path := filepath.Join(dir, "bad")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
		require.NoError(t, unix.Setxattr(path, "user.relayout.file", []byte("garbage"), 0))

		_, err := a.Read(path, KindFile)
		var perr *ParseError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, path, perr.Path)
	})

	t.Run("MissingPath", func(t *testing.T) {
		_, err := a.Read(filepath.Join(dir, "gone"), KindFile)
		assert.ErrorIs(t, err, unix.ENOENT)
	})
}

func TestXattrAccessorWrite(t *testing.T) {
	a, dir := userXattrAccessor(t)

	l := Layout{StripeCount: 2, ObjectSize: 8388608, Pool: "ec42"}
	require.NoError(t, a.Write(dir, l))

	for _, f := range l.Fields() {
		got, err := getxattr(dir, "user.relayout.dir."+f.Name)
		require.NoError(t, err)
		assert.Equal(t, f.Value, string(got))
	}
}

func TestGetxattrGrowsBuffer(t *testing.T) {
	_, dir := userXattrAccessor(t)

	long := make([]byte, 1000)
	for i := range long {
		long[i] = 'a'
	}
	require.NoError(t, unix.Setxattr(dir, "user.relayout.long", long, 0))

	got, err := getxattr(dir, "user.relayout.long")
	require.NoError(t, err)
	assert.Equal(t, long, got)
}
