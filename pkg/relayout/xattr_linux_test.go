//go:build linux

package relayout

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// setUserXattr sets a user.* attribute, skipping the test when the
// filesystem under t.TempDir() does not support them.
func setUserXattr(t *testing.T, path, name string, value []byte) {
	t.Helper()
	err := unix.Setxattr(path, name, value, 0)
	if errors.Is(err, unix.ENOTSUP) || errors.Is(err, unix.EPERM) {
		t.Skipf("user xattrs not supported here: %v", err)
	}
	require.NoError(t, err)
}

func TestRelayoutCarriesExtendedAttributes(t *testing.T) {
	f := newFixture(t)
	long := []byte(strings.Repeat("v", 1000))
	setUserXattr(t, f.path, "user.owner_tag", []byte("keep-me"))
	setUserXattr(t, f.path, "user.long", long)
	setUserXattr(t, f.path, "user.empty", []byte{})

	_, err := f.exec.Relayout(context.Background(), f.request())
	require.NoError(t, err)

	got, err := lgetxattr(f.path, "user.owner_tag")
	require.NoError(t, err)
	assert.Equal(t, "keep-me", string(got))

	got, err = lgetxattr(f.path, "user.long")
	require.NoError(t, err)
	assert.Equal(t, long, got)

	got, err = lgetxattr(f.path, "user.empty")
	require.NoError(t, err)
	assert.Empty(t, got)

	names, err := listxattr(f.path)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"user.owner_tag", "user.long", "user.empty"}, filterUser(names))
	f.assertStagingEmpty(t)
}

func TestCopyXattrsWithoutAttributes(t *testing.T) {
	f := newFixture(t)
	dst := filepath.Join(f.stagingDir, "copy")
	require.NoError(t, os.WriteFile(dst, nil, 0600))

	require.NoError(t, copyXattrs(f.path, dst))
}

func TestCopyXattrsMissingSource(t *testing.T) {
	f := newFixture(t)
	err := copyXattrs(f.path+".missing", f.stagingDir)

	var serr *StagingError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "listxattr", serr.Op)
}

func TestCarriesXattr(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"user.owner_tag", true},
		{"system.posix_acl_access", true},
		{"system.posix_acl_default", true},
		{"security.selinux", true},
		{"trusted.overlay", true},
		{"ceph.file.layout", false},
		{"ceph.file.layout.pool", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, carriesXattr(tt.name))
		})
	}
}

// filterUser drops attributes the test environment may add on its own
// (SELinux labels and the like).
func filterUser(names []string) []string {
	var out []string
	for _, n := range names {
		if strings.HasPrefix(n, "user.") {
			out = append(out, n)
		}
	}
	return out
}
