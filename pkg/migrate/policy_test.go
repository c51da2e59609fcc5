package migrate

import (
	"testing"

	"github.com/marmos91/cephfs-relayout/pkg/layout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		name    string
		want    Policy
		wantErr bool
	}{
		{"", PolicyLayout, false},
		{"layout", PolicyLayout, false},
		{"pool", PolicyPool, false},
		{"Pool", "", true},
		{"stripe", "", true},
	}

	for _, tt := range tests {
		got, err := ParsePolicy(tt.name)
		if tt.wantErr {
			assert.Error(t, err, "ParsePolicy(%q)", tt.name)
			continue
		}
		require.NoError(t, err, "ParsePolicy(%q)", tt.name)
		assert.Equal(t, tt.want, got)
	}
}

func TestNeedsRelayout(t *testing.T) {
	dir := layout.Layout{StripeCount: 1, ObjectSize: 4194304, Pool: "a"}

	wide := dir
	wide.StripeCount = 8
	small := dir
	small.ObjectSize = 65536
	moved := dir
	moved.Pool = "b"

	tests := []struct {
		name   string
		file   layout.Layout
		layout bool
		pool   bool
	}{
		{"Identical", dir, false, false},
		{"StripeCount", wide, true, false},
		{"ObjectSize", small, true, false},
		{"Pool", moved, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.layout, PolicyLayout.NeedsRelayout(tt.file, dir))
			assert.Equal(t, tt.pool, PolicyPool.NeedsRelayout(tt.file, dir))
		})
	}
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "0 B", FormatBytes(0))
	assert.Equal(t, "1.5 kB", FormatBytes(1500))
	assert.Equal(t, "-1.5 kB", FormatBytes(-1500))
}
