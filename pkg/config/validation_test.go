package config

import (
	"strings"
	"testing"

	"github.com/marmos91/cephfs-relayout/pkg/relayout"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:   "Defaults",
			mutate: func(cfg *Config) {},
		},
		{
			name:    "InvalidLogLevel",
			mutate:  func(cfg *Config) { cfg.Logging.Level = "TRACE" },
			wantErr: "Level",
		},
		{
			name:    "InvalidLogFormat",
			mutate:  func(cfg *Config) { cfg.Logging.Format = "xml" },
			wantErr: "Format",
		},
		{
			name:    "UnknownPolicy",
			mutate:  func(cfg *Config) { cfg.Policy.Mode = "stripes" },
			wantErr: "Mode",
		},
		{
			name:    "RelativeExclude",
			mutate:  func(cfg *Config) { cfg.Policy.Exclude = []string{"archive"} },
			wantErr: "Exclude",
		},
		{
			name:    "RelativeScratchRoot",
			mutate:  func(cfg *Config) { cfg.Scratch.Root = "tmp" },
			wantErr: "scratch.root",
		},
		{
			name:    "UnknownAccessor",
			mutate:  func(cfg *Config) { cfg.Accessor.Type = "rados" },
			wantErr: "Type",
		},
		{
			name: "ZeroDataChunks",
			mutate: func(cfg *Config) {
				cfg.Savings.Pools["broken"] = relayout.Profile{DataChunks: 0, CodingChunks: 2}
			},
			wantErr: "DataChunks",
		},
		{
			name:    "NegativeCodingChunks",
			mutate:  func(cfg *Config) { cfg.Savings.DefaultProfile.CodingChunks = -1 },
			wantErr: "CodingChunks",
		},
		{
			name:    "MetricsWithoutTextfile",
			mutate:  func(cfg *Config) { cfg.Metrics.Enabled = true },
			wantErr: "textfile",
		},
		{
			name:    "BurstWithoutRate",
			mutate:  func(cfg *Config) { cfg.Relayout.Burst = 1024 },
			wantErr: "burst",
		},
		{
			name: "ThrottledCopy",
			mutate: func(cfg *Config) {
				cfg.Relayout.MaxBytesPerSecond = 100 << 20
				cfg.Relayout.Burst = 8 << 20
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected valid config, got: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}
