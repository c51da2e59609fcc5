package config

import (
	"strings"

	"github.com/marmos91/cephfs-relayout/pkg/layout"
	"github.com/marmos91/cephfs-relayout/pkg/relayout"
)

// DefaultScratchRoot is where session roots are created when nothing else is
// configured.
const DefaultScratchRoot = "/c/tmp"

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyScratchDefaults(&cfg.Scratch)
	applyPolicyDefaults(&cfg.Policy)
	applyAccessorDefaults(&cfg.Accessor)
	applySavingsDefaults(&cfg.Savings)
	applyMetricsDefaults(&cfg.Metrics)

	// Relayout: 0 means unlimited, nothing to fill in
	// Journal: an empty path disables it
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyScratchDefaults(cfg *ScratchConfig) {
	if cfg.Root == "" {
		cfg.Root = DefaultScratchRoot
	}
}

func applyPolicyDefaults(cfg *PolicyConfig) {
	if cfg.Mode == "" {
		cfg.Mode = "layout"
	}
	cfg.Mode = strings.ToLower(cfg.Mode)

	if cfg.Exclude == nil {
		cfg.Exclude = []string{}
	}
}

// applyAccessorDefaults sets accessor defaults.
func applyAccessorDefaults(cfg *AccessorConfig) {
	if cfg.Type == "" {
		cfg.Type = "xattr"
	}

	if cfg.Xattr == nil {
		cfg.Xattr = make(map[string]any)
	}

	// Apply defaults for the attribute names (for config file generation)
	if _, ok := cfg.Xattr["dir_attr"]; !ok {
		cfg.Xattr["dir_attr"] = layout.DefaultDirAttr
	}
	if _, ok := cfg.Xattr["file_attr"]; !ok {
		cfg.Xattr["file_attr"] = layout.DefaultFileAttr
	}
}

// applySavingsDefaults sets the default redundancy profile to 3x replication.
func applySavingsDefaults(cfg *SavingsConfig) {
	if cfg.DefaultProfile.DataChunks == 0 && cfg.DefaultProfile.CodingChunks == 0 {
		cfg.DefaultProfile = relayout.Profile{DataChunks: 1, CodingChunks: 2}
	}
	if cfg.Pools == nil {
		cfg.Pools = make(map[string]relayout.Profile)
	}
}

// applyMetricsDefaults enables metrics when a textfile is given.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Textfile != "" {
		cfg.Enabled = true
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
