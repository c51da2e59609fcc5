package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/marmos91/cephfs-relayout/pkg/relayout"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config represents the complete relayout configuration.
//
// This structure captures all configurable aspects of a relayout run including:
//   - Logging configuration
//   - Scratch space for staging copies
//   - Mismatch policy and exclusions
//   - Copy throttling
//   - Layout attribute access (backend-specific)
//   - Pool redundancy profiles for savings estimates
//   - Audit journal and metrics output
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (RELAYOUT_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Scratch configures where staging copies are written
	Scratch ScratchConfig `mapstructure:"scratch" yaml:"scratch"`

	// Policy decides which files are rewritten
	Policy PolicyConfig `mapstructure:"policy" yaml:"policy"`

	// Relayout tunes the copy itself
	Relayout RelayoutConfig `mapstructure:"relayout" yaml:"relayout"`

	// Accessor selects how layout attributes are read and written
	Accessor AccessorConfig `mapstructure:"accessor" yaml:"accessor"`

	// Savings describes pool redundancy for the space estimate
	Savings SavingsConfig `mapstructure:"savings" yaml:"savings"`

	// Journal configures the audit journal
	Journal JournalConfig `mapstructure:"journal" yaml:"journal"`

	// Metrics configures Prometheus textfile output
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// ScratchConfig configures the scratch space.
type ScratchConfig struct {
	// Root is the directory under which each run creates its session root.
	// It must be on the same filesystem as the trees being reconciled.
	Root string `mapstructure:"root" yaml:"root" validate:"required"`
}

// PolicyConfig decides which files are rewritten.
type PolicyConfig struct {
	// Mode is the mismatch policy
	// Valid values: layout (any difference), pool (pool difference only)
	Mode string `mapstructure:"mode" yaml:"mode" validate:"required,oneof=layout pool"`

	// DryRun reports mismatches without rewriting anything
	DryRun bool `mapstructure:"dry_run" yaml:"dry_run"`

	// Exclude lists absolute path prefixes that are never scanned
	Exclude []string `mapstructure:"exclude" yaml:"exclude" validate:"dive,startswith=/"`
}

// RelayoutConfig tunes the copy.
type RelayoutConfig struct {
	// MaxBytesPerSecond caps copy throughput (0 = unlimited)
	MaxBytesPerSecond uint64 `mapstructure:"max_bytes_per_second" yaml:"max_bytes_per_second"`

	// Burst is the token bucket size in bytes (0 = one second worth)
	Burst uint64 `mapstructure:"burst" yaml:"burst"`
}

// AccessorConfig specifies how layout attributes are accessed.
//
// The Type field determines which implementation is used.
// Only the corresponding type-specific configuration section is used.
type AccessorConfig struct {
	// Type specifies which accessor implementation to use
	// Valid values: xattr
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=xattr"`

	// Xattr contains extended-attribute-specific configuration
	// Only used when Type = "xattr"
	Xattr map[string]any `mapstructure:"xattr" yaml:"xattr"`
}

// SavingsConfig describes pool redundancy profiles.
type SavingsConfig struct {
	// DefaultProfile applies to pools missing from Pools
	DefaultProfile relayout.Profile `mapstructure:"default_profile" yaml:"default_profile"`

	// Pools maps pool names to their profiles
	Pools map[string]relayout.Profile `mapstructure:"pools" yaml:"pools" validate:"dive"`
}

// JournalConfig configures the audit journal.
type JournalConfig struct {
	// Path is the BadgerDB directory; empty disables the journal
	Path string `mapstructure:"path" yaml:"path"`
}

// MetricsConfig configures metrics output.
type MetricsConfig struct {
	// Enabled turns on metrics collection
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Textfile is written at the end of the run, for the node-exporter
	// textfile collector
	Textfile string `mapstructure:"textfile" yaml:"textfile"`
}

// flagKeys maps CLI flag names to configuration keys.
var flagKeys = map[string]string{
	"scratch":              "scratch.root",
	"policy":               "policy.mode",
	"dry-run":              "policy.dry_run",
	"exclude":              "policy.exclude",
	"max-bytes-per-second": "relayout.max_bytes_per_second",
	"journal":              "journal.path",
	"metrics-textfile":     "metrics.textfile",
	"log-level":            "logging.level",
}

// envKeys are bound explicitly so environment variables apply even when no
// config file mentions the key.
var envKeys = []string{
	"logging.level",
	"logging.format",
	"logging.output",
	"scratch.root",
	"policy.mode",
	"policy.dry_run",
	"relayout.max_bytes_per_second",
	"relayout.burst",
	"accessor.type",
	"journal.path",
	"metrics.enabled",
	"metrics.textfile",
}

// Load loads configuration from file, environment, flags and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Flags that were set on the command line
//  2. Environment variables (RELAYOUT_*)
//  3. Configuration file
//  4. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//   - flags: Parsed command line flags (may be nil)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Configure viper
	if err := setupViper(v, configPath, flags); err != nil {
		return nil, err
	}

	// Read configuration file if it exists
	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	// Unmarshal into config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply defaults for any missing values
	ApplyDefaults(&cfg)

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables, flags and config
// file settings.
func setupViper(v *viper.Viper, configPath string, flags *pflag.FlagSet) error {
	// Environment variables use RELAYOUT_ prefix and underscores
	// Example: RELAYOUT_SCRATCH_ROOT=/mnt/cephfs/tmp
	v.SetEnvPrefix("RELAYOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind environment for %s: %w", key, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("failed to bind flag --%s: %w", name, err)
			}
		}
	}

	// Configure config file search
	if configPath != "" {
		// Use explicitly specified config file
		v.SetConfigFile(configPath)
	} else {
		// Use default location: $XDG_CONFIG_HOME/relayout/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml") // Primary format
	}
	return nil
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		// Config file not found is acceptable - use defaults
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "relayout")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "relayout")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
