package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_DefaultConfig(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
logging:
  level: "info"

scratch:
  root: "/mnt/cephfs/tmp"
`)

	cfg, err := Load(configPath, nil)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected level normalized to 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Scratch.Root != "/mnt/cephfs/tmp" {
		t.Errorf("Expected scratch root from file, got %q", cfg.Scratch.Root)
	}
	if cfg.Policy.Mode != "layout" {
		t.Errorf("Expected default policy 'layout', got %q", cfg.Policy.Mode)
	}
	if cfg.Accessor.Type != "xattr" {
		t.Errorf("Expected default accessor 'xattr', got %q", cfg.Accessor.Type)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// Use a non-existent path so the user's own config is never picked up
	nonExistentPath := filepath.Join(t.TempDir(), "nonexistent.yaml")

	cfg, err := Load(nonExistentPath, nil)
	if err != nil {
		t.Fatalf("Expected no error with missing config file, got: %v", err)
	}

	if cfg.Scratch.Root != DefaultScratchRoot {
		t.Errorf("Expected default scratch root %q, got %q", DefaultScratchRoot, cfg.Scratch.Root)
	}
	if cfg.Savings.DefaultProfile.DataChunks != 1 || cfg.Savings.DefaultProfile.CodingChunks != 2 {
		t.Errorf("Expected 3x replication default profile, got %+v", cfg.Savings.DefaultProfile)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "invalid.yaml", `
logging:
  level: INFO
  invalid yaml here [[[
`)

	if _, err := Load(configPath, nil); err == nil {
		t.Fatal("Expected error with invalid YAML, got nil")
	}
}

func TestLoad_TOML(t *testing.T) {
	configPath := writeConfig(t, "config.toml", `
[logging]
level = "WARN"
format = "json"

[policy]
mode = "pool"
exclude = ["/c/archive"]

[savings.pools.ec42]
data_chunks = 4
coding_chunks = 2
`)

	cfg, err := Load(configPath, nil)
	if err != nil {
		t.Fatalf("Failed to load TOML config: %v", err)
	}

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format 'json', got %q", cfg.Logging.Format)
	}
	if cfg.Policy.Mode != "pool" {
		t.Errorf("Expected policy 'pool', got %q", cfg.Policy.Mode)
	}
	if len(cfg.Policy.Exclude) != 1 || cfg.Policy.Exclude[0] != "/c/archive" {
		t.Errorf("Expected exclude [/c/archive], got %v", cfg.Policy.Exclude)
	}
	if p, ok := cfg.Savings.Pools["ec42"]; !ok || p.DataChunks != 4 || p.CodingChunks != 2 {
		t.Errorf("Expected ec42 profile 4+2, got %+v (present=%v)", p, ok)
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
policy:
  mode: "stripes"
`)

	if _, err := Load(configPath, nil); err == nil {
		t.Fatal("Expected validation error for unknown policy, got nil")
	}
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
scratch:
  root: "/from/file"
`)

	t.Setenv("RELAYOUT_SCRATCH_ROOT", "/from/env")
	t.Setenv("RELAYOUT_JOURNAL_PATH", "/var/lib/relayout/journal")

	cfg, err := Load(configPath, nil)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Scratch.Root != "/from/env" {
		t.Errorf("Expected env to override file, got %q", cfg.Scratch.Root)
	}
	if cfg.Journal.Path != "/var/lib/relayout/journal" {
		t.Errorf("Expected journal path from env, got %q", cfg.Journal.Path)
	}
}

func TestLoad_FlagOverride(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
scratch:
  root: "/from/file"
policy:
  dry_run: true
`)
	t.Setenv("RELAYOUT_SCRATCH_ROOT", "/from/env")

	flags := pflag.NewFlagSet("relayout", pflag.ContinueOnError)
	flags.String("scratch", "", "")
	flags.String("policy", "", "")
	flags.Bool("dry-run", false, "")
	flags.Uint64("max-bytes-per-second", 0, "")
	if err := flags.Parse([]string{"--scratch", "/from/flag", "--max-bytes-per-second", "1048576"}); err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}

	cfg, err := Load(configPath, flags)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Scratch.Root != "/from/flag" {
		t.Errorf("Expected flag to override env and file, got %q", cfg.Scratch.Root)
	}
	if !cfg.Policy.DryRun {
		t.Error("Expected unset flag to keep dry_run from file")
	}
	if cfg.Policy.Mode != "layout" {
		t.Errorf("Expected unset flag to keep default policy, got %q", cfg.Policy.Mode)
	}
	if cfg.Relayout.MaxBytesPerSecond != 1048576 {
		t.Errorf("Expected max_bytes_per_second 1048576, got %d", cfg.Relayout.MaxBytesPerSecond)
	}
}

func TestGetConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")

	if got := getConfigDir(); got != "/xdg/relayout" {
		t.Errorf("Expected /xdg/relayout, got %q", got)
	}
	if got := GetDefaultConfigPath(); got != "/xdg/relayout/config.yaml" {
		t.Errorf("Expected /xdg/relayout/config.yaml, got %q", got)
	}
}
