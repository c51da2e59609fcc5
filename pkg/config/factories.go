package config

import (
	"fmt"
	"strings"

	"github.com/marmos91/cephfs-relayout/internal/ratelimiter"
	"github.com/marmos91/cephfs-relayout/pkg/journal"
	"github.com/marmos91/cephfs-relayout/pkg/layout"
	"github.com/marmos91/cephfs-relayout/pkg/migrate"
	"github.com/marmos91/cephfs-relayout/pkg/relayout"
	"github.com/mitchellh/mapstructure"
)

// CreateAccessor creates a layout accessor based on configuration.
//
// This factory function uses the Type field to determine which implementation
// to create, then decodes the type-specific configuration from the
// corresponding map and passes it to the constructor.
//
// Supported types:
//   - "xattr": Uses extended attributes (ceph.dir.layout / ceph.file.layout)
//
// Parameters:
//   - cfg: Accessor configuration
//
// Returns:
//   - layout.Accessor: Initialized accessor
//   - error: Configuration error
func CreateAccessor(cfg *AccessorConfig) (layout.Accessor, error) {
	switch cfg.Type {
	case "xattr":
		return createXattrAccessor(cfg.Xattr)
	default:
		return nil, fmt.Errorf("unknown accessor type: %q", cfg.Type)
	}
}

// createXattrAccessor creates an extended-attribute accessor.
func createXattrAccessor(options map[string]any) (layout.Accessor, error) {
	var opts layout.XattrOptions
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode xattr accessor config: %w", err)
	}
	return layout.NewXattrAccessor(opts), nil
}

// CreateEstimator creates the savings estimator from the pool profiles.
//
// Viper folds map keys to lower case, so pool names are stored lowered and
// the estimator matches them case-insensitively against the names CephFS
// reports.
func CreateEstimator(cfg *SavingsConfig) *relayout.Estimator {
	pools := make(map[string]relayout.Profile, len(cfg.Pools))
	for name, p := range cfg.Pools {
		pools[strings.ToLower(name)] = p
	}
	return &relayout.Estimator{
		Default: cfg.DefaultProfile,
		Pools:   pools,
	}
}

// CreateLimiter creates the copy rate limiter.
//
// Returns nil (no throttling) when MaxBytesPerSecond is 0.
func CreateLimiter(cfg *RelayoutConfig) *ratelimiter.RateLimiter {
	return ratelimiter.New(cfg.MaxBytesPerSecond, cfg.Burst)
}

// OpenJournal opens the audit journal.
//
// Returns nil without error when no journal path is configured.
func OpenJournal(cfg *JournalConfig) (*journal.Journal, error) {
	if cfg.Path == "" {
		return nil, nil
	}
	return journal.Open(journal.Options{Path: cfg.Path})
}

// CreateMigrateOptions translates the policy and scratch sections into
// orchestrator options.
func CreateMigrateOptions(cfg *Config) (migrate.Options, error) {
	policy, err := migrate.ParsePolicy(cfg.Policy.Mode)
	if err != nil {
		return migrate.Options{}, err
	}
	return migrate.Options{
		ScratchRoot: cfg.Scratch.Root,
		Policy:      policy,
		DryRun:      cfg.Policy.DryRun,
		Exclude:     append([]string(nil), cfg.Policy.Exclude...),
	}, nil
}
