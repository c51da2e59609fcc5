// Command relayout rewrites files on a CephFS tree whose data placement has
// drifted from their directory's layout.
//
// Usage:
//
//	relayout [flags] DIR
//	relayout init [--force]
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/cephfs-relayout/internal/logger"
	"github.com/marmos91/cephfs-relayout/pkg/config"
	"github.com/marmos91/cephfs-relayout/pkg/metrics"
	"github.com/marmos91/cephfs-relayout/pkg/migrate"
	"github.com/marmos91/cephfs-relayout/pkg/relayout"
	"github.com/spf13/pflag"
)

const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) > 0 && args[0] == "init" {
		return runInit(args[1:])
	}

	flags := pflag.NewFlagSet("relayout", pflag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: relayout [flags] DIR\n       relayout init [--force]\n\nFlags:\n")
		flags.PrintDefaults()
	}

	configPath := flags.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/relayout/config.yaml)")
	verbose := flags.BoolP("verbose", "v", false, "Log at DEBUG level")
	flags.String("log-level", "", "Log level (DEBUG, INFO, WARN, ERROR)")
	flags.String("scratch", "", "Scratch root for staging copies (default: "+config.DefaultScratchRoot+")")
	flags.String("policy", "", "Mismatch policy: layout or pool (default: layout)")
	flags.Bool("dry-run", false, "Report mismatches without rewriting any file")
	flags.StringSlice("exclude", nil, "Path prefix to skip (repeatable)")
	flags.Uint64("max-bytes-per-second", 0, "Copy throughput cap (0 = unlimited)")
	flags.String("journal", "", "BadgerDB directory for the audit journal")
	flags.String("metrics-textfile", "", "Write Prometheus metrics to this file at the end of the run")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if flags.NArg() != 1 {
		flags.Usage()
		return exitUsage
	}
	root := flags.Arg(0)

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitUsage
	}
	if *verbose {
		cfg.Logging.Level = "DEBUG"
	}

	closeLog, err := setupLogging(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFatal
	}
	defer func() { _ = closeLog() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := reconcile(ctx, cfg, root)
	if report != nil {
		report.Log()
	}

	if cfg.Metrics.Enabled {
		if werr := metrics.WriteTextfile(cfg.Metrics.Textfile); werr != nil {
			logger.Warn("%v", werr)
		} else {
			logger.Debug("Metrics written to %s", cfg.Metrics.Textfile)
		}
	}

	if err != nil {
		logger.Error("Run aborted: %v", err)
		return exitFatal
	}
	return exitOK
}

// reconcile wires the components from cfg and runs one pass over root.
func reconcile(ctx context.Context, cfg *config.Config, root string) (*migrate.Report, error) {
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}
	m := metrics.NewRelayoutMetrics()

	accessor, err := config.CreateAccessor(&cfg.Accessor)
	if err != nil {
		return nil, err
	}

	opts, err := config.CreateMigrateOptions(cfg)
	if err != nil {
		return nil, err
	}

	j, err := config.OpenJournal(&cfg.Journal)
	if err != nil {
		// The journal is an audit aid; a run without it is still correct
		logger.Warn("Continuing without journal: %v", err)
		j = nil
	}
	if j != nil {
		defer func() {
			if cerr := j.Close(); cerr != nil {
				logger.Warn("Failed to close journal: %v", cerr)
			}
		}()
	}

	limiter := config.CreateLimiter(&cfg.Relayout)
	if limiter != nil {
		logger.Info("Copy throughput capped at %d bytes/s", cfg.Relayout.MaxBytesPerSecond)
	}

	executor := relayout.NewExecutor(accessor, config.CreateEstimator(&cfg.Savings), limiter, m)
	return migrate.New(opts, accessor, executor, j, m).Run(ctx, root)
}

func setupLogging(cfg *config.LoggingConfig) (func() error, error) {
	w, closeFn, err := logger.OpenOutput(cfg.Output)
	if err != nil {
		return nil, err
	}
	logger.SetOutput(w)
	logger.SetFormat(cfg.Format)
	logger.SetLevel(cfg.Level)
	return closeFn, nil
}

func runInit(args []string) int {
	flags := pflag.NewFlagSet("relayout init", pflag.ContinueOnError)
	force := flags.BoolP("force", "f", false, "Overwrite an existing config file")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	path, err := config.InitConfig(*force)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFatal
	}
	fmt.Printf("Configuration written to %s\n", path)
	return exitOK
}
