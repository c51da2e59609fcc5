// Command relayout-audit prints what past relayout runs did, from the audit
// journal, as YAML.
//
// Usage:
//
//	relayout-audit --journal DIR                 # list runs
//	relayout-audit --journal DIR --run ID        # entries of one run
//	relayout-audit --journal DIR --run ID --outcome failed
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/marmos91/cephfs-relayout/pkg/journal"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	flags := pflag.NewFlagSet("relayout-audit", pflag.ContinueOnError)
	path := flags.String("journal", "", "BadgerDB directory of the audit journal (required)")
	runID := flags.String("run", "", "Print the entries of this run (\"all\" for every run)")
	outcome := flags.String("outcome", "", "Only print entries with this outcome (relayout, mismatch, in-place, skip, failed)")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *path == "" {
		fmt.Fprintln(os.Stderr, "Error: --journal is required")
		flags.PrintDefaults()
		return 2
	}

	j, err := journal.Open(journal.Options{Path: *path})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer func() { _ = j.Close() }()

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	defer func() { _ = enc.Close() }()

	if *runID == "" {
		runs, err := j.Runs()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		if err := enc.Encode(runs); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	filter := *runID
	if filter == "all" {
		filter = ""
	}
	entries, err := collect(j, filter, journal.Outcome(*outcome))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if err := enc.Encode(entries); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// collect returns the entries of run (every run if empty), keeping only
// those with the given outcome when one is set.
func collect(j *journal.Journal, run string, outcome journal.Outcome) ([]journal.Entry, error) {
	entries := []journal.Entry{}
	err := j.Entries(run, func(e journal.Entry) error {
		if outcome == "" || e.Outcome == outcome {
			entries = append(entries, e)
		}
		return nil
	})
	return entries, err
}
