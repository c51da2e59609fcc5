// Package journal records what a relayout run did to every file, so an
// operator can audit afterwards what was moved, what was skipped and why.
//
// Entries are stored in BadgerDB, one key per event:
//
//	Data Type   Prefix   Key Format                 Value Type
//	=============================================================
//	Entry       "e:"     e:<runID>:<seq %020d>      Entry (JSON)
//	Run         "r:"     r:<runID>                  start time (RFC3339)
//
// The zero-padded sequence keeps a run's entries in visit order under a
// prefix scan.
package journal

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/marmos91/cephfs-relayout/pkg/layout"
)

const (
	prefixEntry = "e:"
	prefixRun   = "r:"
)

// Outcome classifies what happened to a path.
type Outcome string

const (
	OutcomeRelayout Outcome = "relayout"
	OutcomeMismatch Outcome = "mismatch" // dry run only
	OutcomeInPlace  Outcome = "in-place"
	OutcomeSkip     Outcome = "skip"
	OutcomeFailed   Outcome = "failed"
)

// Entry is one journaled event.
type Entry struct {
	Run     string         `json:"run" yaml:"run"`
	Seq     uint64         `json:"seq" yaml:"seq"`
	Time    time.Time      `json:"time" yaml:"time"`
	Path    string         `json:"path" yaml:"path"`
	Outcome Outcome        `json:"outcome" yaml:"outcome"`
	Reason  string         `json:"reason,omitempty" yaml:"reason,omitempty"`
	Size    int64          `json:"size,omitempty" yaml:"size,omitempty"`
	From    *layout.Layout `json:"from,omitempty" yaml:"from,omitempty"`
	To      *layout.Layout `json:"to,omitempty" yaml:"to,omitempty"`
	Savings int64          `json:"savings,omitempty" yaml:"savings,omitempty"`
}

// Options configures where the journal lives.
type Options struct {
	// Path is the BadgerDB directory
	Path string

	// InMemory keeps everything in memory (tests)
	InMemory bool
}

// Journal is a BadgerDB-backed event log.
//
// Thread Safety:
// Record is not safe for concurrent use within one run; reads are.
type Journal struct {
	db  *badger.DB
	run string
	seq uint64
}

// Open opens (or creates) a journal.
func Open(opts Options) (*Journal, error) {
	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Path == "" {
			return nil, fmt.Errorf("journal path is required")
		}
		bopts = badger.DefaultOptions(opts.Path)
	}
	bopts = bopts.WithLogger(nil)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// NewRun starts a new run and returns its id. Subsequent Record calls belong
// to it.
func (j *Journal) NewRun() (string, error) {
	run := uuid.NewString()
	err := j.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixRun+run), []byte(time.Now().UTC().Format(time.RFC3339)))
	})
	if err != nil {
		return "", fmt.Errorf("failed to start journal run: %w", err)
	}
	j.run = run
	j.seq = 0
	return run, nil
}

// Record appends an entry to the current run.
func (j *Journal) Record(e Entry) error {
	if j.run == "" {
		return fmt.Errorf("journal: no run started")
	}
	j.seq++
	e.Run = j.run
	e.Seq = j.seq
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode journal entry: %w", err)
	}

	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(j.run, j.seq), data)
	})
}

// Entries calls fn for every entry of run, in visit order. An empty run
// iterates every run.
func (j *Journal) Entries(run string, fn func(Entry) error) error {
	prefix := []byte(prefixEntry)
	if run != "" {
		prefix = []byte(prefixEntry + run + ":")
	}

	return j.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			data, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var e Entry
			if err := json.Unmarshal(data, &e); err != nil {
				return fmt.Errorf("corrupt journal entry %s: %w", it.Item().Key(), err)
			}
			if err := fn(e); err != nil {
				return err
			}
		}
		return nil
	})
}

// Run is a journaled run.
type Run struct {
	ID      string    `yaml:"id"`
	Started time.Time `yaml:"started"`
}

// Runs lists every run in the journal, oldest first.
func (j *Journal) Runs() ([]Run, error) {
	var runs []Run
	err := j.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(prefixRun)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			started, err := time.Parse(time.RFC3339, string(data))
			if err != nil {
				return fmt.Errorf("corrupt run record %s: %w", item.Key(), err)
			}
			runs = append(runs, Run{
				ID:      strings.TrimPrefix(string(item.Key()), prefixRun),
				Started: started,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Keys sort by id, not by time
	sort.SliceStable(runs, func(a, b int) bool {
		return runs[a].Started.Before(runs[b].Started)
	})
	return runs, nil
}

func entryKey(run string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", prefixEntry, run, seq))
}
