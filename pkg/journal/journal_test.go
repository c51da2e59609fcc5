package journal

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/marmos91/cephfs-relayout/pkg/layout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openInMemory(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func collect(t *testing.T, j *Journal, run string) []Entry {
	t.Helper()
	var out []Entry
	require.NoError(t, j.Entries(run, func(e Entry) error {
		out = append(out, e)
		return nil
	}))
	return out
}

func TestOpen(t *testing.T) {
	t.Run("RequiresPath", func(t *testing.T) {
		_, err := Open(Options{})
		assert.Error(t, err)
	})

	t.Run("OnDiskSurvivesReopen", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "journal")

		j, err := Open(Options{Path: dir})
		require.NoError(t, err)
		run, err := j.NewRun()
		require.NoError(t, err)
		require.NoError(t, j.Record(Entry{Path: "/data/x", Outcome: OutcomeSkip, Reason: "multi-link"}))
		require.NoError(t, j.Close())

		j, err = Open(Options{Path: dir})
		require.NoError(t, err)
		defer j.Close()

		entries := collect(t, j, run)
		require.Len(t, entries, 1)
		assert.Equal(t, "multi-link", entries[0].Reason)
	})
}

func TestRecord(t *testing.T) {
	t.Run("RequiresRun", func(t *testing.T) {
		j := openInMemory(t)
		assert.Error(t, j.Record(Entry{Path: "/x"}))
	})

	t.Run("FillsRunSequenceAndTime", func(t *testing.T) {
		j := openInMemory(t)
		run, err := j.NewRun()
		require.NoError(t, err)

		from := layout.Layout{StripeCount: 1, ObjectSize: 4194304, Pool: "old"}
		to := layout.Layout{StripeCount: 1, ObjectSize: 4194304, Pool: "new"}
		require.NoError(t, j.Record(Entry{Path: "/data/x", Outcome: OutcomeRelayout, Size: 10, From: &from, To: &to, Savings: -5}))
		require.NoError(t, j.Record(Entry{Path: "/data/y", Outcome: OutcomeInPlace}))

		entries := collect(t, j, run)
		require.Len(t, entries, 2)

		assert.Equal(t, run, entries[0].Run)
		assert.Equal(t, uint64(1), entries[0].Seq)
		assert.Equal(t, uint64(2), entries[1].Seq)
		assert.False(t, entries[0].Time.IsZero())
		assert.Equal(t, from, *entries[0].From)
		assert.Equal(t, to, *entries[0].To)
		assert.Equal(t, int64(-5), entries[0].Savings)
		assert.Nil(t, entries[1].From)
	})

	t.Run("OrderBeyondNineEntries", func(t *testing.T) {
		j := openInMemory(t)
		run, err := j.NewRun()
		require.NoError(t, err)

		for i := 0; i < 12; i++ {
			require.NoError(t, j.Record(Entry{Path: "/p", Outcome: OutcomeSkip}))
		}

		entries := collect(t, j, run)
		require.Len(t, entries, 12)
		for i, e := range entries {
			assert.Equal(t, uint64(i+1), e.Seq)
		}
	})
}

func TestRuns(t *testing.T) {
	j := openInMemory(t)

	first, err := j.NewRun()
	require.NoError(t, err)
	require.NoError(t, j.Record(Entry{Path: "/a", Outcome: OutcomeSkip}))

	second, err := j.NewRun()
	require.NoError(t, err)
	require.NoError(t, j.Record(Entry{Path: "/b", Outcome: OutcomeFailed}))
	require.NoError(t, j.Record(Entry{Path: "/c", Outcome: OutcomeFailed}))

	runs, err := j.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	ids := []string{runs[0].ID, runs[1].ID}
	assert.ElementsMatch(t, []string{first, second}, ids)

	assert.Len(t, collect(t, j, first), 1)
	assert.Len(t, collect(t, j, second), 2)
	assert.Len(t, collect(t, j, ""), 3)
}

func TestEntriesStopsOnCallbackError(t *testing.T) {
	j := openInMemory(t)
	run, err := j.NewRun()
	require.NoError(t, err)
	require.NoError(t, j.Record(Entry{Path: "/a", Outcome: OutcomeSkip}))
	require.NoError(t, j.Record(Entry{Path: "/b", Outcome: OutcomeSkip}))

	stop := errors.New("stop")
	calls := 0
	err = j.Entries(run, func(Entry) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}
