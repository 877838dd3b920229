package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// readLines reads every line across every dated audit_log_*.jsonl file
// in dir, in filename order, since a single test can span a rotation.
func readLines(t *testing.T, dir string) []Entry {
	t.Helper()
	paths, err := filepath.Glob(filepath.Join(dir, "audit_log_*.jsonl"))
	require.NoError(t, err)

	var out []Entry
	for _, p := range paths {
		f, err := os.Open(p)
		require.NoError(t, err)
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			var e Entry
			require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
			out = append(out, e)
		}
		require.NoError(t, scanner.Err())
		f.Close()
	}
	return out
}

func TestStartMutateCompleteProducesOneLine(t *testing.T) {
	dir := t.TempDir()
	logger := New(Options{Dir: dir, Environment: "test"})
	defer logger.Close()

	logger.Start("q1", "who won in 1993?", "cli")
	logger.Mutate("q1", func(e *Entry) {
		e.Intent = "factual"
		e.Confidence = 0.9
	})
	logger.Mutate("q1", func(e *Entry) {
		e.AnswerType = "metadata"
		e.FinalAnswer = "Toni Morrison"
	})
	require.True(t, logger.Complete("q1"))

	lines := readLines(t, dir)
	require.Len(t, lines, 1)
	require.Equal(t, "q1", lines[0].QueryID)
	require.Equal(t, "factual", lines[0].Intent)
	require.Equal(t, "Toni Morrison", lines[0].FinalAnswer)
	require.Equal(t, len("Toni Morrison"), lines[0].AnswerLength)
}

func TestCompleteOnUnknownQueryIDReturnsFalse(t *testing.T) {
	dir := t.TempDir()
	logger := New(Options{Dir: dir})
	defer logger.Close()

	require.False(t, logger.Complete("never-started"))
}

func TestCompleteIsIdempotentPerQueryID(t *testing.T) {
	dir := t.TempDir()
	logger := New(Options{Dir: dir})
	defer logger.Close()

	logger.Start("q1", "query", "cli")
	require.True(t, logger.Complete("q1"))
	require.False(t, logger.Complete("q1"))

	lines := readLines(t, dir)
	require.Len(t, lines, 1)
}

func TestEveryCompletedQueryHasUniqueID(t *testing.T) {
	dir := t.TempDir()
	logger := New(Options{Dir: dir})
	defer logger.Close()

	logger.Start("q1", "first", "cli")
	logger.Start("q2", "second", "cli")
	require.True(t, logger.Complete("q1"))
	require.True(t, logger.Complete("q2"))

	lines := readLines(t, dir)
	require.Len(t, lines, 2)
	require.NotEqual(t, lines[0].QueryID, lines[1].QueryID)
}

func TestMutateOnUnknownQueryIDIsNoop(t *testing.T) {
	dir := t.TempDir()
	logger := New(Options{Dir: dir})
	defer logger.Close()

	require.NotPanics(t, func() {
		logger.Mutate("ghost", func(e *Entry) { e.Intent = "factual" })
	})
}

func TestRotatesOntoNewDatedFileOnUTCDateChange(t *testing.T) {
	dir := t.TempDir()

	day1 := time.Date(2026, 7, 30, 23, 59, 0, 0, time.UTC)
	restore := nowFn
	nowFn = func() time.Time { return day1 }
	defer func() { nowFn = restore }()

	logger := New(Options{Dir: dir})
	defer logger.Close()

	logger.Start("q1", "first", "cli")
	require.True(t, logger.Complete("q1"))

	require.FileExists(t, filepath.Join(dir, "audit_log_2026-07-30.jsonl"))

	day2 := time.Date(2026, 7, 31, 0, 0, 5, 0, time.UTC)
	nowFn = func() time.Time { return day2 }

	logger.Start("q2", "second", "cli")
	require.True(t, logger.Complete("q2"))

	require.FileExists(t, filepath.Join(dir, "audit_log_2026-07-31.jsonl"))

	lines := readLines(t, dir)
	require.Len(t, lines, 2)
}
