package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// createTestStore opens a file-backed journal in a temp dir. File-backed,
// not ":memory:", so WAL mode is exercised.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun returns a run with every required field set.
func createTestRun(id string) Run {
	return Run{
		ID:           id,
		Scenario:     "smelter",
		TickDuration: 100 * time.Millisecond,
		StartedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}
