package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/idlecore/internal/store"
	"github.com/roach88/idlecore/internal/testutil"
)

// journaledDB simulates the smelter scenario into a fresh journal.
func journaledDB(t *testing.T, runID string) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "idle.db")
	cmd, _ := bareCommand(t)
	opts := &SimulateOptions{
		RootOptions:    &RootOptions{Format: "text"},
		Database:       dbPath,
		RunIDGenerator: testutil.NewFixedRunIDGenerator(runID),
	}
	require.NoError(t, runSimulate(opts, scenarioPath("smelter.yaml"), cmd))
	return dbPath
}

func executeHistory(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewHistoryCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestHistory_ListsRuns(t *testing.T) {
	dbPath := journaledDB(t, "run-a")

	out, err := executeHistory(t, "text", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "RUN")
	assert.Contains(t, out, "run-a")
	assert.Contains(t, out, "smelter")
	assert.Contains(t, out, store.StatusCompleted)
}

func TestHistory_ListJSON(t *testing.T) {
	dbPath := journaledDB(t, "run-a")

	out, err := executeHistory(t, "json", "--db", dbPath)
	require.NoError(t, err)

	var resp struct {
		Status string  `json:"status"`
		Data   RunList `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Runs, 1)
	assert.Equal(t, "run-a", resp.Data.Runs[0].ID)
	assert.Equal(t, int64(10), resp.Data.Runs[0].TicksCompleted)
}

func TestHistory_ShowRun(t *testing.T) {
	dbPath := journaledDB(t, "run-a")

	out, err := executeHistory(t, "json", "--db", dbPath, "--run", "run-a")
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   RunDetail `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "run-a", resp.Data.Run.ID)
	assert.Equal(t, int64(10), resp.Data.JournaledTicks)
	require.NotNil(t, resp.Data.Snapshot)
	assert.Equal(t, int64(9), resp.Data.Snapshot.TickIndex)
	assert.Equal(t, map[string]float64{"ore": 50, "ingot": 25}, resp.Data.Snapshot.Values)

	text, err := executeHistory(t, "text", "--db", dbPath, "--run", "run-a")
	require.NoError(t, err)
	assert.Contains(t, text, "Snapshot after tick 9:")
	assert.Contains(t, text, "10 completed, 10 journaled")
}

func TestHistory_UnknownRun(t *testing.T) {
	dbPath := journaledDB(t, "run-a")

	_, err := executeHistory(t, "text", "--db", dbPath, "--run", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "run not found")
}

func TestHistory_MissingDatabase(t *testing.T) {
	_, err := executeHistory(t, "text", "--db", filepath.Join(t.TempDir(), "absent.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNotFound)
}

func TestHistory_RequiresDBFlag(t *testing.T) {
	_, err := executeHistory(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestHistory_EmptyJournal(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := executeHistory(t, "text", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded.")
}
