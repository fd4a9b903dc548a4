package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_ListsOffsetsAfterIngest(t *testing.T) {
	c := writeCapture(t)
	c.Done("ts_track", 0, 0)
	db := filepath.Join(t.TempDir(), "prof.db")
	_, err := runCLI(t, "ingest", "--data-dir", c.Dir, "--db", db)
	require.NoError(t, err)

	out, err := runCLI(t, "ledger", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "stars_soc.data.0\n"+
		"  stars_soc.data.0.slice_0 128/128\n"+
		"ts_track.data.0\n"+
		"  ts_track.data.0.slice_0 24/24 complete\n", out)

	out, err = runCLI(t, "ledger", "--db", db, "--format", "json")
	require.NoError(t, err)
	var resp struct {
		Data []LedgerRow `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, LedgerRow{
		Stream: "ts_track.data.0", File: "ts_track.data.0.slice_0",
		Offset: 24, Size: 24, Complete: true,
	}, resp.Data[1])
}

func TestLedger_MissingDatabase(t *testing.T) {
	out, err := runCLI(t, "ledger", "--db", filepath.Join(t.TempDir(), "absent.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E004]")
}

func TestLedger_RequiresDBFlag(t *testing.T) {
	_, err := runCLI(t, "ledger")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestRuns_ListsNewestFirst(t *testing.T) {
	c := writeCapture(t)
	db := filepath.Join(t.TempDir(), "prof.db")
	for i := 0; i < 2; i++ {
		_, err := runCLI(t, "ingest", "--data-dir", c.Dir, "--db", db)
		require.NoError(t, err)
	}

	out, err := runCLI(t, "runs", "--db", db, "--format", "json")
	require.NoError(t, err)
	var resp struct {
		Data []RunRow `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "complete", resp.Data[0].Status)
	assert.Zero(t, resp.Data[0].Decoded)
	assert.Equal(t, 3, resp.Data[1].Decoded)
	assert.NotEmpty(t, resp.Data[1].FinishedAt)

	out, err = runCLI(t, "runs", "--db", db, "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, resp.Data[0].ID)
	assert.NotContains(t, out, resp.Data[1].ID)
}

func TestRuns_RejectsNonPositiveLimit(t *testing.T) {
	_, err := runCLI(t, "runs", "--db", "x.db", "--limit", "0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
