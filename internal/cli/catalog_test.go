package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCatalog_TextGolden(t *testing.T) {
	// To regenerate golden files, run:
	//   go test ./internal/cli -run TestCatalog_TextGolden -update
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	for _, chip := range []string{"1", "4"} {
		t.Run("chip"+chip, func(t *testing.T) {
			out, err := runCLI(t, "catalog", "--chip", chip)
			require.NoError(t, err)
			g.Assert(t, "catalog_chip"+chip, []byte(out))
		})
	}
}

func TestCatalog_JSON(t *testing.T) {
	out, err := runCLI(t, "catalog", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   []FormatRow `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 9)

	flip := resp.Data[4]
	assert.Equal(t, "task_flip", flip.Kind)
	assert.Equal(t, []int{7}, flip.Tags)
	assert.Equal(t, 24, flip.Width)
	assert.Equal(t, []string{"stream_id", "flip_num", "task_id", "timestamp"}, flip.Columns)

	api := resp.Data[7]
	assert.Equal(t, "host", api.Family)
	assert.Empty(t, api.Tags)
	assert.Equal(t, 0x5a5a, api.Magic)
}

func TestCatalog_UnknownChip(t *testing.T) {
	out, err := runCLI(t, "catalog", "--chip", "9")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E002]: unknown chip")
}
