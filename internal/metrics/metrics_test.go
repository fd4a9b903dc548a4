package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.Decoded("hwts", "hwts_log", 3)
	m.Decoded("hwts", "hwts_log", 2)
	m.Dropped("stars_soc", "UNKNOWN_TAG", 1)
	m.Calibrated(0, 4)
	m.Truncated("ts_track", 6)
	m.RunDuration(1500 * time.Millisecond)

	path := filepath.Join(t.TempDir(), "npuprof.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, `npuprof_ingest_records_decoded_total{category="hwts",kind="hwts_log"} 5`)
	assert.Contains(t, text, `npuprof_ingest_frames_dropped_total{category="stars_soc",reason="UNKNOWN_TAG"} 1`)
	assert.Contains(t, text, `npuprof_ingest_calibrations_total{device="0"} 4`)
	assert.Contains(t, text, `npuprof_ingest_truncated_bytes_total{category="ts_track"} 6`)
	assert.Contains(t, text, "# TYPE npuprof_ingest_run_duration_seconds gauge")
	assert.Contains(t, text, "npuprof_ingest_run_duration_seconds 1.5")
}

func TestInstancesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.IOFailures("hwts", 1)

	dir := t.TempDir()
	require.NoError(t, a.WriteTextfile(filepath.Join(dir, "a.prom")))
	require.NoError(t, b.WriteTextfile(filepath.Join(dir, "b.prom")))

	bt, err := os.ReadFile(filepath.Join(dir, "b.prom"))
	require.NoError(t, err)
	assert.NotContains(t, string(bt), "io_failures_total{")
}

func TestWriteTextfile_BadPath(t *testing.T) {
	m := New()
	assert.Error(t, m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom")))
}
