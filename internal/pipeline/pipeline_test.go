package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/npuprof/internal/batch"
	"github.com/roach88/npuprof/internal/catalog"
	"github.com/roach88/npuprof/internal/config"
	"github.com/roach88/npuprof/internal/store"
	"github.com/roach88/npuprof/internal/testutil"
)

type harness struct {
	t     *testing.T
	cap   *testutil.Capture
	store *store.Store
	cfg   *config.Config
	runs  int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	c := testutil.NewCapture(t, catalog.ChipCloud)
	st, err := store.Open(filepath.Join(t.TempDir(), "npuprof.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := config.Default()
	cfg.DataDir = c.Dir
	cfg.Workers = 2
	return &harness{t: t, cap: c, store: st, cfg: cfg}
}

func (h *harness) run() (*Report, error) {
	h.t.Helper()
	h.runs++
	p, err := New(h.cfg, h.store,
		WithRunIDs(NewFixedGenerator(runID(h.runs))),
		WithClock(testutil.NewStepClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), time.Second).Now),
	)
	require.NoError(h.t, err)
	return p.Run(context.Background())
}

func (h *harness) mustRun() *Report {
	h.t.Helper()
	rep, err := h.run()
	require.NoError(h.t, err)
	return rep
}

func (h *harness) count(kind catalog.Kind) int {
	h.t.Helper()
	n, err := h.store.CountRecords(context.Background(), kind)
	require.NoError(h.t, err)
	return n
}

func (h *harness) batchIDs(kind catalog.Kind) []int64 {
	h.t.Helper()
	ids, err := h.store.BatchIDs(context.Background(), kind)
	require.NoError(h.t, err)
	return ids
}

func runID(n int) string {
	return fmt.Sprintf("0190a000-0000-7000-8000-%012d", n)
}

func acsq(stream, task uint16, ts uint64) catalog.Record {
	return catalog.AcsqLog{FuncType: 0, StreamID: stream, TaskID: task, Timestamp: ts}
}

func flip(stream, num, task uint16, ts uint64) catalog.Record {
	return catalog.TaskFlip{StreamID: stream, FlipNum: num, TaskID: task, Timestamp: ts}
}

func TestRun_AssignsBatchesFromFlips(t *testing.T) {
	h := newHarness(t)
	h.cap.Write("stars_soc", 0, 0,
		acsq(1, 0, 10), acsq(1, 1, 20), acsq(1, 2, 30),
		acsq(1, 0, 40), acsq(1, 1, 50), acsq(1, 2, 60),
	)
	h.cap.Write("ts_track", 0, 0, flip(1, 0, 0, 35))

	rep := h.mustRun()
	assert.Equal(t, runID(1), rep.RunID)
	require.Len(t, rep.Devices, 1)
	assert.True(t, rep.Devices[0].Committed)

	stars := rep.Stream("stars_soc.data.0")
	require.NotNil(t, stars)
	assert.Equal(t, 6, stars.Decoded["acsq_log"])
	assert.Equal(t, 384, stars.BytesRead)

	assert.Equal(t, []int64{0, 0, 0, 1, 1, 1}, h.batchIDs(catalog.KindAcsqLog))
	assert.Equal(t, 1, h.count(catalog.KindTaskFlip))
}

func TestRun_SecondRunOverUnchangedFilesAddsNothing(t *testing.T) {
	h := newHarness(t)
	h.cap.Write("stars_soc", 0, 0, acsq(1, 0, 10), acsq(1, 1, 20))
	h.cap.Write("ts_track", 0, 0, flip(1, 0, 0, 15))

	h.mustRun()
	require.Equal(t, 2, h.count(catalog.KindAcsqLog))

	rep := h.mustRun()
	assert.Equal(t, 0, rep.Totals().Decoded)
	assert.Equal(t, 2, h.count(catalog.KindAcsqLog))
	assert.Equal(t, 1, h.count(catalog.KindTaskFlip))
}

func TestRun_GrowthProcessesOnlyNewBytes(t *testing.T) {
	h := newHarness(t)
	h.cap.Write("stars_soc", 0, 0, acsq(1, 0, 10), acsq(1, 1, 20))
	h.mustRun()

	h.cap.Append("stars_soc", 0, 0, acsq(1, 2, 30))
	rep := h.mustRun()

	stars := rep.Stream("stars_soc.data.0")
	require.NotNil(t, stars)
	assert.Equal(t, 64, stars.BytesRead)
	assert.Equal(t, 1, stars.Decoded["acsq_log"])
	assert.Equal(t, 3, h.count(catalog.KindAcsqLog))
}

func TestRun_FlipHistorySpansRuns(t *testing.T) {
	h := newHarness(t)
	h.cap.Write("stars_soc", 0, 0, acsq(1, 0, 10))
	h.cap.Write("ts_track", 0, 0, flip(1, 0, 0, 15), flip(1, 1, 0, 25))
	h.mustRun()

	// tasks of later iterations arrive after their flips were persisted
	h.cap.Append("stars_soc", 0, 0, acsq(1, 0, 20), acsq(1, 0, 30))
	h.mustRun()

	assert.Equal(t, []int64{0, 1, 2}, h.batchIDs(catalog.KindAcsqLog))
}

func TestRun_UnknownTagIsDroppedAndReported(t *testing.T) {
	h := newHarness(t)
	unknown := make([]byte, 64)
	unknown[0] = 20

	h.cap.WriteRaw("stars_soc", 0, 0, h.cap.Frames(acsq(1, 0, 10)))
	h.cap.AppendRaw("stars_soc", 0, 0, unknown)
	h.cap.Append("stars_soc", 0, 0, acsq(1, 1, 20))

	rep := h.mustRun()
	stars := rep.Stream("stars_soc.data.0")
	require.NotNil(t, stars)
	assert.Equal(t, 2, stars.Decoded["acsq_log"])
	assert.Equal(t, 1, stars.Dropped["UNKNOWN_TAG"])
	assert.Equal(t, 2, h.count(catalog.KindAcsqLog))
}

func TestRun_PartialFrameWaitsForNextRun(t *testing.T) {
	h := newHarness(t)
	frame := h.cap.Frames(acsq(1, 5, 50))
	h.cap.WriteRaw("stars_soc", 0, 0, append(h.cap.Frames(acsq(1, 4, 40)), frame[:20]...))

	rep := h.mustRun()
	stars := rep.Stream("stars_soc.data.0")
	require.NotNil(t, stars)
	assert.Equal(t, 20, stars.Pending)
	assert.Equal(t, 1, h.count(catalog.KindAcsqLog))

	h.cap.AppendRaw("stars_soc", 0, 0, frame[20:])
	rep = h.mustRun()
	stars = rep.Stream("stars_soc.data.0")
	require.NotNil(t, stars)
	assert.Equal(t, 64, stars.BytesRead)
	assert.Equal(t, 1, stars.Decoded["acsq_log"])
	assert.Equal(t, 2, h.count(catalog.KindAcsqLog))
}

func TestRun_FinalizedPartialFrameIsTruncated(t *testing.T) {
	h := newHarness(t)
	h.cap.WriteRaw("stars_soc", 0, 0, append(h.cap.Frames(acsq(1, 4, 40)), make([]byte, 10)...))
	h.cap.Done("stars_soc", 0, 0)

	rep := h.mustRun()
	stars := rep.Stream("stars_soc.data.0")
	require.NotNil(t, stars)
	assert.Equal(t, int64(10), stars.Truncated)
	assert.Zero(t, stars.Pending)

	entry, err := h.store.LoadLedger(context.Background(), "stars_soc.data.0")
	require.NoError(t, err)
	assert.True(t, entry.Files[testutil.Name("stars_soc", 0, 0)].Complete)
}

func TestRun_FlipInvariantFailsOnlyThatDevice(t *testing.T) {
	h := newHarness(t)
	h.cap.Write("stars_soc", 0, 0, acsq(1, 0, 10))
	h.cap.Write("ts_track", 0, 0, flip(1, 0, 0, 15), flip(1, 1, 0, 15))
	h.cap.Write("stars_soc", 1, 0, acsq(1, 0, 10))

	rep, err := h.run()
	require.Error(t, err)
	assert.True(t, batch.IsInvariant(err))

	require.Len(t, rep.Devices, 2)
	assert.False(t, rep.Devices[0].Committed)
	assert.NotEmpty(t, rep.Devices[0].Error)
	assert.True(t, rep.Devices[1].Committed)

	// nothing of device 0 persisted, ledger included
	assert.Equal(t, 1, h.count(catalog.KindAcsqLog))
	assert.Equal(t, 0, h.count(catalog.KindTaskFlip))
	entry, err := h.store.LoadLedger(context.Background(), "ts_track.data.0")
	require.NoError(t, err)
	assert.Nil(t, entry)

	runs, err := h.store.Runs(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, store.RunFailed, runs[0].Status)
}

func TestRun_HostCategoryAndSkippedCategory(t *testing.T) {
	h := newHarness(t)
	h.cap.Write("api_event", 0, 0,
		catalog.ApiEvent{Level: 1, Type: 2, ThreadID: 3, Start: 10, End: 20, ItemID: 7},
		catalog.ApiEvent{Level: 1, Type: 2, ThreadID: 3, Start: 30, End: 40, ItemID: 8},
	)
	h.cap.WriteRaw("mystery", 0, 0, []byte("whatever"))

	rep := h.mustRun()
	assert.Equal(t, []string{"mystery.data.0"}, rep.Skipped)
	assert.Equal(t, 2, h.count(catalog.KindApiEvent))
}

func TestRun_PmuFramesUseTheirOwnStride(t *testing.T) {
	h := newHarness(t)
	h.cap.Write("stars_soc", 0, 0,
		acsq(1, 0, 10),
		catalog.FftsPmu{Mode: catalog.PmuFfts, StreamID: 1, TaskID: 0, EndCnt: 11, Counters: []uint64{1, 2, 3}},
		acsq(1, 0, 12),
	)

	rep := h.mustRun()
	stars := rep.Stream("stars_soc.data.0")
	require.NotNil(t, stars)
	assert.Equal(t, 2, stars.Decoded["acsq_log"])
	assert.Equal(t, 1, stars.Decoded["ffts_pmu"])
	assert.Zero(t, stars.Pending)
}

func TestRun_RecordsMetricsAndRunRow(t *testing.T) {
	h := newHarness(t)
	h.cap.Write("hwts", 0, 0,
		catalog.HwtsLog{RptType: 0, StreamID: 3, TaskID: 1, Timestamp: 100},
		catalog.HwtsLog{RptType: 1, StreamID: 3, TaskID: 1, Timestamp: 200},
	)
	h.cfg.MetricsFile = filepath.Join(t.TempDir(), "npuprof.prom")

	clock := testutil.NewStepClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), 3*time.Second)
	p, err := New(h.cfg, h.store, WithRunIDs(NewFixedGenerator("run-a")), WithClock(clock.Now))
	require.NoError(t, err)
	_, err = p.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, p.Metrics().WriteTextfile(h.cfg.MetricsFile))

	runs, err := h.store.Runs(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, store.RunComplete, runs[0].Status)
	assert.Equal(t, 2, runs[0].Decoded)

	// start and finish are the only clock reads
	assert.Equal(t, int64(2), clock.Calls())
	data, err := os.ReadFile(h.cfg.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "npuprof_ingest_run_duration_seconds 3\n")
}

func TestNew_RequiresDataDir(t *testing.T) {
	cfg := config.Default()
	_, err := New(cfg, nil)
	assert.Error(t, err)
}
