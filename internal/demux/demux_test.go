package demux

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/npuprof/internal/catalog"
)

type collector struct {
	flushes map[catalog.Kind]int
	records map[catalog.Kind][]catalog.Record
}

func newCollector() *collector {
	return &collector{
		flushes: make(map[catalog.Kind]int),
		records: make(map[catalog.Kind][]catalog.Record),
	}
}

func (c *collector) sink(kind catalog.Kind, recs []catalog.Record) {
	c.flushes[kind]++
	c.records[kind] = append(c.records[kind], recs...)
}

func encode(t *testing.T, cat *catalog.Catalog, recs ...catalog.Record) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, r := range recs {
		b, err := cat.Encode(r)
		require.NoError(t, err)
		buf.Write(b)
	}
	return buf.Bytes()
}

func unknownStarsFrame(tag uint8) []byte {
	b := make([]byte, 64)
	b[0] = tag
	return b
}

func TestDispatch_UnknownTagIsDroppedNotFatal(t *testing.T) {
	cat := catalog.New(catalog.ChipCloud)
	d, err := New(cat, catalog.FamilyStars)
	require.NoError(t, err)
	c := newCollector()
	require.NoError(t, d.Register(catalog.KindAcsqLog, c.sink))

	first := catalog.AcsqLog{FuncType: 0, StreamID: 3, TaskID: 1, Timestamp: 100}
	last := catalog.AcsqLog{FuncType: 1, StreamID: 3, TaskID: 1, Timestamp: 200}
	buf := append(encode(t, cat, first), unknownStarsFrame(20)...)
	buf = append(buf, encode(t, cat, last)...)

	res := d.Dispatch(buf)
	assert.Equal(t, len(buf), res.Consumed)
	assert.Zero(t, res.Pending)
	assert.Equal(t, 2, res.Decoded[catalog.KindAcsqLog])
	assert.Equal(t, 1, res.DroppedTotal())
	assert.Equal(t, 1, res.Dropped[ReasonUnknownTag])
	assert.Equal(t, map[uint8]int{20: 1}, res.Unknown)
	assert.Equal(t, []catalog.Record{first, last}, c.records[catalog.KindAcsqLog])
}

func TestDispatch_RoutesByTagAndKeepsOrder(t *testing.T) {
	cat := catalog.New(catalog.ChipCloud)
	d, err := New(cat, catalog.FamilyStars, WithTagStride(40, 128))
	require.NoError(t, err)
	c := newCollector()
	require.NoError(t, d.Register(catalog.KindAcsqLog, c.sink))
	require.NoError(t, d.Register(catalog.KindFftsThreadLog, c.sink))
	require.NoError(t, d.Register(catalog.KindFftsPmu, c.sink))

	a1 := catalog.AcsqLog{FuncType: 0, Cnt: 2, TaskType: 5, StreamID: 1, TaskID: 7, Timestamp: 10}
	th := catalog.FftsThreadLog{FuncType: 34, StreamID: 1, TaskID: 7, ThreadID: 3, Timestamp: 11}
	pmu := catalog.FftsPmu{Mode: catalog.PmuFfts, StreamID: 1, TaskID: 7, EndCnt: 12, Counters: []uint64{1, 2, 3}}
	a2 := catalog.AcsqLog{FuncType: 1, Cnt: 2, TaskType: 5, StreamID: 1, TaskID: 7, Timestamp: 13}

	buf := encode(t, cat, a1, th, pmu, a2)
	require.Len(t, buf, 64*3+128)

	res := d.Dispatch(buf)
	assert.Equal(t, len(buf), res.Consumed)
	assert.Zero(t, res.DroppedTotal())
	assert.Equal(t, []catalog.Record{a1, a2}, c.records[catalog.KindAcsqLog])
	assert.Equal(t, []catalog.Record{th}, c.records[catalog.KindFftsThreadLog])
	assert.Equal(t, []catalog.Record{pmu}, c.records[catalog.KindFftsPmu])
}

func TestDispatch_FlushesEverySinkExactlyOnce(t *testing.T) {
	cat := catalog.New(catalog.ChipCloud)
	d, err := New(cat, catalog.FamilyTsTrack)
	require.NoError(t, err)
	c := newCollector()
	require.NoError(t, d.Register(catalog.KindTaskFlip, c.sink))
	require.NoError(t, d.Register(catalog.KindStreamReset, c.sink))

	d.Dispatch(encode(t, cat, catalog.TaskFlip{StreamID: 1, FlipNum: 0, Timestamp: 5}))
	assert.Equal(t, 1, c.flushes[catalog.KindTaskFlip])
	assert.Equal(t, 1, c.flushes[catalog.KindStreamReset])
	assert.Empty(t, c.records[catalog.KindStreamReset])

	d.Dispatch(nil)
	assert.Equal(t, 2, c.flushes[catalog.KindTaskFlip])
	assert.Equal(t, 2, c.flushes[catalog.KindStreamReset])
}

func TestDispatch_PartialTailIsPending(t *testing.T) {
	cat := catalog.New(catalog.ChipCloud)
	d, err := New(cat, catalog.FamilyHwts)
	require.NoError(t, err)
	c := newCollector()
	require.NoError(t, d.Register(catalog.KindHwtsLog, c.sink))

	rec := catalog.HwtsLog{RptType: 0, StreamID: 2, TaskID: 9, Timestamp: 1 << 40}
	buf := encode(t, cat, rec, rec)
	buf = buf[:64+30]

	res := d.Dispatch(buf)
	assert.Equal(t, 64, res.Consumed)
	assert.Equal(t, 30, res.Pending)
	assert.Equal(t, 1, res.Decoded[catalog.KindHwtsLog])
	assert.Zero(t, res.DroppedTotal())
}

func TestDispatch_HeaderlessTailIsPending(t *testing.T) {
	cat := catalog.New(catalog.ChipCloud)
	d, err := New(cat, catalog.FamilyTsTrack)
	require.NoError(t, err)
	require.NoError(t, d.Register(catalog.KindTaskFlip, newCollector().sink))

	buf := append(encode(t, cat, catalog.TaskFlip{StreamID: 1}), 0x01)
	res := d.Dispatch(buf)
	assert.Equal(t, 24, res.Consumed)
	assert.Equal(t, 1, res.Pending)
}

func TestDispatch_UnregisteredTagWithExplicitStride(t *testing.T) {
	cat := catalog.New(catalog.ChipCloud)
	d, err := New(cat, catalog.FamilyStars, WithTagStride(40, 128))
	require.NoError(t, err)
	c := newCollector()
	require.NoError(t, d.Register(catalog.KindAcsqLog, c.sink))

	pmu := catalog.FftsPmu{Mode: catalog.PmuFfts, StreamID: 1, Counters: []uint64{4}}
	acsq := catalog.AcsqLog{StreamID: 1, TaskID: 2, Timestamp: 3}
	buf := encode(t, cat, pmu, acsq)

	res := d.Dispatch(buf)
	assert.Equal(t, len(buf), res.Consumed)
	assert.Equal(t, map[uint8]int{40: 1}, res.Unknown)
	assert.Equal(t, []catalog.Record{acsq}, c.records[catalog.KindAcsqLog])
}

func TestDispatch_UnregisteredCatalogTagSkipsWholeFrame(t *testing.T) {
	for _, tc := range []struct {
		chip  catalog.Chip
		mode  catalog.PmuMode
		width int
	}{
		{catalog.ChipCloud, catalog.PmuFfts, 128},
		{catalog.ChipCloudV2, catalog.PmuFftsPlus, 304},
	} {
		t.Run(tc.mode.String(), func(t *testing.T) {
			cat := catalog.New(tc.chip)
			d, err := New(cat, catalog.FamilyStars)
			require.NoError(t, err)
			c := newCollector()
			require.NoError(t, d.Register(catalog.KindAcsqLog, c.sink))

			first := catalog.AcsqLog{StreamID: 1, TaskID: 0, Timestamp: 10}
			pmu := catalog.FftsPmu{Mode: tc.mode, StreamID: 1, Counters: []uint64{0, 0, 1}}
			last := catalog.AcsqLog{FuncType: 1, StreamID: 1, TaskID: 0, Timestamp: 20}
			buf := encode(t, cat, first, pmu, last)
			require.Len(t, buf, 64*2+tc.width)

			res := d.Dispatch(buf)
			assert.Equal(t, len(buf), res.Consumed)
			assert.Equal(t, 2, res.Decoded[catalog.KindAcsqLog])
			assert.Equal(t, map[uint8]int{40: 1}, res.Unknown)
			assert.Equal(t, []catalog.Record{first, last}, c.records[catalog.KindAcsqLog])
		})
	}
}

func TestRegister_StrideMismatch(t *testing.T) {
	cat := catalog.New(catalog.ChipCloud)

	d, err := New(cat, catalog.FamilyStars, WithTagStride(0, 32))
	require.NoError(t, err)
	err = d.Register(catalog.KindAcsqLog, newCollector().sink)
	assert.ErrorIs(t, err, ErrStrideMismatch)

	// the PMU frame is wider than the family default
	d, err = New(cat, catalog.FamilyStars)
	require.NoError(t, err)
	err = d.Register(catalog.KindFftsPmu, newCollector().sink)
	assert.ErrorIs(t, err, ErrStrideMismatch)

	d, err = New(cat, catalog.FamilyStars, WithStride(48))
	require.NoError(t, err)
	err = d.Register(catalog.KindFftsThreadLog, newCollector().sink)
	assert.ErrorIs(t, err, ErrStrideMismatch)
}

func TestRegister_Rejections(t *testing.T) {
	cat := catalog.New(catalog.ChipCloud)
	d, err := New(cat, catalog.FamilyStars)
	require.NoError(t, err)

	assert.Error(t, d.Register(catalog.KindAcsqLog, nil))
	assert.Error(t, d.Register(catalog.KindTaskFlip, newCollector().sink), "wrong family")
	require.NoError(t, d.Register(catalog.KindAcsqLog, newCollector().sink))
	assert.Error(t, d.Register(catalog.KindAcsqLog, newCollector().sink), "duplicate")
}

func TestNew_Validation(t *testing.T) {
	cat := catalog.New(catalog.ChipCloud)

	_, err := New(cat, catalog.FamilyHost)
	assert.Error(t, err)

	_, err = New(cat, catalog.FamilyHost, WithKind(catalog.KindAcsqLog))
	assert.Error(t, err)

	_, err = New(cat, catalog.FamilyStars, WithStride(0))
	assert.Error(t, err)

	_, err = New(cat, catalog.FamilyStars, WithTagStride(3, -1))
	assert.Error(t, err)
}

func TestDispatch_HostStreamDropsBadMagic(t *testing.T) {
	cat := catalog.New(catalog.ChipCloud)
	d, err := New(cat, catalog.FamilyHost, WithKind(catalog.KindApiEvent))
	require.NoError(t, err)
	c := newCollector()
	require.NoError(t, d.Register(catalog.KindApiEvent, c.sink))
	assert.Error(t, d.Register(catalog.KindNodeTask, c.sink))

	good := catalog.ApiEvent{Level: 1, Type: 2, ThreadID: 3, Start: 10, End: 20, ItemID: 99}
	bad := encode(t, cat, good)
	bad[0] = 0

	buf := append(encode(t, cat, good), bad...)
	buf = append(buf, encode(t, cat, good)...)

	res := d.Dispatch(buf)
	assert.Equal(t, 120, res.Consumed)
	assert.Equal(t, 2, res.Decoded[catalog.KindApiEvent])
	assert.Equal(t, 1, res.Dropped[ReasonBadMagic])
	assert.Len(t, c.records[catalog.KindApiEvent], 2)
}

func TestDispatch_CounterOverflowIsDropped(t *testing.T) {
	cat := catalog.New(catalog.ChipCloud)
	d, err := New(cat, catalog.FamilyStars, WithTagStride(40, 128))
	require.NoError(t, err)
	require.NoError(t, d.Register(catalog.KindFftsPmu, newCollector().sink))

	frame := encode(t, cat, catalog.FftsPmu{Mode: catalog.PmuFfts, StreamID: 1})
	f, err := cat.Format(catalog.KindFftsPmu)
	require.NoError(t, err)
	for _, fl := range f.Fields {
		if fl.Name == "counter_num" {
			fl.Put(frame, 200)
		}
	}

	res := d.Dispatch(frame)
	assert.Equal(t, 128, res.Consumed)
	assert.Equal(t, 1, res.Dropped[ReasonLengthMismatch])
}
