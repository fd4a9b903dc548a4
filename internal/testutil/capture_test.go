package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/npuprof/internal/catalog"
	"github.com/roach88/npuprof/internal/ledger"
)

func TestCapture_WritesDiscoverableSlices(t *testing.T) {
	c := NewCapture(t, catalog.ChipCloud)

	flip := catalog.TaskFlip{StreamID: 1, FlipNum: 0, TaskID: 2, Timestamp: 30}
	c.Write("ts_track", 0, 0, flip)
	c.Done("ts_track", 0, 0)
	c.Append("ts_track", 0, 1, flip, flip)

	streams, err := ledger.Discover(c.Dir)
	require.NoError(t, err)
	require.Len(t, streams, 1)
	files := streams[0].Files
	require.Len(t, files, 2)
	assert.True(t, files[0].Done)
	assert.Equal(t, int64(24), files[0].Size)
	assert.False(t, files[1].Done)
	assert.Equal(t, int64(48), files[1].Size)

	data, err := os.ReadFile(filepath.Join(c.Dir, Name("ts_track", 0, 0)))
	require.NoError(t, err)
	rec, err := c.Cat.Decode(catalog.KindTaskFlip, data)
	require.NoError(t, err)
	assert.Equal(t, flip, rec)
}
