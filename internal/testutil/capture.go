// Package testutil builds capture directories for tests.
package testutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/npuprof/internal/catalog"
)

// Capture writes rotated data files the way the profiling runtime does:
// <category>.data.<device>.slice_<n>, finalized by a ".done" marker.
type Capture struct {
	t   *testing.T
	Dir string
	Cat *catalog.Catalog
}

// NewCapture creates an empty capture directory for chip.
func NewCapture(t *testing.T, chip catalog.Chip) *Capture {
	t.Helper()
	return &Capture{t: t, Dir: t.TempDir(), Cat: catalog.New(chip)}
}

// Name returns the file name of a slice.
func Name(category string, device, slice int) string {
	return fmt.Sprintf("%s.data.%d.slice_%d", category, device, slice)
}

// Frames encodes records back to back.
func (c *Capture) Frames(recs ...catalog.Record) []byte {
	c.t.Helper()
	var buf bytes.Buffer
	for _, r := range recs {
		b, err := c.Cat.Encode(r)
		require.NoError(c.t, err)
		buf.Write(b)
	}
	return buf.Bytes()
}

// Write replaces the slice with the encoded records and returns its path.
func (c *Capture) Write(category string, device, slice int, recs ...catalog.Record) string {
	c.t.Helper()
	return c.WriteRaw(category, device, slice, c.Frames(recs...))
}

// WriteRaw replaces the slice with data and returns its path.
func (c *Capture) WriteRaw(category string, device, slice int, data []byte) string {
	c.t.Helper()
	path := filepath.Join(c.Dir, Name(category, device, slice))
	require.NoError(c.t, os.WriteFile(path, data, 0o644))
	return path
}

// Append adds the encoded records to the end of the slice.
func (c *Capture) Append(category string, device, slice int, recs ...catalog.Record) {
	c.t.Helper()
	c.AppendRaw(category, device, slice, c.Frames(recs...))
}

// AppendRaw adds data to the end of the slice, creating it if needed.
func (c *Capture) AppendRaw(category string, device, slice int, data []byte) {
	c.t.Helper()
	path := filepath.Join(c.Dir, Name(category, device, slice))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(c.t, err)
	_, err = f.Write(data)
	require.NoError(c.t, err)
	require.NoError(c.t, f.Close())
}

// Done finalizes the slice by creating its marker file.
func (c *Capture) Done(category string, device, slice int) {
	c.t.Helper()
	path := filepath.Join(c.Dir, Name(category, device, slice)+".done")
	require.NoError(c.t, os.WriteFile(path, nil, 0o644))
}
