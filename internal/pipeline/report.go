package pipeline

import "sort"

// StreamReport is the outcome of one stream's pass.
type StreamReport struct {
	Stream    string         `json:"stream"`
	Category  string         `json:"category"`
	BytesRead int            `json:"bytes_read"`
	Decoded   map[string]int `json:"decoded"`
	Dropped   map[string]int `json:"dropped"`
	// Pending is the partial frame left for the next run.
	Pending   int      `json:"pending"`
	Truncated int64    `json:"truncated"`
	Failures  []string `json:"failures,omitempty"`
	Resets    []string `json:"resets,omitempty"`
}

// DeviceReport is the outcome of one device.
type DeviceReport struct {
	Device  int            `json:"device"`
	Streams []StreamReport `json:"streams"`
	// Calibrated counts calibration moves per hardware stream id.
	Calibrated map[uint16]int `json:"calibrated"`
	Committed  bool           `json:"committed"`
	Error      string         `json:"error,omitempty"`
}

// Report is the outcome of a Run.
type Report struct {
	RunID   string         `json:"run_id"`
	Devices []DeviceReport `json:"devices"`
	// Skipped lists discovered streams whose category is not configured.
	Skipped []string `json:"skipped,omitempty"`
}

// Totals sums the per-stream counters over every device.
type Totals struct {
	Decoded    int
	Dropped    int
	Calibrated int
	Failures   int
}

// Totals returns the run-wide counters.
func (r *Report) Totals() Totals {
	var t Totals
	for _, d := range r.Devices {
		for _, s := range d.Streams {
			for _, n := range s.Decoded {
				t.Decoded += n
			}
			for _, n := range s.Dropped {
				t.Dropped += n
			}
			t.Failures += len(s.Failures)
		}
		for _, n := range d.Calibrated {
			t.Calibrated += n
		}
	}
	return t
}

// Stream returns the report of the named stream, or nil.
func (r *Report) Stream(name string) *StreamReport {
	for i := range r.Devices {
		for j := range r.Devices[i].Streams {
			if r.Devices[i].Streams[j].Stream == name {
				return &r.Devices[i].Streams[j]
			}
		}
	}
	return nil
}

func sortStreams(streams []StreamReport) {
	sort.Slice(streams, func(i, j int) bool { return streams[i].Stream < streams[j].Stream })
}
