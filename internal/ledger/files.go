package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// Marker suffixes. A sibling "<name>.done" or "<name>.complete" file marks the
// data file <name> as finalized.
var markerSuffixes = []string{".done", ".complete"}

var sliceName = regexp.MustCompile(`^(.+)\.data\.(\d+)\.slice_(\d+)$`)

// StreamKey identifies one logical stream: a data category on one device.
type StreamKey struct {
	Category string
	Device   int
}

// String renders the key as "<category>.data.<device>".
func (k StreamKey) String() string {
	return fmt.Sprintf("%s.data.%d", k.Category, k.Device)
}

// File is one slice of a stream as found on disk.
type File struct {
	// Name is the NFC-normalized base name used as the ledger key.
	Name  string
	Path  string
	Slice int
	Size  int64
	Done  bool
}

// Stream is a logical stream and its slices ordered by slice index.
type Stream struct {
	Key   StreamKey
	Files []File
}

// ParseName splits a slice file name into its stream key and slice index.
func ParseName(name string) (StreamKey, int, bool) {
	m := sliceName.FindStringSubmatch(norm.NFC.String(name))
	if m == nil {
		return StreamKey{}, 0, false
	}
	dev, err := strconv.Atoi(m[2])
	if err != nil {
		return StreamKey{}, 0, false
	}
	slice, err := strconv.Atoi(m[3])
	if err != nil {
		return StreamKey{}, 0, false
	}
	return StreamKey{Category: m[1], Device: dev}, slice, true
}

// Discover lists the data slices in dir grouped by stream. Streams are ordered
// by key and slices by numeric slice index, so slice_10 follows slice_9.
func Discover(dir string) ([]Stream, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", dir, err)
	}

	present := make(map[string]bool, len(entries))
	for _, e := range entries {
		present[e.Name()] = true
	}

	byKey := make(map[StreamKey][]File)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		key, slice, ok := ParseName(e.Name())
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("discover %s: stat %s: %w", dir, e.Name(), err)
		}
		done := false
		for _, suffix := range markerSuffixes {
			if present[e.Name()+suffix] {
				done = true
				break
			}
		}
		byKey[key] = append(byKey[key], File{
			Name:  norm.NFC.String(e.Name()),
			Path:  filepath.Join(dir, e.Name()),
			Slice: slice,
			Size:  info.Size(),
			Done:  done,
		})
	}

	streams := make([]Stream, 0, len(byKey))
	for key, files := range byKey {
		sort.Slice(files, func(i, j int) bool { return files[i].Slice < files[j].Slice })
		streams = append(streams, Stream{Key: key, Files: files})
	}
	sort.Slice(streams, func(i, j int) bool {
		if streams[i].Key.Device != streams[j].Key.Device {
			return streams[i].Key.Device < streams[j].Key.Device
		}
		return streams[i].Key.Category < streams[j].Key.Category
	})
	return streams, nil
}
