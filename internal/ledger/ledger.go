package ledger

import (
	"context"
	"log/slog"
)

// FileState is what the ledger remembers about one data file.
type FileState struct {
	// Offset is the number of leading bytes already consumed.
	Offset int64
	// Size is the file size observed when Offset was recorded.
	Size int64
	// Complete marks a finalized file that was consumed in full. Complete
	// files are never opened again.
	Complete bool
}

// Entry is the persisted consumption state of one logical stream.
type Entry struct {
	Stream string
	Files  map[string]FileState
}

// NewEntry returns an empty entry for stream.
func NewEntry(stream string) *Entry {
	return &Entry{Stream: stream, Files: map[string]FileState{}}
}

// Consumed returns the cumulative number of bytes consumed across files.
func (e *Entry) Consumed() int64 {
	var n int64
	for _, st := range e.Files {
		n += st.Offset
	}
	return n
}

// Clone returns a deep copy of e.
func (e *Entry) Clone() *Entry {
	c := &Entry{Stream: e.Stream, Files: make(map[string]FileState, len(e.Files))}
	for name, st := range e.Files {
		c.Files[name] = st
	}
	return c
}

// Span is the part of one file appended to a pass buffer.
type Span struct {
	File  string
	Start int64
	Len   int64
	Size  int64
	Done  bool
}

// FileError is an I/O failure on one file of a pass.
type FileError struct {
	File string
	Err  error
}

func (e FileError) Error() string { return e.File + ": " + e.Err.Error() }

// Pass is one read over a stream: the unconsumed bytes of its files,
// concatenated in slice order.
type Pass struct {
	Stream   string
	Buffer   []byte
	Spans    []Span
	Failures []FileError
	// Resets lists files whose recorded offset exceeded their current size.
	Resets []string

	prev *Entry
}

// Ledger builds passes over rotated file sets. It holds no state of its own;
// the caller loads and persists entries and must run at most one pass per
// stream at a time.
type Ledger struct {
	logger *slog.Logger
	read   func(path string, off, n int64, finalized bool) ([]byte, error)
}

// New creates a Ledger. A nil logger uses slog.Default().
func New(logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{logger: logger, read: readRange}
}

// Open reads every byte of s not yet recorded in prev. prev may be nil on the
// first run.
//
// Complete files are skipped without being opened. A file whose recorded
// offset is past its current size was rotated or replaced and is read again
// from offset 0. A file that cannot be read is recorded in Failures and left
// at its old offset. Later files are still read when the failed file had no
// unread bytes; otherwise their first bytes may finish a frame begun in the
// failed file, so the pass stops there and they wait for the next run.
func (l *Ledger) Open(ctx context.Context, s Stream, prev *Entry) (*Pass, error) {
	key := s.Key.String()
	if prev == nil {
		prev = NewEntry(key)
	}
	p := &Pass{Stream: key, prev: prev}

	for _, f := range s.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		st := prev.Files[f.Name]
		if st.Complete {
			continue
		}

		off := st.Offset
		if off > f.Size {
			l.logger.Warn("file shrank since last pass, rereading from start",
				"stream", key, "file", f.Name, "offset", off, "size", f.Size)
			p.Resets = append(p.Resets, f.Name)
			off = 0
		}

		data, err := l.read(f.Path, off, f.Size-off, f.Done)
		if err != nil {
			l.logger.Error("read failed", "stream", key, "file", f.Name, "error", err)
			p.Failures = append(p.Failures, FileError{File: f.Name, Err: err})
			if off < f.Size {
				// The next file continues a frame we could not read.
				l.logger.Warn("later files wait for the failed file",
					"stream", key, "file", f.Name, "unread", f.Size-off)
				break
			}
			continue
		}

		p.Buffer = append(p.Buffer, data...)
		p.Spans = append(p.Spans, Span{
			File:  f.Name,
			Start: off,
			Len:   f.Size - off,
			Size:  f.Size,
			Done:  f.Done,
		})
	}

	l.logger.Debug("pass opened", "stream", key, "bytes", len(p.Buffer),
		"files", len(p.Spans), "failures", len(p.Failures))
	return p, nil
}

// Commit returns the entry to persist once the first consumed bytes of the
// buffer have been fully processed, and the number of bytes given up as
// truncated.
//
// Bytes past consumed belong to a partial frame. If any of them lie in a file
// that is still aging they are left unconsumed and read again next pass.
// If they lie only in finalized files no more data can ever complete the
// frame, so the files are marked complete and the bytes reported truncated.
func (p *Pass) Commit(consumed int64) (*Entry, int64) {
	if consumed < 0 {
		consumed = 0
	}
	if total := int64(len(p.Buffer)); consumed > total {
		consumed = total
	}

	next := p.prev.Clone()
	next.Stream = p.Stream

	remaining := consumed
	cut := len(p.Spans)
	for i, sp := range p.Spans {
		take := sp.Len
		if remaining < take {
			take = remaining
		}
		remaining -= take
		if take < sp.Len && cut == len(p.Spans) {
			cut = i
		}
		st := FileState{Offset: sp.Start + take, Size: sp.Size}
		st.Complete = sp.Done && st.Offset == sp.Size
		next.Files[sp.File] = st
	}

	leftover := int64(len(p.Buffer)) - consumed
	if leftover == 0 || len(p.Failures) > 0 {
		return next, 0
	}
	// A later aging file, even one with no new bytes yet, may still
	// complete the frame.
	for _, sp := range p.Spans[cut:] {
		if !sp.Done {
			return next, 0
		}
	}
	for _, sp := range p.Spans[cut:] {
		next.Files[sp.File] = FileState{Offset: sp.Size, Size: sp.Size, Complete: true}
	}
	return next, leftover
}
