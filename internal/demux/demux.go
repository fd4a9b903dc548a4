// Package demux splits a buffer of back-to-back frames into per-kind record
// groups.
//
// A Demux is bound to one catalog family. Each frame's header tag selects the
// registered format and the accumulator the decoded record is appended to.
// Frames whose tag nobody registered are skipped, counted, and logged. The
// skip uses the catalog width of the tag when the catalog knows it and the
// default stride otherwise. At the end of a pass every registered sink is flushed
// exactly once, including sinks that received no records.
//
// A Demux is not safe for concurrent Dispatch calls. Accumulators live only
// for the duration of one Dispatch.
package demux

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/roach88/npuprof/internal/catalog"
)

// ErrStrideMismatch reports a registered format whose width disagrees with the
// frame stride configured for its tag. It is a configuration invariant
// violation and must stop the affected stream.
var ErrStrideMismatch = errors.New("format width disagrees with frame stride")

// Sink receives the records decoded for one kind during one pass, in buffer
// order.
type Sink func(kind catalog.Kind, records []catalog.Record)

// Reason names why a frame was dropped.
type Reason string

const (
	// ReasonUnknownTag is a frame whose tag has no registered format.
	ReasonUnknownTag Reason = "UNKNOWN_TAG"
	// ReasonBadMagic is a frame whose sanity constant did not match.
	ReasonBadMagic Reason = Reason(catalog.ErrCodeBadMagic)
	// ReasonLengthMismatch is a frame whose declared element count does not
	// fit in the frame.
	ReasonLengthMismatch Reason = Reason(catalog.ErrCodeLengthMismatch)
	// ReasonInvalid is any other decode failure.
	ReasonInvalid Reason = "INVALID"
)

// Result summarizes one Dispatch pass.
type Result struct {
	// Consumed is the number of leading bytes that formed whole frames,
	// decoded or dropped. Bytes past it belong to a partial frame.
	Consumed int
	// Pending is the number of trailing bytes that did not form a whole frame.
	Pending int
	Decoded map[catalog.Kind]int
	Dropped map[Reason]int
	// Unknown counts dropped frames per unregistered tag.
	Unknown map[uint8]int
}

// DroppedTotal returns the number of frames dropped for any reason.
func (r Result) DroppedTotal() int {
	n := 0
	for _, c := range r.Dropped {
		n += c
	}
	return n
}

type route struct {
	format *catalog.Format
	stride int
	sink   Sink
}

// Demux routes frames of one family to registered sinks.
type Demux struct {
	cat     *catalog.Catalog
	family  catalog.Family
	stride  int
	strides map[uint8]int
	kind    catalog.Kind
	logger  *slog.Logger

	routes map[uint8]*route
	host   *route
	kinds  []catalog.Kind
	sinks  map[catalog.Kind]Sink
}

// Option configures a Demux.
type Option func(*Demux)

// WithStride sets the default frame width used to step over frames. It
// defaults to the family's stride.
func WithStride(n int) Option {
	return func(d *Demux) {
		d.stride = n
	}
}

// WithTagStride declares the frame width of tag explicitly. Formats
// registered for tag must have exactly this width.
func WithTagStride(tag uint8, n int) Option {
	return func(d *Demux) {
		d.strides[tag] = n
	}
}

// WithKind binds a host-family Demux to the single kind its stream carries.
func WithKind(kind catalog.Kind) Option {
	return func(d *Demux) {
		d.kind = kind
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Demux) {
		if l != nil {
			d.logger = l
		}
	}
}

// New creates a Demux over family using the formats in cat.
func New(cat *catalog.Catalog, family catalog.Family, opts ...Option) (*Demux, error) {
	d := &Demux{
		cat:     cat,
		family:  family,
		stride:  family.Stride(),
		strides: make(map[uint8]int),
		logger:  slog.Default(),
		routes:  make(map[uint8]*route),
		sinks:   make(map[catalog.Kind]Sink),
	}
	for _, opt := range opts {
		opt(d)
	}

	if family == catalog.FamilyHost {
		if d.kind == catalog.KindUnknown {
			return nil, fmt.Errorf("demux %s: host streams need a kind", family)
		}
		f, err := cat.Format(d.kind)
		if err != nil {
			return nil, fmt.Errorf("demux %s: %w", family, err)
		}
		if f.Family != family {
			return nil, fmt.Errorf("demux %s: kind %s belongs to family %s", family, d.kind, f.Family)
		}
		d.stride = f.Width
		return d, nil
	}
	if d.stride <= 0 {
		return nil, fmt.Errorf("demux %s: stride must be positive, got %d", family, d.stride)
	}
	for tag, n := range d.strides {
		if n <= 0 {
			return nil, fmt.Errorf("demux %s: stride for tag %d must be positive, got %d", family, tag, n)
		}
	}
	return d, nil
}

// Family returns the family the Demux walks.
func (d *Demux) Family() catalog.Family { return d.family }

// Register routes every tag of kind's format to sink.
//
// The frame stride of each tag is its explicit WithTagStride value, or the
// default stride. Registering a format whose width differs from that stride
// fails with ErrStrideMismatch.
func (d *Demux) Register(kind catalog.Kind, sink Sink) error {
	if sink == nil {
		return fmt.Errorf("register %s: nil sink", kind)
	}
	if _, dup := d.sinks[kind]; dup {
		return fmt.Errorf("register %s: already registered", kind)
	}
	f, err := d.cat.Format(kind)
	if err != nil {
		return fmt.Errorf("register %s: %w", kind, err)
	}
	if f.Family != d.family {
		return fmt.Errorf("register %s: format family %s, demux family %s", kind, f.Family, d.family)
	}

	if d.family == catalog.FamilyHost {
		if kind != d.kind {
			return fmt.Errorf("register %s: host demux is bound to %s", kind, d.kind)
		}
		d.host = &route{format: f, stride: f.Width, sink: sink}
	} else {
		for _, tag := range f.Tags {
			stride, ok := d.strides[tag]
			if !ok {
				stride = d.stride
			}
			if stride != f.Width {
				return fmt.Errorf("register %s: tag %d stride %d, width %d: %w",
					f.Name, tag, stride, f.Width, ErrStrideMismatch)
			}
		}
		for _, tag := range f.Tags {
			d.routes[tag] = &route{format: f, stride: f.Width, sink: sink}
		}
	}

	d.sinks[kind] = sink
	d.kinds = append(d.kinds, kind)
	sort.Slice(d.kinds, func(i, j int) bool { return d.kinds[i] < d.kinds[j] })
	return nil
}

// Dispatch walks buf frame by frame, decodes every frame with a registered
// tag, and flushes each registered sink once with the records it collected.
//
// Format errors drop the frame and continue. A trailing partial frame is not
// decoded; its bytes are reported as Pending and excluded from Consumed.
func (d *Demux) Dispatch(buf []byte) Result {
	res := Result{
		Decoded: make(map[catalog.Kind]int),
		Dropped: make(map[Reason]int),
		Unknown: make(map[uint8]int),
	}
	acc := make(map[catalog.Kind][]catalog.Record, len(d.kinds))

	off := 0
	for off < len(buf) {
		r, stride, tag := d.next(buf[off:])
		if off+stride > len(buf) {
			break
		}
		frame := buf[off : off+stride]
		off += stride

		if r == nil {
			res.Dropped[ReasonUnknownTag]++
			res.Unknown[tag]++
			continue
		}
		rec, err := r.format.Decode(frame)
		if err != nil {
			reason := reasonOf(err)
			res.Dropped[reason]++
			d.logger.Debug("frame dropped", "family", d.family, "format", r.format.Name,
				"offset", off-stride, "reason", reason, "error", err)
			continue
		}
		acc[r.format.Kind] = append(acc[r.format.Kind], rec)
		res.Decoded[r.format.Kind]++
	}
	res.Consumed = off
	res.Pending = len(buf) - off

	for tag, n := range res.Unknown {
		d.logger.Warn("dropped frames with unregistered tag", "family", d.family, "tag", tag, "frames", n)
	}
	if n := res.Dropped[ReasonBadMagic]; n > 0 {
		d.logger.Warn("dropped frames with bad magic", "family", d.family, "frames", n)
	}

	for _, kind := range d.kinds {
		d.sinks[kind](kind, acc[kind])
	}
	return res
}

// next returns the route and stride of the frame at the start of b. The
// route is nil for an unregistered tag.
func (d *Demux) next(b []byte) (*route, int, uint8) {
	if d.family == catalog.FamilyHost {
		return d.host, d.stride, 0
	}
	tag, ok := d.family.TagOf(b)
	if !ok {
		// Too short to carry a header: a partial frame.
		return nil, len(b) + 1, 0
	}
	if r, ok := d.routes[tag]; ok {
		return r, r.stride, tag
	}
	if n, ok := d.strides[tag]; ok {
		return nil, n, tag
	}
	// Unregistered but known to the catalog: skip the whole frame.
	if f, ok := d.cat.Lookup(d.family, tag); ok {
		return nil, f.Width, tag
	}
	return nil, d.stride, tag
}

func reasonOf(err error) Reason {
	switch catalog.CodeOf(err) {
	case catalog.ErrCodeBadMagic:
		return ReasonBadMagic
	case catalog.ErrCodeLengthMismatch:
		return ReasonLengthMismatch
	default:
		return ReasonInvalid
	}
}
