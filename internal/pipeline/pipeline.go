// Package pipeline runs one ingest: it discovers the capture's data streams,
// reads each stream's new bytes through the offset ledger, demultiplexes and
// decodes them, assigns batch ids to task records, and persists records and
// ledger entries together.
//
// Devices are processed one after another. Within a device the category
// streams run concurrently, each on its own goroutine; everything inside one
// stream is single-threaded. A device's records and ledger entries are
// committed in one transaction once all of its streams are decoded and its
// batch ids assigned.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/npuprof/internal/batch"
	"github.com/roach88/npuprof/internal/catalog"
	"github.com/roach88/npuprof/internal/config"
	"github.com/roach88/npuprof/internal/demux"
	"github.com/roach88/npuprof/internal/ledger"
	"github.com/roach88/npuprof/internal/metrics"
	"github.com/roach88/npuprof/internal/store"
)

// Store is the persistence the pipeline needs. *store.Store implements it.
type Store interface {
	LoadLedger(ctx context.Context, stream string) (*ledger.Entry, error)
	LoadFlips(ctx context.Context, device int) ([]catalog.TaskFlip, error)
	CommitPass(ctx context.Context, p store.Pass) error
	BeginRun(ctx context.Context, r store.Run) error
	FinishRun(ctx context.Context, r store.Run) error
}

// Pipeline runs ingest passes over one data directory.
type Pipeline struct {
	cfg        *config.Config
	cat        *catalog.Catalog
	categories map[string]config.Category
	store      Store
	ledger     *ledger.Ledger
	metrics    *metrics.Metrics
	logger     *slog.Logger
	ids        RunIDGenerator
	now        func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics records run counters in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithRunIDs sets the run id generator. The default generates UUIDv7s.
func WithRunIDs(g RunIDGenerator) Option {
	return func(p *Pipeline) {
		p.ids = g
	}
}

// WithClock sets the wall clock used for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// New validates cfg and creates a Pipeline.
func New(cfg *config.Config, st Store, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("pipeline: data dir is required")
	}
	chip, err := catalog.ParseChip(cfg.Chip)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	cats, err := cfg.ResolveCategories()
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	p := &Pipeline{
		cfg:        cfg,
		cat:        catalog.New(chip),
		categories: make(map[string]config.Category, len(cats)),
		store:      st,
		metrics:    metrics.New(),
		logger:     slog.Default(),
		ids:        UUIDv7Generator{},
		now:        time.Now,
	}
	for _, c := range cats {
		p.categories[c.Name] = c
	}
	for _, opt := range opts {
		opt(p)
	}
	p.ledger = ledger.New(p.logger)
	return p, nil
}

// Metrics returns the counters the pipeline records into.
func (p *Pipeline) Metrics() *metrics.Metrics { return p.metrics }

// Run performs one ingest pass over every configured stream of the data
// directory. The report is returned even when err is non-nil; err joins the
// errors of every device that could not be committed.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	start := p.now()
	streams, err := ledger.Discover(p.cfg.DataDir)
	if err != nil {
		return nil, err
	}

	run := store.Run{
		ID:        p.ids.Generate(),
		StartedAt: start,
		Chip:      p.cfg.Chip,
		DataDir:   p.cfg.DataDir,
	}
	if err := p.store.BeginRun(ctx, run); err != nil {
		return nil, err
	}
	report := &Report{RunID: run.ID}
	p.logger.Info("ingest started", "run", run.ID, "data_dir", p.cfg.DataDir,
		"chip", p.cfg.Chip, "streams", len(streams))

	byDevice := make(map[int][]ledger.Stream)
	for _, s := range streams {
		if _, ok := p.categories[s.Key.Category]; !ok {
			p.logger.Debug("skipping unconfigured category", "stream", s.Key.String())
			report.Skipped = append(report.Skipped, s.Key.String())
			continue
		}
		byDevice[s.Key.Device] = append(byDevice[s.Key.Device], s)
	}
	devices := make([]int, 0, len(byDevice))
	for d := range byDevice {
		devices = append(devices, d)
	}
	sort.Ints(devices)

	var errs []error
	for _, device := range devices {
		dr, err := p.runDevice(ctx, run.ID, device, byDevice[device])
		if err != nil {
			if ctx.Err() != nil {
				return report, err
			}
			p.logger.Error("device pass failed", "run", run.ID, "device", device, "error", err)
			dr.Error = err.Error()
			errs = append(errs, fmt.Errorf("device %d: %w", device, err))
		}
		report.Devices = append(report.Devices, dr)
	}

	run.FinishedAt = p.now()
	run.Status = store.RunComplete
	if len(errs) > 0 {
		run.Status = store.RunFailed
	}
	t := report.Totals()
	run.Decoded, run.Dropped, run.Calibrated, run.Failures = t.Decoded, t.Dropped, t.Calibrated, t.Failures
	if err := p.store.FinishRun(ctx, run); err != nil {
		errs = append(errs, err)
	}
	p.metrics.RunDuration(run.FinishedAt.Sub(start))

	p.logger.Info("ingest finished", "run", run.ID, "status", run.Status,
		"decoded", t.Decoded, "dropped", t.Dropped, "calibrated", t.Calibrated, "failures", t.Failures)
	return report, errors.Join(errs...)
}

// streamResult is what one stream worker hands back.
type streamResult struct {
	report  StreamReport
	records map[catalog.Kind][]catalog.Record
	entry   *ledger.Entry
}

func (p *Pipeline) runDevice(ctx context.Context, runID string, device int, streams []ledger.Stream) (DeviceReport, error) {
	dr := DeviceReport{Device: device, Calibrated: map[uint16]int{}}

	results := make([]*streamResult, len(streams))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(p.cfg.WorkerCount())
	for i, s := range streams {
		eg.Go(func() error {
			res, err := p.runStream(egCtx, s)
			if err != nil {
				return fmt.Errorf("stream %s: %w", s.Key, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return dr, err
	}

	rows := make(map[catalog.Kind][]catalog.Record)
	for _, res := range results {
		dr.Streams = append(dr.Streams, res.report)
		for kind, recs := range res.records {
			rows[kind] = append(rows[kind], recs...)
		}
	}
	sortStreams(dr.Streams)

	pass := store.Pass{RunID: runID}
	for _, res := range results {
		pass.Entries = append(pass.Entries, res.entry)
	}

	batches, calibrated, err := p.assignBatches(ctx, device, rows)
	if err != nil {
		return dr, err
	}
	for stream, n := range calibrated {
		dr.Calibrated[stream] += n
	}

	for _, kind := range catalog.Kinds() {
		recs := rows[kind]
		if len(recs) == 0 {
			continue
		}
		pass.Rows = append(pass.Rows, store.Rows{
			Kind:    kind,
			Device:  device,
			Records: recs,
			Batches: batches[kind],
		})
	}

	if err := p.store.CommitPass(ctx, pass); err != nil {
		return dr, err
	}
	dr.Committed = true

	for _, s := range dr.Streams {
		p.record(s)
	}
	total := 0
	for _, n := range dr.Calibrated {
		total += n
	}
	if total > 0 {
		p.metrics.Calibrated(device, total)
	}
	return dr, nil
}

// runStream reads and decodes the new bytes of one stream. It never writes
// to the store.
func (p *Pipeline) runStream(ctx context.Context, s ledger.Stream) (*streamResult, error) {
	category := p.categories[s.Key.Category]
	key := s.Key.String()

	prev, err := p.store.LoadLedger(ctx, key)
	if err != nil {
		return nil, err
	}
	pass, err := p.ledger.Open(ctx, s, prev)
	if err != nil {
		return nil, err
	}

	records := make(map[catalog.Kind][]catalog.Record)
	d, err := p.newDemux(category, func(kind catalog.Kind, recs []catalog.Record) {
		records[kind] = recs
	})
	if err != nil {
		return nil, err
	}
	res := d.Dispatch(pass.Buffer)
	entry, truncated := pass.Commit(int64(res.Consumed))

	sr := StreamReport{
		Stream:    key,
		Category:  category.Name,
		BytesRead: len(pass.Buffer),
		Decoded:   make(map[string]int, len(res.Decoded)),
		Dropped:   make(map[string]int, len(res.Dropped)),
		Pending:   res.Pending,
		Truncated: truncated,
		Resets:    pass.Resets,
	}
	if truncated > 0 {
		sr.Pending = 0
		p.logger.Warn("finalized file ended mid-frame", "stream", key, "bytes", truncated)
	}
	for kind, n := range res.Decoded {
		sr.Decoded[kind.String()] = n
	}
	for reason, n := range res.Dropped {
		sr.Dropped[string(reason)] = n
	}
	for _, f := range pass.Failures {
		sr.Failures = append(sr.Failures, f.Error())
	}

	p.logger.Debug("stream decoded", "stream", key, "bytes", sr.BytesRead,
		"consumed", res.Consumed, "dropped", res.DroppedTotal(), "failures", len(sr.Failures))
	return &streamResult{report: sr, records: records, entry: entry}, nil
}

// newDemux builds the demultiplexer of a category. Formats wider or narrower
// than the family stride get an explicit tag stride.
func (p *Pipeline) newDemux(c config.Category, sink demux.Sink) (*demux.Demux, error) {
	opts := []demux.Option{demux.WithLogger(p.logger)}
	if c.Family == catalog.FamilyHost {
		opts = append(opts, demux.WithKind(c.Kinds[0]))
	} else {
		for _, kind := range c.Kinds {
			f, err := p.cat.Format(kind)
			if err != nil {
				return nil, err
			}
			if f.Width == c.Family.Stride() {
				continue
			}
			for _, tag := range f.Tags {
				opts = append(opts, demux.WithTagStride(tag, f.Width))
			}
		}
	}

	d, err := demux.New(p.cat, c.Family, opts...)
	if err != nil {
		return nil, err
	}
	for _, kind := range c.Kinds {
		if err := d.Register(kind, sink); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// assignBatches computes batch ids for every task kind of a device against
// the device's whole flip history.
func (p *Pipeline) assignBatches(ctx context.Context, device int, rows map[catalog.Kind][]catalog.Record) (map[catalog.Kind][]int64, map[uint16]int, error) {
	stored, err := p.store.LoadFlips(ctx, device)
	if err != nil {
		return nil, nil, err
	}
	flips := make([]batch.Flip, 0, len(stored)+len(rows[catalog.KindTaskFlip]))
	for _, f := range stored {
		flips = append(flips, flipOf(f))
	}
	for _, r := range rows[catalog.KindTaskFlip] {
		flips = append(flips, flipOf(r.(catalog.TaskFlip)))
	}

	out := make(map[catalog.Kind][]int64)
	calibrated := make(map[uint16]int)
	for _, kind := range catalog.Kinds() {
		if !kind.IsTask() || len(rows[kind]) == 0 {
			continue
		}
		tasks := make([]batch.Task, len(rows[kind]))
		for i, r := range rows[kind] {
			tasks[i] = taskOf(r)
		}
		a := batch.AssignStreams(tasks, flips)
		if err := a.Err(); err != nil {
			return nil, nil, fmt.Errorf("assign %s batches: %w", kind, err)
		}
		out[kind] = a.Batches
		for stream, n := range a.Calibrated {
			calibrated[stream] += n
		}
		p.logger.Debug("batches assigned", "device", device, "kind", kind,
			"tasks", len(tasks), "flips", len(flips))
	}
	return out, calibrated, nil
}

func (p *Pipeline) record(s StreamReport) {
	p.metrics.BytesRead(s.Category, s.BytesRead)
	for kind, n := range s.Decoded {
		p.metrics.Decoded(s.Category, kind, n)
	}
	for reason, n := range s.Dropped {
		p.metrics.Dropped(s.Category, reason, n)
	}
	if s.Truncated > 0 {
		p.metrics.Truncated(s.Category, s.Truncated)
	}
	if n := len(s.Failures); n > 0 {
		p.metrics.IOFailures(s.Category, n)
	}
	if n := len(s.Resets); n > 0 {
		p.metrics.Resets(s.Category, n)
	}
}

func flipOf(f catalog.TaskFlip) batch.Flip {
	return batch.Flip{StreamID: f.StreamID, FlipNum: f.FlipNum, TaskID: f.TaskID, Timestamp: f.Timestamp}
}

func taskOf(r catalog.Record) batch.Task {
	t := batch.Task{StreamID: r.Stream(), Timestamp: r.Time()}
	switch rec := r.(type) {
	case catalog.AcsqLog:
		t.TaskID = rec.TaskID
	case catalog.FftsThreadLog:
		t.TaskID = rec.TaskID
	case catalog.HwtsLog:
		t.TaskID = rec.TaskID
	}
	return t
}
