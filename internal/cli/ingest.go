package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/npuprof/internal/config"
	"github.com/roach88/npuprof/internal/metrics"
	"github.com/roach88/npuprof/internal/pipeline"
	"github.com/roach88/npuprof/internal/store"
)

// IngestOptions holds flags for the ingest command.
type IngestOptions struct {
	*RootOptions
	Config      string
	DataDir     string
	Database    string
	Chip        int
	Workers     int
	MetricsFile string
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IngestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest new telemetry from a capture directory",
		Long: `Run one ingest pass over a capture directory.

Only bytes written since the previous pass are read. Every device's records
and its read offsets are committed together, so an interrupted pass can be
rerun safely. Flags override values from --config.

Example:
  npuprof ingest --data-dir ./PROF_000001/device_0/data --db ./prof.db
  npuprof ingest --config ./npuprof.yaml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to YAML config file")
	cmd.Flags().StringVar(&opts.DataDir, "data-dir", "", "capture data directory")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().IntVar(&opts.Chip, "chip", 0, "chip generation id")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "streams decoded concurrently per device")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus text metrics to this file")

	return cmd
}

func runIngest(opts *IngestOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := ingestConfig(opts, cmd)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}
	if cfg.DataDir == "" {
		return formatter.fail(ExitCommandError, ErrCodeConfig, "data dir is required (--data-dir or data_dir in config)", nil)
	}
	if info, err := os.Stat(cfg.DataDir); err != nil {
		return formatter.fail(ExitCommandError, ErrCodeDataDir, "data dir not readable", err)
	} else if !info.IsDir() {
		return formatter.fail(ExitCommandError, ErrCodeDataDir, fmt.Sprintf("%s is not a directory", cfg.DataDir), nil)
	}

	logger := newLogger(opts.RootOptions, formatter.GetErrWriter())
	formatter.VerboseLog("opening database %s", cfg.DB)
	st, err := store.Open(cfg.DB)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeDatabase, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	p, err := pipeline.New(cfg, st,
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(metrics.New()),
	)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, runErr := p.Run(ctx)
	if report == nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, "ingest failed", runErr)
	}

	if cfg.MetricsFile != "" {
		if err := p.Metrics().WriteTextfile(cfg.MetricsFile); err != nil {
			return formatter.fail(ExitCommandError, ErrCodeMetricsWrite, "failed to write metrics", err)
		}
		formatter.VerboseLog("metrics written to %s", cfg.MetricsFile)
	}

	if err := formatter.Render(report, func(w io.Writer) error {
		return writeReport(w, report)
	}); err != nil {
		return err
	}
	if runErr != nil {
		return WrapExitError(ExitFailure, "ingest incomplete", runErr)
	}
	return nil
}

// ingestConfig loads --config, or the defaults, and applies the flags the
// user set explicitly.
func ingestConfig(opts *IngestOptions, cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if opts.Config != "" {
		loaded, err := config.Load(opts.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.DataDir = opts.DataDir
	}
	if flags.Changed("db") {
		cfg.DB = opts.Database
	}
	if flags.Changed("chip") {
		cfg.Chip = opts.Chip
	}
	if flags.Changed("workers") {
		cfg.Workers = opts.Workers
	}
	if flags.Changed("metrics-file") {
		cfg.MetricsFile = opts.MetricsFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func writeReport(w io.Writer, r *pipeline.Report) error {
	fmt.Fprintf(w, "run %s\n", r.RunID)
	for _, d := range r.Devices {
		status := "committed"
		if !d.Committed {
			status = "NOT COMMITTED: " + d.Error
		}
		fmt.Fprintf(w, "device %d: %s\n", d.Device, status)
		for _, s := range d.Streams {
			fmt.Fprintf(w, "  %s read=%d decoded=%s dropped=%s pending=%d",
				s.Stream, s.BytesRead, counts(s.Decoded), counts(s.Dropped), s.Pending)
			if s.Truncated > 0 {
				fmt.Fprintf(w, " truncated=%d", s.Truncated)
			}
			fmt.Fprintln(w)
			for _, f := range s.Failures {
				fmt.Fprintf(w, "    failed: %s\n", f)
			}
			for _, reset := range s.Resets {
				fmt.Fprintf(w, "    reset: %s\n", reset)
			}
		}
	}
	for _, s := range r.Skipped {
		fmt.Fprintf(w, "skipped %s\n", s)
	}
	t := r.Totals()
	_, err := fmt.Fprintf(w, "total decoded=%d dropped=%d calibrated=%d failures=%d\n",
		t.Decoded, t.Dropped, t.Calibrated, t.Failures)
	return err
}

// counts renders a counter map as "a=1,b=2" in key order, or "-".
func counts(m map[string]int) string {
	if len(m) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, m[k])
	}
	return strings.Join(parts, ",")
}
