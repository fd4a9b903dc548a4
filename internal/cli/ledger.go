package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/npuprof/internal/store"
)

// DBOptions holds flags for commands that only read the database.
type DBOptions struct {
	*RootOptions
	Database string
	Limit    int
}

// LedgerRow is one file offset as shown by the ledger command.
type LedgerRow struct {
	Stream   string `json:"stream"`
	File     string `json:"file"`
	Offset   int64  `json:"offset"`
	Size     int64  `json:"size"`
	Complete bool   `json:"complete"`
}

// RunRow is one ingest run as shown by the runs command.
type RunRow struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
	Chip       int    `json:"chip"`
	DataDir    string `json:"data_dir"`
	Decoded    int    `json:"decoded"`
	Dropped    int    `json:"dropped"`
	Calibrated int    `json:"calibrated"`
	Failures   int    `json:"failures"`
}

// NewLedgerCommand creates the ledger command.
func NewLedgerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DBOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Show how far each data file has been consumed",
		Long: `List the recorded read offset of every data file, grouped by stream.

A file marked complete was finalized by the profiler and fully consumed; it
is never opened again.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLedger(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DBOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "runs",
		Short:         "List recent ingest runs, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs to list")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

// openExisting opens a database that must already exist. store.Open would
// create an empty one.
func openExisting(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return store.Open(path)
}

func runLedger(opts *DBOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	st, err := openExisting(opts.Database)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeDatabase, "failed to open database", err)
	}
	defer st.Close()

	entries, err := st.Ledgers(cmd.Context())
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeDatabase, "failed to read ledger", err)
	}

	rows := []LedgerRow{}
	for _, e := range entries {
		files := make([]string, 0, len(e.Files))
		for name := range e.Files {
			files = append(files, name)
		}
		sort.Strings(files)
		for _, name := range files {
			fs := e.Files[name]
			rows = append(rows, LedgerRow{
				Stream:   e.Stream,
				File:     name,
				Offset:   fs.Offset,
				Size:     fs.Size,
				Complete: fs.Complete,
			})
		}
	}

	return formatter.Render(rows, func(w io.Writer) error {
		if len(rows) == 0 {
			_, err := fmt.Fprintln(w, "ledger is empty")
			return err
		}
		stream := ""
		for _, r := range rows {
			if r.Stream != stream {
				stream = r.Stream
				fmt.Fprintln(w, stream)
			}
			mark := ""
			if r.Complete {
				mark = " complete"
			}
			fmt.Fprintf(w, "  %s %d/%d%s\n", r.File, r.Offset, r.Size, mark)
		}
		return nil
	})
}

func runRuns(opts *DBOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	if opts.Limit <= 0 {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, "limit must be positive", nil)
	}
	st, err := openExisting(opts.Database)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeDatabase, "failed to open database", err)
	}
	defer st.Close()

	runs, err := st.Runs(cmd.Context(), opts.Limit)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeDatabase, "failed to list runs", err)
	}

	rows := make([]RunRow, len(runs))
	for i, r := range runs {
		rows[i] = RunRow{
			ID:         r.ID,
			Status:     r.Status,
			StartedAt:  r.StartedAt.UTC().Format(time.RFC3339),
			Chip:       r.Chip,
			DataDir:    r.DataDir,
			Decoded:    r.Decoded,
			Dropped:    r.Dropped,
			Calibrated: r.Calibrated,
			Failures:   r.Failures,
		}
		if !r.FinishedAt.IsZero() {
			rows[i].FinishedAt = r.FinishedAt.UTC().Format(time.RFC3339)
		}
	}

	return formatter.Render(rows, func(w io.Writer) error {
		if len(rows) == 0 {
			_, err := fmt.Fprintln(w, "no runs recorded")
			return err
		}
		for _, r := range rows {
			fmt.Fprintf(w, "%s %-8s %s decoded=%d dropped=%d calibrated=%d failures=%d\n",
				r.ID, r.Status, r.StartedAt, r.Decoded, r.Dropped, r.Calibrated, r.Failures)
		}
		return nil
	})
}
