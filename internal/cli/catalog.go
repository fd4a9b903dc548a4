package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/npuprof/internal/catalog"
)

// CatalogOptions holds flags for the catalog command.
type CatalogOptions struct {
	*RootOptions
	Chip int
}

// FormatRow describes one record format.
type FormatRow struct {
	Kind    string   `json:"kind"`
	Family  string   `json:"family"`
	Name    string   `json:"name"`
	Tags    []int    `json:"tags"`
	Width   int      `json:"width"`
	Magic   int      `json:"magic,omitempty"`
	Columns []string `json:"columns"`
}

// NewCatalogCommand creates the catalog command.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CatalogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the record formats known for a chip",
		Long: `List every record format the decoder knows for a chip generation:
the stream family it arrives on, the header tags routed to it and its
frame size in bytes.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalog(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Chip, "chip", int(catalog.ChipCloud), "chip generation id")

	return cmd
}

func runCatalog(opts *CatalogOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	chip, err := catalog.ParseChip(opts.Chip)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeConfig, "unknown chip", err)
	}

	var rows []FormatRow
	for _, f := range catalog.New(chip).Formats() {
		tags := make([]int, len(f.Tags))
		for i, t := range f.Tags {
			tags[i] = int(t)
		}
		rows = append(rows, FormatRow{
			Kind:    f.Kind.String(),
			Family:  f.Family.String(),
			Name:    f.Name,
			Tags:    tags,
			Width:   f.Width,
			Magic:   int(f.Magic),
			Columns: f.Columns,
		})
	}

	return formatter.Render(rows, func(w io.Writer) error {
		return writeFormats(w, rows)
	})
}

func writeFormats(w io.Writer, rows []FormatRow) error {
	fmt.Fprintf(w, "%-16s %-8s %-8s %4s  %s\n", "KIND", "FAMILY", "TAGS", "SIZE", "NAME")
	for _, r := range rows {
		tags := "-"
		if len(r.Tags) > 0 {
			parts := make([]string, len(r.Tags))
			for i, t := range r.Tags {
				parts[i] = strconv.Itoa(t)
			}
			tags = strings.Join(parts, ",")
		}
		if _, err := fmt.Fprintf(w, "%-16s %-8s %-8s %4d  %s\n", r.Kind, r.Family, tags, r.Width, r.Name); err != nil {
			return err
		}
	}
	return nil
}
