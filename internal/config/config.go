// Package config loads the ingest configuration file.
package config

import (
	"bytes"
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/roach88/npuprof/internal/catalog"
)

// Config is the ingest configuration. Command-line flags override file values.
type Config struct {
	// DataDir holds the capture's rotated data files.
	DataDir string `yaml:"data_dir"`

	// DB is the path of the SQLite store.
	DB string `yaml:"db"`

	// Chip is the accelerator generation id reported by the capture.
	Chip int `yaml:"chip"`

	// Workers bounds how many category streams are processed at once.
	// Zero means one per CPU.
	Workers int `yaml:"workers,omitempty"`

	// Categories replaces the built-in category table when non-empty.
	Categories []CategorySpec `yaml:"categories,omitempty"`

	// MetricsFile, if set, receives a Prometheus text exposition of the run
	// counters when ingest finishes.
	MetricsFile string `yaml:"metrics_file,omitempty"`
}

// CategorySpec maps a file category to the family its frames belong to and
// the kinds decoded from it. Host categories carry exactly one kind.
type CategorySpec struct {
	Name   string   `yaml:"name"`
	Family string   `yaml:"family"`
	Kinds  []string `yaml:"kinds"`
}

// Category is a resolved CategorySpec.
type Category struct {
	Name   string
	Family catalog.Family
	Kinds  []catalog.Kind
}

// Kind families do not depend on the chip generation.
var kindCatalog = catalog.New(catalog.ChipMini)

// DefaultCategories is the built-in category table.
func DefaultCategories() []CategorySpec {
	return []CategorySpec{
		{Name: "stars_soc", Family: "stars", Kinds: []string{"acsq_log", "ffts_thread_log", "ffts_pmu"}},
		{Name: "hwts", Family: "hwts", Kinds: []string{"hwts_log"}},
		{Name: "ts_track", Family: "tstrack", Kinds: []string{"task_flip", "step_trace", "stream_reset"}},
		{Name: "api_event", Family: "host", Kinds: []string{"api_event"}},
		{Name: "node_task", Family: "host", Kinds: []string{"node_task"}},
	}
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		DB:   "npuprof.db",
		Chip: int(catalog.ChipCloud),
	}
}

// Load reads and validates a configuration file. Unknown keys are rejected.
// Fields absent from the file keep their Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks field values. DataDir is not required here because the
// command line may still supply it.
func (c *Config) Validate() error {
	if c.DB == "" {
		return fmt.Errorf("db is required")
	}
	if _, err := catalog.ParseChip(c.Chip); err != nil {
		return fmt.Errorf("chip: %w", err)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	if _, err := c.ResolveCategories(); err != nil {
		return err
	}
	return nil
}

// WorkerCount returns Workers, or the number of CPUs when it is zero.
func (c *Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

// ResolveCategories returns the category table with names checked against
// the catalog.
func (c *Config) ResolveCategories() ([]Category, error) {
	specs := c.Categories
	if len(specs) == 0 {
		specs = DefaultCategories()
	}

	seen := make(map[string]bool, len(specs))
	out := make([]Category, 0, len(specs))
	for i, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("categories[%d]: name is required", i)
		}
		if seen[spec.Name] {
			return nil, fmt.Errorf("categories[%d]: duplicate category %q", i, spec.Name)
		}
		seen[spec.Name] = true

		family, ok := catalog.ParseFamily(spec.Family)
		if !ok {
			return nil, fmt.Errorf("category %s: unknown family %q", spec.Name, spec.Family)
		}
		if len(spec.Kinds) == 0 {
			return nil, fmt.Errorf("category %s: kinds list is required and must be non-empty", spec.Name)
		}
		if family == catalog.FamilyHost && len(spec.Kinds) != 1 {
			return nil, fmt.Errorf("category %s: host categories carry exactly one kind", spec.Name)
		}

		cat := Category{Name: spec.Name, Family: family}
		for _, name := range spec.Kinds {
			kind, ok := catalog.ParseKind(name)
			if !ok {
				return nil, fmt.Errorf("category %s: unknown kind %q", spec.Name, name)
			}
			if f, err := kindCatalog.Format(kind); err != nil || f.Family != family {
				return nil, fmt.Errorf("category %s: kind %s is not in family %s", spec.Name, name, family)
			}
			cat.Kinds = append(cat.Kinds, kind)
		}
		out = append(out, cat)
	}
	return out, nil
}
