package store

import (
	"fmt"
	"strings"

	"github.com/roach88/npuprof/internal/catalog"
)

// Column order of record tables is fixed per kind and identical across chip
// generations, so any catalog describes the schema.
var schemaCatalog = catalog.New(catalog.ChipMini)

var blobColumns = map[string]bool{"counters": true}

// tableColumns returns the insertable columns of kind's table in order:
// run_id, device, the catalog columns, then batch_id for task kinds.
func tableColumns(kind catalog.Kind) ([]string, error) {
	f, err := schemaCatalog.Format(kind)
	if err != nil {
		return nil, err
	}
	cols := make([]string, 0, len(f.Columns)+3)
	cols = append(cols, "run_id", "device")
	cols = append(cols, f.Columns...)
	if kind.IsTask() {
		cols = append(cols, "batch_id")
	}
	return cols, nil
}

func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func recordTableDDL() []string {
	var out []string
	for _, kind := range catalog.Kinds() {
		cols, err := tableColumns(kind)
		if err != nil {
			panic(fmt.Sprintf("store: %v", err))
		}
		defs := make([]string, 0, len(cols))
		for _, c := range cols {
			typ := "INTEGER NOT NULL"
			switch {
			case c == "run_id":
				typ = "TEXT NOT NULL"
			case blobColumns[c]:
				typ = "BLOB"
			}
			defs = append(defs, quote(c)+" "+typ)
		}
		out = append(out, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    %s\n)",
			quote(kind.String()), strings.Join(defs, ",\n    ")))
	}
	return out
}

func insertSQL(kind catalog.Kind) (string, error) {
	cols, err := tableColumns(kind)
	if err != nil {
		return "", err
	}
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quote(c)
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quote(kind.String()), strings.Join(quoted, ", "), marks), nil
}
