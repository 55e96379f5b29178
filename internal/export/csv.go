package export

import (
	"encoding/csv"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/Sternrassler/ishmael-client/pkg/pagination"
)

// Columns returns every key of rows in first-seen row order. Keys new to a
// row are added in sorted order.
func Columns(rows []pagination.Row) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, row := range rows {
		for _, k := range orderedKeys(row) {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	return cols
}

// WriteCSV writes rows to path with a header of all keys. Missing values
// are empty; nested values are JSON. No rows produce an empty file.
func WriteCSV(path string, rows []pagination.Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if len(rows) == 0 {
		return f.Close()
	}

	cols := Columns(rows)
	w := csv.NewWriter(f)
	if err := w.Write(cols); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(cols))
	for _, row := range rows {
		for i, c := range cols {
			record[i] = stringValue(row[c])
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return f.Close()
}

func orderedKeys(row pagination.Row) []string {
	return slices.Sorted(maps.Keys(row))
}
