// Package output writes the catalog rows that received a summary.
package output

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lepinkainen/bookbrief/internal/cache"
	"github.com/lepinkainen/bookbrief/internal/csvutil"
	"github.com/lepinkainen/bookbrief/internal/datastore"
	"github.com/lepinkainen/bookbrief/internal/pipeline"
	"github.com/parquet-go/parquet-go"
)

// Record is one output row.
type Record struct {
	BookID  string `json:"book_id" parquet:"book_id" db:"book_id"`
	Title   string `json:"title" parquet:"title" db:"title"`
	Authors string `json:"authors" parquet:"authors" db:"authors"`
	ISBN    string `json:"isbn,omitempty" parquet:"isbn,optional" db:"isbn"`
	Summary string `json:"summary" parquet:"summary" db:"summary"`
	Source  string `json:"source" parquet:"source" db:"source"`
}

// Records converts the rows that carry a summary; rows without one are
// dropped.
func Records(rows []pipeline.Row) []Record {
	summarized := pipeline.Summarized(rows)
	records := make([]Record, 0, len(summarized))
	for _, r := range summarized {
		records = append(records, Record{
			BookID:  r.ID,
			Title:   r.Title,
			Authors: r.Authors,
			ISBN:    r.ISBN,
			Summary: r.Summary,
			Source:  string(r.Source),
		})
	}
	return records
}

// Write stores the summarized rows at path. The format follows the file
// extension: .json, .parquet, .db/.sqlite (a SQLite table), anything else
// is CSV.
func Write(path string, rows []pipeline.Row) (int, error) {
	records := Records(rows)

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}

	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = writeJSON(path, records)
	case ".parquet":
		err = writeParquet(path, records)
	case ".db", ".sqlite", ".sqlite3":
		err = writeSQLite(path, records)
	default:
		err = writeCSV(path, records)
	}
	if err != nil {
		return 0, err
	}

	slog.Info("Output written", "file", path, "rows", len(records))
	return len(records), nil
}

func writeCSV(path string, records []Record) error {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{r.BookID, r.Title, r.Authors, r.ISBN, r.Summary, r.Source})
	}
	return csvutil.WriteFile(path, cache.Columns, rows)
}

func writeJSON(path string, records []Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func writeParquet(path string, records []Record) error {
	if err := parquet.WriteFile(path, records); err != nil {
		return fmt.Errorf("failed to write parquet %s: %w", path, err)
	}
	return nil
}

func writeSQLite(path string, records []Record) (err error) {
	store := datastore.NewSQLiteStore(path)
	if err := store.Connect(); err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, closeErr)
		}
	}()

	if err := store.CreateTable(datastore.SummariesSchema); err != nil {
		return err
	}

	rows := make([]map[string]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, datastore.Row(r))
	}
	return store.BatchInsert(datastore.SummariesTable, rows)
}
