package csvutil

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ErrEmptyFile is returned when a CSV file has no header row.
var ErrEmptyFile = errors.New("CSV file is empty")

// ProcessorOptions configures CSV processing behavior.
type ProcessorOptions struct {
	// SkipInvalid controls whether to skip invalid records or return an error.
	SkipInvalid bool
}

// Table is a CSV document addressed by header name.
type Table struct {
	Header []string
	Rows   [][]string
	index  map[string]int
}

// Row is a single record of a Table.
type Row struct {
	Line   int
	table  *Table
	record []string
}

// Get returns the value of the named column, or "" if the column is absent
// or the record is short.
func (r Row) Get(column string) string {
	i, ok := r.table.index[column]
	if !ok || i >= len(r.record) {
		return ""
	}
	return r.record[i]
}

// ReadFile reads a whole CSV file with a header row.
func ReadFile(filename string) (*Table, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Read(f)
}

// Read parses CSV data with a header row. Column names are trimmed and a
// UTF-8 byte order mark on the first column is dropped.
func Read(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	t := &Table{Header: make([]string, len(header)), index: make(map[string]int, len(header))}
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		t.Header[i] = name
		if _, dup := t.index[name]; !dup {
			t.index[name] = i
		}
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}
		t.Rows = append(t.Rows, record)
	}

	return t, nil
}

// Has reports whether the table has the named column.
func (t *Table) Has(column string) bool {
	_, ok := t.index[column]
	return ok
}

// Missing returns the columns from required that the table lacks, in order.
func (t *Table) Missing(required ...string) []string {
	var missing []string
	for _, col := range required {
		if !t.Has(col) {
			missing = append(missing, col)
		}
	}
	return missing
}

// Process parses each row of t into type T.
// Row line numbers are 1-based and count the header.
func Process[T any](t *Table, parser func(Row) (T, error), opts ProcessorOptions) ([]T, error) {
	items := make([]T, 0, len(t.Rows))

	for i, record := range t.Rows {
		row := Row{Line: i + 2, table: t, record: record}
		item, err := parser(row)
		if err != nil {
			if opts.SkipInvalid {
				slog.Warn("Skipping invalid record", "line", row.Line, "error", err)
				continue
			}
			return nil, fmt.Errorf("invalid record on line %d: %w", row.Line, err)
		}
		items = append(items, item)
	}

	return items, nil
}

// WriteFile writes header and rows to filename. The data is written to a
// temporary file in the same directory and renamed into place, so readers
// never observe a partially written file.
func WriteFile(filename string, header []string, rows [][]string) (err error) {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(filename)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write records: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", filename, err)
	}
	return nil
}
