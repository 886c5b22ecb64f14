package cache

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/lepinkainen/bookbrief/internal/csvutil"
)

// LedgerCSV stores the ledger as a CSV file with a header row.
type LedgerCSV struct {
	path string
}

// NewLedgerCSV returns a CSV ledger at path. The file is not touched until
// Load or Save.
func NewLedgerCSV(path string) *LedgerCSV {
	return &LedgerCSV{path: path}
}

// Load reads the ledger. An absent or empty file is an empty ledger; a file
// that cannot be parsed or lacks ledger columns is ErrMalformedCache.
func (c *LedgerCSV) Load() ([]Entry, error) {
	table, err := csvutil.ReadFile(c.path)
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, csvutil.ErrEmptyFile):
		slog.Debug("No existing ledger, starting empty", "file", c.path)
		return nil, nil
	case isParseError(err):
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedCache, c.path, err)
	case err != nil:
		return nil, fmt.Errorf("failed to read ledger %s: %w", c.path, err)
	}

	if missing := table.Missing(Columns...); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s: missing columns %s", ErrMalformedCache, c.path, strings.Join(missing, ", "))
	}

	return csvutil.Process(table, func(r csvutil.Row) (Entry, error) {
		e := Entry{
			BookID:  strings.TrimSpace(r.Get("book_id")),
			Title:   r.Get("title"),
			Authors: r.Get("authors"),
			ISBN:    r.Get("isbn"),
			Summary: r.Get("summary"),
			Source:  Source(strings.TrimSpace(r.Get("source"))),
		}
		if err := e.validate(); err != nil {
			return Entry{}, fmt.Errorf("%w: %s: %v", ErrMalformedCache, c.path, err)
		}
		return e, nil
	}, csvutil.ProcessorOptions{})
}

// Save writes entries atomically, replacing the previous file.
func (c *LedgerCSV) Save(entries []Entry) error {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, e.record())
	}
	if err := csvutil.WriteFile(c.path, Columns, rows); err != nil {
		return fmt.Errorf("failed to save ledger %s: %w", c.path, err)
	}
	slog.Debug("Ledger saved", "file", c.path, "entries", len(entries))
	return nil
}

// Close is a no-op.
func (c *LedgerCSV) Close() error { return nil }

func isParseError(err error) bool {
	var parseErr *csv.ParseError
	return errors.As(err, &parseErr)
}
