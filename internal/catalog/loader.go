package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/lepinkainen/bookbrief/internal/csvutil"
	bberrors "github.com/lepinkainen/bookbrief/internal/errors"
)

// Column names of the catalog CSV.
const (
	ColumnID      = "book_id"
	ColumnTitle   = "title"
	ColumnAuthors = "authors"
	ColumnISBN13  = "isbn13"
	ColumnISBN    = "isbn"
)

// RequiredColumns must all be present in a catalog file.
var RequiredColumns = []string{ColumnID, ColumnTitle, ColumnAuthors}

// CheckFiles verifies that every path exists and is a regular file.
// All missing files are reported together.
func CheckFiles(paths ...string) error {
	var missing []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return bberrors.NewInputError(strings.Join(missing, ", "), "required input file is missing")
}

// Load reads a catalog CSV. The header is validated up front: missing
// required columns are fatal rather than silently ignored. Rows with an
// empty id or title and duplicate ids are skipped with a warning.
func Load(path string) ([]Book, error) {
	table, err := csvutil.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, bberrors.NewInputError(path, "catalog file does not exist")
	}
	if errors.Is(err, csvutil.ErrEmptyFile) {
		return nil, bberrors.NewInputError(path, "catalog file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}

	missing := table.Missing(RequiredColumns...)
	if !table.Has(ColumnISBN13) && !table.Has(ColumnISBN) {
		missing = append(missing, ColumnISBN13+" or "+ColumnISBN)
	}
	if len(missing) > 0 {
		return nil, bberrors.NewInputError(path, "catalog is missing required columns", missing...)
	}

	seen := make(map[string]struct{}, len(table.Rows))
	books, err := csvutil.Process(table, func(r csvutil.Row) (Book, error) {
		book, err := parseBook(r)
		if err != nil {
			return Book{}, err
		}
		if _, dup := seen[book.ID]; dup {
			return Book{}, fmt.Errorf("duplicate book_id %s", book.ID)
		}
		seen[book.ID] = struct{}{}
		return book, nil
	}, csvutil.ProcessorOptions{SkipInvalid: true})
	if err != nil {
		return nil, err
	}

	slog.Info("Catalog loaded", "file", path, "books", len(books), "skipped", len(table.Rows)-len(books))
	return books, nil
}

func parseBook(r csvutil.Row) (Book, error) {
	id := strings.TrimSpace(r.Get(ColumnID))
	if id == "" {
		return Book{}, errors.New("empty book_id")
	}
	title := strings.TrimSpace(r.Get(ColumnTitle))
	if title == "" {
		return Book{}, fmt.Errorf("book %s has an empty title", id)
	}

	isbn := NormalizeISBN(r.Get(ColumnISBN13))
	if isbn == "" {
		isbn = NormalizeISBN(r.Get(ColumnISBN))
	}

	return Book{
		ID:      id,
		Title:   title,
		Authors: strings.TrimSpace(r.Get(ColumnAuthors)),
		ISBN:    isbn,
	}, nil
}
