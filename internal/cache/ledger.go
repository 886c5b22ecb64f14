// Package cache is the resumable summary ledger. Each resolved book is
// stored once, keyed by book_id; later runs only resolve books the ledger
// does not yet hold.
package cache

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/lepinkainen/bookbrief/internal/catalog"
)

// Source labels how a summary was obtained.
type Source string

const (
	SourceISBN     Source = "isbn_search"
	SourceTitle    Source = "title_search"
	SourceNotFound Source = "not_found"
)

// Valid reports whether s is one of the known labels.
func (s Source) Valid() bool {
	switch s {
	case SourceISBN, SourceTitle, SourceNotFound:
		return true
	}
	return false
}

// Columns is the ledger schema, in storage order.
var Columns = []string{"book_id", "title", "authors", "isbn", "summary", "source"}

// Entry is one resolved book.
type Entry struct {
	BookID  string
	Title   string
	Authors string
	ISBN    string
	Summary string
	Source  Source
}

// NewEntry builds a ledger entry for book.
func NewEntry(book catalog.Book, summary string, source Source) Entry {
	return Entry{
		BookID:  book.ID,
		Title:   book.Title,
		Authors: book.Authors,
		ISBN:    book.ISBN,
		Summary: summary,
		Source:  source,
	}
}

func (e Entry) record() []string {
	return []string{e.BookID, e.Title, e.Authors, e.ISBN, e.Summary, string(e.Source)}
}

func (e Entry) validate() error {
	if e.BookID == "" {
		return fmt.Errorf("entry without book_id")
	}
	if !e.Source.Valid() {
		return fmt.Errorf("book %s has unknown source %q", e.BookID, e.Source)
	}
	return nil
}

// Merge returns existing followed by fresh, deduplicated by book_id. The
// first occurrence wins, so entries already in the ledger are never
// replaced by a later run.
func Merge(existing, fresh []Entry) []Entry {
	seen := make(map[string]struct{}, len(existing)+len(fresh))
	merged := make([]Entry, 0, len(existing)+len(fresh))
	for _, list := range [][]Entry{existing, fresh} {
		for _, e := range list {
			if _, dup := seen[e.BookID]; dup {
				continue
			}
			seen[e.BookID] = struct{}{}
			merged = append(merged, e)
		}
	}
	return merged
}

// Index maps book_id to entry.
func Index(entries []Entry) map[string]Entry {
	idx := make(map[string]Entry, len(entries))
	for _, e := range entries {
		if _, dup := idx[e.BookID]; !dup {
			idx[e.BookID] = e
		}
	}
	return idx
}

// Remaining returns the books that have no ledger entry, in catalog order.
func Remaining(books []catalog.Book, entries []Entry) []catalog.Book {
	idx := Index(entries)
	var remaining []catalog.Book
	for _, b := range books {
		if _, done := idx[b.ID]; !done {
			remaining = append(remaining, b)
		}
	}
	return remaining
}

// Plan describes the work of one run.
type Plan struct {
	Cached    int
	Remaining int
	Batch     []catalog.Book
}

// Done reports whether the ledger already holds enough summaries.
func (p Plan) Done() bool {
	return len(p.Batch) == 0
}

// SelectBatch picks min(maxSummaries-|entries|, |remaining|) unresolved
// books by sampling without replacement. A non-zero seed makes the sample
// reproducible.
func SelectBatch(books []catalog.Book, entries []Entry, maxSummaries int, seed uint64) Plan {
	remaining := Remaining(books, entries)
	plan := Plan{Cached: len(entries), Remaining: len(remaining)}

	n := min(maxSummaries-len(entries), len(remaining))
	if n <= 0 {
		return plan
	}

	r := newRand(seed)
	sample := slices.Clone(remaining)
	r.Shuffle(len(sample), func(i, j int) { sample[i], sample[j] = sample[j], sample[i] })
	plan.Batch = sample[:n]
	return plan
}

func newRand(seed uint64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(seed, seed))
}

// CountBySource tallies entries per source label.
func CountBySource(entries []Entry) map[Source]int {
	counts := make(map[Source]int)
	for _, e := range entries {
		counts[e.Source]++
	}
	return counts
}
