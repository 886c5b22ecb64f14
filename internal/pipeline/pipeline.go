// Package pipeline runs one summarization batch: it plans the work against
// the ledger, resolves the selected books one at a time, persists the new
// entries and joins the ledger back onto the catalog.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lepinkainen/bookbrief/internal/cache"
	"github.com/lepinkainen/bookbrief/internal/catalog"
	"github.com/lepinkainen/bookbrief/internal/config"
	"github.com/lepinkainen/bookbrief/internal/resolver"
)

// SourceNone labels catalog rows without a ledger entry in Stats.
const SourceNone cache.Source = "none"

// Resolver resolves a single book.
type Resolver interface {
	Resolve(ctx context.Context, q resolver.Query) resolver.Result
}

// Ledger is the persistent summary store.
type Ledger interface {
	Load() ([]cache.Entry, error)
	MergeAndSave(fresh []cache.Entry) ([]cache.Entry, error)
}

// Tracker receives progress updates. progress.Tracker implements it.
type Tracker interface {
	Start(total int)
	Step()
	Finish()
}

// Options tune a run.
type Options struct {
	MaxSummaries int
	Seed         uint64
	// Flush is config.FlushBatch or config.FlushBook.
	Flush   string
	Tracker Tracker
}

// OptionsFromConfig maps the run configuration to pipeline options.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{MaxSummaries: cfg.MaxSummaries, Seed: cfg.Seed, Flush: cfg.Flush}
}

// Row is a catalog book with its resolved summary, if any.
type Row struct {
	catalog.Book
	Summary string
	Source  cache.Source
}

// HasSummary reports whether the row carries a summary.
func (r Row) HasSummary() bool {
	return r.Summary != ""
}

// Stats summarises a run.
type Stats struct {
	Catalog     int
	Cached      int
	Remaining   int
	Selected    int
	Processed   int
	Resolved    int
	LedgerSize  int
	BySource    map[cache.Source]int
	Interrupted bool
}

// Outcome is the result of a run.
type Outcome struct {
	Rows  []Row
	Stats Stats
}

// Orchestrator drives a Resolver over a batch of books.
type Orchestrator struct {
	resolver Resolver
	ledger   Ledger
	opts     Options
}

// New creates an Orchestrator.
func New(r Resolver, ledger Ledger, opts Options) *Orchestrator {
	if opts.Flush == "" {
		opts.Flush = config.FlushBatch
	}
	if opts.Tracker == nil {
		opts.Tracker = nopTracker{}
	}
	return &Orchestrator{resolver: r, ledger: ledger, opts: opts}
}

// Run processes up to MaxSummaries-|ledger| unresolved books. Books are
// resolved sequentially. Successful results are written to the ledger
// after every book or once at the end of the batch, depending on Flush.
// A cancelled ctx stops the run between books; what was resolved so far
// is still written.
func (o *Orchestrator) Run(ctx context.Context, books []catalog.Book) (*Outcome, error) {
	existing, err := o.ledger.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	plan := cache.SelectBatch(books, existing, o.opts.MaxSummaries, o.opts.Seed)
	stats := Stats{
		Catalog:   len(books),
		Cached:    plan.Cached,
		Remaining: plan.Remaining,
		Selected:  len(plan.Batch),
	}

	if plan.Done() {
		slog.Info("Nothing to do", "cached", plan.Cached, "remaining", plan.Remaining, "max", o.opts.MaxSummaries)
		return o.finish(existing, books, stats), nil
	}

	slog.Info("Starting batch", "selected", len(plan.Batch), "cached", plan.Cached, "remaining", plan.Remaining)

	var fresh []cache.Entry
	o.opts.Tracker.Start(len(plan.Batch))
	for _, book := range plan.Batch {
		if ctx.Err() != nil {
			stats.Interrupted = true
			slog.Warn("Run interrupted, saving progress", "processed", stats.Processed, "selected", stats.Selected)
			break
		}

		res := o.resolver.Resolve(ctx, resolver.QueryFor(book))
		stats.Processed++
		o.opts.Tracker.Step()

		if !res.Found() {
			slog.Debug("No summary found", "book_id", book.ID, "title", book.Title)
			continue
		}

		stats.Resolved++
		entry := cache.NewEntry(book, res.Summary, res.Source)
		slog.Debug("Summary resolved", "book_id", book.ID, "title", book.Title, "source", res.Source)

		if o.opts.Flush == config.FlushBook {
			if _, err := o.ledger.MergeAndSave([]cache.Entry{entry}); err != nil {
				o.opts.Tracker.Finish()
				return nil, fmt.Errorf("failed to save ledger: %w", err)
			}
			continue
		}
		fresh = append(fresh, entry)
	}
	o.opts.Tracker.Finish()

	if len(fresh) > 0 {
		if _, err := o.ledger.MergeAndSave(fresh); err != nil {
			return nil, fmt.Errorf("failed to save ledger: %w", err)
		}
	}

	merged, err := o.ledger.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to reload ledger: %w", err)
	}
	return o.finish(merged, books, stats), nil
}

func (o *Orchestrator) finish(entries []cache.Entry, books []catalog.Book, stats Stats) *Outcome {
	rows := Join(books, entries)
	stats.LedgerSize = len(entries)
	stats.BySource = CountBySource(rows)
	return &Outcome{Rows: rows, Stats: stats}
}

// Join left-joins entries onto books by book_id. Books without an entry
// keep an empty summary and source.
func Join(books []catalog.Book, entries []cache.Entry) []Row {
	idx := cache.Index(entries)
	rows := make([]Row, 0, len(books))
	for _, b := range books {
		row := Row{Book: b}
		if e, ok := idx[b.ID]; ok {
			row.Summary = e.Summary
			row.Source = e.Source
		}
		rows = append(rows, row)
	}
	return rows
}

// Summarized returns the rows that carry a summary.
func Summarized(rows []Row) []Row {
	var out []Row
	for _, r := range rows {
		if r.HasSummary() {
			out = append(out, r)
		}
	}
	return out
}

// CountBySource tallies rows per source label; rows without an entry count
// as SourceNone.
func CountBySource(rows []Row) map[cache.Source]int {
	counts := make(map[cache.Source]int)
	for _, r := range rows {
		source := r.Source
		if source == "" {
			source = SourceNone
		}
		counts[source]++
	}
	return counts
}

type nopTracker struct{}

func (nopTracker) Start(int) {}
func (nopTracker) Step()     {}
func (nopTracker) Finish()   {}
