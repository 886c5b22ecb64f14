// Package resolver finds a summary for a single book: an ISBN lookup first,
// then a scored title/author search.
package resolver

import (
	"context"
	"log/slog"

	"github.com/lepinkainen/bookbrief/internal/cache"
	"github.com/lepinkainen/bookbrief/internal/catalog"
	bberrors "github.com/lepinkainen/bookbrief/internal/errors"
	"github.com/lepinkainen/bookbrief/internal/match"
	"github.com/lepinkainen/bookbrief/internal/openlibrary"
)

// Fetcher is the remote lookup the resolver drives. *openlibrary.Client
// implements it.
type Fetcher interface {
	FetchByISBN(ctx context.Context, isbn string) (string, error)
	Search(ctx context.Context, title, author string, attempt int) ([]openlibrary.Candidate, error)
}

// Query identifies the book to resolve. Author and ISBN are optional.
type Query struct {
	Title  string
	Author string
	ISBN   string
}

// QueryFor builds the query for a catalog book.
func QueryFor(b catalog.Book) Query {
	return Query{Title: b.Title, Author: b.Authors, ISBN: b.ISBN}
}

// Result is the outcome of a resolution. Summary is empty when Source is
// cache.SourceNotFound.
type Result struct {
	Summary string
	Source  cache.Source
}

// Found reports whether a summary was resolved.
func (r Result) Found() bool {
	return r.Source != cache.SourceNotFound && r.Summary != ""
}

var notFound = Result{Source: cache.SourceNotFound}

// Resolver resolves summaries through a Fetcher.
type Resolver struct {
	fetcher Fetcher
	retries int
}

// New creates a Resolver making at most retries search attempts per book.
func New(fetcher Fetcher, retries int) *Resolver {
	return &Resolver{fetcher: fetcher, retries: max(retries, 1)}
}

// Resolve returns the summary for q. Failures are logged and never
// returned: a book that cannot be resolved is simply not found.
func (r *Resolver) Resolve(ctx context.Context, q Query) Result {
	log := slog.With("title", q.Title)

	if q.ISBN != "" {
		desc, err := r.fetcher.FetchByISBN(ctx, q.ISBN)
		switch {
		case err != nil:
			log.Warn("ISBN lookup failed", "isbn", q.ISBN, "error", err)
		case desc != "":
			return Result{Summary: desc, Source: cache.SourceISBN}
		}
	}

	var best match.Best[openlibrary.Candidate]
	for attempt := 1; attempt <= r.retries; attempt++ {
		if ctx.Err() != nil {
			break
		}

		candidates, err := r.fetcher.Search(ctx, q.Title, q.Author, attempt)
		if err != nil {
			r.logSearchError(log, err, attempt)
			continue
		}

		for _, c := range candidates {
			best.Offer(c, match.Score(q.Title, q.Author, c.Title, c.AuthorNames))
		}

		if winner, _, _ := best.Get(); best.Accepted() && winner.Description != "" {
			return Result{Summary: winner.Description, Source: cache.SourceTitle}
		}
	}

	if winner, score, ok := best.Get(); ok {
		log.Debug("No acceptable search match", "best_title", winner.Title, "score", score, "has_description", winner.Description != "")
	}
	return notFound
}

func (r *Resolver) logSearchError(log *slog.Logger, err error, attempt int) {
	if bberrors.IsRateLimitError(err) {
		log.Debug("Search rate limited, moving on", "attempt", attempt, "error", err)
		return
	}
	if attempt < r.retries {
		log.Debug("Search attempt failed, retrying", "attempt", attempt, "error", err)
		return
	}

	switch {
	case openlibrary.IsTimeout(err):
		log.Warn("Search timed out", "attempts", attempt, "error", err)
	case bberrors.IsStatusError(err):
		log.Warn("Search failed", "attempts", attempt, "status", bberrors.StatusCode(err), "error", err)
	default:
		log.Warn("Search failed", "attempts", attempt, "error", err)
	}
}
