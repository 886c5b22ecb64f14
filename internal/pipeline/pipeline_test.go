package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/lepinkainen/bookbrief/internal/cache"
	"github.com/lepinkainen/bookbrief/internal/catalog"
	"github.com/lepinkainen/bookbrief/internal/config"
	"github.com/lepinkainen/bookbrief/internal/openlibrary"
	"github.com/lepinkainen/bookbrief/internal/resolver"
	"github.com/lepinkainen/bookbrief/internal/testutil"
	"github.com/stretchr/testify/require"
)

var (
	dune   = catalog.Book{ID: "1", Title: "Dune", Authors: "Frank Herbert", ISBN: "9780441172719"}
	omens  = catalog.Book{ID: "2", Title: "Good Omens", Authors: "Terry Pratchett, Neil Gaiman"}
	hobbit = catalog.Book{ID: "3", Title: "The Hobbit", Authors: "J.R.R. Tolkien", ISBN: "9780547928227"}
)

func openStore(t *testing.T, path string) *cache.Store {
	t.Helper()
	store, err := cache.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newResolver(srv *testutil.OpenLibraryServer, cfg config.Config) *resolver.Resolver {
	opts := openlibrary.OptionsFromConfig(cfg)
	opts.Sleeper = &testutil.Sleeper{}
	return resolver.New(openlibrary.NewClient(opts), cfg.SearchRetries)
}

func TestRunDune(t *testing.T) {
	env := testutil.NewTestEnv(t)
	srv := testutil.NewOpenLibraryServer(t)
	srv.OnISBN("9780441172719", testutil.JSON(`{"description": "A desert planet..."}`))

	cfg := testutil.TestConfig(env, srv.URL)
	cfg.MaxSummaries = 10
	store := openStore(t, cfg.CacheFile)

	out, err := New(newResolver(srv, cfg), store, OptionsFromConfig(cfg)).Run(context.Background(), []catalog.Book{dune})
	require.NoError(t, err)

	require.Equal(t, []Row{{Book: dune, Summary: "A desert planet...", Source: cache.SourceISBN}}, Summarized(out.Rows))
	require.Equal(t, 1, out.Stats.Resolved)
	require.Equal(t, map[cache.Source]int{cache.SourceISBN: 1}, out.Stats.BySource)

	entries, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, []cache.Entry{{
		BookID: "1", Title: "Dune", Authors: "Frank Herbert", ISBN: "9780441172719",
		Summary: "A desert planet...", Source: cache.SourceISBN,
	}}, entries)
}

func TestRunIsResumable(t *testing.T) {
	env := testutil.NewTestEnv(t)
	srv := testutil.NewOpenLibraryServer(t)
	srv.OnISBN("9780441172719", testutil.JSON(`{"description": "A desert planet..."}`))
	srv.OnSearch("Good Omens", testutil.JSON(`{"numFound": 1, "docs": [
		{"title": "Good Omens", "author_name": ["Terry Pratchett", "Neil Gaiman"], "description": "Armageddon."}
	]}`))

	cfg := testutil.TestConfig(env, srv.URL)
	cfg.MaxSummaries = 2
	books := []catalog.Book{dune, omens}

	store := openStore(t, cfg.CacheFile)
	first, err := New(newResolver(srv, cfg), store, OptionsFromConfig(cfg)).Run(context.Background(), books)
	require.NoError(t, err)
	require.Len(t, Summarized(first.Rows), 2)
	hits := srv.TotalHits()
	require.Equal(t, 2, hits)

	cfg.MaxSummaries = 1
	second, err := New(newResolver(srv, cfg), store, OptionsFromConfig(cfg)).Run(context.Background(), books)
	require.NoError(t, err)
	require.Equal(t, hits, srv.TotalHits())
	require.Zero(t, second.Stats.Selected)
	require.Equal(t, first.Rows, second.Rows)
}

func TestRunOnlyRemainingBooks(t *testing.T) {
	env := testutil.NewTestEnv(t)
	srv := testutil.NewOpenLibraryServer(t)
	srv.OnISBN("9780547928227", testutil.JSON(`{"description": "There and back again."}`))

	cfg := testutil.TestConfig(env, srv.URL)
	store := openStore(t, cfg.CacheFile)
	_, err := store.MergeAndSave([]cache.Entry{
		cache.NewEntry(dune, "cached", cache.SourceISBN),
		cache.NewEntry(omens, "cached too", cache.SourceTitle),
	})
	require.NoError(t, err)

	out, err := New(newResolver(srv, cfg), store, OptionsFromConfig(cfg)).Run(context.Background(), []catalog.Book{dune, omens, hobbit})
	require.NoError(t, err)

	require.Equal(t, 1, srv.TotalHits())
	require.Equal(t, 1, srv.ISBNHits("9780547928227"))
	require.Equal(t, 2, out.Stats.Cached)
	require.Equal(t, 1, out.Stats.Selected)
	require.Equal(t, 3, out.Stats.LedgerSize)
	require.Equal(t, "cached", out.Rows[0].Summary)
}

func TestRunNotFoundStaysOutOfLedger(t *testing.T) {
	env := testutil.NewTestEnv(t)
	srv := testutil.NewOpenLibraryServer(t)

	cfg := testutil.TestConfig(env, srv.URL)
	store := openStore(t, cfg.CacheFile)

	out, err := New(newResolver(srv, cfg), store, OptionsFromConfig(cfg)).Run(context.Background(), []catalog.Book{dune, omens})
	require.NoError(t, err)

	require.Empty(t, Summarized(out.Rows))
	require.Len(t, out.Rows, 2)
	require.Equal(t, map[cache.Source]int{SourceNone: 2}, out.Stats.BySource)
	require.Equal(t, 2, out.Stats.Processed)
	require.Zero(t, out.Stats.Resolved)
	require.False(t, env.FileExists("data/book_summaries_cache.csv"))
}

// scriptedResolver returns canned results and can cancel the run.
type scriptedResolver struct {
	results map[string]resolver.Result
	after   int
	cancel  context.CancelFunc
	calls   int
}

func (s *scriptedResolver) Resolve(_ context.Context, q resolver.Query) resolver.Result {
	s.calls++
	if s.cancel != nil && s.calls == s.after {
		s.cancel()
	}
	if r, ok := s.results[q.Title]; ok {
		return r
	}
	return resolver.Result{Source: cache.SourceNotFound}
}

// countingLedger counts writes on top of a Store.
type countingLedger struct {
	*cache.Store
	saves int
}

func (c *countingLedger) MergeAndSave(fresh []cache.Entry) ([]cache.Entry, error) {
	c.saves++
	return c.Store.MergeAndSave(fresh)
}

func allFound() map[string]resolver.Result {
	return map[string]resolver.Result{
		"Dune":       {Summary: "a", Source: cache.SourceISBN},
		"Good Omens": {Summary: "b", Source: cache.SourceTitle},
		"The Hobbit": {Summary: "c", Source: cache.SourceISBN},
	}
}

func TestRunFlushModes(t *testing.T) {
	books := []catalog.Book{dune, omens, hobbit}

	for _, tt := range []struct {
		flush string
		saves int
	}{
		{flush: config.FlushBatch, saves: 1},
		{flush: config.FlushBook, saves: 3},
	} {
		t.Run(tt.flush, func(t *testing.T) {
			env := testutil.NewTestEnv(t)
			ledger := &countingLedger{Store: openStore(t, env.Path("ledger.csv"))}

			out, err := New(&scriptedResolver{results: allFound()}, ledger, Options{MaxSummaries: 10, Seed: 1, Flush: tt.flush}).
				Run(context.Background(), books)
			require.NoError(t, err)
			require.Equal(t, tt.saves, ledger.saves)
			require.Equal(t, 3, out.Stats.LedgerSize)
		})
	}
}

func TestRunInterruptedSavesProgress(t *testing.T) {
	for _, flush := range []string{config.FlushBatch, config.FlushBook} {
		t.Run(flush, func(t *testing.T) {
			env := testutil.NewTestEnv(t)
			store := openStore(t, env.Path("ledger.csv"))
			ctx, cancel := context.WithCancel(context.Background())
			t.Cleanup(cancel)

			r := &scriptedResolver{results: allFound(), after: 2, cancel: cancel}
			out, err := New(r, store, Options{MaxSummaries: 10, Seed: 1, Flush: flush}).
				Run(ctx, []catalog.Book{dune, omens, hobbit})
			require.NoError(t, err)

			require.True(t, out.Stats.Interrupted)
			require.Equal(t, 2, r.calls)
			require.Equal(t, 2, out.Stats.Processed)

			entries, err := store.Load()
			require.NoError(t, err)
			require.Len(t, entries, 2)
		})
	}
}

func TestRunTracksProgress(t *testing.T) {
	env := testutil.NewTestEnv(t)
	store := openStore(t, env.Path("ledger.csv"))
	tracker := &recordingTracker{}

	_, err := New(&scriptedResolver{results: allFound()}, store, Options{MaxSummaries: 2, Seed: 3, Tracker: tracker}).
		Run(context.Background(), []catalog.Book{dune, omens, hobbit})
	require.NoError(t, err)
	require.Equal(t, 2, tracker.total)
	require.Equal(t, 2, tracker.steps)
	require.True(t, tracker.finished)
}

type recordingTracker struct {
	total    int
	steps    int
	finished bool
}

func (r *recordingTracker) Start(total int) { r.total = total }
func (r *recordingTracker) Step()           { r.steps++ }
func (r *recordingTracker) Finish()         { r.finished = true }

type brokenLedger struct{}

func (brokenLedger) Load() ([]cache.Entry, error) { return nil, cache.ErrMalformedCache }
func (brokenLedger) MergeAndSave([]cache.Entry) ([]cache.Entry, error) {
	return nil, errors.New("unreachable")
}

func TestRunMalformedLedgerIsFatal(t *testing.T) {
	r := &scriptedResolver{results: allFound()}
	_, err := New(r, brokenLedger{}, Options{MaxSummaries: 10}).Run(context.Background(), []catalog.Book{dune})
	require.ErrorIs(t, err, cache.ErrMalformedCache)
	require.Zero(t, r.calls)
}

func TestJoinIsLeftJoin(t *testing.T) {
	rows := Join([]catalog.Book{dune, omens}, []cache.Entry{
		cache.NewEntry(omens, "b", cache.SourceTitle),
		{BookID: "99", Summary: "orphan", Source: cache.SourceISBN},
	})
	require.Equal(t, []Row{
		{Book: dune},
		{Book: omens, Summary: "b", Source: cache.SourceTitle},
	}, rows)
	require.Equal(t, []Row{{Book: omens, Summary: "b", Source: cache.SourceTitle}}, Summarized(rows))
}
