package openlibrary

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"strings"
	"testing"
	"time"

	bberrors "github.com/lepinkainen/bookbrief/internal/errors"
	"github.com/lepinkainen/bookbrief/internal/testutil"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, srv *testutil.OpenLibraryServer, sleeper *testutil.Sleeper) *Client {
	t.Helper()
	return NewClient(Options{
		BaseURL:   srv.URL,
		UserAgent: "bookbrief-test",
		Timeout:   5 * time.Second,
		Cooldown:  60 * time.Second,
		DelayMin:  500 * time.Millisecond,
		DelayMax:  1500 * time.Millisecond,
		MaxLength: 2000,
		Sleeper:   sleeper,
		Rand:      rand.New(rand.NewPCG(1, 2)),
	})
}

func TestNormalizeDescription(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "string", raw: `"text"`, want: "text"},
		{name: "value object", raw: `{"type": "/type/text", "value": "text"}`, want: "text"},
		{name: "list", raw: `["te", "xt"]`, want: "te xt"},
		{name: "list with non-strings", raw: `["a", 1, "b"]`, want: "a b"},
		{name: "object without value", raw: `{"type": "/type/text"}`, want: ""},
		{name: "null", raw: `null`, want: ""},
		{name: "number", raw: `42`, want: ""},
		{name: "empty", raw: ``, want: ""},
		{name: "invalid", raw: `{`, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, NormalizeDescription(json.RawMessage(tt.raw)))
		})
	}
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "abc", Truncate("abcdef", 3))
	require.Equal(t, "abc", Truncate("abc", 3))
	require.Equal(t, "ab", Truncate("ab", 3))
	require.Equal(t, "åäö", Truncate("åäöü", 3))
	require.Equal(t, "anything", Truncate("anything", 0))

	long := strings.Repeat("é", 2500)
	require.Equal(t, 2000, len([]rune(Truncate(long, 2000))))
}

func TestFetchByISBN(t *testing.T) {
	srv := testutil.NewOpenLibraryServer(t)
	srv.OnISBN("9780441172719", testutil.JSON(`{"title": "Dune", "description": {"type": "/type/text", "value": "A desert planet..."}}`))
	sleeper := &testutil.Sleeper{}
	client := newTestClient(t, srv, sleeper)

	desc, err := client.FetchByISBN(context.Background(), "9780441172719")
	require.NoError(t, err)
	require.Equal(t, "A desert planet...", desc)
	require.Equal(t, 1, srv.ISBNHits("9780441172719"))
	require.Equal(t, []string{"bookbrief-test"}, srv.UserAgents())

	// ISBN lookups are never delayed.
	require.Empty(t, sleeper.Calls())
}

func TestFetchByISBNTruncates(t *testing.T) {
	srv := testutil.NewOpenLibraryServer(t)
	long := strings.Repeat("x", 2100)
	srv.OnISBN("1", testutil.JSON(`{"description": ["`+long+`", "tail"]}`))
	client := newTestClient(t, srv, &testutil.Sleeper{})

	desc, err := client.FetchByISBN(context.Background(), "1")
	require.NoError(t, err)
	require.Len(t, desc, 2000)
}

func TestFetchByISBNWithoutNetwork(t *testing.T) {
	srv := testutil.NewOpenLibraryServer(t)
	client := newTestClient(t, srv, &testutil.Sleeper{})

	for _, isbn := range []string{"", "978-0441", "abc"} {
		desc, err := client.FetchByISBN(context.Background(), isbn)
		require.NoError(t, err)
		require.Empty(t, desc)
	}
	require.Zero(t, srv.TotalHits())
}

func TestFetchByISBNNotFound(t *testing.T) {
	srv := testutil.NewOpenLibraryServer(t)
	sleeper := &testutil.Sleeper{}
	client := newTestClient(t, srv, sleeper)

	desc, err := client.FetchByISBN(context.Background(), "0000000000")
	require.NoError(t, err)
	require.Empty(t, desc)
	require.Equal(t, 1, srv.ISBNHits("0000000000"))
	require.Empty(t, sleeper.Calls())
}

func TestFetchByISBNNoDescription(t *testing.T) {
	srv := testutil.NewOpenLibraryServer(t)
	srv.OnISBN("42", testutil.JSON(`{"title": "Untitled"}`))
	client := newTestClient(t, srv, &testutil.Sleeper{})

	desc, err := client.FetchByISBN(context.Background(), "42")
	require.NoError(t, err)
	require.Empty(t, desc)
}

func TestFetchByISBNRateLimitedOnce(t *testing.T) {
	srv := testutil.NewOpenLibraryServer(t)
	srv.OnISBN("42",
		testutil.Status(http.StatusTooManyRequests),
		testutil.JSON(`{"description": "after cooldown"}`),
	)
	sleeper := &testutil.Sleeper{}
	client := newTestClient(t, srv, sleeper)

	desc, err := client.FetchByISBN(context.Background(), "42")
	require.NoError(t, err)
	require.Equal(t, "after cooldown", desc)
	require.Equal(t, 2, srv.ISBNHits("42"))
	require.Equal(t, []time.Duration{60 * time.Second}, sleeper.Calls())
}

func TestFetchByISBNRateLimitedTwice(t *testing.T) {
	srv := testutil.NewOpenLibraryServer(t)
	srv.OnISBN("42", testutil.Status(http.StatusTooManyRequests))
	sleeper := &testutil.Sleeper{}
	client := newTestClient(t, srv, sleeper)

	_, err := client.FetchByISBN(context.Background(), "42")
	require.Error(t, err)
	require.True(t, bberrors.IsRateLimitError(err))
	require.Equal(t, 2, srv.ISBNHits("42"))
	require.Equal(t, 1, sleeper.Count(60*time.Second))
}

func TestFetchByISBNServerError(t *testing.T) {
	srv := testutil.NewOpenLibraryServer(t)
	srv.OnISBN("42", testutil.Status(http.StatusBadGateway))
	client := newTestClient(t, srv, &testutil.Sleeper{})

	_, err := client.FetchByISBN(context.Background(), "42")
	require.Error(t, err)
	require.Equal(t, http.StatusBadGateway, bberrors.StatusCode(err))
	require.Equal(t, 1, srv.ISBNHits("42"))
}

func TestFetchByISBNTimeout(t *testing.T) {
	srv := testutil.NewOpenLibraryServer(t)
	srv.OnISBN("42", testutil.Response{Status: http.StatusOK, Body: `{}`, Delay: 2 * time.Second})
	client := NewClient(Options{
		BaseURL:    srv.URL,
		HTTPClient: &http.Client{Timeout: 50 * time.Millisecond},
		Sleeper:    &testutil.Sleeper{},
	})

	_, err := client.FetchByISBN(context.Background(), "42")
	require.Error(t, err)
	require.True(t, IsTimeout(err))
}

func TestSearch(t *testing.T) {
	srv := testutil.NewOpenLibraryServer(t)
	srv.OnSearch("Good Omens", testutil.JSON(`{
		"numFound": 2,
		"docs": [
			{"title": "Good Omens", "author_name": ["Terry Pratchett", "Neil Gaiman"], "description": "Armageddon."},
			{"title": "Good Omens Companion"}
		]
	}`))
	sleeper := &testutil.Sleeper{}
	client := newTestClient(t, srv, sleeper)

	candidates, err := client.Search(context.Background(), "Good Omens", "Terry Pratchett, Neil Gaiman", 1)
	require.NoError(t, err)
	require.Equal(t, []Candidate{
		{Title: "Good Omens", AuthorNames: []string{"Terry Pratchett", "Neil Gaiman"}, Description: "Armageddon."},
		{Title: "Good Omens Companion"},
	}, candidates)

	queries := srv.SearchQueries()
	require.Len(t, queries, 1)
	require.Equal(t, "Good Omens", queries[0].Get("title"))
	require.Equal(t, "Terry Pratchett", queries[0].Get("author"))
	require.Equal(t, "title,author_name,description", queries[0].Get("fields"))
	require.Equal(t, "3", queries[0].Get("limit"))
}

func TestSearchWithoutAuthor(t *testing.T) {
	srv := testutil.NewOpenLibraryServer(t)
	srv.OnSearch("Dune", testutil.JSON(`{"numFound": 0, "docs": []}`))
	client := newTestClient(t, srv, &testutil.Sleeper{})

	candidates, err := client.Search(context.Background(), "Dune", "", 1)
	require.NoError(t, err)
	require.Empty(t, candidates)

	queries := srv.SearchQueries()
	require.Len(t, queries, 1)
	require.False(t, queries[0].Has("author"))
}

func TestSearchNotFound(t *testing.T) {
	srv := testutil.NewOpenLibraryServer(t)
	client := newTestClient(t, srv, &testutil.Sleeper{})

	candidates, err := client.Search(context.Background(), "Missing", "Nobody", 1)
	require.NoError(t, err)
	require.Nil(t, candidates)
}

func TestSearchDelayScalesWithAttempt(t *testing.T) {
	srv := testutil.NewOpenLibraryServer(t)
	sleeper := &testutil.Sleeper{}
	client := NewClient(Options{
		BaseURL:  srv.URL,
		DelayMin: time.Second,
		DelayMax: time.Second,
		Sleeper:  sleeper,
	})

	for attempt := 1; attempt <= 3; attempt++ {
		_, err := client.Search(context.Background(), "Dune", "", attempt)
		require.NoError(t, err)
	}
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, sleeper.Calls())
}

func TestSearchDelayWithinInterval(t *testing.T) {
	srv := testutil.NewOpenLibraryServer(t)
	sleeper := &testutil.Sleeper{}
	client := newTestClient(t, srv, sleeper)

	for i := 0; i < 20; i++ {
		_, err := client.Search(context.Background(), "Dune", "", 2)
		require.NoError(t, err)
	}
	for _, d := range sleeper.Calls() {
		require.GreaterOrEqual(t, d, time.Second)
		require.LessOrEqual(t, d, 3*time.Second)
	}
}

func TestSearchRateLimited(t *testing.T) {
	srv := testutil.NewOpenLibraryServer(t)
	srv.OnSearch("Dune",
		testutil.Status(http.StatusTooManyRequests),
		testutil.JSON(`{"numFound": 1, "docs": [{"title": "Dune"}]}`),
	)
	sleeper := &testutil.Sleeper{}
	client := NewClient(Options{BaseURL: srv.URL, Cooldown: time.Minute, Sleeper: sleeper})

	candidates, err := client.Search(context.Background(), "Dune", "", 1)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, 2, srv.SearchHits("Dune"))
	require.Equal(t, 1, sleeper.Count(time.Minute))
}

func TestSearchServerError(t *testing.T) {
	srv := testutil.NewOpenLibraryServer(t)
	srv.OnSearch("Dune", testutil.Status(http.StatusInternalServerError))
	client := newTestClient(t, srv, &testutil.Sleeper{})

	_, err := client.Search(context.Background(), "Dune", "", 1)
	require.Error(t, err)
	require.True(t, bberrors.IsStatusError(err))
	require.False(t, IsTimeout(err))
}
