// Package openlibrary is a small client for the OpenLibrary edition and
// search endpoints, tuned for long unattended batch runs: it paces search
// requests with a randomized delay and waits out 429 responses.
package openlibrary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lepinkainen/bookbrief/internal/config"
	bberrors "github.com/lepinkainen/bookbrief/internal/errors"
	"github.com/lepinkainen/bookbrief/internal/ratelimit"
)

const searchFields = "title,author_name,description"

// Sleeper blocks the calling goroutine. The delays it implements are not
// cancellation points.
type Sleeper interface {
	Sleep(d time.Duration)
}

// SleepFunc adapts a function to Sleeper.
type SleepFunc func(time.Duration)

// Sleep calls f(d).
func (f SleepFunc) Sleep(d time.Duration) { f(d) }

// Options configures a Client.
type Options struct {
	BaseURL     string
	UserAgent   string
	Timeout     time.Duration
	Cooldown    time.Duration
	DelayMin    time.Duration
	DelayMax    time.Duration
	MaxLength   int
	SearchLimit int

	// RequestsPerSecond is a hard ceiling on request rate; 0 disables it.
	RequestsPerSecond float64

	HTTPClient *http.Client
	Sleeper    Sleeper
	Rand       *rand.Rand
}

// OptionsFromConfig maps the run configuration to client options.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		BaseURL:           cfg.BaseURL,
		UserAgent:         cfg.UserAgent,
		Timeout:           cfg.RequestTimeout,
		Cooldown:          cfg.RateLimitCooldown,
		DelayMin:          cfg.DelayMin,
		DelayMax:          cfg.DelayMax,
		MaxLength:         cfg.MaxLength,
		SearchLimit:       cfg.SearchLimit,
		RequestsPerSecond: cfg.RequestsPerSecond,
	}
}

// Client fetches descriptions and search candidates from OpenLibrary.
type Client struct {
	baseURL     string
	userAgent   string
	cooldown    time.Duration
	delayMin    time.Duration
	delayMax    time.Duration
	maxLength   int
	searchLimit int

	httpClient *http.Client
	limiter    *ratelimit.Limiter
	sleeper    Sleeper
	rand       *rand.Rand
}

// NewClient creates a client. Zero options fall back to the defaults of
// config.Default.
func NewClient(opts Options) *Client {
	d := config.Default()
	if opts.BaseURL == "" {
		opts.BaseURL = d.BaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = d.UserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = d.RequestTimeout
	}
	if opts.MaxLength <= 0 {
		opts.MaxLength = d.MaxLength
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = d.SearchLimit
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Sleeper == nil {
		opts.Sleeper = SleepFunc(time.Sleep)
	}

	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		userAgent:   opts.UserAgent,
		cooldown:    opts.Cooldown,
		delayMin:    opts.DelayMin,
		delayMax:    opts.DelayMax,
		maxLength:   opts.MaxLength,
		searchLimit: opts.SearchLimit,
		httpClient:  opts.HTTPClient,
		limiter:     ratelimit.New("OpenLibrary", opts.RequestsPerSecond),
		sleeper:     opts.Sleeper,
		rand:        opts.Rand,
	}
}

// FetchByISBN returns the description of the edition with the given ISBN.
// A missing or non-numeric ISBN returns "" without touching the network,
// and so does a 404. Other failures are returned as errors; only a 429 is
// retried, once, after the cooldown.
func (c *Client) FetchByISBN(ctx context.Context, isbn string) (string, error) {
	if !validISBN(isbn) {
		if isbn != "" {
			slog.Debug("Skipping ISBN lookup for invalid ISBN", "isbn", isbn)
		}
		return "", nil
	}

	endpoint := fmt.Sprintf("%s/isbn/%s.json", c.baseURL, url.PathEscape(isbn))
	resp, err := c.get(ctx, endpoint)
	if err != nil {
		return "", err
	}
	defer closeBody(resp)

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", bberrors.NewStatusError(resp.StatusCode, endpoint)
	}

	var edition editionResponse
	if err := json.NewDecoder(resp.Body).Decode(&edition); err != nil {
		return "", fmt.Errorf("decoding edition %s: %w", isbn, err)
	}

	return Truncate(NormalizeDescription(edition.Description), c.maxLength), nil
}

// Search queries the search endpoint with a title and, when given, the
// first author of a comma-separated author list. attempt is the 1-based
// attempt number of the caller's retry loop and scales the randomized
// pre-request delay. A 404 or an empty result set returns no candidates
// and no error.
func (c *Client) Search(ctx context.Context, title, author string, attempt int) ([]Candidate, error) {
	c.pause(attempt)

	q := url.Values{}
	q.Set("title", title)
	q.Set("fields", searchFields)
	q.Set("limit", strconv.Itoa(c.searchLimit))
	if first := firstAuthor(author); first != "" {
		q.Set("author", first)
	}
	endpoint := c.baseURL + "/search.json?" + q.Encode()

	resp, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, bberrors.NewStatusError(resp.StatusCode, endpoint)
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding search response for %q: %w", title, err)
	}
	if result.NumFound == 0 {
		return nil, nil
	}

	candidates := make([]Candidate, 0, len(result.Docs))
	for _, doc := range result.Docs {
		candidates = append(candidates, Candidate{
			Title:       doc.Title,
			AuthorNames: doc.AuthorName,
			Description: Truncate(NormalizeDescription(doc.Description), c.maxLength),
		})
	}
	return candidates, nil
}

// get issues a GET request. A 429 response is waited out for the cooldown
// and the identical request is sent once more; a second 429 is returned as
// a RateLimitError. Any other response is handed to the caller.
func (c *Client) get(ctx context.Context, endpoint string) (*http.Response, error) {
	const maxSends = 2

	for send := 1; ; send++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("OpenLibrary request failed: %w", err)
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}
		closeBody(resp)

		if send == maxSends {
			return nil, bberrors.NewRateLimitErrorWithRetry("OpenLibrary rate limit persisted after cooldown", c.cooldown)
		}

		slog.Warn("Rate limit hit, waiting before retrying", "cooldown", c.cooldown, "url", endpoint)
		c.sleeper.Sleep(c.cooldown)
	}
}

// pause sleeps for a random duration in [delayMin, delayMax] scaled by attempt.
func (c *Client) pause(attempt int) {
	if attempt < 1 {
		attempt = 1
	}
	if c.delayMax <= 0 {
		return
	}

	f := rand.Float64()
	if c.rand != nil {
		f = c.rand.Float64()
	}
	base := c.delayMin + time.Duration(f*float64(c.delayMax-c.delayMin))
	if d := base * time.Duration(attempt); d > 0 {
		c.sleeper.Sleep(d)
	}
}

// IsTimeout reports whether err was caused by a request timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func validISBN(isbn string) bool {
	if isbn == "" {
		return false
	}
	for _, r := range isbn {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func firstAuthor(authors string) string {
	first, _, _ := strings.Cut(authors, ",")
	return strings.TrimSpace(first)
}

func closeBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
