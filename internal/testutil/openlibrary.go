package testutil

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
)

// Response is a canned reply of the fake OpenLibrary server.
type Response struct {
	Status int
	Body   string
	// Delay holds the reply back, used to trigger client timeouts.
	Delay time.Duration
}

// JSON is a 200 response with the given body.
func JSON(body string) Response {
	return Response{Status: http.StatusOK, Body: body}
}

// Status is an empty response with the given status code.
func Status(code int) Response {
	return Response{Status: code}
}

// OpenLibraryServer emulates the OpenLibrary ISBN and search endpoints.
// Each key has a queue of responses; the last one repeats once the queue is
// drained. Unknown keys answer 404.
type OpenLibraryServer struct {
	*httptest.Server

	mu       sync.Mutex
	isbn     map[string][]Response
	search   map[string][]Response
	hits     map[string]int
	queries  []url.Values
	userAgts []string
}

// NewOpenLibraryServer starts a fake server that is closed with the test.
func NewOpenLibraryServer(t *testing.T) *OpenLibraryServer {
	t.Helper()

	s := &OpenLibraryServer{
		isbn:   make(map[string][]Response),
		search: make(map[string][]Response),
		hits:   make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/isbn/", func(w http.ResponseWriter, r *http.Request) {
		isbn := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/isbn/"), ".json")
		s.reply(w, r, "isbn:"+isbn, s.isbn, isbn)
	})
	mux.HandleFunc("/search.json", func(w http.ResponseWriter, r *http.Request) {
		title := r.URL.Query().Get("title")
		s.mu.Lock()
		s.queries = append(s.queries, r.URL.Query())
		s.mu.Unlock()
		s.reply(w, r, "search:"+title, s.search, title)
	})

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// OnISBN queues responses for GET /isbn/{isbn}.json.
func (s *OpenLibraryServer) OnISBN(isbn string, responses ...Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isbn[isbn] = append(s.isbn[isbn], responses...)
}

// OnSearch queues responses for GET /search.json?title={title}.
func (s *OpenLibraryServer) OnSearch(title string, responses ...Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.search[title] = append(s.search[title], responses...)
}

// ISBNHits returns how many requests were made for isbn.
func (s *OpenLibraryServer) ISBNHits(isbn string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits["isbn:"+isbn]
}

// SearchHits returns how many searches were made for title.
func (s *OpenLibraryServer) SearchHits(title string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits["search:"+title]
}

// TotalHits returns the number of requests served.
func (s *OpenLibraryServer) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.hits {
		total += n
	}
	return total
}

// SearchQueries returns the query strings of all search requests.
func (s *OpenLibraryServer) SearchQueries() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]url.Values(nil), s.queries...)
}

// UserAgents returns the User-Agent headers seen, in request order.
func (s *OpenLibraryServer) UserAgents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.userAgts...)
}

func (s *OpenLibraryServer) reply(w http.ResponseWriter, r *http.Request, hitKey string, table map[string][]Response, key string) {
	s.mu.Lock()
	s.hits[hitKey]++
	s.userAgts = append(s.userAgts, r.UserAgent())
	queue := table[key]
	resp := Status(http.StatusNotFound)
	if len(queue) > 0 {
		resp = queue[0]
		if len(queue) > 1 {
			table[key] = queue[1:]
		}
	}
	s.mu.Unlock()

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}

	if resp.Body != "" {
		w.Header().Set("Content-Type", "application/json")
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if resp.Body != "" {
		_, _ = w.Write([]byte(resp.Body))
	}
}
