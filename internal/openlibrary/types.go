package openlibrary

import "encoding/json"

// Candidate is one search hit. It is only used to pick a match and is never persisted.
type Candidate struct {
	Title       string
	AuthorNames []string
	Description string
}

// editionResponse is the subset of /isbn/{isbn}.json that we read.
type editionResponse struct {
	Title       string          `json:"title"`
	Description json.RawMessage `json:"description"`
}

// searchResponse matches /search.json.
type searchResponse struct {
	NumFound int         `json:"numFound"`
	Docs     []searchDoc `json:"docs"`
}

type searchDoc struct {
	Title       string          `json:"title"`
	AuthorName  []string        `json:"author_name"`
	Description json.RawMessage `json:"description"`
}
