// Package datastore exports summarized books into a local SQLite database
// that tools such as Datasette can browse directly.
package datastore

// Store defines the interface for local SQLite storage
type Store interface {
	// Connect establishes a connection to the data store
	Connect() error

	// CreateTable creates a new table with the given schema if it doesn't exist
	CreateTable(schema string) error

	// BatchInsert inserts multiple records into the specified table
	BatchInsert(table string, records []map[string]any) error

	// Close closes the connection to the data store
	Close() error
}

// SummariesTable holds one row per book with a summary.
const SummariesTable = "books_with_summaries"

// SummariesSchema recreates SummariesTable from scratch on every export.
const SummariesSchema = `
DROP TABLE IF EXISTS books_with_summaries;

CREATE TABLE books_with_summaries (
	book_id TEXT PRIMARY KEY NOT NULL,
	title TEXT NOT NULL,
	authors TEXT,
	isbn TEXT,
	summary TEXT NOT NULL,
	source TEXT NOT NULL
);

CREATE INDEX idx_books_with_summaries_source ON books_with_summaries(source);
`
