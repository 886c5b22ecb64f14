package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	_ "modernc.org/sqlite"
)

// LedgerDB stores the ledger in a SQLite database.
type LedgerDB struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string
}

// NewLedgerDB opens (creating if needed) the ledger database at dbPath.
func NewLedgerDB(dbPath string) (*LedgerDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}

	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		closeErr := db.Close()
		return nil, errors.Join(fmt.Errorf("failed to connect to ledger database: %w", err), closeErr)
	}

	if _, err := db.Exec(LedgerSchema); err != nil {
		closeErr := db.Close()
		return nil, errors.Join(fmt.Errorf("%w: %s: %v", ErrMalformedCache, dbPath, err), closeErr)
	}

	return &LedgerDB{db: db, path: dbPath}, nil
}

// Load returns all entries in insertion order.
func (c *LedgerDB) Load() ([]Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rows, err := c.db.Query(`
		SELECT book_id, title, authors, isbn, summary, source
		FROM summary_cache
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var source string
		if err := rows.Scan(&e.BookID, &e.Title, &e.Authors, &e.ISBN, &e.Summary, &source); err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		e.Source = Source(source)
		if err := e.validate(); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedCache, c.path, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	return entries, nil
}

// Save replaces the ledger contents with entries in a single transaction.
func (c *LedgerDB) Save(entries []Entry) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin ledger transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.Exec("DELETE FROM summary_cache"); err != nil {
		return fmt.Errorf("failed to clear ledger: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO summary_cache (position, book_id, title, authors, isbn, summary, source)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare ledger insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, e := range entries {
		if _, err := stmt.Exec(i, e.BookID, e.Title, e.Authors, e.ISBN, e.Summary, string(e.Source)); err != nil {
			return fmt.Errorf("failed to store book %s: %w", e.BookID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ledger: %w", err)
	}

	slog.Debug("Ledger saved", "database", c.path, "entries", len(entries))
	return nil
}

// Close closes the database connection.
func (c *LedgerDB) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
