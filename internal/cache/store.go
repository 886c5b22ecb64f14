package cache

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

var (
	// ErrCacheLocked is returned when another run holds the ledger.
	ErrCacheLocked = errors.New("summary ledger is locked by another run")
	// ErrMalformedCache is returned when an existing ledger cannot be read.
	ErrMalformedCache = errors.New("summary ledger is malformed")
)

// Backend persists ledger entries.
type Backend interface {
	Load() ([]Entry, error)
	Save(entries []Entry) error
	Close() error
}

// Store is an open, locked ledger.
type Store struct {
	path    string
	backend Backend
	lock    *flock.Flock
}

// Open locks the ledger at path and opens its backend. Paths ending in .db
// or .sqlite use SQLite, everything else CSV. The lock is an advisory file
// lock on path+".lock"; if another process holds it Open fails with
// ErrCacheLocked.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory %s: %w", dir, err)
		}
	}

	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire ledger lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCacheLocked, lock.Path())
	}

	backend, err := openBackend(path)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	return &Store{path: path, backend: backend, lock: lock}, nil
}

func openBackend(path string) (Backend, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return NewLedgerDB(path)
	default:
		return NewLedgerCSV(path), nil
	}
}

// Path returns the ledger location.
func (s *Store) Path() string { return s.path }

// Load returns the ledger entries.
func (s *Store) Load() ([]Entry, error) {
	return s.backend.Load()
}

// MergeAndSave merges fresh into the stored ledger and writes the result
// back in full. It returns the merged ledger.
func (s *Store) MergeAndSave(fresh []Entry) ([]Entry, error) {
	existing, err := s.backend.Load()
	if err != nil {
		return nil, err
	}

	merged := Merge(existing, fresh)
	if err := s.backend.Save(merged); err != nil {
		return nil, err
	}

	slog.Debug("Ledger merged", "file", s.path, "existing", len(existing), "fresh", len(fresh), "total", len(merged))
	return merged, nil
}

// Close closes the backend and releases the lock.
func (s *Store) Close() error {
	var errs []error
	if err := s.backend.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.lock.Unlock(); err != nil {
		errs = append(errs, fmt.Errorf("release ledger lock: %w", err))
	}
	return errors.Join(errs...)
}
