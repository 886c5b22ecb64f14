package cache

// LedgerSchema is the SQLite layout of the summary ledger. position keeps
// the insertion order so that the first-occurrence rule survives a reload.
const LedgerSchema = `
CREATE TABLE IF NOT EXISTS summary_cache (
	position INTEGER PRIMARY KEY,
	book_id TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL DEFAULT '',
	authors TEXT NOT NULL DEFAULT '',
	isbn TEXT NOT NULL DEFAULT '',
	summary TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_summary_cache_source ON summary_cache(source);
`
