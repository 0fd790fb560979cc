package aspcheck

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS entries (
	key       TEXT PRIMARY KEY,
	payload   BLOB NOT NULL,
	stored_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS entries_stored_at ON entries(stored_at);
`

// SQLiteBackend keeps entries in a single SQLite database, which suits
// trees with many thousands of files better than one file per entry.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens or creates the database at path.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, NewFSError("failed to create cache directory", err).WithFile(filepath.Dir(path))
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	// Cache serializes access, so a second connection would sit idle.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache database: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

func (b *SQLiteBackend) Get(key string) (CacheEntry, error) {
	var payload []byte
	err := b.db.QueryRow(`SELECT payload FROM entries WHERE key = ?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return CacheEntry{}, ErrEntryNotFound
	}
	if err != nil {
		return CacheEntry{}, err
	}
	return unmarshalEntry(payload)
}

func (b *SQLiteBackend) Put(key string, entry CacheEntry) error {
	_, err := b.db.Exec(`
		INSERT INTO entries (key, payload, stored_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, stored_at = excluded.stored_at`,
		key, marshalEntry(entry), entry.StoredAt.UnixNano())
	return err
}

func (b *SQLiteBackend) Sweep(cutoff time.Time) (int, error) {
	res, err := b.db.Exec(`DELETE FROM entries WHERE stored_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
