package blob

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // register sqlite driver
)

// sqliteSchemaDDL defines the single key/value table used by the SQLite
// backend. Blob values are stored verbatim; the engine owns their format.
const sqliteSchemaDDL = `
CREATE TABLE IF NOT EXISTS blobs (
    key TEXT PRIMARY KEY,
    value BLOB NOT NULL,
    updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);
`

// SQLiteStore implements Store on a single-file SQLite database.
//
// Uses WAL mode for better concurrent access. Each operation opens its own
// connection, so the store itself carries no connection state.
type SQLiteStore struct {
	// DBPath is the absolute path to the SQLite database file.
	DBPath string
}

// NewSQLiteStore creates a SQLiteStore and initializes the schema.
//
// Parent directories are created automatically. Returns an error if schema
// creation fails.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	store := &SQLiteStore{DBPath: dbPath}

	if err := store.ensureSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// connect opens a new database connection with WAL mode enabled.
func (s *SQLiteStore) connect() (*sql.DB, error) {
	dir := filepath.Dir(s.DBPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", s.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	return db, nil
}

// ensureSchema creates the blobs table if it doesn't exist.
func (s *SQLiteStore) ensureSchema() error {
	db, err := s.connect()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec(sqliteSchemaDDL); err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}

	return nil
}

// Load returns the value stored under key, or (nil, nil) when absent.
func (s *SQLiteStore) Load(ctx context.Context, key string) ([]byte, error) {
	db, err := s.connect()
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	var value []byte
	err = db.QueryRowContext(ctx, `SELECT value FROM blobs WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load blob %s: %w", key, err)
	}

	return value, nil
}

// Save upserts value under key.
func (s *SQLiteStore) Save(ctx context.Context, key string, value []byte) error {
	db, err := s.connect()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	_, err = db.ExecContext(ctx,
		`INSERT INTO blobs (key, value, updated_at)
		 VALUES (?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		 ON CONFLICT(key) DO UPDATE SET
		     value = excluded.value,
		     updated_at = excluded.updated_at`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to save blob %s: %w", key, err)
	}

	return nil
}

// Close is a no-op because connections are per-operation.
func (s *SQLiteStore) Close() error {
	return nil
}
