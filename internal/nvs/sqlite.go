package nvs

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS blobs (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
);`

// SQLiteStore persists blobs in a SQLite database. Staged changes are kept in
// memory and applied in a single transaction by Commit.
type SQLiteStore struct {
	mu     sync.Mutex
	db     *sql.DB
	staged staging
	closed bool
}

// OpenSQLiteStore creates or opens the database at path.
//
// The database is configured with:
//   - WAL mode so a crash mid-commit never tears the blobs table
//   - FULL synchronous mode, a commit is on disk when it returns
//   - 5-second busy timeout for lock contention
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite store requires a path")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db, staged: make(staging)}, nil
}

// GetBlob implements Store.
func (s *SQLiteStore) GetBlob(key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if v, ok := s.staged.lookup(key); ok {
		if v == nil {
			return nil, ErrNotFound
		}
		return cloneBytes(v), nil
	}

	var value []byte
	err := s.db.QueryRow(`SELECT value FROM blobs WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read key %q: %w", key, err)
	}
	return value, nil
}

// SetBlob implements Store.
func (s *SQLiteStore) SetBlob(key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if value == nil {
		value = []byte{}
	}
	s.staged[key] = cloneBytes(value)
	return nil
}

// Erase implements Store.
func (s *SQLiteStore) Erase(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.staged[key] = nil
	return nil
}

// Commit implements Store.
func (s *SQLiteStore) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if len(s.staged) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin commit: %w", err)
	}
	for k, v := range s.staged {
		if v == nil {
			_, err = tx.Exec(`DELETE FROM blobs WHERE key = ?`, k)
		} else {
			_, err = tx.Exec(`INSERT OR REPLACE INTO blobs (key, value) VALUES (?, ?)`, k, v)
		}
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to stage key %q: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	s.staged = make(staging)
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.staged = make(staging)
	return s.db.Close()
}
