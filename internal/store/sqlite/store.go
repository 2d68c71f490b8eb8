// Package sqlite implements the snare activity index backed by a SQLite
// database. It mirrors the append-only JSONL logs (access records and
// rotation events) into queryable tables so analysis and status commands
// can aggregate with SQL instead of rescanning the full logs. The JSONL
// files remain the source of truth; the index can be rebuilt from them.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// Store wraps a SQLite database connection for all snare index operations.
type Store struct {
	db *sql.DB
}

const defaultMaxOpenConns = 4
const defaultMaxIdleConns = 4

// OpenOptions controls SQLite connection pool sizing.
type OpenOptions struct {
	MaxOpenConns int
	MaxIdleConns int
}

// Open creates or opens the SQLite database at path, runs migrations, and
// enables WAL mode for improved concurrent read performance.
func Open(path string) (*Store, error) {
	return OpenWithOptions(path, OpenOptions{})
}

// OpenWithOptions creates or opens the SQLite database at path with tunable
// connection pool settings, runs migrations, and enables WAL mode.
func OpenWithOptions(path string, opts OpenOptions) (*Store, error) {
	if err := ensureParentDir(path); err != nil {
		return nil, err
	}
	// Append per-connection PRAGMAs to the DSN so every pooled connection gets them.
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	dsn := path + sep + "_pragma=foreign_keys(1)&_pragma=synchronous(normal)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	maxOpenConns := opts.MaxOpenConns
	if maxOpenConns <= 0 {
		maxOpenConns = defaultMaxOpenConns
	}
	maxIdleConns := opts.MaxIdleConns
	if maxIdleConns <= 0 {
		maxIdleConns = defaultMaxIdleConns
	}
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)

	// journal_mode and busy_timeout are database-wide; set them once here.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite setup (%s): %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes if they do not already exist.
func (s *Store) Migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS access_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts DATETIME NOT NULL,
	url TEXT NOT NULL,
	user_agent TEXT NOT NULL,
	ip_address TEXT NOT NULL,
	type TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS rotation_events (
	id TEXT PRIMARY KEY,
	ts DATETIME NOT NULL,
	old_url TEXT NOT NULL,
	new_url TEXT NOT NULL,
	action TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS ingest_cursors (
	name TEXT PRIMARY KEY,
	offset INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_access_records_ip ON access_records(ip_address);
CREATE INDEX IF NOT EXISTS idx_access_records_url ON access_records(url);
CREATE INDEX IF NOT EXISTS idx_access_records_agent ON access_records(user_agent);
CREATE INDEX IF NOT EXISTS idx_rotation_events_ts ON rotation_events(ts);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Cursor returns the stored byte offset for the named log, or 0 if the
// log has never been ingested.
func (s *Store) Cursor(ctx context.Context, name string) (int64, error) {
	var offset int64
	err := s.db.QueryRowContext(ctx, `SELECT offset FROM ingest_cursors WHERE name = ?`, name).Scan(&offset)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return offset, nil
}

// SetCursor records the byte offset up to which the named log has been
// ingested.
func (s *Store) SetCursor(ctx context.Context, name string, offset int64) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO ingest_cursors(name, offset) VALUES(?, ?)
ON CONFLICT(name) DO UPDATE SET offset = excluded.offset`, name, offset)
	return err
}

// ResetCursor forgets the ingest position for the named log. Used when
// the underlying log file shrank (was truncated or replaced).
func (s *Store) ResetCursor(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM ingest_cursors WHERE name = ?`, name)
	return err
}

func ensureParentDir(path string) error {
	path = strings.TrimSpace(path)
	if path == "" || path == ":memory:" || strings.HasPrefix(path, "file:") {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
