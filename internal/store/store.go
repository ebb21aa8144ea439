// Package store is the durable local database: the receipt table that
// serializes "suffix already used" checks on a device, and the persisted
// sync queue. Backed by SQLite through database/sql.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const currentVersion = 1

// Store wraps the SQLite handle. A single connection is used so SQLite
// serializes writers itself.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewMemory creates an in-memory store for testing.
func NewMemory() (*Store, error) {
	return New(":memory:")
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	var version int
	err := s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	if version >= currentVersion {
		return nil
	}

	if version < 1 {
		if err := s.migrateV1(); err != nil {
			return err
		}
	}

	_, err = s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentVersion))
	return err
}

func (s *Store) migrateV1() error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS receipts (
		id                  TEXT PRIMARY KEY,
		capture_date        TEXT NOT NULL,
		captured_at         TEXT NOT NULL,
		timezone            TEXT NOT NULL DEFAULT '',
		filename            TEXT NOT NULL UNIQUE,
		amount              TEXT NOT NULL,
		currency            TEXT NOT NULL,
		country             TEXT NOT NULL DEFAULT '',
		region              TEXT NOT NULL DEFAULT '',
		category            TEXT NOT NULL DEFAULT '',
		notes               TEXT NOT NULL DEFAULT '',
		tax_applicable      INTEGER,
		checksum_sha256     TEXT NOT NULL DEFAULT '',
		device_id           TEXT NOT NULL DEFAULT '',
		capture_session_id  TEXT NOT NULL DEFAULT '',
		source              TEXT NOT NULL DEFAULT '',
		conflict            INTEGER NOT NULL DEFAULT 0,
		supersedes          TEXT NOT NULL DEFAULT '',
		created_at          TEXT NOT NULL,
		updated_at          TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_receipts_capture_date ON receipts(capture_date);

	CREATE TABLE IF NOT EXISTS sync_queue (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		receipt_id     TEXT NOT NULL,
		action         TEXT NOT NULL,
		status         TEXT NOT NULL DEFAULT 'pending',
		retry_count    INTEGER NOT NULL DEFAULT 0,
		last_attempt   TEXT,
		error_message  TEXT NOT NULL DEFAULT '',
		created_at     TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sync_queue_status ON sync_queue(status);
	`
	_, err := s.db.Exec(ddl)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}
