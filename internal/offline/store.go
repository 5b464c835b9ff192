// Package offline is the client-side durable store: a cache of diagrams
// for offline reads, the ordered queue of pending edits, and the ledger
// of conflicts waiting for manual resolution.
package offline

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite store at path and applies the
// schema. Safe to call on every start.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the tables. Idempotent.
func (s *Store) migrate() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS cached_diagrams (
			id              TEXT PRIMARY KEY,
			owner_id        TEXT NOT NULL,
			kind            TEXT NOT NULL,
			title           TEXT NOT NULL DEFAULT '',
			canvas_data     TEXT,
			note_content    TEXT NOT NULL DEFAULT '',
			current_version INTEGER NOT NULL,
			updated_at      INTEGER NOT NULL,
			cached_at       INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS pending_edits (
			id          TEXT PRIMARY KEY,
			diagram_id  TEXT NOT NULL,
			edit_type   TEXT NOT NULL,
			payload     TEXT NOT NULL,
			queued_at   INTEGER NOT NULL,
			retry_count INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_pending_edits_order
			ON pending_edits (queued_at, id);`,
		`CREATE TABLE IF NOT EXISTS sync_conflicts (
			id          TEXT PRIMARY KEY,
			edit_id     TEXT NOT NULL,
			diagram_id  TEXT NOT NULL,
			edit_type   TEXT NOT NULL,
			payload     TEXT NOT NULL,
			detail      TEXT NOT NULL DEFAULT '',
			detected_at INTEGER NOT NULL,
			resolved_at INTEGER
		);`,
	}

	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
