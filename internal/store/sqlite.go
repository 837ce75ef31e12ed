package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists users, postings, seen sets, pending controls and
// schedule state in a single SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id       INTEGER PRIMARY KEY,
		resume        TEXT NOT NULL DEFAULT '',
		sample_letter TEXT NOT NULL DEFAULT '',
		title         TEXT NOT NULL DEFAULT '',
		location      TEXT NOT NULL DEFAULT '',
		keywords      TEXT NOT NULL DEFAULT '[]',
		remote        INTEGER NOT NULL DEFAULT 0,
		hour          INTEGER NOT NULL DEFAULT 9,
		minute        INTEGER NOT NULL DEFAULT 0,
		timezone      TEXT NOT NULL DEFAULT '',
		alert_enabled INTEGER NOT NULL DEFAULT 0,
		sources       TEXT NOT NULL DEFAULT '{}',
		created_at    INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS postings (
		posting_id  TEXT PRIMARY KEY,
		native_id   TEXT NOT NULL DEFAULT '',
		source      TEXT NOT NULL,
		title       TEXT NOT NULL,
		company     TEXT NOT NULL DEFAULT '',
		location    TEXT NOT NULL DEFAULT '',
		url         TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		posted_at   INTEGER,
		first_seen  INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS seen_postings (
		user_id    INTEGER NOT NULL,
		posting_id TEXT NOT NULL,
		seen_at    INTEGER NOT NULL,
		PRIMARY KEY (user_id, posting_id)
	)`,
	`CREATE TABLE IF NOT EXISTS skipped_postings (
		user_id    INTEGER NOT NULL,
		posting_id TEXT NOT NULL,
		skipped_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, posting_id)
	)`,
	`CREATE TABLE IF NOT EXISTS pending_controls (
		token      TEXT PRIMARY KEY,
		user_id    INTEGER NOT NULL,
		posting_id TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS schedule_state (
		user_id         INTEGER PRIMARY KEY,
		last_fired_date TEXT NOT NULL DEFAULT '',
		last_fired_at   INTEGER NOT NULL DEFAULT 0,
		last_error      TEXT NOT NULL DEFAULT '',
		failures        INTEGER NOT NULL DEFAULT 0
	)`,
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, verifies its
// integrity and ensures all tables exist. A database that fails the integrity
// check is returned as an error; callers treat it as fatal.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// One writer at a time; SQLite serializes anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	var check string
	if err := db.QueryRow("PRAGMA quick_check").Scan(&check); err != nil {
		db.Close()
		return nil, fmt.Errorf("integrity check: %w", err)
	}
	if check != "ok" {
		db.Close()
		return nil, fmt.Errorf("integrity check failed: %s", check)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func timeOrZero(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
