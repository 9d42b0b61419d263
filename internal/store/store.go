// Package store provides the SQLite persistence layer for sources, topics,
// content items, their analysis rows, runs, and briefs.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the SQLite database.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the database under dataDir.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "dailybrief.db")
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return store, nil
}

// initialize creates the necessary tables.
func (s *Store) initialize() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sources (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			name TEXT NOT NULL,
			target TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1,
			weight INTEGER NOT NULL DEFAULT 1,
			notes TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS topics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			include_rules TEXT NOT NULL DEFAULT '',
			exclude_rules TEXT NOT NULL DEFAULT '',
			priority INTEGER NOT NULL DEFAULT 0,
			enabled INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS content_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source_id INTEGER REFERENCES sources(id),
			kind TEXT NOT NULL,
			external_id TEXT NOT NULL DEFAULT '',
			url TEXT NOT NULL,
			title TEXT NOT NULL,
			author TEXT NOT NULL DEFAULT '',
			published_at TIMESTAMP,
			fetched_at TIMESTAMP NOT NULL,
			raw_text TEXT NOT NULL DEFAULT '',
			hash TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_content_items_hash ON content_items(hash)`,
		`CREATE INDEX IF NOT EXISTS idx_content_items_published ON content_items(published_at)`,
		`CREATE TABLE IF NOT EXISTS topic_assignments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			content_item_id INTEGER NOT NULL REFERENCES content_items(id),
			topic_id INTEGER NOT NULL REFERENCES topics(id),
			score REAL NOT NULL,
			rationale TEXT NOT NULL DEFAULT '',
			UNIQUE(content_item_id, topic_id)
		)`,
		`CREATE TABLE IF NOT EXISTS extractions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			content_item_id INTEGER NOT NULL UNIQUE REFERENCES content_items(id),
			created_at TIMESTAMP NOT NULL,
			model_provider TEXT NOT NULL DEFAULT '',
			model_name TEXT NOT NULL DEFAULT '',
			prompt_name TEXT NOT NULL DEFAULT '',
			prompt_version TEXT NOT NULL DEFAULT '',
			payload TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'running',
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP,
			stats TEXT NOT NULL DEFAULT '{}',
			error_text TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS briefs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			date TEXT NOT NULL,
			mode TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			UNIQUE(date, mode)
		)`,
		`CREATE TABLE IF NOT EXISTS brief_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			brief_id INTEGER NOT NULL REFERENCES briefs(id),
			content_item_id INTEGER NOT NULL REFERENCES content_items(id),
			rank INTEGER NOT NULL,
			reason TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS topic_briefs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			brief_id INTEGER NOT NULL REFERENCES briefs(id),
			topic_id INTEGER NOT NULL REFERENCES topics(id),
			summary_short TEXT NOT NULL,
			summary_full TEXT NOT NULL,
			content_item_ids TEXT NOT NULL DEFAULT '[]',
			refs TEXT NOT NULL DEFAULT '[]',
			key_themes TEXT NOT NULL DEFAULT '[]',
			significance TEXT NOT NULL DEFAULT '',
			model_provider TEXT NOT NULL DEFAULT '',
			model_name TEXT NOT NULL DEFAULT '',
			prompt_version TEXT NOT NULL DEFAULT '',
			trace_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// Ping verifies the database connection.
func (s *Store) Ping() error {
	return s.db.Ping()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}
