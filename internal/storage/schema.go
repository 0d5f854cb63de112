package storage

import (
	"fmt"
	"time"
)

// currentSchemaVersion is the newest migration. Bump it and add a migrateToVn
// step when the schema changes.
const currentSchemaVersion = 1

func (s *SQLiteStore) initSchema() error {
	const schemaVersionTable = `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		);
	`
	if _, err := s.db.Exec(schemaVersionTable); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("check schema version: %w", err)
	}

	if version < 1 {
		if err := s.migrateToV1(); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}
	return nil
}

// migrateToV1 creates the draft and commit tables.
//
// A draft is split over three tables: the session row, its conflict files
// (immutable once written), and the per-file resolution state. Hunks and
// decisions are stored as JSON since they are only ever read back whole.
func (s *SQLiteStore) migrateToV1() error {
	logger().Info("applying migration", "version", 1)

	const tables = `
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			sandbox_id TEXT NOT NULL,
			source_branch TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'open',
			both_order TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);

		CREATE TABLE IF NOT EXISTS session_files (
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			file_path TEXT NOT NULL,
			position INTEGER NOT NULL,
			theirs TEXT NOT NULL,
			yours TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			hunks_json TEXT NOT NULL,
			PRIMARY KEY (session_id, file_path)
		);

		CREATE TABLE IF NOT EXISTS file_resolutions (
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			file_path TEXT NOT NULL,
			override INTEGER NOT NULL DEFAULT 0,
			override_content TEXT,
			decisions_json TEXT NOT NULL DEFAULT '[]',
			PRIMARY KEY (session_id, file_path)
		);

		CREATE TABLE IF NOT EXISTS commits (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			sandbox_id TEXT NOT NULL,
			source_branch TEXT NOT NULL,
			files_json TEXT NOT NULL,
			result_json TEXT NOT NULL,
			committed_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_commits_committed ON commits(committed_at);
	`
	if _, err := s.db.Exec(tables); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}

	_, err := s.db.Exec(
		"INSERT INTO schema_version (version, applied_at) VALUES (?, ?)",
		1,
		time.Now().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return nil
}
