// Package storage keeps in-progress session drafts and the commit log in a
// SQLite database so work survives a restart of the host.
package storage

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	// Pure-Go SQLite driver, registered as "sqlite". No CGO needed.
	_ "modernc.org/sqlite"

	apperrors "github.com/veroide/mergehost/internal/errors"
)

func logger() *log.Logger {
	return log.WithPrefix("storage")
}

// SQLiteStore persists session drafts and commits. It creates the database
// and tables on first use and is safe for concurrent use.
type SQLiteStore struct {
	db *sql.DB      // Database connection handle.
	mu sync.RWMutex // Guards all database operations.
}

// NewSQLiteStore opens or creates a SQLite database at path and brings its
// schema up to date. Use ":memory:" for a throwaway database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger().Debug("opening database", "path", path)

	// busy_timeout lets the CLI and a running host share the file.
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageOpenFailed, "open database", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, apperrors.Wrap(apperrors.CodeStorageOpenFailed, "ping database", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, apperrors.Wrap(apperrors.CodeStorageOpenFailed, "init schema", err)
	}

	logger().Debug("database ready", "schema_version", currentSchemaVersion)
	return store, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	logger().Debug("closing database")
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// timeLayout is fixed width and always UTC so stored timestamps sort
// correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
