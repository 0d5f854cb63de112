package storage

// drafts.go stores open sessions: their conflict files and the current
// resolution state of each file.

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/veroide/mergehost/internal/diff"
	apperrors "github.com/veroide/mergehost/internal/errors"
	"github.com/veroide/mergehost/internal/resolve"
	"github.com/veroide/mergehost/internal/session"
)

// SessionStatus is the lifecycle state of a stored session.
type SessionStatus string

const (
	// StatusOpen is a session still being resolved.
	StatusOpen SessionStatus = "open"
)

// SessionRecord is a stored session without its file contents.
type SessionRecord struct {
	ID           string
	SandboxID    string
	SourceBranch string
	Status       SessionStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Files        int
}

// SaveDraft writes the full state of s, replacing any earlier draft of the
// same session. Everything is written in one transaction.
func (s *SQLiteStore) SaveDraft(sess *session.Session) error {
	if sess == nil {
		return errors.New("session cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageSaveFailed, "begin transaction", err)
	}
	defer tx.Rollback()

	if err := saveDraftTx(tx, sess); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageSaveFailed, "save draft "+sess.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageSaveFailed, "commit transaction", err)
	}

	logger().Debug("saved draft", "session", sess.ID)
	return nil
}

func saveDraftTx(tx *sql.Tx, sess *session.Session) error {
	const upsertSession = `
		INSERT INTO sessions (id, sandbox_id, source_branch, status, both_order, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			both_order = excluded.both_order,
			updated_at = excluded.updated_at
	`
	_, err := tx.Exec(upsertSession,
		sess.ID,
		sess.Meta.SandboxID,
		sess.Meta.SourceBranch,
		string(StatusOpen),
		string(sess.Options().BothOrder),
		formatTime(sess.CreatedAt),
		formatTime(sess.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	// Conflict files never change for a session, so they are written once.
	const insertFile = `
		INSERT OR IGNORE INTO session_files
			(session_id, file_path, position, theirs, yours, fingerprint, hunks_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	for i, f := range sess.Files() {
		hunks, err := json.Marshal(f.Hunks())
		if err != nil {
			return fmt.Errorf("encode hunks for %s: %w", f.Path, err)
		}
		_, err = tx.Exec(insertFile, sess.ID, f.Path, i, f.TheirsContent, f.YoursContent, f.Fingerprint(), string(hunks))
		if err != nil {
			return fmt.Errorf("insert file %s: %w", f.Path, err)
		}
	}

	if _, err := tx.Exec("DELETE FROM file_resolutions WHERE session_id = ?", sess.ID); err != nil {
		return fmt.Errorf("clear resolutions: %w", err)
	}
	const insertResolution = `
		INSERT INTO file_resolutions (session_id, file_path, override, override_content, decisions_json)
		VALUES (?, ?, ?, ?, ?)
	`
	for path, snap := range sess.Snapshots() {
		decisions, err := json.Marshal(snap.Decisions)
		if err != nil {
			return fmt.Errorf("encode decisions for %s: %w", path, err)
		}
		var override sql.NullString
		if snap.Override != nil {
			override = sql.NullString{String: *snap.Override, Valid: true}
		}
		_, err = tx.Exec(insertResolution, sess.ID, path, override.Valid, override, string(decisions))
		if err != nil {
			return fmt.Errorf("insert resolution %s: %w", path, err)
		}
	}
	return nil
}

// LoadDraft rebuilds a stored session. A file whose content no longer
// matches its stored fingerprint, or whose decisions name hunks it doesn't
// have, fails with conflict.stale.
func (s *SQLiteStore) LoadDraft(id string) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, bothOrder, err := s.getSessionRow(id)
	if err != nil {
		return nil, err
	}
	files, err := s.loadFiles(id)
	if err != nil {
		return nil, err
	}
	snaps, err := s.loadSnapshots(id)
	if err != nil {
		return nil, err
	}

	order, err := resolve.ParseBothOrder(bothOrder)
	if err != nil {
		return nil, err
	}
	meta := session.Meta{SandboxID: rec.SandboxID, SourceBranch: rec.SourceBranch}
	sess, err := session.Restore(rec.ID, meta, rec.CreatedAt, files, resolve.Options{BothOrder: order}, snaps)
	if err != nil {
		return nil, err
	}
	sess.UpdatedAt = rec.UpdatedAt
	return sess, nil
}

// LoadDrafts restores every stored session. Drafts that can't be restored
// are skipped and logged; they stay in the database until deleted.
func (s *SQLiteStore) LoadDrafts() ([]*session.Session, error) {
	records, err := s.ListSessions(0)
	if err != nil {
		return nil, err
	}
	out := make([]*session.Session, 0, len(records))
	for _, rec := range records {
		sess, err := s.LoadDraft(rec.ID)
		if err != nil {
			logger().Warn("skipping unusable draft", "session", rec.ID, "err", err)
			continue
		}
		out = append(out, sess)
	}
	return out, nil
}

func (s *SQLiteStore) getSessionRow(id string) (SessionRecord, string, error) {
	const query = `
		SELECT s.id, s.sandbox_id, s.source_branch, s.status, s.both_order, s.created_at, s.updated_at,
			(SELECT COUNT(*) FROM session_files f WHERE f.session_id = s.id)
		FROM sessions s
		WHERE s.id = ?
	`
	var (
		rec       SessionRecord
		status    string
		bothOrder string
		createdAt string
		updatedAt string
	)
	err := s.db.QueryRow(query, id).Scan(
		&rec.ID, &rec.SandboxID, &rec.SourceBranch, &status, &bothOrder, &createdAt, &updatedAt, &rec.Files,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, "", apperrors.New(apperrors.CodeStorageNotFound, "no stored session "+id)
	}
	if err != nil {
		return rec, "", apperrors.Wrap(apperrors.CodeStorageQueryFailed, "get session", err)
	}
	rec.Status = SessionStatus(status)
	if err := parseTimes(&rec, createdAt, updatedAt); err != nil {
		return rec, "", err
	}
	return rec, bothOrder, nil
}

func (s *SQLiteStore) loadFiles(id string) ([]*diff.ConflictFile, error) {
	const query = `
		SELECT file_path, theirs, yours, fingerprint, hunks_json
		FROM session_files
		WHERE session_id = ?
		ORDER BY position
	`
	rows, err := s.db.Query(query, id)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageQueryFailed, "load files", err)
	}
	defer rows.Close()

	var files []*diff.ConflictFile
	for rows.Next() {
		var path, theirs, yours, fingerprint, hunksJSON string
		if err := rows.Scan(&path, &theirs, &yours, &fingerprint, &hunksJSON); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeStorageQueryFailed, "scan file", err)
		}
		var hunks []diff.Hunk
		if err := json.Unmarshal([]byte(hunksJSON), &hunks); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeStorageQueryFailed, "decode hunks for "+path, err)
		}
		f, err := diff.NewConflictFile(path, theirs, yours, hunks)
		if err != nil {
			return nil, err
		}
		if f.Fingerprint() != fingerprint {
			return nil, apperrors.StaleConflictFile(path)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageQueryFailed, "iterate files", err)
	}
	return files, nil
}

func (s *SQLiteStore) loadSnapshots(id string) (map[string]resolve.Snapshot, error) {
	const query = `
		SELECT file_path, override_content, decisions_json
		FROM file_resolutions
		WHERE session_id = ?
	`
	rows, err := s.db.Query(query, id)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageQueryFailed, "load resolutions", err)
	}
	defer rows.Close()

	snaps := make(map[string]resolve.Snapshot)
	for rows.Next() {
		var (
			path      string
			override  sql.NullString
			decisions string
		)
		if err := rows.Scan(&path, &override, &decisions); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeStorageQueryFailed, "scan resolution", err)
		}
		var snap resolve.Snapshot
		if err := json.Unmarshal([]byte(decisions), &snap.Decisions); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeStorageQueryFailed, "decode decisions for "+path, err)
		}
		if override.Valid {
			content := override.String
			snap.Override = &content
		}
		snaps[path] = snap
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageQueryFailed, "iterate resolutions", err)
	}
	return snaps, nil
}

// ListSessions returns stored sessions, most recently updated first.
// A limit of 0 or less returns all of them.
func (s *SQLiteStore) ListSessions(limit int) ([]SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	const query = `
		SELECT s.id, s.sandbox_id, s.source_branch, s.status, s.created_at, s.updated_at,
			(SELECT COUNT(*) FROM session_files f WHERE f.session_id = s.id)
		FROM sessions s
		ORDER BY s.updated_at DESC
		LIMIT ?
	`
	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageQueryFailed, "list sessions", err)
	}
	defer rows.Close()

	records := make([]SessionRecord, 0)
	for rows.Next() {
		var (
			rec       SessionRecord
			status    string
			createdAt string
			updatedAt string
		)
		if err := rows.Scan(&rec.ID, &rec.SandboxID, &rec.SourceBranch, &status, &createdAt, &updatedAt, &rec.Files); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeStorageQueryFailed, "scan session", err)
		}
		rec.Status = SessionStatus(status)
		if err := parseTimes(&rec, createdAt, updatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageQueryFailed, "iterate sessions", err)
	}
	return records, nil
}

// DeleteSession removes a stored session and everything under it.
func (s *SQLiteStore) DeleteSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageSaveFailed, "delete session", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageSaveFailed, "delete session", err)
	}
	if n == 0 {
		return apperrors.New(apperrors.CodeStorageNotFound, "no stored session "+id)
	}
	logger().Debug("deleted session", "session", id)
	return nil
}

// DeleteDraft removes a draft if there is one.
func (s *SQLiteStore) DeleteDraft(id string) error {
	err := s.DeleteSession(id)
	if apperrors.IsCode(err, apperrors.CodeStorageNotFound) {
		return nil
	}
	return err
}

func parseTimes(rec *SessionRecord, createdAt, updatedAt string) error {
	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageQueryFailed, "parse created_at", err)
	}
	rec.CreatedAt = t
	t, err = time.Parse(timeLayout, updatedAt)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageQueryFailed, "parse updated_at", err)
	}
	rec.UpdatedAt = t
	return nil
}
