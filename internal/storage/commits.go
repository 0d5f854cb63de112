package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/veroide/mergehost/internal/errors"
	"github.com/veroide/mergehost/internal/session"
)

// maxCommits is how many commit records are kept. Older ones are pruned on
// every insert.
const maxCommits = 200

// CommitRecord is one successful commit.
type CommitRecord struct {
	ID           string
	SessionID    string
	SandboxID    string
	SourceBranch string
	Files        map[string]string
	Results      map[string]session.FileCommitResult
	CommittedAt  time.Time
}

// RecordCommit appends a commit to the log.
func (s *SQLiteStore) RecordCommit(payload *session.CommitPayload, result *session.CommitResult) error {
	if payload == nil {
		return fmt.Errorf("commit payload cannot be nil")
	}

	files, err := json.Marshal(payload.Files)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageSaveFailed, "encode commit files", err)
	}
	results := map[string]session.FileCommitResult{}
	if result != nil && result.Files != nil {
		results = result.Files
	}
	resultJSON, err := json.Marshal(results)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageSaveFailed, "encode commit result", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	const query = `
		INSERT INTO commits (id, session_id, sandbox_id, source_branch, files_json, result_json, committed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	id := uuid.NewString()
	_, err = s.db.Exec(query,
		id,
		payload.SessionID,
		payload.SandboxID,
		payload.SourceBranch,
		string(files),
		string(resultJSON),
		formatTime(time.Now()),
	)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageSaveFailed, "record commit", err)
	}

	const cleanup = `
		DELETE FROM commits WHERE id IN (
			SELECT id FROM commits ORDER BY committed_at DESC LIMIT -1 OFFSET ?
		)
	`
	if _, err := s.db.Exec(cleanup, maxCommits); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageSaveFailed, "enforce commit retention", err)
	}

	logger().Debug("recorded commit", "id", id, "session", payload.SessionID, "files", len(payload.Files))
	return nil
}

// ListCommits returns recorded commits, newest first. A limit of 0 or less
// returns all of them.
func (s *SQLiteStore) ListCommits(limit int) ([]CommitRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	const query = `
		SELECT id, session_id, sandbox_id, source_branch, files_json, result_json, committed_at
		FROM commits
		ORDER BY committed_at DESC
		LIMIT ?
	`
	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageQueryFailed, "list commits", err)
	}
	defer rows.Close()

	records := make([]CommitRecord, 0)
	for rows.Next() {
		var (
			rec         CommitRecord
			files       string
			results     string
			committedAt string
		)
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.SandboxID, &rec.SourceBranch, &files, &results, &committedAt); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeStorageQueryFailed, "scan commit", err)
		}
		if err := json.Unmarshal([]byte(files), &rec.Files); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeStorageQueryFailed, "decode commit files", err)
		}
		if err := json.Unmarshal([]byte(results), &rec.Results); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeStorageQueryFailed, "decode commit result", err)
		}
		t, err := time.Parse(timeLayout, committedAt)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeStorageQueryFailed, "parse committed_at", err)
		}
		rec.CommittedAt = t
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageQueryFailed, "iterate commits", err)
	}
	return records, nil
}
