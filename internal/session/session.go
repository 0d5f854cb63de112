// Package session groups the conflict files of one sandbox sync into a
// session, tracks when every file is resolved, and builds the commit payload.
//
// A Session is not safe for concurrent use. Callers that share sessions
// between goroutines go through Manager, which serializes every mutation.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/veroide/mergehost/internal/diff"
	apperrors "github.com/veroide/mergehost/internal/errors"
	"github.com/veroide/mergehost/internal/resolve"
)

// Meta identifies which branch merge a session represents.
type Meta struct {
	SandboxID    string `json:"sandbox_id"`
	SourceBranch string `json:"source_branch"`
}

// Session is the aggregate for one sync operation.
type Session struct {
	ID        string
	Meta      Meta
	CreatedAt time.Time
	UpdatedAt time.Time

	opts        resolve.Options
	files       []*diff.ConflictFile
	resolutions map[string]*resolve.FileResolution
}

// Open creates a session with one fresh FileResolution per file.
// Duplicate paths are rejected and nothing is created.
func Open(meta Meta, files []*diff.ConflictFile, opts resolve.Options) (*Session, error) {
	return build(uuid.NewString(), meta, time.Now(), files, opts, nil)
}

// Restore rebuilds a session from persisted snapshots. Files without a
// snapshot start unresolved.
func Restore(id string, meta Meta, createdAt time.Time, files []*diff.ConflictFile, opts resolve.Options, snaps map[string]resolve.Snapshot) (*Session, error) {
	return build(id, meta, createdAt, files, opts, snaps)
}

func build(id string, meta Meta, createdAt time.Time, files []*diff.ConflictFile, opts resolve.Options, snaps map[string]resolve.Snapshot) (*Session, error) {
	resolutions := make(map[string]*resolve.FileResolution, len(files))
	for _, f := range files {
		if _, dup := resolutions[f.Path]; dup {
			return nil, apperrors.DuplicateFile(f.Path)
		}
		if snap, ok := snaps[f.Path]; ok {
			r, err := resolve.Restore(f, opts, snap)
			if err != nil {
				return nil, err
			}
			resolutions[f.Path] = r
			continue
		}
		resolutions[f.Path] = resolve.NewFileResolution(f, opts)
	}

	return &Session{
		ID:          id,
		Meta:        meta,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
		opts:        opts,
		files:       append([]*diff.ConflictFile(nil), files...),
		resolutions: resolutions,
	}, nil
}

// Files returns the session's files in the order they were opened.
func (s *Session) Files() []*diff.ConflictFile {
	return append([]*diff.ConflictFile(nil), s.files...)
}

// Resolution returns the working state of one file.
func (s *Session) Resolution(path string) (*resolve.FileResolution, error) {
	r, ok := s.resolutions[path]
	if !ok {
		return nil, apperrors.FileNotFound(path)
	}
	return r, nil
}

// SetResolution decides one hunk of one file.
func (s *Session) SetResolution(path, hunkID string, kind resolve.Kind, customText *string) (*resolve.FileResolution, error) {
	return s.mutate(path, func(r *resolve.FileResolution) error {
		return r.SetResolution(hunkID, kind, customText)
	})
}

// ClearResolution undoes the decision for one hunk.
func (s *Session) ClearResolution(path, hunkID string) (*resolve.FileResolution, error) {
	return s.mutate(path, func(r *resolve.FileResolution) error {
		return r.ClearResolution(hunkID)
	})
}

// ApplyOverride replaces a file's merged content outright.
func (s *Session) ApplyOverride(path, content string) (*resolve.FileResolution, error) {
	return s.mutate(path, func(r *resolve.FileResolution) error {
		r.ApplyOverride(content)
		return nil
	})
}

// ClearOverride returns a file to hunk-level resolution.
func (s *Session) ClearOverride(path string) (*resolve.FileResolution, error) {
	return s.mutate(path, func(r *resolve.FileResolution) error {
		return r.ClearOverride()
	})
}

func (s *Session) mutate(path string, fn func(*resolve.FileResolution) error) (*resolve.FileResolution, error) {
	r, err := s.Resolution(path)
	if err != nil {
		return nil, err
	}
	if err := fn(r); err != nil {
		return nil, err
	}
	s.UpdatedAt = time.Now()
	return r, nil
}

// ResolvedHunkCount returns how many hunks of a file are decided.
func (s *Session) ResolvedHunkCount(path string) (int, error) {
	r, err := s.Resolution(path)
	if err != nil {
		return 0, err
	}
	return r.ResolvedCount(), nil
}

// AllFilesResolved reports whether every file is fully resolved.
func (s *Session) AllFilesResolved() bool {
	for _, f := range s.files {
		if !s.resolutions[f.Path].IsFullyResolved() {
			return false
		}
	}
	return true
}

// UnresolvedFiles lists the paths that still block a commit, in file order.
func (s *Session) UnresolvedFiles() []string {
	var out []string
	for _, f := range s.files {
		if !s.resolutions[f.Path].IsFullyResolved() {
			out = append(out, f.Path)
		}
	}
	return out
}

// FileProgress summarizes one file.
type FileProgress struct {
	Path          string            `json:"path"`
	State         resolve.FileState `json:"state"`
	ResolvedHunks int               `json:"resolved_hunks"`
	TotalHunks    int               `json:"total_hunks"`
	Override      bool              `json:"override"`
}

// Progress returns per-file progress in file order.
func (s *Session) Progress() []FileProgress {
	out := make([]FileProgress, 0, len(s.files))
	for _, f := range s.files {
		r := s.resolutions[f.Path]
		out = append(out, FileProgress{
			Path:          f.Path,
			State:         r.State(),
			ResolvedHunks: r.ResolvedCount(),
			TotalHunks:    f.HunkCount(),
			Override:      r.HasOverride(),
		})
	}
	return out
}

// Snapshots captures every file's resolution for storage.
func (s *Session) Snapshots() map[string]resolve.Snapshot {
	out := make(map[string]resolve.Snapshot, len(s.resolutions))
	for path, r := range s.resolutions {
		out[path] = r.Snapshot()
	}
	return out
}

// Options returns the reconstruction options the session was opened with.
func (s *Session) Options() resolve.Options {
	return s.opts
}
