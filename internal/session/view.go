package session

import (
	"time"

	"github.com/veroide/mergehost/internal/diff"
	"github.com/veroide/mergehost/internal/resolve"
)

// FileView is a read-only copy of one file's state, safe to hand to other
// goroutines and to encode as JSON.
type FileView struct {
	Path            string                   `json:"path"`
	State           resolve.FileState        `json:"state"`
	ResolvedHunks   int                      `json:"resolved_hunks"`
	TotalHunks      int                      `json:"total_hunks"`
	Override        bool                     `json:"override"`
	ResolvedContent string                   `json:"resolved_content"`
	TheirsContent   string                   `json:"theirs_content"`
	YoursContent    string                   `json:"yours_content"`
	Hunks           []diff.Hunk              `json:"hunks"`
	Decisions       []resolve.HunkResolution `json:"decisions"`
}

// SessionView is a read-only copy of a whole session.
type SessionView struct {
	ID           string     `json:"id"`
	SandboxID    string     `json:"sandbox_id"`
	SourceBranch string     `json:"source_branch"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CanCommit    bool       `json:"can_commit"`
	Files        []FileView `json:"files"`
}

// FileUpdate is the result of a mutation: the changed file plus whether
// the session as a whole can now be committed.
type FileUpdate struct {
	SessionID string   `json:"session_id"`
	CanCommit bool     `json:"can_commit"`
	File      FileView `json:"file"`
}

// Summary is a one-line description of a session for listings.
type Summary struct {
	ID            string    `json:"id"`
	SandboxID     string    `json:"sandbox_id"`
	SourceBranch  string    `json:"source_branch"`
	Files         int       `json:"files"`
	ResolvedFiles int       `json:"resolved_files"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func newFileView(r *resolve.FileResolution) FileView {
	f := r.File()
	return FileView{
		Path:            f.Path,
		State:           r.State(),
		ResolvedHunks:   r.ResolvedCount(),
		TotalHunks:      f.HunkCount(),
		Override:        r.HasOverride(),
		ResolvedContent: r.ResolvedContent(),
		TheirsContent:   f.TheirsContent,
		YoursContent:    f.YoursContent,
		Hunks:           f.Hunks(),
		Decisions:       r.Decisions(),
	}
}

// View copies the session into a SessionView.
func (s *Session) View() SessionView {
	v := SessionView{
		ID:           s.ID,
		SandboxID:    s.Meta.SandboxID,
		SourceBranch: s.Meta.SourceBranch,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
		CanCommit:    s.AllFilesResolved(),
		Files:        make([]FileView, 0, len(s.files)),
	}
	for _, f := range s.files {
		v.Files = append(v.Files, newFileView(s.resolutions[f.Path]))
	}
	return v
}

// Summary returns a listing line for the session.
func (s *Session) Summary() Summary {
	resolved := 0
	for _, f := range s.files {
		if s.resolutions[f.Path].IsFullyResolved() {
			resolved++
		}
	}
	return Summary{
		ID:            s.ID,
		SandboxID:     s.Meta.SandboxID,
		SourceBranch:  s.Meta.SourceBranch,
		Files:         len(s.files),
		ResolvedFiles: resolved,
		UpdatedAt:     s.UpdatedAt,
	}
}
