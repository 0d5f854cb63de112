package session

import (
	"context"
	"sort"

	apperrors "github.com/veroide/mergehost/internal/errors"
)

// CommitPayload is what the persistence service receives: the merged content
// of every file plus the branch merge it belongs to.
type CommitPayload struct {
	SessionID    string            `json:"sessionId"`
	SandboxID    string            `json:"sandboxId"`
	SourceBranch string            `json:"sourceBranch"`
	Files        map[string]string `json:"files"`
}

// Paths returns the payload's file paths sorted.
func (p *CommitPayload) Paths() []string {
	paths := make([]string, 0, len(p.Files))
	for path := range p.Files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// BuildCommitPayload returns the merged content of every file. It fails with
// resolution.incomplete, naming the blocking files, unless AllFilesResolved.
func (s *Session) BuildCommitPayload() (*CommitPayload, error) {
	if unresolved := s.UnresolvedFiles(); len(unresolved) > 0 {
		return nil, apperrors.IncompleteResolution(unresolved)
	}
	files := make(map[string]string, len(s.files))
	for _, f := range s.files {
		files[f.Path] = s.resolutions[f.Path].ResolvedContent()
	}
	return &CommitPayload{
		SessionID:    s.ID,
		SandboxID:    s.Meta.SandboxID,
		SourceBranch: s.Meta.SourceBranch,
		Files:        files,
	}, nil
}

// FileCommitResult is the persistence service's verdict for one file.
type FileCommitResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// CommitResult is the per-file outcome of a commit.
type CommitResult struct {
	Files map[string]FileCommitResult `json:"results"`
}

// Failed returns the paths the service did not accept, sorted. A path the
// service didn't mention at all counts as failed, and so does every path
// when r is nil.
func (r *CommitResult) Failed(payload *CommitPayload) []string {
	if r == nil {
		return payload.Paths()
	}
	var failed []string
	for _, path := range payload.Paths() {
		if res, ok := r.Files[path]; !ok || !res.OK {
			failed = append(failed, path)
		}
	}
	return failed
}

// Committer submits a payload to the persistence service.
type Committer interface {
	Commit(ctx context.Context, payload *CommitPayload) (*CommitResult, error)
}
