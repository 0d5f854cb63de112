package session

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/veroide/mergehost/internal/diff"
	apperrors "github.com/veroide/mergehost/internal/errors"
	"github.com/veroide/mergehost/internal/resolve"
)

func logger() *log.Logger {
	return log.WithPrefix("session")
}

// DraftStore persists in-progress sessions so they survive a restart.
type DraftStore interface {
	SaveDraft(s *Session) error
	DeleteDraft(id string) error
}

// CommitLog records successful commits.
type CommitLog interface {
	RecordCommit(payload *CommitPayload, result *CommitResult) error
}

// ManagerOptions configures a Manager. Drafts and Commits may be nil.
type ManagerOptions struct {
	Resolve resolve.Options
	Drafts  DraftStore
	Commits CommitLog
}

// Manager owns every open session and applies all operations on them from
// a single goroutine. Callers on any goroutine submit work and wait for the
// result, so sessions never see concurrent mutation and need no locks.
type Manager struct {
	opts ManagerOptions

	ops      chan func()
	done     chan struct{}
	stopOnce sync.Once

	// Owned by the loop goroutine.
	sessions   map[string]*Session
	committing map[string]bool
}

// NewManager starts a manager. Call Close to stop it.
func NewManager(opts ManagerOptions) *Manager {
	m := &Manager{
		opts:       opts,
		ops:        make(chan func()),
		done:       make(chan struct{}),
		sessions:   make(map[string]*Session),
		committing: make(map[string]bool),
	}
	go m.loop()
	return m
}

func (m *Manager) loop() {
	for {
		select {
		case op := <-m.ops:
			op()
		case <-m.done:
			return
		}
	}
}

// Close stops the manager. Pending calls return session.closed.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.done) })
}

// run executes fn on the loop goroutine. The context only bounds the wait to
// get in line: once fn starts it runs to completion.
func (m *Manager) run(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-m.done:
		return errManagerClosed()
	default:
	}
	errCh := make(chan error, 1)
	select {
	case m.ops <- func() { errCh <- fn() }:
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done:
		return errManagerClosed()
	}
	return <-errCh
}

func errManagerClosed() error {
	return apperrors.New(apperrors.CodeSessionClosed, "session manager is closed")
}

func (m *Manager) withSession(ctx context.Context, id string, mutating bool, fn func(*Session) error) error {
	return m.run(ctx, func() error {
		s, ok := m.sessions[id]
		if !ok {
			return apperrors.SessionNotFound(id)
		}
		if mutating && m.committing[id] {
			return apperrors.SessionBusy(id)
		}
		if err := fn(s); err != nil {
			return err
		}
		if mutating {
			m.saveDraft(s)
		}
		return nil
	})
}

func (m *Manager) saveDraft(s *Session) {
	if m.opts.Drafts == nil {
		return
	}
	if err := m.opts.Drafts.SaveDraft(s); err != nil {
		logger().Warn("failed to save draft", "session", s.ID, "err", err)
	}
}

func (m *Manager) dropSession(id string) {
	delete(m.sessions, id)
	delete(m.committing, id)
	if m.opts.Drafts == nil {
		return
	}
	if err := m.opts.Drafts.DeleteDraft(id); err != nil {
		logger().Warn("failed to delete draft", "session", id, "err", err)
	}
}

// Open starts a session for meta. If a session for the same sandbox and
// branch is already open over identical content it is resumed instead, and
// resumed is true. An open session over different content is stale and is
// discarded along with its decisions.
func (m *Manager) Open(ctx context.Context, meta Meta, files []*diff.ConflictFile) (view SessionView, resumed bool, err error) {
	err = m.run(ctx, func() error {
		for id, existing := range m.sessions {
			if existing.Meta != meta {
				continue
			}
			if m.committing[id] {
				return apperrors.SessionBusy(id)
			}
			if sameContent(existing.files, files) {
				view, resumed = existing.View(), true
				logger().Info("resumed session", "session", id, "sandbox", meta.SandboxID)
				return nil
			}
			logger().Warn("discarding stale session", "session", id, "sandbox", meta.SandboxID, "branch", meta.SourceBranch)
			m.dropSession(id)
		}

		s, err := Open(meta, files, m.opts.Resolve)
		if err != nil {
			return err
		}
		m.sessions[s.ID] = s
		m.saveDraft(s)
		view = s.View()
		logger().Info("opened session", "session", s.ID, "sandbox", meta.SandboxID, "files", len(files))
		return nil
	})
	return view, resumed, err
}

func sameContent(a, b []*diff.ConflictFile) bool {
	return slices.EqualFunc(a, b, func(x, y *diff.ConflictFile) bool {
		return x.Fingerprint() == y.Fingerprint()
	})
}

// Adopt registers a session restored from storage.
func (m *Manager) Adopt(ctx context.Context, s *Session) error {
	return m.run(ctx, func() error {
		m.sessions[s.ID] = s
		return nil
	})
}

// Get returns a snapshot of one session.
func (m *Manager) Get(ctx context.Context, id string) (SessionView, error) {
	var view SessionView
	err := m.withSession(ctx, id, false, func(s *Session) error {
		view = s.View()
		return nil
	})
	return view, err
}

// List summarizes every open session, most recently updated first.
func (m *Manager) List(ctx context.Context) ([]Summary, error) {
	var out []Summary
	err := m.run(ctx, func() error {
		for _, s := range m.sessions {
			out = append(out, s.Summary())
		}
		return nil
	})
	slices.SortFunc(out, func(a, b Summary) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	return out, err
}

func (m *Manager) mutateFile(ctx context.Context, id string, fn func(*Session) (*resolve.FileResolution, error)) (FileUpdate, error) {
	var update FileUpdate
	err := m.withSession(ctx, id, true, func(s *Session) error {
		r, err := fn(s)
		if err != nil {
			return err
		}
		update = FileUpdate{SessionID: s.ID, CanCommit: s.AllFilesResolved(), File: newFileView(r)}
		return nil
	})
	return update, err
}

// Resolve decides one hunk.
func (m *Manager) Resolve(ctx context.Context, id, path, hunkID string, kind resolve.Kind, customText *string) (FileUpdate, error) {
	return m.mutateFile(ctx, id, func(s *Session) (*resolve.FileResolution, error) {
		return s.SetResolution(path, hunkID, kind, customText)
	})
}

// Unresolve undoes the decision for one hunk.
func (m *Manager) Unresolve(ctx context.Context, id, path, hunkID string) (FileUpdate, error) {
	return m.mutateFile(ctx, id, func(s *Session) (*resolve.FileResolution, error) {
		return s.ClearResolution(path, hunkID)
	})
}

// Override replaces a file's merged content.
func (m *Manager) Override(ctx context.Context, id, path, content string) (FileUpdate, error) {
	return m.mutateFile(ctx, id, func(s *Session) (*resolve.FileResolution, error) {
		return s.ApplyOverride(path, content)
	})
}

// ClearOverride returns a file to hunk-level resolution.
func (m *Manager) ClearOverride(ctx context.Context, id, path string) (FileUpdate, error) {
	return m.mutateFile(ctx, id, func(s *Session) (*resolve.FileResolution, error) {
		return s.ClearOverride(path)
	})
}

// Payload builds the commit payload without submitting it.
func (m *Manager) Payload(ctx context.Context, id string) (*CommitPayload, error) {
	var payload *CommitPayload
	err := m.withSession(ctx, id, false, func(s *Session) error {
		var err error
		payload, err = s.BuildCommitPayload()
		return err
	})
	return payload, err
}

// Commit builds the payload, submits it through c, and closes the session
// once every file is accepted. While the request is in flight the session
// rejects mutations. If the request fails or any file is rejected the
// session stays open so the caller can retry.
func (m *Manager) Commit(ctx context.Context, id string, c Committer) (*CommitPayload, *CommitResult, error) {
	var payload *CommitPayload
	err := m.withSession(ctx, id, false, func(s *Session) error {
		if m.committing[id] {
			return apperrors.SessionBusy(id)
		}
		var err error
		payload, err = s.BuildCommitPayload()
		if err != nil {
			return err
		}
		m.committing[id] = true
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	result, commitErr := c.Commit(ctx, payload)

	// Settle on a fresh context: the session must leave the committing state
	// even if the caller has given up.
	settleErr := m.run(context.Background(), func() error {
		delete(m.committing, id)
		if commitErr != nil {
			return commitErr
		}
		if result == nil {
			return apperrors.CommitFailed(errors.New("sync service returned no result"))
		}
		if failed := result.Failed(payload); len(failed) > 0 {
			return apperrors.CommitRejected(failed)
		}
		if m.opts.Commits != nil {
			if err := m.opts.Commits.RecordCommit(payload, result); err != nil {
				logger().Warn("failed to record commit", "session", id, "err", err)
			}
		}
		m.dropSession(id)
		logger().Info("committed session", "session", id, "files", len(payload.Files))
		return nil
	})
	if settleErr != nil {
		return payload, result, settleErr
	}
	return payload, result, nil
}

// Cancel abandons a session. Nothing is written anywhere.
func (m *Manager) Cancel(ctx context.Context, id string) error {
	return m.run(ctx, func() error {
		if _, ok := m.sessions[id]; !ok {
			return apperrors.SessionNotFound(id)
		}
		if m.committing[id] {
			return apperrors.SessionBusy(id)
		}
		m.dropSession(id)
		logger().Info("cancelled session", "session", id)
		return nil
	})
}
