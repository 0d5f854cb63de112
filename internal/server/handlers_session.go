package server

import (
	"github.com/veroide/mergehost/internal/diff"
	apperrors "github.com/veroide/mergehost/internal/errors"
	"github.com/veroide/mergehost/internal/session"
)

// handleSessionOpen opens or resumes a session. Files come from the request
// when present, otherwise from the diff provider. The requester gets the
// full snapshot; every client gets the refreshed session list.
func (c *Client) handleSessionOpen(id string, data []byte) {
	s := c.server
	p, err := decodePayload[SessionOpenPayload](data)
	if err == nil {
		err = required("sandbox_id", p.SandboxID, "source_branch", p.SourceBranch)
	}
	if err != nil {
		c.sendError(id, err)
		return
	}

	var files []*diff.ConflictFile
	if len(p.Files) > 0 {
		files, err = diff.BuildConflictFiles(p.Files)
	} else if provider := s.getProvider(); provider != nil {
		files, err = provider.FetchConflicts(s.ctx, p.SandboxID, p.SourceBranch)
	} else {
		err = apperrors.New(apperrors.CodeServerHandlerMissing, "no diff provider configured; send files with session.open")
	}
	if err != nil {
		logger().Warn("session.open failed", "sandbox", p.SandboxID, "err", err)
		c.sendError(id, err)
		return
	}

	meta := session.Meta{SandboxID: p.SandboxID, SourceBranch: p.SourceBranch}
	view, resumed, err := s.manager.Open(s.ctx, meta, files)
	if err != nil {
		c.sendError(id, err)
		return
	}
	c.sendMessage(NewSessionStateMessage(id, view, resumed))
	s.broadcastSessionList(id)
}

func (c *Client) handleSessionGet(id string, data []byte) {
	p, err := decodePayload[SessionRefPayload](data)
	if err == nil {
		err = required("session_id", p.SessionID)
	}
	if err != nil {
		c.sendError(id, err)
		return
	}
	view, err := c.server.manager.Get(c.server.ctx, p.SessionID)
	if err != nil {
		c.sendError(id, err)
		return
	}
	c.sendMessage(NewSessionStateMessage(id, view, false))
}

func (c *Client) handleSessionList(id string) {
	sessions, err := c.server.manager.List(c.server.ctx)
	if err != nil {
		c.sendError(id, err)
		return
	}
	c.sendMessage(NewSessionListMessage(id, sessions))
}

// handleSessionCommit submits a session. Requests that fail before anything
// is sent (unresolved files, unknown session) are answered to the requester
// alone. Once the sync service has been contacted the outcome is broadcast,
// followed by session.closed on success.
func (c *Client) handleSessionCommit(id string, data []byte) {
	s := c.server
	p, err := decodePayload[SessionRefPayload](data)
	if err == nil {
		err = required("session_id", p.SessionID)
	}
	if err != nil {
		c.sendError(id, err)
		return
	}

	committer := s.getCommitter()
	if committer == nil {
		c.sendError(id, apperrors.New(apperrors.CodeServerHandlerMissing, "no sync service configured"))
		return
	}

	payload, result, err := s.manager.Commit(s.ctx, p.SessionID, committer)
	if payload == nil {
		c.sendError(id, err)
		return
	}

	out := CommitResultPayload{SessionID: p.SessionID, Success: err == nil}
	if result != nil {
		out.Results = result.Files
	}
	if err != nil {
		out.ErrorCode, out.Error = apperrors.ToCodeAndMessage(err)
		if result != nil {
			out.Failed = result.Failed(payload)
		}
		logger().Warn("commit failed", "session", p.SessionID, "code", out.ErrorCode)
	}
	s.Broadcast(NewCommitResultMessage(id, out))

	if err == nil {
		s.Broadcast(NewSessionClosedMessage(id, p.SessionID, CloseReasonCommitted))
	}
}

func (c *Client) handleSessionCancel(id string, data []byte) {
	p, err := decodePayload[SessionRefPayload](data)
	if err == nil {
		err = required("session_id", p.SessionID)
	}
	if err != nil {
		c.sendError(id, err)
		return
	}
	if err := c.server.manager.Cancel(c.server.ctx, p.SessionID); err != nil {
		c.sendError(id, err)
		return
	}
	c.server.Broadcast(NewSessionClosedMessage(id, p.SessionID, CloseReasonCancelled))
}

// broadcastSessionList sends every client the current open sessions.
func (s *Server) broadcastSessionList(id string) {
	sessions, err := s.manager.List(s.ctx)
	if err != nil {
		logger().Warn("failed to list sessions", "err", err)
		return
	}
	s.Broadcast(NewSessionListMessage(id, sessions))
}
