// Package server exposes the conflict-resolution engine to presentation
// layers over WebSocket. Clients open sessions, send per-hunk decisions and
// overrides, and commit; every change is broadcast to all connected clients
// so several views of one session stay in step.
package server

import (
	"github.com/veroide/mergehost/internal/diff"
	"github.com/veroide/mergehost/internal/session"
)

// MessageType identifies the kind of message being sent over WebSocket.
type MessageType string

// Client → server.
const (
	// MessageTypeSessionOpen opens (or resumes) a session for a branch merge.
	// Payload: SessionOpenPayload
	MessageTypeSessionOpen MessageType = "session.open"

	// MessageTypeSessionGet requests a full snapshot of a session.
	// Payload: SessionRefPayload
	MessageTypeSessionGet MessageType = "session.get"

	// MessageTypeSessionList requests the open sessions. Also sent by the
	// server to every client on connect.
	// Payload: none / SessionListPayload
	MessageTypeSessionList MessageType = "session.list"

	// MessageTypeHunkResolve decides one hunk.
	// Payload: HunkResolvePayload
	MessageTypeHunkResolve MessageType = "hunk.resolve"

	// MessageTypeHunkUnresolve removes the decision for one hunk.
	// Payload: HunkRefPayload
	MessageTypeHunkUnresolve MessageType = "hunk.unresolve"

	// MessageTypeFileOverride replaces a file's merged content outright.
	// Payload: FileOverridePayload
	MessageTypeFileOverride MessageType = "file.override"

	// MessageTypeFileClearOverride returns a file to hunk-level resolution.
	// Payload: FileRefPayload
	MessageTypeFileClearOverride MessageType = "file.clear_override"

	// MessageTypeSessionCommit submits the merged files to the sync service.
	// Payload: SessionRefPayload
	MessageTypeSessionCommit MessageType = "session.commit"

	// MessageTypeSessionCancel abandons a session.
	// Payload: SessionRefPayload
	MessageTypeSessionCancel MessageType = "session.cancel"
)

// Server → client.
const (
	// MessageTypeSessionState is a full session snapshot.
	// Payload: SessionStatePayload
	MessageTypeSessionState MessageType = "session.state"

	// MessageTypeFileState is broadcast after every mutation of a file.
	// Payload: session.FileUpdate
	MessageTypeFileState MessageType = "file.state"

	// MessageTypeCommitResult reports the outcome of session.commit.
	// Payload: CommitResultPayload
	MessageTypeCommitResult MessageType = "commit.result"

	// MessageTypeSessionClosed is broadcast when a session is committed or
	// cancelled.
	// Payload: SessionClosedPayload
	MessageTypeSessionClosed MessageType = "session.closed"

	// MessageTypeError reports a failed request.
	// Payload: ErrorPayload
	MessageTypeError MessageType = "error"
)

// Message is the envelope for everything sent over the WebSocket.
type Message struct {
	// Type identifies what kind of message this is.
	Type MessageType `json:"type"`

	// ID correlates a response with the request that caused it. Broadcasts
	// carry the id of the request that triggered them.
	ID string `json:"id,omitempty"`

	// Payload depends on Type.
	Payload interface{} `json:"payload"`
}

// SessionOpenPayload opens a session. When Files is empty the server asks
// the configured diff provider for them.
type SessionOpenPayload struct {
	SandboxID    string              `json:"sandbox_id"`
	SourceBranch string              `json:"source_branch"`
	Files        []diff.ProviderFile `json:"files,omitempty"`
}

// SessionRefPayload names a session.
type SessionRefPayload struct {
	SessionID string `json:"session_id"`
}

// FileRefPayload names a file in a session.
type FileRefPayload struct {
	SessionID string `json:"session_id"`
	FilePath  string `json:"file_path"`
}

// HunkRefPayload names a hunk in a file.
type HunkRefPayload struct {
	SessionID string `json:"session_id"`
	FilePath  string `json:"file_path"`
	HunkID    string `json:"hunk_id"`
}

// HunkResolvePayload decides a hunk. CustomText is only read for "custom".
type HunkResolvePayload struct {
	SessionID  string  `json:"session_id"`
	FilePath   string  `json:"file_path"`
	HunkID     string  `json:"hunk_id"`
	Kind       string  `json:"kind"`
	CustomText *string `json:"custom_text,omitempty"`
}

// FileOverridePayload sets a file's merged content.
type FileOverridePayload struct {
	SessionID string `json:"session_id"`
	FilePath  string `json:"file_path"`
	Content   string `json:"content"`
}

// SessionStatePayload is a session snapshot. Resumed is set on the reply to
// a session.open that picked up an existing session.
type SessionStatePayload struct {
	session.SessionView
	Resumed bool `json:"resumed,omitempty"`
}

// SessionListPayload lists open sessions.
type SessionListPayload struct {
	Sessions []session.Summary `json:"sessions"`
}

// CommitResultPayload reports a commit. On success Results holds the sync
// service's per-file verdicts; on failure Error says why and Failed names
// the rejected files, if any.
type CommitResultPayload struct {
	SessionID string                              `json:"session_id"`
	Success   bool                                `json:"success"`
	Results   map[string]session.FileCommitResult `json:"results,omitempty"`
	Failed    []string                            `json:"failed,omitempty"`
	ErrorCode string                              `json:"error_code,omitempty"`
	Error     string                              `json:"error,omitempty"`
}

// Reasons a session closes.
const (
	CloseReasonCommitted = "committed"
	CloseReasonCancelled = "cancelled"
)

// SessionClosedPayload announces that a session is gone.
type SessionClosedPayload struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
}

// ErrorPayload carries a stable error code and a readable message.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewSessionStateMessage wraps a session snapshot.
func NewSessionStateMessage(id string, view session.SessionView, resumed bool) Message {
	return Message{
		Type:    MessageTypeSessionState,
		ID:      id,
		Payload: SessionStatePayload{SessionView: view, Resumed: resumed},
	}
}

// NewSessionListMessage wraps a session listing.
func NewSessionListMessage(id string, sessions []session.Summary) Message {
	if sessions == nil {
		sessions = []session.Summary{}
	}
	return Message{
		Type:    MessageTypeSessionList,
		ID:      id,
		Payload: SessionListPayload{Sessions: sessions},
	}
}

// NewFileStateMessage wraps a file update.
func NewFileStateMessage(id string, update session.FileUpdate) Message {
	return Message{Type: MessageTypeFileState, ID: id, Payload: update}
}

// NewCommitResultMessage wraps a commit outcome.
func NewCommitResultMessage(id string, payload CommitResultPayload) Message {
	return Message{Type: MessageTypeCommitResult, ID: id, Payload: payload}
}

// NewSessionClosedMessage announces a closed session.
func NewSessionClosedMessage(id, sessionID, reason string) Message {
	return Message{
		Type:    MessageTypeSessionClosed,
		ID:      id,
		Payload: SessionClosedPayload{SessionID: sessionID, Reason: reason},
	}
}

// NewErrorMessage creates an error response.
func NewErrorMessage(id, code, message string) Message {
	return Message{
		Type:    MessageTypeError,
		ID:      id,
		Payload: ErrorPayload{Code: code, Message: message},
	}
}
