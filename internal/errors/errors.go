// Package errors provides standardized error codes for the merge host.
//
// Error codes follow the format {domain}.{error} where:
//   - domain: The subsystem that produced the error (hunk, resolution, session, storage, ...)
//   - error: The specific failure within that domain
//
// Codes are stable and are what presentation layers switch on. The message
// alongside each code is for humans and may change between releases.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes by domain.
const (
	// Hunk domain - problems with an individual conflicting region
	CodeHunkUnknown        = "hunk.unknown"         // Resolution targets a hunk id the file doesn't have
	CodeHunkMalformedRange = "hunk.malformed_range" // Range is inverted or falls outside the base content
	CodeHunkDuplicateID    = "hunk.duplicate_id"    // Two hunks in one file share an id
	CodeHunkOverlap        = "hunk.overlap"         // Two hunks in one file cover the same yours lines

	// Resolution domain - per-hunk and per-file decisions
	CodeResolutionInvalidKind = "resolution.invalid_kind" // Kind is not theirs/yours/both/custom
	CodeResolutionIncomplete  = "resolution.incomplete"   // Commit attempted before every file is resolved

	// Conflict domain - conflict file lifecycle
	CodeConflictStale         = "conflict.stale"          // Branch moved after the conflict file was fetched
	CodeConflictDuplicateFile = "conflict.duplicate_file" // Same file path reported twice in one session
	CodeConflictFileNotFound  = "conflict.file_not_found" // File path is not part of the session

	// Session domain
	CodeSessionNotFound = "session.not_found" // Session id does not exist (committed, cancelled or never opened)
	CodeSessionBusy     = "session.busy"      // Session is being committed and rejects mutations
	CodeSessionClosed   = "session.closed"    // Session manager has shut down

	// Storage domain - draft persistence
	CodeStorageNotFound    = "storage.not_found"    // Draft or record not found
	CodeStorageOpenFailed  = "storage.open_failed"  // Database open failed
	CodeStorageQueryFailed = "storage.query_failed" // Database query failed
	CodeStorageSaveFailed  = "storage.save_failed"  // Failed to save data

	// Provider domain - diff provider boundary
	CodeProviderFailed       = "provider.failed"        // Diff provider request failed
	CodeProviderInvalidInput = "provider.invalid_input" // Diff provider returned an unusable payload

	// Commit domain - persistence/sync service boundary
	CodeCommitFailed   = "commit.failed"   // Sync service request failed
	CodeCommitRejected = "commit.rejected" // Sync service refused one or more files

	// Server domain - WebSocket surface
	CodeServerInvalidMessage = "server.invalid_message" // Malformed or invalid message
	CodeServerHandlerMissing = "server.handler_missing" // No collaborator configured for the request
	CodeServerRateLimited    = "server.rate_limited"    // Client is sending too fast

	// Config domain
	CodeConfigInvalidOption = "config.invalid_option" // Option value is outside its allowed set

	// General domain
	CodeUnknown  = "error.unknown"
	CodeInternal = "error.internal"
)

// CodedError carries a stable code next to a human-readable message.
type CodedError struct {
	Code    string // Stable error code (e.g., "hunk.unknown")
	Message string // Human-readable error message
	Cause   error  // Underlying error (may be nil)
}

// Error implements the error interface.
func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CodedError) Unwrap() error {
	return e.Cause
}

// New creates a CodedError with the given code and message.
func New(code, message string) *CodedError {
	return &CodedError{Code: code, Message: message}
}

// Wrap creates a CodedError around an existing error.
func Wrap(code, message string, cause error) *CodedError {
	return &CodedError{Code: code, Message: message, Cause: cause}
}

// GetCode extracts the code from an error chain.
// Errors without a CodedError in their chain report CodeUnknown.
func GetCode(err error) string {
	if err == nil {
		return ""
	}
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeUnknown
}

// GetMessage extracts a human-readable message from an error.
func GetMessage(err error) string {
	if err == nil {
		return ""
	}
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Message
	}
	return err.Error()
}

// ToCodeAndMessage extracts both code and message from an error.
// This is what the server uses to build error payloads.
func ToCodeAndMessage(err error) (code, message string) {
	if err == nil {
		return "", ""
	}
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code, coded.Message
	}
	return CodeUnknown, err.Error()
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code string) bool {
	return GetCode(err) == code
}

// UnknownHunk is returned when a resolution targets a hunk the file doesn't contain.
// It is a caller bug: state is never mutated when this is returned.
func UnknownHunk(file, hunkID string) *CodedError {
	return New(CodeHunkUnknown, fmt.Sprintf("hunk %q is not part of %s", hunkID, file))
}

// MalformedHunkRange is returned when a hunk range is inverted or out of bounds.
func MalformedHunkRange(file, hunkID, reason string) *CodedError {
	return New(CodeHunkMalformedRange, fmt.Sprintf("hunk %q in %s has a malformed range: %s", hunkID, file, reason))
}

// DuplicateHunk is returned when a file lists the same hunk id twice.
func DuplicateHunk(file, hunkID string) *CodedError {
	return New(CodeHunkDuplicateID, fmt.Sprintf("hunk %q appears more than once in %s", hunkID, file))
}

// OverlappingHunks is returned when two hunks claim the same yours lines.
func OverlappingHunks(file, first, second string) *CodedError {
	return New(CodeHunkOverlap, fmt.Sprintf("hunks %q and %q overlap in %s", first, second, file))
}

// InvalidResolutionKind is returned for a kind outside theirs/yours/both/custom.
func InvalidResolutionKind(kind string) *CodedError {
	return New(CodeResolutionInvalidKind,
		fmt.Sprintf("invalid resolution kind %q (must be theirs, yours, both or custom)", kind))
}

// IncompleteResolution is returned when a commit is attempted with unresolved files.
// Nothing is committed when this is returned.
func IncompleteResolution(files []string) *CodedError {
	msg := "not every file is resolved"
	if len(files) > 0 {
		msg = fmt.Sprintf("%s: %s", msg, strings.Join(files, ", "))
	}
	return New(CodeResolutionIncomplete, msg)
}

// StaleConflictFile is returned when decisions were made against content
// that no longer matches the branch. The session must be re-fetched.
func StaleConflictFile(file string) *CodedError {
	return New(CodeConflictStale, fmt.Sprintf("%s changed since it was fetched, reload the conflict", file))
}

// DuplicateFile is returned when a session is opened with the same path twice.
func DuplicateFile(file string) *CodedError {
	return New(CodeConflictDuplicateFile, fmt.Sprintf("file %s is listed more than once", file))
}

// FileNotFound is returned when a path is not part of the session.
func FileNotFound(file string) *CodedError {
	return New(CodeConflictFileNotFound, fmt.Sprintf("file %s is not part of this session", file))
}

// SessionNotFound is returned when a session id is unknown.
func SessionNotFound(id string) *CodedError {
	return New(CodeSessionNotFound, fmt.Sprintf("session %s not found", id))
}

// SessionBusy is returned when a session is mid-commit.
func SessionBusy(id string) *CodedError {
	return New(CodeSessionBusy, fmt.Sprintf("session %s is being committed", id))
}

// ProviderFailed wraps a diff provider failure.
func ProviderFailed(cause error) *CodedError {
	return Wrap(CodeProviderFailed, "diff provider request failed", cause)
}

// InvalidProviderInput is returned when the provider payload can't be used.
func InvalidProviderInput(reason string) *CodedError {
	return New(CodeProviderInvalidInput, fmt.Sprintf("invalid conflict payload: %s", reason))
}

// CommitFailed wraps a sync service failure.
func CommitFailed(cause error) *CodedError {
	return Wrap(CodeCommitFailed, "sync service request failed", cause)
}

// CommitRejected is returned when the sync service refused some files.
func CommitRejected(files []string) *CodedError {
	return New(CodeCommitRejected, fmt.Sprintf("sync service rejected: %s", strings.Join(files, ", ")))
}

// InvalidOption is returned when a configured option has an unknown value.
func InvalidOption(name, value string, allowed ...string) *CodedError {
	return New(CodeConfigInvalidOption,
		fmt.Sprintf("invalid %s %q (must be %s)", name, value, strings.Join(allowed, " or ")))
}

// InvalidMessage creates a "server.invalid_message" error.
func InvalidMessage(reason string) *CodedError {
	return New(CodeServerInvalidMessage, reason)
}

// Internal creates an "error.internal" error.
func Internal(message string, cause error) *CodedError {
	return Wrap(CodeInternal, message, cause)
}
