package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	apperrors "github.com/veroide/mergehost/internal/errors"
	"github.com/veroide/mergehost/internal/session"
)

// CommitClient submits merged content to the sync service.
type CommitClient struct {
	c *client
}

// NewCommitClient returns a client for the sync service at opts.BaseURL.
func NewCommitClient(opts ClientOptions) *CommitClient {
	return &CommitClient{c: newClient(opts)}
}

// Commit posts the payload to {base}/sandboxes/{id}/commits and returns the
// per-file verdicts. A file the service rejects is reported in the result,
// not as an error.
func (c *CommitClient) Commit(ctx context.Context, payload *session.CommitPayload) (*session.CommitResult, error) {
	endpoint := fmt.Sprintf("%s/sandboxes/%s/commits", c.c.baseURL, url.PathEscape(payload.SandboxID))

	body, err := c.c.do(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return nil, apperrors.CommitFailed(err)
	}

	var result session.CommitResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, apperrors.CommitFailed(fmt.Errorf("decode response: %w", err))
	}
	if result.Files == nil {
		result.Files = map[string]session.FileCommitResult{}
	}
	logger().Info("commit submitted", "sandbox", payload.SandboxID, "files", len(payload.Files),
		"rejected", len(result.Failed(payload)))
	return &result, nil
}

// Discard is a Committer that accepts every file without sending anything.
// serve --dry-run uses it.
type Discard struct{}

// Commit reports every file as accepted.
func (Discard) Commit(_ context.Context, payload *session.CommitPayload) (*session.CommitResult, error) {
	result := &session.CommitResult{Files: make(map[string]session.FileCommitResult, len(payload.Files))}
	for path := range payload.Files {
		result.Files[path] = session.FileCommitResult{OK: true}
	}
	return result, nil
}
