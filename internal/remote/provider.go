package remote

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/veroide/mergehost/internal/diff"
	apperrors "github.com/veroide/mergehost/internal/errors"
)

// Provider supplies the conflict files for one branch merge.
type Provider interface {
	FetchConflicts(ctx context.Context, sandboxID, sourceBranch string) ([]*diff.ConflictFile, error)
}

// ProviderClient fetches conflicts from the diff provider over HTTP.
type ProviderClient struct {
	c *client
}

// NewProviderClient returns a client for the provider at opts.BaseURL.
func NewProviderClient(opts ClientOptions) *ProviderClient {
	return &ProviderClient{c: newClient(opts)}
}

// FetchConflicts requests GET {base}/sandboxes/{id}/conflicts?source={branch}.
// Transport failures come back as provider.failed, unusable bodies as
// provider.invalid_input.
func (p *ProviderClient) FetchConflicts(ctx context.Context, sandboxID, sourceBranch string) ([]*diff.ConflictFile, error) {
	if sandboxID == "" {
		return nil, apperrors.InvalidProviderInput("sandbox id is required")
	}
	endpoint := fmt.Sprintf("%s/sandboxes/%s/conflicts?%s",
		p.c.baseURL,
		url.PathEscape(sandboxID),
		url.Values{"source": {sourceBranch}}.Encode(),
	)

	body, err := p.c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.ProviderFailed(err)
	}

	files, err := diff.DecodeProviderFiles(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	conflicts, err := diff.BuildConflictFiles(files)
	if err != nil {
		return nil, err
	}
	logger().Info("fetched conflicts", "sandbox", sandboxID, "source", sourceBranch, "files", len(conflicts))
	return conflicts, nil
}

// FileProvider reads provider JSON from a local file. It serves every
// sandbox and branch with the same content.
type FileProvider struct {
	Path string
}

// FetchConflicts decodes the file at p.Path.
func (p FileProvider) FetchConflicts(_ context.Context, _, _ string) ([]*diff.ConflictFile, error) {
	f, err := os.Open(p.Path)
	if err != nil {
		return nil, apperrors.ProviderFailed(err)
	}
	defer f.Close()

	files, err := diff.DecodeProviderFiles(f)
	if err != nil {
		return nil, err
	}
	return diff.BuildConflictFiles(files)
}
