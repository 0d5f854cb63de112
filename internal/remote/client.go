// Package remote talks to the services around the engine: the diff provider
// that supplies conflict files and the sync service that persists merged
// content. Network failures are retried here; engine errors never reach
// this layer.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/charmbracelet/log"
)

func logger() *log.Logger {
	return log.WithPrefix("remote")
}

// Default client settings.
const (
	DefaultTimeout         = 10 * time.Second
	DefaultMaxRetries      = 3
	DefaultInitialInterval = 200 * time.Millisecond
	DefaultMaxInterval     = 5 * time.Second
)

// ClientOptions configures ProviderClient and CommitClient.
type ClientOptions struct {
	// BaseURL is the service root, without a trailing slash.
	BaseURL string

	// Timeout bounds a single attempt. Zero means DefaultTimeout.
	Timeout time.Duration

	// MaxRetries is how many times a transient failure is retried after the
	// first attempt. Negative disables retries.
	MaxRetries int

	// InitialInterval is the first backoff delay. Zero means
	// DefaultInitialInterval.
	InitialInterval time.Duration

	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// Temporary reports whether the request may succeed if retried.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

type client struct {
	baseURL         string
	http            *http.Client
	maxRetries      int
	initialInterval time.Duration
}

func newClient(opts ClientOptions) *client {
	c := &client{
		baseURL:         strings.TrimRight(opts.BaseURL, "/"),
		http:            opts.HTTPClient,
		maxRetries:      opts.MaxRetries,
		initialInterval: opts.InitialInterval,
	}
	if c.http == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	}
	if c.initialInterval <= 0 {
		c.initialInterval = DefaultInitialInterval
	}
	return c
}

func (c *client) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval
	b.MaxInterval = DefaultMaxInterval
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxRetries)), ctx)
}

// do sends one JSON request, retrying transport errors and temporary
// statuses, and returns the response body of the first 2xx.
func (c *client) do(ctx context.Context, method, url string, body any) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
	}

	var respBody []byte
	attempt := 0
	op := func() error {
		attempt++

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			logger().Warn("request failed", "method", method, "url", url, "attempt", attempt, "err", err)
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode >= 400 {
			statusErr := &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
			if statusErr.Temporary() {
				logger().Warn("request failed", "method", method, "url", url, "attempt", attempt, "status", resp.StatusCode)
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}

		respBody = data
		return nil
	}

	if err := backoff.Retry(op, c.backOff(ctx)); err != nil {
		return nil, err
	}
	logger().Debug("request done", "method", method, "url", url, "attempts", attempt)
	return respBody, nil
}

// errorMessage pulls {"error": "..."} out of an error body, falling back to
// the raw text.
func errorMessage(data []byte) string {
	var errResp struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
		return errResp.Error
	}
	return strings.TrimSpace(string(data))
}
