// Package httpretry provides an HTTP client with automatic retry logic,
// exponential backoff, and jitter for resilient external API calls.
package httpretry

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ignite/outreach-pipeline/internal/pkg/logger"
)

// HTTPDoer is the interface for executing HTTP requests.
// Both *http.Client and *RetryClient satisfy this interface.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RetryClient wraps an HTTPDoer with retry logic using exponential backoff and jitter.
type RetryClient struct {
	client     HTTPDoer
	maxRetries int
	backoff    Backoff
}

// NewRetryClient creates a new RetryClient that wraps the given HTTPDoer.
// If client is nil, a default http.Client with 30s timeout is used.
// maxRetries is the number of retry attempts after the initial request; a
// negative value disables retries and zero selects the default of 3.
func NewRetryClient(client HTTPDoer, maxRetries int) *RetryClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if maxRetries == 0 {
		maxRetries = 3
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &RetryClient{
		client:     client,
		maxRetries: maxRetries,
		backoff:    Backoff{Base: time.Second, Max: 30 * time.Second, Jitter: true},
	}
}

// WithBackoff replaces the retry delay policy.
func (rc *RetryClient) WithBackoff(b Backoff) *RetryClient {
	rc.backoff = b
	return rc
}

// Do executes the HTTP request with retry logic.
// It retries on retryable status codes (429, 500, 502, 503, 504) and
// transient network errors. It does NOT retry on client errors
// (400, 401, 403, 404) or context cancellation.
// On the final attempt the response is returned as-is so the caller
// can inspect the status code and body.
func (rc *RetryClient) Do(req *http.Request) (*http.Response, error) {
	var lastErr error
	ctx := req.Context()

	for attempt := 0; attempt <= rc.maxRetries; attempt++ {
		if ctx.Err() != nil {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, ctx.Err()
		}

		if attempt > 0 {
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("httpretry: failed to reset request body: %w", err)
				}
				req.Body = body
			}

			delay := rc.backoff.Delay(attempt)
			logger.Debug("httpretry: retrying request",
				"attempt", attempt, "max_retries", rc.maxRetries,
				"method", req.Method, "host", req.URL.Host, "path", req.URL.Path, "wait", delay)

			if err := Sleep(ctx, delay); err != nil {
				if lastErr != nil {
					return nil, lastErr
				}
				return nil, err
			}
		}

		resp, err := rc.client.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, err
			}
			continue
		}

		if !IsRetryableStatus(resp.StatusCode) || attempt == rc.maxRetries {
			return resp, nil
		}

		// Drain for connection reuse before the next attempt.
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		lastErr = fmt.Errorf("httpretry: server returned retryable status %d", resp.StatusCode)
	}

	return nil, lastErr
}

// IsRetryableStatus returns true if the HTTP status code indicates a
// transient server error that should be retried.
func IsRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
