package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/trellishq/trellis/internal/lib"
	"github.com/trellishq/trellis/internal/models"
)

// HTTPClient wraps the standard http.Client with retry logic and configuration
type HTTPClient struct {
	client      *http.Client
	retryConfig lib.RetryConfig
	logger      *lib.Logger
}

// NewHTTPClient creates an HTTP client with timeout and retry configuration
func NewHTTPClient(timeout time.Duration, retryConfig models.RetryConfig, logger *lib.Logger) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		retryConfig: lib.NewRetryConfigFromModel(retryConfig),
		logger:      logger,
	}
}

// DefaultHTTPClient creates an HTTP client with sensible defaults
func DefaultHTTPClient() *HTTPClient {
	return NewHTTPClient(
		30*time.Second,
		models.RetryConfig{
			MaxAttempts:      5,
			InitialBackoffMs: 1000,
			MaxBackoffMs:     30000,
		},
		lib.DefaultLogger,
	)
}

// Get performs an HTTP GET request with retry logic
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	return c.Do(req)
}

// PutJSON performs an HTTP PUT request with JSON content type and retry logic
func (c *HTTPClient) PutJSON(ctx context.Context, url string, jsonBody []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	return c.Do(req)
}

// DoOnce executes a single HTTP attempt with no retry. Callers that run
// their own retry policy (the submission client counts attempts per
// resource) use this instead of Do.
func (c *HTTPClient) DoOnce(req *http.Request) (*http.Response, error) {
	startTime := time.Now()
	resp, err := c.client.Do(req)
	duration := time.Since(startTime)

	lib.LogServiceCall(c.logger, req.URL.Host, req.URL.Path, req.Method)
	if err == nil {
		lib.LogServiceResponse(c.logger, req.URL.Host, resp.StatusCode, duration)
	}

	return resp, err
}

// Do executes an HTTP request with retry logic for transient errors
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt < c.retryConfig.MaxAttempts; attempt++ {
		// Clone request body if needed (body can only be read once)
		var bodyBytes []byte
		if req.Body != nil {
			bodyBytes, _ = io.ReadAll(req.Body)
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}

		resp, lastErr = c.DoOnce(req)

		if lastErr == nil {
			if resp.StatusCode >= 400 {
				errorType := lib.ClassifyHTTPError(resp.StatusCode)
				statusErr := fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)

				// Non-transient: hand the response back so the caller can
				// read error details.
				if errorType == lib.ErrorTypeNonTransient {
					return resp, nil
				}

				if lib.ShouldRetry(errorType, attempt, c.retryConfig.MaxAttempts) {
					lib.LogRetry(c.logger, req.URL.String(), attempt, c.retryConfig.MaxAttempts, statusErr)

					lastErr = statusErr
					_ = resp.Body.Close()

					if attempt < c.retryConfig.MaxAttempts-1 {
						if err := c.wait(req.Context(), attempt); err != nil {
							return nil, err
						}
					}

					if bodyBytes != nil {
						req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
					}

					continue
				}
			}

			return resp, nil
		}

		if req.Context().Err() != nil {
			return nil, req.Context().Err()
		}

		if lib.IsNetworkError(lastErr) {
			if lib.ShouldRetry(lib.ErrorTypeTransient, attempt, c.retryConfig.MaxAttempts) {
				lib.LogRetry(c.logger, req.URL.String(), attempt, c.retryConfig.MaxAttempts, lastErr)

				if attempt < c.retryConfig.MaxAttempts-1 {
					if err := c.wait(req.Context(), attempt); err != nil {
						return nil, err
					}
				}

				if bodyBytes != nil {
					req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
				}

				continue
			}
		}

		// Non-retryable error
		return nil, lastErr
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", c.retryConfig.MaxAttempts, lastErr)
}

// wait sleeps for the backoff of the given attempt, aborting early when the
// request context is cancelled
func (c *HTTPClient) wait(ctx context.Context, attempt int) error {
	backoff := lib.CalculateBackoff(attempt, c.retryConfig.InitialBackoffMs, c.retryConfig.MaxBackoffMs)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(backoff):
		return nil
	}
}
