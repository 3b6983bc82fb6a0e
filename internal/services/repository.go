package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/trellishq/trellis/internal/lib"
	"github.com/trellishq/trellis/internal/models"
)

// RepositoryClient submits canonical resources to the FHIR repository. Each
// resource is upserted with PUT against its deterministic identifier, so a
// resumed or repeated run overwrites rather than duplicates.
type RepositoryClient struct {
	baseURL     string
	httpClient  *HTTPClient
	tokenSource *TokenSource
	retryConfig models.RetryConfig
	logger      *lib.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewRepositoryClient creates a submission client for the given repository
func NewRepositoryClient(baseURL string, httpClient *HTTPClient, tokenSource *TokenSource, retryConfig models.RetryConfig, logger *lib.Logger) *RepositoryClient {
	return &RepositoryClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  httpClient,
		tokenSource: tokenSource,
		retryConfig: retryConfig,
		logger:      logger,
		sleep:       sleepCtx,
	}
}

// Submit pushes one resource and drives it to a terminal status. The returned
// error is non-nil only for failures that must stop the whole run, namely
// rejected credentials; everything else is reported through the outcome.
func (rc *RepositoryClient) Submit(ctx context.Context, resource *models.CanonicalResource) (models.SubmissionOutcome, error) {
	outcome := models.SubmissionOutcome{
		ResourceID: resource.ID,
		SourceRow:  resource.SourceRow,
	}

	body, err := json.Marshal(resource)
	if err != nil {
		outcome.Status = models.SubmissionRejected
		outcome.LastError = fmt.Sprintf("failed to encode resource: %v", err)
		return outcome, nil
	}

	url := fmt.Sprintf("%s/%s/%s", rc.baseURL, resource.ResourceType, resource.ID)
	retriedAuth := false

	for attempt := 0; attempt < rc.retryConfig.MaxAttempts; attempt++ {
		outcome.Attempts = attempt + 1

		if ctx.Err() != nil {
			outcome.Status = models.SubmissionAbandoned
			outcome.LastError = ctx.Err().Error()
			return outcome, nil
		}

		status, errBody, err := rc.put(ctx, url, body)
		if err != nil {
			if ctx.Err() != nil {
				outcome.Status = models.SubmissionAbandoned
				outcome.LastError = ctx.Err().Error()
				return outcome, nil
			}
			if lib.IsAuthenticationError(err) {
				outcome.Status = models.SubmissionAbandoned
				outcome.LastError = err.Error()
				return outcome, err
			}
			if !lib.IsNetworkError(err) {
				outcome.Status = models.SubmissionRejected
				outcome.LastError = err.Error()
				return outcome, nil
			}
			outcome.LastError = err.Error()
			if waitErr := rc.backoff(ctx, attempt); waitErr != nil {
				outcome.Status = models.SubmissionAbandoned
				return outcome, nil
			}
			continue
		}

		outcome.HTTPStatus = status

		switch {
		case status >= 200 && status < 300:
			outcome.Status = models.SubmissionAccepted
			outcome.LastError = ""
			return outcome, nil

		case status == http.StatusUnauthorized:
			// The token may simply have expired between refresh and use.
			// Invalidate once and retry with a fresh one; a second 401 means
			// the credentials themselves are bad.
			if retriedAuth {
				outcome.Status = models.SubmissionAbandoned
				outcome.LastError = errBody
				return outcome, &lib.AuthenticationError{
					StatusCode: status,
					Cause:      fmt.Errorf("repository rejected a freshly issued token"),
				}
			}
			retriedAuth = true
			rc.tokenSource.Invalidate()
			outcome.LastError = errBody
			continue

		case lib.IsTransientHTTPStatus(status):
			outcome.Status = models.SubmissionPendingRetry
			outcome.LastError = errBody
			lib.LogRetry(rc.logger, url, attempt, rc.retryConfig.MaxAttempts, fmt.Errorf("HTTP %d", status))
			if waitErr := rc.backoff(ctx, attempt); waitErr != nil {
				outcome.Status = models.SubmissionAbandoned
				return outcome, nil
			}
			continue

		default:
			// Non-transient rejection. Retrying an invalid resource cannot
			// succeed.
			outcome.Status = models.SubmissionRejected
			outcome.LastError = errBody
			return outcome, nil
		}
	}

	outcome.Status = models.SubmissionAbandoned
	return outcome, nil
}

// put performs one authenticated upsert attempt
func (rc *RepositoryClient) put(ctx context.Context, url string, body []byte) (int, string, error) {
	token, err := rc.tokenSource.Token(ctx)
	if err != nil {
		return 0, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, strings.NewReader(string(body)))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/fhir+json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := rc.httpClient.DoOnce(req)
	if err != nil {
		return 0, "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, "", nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))), nil
}

// backoff waits the jittered delay for the given attempt, aborting when the
// context is cancelled
func (rc *RepositoryClient) backoff(ctx context.Context, attempt int) error {
	if attempt >= rc.retryConfig.MaxAttempts-1 {
		return nil
	}
	d := lib.CalculateBackoff(attempt, rc.retryConfig.InitialBackoffMs, rc.retryConfig.MaxBackoffMs)
	return rc.sleep(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
