package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/trellishq/trellis/internal/lib"
	"github.com/trellishq/trellis/internal/models"
)

// TokenSource obtains and caches OAuth2 client-credentials access tokens for
// the submission endpoint. Safe for concurrent use by many submit workers: a
// refresh is performed by exactly one caller while the rest wait for its
// result.
type TokenSource struct {
	config     models.AuthConfig
	httpClient *HTTPClient
	logger     *lib.Logger
	now        func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// NewTokenSource creates a token source for the given identity provider
func NewTokenSource(config models.AuthConfig, httpClient *HTTPClient, logger *lib.Logger) *TokenSource {
	return &TokenSource{
		config:     config,
		httpClient: httpClient,
		logger:     logger,
		now:        time.Now,
	}
}

// Token returns a valid access token, fetching or refreshing as needed. The
// cached token is refreshed proactively once it is within the configured
// expiry skew of its deadline, so in-flight requests never carry a token
// that expires mid-call.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token != "" && ts.now().Before(ts.expiresAt) {
		return ts.token, nil
	}

	token, expiresIn, err := ts.fetch(ctx)
	if err != nil {
		return "", err
	}

	skew := time.Duration(ts.config.ExpirySkewSecs) * time.Second
	ts.token = token
	ts.expiresAt = ts.now().Add(time.Duration(expiresIn)*time.Second - skew)

	ts.logger.Info("Access token refreshed", "expires_in_secs", expiresIn)
	return ts.token, nil
}

// Invalidate discards the cached token. Called when the submission endpoint
// answers 401 so the next request fetches a fresh token.
func (ts *TokenSource) Invalidate() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.token = ""
	ts.expiresAt = time.Time{}
}

// fetch performs the client_credentials grant. A 4xx from the identity
// provider is a credentials problem and fails immediately; transport errors
// and 5xx are retried by the underlying client when configured to do so.
func (ts *TokenSource) fetch(ctx context.Context) (string, int64, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {ts.config.ClientID},
		"client_secret": {ts.config.ClientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, &lib.AuthenticationError{Cause: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp *http.Response
	if ts.config.RetryOnTransient {
		resp, err = ts.httpClient.Do(req)
	} else {
		resp, err = ts.httpClient.DoOnce(req)
	}
	if err != nil {
		return "", 0, &lib.AuthenticationError{Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", 0, &lib.AuthenticationError{
			StatusCode: resp.StatusCode,
			Cause:      fmt.Errorf("token endpoint returned %s: %s", resp.Status, strings.TrimSpace(string(body))),
		}
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", 0, &lib.AuthenticationError{Cause: fmt.Errorf("failed to decode token response: %w", err)}
	}

	if tr.AccessToken == "" {
		return "", 0, &lib.AuthenticationError{Cause: fmt.Errorf("token response carried no access_token")}
	}
	if tr.ExpiresIn <= 0 {
		// Providers that omit expires_in get a conservative default.
		tr.ExpiresIn = 300
	}

	return tr.AccessToken, tr.ExpiresIn, nil
}
