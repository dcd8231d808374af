package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"
)

// expiryMargin is subtracted from a token's lifetime so a token about
// to lapse is not handed to a fresh handshake.
const expiryMargin = 30 * time.Second

// RefreshSource obtains short-lived access tokens from an HTTP endpoint
// using a long-lived refresh token, caching each access token until
// close to its expiry.
type RefreshSource struct {
	url          string
	refreshToken string
	httpClient   *http.Client
	logger       *slog.Logger
	maxRetries   int
	retryBackoff time.Duration

	mu     sync.Mutex
	cached string
	expiry time.Time
}

// RefreshOption configures a RefreshSource.
type RefreshOption func(*RefreshSource)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) RefreshOption {
	return func(s *RefreshSource) {
		if d > 0 {
			s.httpClient.Timeout = d
		}
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) RefreshOption {
	return func(s *RefreshSource) {
		s.maxRetries = max
		s.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RefreshOption {
	return func(s *RefreshSource) {
		s.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) RefreshOption {
	return func(s *RefreshSource) {
		s.httpClient = hc
	}
}

// NewRefreshSource creates a refresh-based token source.
func NewRefreshSource(url, refreshToken string, opts ...RefreshOption) *RefreshSource {
	s := &RefreshSource{
		url:          url,
		refreshToken: refreshToken,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:       slog.Default(),
		maxRetries:   3,
		retryBackoff: time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// tokenResponse is the refresh endpoint's reply.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"` // seconds
}

// refreshError represents a non-2xx reply from the refresh endpoint.
type refreshError struct {
	StatusCode int
	Body       []byte
}

func (e *refreshError) Error() string {
	return fmt.Sprintf("token refresh error %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// isRetryable returns true if the error should trigger a retry.
func (e *refreshError) isRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// Token returns a cached access token or fetches a fresh one.
func (s *RefreshSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != "" && time.Now().Before(s.expiry) {
		return s.cached, nil
	}

	resp, err := s.fetchWithRetry(ctx)
	if err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", ErrNoToken
	}

	s.cached = resp.AccessToken
	s.expiry = time.Now().Add(time.Duration(resp.ExpiresIn)*time.Second - expiryMargin)

	s.logger.Debug("access token refreshed", "expires_in", resp.ExpiresIn)
	return s.cached, nil
}

// fetchWithRetry requests a token with exponential backoff retry.
func (s *RefreshSource) fetchWithRetry(ctx context.Context) (*tokenResponse, error) {
	var lastErr error
	backoff := s.retryBackoff

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			// Add jitter: backoff * (0.5 to 1.5)
			jitter := backoff/2 + time.Duration(rand.Int64N(int64(backoff)))
			s.logger.Debug("retrying token refresh",
				"attempt", attempt,
				"backoff", jitter,
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(jitter):
			}

			backoff *= 2
		}

		resp, err := s.fetch(ctx)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		rErr, ok := err.(*refreshError)
		if !ok || !rErr.isRetryable() {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// fetch performs a single token request.
func (s *RefreshSource) fetch(ctx context.Context) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.refreshToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &refreshError{StatusCode: resp.StatusCode, Body: body}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &tr, nil
}
