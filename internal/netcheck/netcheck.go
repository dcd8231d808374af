// Package netcheck reports whether the host currently has network
// connectivity. The connection manager consults it before every
// connect and reconnect attempt.
package netcheck

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Status is the result of a reachability check.
type Status struct {
	Connected bool
}

// Checker reports current network reachability. A returned error means
// the check itself could not run; callers treat that the same as
// unreachable.
type Checker interface {
	Check(ctx context.Context) (Status, error)
}

// AlwaysOnline is a Checker that reports connectivity unconditionally,
// for deployments without a probe endpoint.
type AlwaysOnline struct{}

// Check reports connected.
func (AlwaysOnline) Check(ctx context.Context) (Status, error) {
	return Status{Connected: true}, nil
}

// HTTPChecker probes an HTTP endpoint; any response at all counts as
// connectivity (generate-204 style endpoints are the usual target).
type HTTPChecker struct {
	probeURL   string
	httpClient *http.Client
}

// NewHTTPChecker creates a checker probing the given URL with the given
// per-probe timeout.
func NewHTTPChecker(probeURL string, timeout time.Duration) *HTTPChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPChecker{
		probeURL: probeURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Check performs one probe. Transport-level failures report offline
// rather than a check error; only a malformed probe request errors.
func (c *HTTPChecker) Check(ctx context.Context) (Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.probeURL, nil)
	if err != nil {
		return Status{}, fmt.Errorf("create probe request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Status{Connected: false}, nil
	}
	resp.Body.Close()

	return Status{Connected: resp.StatusCode < 500}, nil
}

// FromProbeURL returns an HTTPChecker when probeURL is set, otherwise
// AlwaysOnline.
func FromProbeURL(probeURL string, timeout time.Duration) Checker {
	if probeURL == "" {
		return AlwaysOnline{}
	}
	return NewHTTPChecker(probeURL, timeout)
}
