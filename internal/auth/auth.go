// Package auth supplies opaque bearer tokens for the connection
// handshake. Tokens may come from configuration, a file on disk, or a
// token-issuing HTTP endpoint.
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dmelnik/relaylink/internal/config"
)

// ErrNoToken indicates a source produced an empty credential.
var ErrNoToken = errors.New("no token available")

// TokenSource yields the auth token used to build the connect URL.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Static is a fixed token.
type Static string

// Token returns the literal token value.
func (s Static) Token(ctx context.Context) (string, error) {
	if s == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}

// FileSource reads the token from a file on every call, so a rotated
// file takes effect on the next reconnect.
type FileSource struct {
	path string
}

// NewFileSource creates a source backed by the given file path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Token reads and trims the file contents.
func (f *FileSource) Token(ctx context.Context) (string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("%w: token file %s is empty", ErrNoToken, f.path)
	}
	return token, nil
}

// FromConfig builds a TokenSource from configuration, preferring a
// literal token, then a token file, then a refresh endpoint.
func FromConfig(cfg config.AuthConfig) (TokenSource, error) {
	switch {
	case cfg.Token != "":
		return Static(cfg.Token), nil
	case cfg.TokenFile != "":
		return NewFileSource(cfg.TokenFile), nil
	case cfg.RefreshURL != "":
		return NewRefreshSource(cfg.RefreshURL, cfg.RefreshToken,
			WithTimeout(cfg.RefreshTimeout)), nil
	default:
		return nil, errors.New("no credential source configured")
	}
}
