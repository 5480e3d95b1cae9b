package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Provider abstracts an upstream generative-text vendor used by the relay.
// Implementations must be concurrency-safe; one instance serves all requests.
type Provider interface {
	// Name returns a short provider label for logs and metrics (e.g. "gemini").
	Name() string
	// CredentialKey returns the configuration key holding the credential, or "" if none is needed.
	CredentialKey() string
	// Enabled reports whether the provider has what it needs to make a call.
	Enabled() bool
	// Generate returns the complete generated text for the prompt.
	Generate(ctx context.Context, prompt string, params Params) (string, error)
	// GenerateStream calls fn once per non-empty text fragment, in order, as the
	// upstream produces them. An error returned by fn stops the read loop and is
	// returned unchanged.
	GenerateStream(ctx context.Context, prompt string, params Params, fn StreamFn) error
}

// StreamFn receives one generated text fragment
type StreamFn func(fragment string) error

// Params are the generation parameters forwarded to the upstream
type Params struct {
	Temperature     float64
	MaxOutputTokens int
}

// DefaultParams mirrors what the browser relay always sent
func DefaultParams() Params {
	return Params{
		Temperature:     0.7,
		MaxOutputTokens: 2048,
	}
}

var (
	// ErrNoText is returned when the upstream succeeded but its envelope carried no text.
	ErrNoText = errors.New("no text in upstream response")
	// ErrNotConfigured is returned by providers called without a credential.
	ErrNotConfigured = errors.New("provider not configured")
)

// UpstreamError is a non-success status or transport failure from the provider.
// StatusCode is 0 when no HTTP status was received.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s api error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s request failed: %s", e.Provider, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the status to answer the client with: the upstream status
// when it is an error status, otherwise 500.
func (e *UpstreamError) HTTPStatus() int {
	if e.StatusCode >= 400 && e.StatusCode <= 599 {
		return e.StatusCode
	}
	return http.StatusInternalServerError
}

// Transport wraps a failure to reach the upstream at all
func Transport(provider string, err error) *UpstreamError {
	return &UpstreamError{Provider: provider, Message: err.Error(), Err: err}
}

// Status builds an UpstreamError from a non-2xx response
func Status(provider string, status int, message string) *UpstreamError {
	if message == "" {
		message = http.StatusText(status)
	}
	return &UpstreamError{Provider: provider, StatusCode: status, Message: message}
}
