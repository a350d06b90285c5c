package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Provider sends a single completion request and returns the generated text
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete performs a non-streaming completion for one user prompt
	Complete(ctx context.Context, prompt, model string) (string, error)
}

// ErrorKind tells the caller whether a failed call may be retried
type ErrorKind int

const (
	Transient ErrorKind = iota
	Permanent
)

func (k ErrorKind) String() string {
	if k == Permanent {
		return "permanent"
	}
	return "transient"
}

// ProviderError is returned by every Provider implementation
type ProviderError struct {
	Kind       ErrorKind
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s provider error (%s, status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s provider error (%s): %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a ProviderError eligible for retry
func IsTransient(err error) bool {
	var perr *ProviderError
	return errors.As(err, &perr) && perr.Kind == Transient
}

// ClassifyStatus maps an HTTP status to an error kind: rate limits, request
// timeouts and server errors are transient, everything else is permanent.
func ClassifyStatus(code int) ErrorKind {
	switch {
	case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout:
		return Transient
	case code >= 500:
		return Transient
	default:
		return Permanent
	}
}

// NewStatusError builds a ProviderError from a non-2xx response
func NewStatusError(provider string, code int, err error) *ProviderError {
	return &ProviderError{
		Kind:       ClassifyStatus(code),
		Provider:   provider,
		StatusCode: code,
		Err:        err,
	}
}

// NewTransientError wraps network failures and timeouts
func NewTransientError(provider string, err error) *ProviderError {
	return &ProviderError{Kind: Transient, Provider: provider, Err: err}
}

// NewPermanentError wraps failures that will not succeed on retry
func NewPermanentError(provider string, err error) *ProviderError {
	return &ProviderError{Kind: Permanent, Provider: provider, Err: err}
}
