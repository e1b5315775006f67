package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a provider failure. Kinds are shared between the
// search and completion boundaries; ErrorKindContentFiltered only ever comes
// from completion providers.
type ErrorKind string

const (
	ErrorKindTimeout         ErrorKind = "timeout"
	ErrorKindRateLimited     ErrorKind = "rate_limited"
	ErrorKindInvalidKey      ErrorKind = "invalid_key"
	ErrorKindContentFiltered ErrorKind = "content_filtered"
	ErrorKindUnavailable     ErrorKind = "unavailable"
)

// Transient reports whether a failure of this kind may succeed on retry.
// Invalid credentials and filtered content never do.
func (k ErrorKind) Transient() bool {
	switch k {
	case ErrorKindTimeout, ErrorKindRateLimited, ErrorKindUnavailable:
		return true
	}
	return false
}

// ProviderSource names the external boundary an error crossed.
type ProviderSource string

const (
	ProviderSearch ProviderSource = "search"
	ProviderLLM    ProviderSource = "llm"
)

// ProviderError wraps a failure from an external provider with its boundary
// and kind so the orchestrator can decide between retry, degrade and fail
// without inspecting provider-specific errors.
type ProviderError struct {
	Source ProviderSource
	Kind   ErrorKind
	Err    error
}

// NewSearchError wraps a search provider failure.
func NewSearchError(kind ErrorKind, err error) *ProviderError {
	return &ProviderError{Source: ProviderSearch, Kind: kind, Err: err}
}

// NewLLMError wraps a completion provider failure.
func NewLLMError(kind ErrorKind, err error) *ProviderError {
	return &ProviderError{Source: ProviderLLM, Kind: kind, Err: err}
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s provider %s: %v", e.Source, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s provider %s", e.Source, e.Kind)
}

// Unwrap exposes the underlying provider error.
func (e *ProviderError) Unwrap() error { return e.Err }

// Transient reports whether the wrapped failure kind is retryable.
func (e *ProviderError) Transient() bool { return e.Kind.Transient() }

// IsTransient reports whether err is (or wraps) a transient provider error.
// Everything else, including plain errors, is treated as permanent.
func IsTransient(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Transient()
	}
	return false
}

var (
	// ErrSessionNotFound reports an unknown session ID.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionInactive reports a request against a deactivated session.
	ErrSessionInactive = errors.New("session is inactive")
	// ErrContextTooLarge reports a question that cannot fit the prompt token
	// budget even with all history dropped.
	ErrContextTooLarge = errors.New("question exceeds prompt token budget")
	// ErrConcurrentModification reports a rejected request because another
	// run holds the session.
	ErrConcurrentModification = errors.New("session is processing another request")
	// ErrMessageNotFound reports an unknown message ID.
	ErrMessageNotFound = errors.New("message not found")
	// ErrSharedMessageNotFound reports an unknown or revoked share.
	ErrSharedMessageNotFound = errors.New("shared message not found")
)
