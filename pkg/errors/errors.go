package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a call error into the category the UI keys off when
// deciding between "retry" and "go back".
type Kind string

const (
	KindMedia            Kind = "MEDIA"
	KindSignaling        Kind = "SIGNALING"
	KindPeerConnection   Kind = "PEER_CONNECTION"
	KindTimeout          Kind = "TIMEOUT"
	KindRetriesExhausted Kind = "RETRIES_EXHAUSTED"
	KindInternal         Kind = "INTERNAL"
)

// CallError is a classified error. Transient errors are absorbed before
// they reach this type; a CallError surfacing from the orchestrator is
// structural and terminal for the session.
type CallError struct {
	Kind      Kind
	Message   string
	Retryable bool
	Cause     error
}

func (e *CallError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CallError) Unwrap() error { return e.Cause }

// New creates a classified error with no cause.
func New(kind Kind, message string) *CallError {
	return &CallError{Kind: kind, Message: message}
}

// Wrap classifies an underlying error.
func Wrap(err error, kind Kind, message string) *CallError {
	return &CallError{Kind: kind, Message: message, Cause: err}
}

func NewMediaError(message string, cause error) *CallError {
	return &CallError{Kind: KindMedia, Message: message, Cause: cause}
}

func NewSignalingError(message string, cause error) *CallError {
	return &CallError{Kind: KindSignaling, Message: message, Cause: cause}
}

func NewPeerConnectionError(message string, cause error) *CallError {
	return &CallError{Kind: KindPeerConnection, Message: message, Cause: cause, Retryable: true}
}

func NewTimeoutError(message string) *CallError {
	return &CallError{Kind: KindTimeout, Message: message, Retryable: true}
}

// NewExhaustedRetriesError marks the terminal state after the reconnect
// budget is spent, distinguishing it from a first-time failure.
func NewExhaustedRetriesError(attempts int, cause error) *CallError {
	return &CallError{
		Kind:    KindRetriesExhausted,
		Message: fmt.Sprintf("gave up after %d reconnection attempts", attempts),
		Cause:   cause,
	}
}

// KindOf extracts the classification from an error chain, defaulting to
// KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindInternal
}

// IsRetryable reports whether the error chain carries a retryable
// classification.
func IsRetryable(err error) bool {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return false
}
