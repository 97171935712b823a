package ai

import "fmt"

// ErrorKind classifies a failed call to the model provider.
type ErrorKind string

const (
	KindAuth        ErrorKind = "auth"
	KindRateLimited ErrorKind = "rate_limited"
	KindTimeout     ErrorKind = "timeout"
	KindEmptyReply  ErrorKind = "empty_reply"
	KindUnavailable ErrorKind = "unavailable"
)

// ModelError is returned by every Client implementation when the provider call fails.
type ModelError struct {
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *ModelError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("model: %s", e.Kind)
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("model: %s (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("model: %s: %v", e.Kind, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// Is matches on Kind so callers can write errors.Is(err, ai.ErrRateLimited).
func (e *ModelError) Is(target error) bool {
	t, ok := target.(*ModelError)
	return ok && t.Kind == e.Kind
}

// Transient reports whether a retry of the same request could succeed.
func (e *ModelError) Transient() bool {
	return e.Kind == KindRateLimited || e.Kind == KindTimeout
}

// Sentinels for errors.Is.
var (
	ErrAuth        = &ModelError{Kind: KindAuth}
	ErrRateLimited = &ModelError{Kind: KindRateLimited}
	ErrTimeout     = &ModelError{Kind: KindTimeout}
	ErrEmptyReply  = &ModelError{Kind: KindEmptyReply}
	ErrUnavailable = &ModelError{Kind: KindUnavailable}
)

// NewModelError builds a ModelError of the given kind.
func NewModelError(kind ErrorKind, statusCode int, err error) *ModelError {
	return &ModelError{Kind: kind, StatusCode: statusCode, Err: err}
}
