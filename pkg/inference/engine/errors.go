package engine

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kinds of completion failures. Use errors.Is on any error returned by an engine or a
// stream to tell them apart.
var (
	ErrNetwork           = errors.New("network error")
	ErrRateLimited       = errors.New("rate limited")
	ErrAuth              = errors.New("authentication failed")
	ErrAPI               = errors.New("api error")
	ErrMalformedResponse = errors.New("malformed response")
)

// CompletionError carries the failure kind together with the provider error.
type CompletionError struct {
	Kind       error
	StatusCode int
	Err        error
}

func NewCompletionError(kind error, statusCode int, err error) *CompletionError {
	return &CompletionError{Kind: kind, StatusCode: statusCode, Err: err}
}

func (e *CompletionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *CompletionError) Is(target error) bool {
	return target == e.Kind
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}

// Retryable reports whether retrying the same request later can succeed.
func Retryable(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrRateLimited)
}
