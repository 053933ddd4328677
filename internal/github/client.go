package gh

import (
	"context"
	"errors"
)

// Client exposes the GitHub operations the step needs to persist history
// between workflow runs.
type Client interface {
	// GetVariable returns the value of a repository Actions variable. found
	// is false when the variable does not exist.
	GetVariable(ctx context.Context, owner, repo, name string) (value string, found bool, err error)
	// PutVariable creates or updates a repository Actions variable.
	PutVariable(ctx context.Context, owner, repo, name, value string) error
}

// Factory builds concrete GitHub clients (e.g., REST-backed).
type Factory interface {
	New(ctx context.Context, token string) (Client, error)
}

// ErrInvalidRepository indicates a repository reference not in owner/name form.
var ErrInvalidRepository = errors.New("github: repository must be in owner/name form")

// retryableError marks an error that may succeed if the operation is retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	if e == nil || e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// IsRetryable reports whether the supplied error resulted from a retryable GitHub
// API failure (for example, a transient network problem or rate-limited request).
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var target *retryableError
	return errors.As(err, &target)
}
