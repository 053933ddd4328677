package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rancher/svn-action/internal/params"
	"github.com/rancher/svn-action/internal/svn"
)

// ErrorKind classifies operation failures.
type ErrorKind string

const (
	// KindConfiguration means the fields failed validation. Nothing ran.
	KindConfiguration ErrorKind = "configuration"
	// KindExecution means the tool ran and reported failure.
	KindExecution ErrorKind = "execution"
	// KindUnexpected covers everything else.
	KindUnexpected ErrorKind = "unexpected"
)

// Error is the terminal error of an operation.
type Error struct {
	Kind      ErrorKind
	Operation Operation
	Message   string
	Output    string
	Err       error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Kind == KindUnexpected {
		return fmt.Sprintf("unexpected error during %s: %v", e.Operation, e.Err)
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		return e.Message + "\n" + out
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindOf returns the kind of an orchestrator error anywhere in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Kind, true
	}
	return "", false
}

func classify(op Operation, err error) *Error {
	var oe *Error
	if errors.As(err, &oe) {
		return oe
	}

	var verr *params.ValidationError
	if errors.As(err, &verr) {
		return &Error{Kind: KindConfiguration, Operation: op, Message: verr.Error(), Err: err}
	}

	var cmdErr *svn.CommandError
	if errors.As(err, &cmdErr) {
		return &Error{Kind: KindExecution, Operation: op, Message: cmdErr.Message, Output: cmdErr.Output, Err: err}
	}

	return &Error{Kind: KindUnexpected, Operation: op, Err: err}
}
