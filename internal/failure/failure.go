// Package failure tags errors with the kind of failure that produced them so
// callers can pick a retry policy without string matching.
package failure

import (
	"errors"
	"fmt"
)

// Kind categorizes a failure.
type Kind string

const (
	// Network means the remote was unreachable or the call timed out.
	// Deferred or queued, never fatal.
	Network Kind = "NETWORK"

	// Auth means the bearer token was missing or rejected. Not retried.
	Auth Kind = "AUTH"

	// Server means the remote answered with a non-2xx status.
	Server Kind = "SERVER"

	// Parse means persisted or received JSON could not be decoded.
	Parse Kind = "PARSE"
)

// Error is a failure with a kind and optional HTTP details.
type Error struct {
	Kind    Kind
	Op      string // operation, e.g. "fetch reminders"
	Status  int    // HTTP status for Server and Auth failures, 0 otherwise
	Message string // message field from the remote body, if any
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d): %s", e.Op, e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a failure of the given kind wrapping err.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
