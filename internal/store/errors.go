package store

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedEnvironment means no embedded database is available:
	// persistence is disabled or the SQL driver is not registered.
	ErrUnsupportedEnvironment = errors.New("embedded database unavailable")
	// ErrNotReady is returned by operations issued before Open succeeded.
	ErrNotReady = errors.New("record store not ready")
	// ErrNotFound is returned by Get for an unknown id.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidRecord is returned by Create for input that can never be stored.
	ErrInvalidRecord = errors.New("invalid record")
)

// Kind classifies a store failure.
type Kind string

const (
	KindUnsupported Kind = "unsupported_environment"
	KindOpen        Kind = "open"
	KindWrite       Kind = "write"
	KindRead        Kind = "read"
	KindDelete      Kind = "delete"
)

// Error is the error type returned by every store operation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorKind reports the classification as a plain string.
func (e *Error) ErrorKind() string { return string(e.Kind) }

// KindOf returns the Kind of a store error anywhere in err's chain, or ""
// when err did not come from the store.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}
