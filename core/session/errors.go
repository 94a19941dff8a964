package session

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a key is absent, expired or unreadable.
	ErrNotFound = errors.New("session not found")
	// ErrUnsupported is returned by GetAll when a backend cannot enumerate its keys.
	ErrUnsupported = errors.New("session backend does not support enumeration")
	// ErrDeadlineExceeded is returned when the caller's context ends before a write completes.
	ErrDeadlineExceeded = errors.New("session operation deadline exceeded")
	// ErrNoBackends is returned when a registry or chain is built without backends.
	ErrNoBackends = errors.New("at least one session backend is required")
	// ErrEncode is returned when a record cannot be serialized.
	ErrEncode = errors.New("failed to encode session record")
	// ErrDecode is returned when stored bytes cannot be deserialized.
	ErrDecode = errors.New("failed to decode session record")
	// ErrIDGeneration is returned when the random source fails.
	ErrIDGeneration = errors.New("failed to generate session id")
	// ErrNilSession is returned when an operation receives a nil session.
	ErrNilSession = errors.New("session is nil")
	// ErrNilBackend is returned when a decorator is built around a nil backend.
	ErrNilBackend = errors.New("session backend is nil")
	// ErrNilSubmitter is returned when a deferred backend has no job submitter.
	ErrNilSubmitter = errors.New("deferred job submitter is nil")
	// ErrSave is returned when a save stops on a non-retryable backend failure.
	ErrSave = errors.New("failed to save session")
)

type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return "retryable: " + e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return "fatal: " + e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

// Retryable marks err as a transient backend failure. Returns nil for nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// Fatal marks err as a permanent backend failure. Returns nil for nil.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// IsRetryable reports whether err or any error it wraps was marked Retryable.
func IsRetryable(err error) bool {
	var target *retryableError
	return errors.As(err, &target)
}

// IsFatal reports whether err or any error it wraps was marked Fatal.
func IsFatal(err error) bool {
	var target *fatalError
	return errors.As(err, &target)
}

type outcome int

const (
	outcomeOK outcome = iota
	outcomeRetry
	outcomeFatal
	outcomeDeadline
)

// classify maps a backend write result onto the outcome taxonomy.
// The caller's context ending always wins. A per-operation timeout while the
// caller is still waiting is transient. Unclassified errors are fatal.
func classify(ctx context.Context, err error) outcome {
	switch {
	case err == nil:
		return outcomeOK
	case ctx.Err() != nil, errors.Is(err, ErrDeadlineExceeded):
		return outcomeDeadline
	case IsFatal(err):
		return outcomeFatal
	case IsRetryable(err), errors.Is(err, context.DeadlineExceeded):
		return outcomeRetry
	default:
		return outcomeFatal
	}
}

func (o outcome) String() string {
	switch o {
	case outcomeOK:
		return "ok"
	case outcomeRetry:
		return "retryable"
	case outcomeDeadline:
		return "deadline"
	default:
		return "fatal"
	}
}
