package wifi

import (
	"errors"
	"fmt"
)

// ErrorKind is the category of a provisioning failure
type ErrorKind int

const (
	// KindBusy means the request conflicts with an operation in flight
	KindBusy ErrorKind = iota
	// KindDriver means the radio driver rejected a call outright
	KindDriver
	// KindRetriesExhausted means reconnect attempts ran out
	KindRetriesExhausted
	// KindPersistence means a durable write, erase or commit failed
	KindPersistence
	// KindTimeout means a busy state never completed
	KindTimeout
	// KindInvalid means the request itself was malformed
	KindInvalid
	// KindNotReady means Init has not run yet
	KindNotReady
)

// String returns a human-readable name for the error kind
func (k ErrorKind) String() string {
	switch k {
	case KindBusy:
		return "busy"
	case KindDriver:
		return "driver failure"
	case KindRetriesExhausted:
		return "retries exhausted"
	case KindPersistence:
		return "persistence failure"
	case KindTimeout:
		return "timeout"
	case KindInvalid:
		return "invalid request"
	case KindNotReady:
		return "not initialized"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is returned by Controller operations.
type Error struct {
	Kind ErrorKind // Category of error
	Op   string    // Operation or driver call that failed
	Err  error     // Underlying error (if any)
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("wifi %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("wifi %s: %s", e.Op, e.Kind)
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the sentinels below work with
// errors.Is regardless of Op and cause.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

// Retryable reports whether the same request may succeed later without any
// change on the caller's side.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindBusy, KindPersistence, KindTimeout, KindNotReady:
		return true
	default:
		return false
	}
}

var (
	ErrBusy             = &Error{Kind: KindBusy}
	ErrDriver           = &Error{Kind: KindDriver}
	ErrRetriesExhausted = &Error{Kind: KindRetriesExhausted}
	ErrPersistence      = &Error{Kind: KindPersistence}
	ErrTimeout          = &Error{Kind: KindTimeout}
	ErrNotReady         = &Error{Kind: KindNotReady}

	// ErrInvalidCredentials is wrapped by Credentials.Validate failures.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrClosed is returned once the controller has shut down.
	ErrClosed = errors.New("wifi controller closed")
)

// KindOf extracts the kind of a provisioning error.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable()
	}
	return false
}

type errStateBusy State

func (s errStateBusy) Error() string {
	return "state is " + State(s).String()
}
