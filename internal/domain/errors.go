package domain

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can decide between retrying,
// rejecting the request, or aborting start-up.
type Kind string

const (
	// KindDataUnavailable means no scene, auxiliary layer or pixel exists for
	// the requested key. It is never replaced by a default value.
	KindDataUnavailable Kind = "data_unavailable"
	// KindTransientBackend means the compute backend failed in a way that may
	// succeed on retry; it surfaces only once the retry budget is spent.
	KindTransientBackend Kind = "transient_backend"
	// KindInvalidInput means the request itself is malformed and is rejected
	// without retry.
	KindInvalidInput Kind = "invalid_input"
	// KindConfiguration means calibration constants or credentials are
	// missing or invalid. Fatal at start-up.
	KindConfiguration Kind = "configuration"
)

// Sentinel errors for errors.Is matching on kind alone.
var (
	ErrDataUnavailable  = &Error{Kind: KindDataUnavailable}
	ErrTransientBackend = &Error{Kind: KindTransientBackend}
	ErrInvalidInput     = &Error{Kind: KindInvalidInput}
	ErrConfiguration    = &Error{Kind: KindConfiguration}
)

// Error is the typed failure returned across component boundaries.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports a match when target is an *Error of the same kind with no
// further detail, which is how the package sentinels are declared.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Message == "" && t.Err == nil
}

// DataUnavailable builds a KindDataUnavailable error.
func DataUnavailable(op, format string, args ...any) error {
	return &Error{Kind: KindDataUnavailable, Op: op, Message: fmt.Sprintf(format, args...)}
}

// InvalidInput builds a KindInvalidInput error.
func InvalidInput(op, format string, args ...any) error {
	return &Error{Kind: KindInvalidInput, Op: op, Message: fmt.Sprintf(format, args...)}
}

// TransientBackend wraps err as a KindTransientBackend error.
func TransientBackend(op string, err error) error {
	return &Error{Kind: KindTransientBackend, Op: op, Message: "backend unavailable", Err: err}
}

// Configuration builds a KindConfiguration error.
func Configuration(format string, args ...any) error {
	return &Error{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain. Deadline and
// cancellation errors are reported as transient; anything else untyped is
// reported as transient as well, since it originated below the typed layer.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransientBackend
}

// IsTimeout reports whether err stems from a request deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// ErrorPayload is the structured error body returned to callers.
type ErrorPayload struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// NewErrorPayload converts err into its wire form.
func NewErrorPayload(err error) ErrorPayload {
	return ErrorPayload{Kind: KindOf(err), Message: err.Error()}
}
