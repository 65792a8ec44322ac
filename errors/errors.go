package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
)

// Error is a coded error carrying an optional cause and diagnostic context.
type Error struct {
	// Code classifies the failure.
	Code ErrorCode

	// Message is a short human-readable description.
	Message string

	// Context holds key/value pairs useful for debugging (queue name, item index).
	// It never contains payload bodies.
	Context map[string]any

	// Err is the underlying cause, if any.
	Err error
}

// New creates an Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an Error with the given code and message wrapping err.
func Wrap(err error, code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// WrapWithContext is Wrap with an attached context map. The map is copied.
func WrapWithContext(err error, code ErrorCode, message string, ctx map[string]any) *Error {
	e := Wrap(err, code, message)
	if len(ctx) > 0 {
		e.Context = maps.Clone(ctx)
	}
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same code, so coded sentinels work with
// errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

// Retryable reports whether the failure is transient.
func (e *Error) Retryable() bool {
	return e.Code.Retryable()
}

// CodeOf returns the code of the first *Error in err's chain, or CodeUnknown.
func CodeOf(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsRetryable reports whether err carries a retryable code. Every coded
// error in the chain must be retryable: a PUBLISH_FAILED wrapping FORBIDDEN
// is permanent.
func IsRetryable(err error) bool {
	retryable := false
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) {
			break
		}
		if !e.Retryable() {
			return false
		}
		retryable = true
		err = e.Err
	}
	return retryable
}

// HasCode reports whether any *Error in err's chain has the given code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Err
	}
	return false
}
