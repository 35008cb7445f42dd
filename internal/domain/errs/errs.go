// Package errs defines the failure kinds shared by the domain packages.
//
// Domain sentinels wrap one kind so callers can branch on the kind with
// errors.Is while still matching the specific sentinel.
package errs

import "errors"

var (
	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
)

// Error is a domain failure carrying a caller-safe message and its kind.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// New returns a sentinel of the given kind.
func New(kind error, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Kind reports which of the shared kinds err belongs to, or nil.
func Kind(err error) error {
	for _, kind := range []error{ErrValidation, ErrUnauthorized, ErrForbidden, ErrNotFound, ErrConflict} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// Message returns the caller-safe message of the outermost domain error in
// err's chain, or an empty string.
func Message(err error) string {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return ""
}

// Validation wraps a free-form validation message.
func Validation(message string) error {
	return &Error{Kind: ErrValidation, Message: message}
}
