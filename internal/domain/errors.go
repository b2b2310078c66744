package domain

import "fmt"

// ErrorKind classifies expected domain failures so callers can branch on the
// category instead of string-matching messages.
type ErrorKind string

const (
	KindValidation          ErrorKind = "validation"
	KindUnbalanced          ErrorKind = "unbalanced"
	KindMissingAccount      ErrorKind = "missing_account"
	KindDuplicateKey        ErrorKind = "duplicate_key"
	KindInvalidSnapshot     ErrorKind = "invalid_snapshot"
	KindProviderUnavailable ErrorKind = "provider_unavailable"
	KindNotFound            ErrorKind = "not_found"
)

// Error is the domain error type. Field carries the offending field name for
// validation and normalization failures.
type Error struct {
	Kind    ErrorKind
	Message string
	Field   string
	cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}

	if e.Field != "" {
		msg = fmt.Sprintf("%s: field %q", msg, e.Field)
	}

	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}

	return msg
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error of the same kind, so sentinel values below work with
// errors.Is regardless of message detail.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrUnbalanced          = &Error{Kind: KindUnbalanced}
	ErrMissingAccount      = &Error{Kind: KindMissingAccount}
	ErrDuplicateKey        = &Error{Kind: KindDuplicateKey}
	ErrInvalidSnapshot     = &Error{Kind: KindInvalidSnapshot}
	ErrProviderUnavailable = &Error{Kind: KindProviderUnavailable}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrValidation          = &Error{Kind: KindValidation}
)

// NewError creates a domain error of the given kind.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Errorf creates a domain error with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// FieldError creates a domain error naming the offending field.
func FieldError(kind ErrorKind, field, format string, args ...any) *Error {
	return &Error{Kind: kind, Field: field, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates a domain error wrapping an underlying cause.
func WrapError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}
