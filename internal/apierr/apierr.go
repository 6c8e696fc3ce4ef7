// Package apierr defines the stable error-kind taxonomy shared by every
// component in the inspection service and the HTTP status each kind maps to.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a stable error-kind name used in the wire envelope.
type Kind string

const (
	KindValidation       Kind = "VALIDATION_ERROR"
	KindNotFound         Kind = "NOT_FOUND"
	KindConflict         Kind = "CONFLICT"
	KindGone             Kind = "GONE"
	KindDecodeError      Kind = "DECODE_ERROR"
	KindOutOfBounds      Kind = "OUT_OF_BOUNDS"
	KindDeadlineExceeded Kind = "DEADLINE_EXCEEDED"
	KindDepMissing       Kind = "DEP_MISSING"
	KindInternal         Kind = "INTERNAL"
)

var statusByKind = map[Kind]int{
	KindValidation:       http.StatusBadRequest,
	KindNotFound:         http.StatusNotFound,
	KindConflict:         http.StatusConflict,
	KindGone:             http.StatusGone,
	KindDecodeError:      http.StatusUnprocessableEntity,
	KindOutOfBounds:      http.StatusUnprocessableEntity,
	KindDeadlineExceeded: http.StatusGatewayTimeout,
	KindDepMissing:       http.StatusServiceUnavailable,
	KindInternal:         http.StatusInternalServerError,
}

// Status returns the HTTP status code for a Kind, defaulting to 500 for an
// unrecognized kind.
func (k Kind) Status() int {
	if s, ok := statusByKind[k]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Error is the typed error carried through the service. Handlers at the HTTP
// boundary unwrap it with As to build the wire envelope; everywhere else it
// is a plain error that wraps with %w like the rest of the codebase.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New constructs an *Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf constructs an *Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind and message to an underlying cause, preserving it for
// %w-style unwrapping and logging.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// WithDetails returns a copy of the error with additional structured detail
// fields attached for the wire envelope.
func (e *Error) WithDetails(details map[string]any) *Error {
	out := *e
	out.Details = details
	return &out
}

// KindOf extracts the Kind from err, defaulting to KindInternal when err is
// not (or does not wrap) an *Error.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindInternal
}

// MessageOf extracts a user-facing message from err.
func MessageOf(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

// DetailsOf extracts structured details from err, if any.
func DetailsOf(err error) map[string]any {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Details
	}
	return nil
}
