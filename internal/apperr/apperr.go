// Package apperr defines the service-level error taxonomy. Handlers map
// kinds to HTTP statuses; internal causes are wrapped so they can be logged
// server-side without leaking into client responses.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the caller.
type Kind int

const (
	// Internal is the default for unexpected datastore or provider failures.
	Internal Kind = iota
	// Unauthenticated means no verified caller identity was present.
	Unauthenticated
	// InvalidArgument means the input was missing or malformed.
	InvalidArgument
	// PermissionDenied means the caller is not the event organizer.
	PermissionDenied
	// NotFound means the event, participant, or assignment does not exist.
	NotFound
	// AlreadyExists means a uniqueness constraint was violated (duplicate email).
	AlreadyExists
	// FailedPrecondition means the operation is not valid in the current
	// state (draw with <2 participants, dispatch with no assignments).
	FailedPrecondition
)

var kindNames = map[Kind]string{
	Internal:           "internal",
	Unauthenticated:    "unauthenticated",
	InvalidArgument:    "invalid_argument",
	PermissionDenied:   "permission_denied",
	NotFound:           "not_found",
	AlreadyExists:      "already_exists",
	FailedPrecondition: "failed_precondition",
}

// String returns the wire name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "internal"
}

// Error is a classified service error. Message is safe to return to clients;
// cause is server-side only.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.cause }

// New creates a classified error with a client-safe message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a classified error with a formatted client-safe message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error. The message is what clients see;
// err is retained for server-side logs only.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, cause: err}
}

// KindOf extracts the kind of err, defaulting to Internal for
// unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// MessageOf returns the client-safe message of err. Unclassified errors get
// a generic message so internals never leak.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
