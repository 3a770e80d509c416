// Package fault defines the tagged failure type shared across the import
// pipeline. Callers branch on the Kind, never on message content; messages
// are human-readable and safe to display as-is.
package fault

import (
	"errors"
	"fmt"
)

// Kind discriminates failure sources.
type Kind int

const (
	KindUnknown Kind = iota
	KindNoCredentials
	KindTransport
	KindAPI
	KindOAuth
	KindAlreadyImported
	KindMismatch
	KindStore
	KindDownloadFailed
)

func (k Kind) String() string {
	switch k {
	case KindNoCredentials:
		return "no_credentials"
	case KindTransport:
		return "transport"
	case KindAPI:
		return "api_error"
	case KindOAuth:
		return "oauth_error"
	case KindAlreadyImported:
		return "already_imported"
	case KindMismatch:
		return "mismatch"
	case KindStore:
		return "store_error"
	case KindDownloadFailed:
		return "download_failed"
	default:
		return "unknown"
	}
}

// Error is a failure tagged with its Kind. Status is set for remote API
// errors (HTTP status of the upstream response).
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a tagged error with a display message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap tags an underlying error, keeping it available via errors.Unwrap.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// WithStatus returns a copy of e carrying the upstream HTTP status.
func (e *Error) WithStatus(status int) *Error {
	e2 := *e
	e2.Status = status
	return &e2
}

// KindOf returns the Kind of err, or KindUnknown when err carries no tag.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// Is reports whether err is tagged with kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
