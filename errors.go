package broker

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedEnvelope is returned when the request body is not a valid envelope.
	ErrMalformedEnvelope = errors.New("malformed envelope")
	// ErrMalformedUpload is returned when an upload payload has no path separator.
	ErrMalformedUpload = errors.New("malformed upload")
	// ErrMalformedJSON is returned when a structured payload cannot be parsed.
	ErrMalformedJSON = errors.New("malformed json")
	// ErrInvalidPath is returned when a storage path has no bucket separator.
	ErrInvalidPath = errors.New("invalid path")
	// ErrUnsupportedRange is returned for private downloads with a nonzero offset.
	ErrUnsupportedRange = errors.New("unsupported range for private download")
	// ErrUnknownCommand is returned for command ids outside the command table.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrBackend is returned when a storage or procedure backend reports an error.
	ErrBackend = errors.New("backend error")
	// ErrNotFound is returned by local backends when an object does not exist.
	ErrNotFound = errors.New("not found")
)

// Error is a gateway failure.
//
// Kind is one of the sentinel errors above and is matched with errors.Is.
// Message is the text the client receives, so it is never decorated with the
// kind.
type Error struct {
	Kind    error
	Message string
	cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.cause}
}

func newError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// BackendError converts an error reported by a backend into a gateway error.
// The backend's message is kept verbatim. Gateway errors pass through unchanged.
func BackendError(err error) *Error {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr
	}
	return &Error{Kind: ErrBackend, Message: err.Error(), cause: err}
}
