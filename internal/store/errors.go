package store

import (
	"fmt"
	"net/http"
)

// Error is a store error carrying the HTTP status it should surface as.
type Error struct {
	Code    int    // HTTP status code
	Message string // User-facing message
	Err     error  // Underlying error (optional)
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code and message, so wrapped variants still satisfy errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code && t.Message == e.Message
}

// HTTPCode returns the HTTP status code associated with this error.
func (e *Error) HTTPCode() int { return e.Code }

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Err: err}
}

// Sentinel errors.
var (
	ErrNotFound = &Error{
		Code:    http.StatusNotFound,
		Message: "record not found",
	}

	ErrUnknownCollection = &Error{
		Code:    http.StatusNotFound,
		Message: "unknown collection",
	}

	ErrInvalidID = &Error{
		Code:    http.StatusBadRequest,
		Message: "record id must be a positive integer",
	}

	ErrReadOnly = &Error{
		Code:    http.StatusInternalServerError,
		Message: "write attempted in a read-only transaction",
	}
)

// NotFoundError annotates ErrNotFound with the missing key.
func NotFoundError(collection, id string) error {
	return ErrNotFound.WithCause(fmt.Errorf("%s/%s", collection, id))
}

// UnknownCollectionError annotates ErrUnknownCollection with the collection name.
func UnknownCollectionError(name string) error {
	return ErrUnknownCollection.WithCause(fmt.Errorf("%q", name))
}
