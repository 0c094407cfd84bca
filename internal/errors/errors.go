// Package errors provides the domain errors of the rental API, each carrying a machine-readable code that maps to
// an HTTP status.
//
// Usage:
//
//	// In services, return typed errors
//	if cedulaTaken {
//	    return errors.DuplicateIdentity("Ya existe un usuario con esta cédula.")
//	}
//
//	// In handlers, check with errors.Is
//	if errors.Is(err, errors.ErrNotFound) {
//	    response.Error(w, err, logger)
//	    return
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
	New    = errors.New
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the application.
const (
	CodeNotFound           Code = "NOT_FOUND"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeMissingToken       Code = "MISSING_TOKEN"
	CodeInvalidToken       Code = "INVALID_TOKEN"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeForbidden          Code = "FORBIDDEN"
	CodeValidation         Code = "VALIDATION"
	CodeInvalidBody        Code = "INVALID_BODY"
	CodeDuplicateIdentity  Code = "DUPLICATE_IDENTITY"
	CodeConflict           Code = "CONFLICT"
	CodeRateLimited        Code = "RATE_LIMITED"
	CodeInternal           Code = "INTERNAL"
)

// HTTPStatus returns the appropriate HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized, CodeMissingToken, CodeInvalidToken, CodeInvalidCredentials:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeValidation, CodeInvalidBody, CodeDuplicateIdentity:
		return http.StatusBadRequest
	case CodeConflict:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with details attached.
func (e *Error) WithDetails(details any) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: details, cause: e.cause}
}

// WithCause returns a copy of the error wrapping err.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: e.Details, cause: err}
}

// User-facing messages shared by several layers. The wording matches what existing clients display.
const (
	MsgMissingToken       = "Token no proporcionado"
	MsgInvalidToken       = "Token inválido o expirado"
	MsgInvalidCredentials = "Credenciales inválidas."
	MsgForbidden          = "No autorizado para este recurso"
	MsgInternal           = "Error interno del servidor."
	MsgNotFound           = "Recurso no encontrado"
	MsgInvalidBody        = "El cuerpo de la petición debe ser un objeto JSON no vacío."
)

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound           = &Error{Code: CodeNotFound, Message: MsgNotFound}
	ErrUnauthorized       = &Error{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrMissingToken       = &Error{Code: CodeMissingToken, Message: MsgMissingToken}
	ErrInvalidToken       = &Error{Code: CodeInvalidToken, Message: MsgInvalidToken}
	ErrInvalidCredentials = &Error{Code: CodeInvalidCredentials, Message: MsgInvalidCredentials}
	ErrForbidden          = &Error{Code: CodeForbidden, Message: MsgForbidden}
	ErrValidation         = &Error{Code: CodeValidation, Message: "validation error"}
	ErrInvalidBody        = &Error{Code: CodeInvalidBody, Message: MsgInvalidBody}
	ErrDuplicateIdentity  = &Error{Code: CodeDuplicateIdentity, Message: "duplicate identity"}
	ErrConflict           = &Error{Code: CodeConflict, Message: "conflict"}
	ErrRateLimited        = &Error{Code: CodeRateLimited, Message: "Demasiadas solicitudes. Intenta de nuevo más tarde."}
	ErrInternal           = &Error{Code: CodeInternal, Message: MsgInternal}
)

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Unauthorized creates an unauthorized error.
func Unauthorized(msg string) *Error {
	return &Error{Code: CodeUnauthorized, Message: msg}
}

// Forbidden creates a forbidden error.
func Forbidden(msg string) *Error {
	return &Error{Code: CodeForbidden, Message: msg}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// InvalidBody creates an invalid body error.
func InvalidBody(msg string) *Error {
	return &Error{Code: CodeInvalidBody, Message: msg}
}

// DuplicateIdentity creates a duplicate identity error.
func DuplicateIdentity(msg string) *Error {
	return &Error{Code: CodeDuplicateIdentity, Message: msg}
}

// Conflict creates a conflict error.
func Conflict(msg string) *Error {
	return &Error{Code: CodeConflict, Message: msg}
}

// Conflictf creates a conflict error with formatted message.
func Conflictf(format string, args ...any) *Error {
	return &Error{Code: CodeConflict, Message: fmt.Sprintf(format, args...)}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}

// StatusOf returns the HTTP status for any error. Non-domain errors are 500.
func StatusOf(err error) int {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.HTTPStatus()
	}
	return http.StatusInternalServerError
}
