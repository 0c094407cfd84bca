// Package response writes the JSON bodies of the raw chi handlers. Success bodies are the bare resource, as
// json-server clients expect; errors share the {code, message, details} shape of the typed operations.
package response

import (
	"encoding/json/v2"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	domainerrors "github.com/alquilibros/alquilibros-server/internal/errors"
	"github.com/alquilibros/alquilibros-server/internal/store"
)

// TotalCountHeader carries the number of records matching a list query before slicing.
const TotalCountHeader = "X-Total-Count"

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// JSON writes data with the given status code using json/v2.
func JSON(w http.ResponseWriter, status int, data any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.MarshalWrite(w, data, json.Deterministic(true)); err != nil {
		if logger != nil {
			logger.Error("Failed to encode JSON response", "error", err)
		}
	}
}

// Success writes a 200 OK response.
func Success(w http.ResponseWriter, data any, logger *slog.Logger) {
	JSON(w, http.StatusOK, data, logger)
}

// Created writes a 201 Created response.
func Created(w http.ResponseWriter, data any, logger *slog.Logger) {
	JSON(w, http.StatusCreated, data, logger)
}

// List writes a 200 OK list response with the total count header.
func List(w http.ResponseWriter, data any, total int, logger *slog.Logger) {
	w.Header().Set(TotalCountHeader, strconv.Itoa(total))
	JSON(w, http.StatusOK, data, logger)
}

// NoContent writes a 204 No Content response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error writes an error body.
func Error(w http.ResponseWriter, status int, code domainerrors.Code, message string, details any, logger *slog.Logger) {
	JSON(w, status, ErrorBody{Code: string(code), Message: message, Details: details}, logger)
}

// HandleError writes the response for err. Domain and store errors carry their own status; anything else is
// logged and reported as a generic 500 so internals never reach the client.
func HandleError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) && domainErr.Code != domainerrors.CodeInternal {
		Error(w, domainErr.HTTPStatus(), domainErr.Code, domainErr.Message, domainErr.Details, logger)
		return
	}

	var storeErr *store.Error
	if errors.As(err, &storeErr) && storeErr.HTTPCode() < http.StatusInternalServerError {
		code := domainerrors.CodeValidation
		if storeErr.HTTPCode() == http.StatusNotFound {
			code = domainerrors.CodeNotFound
		}
		Error(w, storeErr.HTTPCode(), code, storeErr.Message, nil, logger)
		return
	}

	if logger != nil {
		logger.Error("Unhandled error", "error", err)
	}
	Error(w, http.StatusInternalServerError, domainerrors.CodeInternal, domainerrors.MsgInternal, nil, logger)
}
