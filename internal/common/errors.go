package common

import (
	"errors"
	"net/http"
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// BadRequest builds a 400 error pointing at the offending field.
func BadRequest(field, message string, err error) *AppError {
	appErr := NewAppError("BAD_REQUEST", message, http.StatusBadRequest, err)
	if field != "" {
		appErr.Details = map[string]any{"field": field}
	}
	return appErr
}

// NotFound builds a 404 error.
func NotFound(message string, err error) *AppError {
	return NewAppError("NOT_FOUND", message, http.StatusNotFound, err)
}

// Conflict builds a 409 error.
func Conflict(code, message string, err error) *AppError {
	return NewAppError(code, message, http.StatusConflict, err)
}

// Unprocessable builds a 422 error for requests that are well formed but cannot be fulfilled yet.
func Unprocessable(code, message string, err error) *AppError {
	return NewAppError(code, message, http.StatusUnprocessableEntity, err)
}

// WriteError renders err using the canonical error shape. Errors that are not an
// AppError are reported as internal errors without leaking their text.
func WriteError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		code := appErr.Code
		if code == "" {
			code = "INTERNAL"
		}
		message := appErr.Message
		if message == "" {
			message = "internal error"
		}
		JSONError(w, status, code, message, appErr.Details)
		return
	}
	JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
