package errors

import (
	"fmt"
	"net/http"
	"runtime/debug"
)

// AppError represents an application error with HTTP status code and error code
type AppError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
	Stack      string `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// NewError creates a new application error
func NewError(statusCode int, code string, message string) *AppError {
	return &AppError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		Stack:      string(debug.Stack()),
	}
}

// NewAuthenticationError creates a 401 error for a missing, invalid or
// unresolvable credential. The specific reason stays server-side; callers
// see a single generic code.
func NewAuthenticationError(message string) *AppError {
	return NewError(http.StatusUnauthorized, "AUTHENTICATION_FAILED", message)
}

// NewAuthorizationError creates a 403 error for a session acting on a room
// it has not joined
func NewAuthorizationError(message string) *AppError {
	return NewError(http.StatusForbidden, "NOT_ROOM_MEMBER", message)
}

// NewValidationError creates a 400 error for rejected message input
func NewValidationError(code string, message string) *AppError {
	return NewError(http.StatusBadRequest, code, message)
}

// NewNotFoundError creates a 404 error for an unknown or deleted message
func NewNotFoundError(message string) *AppError {
	return NewError(http.StatusNotFound, "MESSAGE_NOT_FOUND", message)
}

// NewPersistenceError creates a 500 error for storage failures. These are
// reported to the originating session only and never retried server-side.
func NewPersistenceError(message string) *AppError {
	return NewError(http.StatusInternalServerError, "PERSISTENCE_FAILED", message)
}

// NewInternalServerError creates a 500 Internal Server Error
func NewInternalServerError(code string, message string) *AppError {
	return NewError(http.StatusInternalServerError, code, message)
}

// Validation error codes used by the ingest path
const (
	CodeEmptyMessage   = "EMPTY_MESSAGE"
	CodeMessageTooLong = "MESSAGE_TOO_LONG"
)

// Is checks if the target error is of type AppError
func Is(err error, target *AppError) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	return appErr.Code == target.Code
}

// FromError converts a standard error to an AppError
// If the error is already an AppError, it is returned as-is
// Otherwise, it is wrapped as an internal server error
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	if appErr, ok := err.(*AppError); ok {
		return appErr
	}

	return NewInternalServerError(
		"INTERNAL_ERROR",
		fmt.Sprintf("An unexpected error occurred: %s", err.Error()),
	)
}

// GetStatusCode extracts the HTTP status code from an AppError, returns 500 if not an AppError
func GetStatusCode(err error) int {
	if appErr, ok := err.(*AppError); ok {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// GetErrorCode extracts the error code from an AppError, returns "UNKNOWN_ERROR" if not an AppError
func GetErrorCode(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return "UNKNOWN_ERROR"
}

// GetErrorMessage extracts the error message, returns original error message if not an AppError
func GetErrorMessage(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Message
	}
	return err.Error()
}
