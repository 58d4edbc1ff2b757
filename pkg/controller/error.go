package controller

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced in the response envelope. These are stable API
// contract values; clients switch on them.
const (
	CodeLockConflict    = "LOCK_CONFLICT"
	CodeValidationError = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeRateLimited     = "RATE_LIMITED"
	CodeServerError     = "SERVER_ERROR"
)

// AppError is the single application error contract shared across layers.
// It carries a stable code, a user-facing message, the HTTP status to respond
// with, optional structured data for the client, and an optional wrapped cause.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Data       map[string]interface{}
	Cause      error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// WithData attaches structured data returned to the client alongside the error.
func (e *AppError) WithData(data map[string]interface{}) *AppError {
	if e == nil {
		return nil
	}
	e.Data = data
	return e
}

// WithCause attaches the underlying cause.
func (e *AppError) WithCause(cause error) *AppError {
	if e == nil {
		return nil
	}
	e.Cause = cause
	return e
}

// NewLockConflictError creates a conflict error for a lock held by another user.
func NewLockConflictError(message string, data map[string]interface{}) *AppError {
	return &AppError{
		Code:       CodeLockConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
		Data:       data,
	}
}

// NewValidationError creates an error for malformed requests.
func NewValidationError(message string) *AppError {
	return &AppError{
		Code:       CodeValidationError,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFoundError creates an error for missing resources.
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    message,
		HTTPStatus: http.StatusNotFound,
	}
}

// NewUnauthorizedError creates an error for unauthenticated requests.
func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewForbiddenError creates an error for authenticated but disallowed requests.
func NewForbiddenError(message string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// NewInternalError creates an error for unexpected failures. The cause is
// logged but never surfaced to the client.
func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Code:       CodeServerError,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// MapError maps an error to an HTTP status and error envelope. Errors that are
// not AppErrors become generic SERVER_ERROR responses so internal details are
// never leaked.
func MapError(requestID string, err error) (int, ErrorResponse) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError, ErrorResponse{
			Success:   false,
			ErrorCode: CodeServerError,
			Message:   "an unexpected error occurred",
			RequestID: requestID,
		}
	}

	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	message := appErr.Message
	if message == "" {
		message = "an unexpected error occurred"
	}

	return status, ErrorResponse{
		Success:   false,
		ErrorCode: appErr.Code,
		Message:   message,
		Data:      appErr.Data,
		RequestID: requestID,
	}
}
