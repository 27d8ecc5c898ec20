// Package errors provides the structured error type used across serverkit.
// Errors carry a machine-readable code, an HTTP status for the management
// endpoint, and retryable detection.
package errors

import (
	"fmt"
	"net/http"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the status the management endpoint reports for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// Is reports whether target is an AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// --- Constructors ---

// InvalidArgument creates an AppError for a rejected setter argument.
func InvalidArgument(name string, value any, reason string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("%s %s", name, reason),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"argument": name, "value": value},
	}
}

// Validation creates an AppError for configuration validation failures.
func Validation(message string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidInput, Message: message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// MissingField creates an AppError for a missing required field.
func MissingField(field string) *AppError {
	return &AppError{
		Code: ErrCodeMissingField, Message: fmt.Sprintf("Missing required field: %s", field),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"field": field},
	}
}

// PersistenceFailed creates an AppError for a configuration file that could
// not be read, parsed or written.
func PersistenceFailed(path, operation string, cause error) *AppError {
	return &AppError{
		Code: ErrCodePersistenceFailed, Message: fmt.Sprintf("Failed to %s configuration %s", operation, path),
		HTTPStatus: http.StatusInternalServerError, Cause: cause,
		Details: map[string]any{"path": path, "operation": operation},
	}
}

// InstallationFailed creates an AppError for a startup action that failed.
func InstallationFailed(action string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeInstallationFailed, Message: fmt.Sprintf("Startup action %s failed", action),
		HTTPStatus: http.StatusInternalServerError, Cause: cause,
		Details: map[string]any{"action": action},
	}
}

// ServiceFailed creates an AppError for a service that failed to start.
func ServiceFailed(service string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeServiceFailed, Message: fmt.Sprintf("Service %s failed to start", service),
		HTTPStatus: http.StatusServiceUnavailable, Cause: cause,
		Details: map[string]any{"service": service},
	}
}

// DuplicateService creates an AppError for a service installed twice.
func DuplicateService(service string) *AppError {
	return &AppError{
		Code: ErrCodeDuplicateService, Message: fmt.Sprintf("Service %s is already installed", service),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"service": service},
	}
}

// Canceled creates an AppError for an operation canceled before completion.
func Canceled(operation string) *AppError {
	return &AppError{
		Code: ErrCodeCanceled, Message: fmt.Sprintf("%s was canceled", operation),
		HTTPStatus: http.StatusServiceUnavailable,
		Details:    map[string]any{"operation": operation},
	}
}

// Timeout creates an AppError for a bounded wait that expired.
func Timeout(operation string) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: fmt.Sprintf("%s did not complete in time", operation),
		HTTPStatus: http.StatusGatewayTimeout, Retryable: true,
		Details: map[string]any{"operation": operation},
	}
}

// NotSupported creates an AppError for an operation this server cannot perform.
func NotSupported(operation string) *AppError {
	return &AppError{
		Code: ErrCodeNotSupported, Message: fmt.Sprintf("%s is not supported by this server", operation),
		HTTPStatus: http.StatusNotImplemented,
		Details:    map[string]any{"operation": operation},
	}
}

// Internal creates an AppError for an unexpected internal error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred.",
		HTTPStatus: http.StatusInternalServerError, Cause: cause,
	}
}
