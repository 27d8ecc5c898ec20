package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Argument errors, raised synchronously.
const (
	// ErrCodeInvalidArgument indicates a setter rejected its argument.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeInvalidInput indicates a configuration value failed validation.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required configuration field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
)

// Boot errors, surfaced through the bootstrap result handle.
const (
	// ErrCodePersistenceFailed indicates the configuration file could not be read, parsed or written.
	ErrCodePersistenceFailed ErrorCode = "PERSISTENCE_FAILED"
	// ErrCodeInstallationFailed indicates a startup action or service install failed.
	ErrCodeInstallationFailed ErrorCode = "INSTALLATION_FAILED"
	// ErrCodeServiceFailed indicates an installed service failed to start.
	ErrCodeServiceFailed ErrorCode = "SERVICE_FAILED"
	// ErrCodeDuplicateService indicates a service name was installed twice.
	ErrCodeDuplicateService ErrorCode = "DUPLICATE_SERVICE"
)

// Wait errors
const (
	// ErrCodeCanceled indicates the operation was canceled before completion.
	ErrCodeCanceled ErrorCode = "CANCELED"
	// ErrCodeTimeout indicates a bounded wait expired.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

// Capability errors
const (
	// ErrCodeNotSupported indicates the server lacks the requested capability.
	ErrCodeNotSupported ErrorCode = "NOT_SUPPORTED"
)

// Internal errors
const (
	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// A fresh configuration is the only recovery path for boot failures, so only
// waits are worth repeating.
var retryableCodes = map[ErrorCode]bool{
	ErrCodeTimeout:  true,
	ErrCodeInternal: false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
