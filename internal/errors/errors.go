package errors

import "fmt"

// RelinkError is the structured error type for relink. It carries a
// stable code plus enough context for logging and user presentation.
type RelinkError struct {
	// Code is the unique error code (e.g., "ERR_102_CONFIG_INVALID").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Storage, ...).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error, if any.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *RelinkError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *RelinkError) Unwrap() error {
	return e.Cause
}

// Is matches errors by code, enabling errors.Is with sentinel instances.
func (e *RelinkError) Is(target error) bool {
	if t, ok := target.(*RelinkError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *RelinkError) WithDetail(key, value string) *RelinkError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a RelinkError with the given code and message.
// Category, severity, and retryability are derived from the code.
func New(code string, message string, cause error) *RelinkError {
	return &RelinkError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a RelinkError from an existing error, reusing its message.
func Wrap(code string, err error) *RelinkError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *RelinkError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// StorageError creates a storage-related error.
func StorageError(message string, cause error) *RelinkError {
	return New(ErrCodeStoreOpen, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *RelinkError {
	return New(ErrCodeInvalidInput, message, cause)
}

// IsRetryable reports whether the error carries the retryable flag.
func IsRetryable(err error) bool {
	if re, ok := err.(*RelinkError); ok {
		return re.Retryable
	}
	return false
}

// GetCode extracts the error code, or "" for foreign errors.
func GetCode(err error) string {
	if re, ok := err.(*RelinkError); ok {
		return re.Code
	}
	return ""
}
