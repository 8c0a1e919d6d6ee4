package errors

import (
	"errors"
	"fmt"
)

// Common application errors
var (
	// Window errors
	ErrOutOfWindow      = errors.New("timestamp outside the retained window")
	ErrColumnOutOfRange = errors.New("column index out of range")

	// Ingestion errors
	ErrMissingTimestamp = errors.New("record has no usable timestamp")

	// Detection errors
	ErrUnknownStrategy   = errors.New("unknown anomaly strategy")
	ErrInvalidDescriptor = errors.New("invalid anomaly strategy descriptor")
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeDetection     ErrorType = "detection"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeStorage       ErrorType = "storage"
	ErrorTypeNetwork       ErrorType = "network"
	ErrorTypeInternal      ErrorType = "internal"
)

// AppError represents an application-specific error with additional context
type AppError struct {
	Type    ErrorType              `json:"type"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details string                 `json:"details,omitempty"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:    errType,
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error with application context
func WrapError(err error, errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(code, message string) *AppError {
	return NewAppError(ErrorTypeConfiguration, code, message)
}

// NewStorageError creates a storage error
func NewStorageError(code, message string) *AppError {
	return NewAppError(ErrorTypeStorage, code, message)
}

// Error codes for different error scenarios
const (
	CodeInvalidDescriptor = "INVALID_DESCRIPTOR"
	CodeUnknownStrategy   = "UNKNOWN_STRATEGY"
	CodeInvalidConfig     = "INVALID_CONFIG"
	CodeConnectionFailed  = "CONNECTION_FAILED"
	CodeWriteFailed       = "WRITE_FAILED"
	CodeInternalError     = "INTERNAL_ERROR"
)
