// internal/types.go - Common types for internal packages
package internal

import "errors"

// ProviderName identifies an imagery provider implementation
type ProviderName string

const (
	ProviderBing   ProviderName = "BingProvider"
	ProviderMapBox ProviderName = "MapBoxProvider"
	ProviderWms    ProviderName = "WmsProvider"
)

// Error represents application-specific errors
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap exposes the underlying cause to errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new application error
func NewError(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// HasCode reports whether err, or any error it wraps, is an *Error with the given code
func HasCode(err error, code string) bool {
	var appErr *Error
	for err != nil {
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// ErrorCode constants for common error types
const (
	ErrorCodeNetwork           = "NETWORK_ERROR"
	ErrorCodeProcessing        = "PROCESSING_ERROR"
	ErrorCodeValidation        = "VALIDATION_ERROR"
	ErrorCodeConfig            = "CONFIG_ERROR"
	ErrorCodeNotFound          = "NOT_FOUND"
	ErrorCodeTimeout           = "TIMEOUT_ERROR"
	ErrorCodeFileSystem        = "FILESYSTEM_ERROR"
	ErrorCodeBadProvider       = "BAD_PROVIDER"
	ErrorCodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
)
