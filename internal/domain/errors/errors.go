package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies failures by the layer that produced them.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeCompliance ErrorType = "compliance"
	ErrorTypeAdmission  ErrorType = "admission"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeExternal   ErrorType = "external"
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypeConflict   ErrorType = "conflict"
)

// AppError is a structured application error. Every failure path in the
// dispatcher surfaces one of these instead of a bare error so callers
// can branch on Type/Code and map to an HTTP status without string matching.
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Retryable  bool                   `json:"retryable"`
	StatusCode int                    `json:"status_code"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

func NewValidationError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		Retryable:  false,
		StatusCode: 400,
	}
}

// NewComplianceError covers configuration failures: an unmapped sending
// identity, a role not permitted on a lane, or template content that
// fails lane rules. Never retryable.
func NewComplianceError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeCompliance,
		Code:       code,
		Message:    message,
		Retryable:  false,
		StatusCode: 422,
	}
}

// NewAdmissionError covers per-minute and per-day cap rejections.
// Retryable: the caller can schedule the same dispatch for later.
func NewAdmissionError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeAdmission,
		Code:       code,
		Message:    message,
		Retryable:  true,
		StatusCode: 429,
	}
}

func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       "RESOURCE_NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		Retryable:  false,
		StatusCode: 404,
	}
}

func NewExternalError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeExternal,
		Code:       code,
		Message:    message,
		Retryable:  true,
		StatusCode: 502,
	}
}

func NewInternalError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Retryable:  false,
		StatusCode: 500,
	}
}

func NewConflictError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       "CONFLICT",
		Message:    message,
		Retryable:  false,
		StatusCode: 409,
	}
}

// AsAppError extracts an *AppError from an error chain, if present.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
