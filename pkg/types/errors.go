package types

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeAuthorization  ErrorType = "authorization"
	ErrorTypeAuthentication ErrorType = "authentication"
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeConflict       ErrorType = "conflict"
	ErrorTypeInternal       ErrorType = "internal"
)

// PortalError represents a structured error in the HealthID portal
type PortalError struct {
	Type    ErrorType              `json:"type"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *PortalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *PortalError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a new validation error
func NewValidationError(code, message string, details map[string]interface{}) *PortalError {
	return &PortalError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewAuthorizationError creates a new authorization error
func NewAuthorizationError(code, message string) *PortalError {
	return &PortalError{
		Type:    ErrorTypeAuthorization,
		Code:    code,
		Message: message,
	}
}

// NewAuthenticationError creates a new authentication error
func NewAuthenticationError(code, message string) *PortalError {
	return &PortalError{
		Type:    ErrorTypeAuthentication,
		Code:    code,
		Message: message,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(code, message string) *PortalError {
	return &PortalError{
		Type:    ErrorTypeNotFound,
		Code:    code,
		Message: message,
	}
}

// NewConflictError creates a new conflict error
func NewConflictError(code, message string) *PortalError {
	return &PortalError{
		Type:    ErrorTypeConflict,
		Code:    code,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(code, message string, cause error) *PortalError {
	return &PortalError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Common error codes
const (
	ErrCodeTokenNotFound      = "TOKEN_NOT_FOUND"
	ErrCodeTokenExpired       = "TOKEN_EXPIRED"
	ErrCodeMalformedPayload   = "MALFORMED_PAYLOAD"
	ErrCodeConsentNotFound    = "CONSENT_NOT_FOUND"
	ErrCodeConsentPending     = "CONSENT_PENDING"
	ErrCodePatientNotFound    = "PATIENT_NOT_FOUND"
	ErrCodeDoctorNotFound     = "DOCTOR_NOT_FOUND"
	ErrCodeParentNotFound     = "PARENT_NOT_FOUND"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeUserExists         = "USER_EXISTS"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeAccountSuspended   = "ACCOUNT_SUSPENDED"
	ErrCodeInsufficientScope  = "INSUFFICIENT_SCOPE"
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeInternalError      = "INTERNAL_ERROR"
)

// IsErrorCode reports whether err is a PortalError carrying the given code
func IsErrorCode(err error, code string) bool {
	var perr *PortalError
	if errors.As(err, &perr) {
		return perr.Code == code
	}
	return false
}
