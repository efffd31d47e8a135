package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeForbidden    ErrorType = "forbidden"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeUpstream     ErrorType = "upstream"
	ErrorTypeInternal     ErrorType = "internal"
)

// DomainError represents a structured error with additional context.
// Details are internal and never serialized into client responses.
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Message == t.Message
}

// WithDetail adds an internal detail to a copy of the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	clone := &DomainError{
		Type:    e.Type,
		Message: e.Message,
		Err:     e.Err,
		Details: make(map[string]interface{}, len(e.Details)+1),
	}
	for k, v := range e.Details {
		clone.Details[k] = v
	}
	clone.Details[key] = value
	return clone
}

// Wrap attaches a cause to a copy of the error
func (e *DomainError) Wrap(err error) *DomainError {
	return &DomainError{
		Type:    e.Type,
		Message: e.Message,
		Err:     err,
		Details: e.Details,
	}
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

var (
	// ErrSceneNotFound deliberately conflates "absent" and "owned by someone
	// else"; the internal reason is carried in Details and kept out of the
	// client-visible payload.
	ErrSceneNotFound = NewDomainError(ErrorTypeNotFound, "scene not found", nil)

	ErrUserNotFound     = NewDomainError(ErrorTypeNotFound, "user not found", nil)
	ErrDocumentNotFound = NewDomainError(ErrorTypeNotFound, "document not found", nil)

	// Validation
	ErrInvalidInput       = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrEmptyPrompt        = NewDomainError(ErrorTypeValidation, "prompt cannot be empty", nil)
	ErrUnsupportedAudio   = NewDomainError(ErrorTypeValidation, "unsupported audio type", nil)
	ErrRegistrationClosed = NewDomainError(ErrorTypeValidation, "registration is currently closed", nil)

	// Authentication
	ErrUnauthorized       = NewDomainError(ErrorTypeUnauthorized, "unauthorized", nil)
	ErrInvalidCredentials = NewDomainError(ErrorTypeUnauthorized, "invalid email or password", nil)

	// Authorization
	ErrForbidden     = NewDomainError(ErrorTypeForbidden, "access forbidden", nil)
	ErrAdminRequired = NewDomainError(ErrorTypeForbidden, "admin access required", nil)

	// Conflict
	ErrUserExists = NewDomainError(ErrorTypeConflict, "user already exists", nil)

	// Upstream provider failures (retryable by the caller)
	ErrIdentityUnavailable = NewDomainError(ErrorTypeUpstream, "identity provider unavailable", nil)
	ErrStoreUnavailable    = NewDomainError(ErrorTypeUpstream, "store unavailable", nil)
	ErrBlobUnavailable     = NewDomainError(ErrorTypeUpstream, "blob store unavailable", nil)
	ErrProviderUnavailable = NewDomainError(ErrorTypeUpstream, "LLM provider unavailable", nil)

	// Internal
	ErrInternal = NewDomainError(ErrorTypeInternal, "internal server error", nil)
)

// GetErrorType returns the domain error type, or internal for unknown errors
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ErrorTypeInternal
}

// GetErrorDetails returns the internal details of a domain error, or nil
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return isType(err, ErrorTypeValidation)
}

// IsUnauthorizedError checks if an error is an unauthorized error
func IsUnauthorizedError(err error) bool {
	return isType(err, ErrorTypeUnauthorized)
}

// IsForbiddenError checks if an error is a forbidden error
func IsForbiddenError(err error) bool {
	return isType(err, ErrorTypeForbidden)
}

// IsConflictError checks if an error is a conflict error
func IsConflictError(err error) bool {
	return isType(err, ErrorTypeConflict)
}

// IsUpstreamError checks if an error is an upstream provider error
func IsUpstreamError(err error) bool {
	return isType(err, ErrorTypeUpstream)
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return isType(err, ErrorTypeInternal)
}

func isType(err error, t ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == t
	}
	return false
}
