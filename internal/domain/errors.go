package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches another DomainError by code and message so sentinel comparisons
// keep working after a cause has been attached.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"

	ErrCodeConfiguration     = "CONFIGURATION_ERROR"
	ErrCodeTransientProvider = "TRANSIENT_PROVIDER_ERROR"
	ErrCodePermanentProvider = "PERMANENT_PROVIDER_ERROR"
	ErrCodeDataIntegrity     = "DATA_INTEGRITY_WARNING"
)

// Validation errors
var (
	ErrInvalidDocument           = NewDomainError(ErrCodeValidation, "invalid document")
	ErrInvalidJobStatus          = NewDomainError(ErrCodeValidation, "invalid attribution job status")
	ErrMissingRequiredField      = NewDomainError(ErrCodeValidation, "missing required field")
	ErrInvalidChunkKey           = NewDomainError(ErrCodeValidation, "invalid chunk key")
	ErrInvalidStateTransition    = NewDomainError(ErrCodeInvalidOperation, "invalid attribution run state transition")
	ErrIncompleteClusterCoverage = NewDomainError(ErrCodeInternalError, "cluster run does not cover every document exactly once")
)

// Not found errors
var (
	ErrDocumentNotFound       = NewDomainError(ErrCodeNotFound, "document not found")
	ErrClusterRunNotFound     = NewDomainError(ErrCodeNotFound, "cluster run not found")
	ErrAttributionJobNotFound = NewDomainError(ErrCodeNotFound, "attribution job not found")
)

// Provider errors
var (
	ErrProviderTransient = NewDomainError(ErrCodeTransientProvider, "provider call failed transiently")
	ErrProviderPermanent = NewDomainError(ErrCodePermanentProvider, "provider call failed permanently")
	ErrUnknownChunkID    = NewDomainError(ErrCodeDataIntegrity, "provider referenced an unknown chunk id")
	ErrMissingEmbedding  = NewDomainError(ErrCodePermanentProvider, "chunk has no embedding")
)

// NewConfigurationError reports an invalid pipeline parameter. These are never
// corrected silently.
func NewConfigurationError(format string, args ...any) *DomainError {
	return NewDomainError(ErrCodeConfiguration, fmt.Sprintf(format, args...))
}

// NewTransientProviderError wraps a timeout or rate-limit failure from the
// embedding or judge provider.
func NewTransientProviderError(cause error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeTransientProvider, ErrProviderTransient.Message, cause)
}

// NewPermanentProviderError wraps a failure that retrying will not fix.
func NewPermanentProviderError(cause error) *DomainError {
	return NewDomainErrorWithCause(ErrCodePermanentProvider, ErrProviderPermanent.Message, cause)
}

// HasCode reports whether any DomainError in err's chain carries code.
func HasCode(err error, code string) bool {
	var de *DomainError
	for err != nil {
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// IsTransient reports whether err is a retryable provider failure. Only the
// outermost DomainError is consulted so a permanent wrapper stops retries.
func IsTransient(err error) bool {
	var de *DomainError
	if !errors.As(err, &de) {
		return false
	}
	return de.Code == ErrCodeTransientProvider
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool {
	return HasCode(err, ErrCodeConfiguration)
}
