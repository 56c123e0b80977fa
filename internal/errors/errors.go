package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrTypePermissionDenied means storage access was refused
	ErrTypePermissionDenied ErrorType = "permission_denied"
	// ErrTypeNoQualities means no quality variant could be offered
	ErrTypeNoQualities ErrorType = "no_qualities"
	// ErrTypeCancelled means the user dismissed the quality chooser
	ErrTypeCancelled ErrorType = "cancelled"
	// ErrTypeURLUnavailable means the source returned no download link
	ErrTypeURLUnavailable ErrorType = "url_unavailable"
	// ErrTypeWriteFailed means the audio file could not be written
	ErrTypeWriteFailed ErrorType = "write_failed"
	// ErrTypeEnrichmentFailed means a lyric or cover step failed (non-fatal)
	ErrTypeEnrichmentFailed ErrorType = "enrichment_failed"
	// ErrTypeInProgress means the same destination is already being downloaded
	ErrTypeInProgress ErrorType = "in_progress"
	// ErrTypeNetwork represents network-related errors
	ErrTypeNetwork ErrorType = "network"
	// ErrTypeRateLimit represents rate limiting errors
	ErrTypeRateLimit ErrorType = "rate_limit"
	// ErrTypeNotFound represents resource not found errors
	ErrTypeNotFound ErrorType = "not_found"
	// ErrTypeValidation represents validation errors
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeUnknown represents unknown errors
	ErrTypeUnknown ErrorType = "unknown"
)

// EnrichmentKind names the sidecar step that failed
type EnrichmentKind string

const (
	EnrichmentLyric EnrichmentKind = "lyric"
	EnrichmentCover EnrichmentKind = "cover"
)

// AppError represents an application error with context
type AppError struct {
	Type      ErrorType
	Message   string
	Retryable bool
	Cause     error

	// RetryAfter is the delay the source asked for, zero when unspecified
	RetryAfter time.Duration
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewPermissionDeniedError creates an error for a refused storage permission
func NewPermissionDeniedError(cause error) *AppError {
	return &AppError{
		Type:    ErrTypePermissionDenied,
		Message: "storage permission denied",
		Cause:   cause,
	}
}

// NewNoQualitiesError creates an error for a track with nothing to choose from
func NewNoQualitiesError(cause error) *AppError {
	return &AppError{
		Type:    ErrTypeNoQualities,
		Message: "no qualities available",
		Cause:   cause,
	}
}

// NewCancelledError creates the silent cancellation error
func NewCancelledError() *AppError {
	return &AppError{
		Type:    ErrTypeCancelled,
		Message: "download cancelled",
	}
}

// NewURLUnavailableError creates an error for an empty download link
func NewURLUnavailableError() *AppError {
	return &AppError{
		Type:    ErrTypeURLUnavailable,
		Message: "failed to obtain download link",
	}
}

// NewWriteFailedError creates an error for a failed audio write
func NewWriteFailedError(path string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeWriteFailed,
		Message: fmt.Sprintf("failed to write %s", path),
		Cause:   cause,
	}
}

// NewEnrichmentError creates a non-fatal lyric or cover error
func NewEnrichmentError(kind EnrichmentKind, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeEnrichmentFailed,
		Message: fmt.Sprintf("%s enrichment failed", kind),
		Cause:   cause,
	}
}

// NewInProgressError creates an error for a duplicate concurrent download
func NewInProgressError(path string) *AppError {
	return &AppError{
		Type:    ErrTypeInProgress,
		Message: fmt.Sprintf("download already in progress: %s", path),
	}
}

// NewNetworkError creates a new network error
func NewNetworkError(message string, cause error) *AppError {
	return &AppError{
		Type:      ErrTypeNetwork,
		Message:   message,
		Retryable: true,
		Cause:     cause,
	}
}

// NewRateLimitError creates a rate limit error; retryAfter may be zero
func NewRateLimitError(message string, retryAfter time.Duration) *AppError {
	return &AppError{
		Type:       ErrTypeRateLimit,
		Message:    message,
		Retryable:  true,
		RetryAfter: retryAfter,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:    ErrTypeNotFound,
		Message: message,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:    ErrTypeValidation,
		Message: message,
	}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// GetErrorType returns the error type from an error
func GetErrorType(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrTypeUnknown
}

// IsCancelled checks if an error is a user cancellation
func IsCancelled(err error) bool {
	return GetErrorType(err) == ErrTypeCancelled
}

// IsRateLimitError checks if an error is a rate limit error
func IsRateLimitError(err error) bool {
	return GetErrorType(err) == ErrTypeRateLimit
}

// IsNetworkError checks if an error is a network error
func IsNetworkError(err error) bool {
	return GetErrorType(err) == ErrTypeNetwork
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return GetErrorType(err) == ErrTypeNotFound
}
