// Package errors provides unified error handling for the transcription
// pipeline. It implements structured error types with error codes, HTTP
// status mapping, and retryable detection.
package errors

import (
	stderrors "errors"
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
	// HTTPStatus is the recommended HTTP status code for this error.
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

// CodeOf returns the error code of err if it is an AppError, or
// ErrCodeInternal otherwise.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// IsCode reports whether err is an AppError carrying the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// IsRetryable reports whether err may be retried. Non-AppError values are
// treated as non-retryable.
func IsRetryable(err error) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// --- Common Error Constructors ---

// InvalidInput creates a new AppError for a malformed request or config.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		HTTPStatus: http.StatusBadRequest, Retryable: false, Details: details,
	}
}

// Validation creates a new AppError for validation errors.
func Validation(message string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidInput, Message: message,
		HTTPStatus: http.StatusBadRequest, Retryable: false,
	}
}

// MissingField creates a new AppError for a missing required field.
func MissingField(field string) *AppError {
	return &AppError{
		Code: ErrCodeMissingField, Message: fmt.Sprintf("Missing required field: %s", field),
		HTTPStatus: http.StatusBadRequest, Retryable: false,
		Details: map[string]any{"field": field},
	}
}

// NotFound creates a new AppError for a resource that was not found.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("The requested %s was not found.", resource),
		HTTPStatus: http.StatusNotFound, Retryable: false, Details: details,
	}
}

// InvalidTransition creates a new AppError for a rejected job state transition.
func InvalidTransition(from, to string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidTransition, Message: fmt.Sprintf("Invalid status transition: %s -> %s", from, to),
		HTTPStatus: http.StatusConflict, Retryable: false,
		Details: map[string]any{"from": from, "to": to},
	}
}

// InvalidState creates a new AppError for an operation attempted in the
// wrong job state.
func InvalidState(operation, state string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidState, Message: fmt.Sprintf("Operation %s is not valid in state %s", operation, state),
		HTTPStatus: http.StatusConflict, Retryable: false,
		Details: map[string]any{"operation": operation, "state": state},
	}
}

// Provider creates a new AppError for a transcription provider failure.
func Provider(provider string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeProvider, Message: fmt.Sprintf("The %s provider encountered an error.", provider),
		HTTPStatus: http.StatusBadGateway, Retryable: true,
		Details: map[string]any{"provider": provider}, Cause: cause,
	}
}

// ProviderRateLimited creates a new AppError for a provider rate-limit rejection.
func ProviderRateLimited(provider string) *AppError {
	return &AppError{
		Code: ErrCodeProviderRateLimited, Message: fmt.Sprintf("The %s provider rejected the request due to rate limiting.", provider),
		HTTPStatus: http.StatusTooManyRequests, Retryable: true,
		Details: map[string]any{"provider": provider},
	}
}

// Timeout creates a new AppError for a provider call that timed out.
func Timeout(operation string) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: "The request took too long. Please try again.",
		HTTPStatus: http.StatusGatewayTimeout, Retryable: true,
		Details: map[string]any{"operation": operation},
	}
}

// BudgetExceeded creates a new AppError for an exhausted retry or split budget.
func BudgetExceeded(budget string, limit int) *AppError {
	return &AppError{
		Code: ErrCodeBudgetExceeded, Message: fmt.Sprintf("The job's %s budget (%d) was exhausted.", budget, limit),
		HTTPStatus: http.StatusUnprocessableEntity, Retryable: false,
		Details: map[string]any{"budget": budget, "limit": limit},
	}
}

// TooShortToSplit creates a new AppError for a persistently failing chunk
// that is already at or below the minimum splittable length.
func TooShortToSplit(duration, floor float64) *AppError {
	return &AppError{
		Code: ErrCodeBudgetExceeded, Message: "The chunk is too short to split further.",
		HTTPStatus: http.StatusUnprocessableEntity, Retryable: false,
		Details: map[string]any{"duration": duration, "floor": floor},
	}
}

// Cancelled creates a new AppError for a cooperatively cancelled job.
func Cancelled(jobID string) *AppError {
	return &AppError{
		Code: ErrCodeCancelled, Message: "The job was cancelled.",
		HTTPStatus: http.StatusConflict, Retryable: false,
		Details: map[string]any{"job_id": jobID},
	}
}

// Storage creates a new AppError for a chunk storage backend failure.
func Storage(operation string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeStorage, Message: fmt.Sprintf("Chunk storage %s failed.", operation),
		HTTPStatus: http.StatusInternalServerError, Retryable: true,
		Details: map[string]any{"operation": operation}, Cause: cause,
	}
}

// Internal creates a new AppError for an internal error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred.",
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}
