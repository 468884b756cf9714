package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Request errors (rejected before a job is created)
const (
	// ErrCodeInvalidInput indicates a malformed request or configuration.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
)

// Lifecycle errors (programming or race-condition guards)
const (
	// ErrCodeInvalidTransition indicates a rejected job state transition.
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	// ErrCodeInvalidState indicates an operation attempted in the wrong job state.
	ErrCodeInvalidState ErrorCode = "INVALID_STATE"
)

// Provider errors (external speech-to-text backend)
const (
	// ErrCodeProvider indicates a generic transcription provider failure.
	ErrCodeProvider ErrorCode = "PROVIDER_ERROR"
	// ErrCodeProviderRateLimited indicates the provider rejected the call due
	// to rate limiting. Kept distinct from ErrCodeProvider because it feeds
	// the governor's degraded-mode heuristic, not just the retry counter.
	ErrCodeProviderRateLimited ErrorCode = "PROVIDER_RATE_LIMITED"
	// ErrCodeTimeout indicates the provider call timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

// Terminal pipeline errors
const (
	// ErrCodeBudgetExceeded indicates the job's total-retry or total-split
	// safeguard tripped.
	ErrCodeBudgetExceeded ErrorCode = "BUDGET_EXCEEDED"
	// ErrCodeCancelled indicates cooperative cancellation. Terminal, not a failure.
	ErrCodeCancelled ErrorCode = "CANCELLED"
	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	// ErrCodeStorage indicates a chunk storage backend error.
	ErrCodeStorage ErrorCode = "STORAGE_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeProvider:            true,
	ErrCodeProviderRateLimited: true,
	ErrCodeTimeout:             true,
	ErrCodeStorage:             true,
	ErrCodeBudgetExceeded:      false,
	ErrCodeCancelled:           false,
	ErrCodeInternal:            false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
