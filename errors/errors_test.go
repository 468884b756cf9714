package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	err := InvalidInput("audio", "audio payload is empty")
	if err.Code != ErrCodeInvalidInput {
		t.Errorf("expected code %s, got %s", ErrCodeInvalidInput, err.Code)
	}
	if err.Retryable {
		t.Error("invalid input must not be retryable")
	}

	cause := stderrors.New("boom")
	wrapped := Provider("whisper", cause)
	if !stderrors.Is(wrapped, cause) {
		t.Error("expected errors.Is to find the cause")
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"app error", ProviderRateLimited("whisper"), ErrCodeProviderRateLimited},
		{"wrapped app error", fmt.Errorf("chunk 3: %w", BudgetExceeded("retry", 10)), ErrCodeBudgetExceeded},
		{"plain error", stderrors.New("boom"), ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(Provider("whisper", nil)) {
		t.Error("provider errors must be retryable")
	}
	if !IsRetryable(ProviderRateLimited("whisper")) {
		t.Error("rate-limit rejections must be retryable")
	}
	if IsRetryable(BudgetExceeded("split", 3)) {
		t.Error("budget exhaustion must not be retryable")
	}
	if IsRetryable(stderrors.New("boom")) {
		t.Error("plain errors must not be retryable")
	}
}

func TestInvalidTransition_Details(t *testing.T) {
	err := InvalidTransition("completed", "transcribing")
	if err.Details["from"] != "completed" || err.Details["to"] != "transcribing" {
		t.Errorf("unexpected details: %v", err.Details)
	}
}
