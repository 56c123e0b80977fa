package errors

import (
	"context"
	"testing"
	"time"
)

func testRetryConfig(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries:     maxRetries,
		InitialBackoff: 5 * time.Millisecond,
		MaxBackoff:     20 * time.Millisecond,
		Multiplier:     2.0,
		ShouldRetry:    IsRetryable,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %v, want 3", config.MaxRetries)
	}
	if config.InitialBackoff != 500*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 500ms", config.InitialBackoff)
	}
	if config.ShouldRetry == nil {
		t.Error("ShouldRetry is nil")
	}
}

func TestRetryReturnsValue(t *testing.T) {
	attempts := 0
	var retried []int

	config := testRetryConfig(3)
	config.OnRetry = func(attempt int, delay time.Duration, err error) {
		retried = append(retried, attempt)
	}

	got, err := Retry(context.Background(), config, func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", NewNetworkError("temporary failure", nil)
		}
		return "320k", nil
	})

	if err != nil {
		t.Fatalf("Expected success, got error: %v", err)
	}
	if got != "320k" {
		t.Errorf("Retry() = %q, want 320k", got)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	if len(retried) != 2 || retried[0] != 1 || retried[1] != 2 {
		t.Errorf("OnRetry attempts = %v, want [1 2]", retried)
	}
}

func TestRetryWithBackoff_GivesUp(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), testRetryConfig(2), func(ctx context.Context) error {
		attempts++
		return NewNetworkError("persistent failure", nil)
	})

	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	if !IsNetworkError(err) {
		t.Errorf("Expected wrapped network error, got %v", err)
	}
}

func TestRetryWithBackoff_NonRetryableError(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), testRetryConfig(3), func(ctx context.Context) error {
		attempts++
		return NewNotFoundError("no such track")
	})

	if !IsNotFoundError(err) {
		t.Errorf("Expected not found error to pass through, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

func TestRetryWithBackoff_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	config := testRetryConfig(10)
	config.InitialBackoff = 100 * time.Millisecond
	config.MaxBackoff = time.Second

	err := RetryWithBackoff(ctx, config, func(ctx context.Context) error {
		return NewNetworkError("failure", nil)
	})

	if err == nil {
		t.Error("Expected error, got nil")
	}
	if ctx.Err() == nil {
		t.Error("Expected context to be cancelled")
	}
}

func TestRetryDelay(t *testing.T) {
	config := RetryConfig{
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
	}
	network := NewNetworkError("reset", nil)

	tests := []struct {
		name     string
		attempt  int
		err      error
		expected time.Duration
	}{
		{"first retry", 0, network, 1 * time.Second},
		{"second retry", 1, network, 2 * time.Second},
		{"third retry", 2, network, 4 * time.Second},
		{"capped", 10, network, 30 * time.Second},
		{"rate limit without hint", 0, NewRateLimitError("slow down", 0), 30 * time.Second},
		{"rate limit with hint", 0, NewRateLimitError("slow down", 3*time.Second), 3 * time.Second},
		{"rate limit hint capped", 0, NewRateLimitError("slow down", time.Hour), 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := config.Delay(tt.attempt, tt.err); got != tt.expected {
				t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.expected)
			}
		})
	}
}
