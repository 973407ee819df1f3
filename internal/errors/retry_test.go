package errors

import (
	"context"
	goerrors "errors"
	"testing"
	"time"
)

func fastRetry(retryable func(error) bool) *RetryConfig {
	return &RetryConfig{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		BackoffFactor:  2.0,
		Retryable:      retryable,
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	transient := goerrors.New("connection reset by peer")
	attempts := 0

	err := Retry(context.Background(), fastRetry(nil), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return transient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetry_GivesUp(t *testing.T) {
	transient := goerrors.New("connection refused")
	attempts := 0

	err := Retry(context.Background(), fastRetry(nil), func(ctx context.Context) error {
		attempts++
		return transient
	})
	if !goerrors.Is(err, transient) {
		t.Fatalf("expected last error, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 1 attempt plus 2 retries, got %d", attempts)
	}
}

func TestRetry_StopsOnPermanentError(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastRetry(nil), func(ctx context.Context) error {
		attempts++
		return BadRequest("nope")
	})
	if err == nil || attempts != 1 {
		t.Errorf("expected a single failed attempt, got %d attempts and %v", attempts, err)
	}
}

func TestRetry_CustomPredicate(t *testing.T) {
	marker := goerrors.New("marker")
	attempts := 0
	err := Retry(context.Background(), fastRetry(func(err error) bool { return goerrors.Is(err, marker) }), func(ctx context.Context) error {
		attempts++
		return marker
	})
	if !goerrors.Is(err, marker) || attempts != 3 {
		t.Errorf("expected 3 attempts, got %d and %v", attempts, err)
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := Retry(ctx, fastRetry(nil), func(ctx context.Context) error {
		called = true
		return nil
	})
	if !goerrors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if called {
		t.Error("function must not run on a cancelled context")
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.Canceled, false},
		{context.DeadlineExceeded, false},
		{goerrors.New("dial tcp: connection refused"), true},
		{goerrors.New("LOADING Redis is loading the dataset in memory"), true},
		{goerrors.New("WRONGTYPE Operation against a key"), false},
		{InternalError("boom"), false},
	}
	for _, tt := range tests {
		if got := IsRetryableError(tt.err); got != tt.want {
			t.Errorf("IsRetryableError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestCalculateRetryBackoff_Capped(t *testing.T) {
	cfg := &RetryConfig{InitialBackoff: time.Second, MaxBackoff: 5 * time.Second, BackoffFactor: 2}

	if got := calculateRetryBackoff(0, cfg); got != time.Second {
		t.Errorf("attempt 0: expected 1s, got %v", got)
	}
	if got := calculateRetryBackoff(1, cfg); got != 2*time.Second {
		t.Errorf("attempt 1: expected 2s, got %v", got)
	}
	if got := calculateRetryBackoff(10, cfg); got != 5*time.Second {
		t.Errorf("attempt 10: expected cap of 5s, got %v", got)
	}
}
