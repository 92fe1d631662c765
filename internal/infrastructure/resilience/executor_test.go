package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetryConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		RetryMultiplier:     1.0,
		BreakerEnabled:      false,
	}
}

func retryAll(error) ErrorClassification {
	return ErrorClassification{Retryable: true, RecordFailure: true}
}

func TestExecuteRetriesUntilSuccess(t *testing.T) {
	executor := NewExecutor(fastRetryConfig())

	attempts := 0
	err := executor.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	}, retryAll)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteStopsOnNonRetryableError(t *testing.T) {
	executor := NewExecutor(fastRetryConfig())

	permanent := errors.New("permanent")
	attempts := 0
	err := executor.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return permanent
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: true}
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected original error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteExhaustsAttempts(t *testing.T) {
	executor := NewExecutor(fastRetryConfig())

	transient := errors.New("transient")
	attempts := 0
	err := executor.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return transient
	}, retryAll)
	if !errors.Is(err, transient) {
		t.Fatalf("expected original error, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteRespectsContextCancellation(t *testing.T) {
	executor := NewExecutor(fastRetryConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := executor.Execute(ctx, "op", func(context.Context) error {
		attempts++
		return errors.New("never retried")
	}, retryAll)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempts != 0 {
		t.Fatalf("expected no attempts against a cancelled context, got %d", attempts)
	}
}

func TestBreakerOpensAfterSustainedFailures(t *testing.T) {
	cfg := fastRetryConfig()
	cfg.RetryMaxAttempts = 1
	cfg.BreakerEnabled = true
	cfg.BreakerMinRequests = 3
	cfg.BreakerFailureRatio = 0.5
	cfg.BreakerOpenTimeout = time.Minute
	executor := NewExecutor(cfg)

	boom := errors.New("boom")
	for i := 0; i < 3; i++ {
		_ = executor.Execute(context.Background(), "flaky", func(context.Context) error {
			return boom
		}, retryAll)
	}

	err := executor.Execute(context.Background(), "flaky", func(context.Context) error {
		t.Fatal("callback must not run while the circuit is open")
		return nil
	}, retryAll)
	if !IsCircuitOpen(err) {
		t.Fatalf("expected open circuit error, got %v", err)
	}
}

func TestBreakersAreScopedPerOperation(t *testing.T) {
	cfg := fastRetryConfig()
	cfg.RetryMaxAttempts = 1
	cfg.BreakerEnabled = true
	cfg.BreakerMinRequests = 2
	cfg.BreakerOpenTimeout = time.Minute
	executor := NewExecutor(cfg)

	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		_ = executor.Execute(context.Background(), "broken", func(context.Context) error {
			return boom
		}, retryAll)
	}

	if err := executor.Execute(context.Background(), "healthy", func(context.Context) error {
		return nil
	}, retryAll); err != nil {
		t.Fatalf("healthy operation must not share the broken breaker: %v", err)
	}
}
