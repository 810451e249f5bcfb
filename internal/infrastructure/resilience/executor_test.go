package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/benefits-rag/internal/core/domain"
)

func TestExecuteRetriesTemporaryFailure(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})

	attempts := 0
	errTemp := errors.New("temporary")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errTemp
		}
		return nil
	}, func(err error) ErrorClassification {
		return ErrorClassification{
			Retryable:     errors.Is(err, errTemp),
			RecordFailure: true,
		}
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteDoesNotRetryPermanentFailure(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})

	attempts := 0
	errPermanent := errors.New("permanent")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return errPermanent
	}, func(error) ErrorClassification {
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	})
	if !errors.Is(err, errPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		RetryInitialBackoff:     1 * time.Millisecond,
		RetryMaxBackoff:         1 * time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	})

	errTemp := errors.New("temporary")
	classifier := func(error) ErrorClassification {
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: true,
		}
	}

	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "op", func(context.Context) error {
			return errTemp
		}, classifier)
		if !errors.Is(err, errTemp) {
			t.Fatalf("expected temporary error on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, classifier)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state error, got %v", err)
	}
}

func TestCallReturnsValueAfterRetry(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		BreakerEnabled:      false,
	})

	attempts := 0
	got, err := Call(context.Background(), exec, "embed", func(context.Context) (int, error) {
		attempts++
		if attempts == 1 {
			return 0, &StatusError{Service: "ollama", Operation: "embed", StatusCode: 503, Status: "503 Service Unavailable"}
		}
		return 42, nil
	}, ClassifyHTTP)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if got != 42 || attempts != 2 {
		t.Fatalf("expected 42 after 2 attempts, got %d after %d", got, attempts)
	}
}

func TestAttemptTimeoutBoundsEachTry(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts: 1,
		AttemptTimeout:   5 * time.Millisecond,
		BreakerEnabled:   false,
	})

	err := exec.Execute(context.Background(), "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, ClassifyHTTP)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestStatesListsBreakers(t *testing.T) {
	exec := NewExecutor(DefaultConfig())
	_ = exec.Execute(context.Background(), "qdrant_search", func(context.Context) error { return nil }, nil)
	_ = exec.Execute(context.Background(), "embed", func(context.Context) error { return nil }, nil)

	states := exec.States()
	if len(states) != 2 || states[0].Operation != "embed" || states[1].State != "closed" {
		t.Fatalf("unexpected breaker states %+v", states)
	}
}

func TestClassifyHTTP(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
		record    bool
	}{
		{name: "canceled", err: context.Canceled, retryable: false, record: false},
		{name: "503", err: &StatusError{StatusCode: 503}, retryable: true, record: true},
		{name: "400", err: &StatusError{StatusCode: 400}, retryable: false, record: false},
		{name: "open circuit", err: gobreaker.ErrOpenState, retryable: true, record: true},
		{name: "other", err: errors.New("decode"), retryable: false, record: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			class := ClassifyHTTP(tc.err)
			if class.Retryable != tc.retryable || class.RecordFailure != tc.record {
				t.Fatalf("unexpected classification %+v", class)
			}
		})
	}
}

func TestWrapTemporary(t *testing.T) {
	err := WrapTemporary("embed", &StatusError{StatusCode: 502}, nil)
	if !errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary kind, got %v", err)
	}
	permanent := errors.New("bad request")
	if got := WrapTemporary("embed", permanent, nil); got != permanent {
		t.Fatalf("expected permanent error unchanged, got %v", got)
	}
}

func TestWrapTemporaryMarksOpenBreakerUnavailable(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:   1,
		BreakerEnabled:     true,
		BreakerMinRequests: 1,
		BreakerOpenTimeout: time.Minute,
	})
	fail := func(context.Context) error { return &StatusError{StatusCode: 503} }

	_ = exec.Execute(context.Background(), "qdrant_search", fail, ClassifyHTTP)
	err := exec.Execute(context.Background(), "qdrant_search", fail, ClassifyHTTP)
	if !IsCircuitOpen(err) {
		t.Fatalf("expected open breaker, got %v", err)
	}

	wrapped := WrapTemporary("qdrant search", err, ClassifyHTTP)
	if !errors.Is(wrapped, domain.ErrUnavailable) {
		t.Fatalf("expected unavailable kind, got %v", wrapped)
	}
	if errors.Is(wrapped, domain.ErrTemporary) {
		t.Fatalf("open breaker should not be reported as temporary: %v", wrapped)
	}
}
