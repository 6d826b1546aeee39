package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-kratos/kit/retry"

	"github.com/go-kratos/stepflow"
)

func countingInvoker(attempts *int, fn func(attempt int) (*stepflow.Message, error)) stepflow.ModelInvoker {
	return stepflow.InvokerFunc(func(ctx context.Context, messages []*stepflow.Message, opts ...stepflow.ModelOption) (*stepflow.Message, error) {
		*attempts++
		return fn(*attempts)
	})
}

var prompt = []*stepflow.Message{stepflow.UserMessage("test")}

func TestRetrySuccessOnFirstAttempt(t *testing.T) {
	attempts := 0
	invoker := Retry(3)(countingInvoker(&attempts, func(int) (*stepflow.Message, error) {
		return stepflow.AssistantMessage("success"), nil
	}))
	msg, err := invoker.Invoke(context.Background(), prompt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected invoker to be called once, got %d", attempts)
	}
	if msg.Text != "success" {
		t.Errorf("expected message content 'success', got '%s'", msg.Text)
	}
}

func TestRetryThenSuccess(t *testing.T) {
	attempts := 0
	invoker := Retry(3)(countingInvoker(&attempts, func(attempt int) (*stepflow.Message, error) {
		if attempt < 2 {
			return nil, errors.New("temporary failure")
		}
		return stepflow.AssistantMessage("success after retry"), nil
	}))
	msg, err := invoker.Invoke(context.Background(), prompt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected invoker to be called twice, got %d", attempts)
	}
	if msg.Text != "success after retry" {
		t.Errorf("expected message content 'success after retry', got '%s'", msg.Text)
	}
}

func TestRetryAllAttemptsFail(t *testing.T) {
	attempts := 0
	invoker := Retry(2)(countingInvoker(&attempts, func(int) (*stepflow.Message, error) {
		return nil, errors.New("persistent failure")
	}))
	msg, err := invoker.Invoke(context.Background(), prompt)
	if attempts != 2 {
		t.Errorf("expected invoker to be called twice, got %d", attempts)
	}
	if msg != nil {
		t.Errorf("expected no message, got %v", msg)
	}
	if err == nil || err.Error() != "persistent failure" {
		t.Errorf("expected error message 'persistent failure', got %v", err)
	}
}

func TestRetryWithCustomRetryable(t *testing.T) {
	attempts := 0
	invoker := Retry(3,
		retry.WithRetryable(func(err error) bool {
			return err.Error() == "retryable error"
		}),
	)(countingInvoker(&attempts, func(int) (*stepflow.Message, error) {
		return nil, errors.New("non-retryable error")
	}))
	_, err := invoker.Invoke(context.Background(), prompt)
	if attempts != 1 {
		t.Errorf("expected invoker to be called once for non-retryable error, got %d", attempts)
	}
	if err == nil || err.Error() != "non-retryable error" {
		t.Errorf("expected error message 'non-retryable error', got %v", err)
	}
}

func TestRetryWithContextCancellation(t *testing.T) {
	attempts := 0
	invoker := Retry(5)(stepflow.InvokerFunc(func(ctx context.Context, messages []*stepflow.Message, opts ...stepflow.ModelOption) (*stepflow.Message, error) {
		attempts++
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
			return nil, errors.New("always fails")
		}
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := invoker.Invoke(ctx, prompt)
	elapsed := time.Since(start)

	// Should be cancelled quickly, not wait for all 5 retry attempts
	if elapsed >= 400*time.Millisecond {
		t.Errorf("context cancellation not respected, took %v", elapsed)
	}
	if err == nil {
		t.Errorf("expected error due to context cancellation, got none")
	}
}
