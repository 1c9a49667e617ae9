package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"madspark/internal/types"
)

func fastConfig(maxRetries int) Config {
	return Config{MaxRetries: maxRetries, InitialDelay: time.Millisecond}
}

func TestDoSucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), "test", func(ctx context.Context) error {
		calls++
		if calls <= 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success: %v", err)
	}
	if calls != 4 {
		t.Errorf("a function failing maxRetries times then succeeding is called maxRetries+1 times, got %d", calls)
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	calls := 0
	wantErr := errors.New("persistent")
	err := Do(context.Background(), fastConfig(2), "test", func(ctx context.Context) error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls (1 + 2 retries), got %d", calls)
	}
}

func TestDoSkipsNonRetryable(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(5), "test", func(ctx context.Context) error {
		calls++
		return &types.ValidationError{Field: "topic", Reason: "empty"}
	})
	var ve *types.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if calls != 1 {
		t.Errorf("validation errors must not be retried, got %d calls", calls)
	}
}

func TestDoBackoffDoubles(t *testing.T) {
	cfg := Config{MaxRetries: 3, InitialDelay: 10 * time.Millisecond}
	start := time.Now()
	_ = Do(context.Background(), cfg, "test", func(ctx context.Context) error {
		return errors.New("always")
	})
	// Total wait >= 10 + 20 + 40 ms.
	if elapsed := time.Since(start); elapsed < 70*time.Millisecond {
		t.Errorf("expected at least 70ms of backoff, got %v", elapsed)
	}
}

func TestDoCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	err := Do(ctx, Config{MaxRetries: 10, InitialDelay: 50 * time.Millisecond}, "test", func(ctx context.Context) error {
		calls++
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("cancellation during backoff should stop retries, got %d calls", calls)
	}
}
