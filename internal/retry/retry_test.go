package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Factor:       1,
	}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	result := Do(context.Background(), fastConfig(3), func() error { return nil })
	if result.Err != nil {
		t.Fatalf("Err = %v", result.Err)
	}
	if result.Attempts != 1 {
		t.Fatalf("Attempts = %d, want 1", result.Attempts)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	result := Do(context.Background(), fastConfig(5), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if result.Err != nil {
		t.Fatalf("Err = %v", result.Err)
	}
	if result.Attempts != 3 {
		t.Fatalf("Attempts = %d, want 3", result.Attempts)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	boom := errors.New("boom")
	result := Do(context.Background(), fastConfig(3), func() error { return boom })
	if !errors.Is(result.Err, boom) {
		t.Fatalf("Err = %v, want boom", result.Err)
	}
	if result.Attempts != 3 {
		t.Fatalf("Attempts = %d, want 3", result.Attempts)
	}
}

func TestDoStopsOnPermanent(t *testing.T) {
	calls := 0
	fatal := errors.New("fatal")
	result := Do(context.Background(), fastConfig(5), func() error {
		calls++
		return Permanent(fatal)
	})
	if calls != 1 {
		t.Fatalf("op called %d times, want 1", calls)
	}
	if !errors.Is(result.Err, fatal) {
		t.Fatalf("Err = %v, want fatal", result.Err)
	}
}

func TestDoHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := Do(ctx, fastConfig(3), func() error { return errors.New("never retried") })
	if !errors.Is(result.Err, context.Canceled) {
		t.Fatalf("Err = %v, want context.Canceled", result.Err)
	}
}

func TestIsPermanentUnwraps(t *testing.T) {
	wrapped := errors.Join(errors.New("outer"), Permanent(errors.New("inner")))
	if !IsPermanent(wrapped) {
		t.Fatal("Permanent marker should survive wrapping")
	}
	if IsPermanent(errors.New("plain")) {
		t.Fatal("plain error is not permanent")
	}
	if Permanent(nil) != nil {
		t.Fatal("Permanent(nil) must be nil")
	}
}
