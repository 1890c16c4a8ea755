package fetch

import (
	"context"
	"errors"
	"testing"
)

func TestWithRetry_StopsOnFatalError(t *testing.T) {
	calls := 0
	wantErr := errors.New("nope")
	err := withRetry(context.Background(), func(context.Context) error {
		calls++
		return &fatalError{wantErr}
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("got %v, want %v", err, wantErr)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one call for a fatal error, got %d", calls)
	}
}

func TestWithRetry_RetriesTransientErrorsThenSucceeds(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestWithRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	wantErr := errors.New("always fails")
	err := withRetry(context.Background(), func(context.Context) error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("got %v, want %v", err, wantErr)
	}
	if calls != maxAttempts {
		t.Fatalf("expected %d calls, got %d", maxAttempts, calls)
	}
}

func TestBackoffDelay_CapsAtThirtySeconds(t *testing.T) {
	d := backoffDelay(10) // 2^10 would be far beyond the 30s cap
	if d <= 0 {
		t.Fatalf("expected a positive delay")
	}
	if d.Seconds() > 36 { // 30s + 20% jitter headroom
		t.Fatalf("expected delay capped near 30s, got %s", d)
	}
}
