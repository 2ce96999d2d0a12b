package sitesync

import (
	"context"
	"errors"
	"testing"
	"time"
)

// Ensure non-positive maxAttempts is normalized to 1.
func TestRetry_NonPositiveMaxAttemptsDefaultsToOne(t *testing.T) {
	p := Retry(0).Policy()
	if p.MaxAttempts != 1 {
		t.Fatalf("expected MaxAttempts=1 for Retry(0), got %d", p.MaxAttempts)
	}

	p = Retry(-5).Policy()
	if p.MaxAttempts != 1 {
		t.Fatalf("expected MaxAttempts=1 for Retry(-5), got %d", p.MaxAttempts)
	}
}

// Ensure WithExponentialBackoff wires fields correctly and default multiplier is applied.
func TestRetry_WithExponentialBackoff_UsesDefaults(t *testing.T) {
	initial := 100 * time.Millisecond
	maxDelay := 2 * time.Second

	// multiplier <= 0 should default to 2.0
	p := Retry(3).
		WithExponentialBackoff(initial, 0, maxDelay).
		Policy()

	if p.MaxAttempts != 3 {
		t.Fatalf("expected MaxAttempts=3, got %d", p.MaxAttempts)
	}
	if p.InitialBackoff != initial {
		t.Fatalf("expected InitialBackoff=%v, got %v", initial, p.InitialBackoff)
	}
	if p.MaxBackoff != maxDelay {
		t.Fatalf("expected MaxBackoff=%v, got %v", maxDelay, p.MaxBackoff)
	}
	if p.BackoffMultiplier != 2.0 {
		t.Fatalf("expected BackoffMultiplier=2.0 (default), got %v", p.BackoffMultiplier)
	}
}

// Ensure WithExponentialBackoff respects an explicit multiplier.
func TestRetry_WithExponentialBackoff_ExplicitMultiplier(t *testing.T) {
	initial := 50 * time.Millisecond
	maxDelay := 500 * time.Millisecond
	mult := 3.0

	p := Retry(4).
		WithExponentialBackoff(initial, mult, maxDelay).
		Policy()

	if p.InitialBackoff != initial {
		t.Fatalf("expected InitialBackoff=%v, got %v", initial, p.InitialBackoff)
	}
	if p.MaxBackoff != maxDelay {
		t.Fatalf("expected MaxBackoff=%v, got %v", maxDelay, p.MaxBackoff)
	}
	if p.BackoffMultiplier != mult {
		t.Fatalf("expected BackoffMultiplier=%v, got %v", mult, p.BackoffMultiplier)
	}
}

// Ensure WithConstantBackoff sets a fixed delay and uses multiplier 1.0.
func TestRetry_WithConstantBackoff(t *testing.T) {
	delay := 250 * time.Millisecond

	p := Retry(5).
		WithConstantBackoff(delay).
		Policy()

	if p.MaxAttempts != 5 {
		t.Fatalf("expected MaxAttempts=5, got %d", p.MaxAttempts)
	}
	if p.InitialBackoff != delay {
		t.Fatalf("expected InitialBackoff=%v, got %v", delay, p.InitialBackoff)
	}
	if p.MaxBackoff != 0 {
		t.Fatalf("expected MaxBackoff=0 for constant backoff, got %v", p.MaxBackoff)
	}
	if p.BackoffMultiplier != 1.0 {
		t.Fatalf("expected BackoffMultiplier=1.0, got %v", p.BackoffMultiplier)
	}
}

// Ensure Immediate clears all backoff-related timing without changing MaxAttempts.
func TestRetry_ImmediateClearsBackoff(t *testing.T) {
	p := Retry(7).
		WithExponentialBackoff(100*time.Millisecond, 2.0, 5*time.Second).
		Immediate().
		Policy()

	if p.MaxAttempts != 7 {
		t.Fatalf("expected MaxAttempts=7, got %d", p.MaxAttempts)
	}
	if p.InitialBackoff != 0 {
		t.Fatalf("expected InitialBackoff=0 after Immediate, got %v", p.InitialBackoff)
	}
	if p.MaxBackoff != 0 {
		t.Fatalf("expected MaxBackoff=0 after Immediate, got %v", p.MaxBackoff)
	}
	if p.BackoffMultiplier != 0 {
		t.Fatalf("expected BackoffMultiplier=0 after Immediate, got %v", p.BackoffMultiplier)
	}
}

func TestRetryPolicy_BackOffGrowsUntilCap(t *testing.T) {
	b := Retry(6).WithExponentialBackoff(100*time.Millisecond, 2.0, 350*time.Millisecond).Policy().newBackOff()

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		350 * time.Millisecond,
		350 * time.Millisecond,
	}
	for i, w := range want {
		if got := b.NextBackOff(); got != w {
			t.Fatalf("retry %d: expected %v, got %v", i+1, w, got)
		}
	}
}

func TestRetryPolicy_ConstantAndImmediateBackOff(t *testing.T) {
	b := Retry(3).WithConstantBackoff(50 * time.Millisecond).Policy().newBackOff()
	for i := 0; i < 3; i++ {
		if got := b.NextBackOff(); got != 50*time.Millisecond {
			t.Fatalf("expected constant 50ms, got %v", got)
		}
	}

	b = Retry(3).Immediate().Policy().newBackOff()
	if got := b.NextBackOff(); got != 0 {
		t.Fatalf("expected no delay, got %v", got)
	}
}

func TestRetryPolicy_DoStopsAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := Retry(3).Immediate().Policy().Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("connection refused")
	})
	if err == nil {
		t.Fatalf("expected an error")
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryPolicy_DoStopsOnSuccess(t *testing.T) {
	calls := 0
	err := Retry(5).Immediate().Policy().Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryPolicy_DoReturnsLastError(t *testing.T) {
	calls := 0
	last := errors.New("attempt 2")
	err := Retry(2).Immediate().Policy().Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 2 {
			return last
		}
		return errors.New("attempt 1")
	})
	if !errors.Is(err, last) {
		t.Fatalf("expected last error, got %v", err)
	}
}

func TestRetryPolicy_DoHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(10).WithConstantBackoff(time.Hour).Policy().Do(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("unreachable")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}
