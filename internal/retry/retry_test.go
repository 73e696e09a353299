package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func noSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var waits []time.Duration
	orig := sleep
	sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	t.Cleanup(func() { sleep = orig })
	return &waits
}

func TestDoStopsOnSuccess(t *testing.T) {
	waits := noSleep(t)
	calls := 0
	err := Do(context.Background(), Policy{MaxAttempts: 5, Delay: time.Second}, func(ctx context.Context, attempt int) error {
		calls++
		if attempt < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if len(*waits) != 2 {
		t.Fatalf("waits = %v, want 2 entries", *waits)
	}
}

func TestDoLinearSchedule(t *testing.T) {
	waits := noSleep(t)
	boom := errors.New("boom")
	err := Do(context.Background(), Policy{MaxAttempts: 4, Delay: 2 * time.Second, Backoff: Linear}, func(ctx context.Context, attempt int) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second, 6 * time.Second}
	if len(*waits) != len(want) {
		t.Fatalf("waits = %v, want %v", *waits, want)
	}
	for i, w := range want {
		if (*waits)[i] != w {
			t.Fatalf("waits[%d] = %v, want %v", i, (*waits)[i], w)
		}
	}
}

func TestDoExponentialCapped(t *testing.T) {
	p := Policy{Delay: time.Second, MaxDelay: 3 * time.Second, Backoff: Exponential}
	if got := p.DelayFor(1); got != time.Second {
		t.Fatalf("DelayFor(1) = %v", got)
	}
	if got := p.DelayFor(2); got != 2*time.Second {
		t.Fatalf("DelayFor(2) = %v", got)
	}
	if got := p.DelayFor(3); got != 3*time.Second {
		t.Fatalf("DelayFor(3) = %v, want cap", got)
	}
}

func TestDoPermanentStopsImmediately(t *testing.T) {
	noSleep(t)
	calls := 0
	boom := errors.New("not found")
	err := Do(context.Background(), Policy{MaxAttempts: 3}, func(ctx context.Context, attempt int) error {
		calls++
		return Permanent(boom)
	})
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if err != boom {
		t.Fatalf("err = %v, want unwrapped boom", err)
	}
}

func TestDoRetryablePredicate(t *testing.T) {
	noSleep(t)
	calls := 0
	err := Do(context.Background(), Policy{
		MaxAttempts: 3,
		Retryable:   func(err error) bool { return err.Error() == "429" },
	}, func(ctx context.Context, attempt int) error {
		calls++
		return errors.New("500")
	})
	if err == nil || calls != 1 {
		t.Fatalf("calls = %d err = %v, want single failed call", calls, err)
	}
}

func TestDoHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Do(ctx, Policy{MaxAttempts: 3}, func(ctx context.Context, attempt int) error {
		calls++
		return nil
	})
	if !errors.Is(err, context.Canceled) || calls != 0 {
		t.Fatalf("calls = %d err = %v", calls, err)
	}
}
