package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWaitForReturnsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WaitFor(ctx, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWaitForZeroDuration(t *testing.T) {
	t.Parallel()

	if err := WaitFor(context.Background(), 0); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestWaitForElapses(t *testing.T) {
	t.Parallel()

	start := time.Now()
	if err := WaitFor(context.Background(), 5*time.Millisecond); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if time.Since(start) < 5*time.Millisecond {
		t.Fatalf("returned before the delay elapsed")
	}
}

func TestBackoff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		attempt int
		initial time.Duration
		max     time.Duration
		expect  time.Duration
	}{
		{name: "no attempts", attempt: 0, initial: time.Second, max: time.Minute, expect: 0},
		{name: "first attempt", attempt: 1, initial: time.Second, max: time.Minute, expect: time.Second},
		{name: "doubles", attempt: 3, initial: time.Second, max: time.Minute, expect: 4 * time.Second},
		{name: "capped", attempt: 10, initial: time.Second, max: 8 * time.Second, expect: 8 * time.Second},
		{name: "uncapped", attempt: 4, initial: time.Second, max: 0, expect: 8 * time.Second},
		{name: "disabled", attempt: 2, initial: 0, max: time.Second, expect: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Backoff(tt.attempt, tt.initial, tt.max); got != tt.expect {
				t.Fatalf("expected %v, got %v", tt.expect, got)
			}
		})
	}
}
