package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFixedDelay(t *testing.T) {
	t.Parallel()

	if got := (FixedDelay{}).Next(time.Now()); got != DefaultInterval {
		t.Fatalf("zero interval should default to %s, got %s", DefaultInterval, got)
	}
	if got := (FixedDelay{Interval: time.Minute}).Next(time.Now()); got != time.Minute {
		t.Fatalf("unexpected delay: %s", got)
	}
}

func TestCronDelayNext(t *testing.T) {
	t.Parallel()

	delay, err := NewCronDelay("*/15 * * * *", time.UTC)
	if err != nil {
		t.Fatalf("NewCronDelay: %v", err)
	}

	now := time.Date(2025, time.November, 8, 10, 7, 0, 0, time.UTC)
	if got := delay.Next(now); got != 8*time.Minute {
		t.Fatalf("expected 8m until 10:15, got %s", got)
	}

	every, err := NewCronDelay("@every 10m", nil)
	if err != nil {
		t.Fatalf("NewCronDelay descriptor: %v", err)
	}
	if got := every.Next(now); got != 10*time.Minute {
		t.Fatalf("expected 10m, got %s", got)
	}
}

func TestCronDelayRejectsGarbage(t *testing.T) {
	t.Parallel()

	if _, err := NewCronDelay("every tuesday", time.UTC); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSleepHonorsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Sleep(ctx, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("Sleep did not return promptly")
	}

	if err := Sleep(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("short sleep: %v", err)
	}
}
