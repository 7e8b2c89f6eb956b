package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	cases := map[string]int64{
		"":      0,
		"1024":  1024,
		"5M":    5 * 1024 * 1024,
		"500K":  500 * 1024,
		"2G":    2 * 1024 * 1024 * 1024,
		"1MB":   1024 * 1024,
		"1.5M":  int64(1.5 * 1024 * 1024),
	}
	for input, want := range cases {
		got, err := Parse(input)
		if err != nil {
			t.Fatalf("Parse(%q): %v", input, err)
		}
		if got != want {
			t.Errorf("Parse(%q) = %d, want %d", input, got, want)
		}
	}
}

func TestParse_InvalidSuffix(t *testing.T) {
	if _, err := Parse("5X"); err == nil {
		t.Fatal("expected an error for an unsupported suffix")
	}
}

func TestTokenBucket_NoLimitIsNoop(t *testing.T) {
	b := New(0)
	if err := b.Wait(context.Background(), 1<<20); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTokenBucket_ConsumesWithinBudget(t *testing.T) {
	b := New(1024 * 1024)
	start := time.Now()
	if err := b.Wait(context.Background(), 1024); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("consuming well within budget should not block")
	}
}

func TestTokenBucket_CancelledContext(t *testing.T) {
	b := New(1) // 1 byte/sec — any sizeable request should need to wait
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Drain first so the next Wait has to block on the context.
	b.Wait(context.Background(), 1)
	if err := b.Wait(ctx, 1<<20); err == nil {
		t.Fatal("expected cancellation to surface as an error")
	}
}
