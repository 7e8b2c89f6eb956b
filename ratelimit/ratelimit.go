// Package ratelimit provides a simple shared token-bucket limiter a
// Transporter can apply across every in-flight transfer.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Limiter is the capability a transport wraps its reads/writes with.
type Limiter interface {
	Wait(ctx context.Context, n int) error
}

// TokenBucket is a single shared bucket: one configured rate, refilled
// continuously, consumed by every concurrent caller. Unlike the
// per-thread distribution the original downloader used, a connector's
// workers share one repository-wide budget, so one bucket is the
// correct model here.
type TokenBucket struct {
	mu         sync.Mutex
	rate       int64
	bucket     int64
	maxBucket  int64
	lastRefill time.Time
}

// New builds a limiter for bytesPerSecond. A non-positive rate disables
// limiting — Wait becomes a no-op.
func New(bytesPerSecond int64) *TokenBucket {
	return &TokenBucket{
		rate:       bytesPerSecond,
		bucket:     bytesPerSecond,
		maxBucket:  bytesPerSecond,
		lastRefill: time.Now(),
	}
}

func (b *TokenBucket) Wait(ctx context.Context, n int) error {
	if b.rate <= 0 {
		return nil
	}

	b.mu.Lock()
	now := time.Now()
	elapsed := now.Sub(b.lastRefill)
	b.lastRefill = now

	b.bucket += int64(elapsed.Seconds() * float64(b.rate))
	if b.bucket > b.maxBucket {
		b.bucket = b.maxBucket
	}

	needed := int64(n)
	if b.bucket >= needed {
		b.bucket -= needed
		b.mu.Unlock()
		return nil
	}

	deficit := needed - b.bucket
	b.bucket = 0
	waitFor := time.Duration(float64(deficit) / float64(b.rate) * float64(time.Second))
	b.mu.Unlock()

	select {
	case <-time.After(waitFor):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetRate updates the limit at runtime (e.g. a CLI flag applied after
// construction).
func (b *TokenBucket) SetRate(bytesPerSecond int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rate = bytesPerSecond
	b.maxBucket = bytesPerSecond
	if b.bucket > b.maxBucket {
		b.bucket = b.maxBucket
	}
}

// Parse converts a human-readable rate like "5M" or "500K" into
// bytes/second. An empty string means "no limit" (0).
func Parse(rateStr string) (int64, error) {
	rateStr = strings.TrimSpace(rateStr)
	if rateStr == "" {
		return 0, nil
	}

	if val, err := strconv.ParseInt(rateStr, 10, 64); err == nil {
		return val, nil
	}

	if len(rateStr) < 2 {
		return 0, fmt.Errorf("invalid rate format: %s", rateStr)
	}

	upper := strings.ToUpper(rateStr)
	var numStr, suffix string
	if len(upper) >= 3 && (strings.HasSuffix(upper, "KB") || strings.HasSuffix(upper, "MB") ||
		strings.HasSuffix(upper, "GB") || strings.HasSuffix(upper, "TB")) {
		numStr = rateStr[:len(rateStr)-2]
		suffix = upper[len(upper)-2:]
	} else {
		numStr = rateStr[:len(rateStr)-1]
		suffix = upper[len(upper)-1:]
	}

	var baseValue float64
	var err error
	if strings.Contains(numStr, ".") {
		baseValue, err = strconv.ParseFloat(numStr, 64)
	} else {
		var intVal int64
		intVal, err = strconv.ParseInt(numStr, 10, 64)
		baseValue = float64(intVal)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid numeric value in rate: %s", numStr)
	}
	if baseValue < 0 {
		return 0, fmt.Errorf("rate cannot be negative: %f", baseValue)
	}

	var multiplier int64
	switch suffix {
	case "B":
		multiplier = 1
	case "K", "KB":
		multiplier = 1024
	case "M", "MB":
		multiplier = 1024 * 1024
	case "G", "GB":
		multiplier = 1024 * 1024 * 1024
	case "T", "TB":
		multiplier = 1024 * 1024 * 1024 * 1024
	default:
		return 0, fmt.Errorf("unsupported rate suffix: %s (supported: B, K/KB, M/MB, G/GB, T/TB)", suffix)
	}

	result := int64(baseValue * float64(multiplier))
	if result < 0 {
		return 0, fmt.Errorf("rate value overflow")
	}
	return result, nil
}
