package limiter

import (
	"testing"
	"time"
)

func TestTokenBucket(t *testing.T) {
	// Rate: 100 slots per second
	rate := 100.0
	tb := NewTokenBucket(rate, 10) // Burst 10

	start := time.Now()
	count := 0

	// Consume 110 tokens. Initial 10 are free (burst), the remaining 100
	// take approximately 1 second.
	for i := 0; i < 11; i++ {
		tb.Wait(10)
		count += 10
	}

	elapsed := time.Since(start).Seconds()

	if count != 110 {
		t.Errorf("Expected 110 items, got %d", count)
	}

	// We expect roughly 1.0 seconds. Allow slight variance.
	if elapsed < 0.9 || elapsed > 1.2 {
		t.Errorf("Rate limit failed. Expected ~1.0s, took %f", elapsed)
	}
}

func TestTokenBucketBurstIsFree(t *testing.T) {
	tb := NewTokenBucket(10, 64)

	start := time.Now()
	for i := 0; i < 64; i++ {
		tb.Wait(1)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("burst consumption should not block, took %v", elapsed)
	}
}
