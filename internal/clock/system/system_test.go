// Package system exercises the real-time clock adapter.
package system

import (
	"testing"
	"time"
)

// TestClockNow checks timestamps are current, UTC, and non-decreasing.
func TestClockNow(t *testing.T) {
	t.Parallel()

	clk := New()

	lower := time.Now().UTC().Add(-time.Second)
	first := clk.Now()
	second := clk.Now()
	upper := time.Now().UTC().Add(time.Second)

	if first.Location() != time.UTC {
		t.Fatalf("expected UTC timestamps, got location %v", first.Location())
	}
	if first.Before(lower) || second.After(upper) {
		t.Fatalf("expected timestamps within [%v, %v], got %v and %v", lower, upper, first, second)
	}
	if second.Before(first) {
		t.Fatalf("expected %v to be at or after %v", second, first)
	}
}
