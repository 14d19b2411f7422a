// Package resilience provides the circuit breaker and retry policy guarding
// calls to external dependencies.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cryptoganster/cryptoingest/internal/ingest"
)

// ErrCircuitOpen is returned when the breaker rejects a call without invoking
// the operation.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerState labels the breaker's position.
type BreakerState string

// Breaker states.
const (
	StateClosed   BreakerState = "CLOSED"
	StateOpen     BreakerState = "OPEN"
	StateHalfOpen BreakerState = "HALF_OPEN"
)

// BreakerConfig tunes a CircuitBreaker.
type BreakerConfig struct {
	// FailureThreshold is the number of failures inside FailureWindow that
	// trips the breaker.
	FailureThreshold int
	// FailureWindow is the sliding window over which failures count.
	FailureWindow time.Duration
	// ResetTimeout is how long the breaker stays open before probing.
	ResetTimeout time.Duration
	// SuccessThreshold is the number of half-open successes that close the
	// breaker.
	SuccessThreshold int
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.FailureWindow <= 0 {
		c.FailureWindow = time.Minute
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = 30 * time.Second
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 2
	}
	return c
}

// BreakerStats exposes breaker internals for observability.
type BreakerStats struct {
	State         BreakerState
	Failures      int
	SuccessCount  int
	OpenedAt      time.Time
	TotalRejected int64
}

// CircuitBreaker guards one external dependency. Multiple pipeline workers
// share a breaker per dependency, so all state changes happen under the lock.
type CircuitBreaker struct {
	name  string
	cfg   BreakerConfig
	clock ingest.Clock

	mu            sync.Mutex
	state         BreakerState
	failures      []time.Time
	successCount  int
	openedAt      time.Time
	totalRejected int64
}

// NewCircuitBreaker builds a closed breaker.
func NewCircuitBreaker(name string, cfg BreakerConfig, clock ingest.Clock) *CircuitBreaker {
	return &CircuitBreaker{
		name:  name,
		cfg:   cfg.withDefaults(),
		clock: clock,
		state: StateClosed,
	}
}

// Name identifies the protected dependency.
func (b *CircuitBreaker) Name() string {
	return b.name
}

// Execute runs op under the breaker. An open breaker whose reset timeout has
// elapsed moves to half-open first; if it is still open the call is rejected
// with ErrCircuitOpen and op is never invoked.
func (b *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}
	if err := op(ctx); err != nil {
		b.recordFailure()
		return err
	}
	b.recordSuccess()
	return nil
}

func (b *CircuitBreaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	if b.state == StateOpen && now.Sub(b.openedAt) >= b.cfg.ResetTimeout {
		b.state = StateHalfOpen
		b.successCount = 0
	}
	if b.state == StateOpen {
		b.totalRejected++
		return fmt.Errorf("%w: %s until %s", ErrCircuitOpen, b.name,
			b.openedAt.Add(b.cfg.ResetTimeout).Format(time.RFC3339))
	}
	return nil
}

func (b *CircuitBreaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateHalfOpen {
		return
	}
	b.successCount++
	if b.successCount >= b.cfg.SuccessThreshold {
		b.state = StateClosed
		b.successCount = 0
		b.failures = nil
	}
}

func (b *CircuitBreaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	if b.state == StateHalfOpen {
		// A single half-open failure reopens immediately.
		b.open(now)
		return
	}

	b.failures = append(b.failures, now)
	b.prune(now)
	if len(b.failures) >= b.cfg.FailureThreshold {
		b.open(now)
	}
}

func (b *CircuitBreaker) open(now time.Time) {
	b.state = StateOpen
	b.openedAt = now
	b.successCount = 0
	b.failures = nil
}

// prune drops failure timestamps that fell out of the sliding window. Caller
// holds the lock.
func (b *CircuitBreaker) prune(now time.Time) {
	cutoff := now.Add(-b.cfg.FailureWindow)
	kept := b.failures[:0]
	for _, ts := range b.failures {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	b.failures = kept
}

// Stats snapshots the breaker state.
func (b *CircuitBreaker) Stats() BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerStats{
		State:         b.state,
		Failures:      len(b.failures),
		SuccessCount:  b.successCount,
		OpenedAt:      b.openedAt,
		TotalRejected: b.totalRejected,
	}
}

// Reset forces the breaker closed and clears all counters.
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = nil
	b.successCount = 0
	b.openedAt = time.Time{}
	b.totalRejected = 0
}
