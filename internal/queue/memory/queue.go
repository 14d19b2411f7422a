// Package memory provides the in-process queue used for local development
// and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/cryptoganster/cryptoingest/internal/ingest"
)

// ErrQueueClosed is returned by Dequeue after Close drains the queue.
var ErrQueueClosed = ingest.ErrQueueClosed

// Queue is a bounded in-memory queue of collected-content facts with
// context-aware operations.
type Queue struct {
	ch     chan ingest.ContentCollected
	mu     sync.RWMutex
	closed bool
}

// NewQueue constructs a queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{
		ch: make(chan ingest.ContentCollected, capacity),
	}
}

// Enqueue pushes a fact into the queue or returns if the context ends.
// After Close it returns ErrQueueClosed. The read lock is held across the
// send so Close cannot race a producer onto the closed channel.
func (q *Queue) Enqueue(ctx context.Context, fact ingest.ContentCollected) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- fact:
		return nil
	}
}

// Dequeue pops the next fact, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (ingest.ContentCollected, error) {
	select {
	case <-ctx.Done():
		return ingest.ContentCollected{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case fact, ok := <-q.ch:
		if !ok {
			return ingest.ContentCollected{}, ErrQueueClosed
		}
		return fact, nil
	}
}

// Close closes the underlying channel for shutdown. Pending facts remain
// dequeueable until drained.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}
