package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/cryptoganster/cryptoingest/internal/ingest"
)

// Dispatcher fans collected-content facts out to a pool of workers.
type Dispatcher struct {
	queue   ingest.Queue
	workers []*Worker
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(queue ingest.Queue, workers []*Worker) *Dispatcher {
	return &Dispatcher{
		queue:   queue,
		workers: workers,
	}
}

// Run starts all workers and blocks until they stop, either because the
// context finished or because the queue was closed and drained.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	wg.Wait()
}

// Enqueue proxies to the underlying queue.
func (d *Dispatcher) Enqueue(ctx context.Context, fact ingest.ContentCollected) error {
	if err := d.queue.Enqueue(ctx, fact); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}
