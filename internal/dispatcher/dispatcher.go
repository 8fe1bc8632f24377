// Package dispatcher manages task fan-out over the crawl queue.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/crawlkit/crawld/internal/crawl"
	"github.com/crawlkit/crawld/internal/worker"
)

// Dispatcher enqueues crawl tasks and fans queue work out to a pool
// of workers. Dispatch never blocks on task completion.
type Dispatcher struct {
	queue   crawl.Queue
	idGen   crawl.IDGenerator
	clock   crawl.Clock
	workers []*worker.Worker
}

// New creates a Dispatcher.
func New(queue crawl.Queue, idGen crawl.IDGenerator, clock crawl.Clock, workers []*worker.Worker) *Dispatcher {
	return &Dispatcher{
		queue:   queue,
		idGen:   idGen,
		clock:   clock,
		workers: workers,
	}
}

// Run starts all workers and blocks until the context finishes.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	<-ctx.Done()
	wg.Wait()
}

// Dispatch enqueues a fetch task for the crawl id and returns the
// task id. A queue failure propagates to the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, crawlID string) (string, error) {
	taskID, err := d.idGen.NewID()
	if err != nil {
		return "", fmt.Errorf("generate task id: %w", err)
	}
	task := crawl.Task{
		TaskID:    taskID,
		CrawlID:   crawlID,
		Attempt:   1,
		Submitted: d.clock.Now().Unix(),
	}
	if err := d.queue.Enqueue(ctx, task); err != nil {
		return "", fmt.Errorf("queue enqueue: %w", err)
	}
	return taskID, nil
}
