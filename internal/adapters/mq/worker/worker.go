// Package worker runs the delivery loop: a single goroutine that takes fetch
// deliveries off the queue and applies them to dashboard state one at a time.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/careconnect/internal/adapters/mq/queue"
	"github.com/okian/careconnect/pkg/logger"
)

// Delivery abstracts what the worker reads off the queue.
type Delivery = queue.Delivery

// Applier commits one delivery to state. The worker never calls Apply
// concurrently, so an Applier may rely on being the single writer.
type Applier interface {
	Apply(ctx context.Context, d Delivery) error
}

// Queue defines how the worker receives deliveries.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Delivery
}

// Worker drains a queue into an Applier.
type Worker interface {
	// Run processes deliveries until ctx is canceled, Shutdown is called or
	// the queue is closed.
	Run(ctx context.Context)

	// Shutdown stops the worker and waits for Run to return.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue   Queue
	applier Applier
	name    string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, applier Applier, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		applier:  applier,
		name:     "delivery-worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get()
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	deliveries := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			if err := w.process(ctx, d); err != nil {
				w.logger.Error(ctx, "error applying delivery",
					logger.String("section", string(d.Section)),
					logger.String("cycle_id", d.CycleID),
					logger.Error(err))
			}
		}
	}
}

// Shutdown signals the loop to stop and waits for it or for ctx.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed once Run has returned.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) process(ctx context.Context, d Delivery) (err error) { //nolint:gocritic // hugeParam: passed by value for channel semantics
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrApplyPanicked, r)
		}
		w.logger.Debug(ctx, "delivery processed",
			logger.String("section", string(d.Section)),
			logger.Uint64("generation", d.Generation),
			logger.Duration("took", time.Since(start)))
	}()
	return w.applier.Apply(ctx, d)
}
