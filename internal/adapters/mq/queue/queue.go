// Package queue carries fetch deliveries from the fetching goroutines to the
// single delivery worker.
package queue

import (
	"context"
	"sync"

	"github.com/okian/careconnect/internal/domain/model"
	"github.com/okian/careconnect/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 64
)

// Delivery is the payload type flowing through the queue.
type Delivery = model.Delivery

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a delivery to the queue.
	// Returns false if the queue is full, closed or ctx is done.
	Enqueue(ctx context.Context, d Delivery) bool

	// Dequeue returns a channel that receives deliveries in enqueue order.
	// The channel is closed when the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Delivery

	// Len returns the current number of queued deliveries.
	Len(ctx context.Context) int

	// Close stops accepting deliveries. Queued ones can still be dequeued.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	deliveries chan Delivery
	capacity   int
	mu         sync.RWMutex
	closed     bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.deliveries = make(chan Delivery, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds a delivery to the queue without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, d Delivery) bool { //nolint:gocritic // hugeParam: passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError("closed")
		return false
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError("context_cancelled")
		return false
	}

	select {
	case q.deliveries <- d:
		metrics.UpdateQueueSize(len(q.deliveries))
		return true
	default:
		metrics.RecordQueueEnqueueError("queue_full")
		return false
	}
}

// Dequeue returns a channel that receives deliveries as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Delivery {
	out := make(chan Delivery)
	go func() {
		defer close(out)
		for d := range q.deliveries {
			select {
			case out <- d:
				metrics.UpdateQueueSize(len(q.deliveries))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued deliveries.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.deliveries)
	metrics.UpdateQueueSize(size)
	return size
}

// Close stops the queue. It is safe to call more than once.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.deliveries)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
