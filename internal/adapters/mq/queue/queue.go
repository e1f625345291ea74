// Package queue buffers accepted activity events between the HTTP intake and
// the worker pool.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/trustmatch/internal/domain/model"
	"github.com/okian/trustmatch/pkg/metrics"
)

const defaultCapacity = 10000

// Event is the payload type flowing through the queue.
type Event = model.Activity

// Queue is a bounded FIFO of accepted activity.
type Queue interface {
	// Enqueue adds e without blocking. It reports false when the queue is
	// full, closed or ctx is done.
	Enqueue(ctx context.Context, e Event) bool

	// Dequeue streams queued events. The channel closes once the queue is
	// closed and empty, or when ctx is done.
	Dequeue(ctx context.Context) <-chan Event

	Len(ctx context.Context) int
	Capacity() int

	// Close stops intake. Queued events can still be dequeued.
	Close() error
	IsClosed() bool
}

// InMemoryQueue is a Queue over a buffered channel sized to its capacity.
type InMemoryQueue struct {
	events chan Event

	// mu orders Enqueue against Close so nothing is sent on a closed channel.
	mu     sync.RWMutex
	closed bool
}

var _ Queue = (*InMemoryQueue)(nil)

// NewInMemoryQueue creates a queue holding at most WithCapacity events.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	o := options{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(&o)
	}
	q := &InMemoryQueue{events: make(chan Event, o.capacity)}

	metrics.UpdateQueueCapacity(o.capacity)
	q.publishSize()
	return q
}

// Enqueue implements Queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, e Event) bool { //nolint:gocritic // hugeParam: sent by value over the channel
	start := time.Now()
	defer func() {
		metrics.RecordQueueProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if ctx.Err() != nil {
		return q.reject("context_cancelled")
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return q.reject("closed")
	}

	select {
	case q.events <- e:
		metrics.RecordQueueEnqueue()
		q.publishSize()
		return true
	default:
		return q.reject("queue_full")
	}
}

func (q *InMemoryQueue) reject(reason string) bool {
	metrics.RecordQueueEnqueueError()
	metrics.RecordErrorByComponent("queue", reason)
	return false
}

func (q *InMemoryQueue) publishSize() {
	size := len(q.events)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(cap(q.events)))
}

// Dequeue implements Queue. Several consumers may call it; each event is
// delivered once.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			var (
				e  Event
				ok bool
			)
			select {
			case <-ctx.Done():
				return
			case e, ok = <-q.events:
				if !ok {
					return
				}
			}
			select {
			case out <- e:
				metrics.RecordQueueDequeue()
				q.publishSize()
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len implements Queue.
func (q *InMemoryQueue) Len(_ context.Context) int {
	q.publishSize()
	return len(q.events)
}

// Capacity implements Queue.
func (q *InMemoryQueue) Capacity() int { return cap(q.events) }

// Close implements Queue. It is safe to call more than once.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.events)
	}
	return nil
}

// IsClosed implements Queue.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
