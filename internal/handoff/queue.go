// ABOUTME: Bounded single-producer single-consumer hand-off queue
// ABOUTME: Non-blocking put for the network side, blocking get for the consumer
package handoff

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var (
	// ErrQueueFull is returned by TryPut when the queue is at capacity.
	ErrQueueFull = errors.New("handoff: queue full")

	// ErrClosed is returned once the queue has been closed.
	ErrClosed = errors.New("handoff: queue closed")
)

// Queue is a bounded FIFO between one producer and one consumer.
type Queue[T any] struct {
	items chan T
	done  chan struct{}

	closeOnce sync.Once
	accepted  atomic.Uint64
	dropped   atomic.Uint64
}

// New creates a queue holding at most capacity items. Capacity below one is
// raised to one.
func New[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{
		items: make(chan T, capacity),
		done:  make(chan struct{}),
	}
}

// TryPut enqueues item without blocking. A full queue returns ErrQueueFull
// and leaves the queued items as they were.
func (q *Queue[T]) TryPut(item T) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}

	select {
	case q.items <- item:
		q.accepted.Add(1)
		return nil
	default:
		q.dropped.Add(1)
		return ErrQueueFull
	}
}

// Get blocks until an item is available, the queue is closed or ctx is done.
// Items queued before Close are still returned.
func (q *Queue[T]) Get(ctx context.Context) (T, error) {
	var zero T

	select {
	case item := <-q.items:
		return item, nil
	default:
	}

	select {
	case item := <-q.items:
		return item, nil
	case <-q.done:
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	return len(q.items)
}

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int {
	return cap(q.items)
}

// Accepted returns how many items TryPut enqueued.
func (q *Queue[T]) Accepted() uint64 {
	return q.accepted.Load()
}

// Dropped returns how many items TryPut refused because the queue was full.
func (q *Queue[T]) Dropped() uint64 {
	return q.dropped.Load()
}

// Close wakes a blocked Get and makes later TryPut calls fail. Safe to call
// more than once.
func (q *Queue[T]) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
	})
}
