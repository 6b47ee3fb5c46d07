// Package queue provides the task queue shared between submitting
// goroutines and the runner goroutine.
package queue

import (
	"errors"
	"sync"
)

// ErrClosed is returned by Push once the queue has accepted its final item.
var ErrClosed = errors.New("queue: closed")

// Queue is an unbounded FIFO with any number of producers and a single
// consumer.
//
// All items pass through one mutex, so the order Pop returns them in is a
// total order across every producer, not only per producer. Producers never
// block on a full queue; the consumer blocks while the queue is empty.
//
// Thread safety: Queue is safe for concurrent use.
type Queue[T any] struct {
	mu       sync.Mutex
	notEmpty sync.Cond

	// items[head:] are pending. The backing array is reused once drained.
	items []T
	head  int

	closed bool
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	q := &Queue[T]{}
	q.notEmpty.L = &q.mu
	return q
}

// Push appends v. It returns ErrClosed if PushLast has already been called.
func (q *Queue[T]) Push(v T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, v)
	q.mu.Unlock()
	q.notEmpty.Signal()
	return nil
}

// PushLast appends v and closes the queue in the same critical section, so no
// other item can be ordered after v.
func (q *Queue[T]) PushLast(v T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, v)
	q.closed = true
	q.mu.Unlock()
	q.notEmpty.Signal()
	return nil
}

// Pop removes and returns the oldest item, blocking while the queue is empty.
// It returns false only when the queue is closed and fully drained.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.head == len(q.items) {
		if q.closed {
			var zero T
			return zero, false
		}
		q.notEmpty.Wait()
	}
	v := q.items[q.head]
	var zero T
	q.items[q.head] = zero
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	return v, true
}

// Len returns the number of pending items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Closed reports whether the queue has stopped accepting items.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
