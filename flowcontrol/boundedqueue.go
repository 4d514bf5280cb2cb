package flowcontrol

import (
	"errors"
	"fmt"
)

// ErrTooManyOutstanding is returned when a transaction is offered to a queue
// that is already full. The transaction is not dropped; the caller still owns
// it and must back off.
var ErrTooManyOutstanding = errors.New("too many outstanding transactions")

// A BoundedQueue is a FIFO queue with a fixed capacity.
type BoundedQueue[T any] struct {
	name     string
	capacity int
	elements []T
}

// NewBoundedQueue creates a queue.
func NewBoundedQueue[T any](name string, capacity int) *BoundedQueue[T] {
	return &BoundedQueue[T]{name: name, capacity: capacity}
}

// CanPush tells if the queue has room for another element.
func (q *BoundedQueue[T]) CanPush() bool {
	return len(q.elements) < q.capacity
}

// Push appends an element. It fails with ErrTooManyOutstanding if the queue
// is full.
func (q *BoundedQueue[T]) Push(e T) error {
	if !q.CanPush() {
		return fmt.Errorf("%s holds %d: %w",
			q.name, q.capacity, ErrTooManyOutstanding)
	}

	q.elements = append(q.elements, e)

	return nil
}

// Pop removes and returns the oldest element.
func (q *BoundedQueue[T]) Pop() (T, bool) {
	var zero T

	if len(q.elements) == 0 {
		return zero, false
	}

	e := q.elements[0]
	q.elements[0] = zero
	q.elements = q.elements[1:]

	return e, true
}

// Peek returns the oldest element without removing it.
func (q *BoundedQueue[T]) Peek() (T, bool) {
	if len(q.elements) == 0 {
		var zero T
		return zero, false
	}

	return q.elements[0], true
}

// Len returns the number of queued elements.
func (q *BoundedQueue[T]) Len() int {
	return len(q.elements)
}

// Capacity returns the capacity of the queue.
func (q *BoundedQueue[T]) Capacity() int {
	return q.capacity
}
