// Package dispatch provides the bounded in-process handoff between the
// goroutines that produce domain values and the single task that consumes
// them.
package dispatch

import (
	"context"
	"sync"

	acserrors "github.com/jdalberg/acs/internal/runtime/errors"
)

// Queue is a bounded FIFO with many senders and one receiver.
//
// Two shutdown signals exist. Close is called by the owner once no more
// values will be sent; the receiver keeps draining until the queue is empty.
// Detach is called by the receiver when it stops for good; pending and
// future sends fail immediately with ErrDispatchClosed.
type Queue[T any] struct {
	items chan T

	closed     chan struct{}
	closeOnce  sync.Once
	detached   chan struct{}
	detachOnce sync.Once
}

// New panics when capacity is not positive.
func New[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		panic("dispatch: capacity must be positive")
	}
	return &Queue[T]{
		items:    make(chan T, capacity),
		closed:   make(chan struct{}),
		detached: make(chan struct{}),
	}
}

// Send blocks until v is queued, the queue shuts down, or ctx ends.
func (q *Queue[T]) Send(ctx context.Context, v T) error {
	select {
	case <-q.detached:
		return acserrors.ErrDispatchClosed
	case <-q.closed:
		return acserrors.ErrDispatchClosed
	default:
	}

	select {
	case q.items <- v:
		return nil
	case <-q.detached:
		return acserrors.ErrDispatchClosed
	case <-q.closed:
		return acserrors.ErrDispatchClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive returns the next value. After Close it drains what is left and
// then returns ErrDispatchClosed.
func (q *Queue[T]) Receive(ctx context.Context) (T, error) {
	var zero T
	select {
	case v := <-q.items:
		return v, nil
	case <-q.closed:
		select {
		case v := <-q.items:
			return v, nil
		default:
			return zero, acserrors.ErrDispatchClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Items exposes the receive side for use in a select statement. It is never
// closed; watch Done for shutdown.
func (q *Queue[T]) Items() <-chan T {
	return q.items
}

// Done is closed by Close.
func (q *Queue[T]) Done() <-chan struct{} {
	return q.closed
}

// Close stops accepting values. Values already queued stay receivable.
func (q *Queue[T]) Close() {
	q.closeOnce.Do(func() { close(q.closed) })
}

// Detach marks the receiver as gone.
func (q *Queue[T]) Detach() {
	q.detachOnce.Do(func() { close(q.detached) })
}

func (q *Queue[T]) Detached() bool {
	select {
	case <-q.detached:
		return true
	default:
		return false
	}
}

func (q *Queue[T]) Len() int {
	return len(q.items)
}

func (q *Queue[T]) Cap() int {
	return cap(q.items)
}
