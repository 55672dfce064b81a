package tracker

import "github.com/adambagley/frost/verr"

// Queue is a bounded FIFO of predicted results for one observable channel.
// It has one producer, the driver, and one consumer, the channel's monitor.
type Queue[T any] struct {
	name string
	ch   chan T
}

// NewQueue creates a queue named after its channel holding up to depth
// entries.
func NewQueue[T any](name string, depth int) *Queue[T] {
	return &Queue[T]{name: name, ch: make(chan T, depth)}
}

// Name returns the channel name.
func (q *Queue[T]) Name() string {
	return q.name
}

// Push appends v. A full queue means the hardware stopped producing results
// for this channel, which is reported as a mismatch.
func (q *Queue[T]) Push(v T) error {
	select {
	case q.ch <- v:
		return nil
	default:
		return &verr.MismatchError{
			Channel:  q.name,
			Expected: uint64(len(q.ch)),
			Missing:  true,
		}
	}
}

// TryPop removes the oldest entry without blocking.
func (q *Queue[T]) TryPop() (T, bool) {
	select {
	case v := <-q.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// Len returns the number of queued entries.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}

// Cap returns the queue depth.
func (q *Queue[T]) Cap() int {
	return cap(q.ch)
}
