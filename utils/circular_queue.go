package utils

import (
	"iter"

	"github.com/acoustrace/acoustrace/oerror"
)

// CircularQueue keeps the most recent items up to a fixed capacity. Appending to a full queue
// drops the oldest item.
type CircularQueue[T any] struct {
	items []T
	head  int
	size  int
}

func NewCircularQueue[T any](capacity int) *CircularQueue[T] {
	return &CircularQueue[T]{items: make([]T, capacity)}
}

// All yields the items from oldest to newest.
func (q *CircularQueue[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for i := range q.size {
			if !yield(q.items[(q.head+i)%len(q.items)]) {
				return
			}
		}
	}
}

// Slice copies the items from oldest to newest.
func (q *CircularQueue[T]) Slice() []T {
	out := make([]T, 0, q.size)
	for v := range q.All() {
		out = append(out, v)
	}
	return out
}

func (q *CircularQueue[T]) Len() int {
	return q.size
}

// Append adds item as the newest entry.
func (q *CircularQueue[T]) Append(item T) error {
	if len(q.items) == 0 {
		return oerror.New("circular queue: append on zero-capacity queue")
	}
	q.items[(q.head+q.size)%len(q.items)] = item
	if q.size == len(q.items) {
		q.head = (q.head + 1) % len(q.items)
	} else {
		q.size++
	}
	return nil
}
