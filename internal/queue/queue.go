package queue

import (
	"sync"
)

// Queue is a generic thread-safe queue.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
}

// New creates a new empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{
		items: make([]T, 0),
	}
}

// Push appends items to the queue.
func (q *Queue[T]) Push(items ...T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
}

// Len returns the number of items in the queue.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Empty returns true if the queue has no items.
func (q *Queue[T]) Empty() bool {
	return q.Len() == 0
}

// GetAndEmpty returns all items and clears the queue.
func (q *Queue[T]) GetAndEmpty() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	result := q.items
	q.items = make([]T, 0, cap(q.items))
	return result
}

// Batcher collects items and hands them to flush in groups of size.
type Batcher[T any] struct {
	q     *Queue[T]
	size  int
	flush func([]T) error

	mu sync.Mutex // serializes flushes
}

// NewBatcher returns a batcher. size < 1 is treated as 1.
func NewBatcher[T any](size int, flush func([]T) error) *Batcher[T] {
	if size < 1 {
		size = 1
	}
	return &Batcher[T]{q: New[T](), size: size, flush: flush}
}

// Add queues items and flushes when a full batch is waiting.
func (b *Batcher[T]) Add(items ...T) error {
	b.q.Push(items...)
	if b.q.Len() < b.size {
		return nil
	}
	return b.Flush()
}

// Flush hands every queued item to the flush function.
func (b *Batcher[T]) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	items := b.q.GetAndEmpty()
	if len(items) == 0 {
		return nil
	}
	return b.flush(items)
}

// Pending returns the number of queued items.
func (b *Batcher[T]) Pending() int {
	return b.q.Len()
}
