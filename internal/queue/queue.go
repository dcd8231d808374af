// Package queue provides a bounded FIFO ring buffer with a drop-oldest
// admission policy, used to hold outbound payloads while no connection
// is open.
package queue

import (
	"sync"
)

// Ring is a thread-safe bounded FIFO. When full, pushing evicts the
// oldest element to admit the new one.
type Ring[T any] struct {
	mu       sync.Mutex
	buf      []T
	head     int // read position
	tail     int // write position
	count    int
	capacity int

	// Stats
	totalPushed  int64
	totalDropped int64
}

// NewRing creates a ring with the given capacity.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{
		buf:      make([]T, capacity),
		capacity: capacity,
	}
}

// Push appends an item. If the ring is full, the oldest item is evicted
// first; Push returns true when an eviction happened.
func (r *Ring[T]) Push(item T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	dropped := false
	if r.count == r.capacity {
		// Evict oldest
		var zero T
		r.buf[r.head] = zero
		r.head = (r.head + 1) % r.capacity
		r.count--
		r.totalDropped++
		dropped = true
	}

	r.buf[r.tail] = item
	r.tail = (r.tail + 1) % r.capacity
	r.count++
	r.totalPushed++
	return dropped
}

// Drain removes and returns all items in FIFO order, leaving the ring
// empty. The removal is atomic with respect to concurrent Push calls.
func (r *Ring[T]) Drain() []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == 0 {
		return nil
	}

	result := make([]T, r.count)
	for i := 0; i < len(result); i++ {
		result[i] = r.buf[r.head]
		var zero T
		r.buf[r.head] = zero
		r.head = (r.head + 1) % r.capacity
	}
	r.count = 0
	r.head = 0
	r.tail = 0
	return result
}

// Clear discards all items.
func (r *Ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.buf {
		var zero T
		r.buf[i] = zero
	}
	r.head = 0
	r.tail = 0
	r.count = 0
}

// Len returns the current number of items.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int {
	return r.capacity
}

// Stats returns cumulative counters.
func (r *Ring[T]) Stats() RingStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RingStats{
		Count:        r.count,
		Capacity:     r.capacity,
		TotalPushed:  r.totalPushed,
		TotalDropped: r.totalDropped,
	}
}

// RingStats contains ring counters.
type RingStats struct {
	Count        int
	Capacity     int
	TotalPushed  int64
	TotalDropped int64
}
