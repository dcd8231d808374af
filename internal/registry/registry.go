// Package registry provides an ordered listener registry keyed by event
// name. Its lifetime is independent of any connection: the same registry
// keeps delivering across connection teardown and re-establishment.
package registry

import (
	"sync"
)

// Listener is a callback invoked for every dispatched event.
type Listener[T any] func(T)

// Subscription identifies a single registration. Registering the same
// function twice yields two subscriptions and two deliveries per
// dispatch; Unregister removes exactly one.
type Subscription struct {
	event string
	id    uint64
}

// Event returns the event name this subscription is attached to.
func (s Subscription) Event() string { return s.event }

type entry[T any] struct {
	id uint64
	fn Listener[T]
}

// Registry maps event names to ordered listener lists. Delivery order
// equals registration order.
type Registry[T any] struct {
	mu     sync.Mutex
	lists  map[string][]entry[T]
	nextID uint64
}

// New creates an empty registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{
		lists: make(map[string][]entry[T]),
	}
}

// Register appends fn to the listener list for event and returns a
// subscription token for later removal.
func (r *Registry[T]) Register(event string, fn Listener[T]) Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	r.lists[event] = append(r.lists[event], entry[T]{id: r.nextID, fn: fn})
	return Subscription{event: event, id: r.nextID}
}

// Unregister removes the registration identified by sub, preserving the
// order of the remaining listeners. Removing an unknown subscription is
// a no-op; the return value reports whether anything was removed.
func (r *Registry[T]) Unregister(sub Subscription) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.lists[sub.event]
	for i, e := range list {
		if e.id == sub.id {
			r.lists[sub.event] = append(list[:i:i], list[i+1:]...)
			if len(r.lists[sub.event]) == 0 {
				delete(r.lists, sub.event)
			}
			return true
		}
	}
	return false
}

// Dispatch invokes every listener registered for event, in registration
// order, synchronously. Listeners run outside the registry lock so they
// may register or unregister reentrantly. A panicking listener
// propagates to the caller; listeners invoked before it have already
// completed. Returns the number of listeners invoked.
func (r *Registry[T]) Dispatch(event string, v T) int {
	r.mu.Lock()
	snapshot := make([]entry[T], len(r.lists[event]))
	copy(snapshot, r.lists[event])
	r.mu.Unlock()

	for _, e := range snapshot {
		e.fn(v)
	}
	return len(snapshot)
}

// Count returns the number of listeners registered for event.
func (r *Registry[T]) Count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lists[event])
}
