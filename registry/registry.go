// Package registry implements the mutable tool, prompt and resource catalogs.
// Catalogs preserve insertion order for stable pagination and broadcast a
// list_changed notification to connected clients on every mutation.
package registry

import (
	"sync"

	"github.com/scrivener-app/scrivener/cursor"
)

// Broadcaster delivers a fire-and-forget notification to every connected
// client. Implementations must never block the caller on slow or dead peers.
type Broadcaster interface {
	Broadcast(method string)
}

// BroadcasterFunc adapts a function to the Broadcaster interface.
type BroadcasterFunc func(method string)

func (f BroadcasterFunc) Broadcast(method string) { f(method) }

// Registry is a concurrency-safe catalog keyed by name. Iteration order is
// insertion order; re-upserting an existing key keeps its position.
type Registry[T any] struct {
	mu    sync.RWMutex
	order []string
	items map[string]T

	notifyMethod string
	broadcaster  Broadcaster
}

// New constructs a registry that announces mutations with the given
// notification method. The broadcaster may be nil (mutations stay silent) and
// can be attached later once transports exist.
func New[T any](notifyMethod string, b Broadcaster) *Registry[T] {
	return &Registry[T]{
		items:        make(map[string]T),
		notifyMethod: notifyMethod,
		broadcaster:  b,
	}
}

// SetBroadcaster attaches the notification fan-out. Registries are typically
// built before the transports that carry their notifications.
func (r *Registry[T]) SetBroadcaster(b Broadcaster) {
	r.mu.Lock()
	r.broadcaster = b
	r.mu.Unlock()
}

// Upsert inserts or replaces the item stored under key and queues a change
// notification. Replacing an existing key is an update, never an error.
func (r *Registry[T]) Upsert(key string, item T) T {
	r.mu.Lock()
	if _, exists := r.items[key]; !exists {
		r.order = append(r.order, key)
	}
	r.items[key] = item
	b := r.broadcaster
	r.mu.Unlock()

	r.notify(b)
	return item
}

// Remove deletes the item stored under key. It reports false for an absent
// key and emits no notification in that case.
func (r *Registry[T]) Remove(key string) bool {
	r.mu.Lock()
	if _, exists := r.items[key]; !exists {
		r.mu.Unlock()
		return false
	}
	delete(r.items, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	b := r.broadcaster
	r.mu.Unlock()

	r.notify(b)
	return true
}

// Get returns the item stored under key.
func (r *Registry[T]) Get(key string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[key]
	return item, ok
}

// Snapshot returns the items in insertion order. The slice is a copy; the
// caller may hold it across suspension points.
func (r *Registry[T]) Snapshot() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]T, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.items[k])
	}
	return out
}

// List returns one page of items starting at the given cursor.
func (r *Registry[T]) List(cur string, pageSize int) cursor.Page[T] {
	return cursor.Paginate(r.Snapshot(), cur, pageSize)
}

// Len returns the number of stored items.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// notify fans the change out without blocking the mutating call. Broadcast
// failures are the broadcaster's problem; they never surface here.
func (r *Registry[T]) notify(b Broadcaster) {
	if b == nil || r.notifyMethod == "" {
		return
	}
	go b.Broadcast(r.notifyMethod)
}
