// Package handles keeps track of values whose ownership has been handed to a caller
// outside the Go memory-management domain. Every value is given out under an explicit
// handle and stays reachable from Go until the caller releases it exactly once.
package handles

import (
	"fmt"
	"sync"

	"github.com/patric-chuzhbe/nativebridge/internal/models"
)

// Handle identifies a value owned by a Registry. The zero Handle is never issued.
type Handle uint64

// Registry maps live handles to the values they own.
// Handles are issued in increasing order, which lets Release tell a double
// release apart from a handle that was never issued.
type Registry[V any] struct {
	mu     sync.Mutex
	last   Handle
	values map[Handle]V
}

// NewRegistry returns an empty Registry.
func NewRegistry[V any]() *Registry[V] {
	return &Registry[V]{
		values: map[Handle]V{},
	}
}

// Acquire takes ownership of v and returns the handle the caller must later release.
func (r *Registry[V]) Acquire(v V) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.last++
	r.values[r.last] = v

	return r.last
}

// Get returns the value owned under h without releasing it.
func (r *Registry[V]) Get(h Handle) (V, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.values[h]
	if !ok {
		var zero V
		return zero, r.missing(h)
	}

	return v, nil
}

// Release removes h from the registry and returns the value it owned.
func (r *Registry[V]) Release(h Handle) (V, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.values[h]
	if !ok {
		var zero V
		return zero, r.missing(h)
	}
	delete(r.values, h)

	return v, nil
}

// Len reports the number of live handles.
func (r *Registry[V]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.values)
}

// missing must be called with r.mu held.
func (r *Registry[V]) missing(h Handle) error {
	switch {
	case h == 0:
		return models.ErrNullHandle
	case h <= r.last:
		return fmt.Errorf("handle %d: %w", h, models.ErrAlreadyReleased)
	default:
		return fmt.Errorf("handle %d: %w", h, models.ErrUnknownHandle)
	}
}

// Ledger is a set of live keys, typically addresses of allocations made outside the Go heap.
// Addresses may be reused by the allocator once freed, so a Ledger cannot distinguish a
// double release from a foreign key; both are reported as models.ErrUnknownHandle.
type Ledger[K comparable] struct {
	mu   sync.Mutex
	live map[K]struct{}
}

// NewLedger returns an empty Ledger.
func NewLedger[K comparable]() *Ledger[K] {
	return &Ledger[K]{
		live: map[K]struct{}{},
	}
}

// Track records k as live.
func (l *Ledger[K]) Track(k K) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.live[k] = struct{}{}
}

// Forget removes k. It fails when k is not live, in which case the caller must not free it.
func (l *Ledger[K]) Forget(k K) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.live[k]; !ok {
		return fmt.Errorf("%v: %w", k, models.ErrUnknownHandle)
	}
	delete(l.live, k)

	return nil
}

// Live reports whether k is currently tracked.
func (l *Ledger[K]) Live(k K) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.live[k]

	return ok
}

// Len reports the number of live keys.
func (l *Ledger[K]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.live)
}
