package registry

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
)

// Registry is a thread-safe set of named values, such as provider or
// output-format factories.
type Registry[K cmp.Ordered, V any] struct {
	mu      sync.RWMutex
	kind    string
	entries map[K]V
}

// New creates an empty registry. kind names the entries in error messages
// ("provider", "format").
func New[K cmp.Ordered, V any](kind string) *Registry[K, V] {
	return &Registry[K, V]{
		kind:    kind,
		entries: make(map[K]V),
	}
}

// Register adds or replaces a value.
func (r *Registry[K, V]) Register(key K, value V) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = value
}

// Get returns the value for a key and whether it exists.
func (r *Registry[K, V]) Get(key K) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[key]
	return v, ok
}

// Lookup is Get with an error listing the known keys on a miss.
func (r *Registry[K, V]) Lookup(key K) (V, error) {
	if v, ok := r.Get(key); ok {
		return v, nil
	}
	var zero V
	return zero, &UnknownError[K]{Kind: r.kind, Key: key, Known: r.Keys()}
}

// Has returns true if the key exists in the registry.
func (r *Registry[K, V]) Has(key K) bool {
	_, ok := r.Get(key)
	return ok
}

// Keys returns all keys in ascending order.
func (r *Registry[K, V]) Keys() []K {
	r.mu.RLock()
	keys := make([]K, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	r.mu.RUnlock()
	slices.Sort(keys)
	return keys
}

// Len returns the number of entries in the registry.
func (r *Registry[K, V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// UnknownError reports a lookup for a key that was never registered.
type UnknownError[K cmp.Ordered] struct {
	Kind  string
	Key   K
	Known []K
}

// Error implements the error interface.
func (e *UnknownError[K]) Error() string {
	kind := e.Kind
	if kind == "" {
		kind = "entry"
	}
	return fmt.Sprintf("unknown %s %v (known: %v)", kind, e.Key, e.Known)
}
