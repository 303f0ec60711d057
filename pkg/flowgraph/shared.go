package flowgraph

import (
	"fmt"
	"sync"

	fgerrors "github.com/shroroh/teacherflow/pkg/flowgraph/errors"
)

// CallerOwner owns keys seeded by the caller before a run starts.
const CallerOwner = "caller"

// Shared is the mutable store a run threads through its stages.
// It is created once per run and passed by pointer; it is never copied.
//
// Every key has an owner: whoever wrote it first. Only the owner may
// overwrite a key. Shared is safe for concurrent use, although a single
// run only touches it from one goroutine at a time.
type Shared struct {
	mu      sync.RWMutex
	entries map[string]sharedEntry
	order   []string
}

type sharedEntry struct {
	value any
	owner string
}

// NewShared creates an empty shared store.
func NewShared() *Shared {
	return &Shared{entries: make(map[string]sharedEntry)}
}

// Has reports whether the named key has been written.
func (s *Shared) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[name]
	return ok
}

// Owner returns the writer that owns the named key.
func (s *Shared) Owner(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[name]
	return e.owner, ok
}

// Keys returns key names in the order they were first written.
func (s *Shared) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of keys written.
func (s *Shared) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Snapshot returns the values owned by owner, keyed by name.
func (s *Shared) Snapshot(owner string) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any)
	for name, e := range s.entries {
		if e.owner == owner {
			out[name] = e.value
		}
	}
	return out
}

func (s *Shared) load(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[name]
	return e.value, ok
}

func (s *Shared) store(name, owner string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[name]; ok {
		if e.owner != owner {
			return fmt.Errorf("%w: %q is owned by %s, not %s", ErrKeyOwned, name, e.owner, owner)
		}
		s.entries[name] = sharedEntry{value: value, owner: owner}
		return nil
	}

	s.entries[name] = sharedEntry{value: value, owner: owner}
	s.order = append(s.order, name)
	return nil
}

// Key is a typed handle for one named entry of a Shared store.
//
// Example:
//
//	var Profile = flowgraph.NewKey[StudentProfile]("student_profile")
//
//	profile, err := Profile.Get(shared)
type Key[T any] struct {
	name string
}

// NewKey creates a key handle. Panics if name is empty.
func NewKey[T any](name string) Key[T] {
	if name == "" {
		panic("flowgraph: key name cannot be empty")
	}
	return Key[T]{name: name}
}

// Name returns the key's name.
func (k Key[T]) Name() string {
	return k.name
}

// String implements fmt.Stringer.
func (k Key[T]) String() string {
	return k.name
}

// Get reads the key. It fails with MissingInputError when the key was never
// written or holds a value of another type.
func (k Key[T]) Get(s *Shared) (T, error) {
	var zero T
	if s == nil {
		return zero, &fgerrors.MissingInputError{Key: k.name, Detail: "no shared context"}
	}

	raw, ok := s.load(k.name)
	if !ok {
		return zero, &fgerrors.MissingInputError{Key: k.name}
	}

	v, ok := raw.(T)
	if !ok {
		return zero, &fgerrors.MissingInputError{
			Key:    k.name,
			Detail: fmt.Sprintf("holds %T, want %T", raw, zero),
		}
	}
	return v, nil
}

// GetOr reads the key, returning def when it was never written.
// A value of the wrong type is still a MissingInputError.
func (k Key[T]) GetOr(s *Shared, def T) (T, error) {
	if s == nil || !s.Has(k.name) {
		return def, nil
	}
	return k.Get(s)
}

// Put writes the key on behalf of owner. The first writer owns the key;
// anyone else gets ErrKeyOwned.
func (k Key[T]) Put(s *Shared, owner string, v T) error {
	return s.store(k.name, owner, v)
}

// Seed writes the key on behalf of the caller.
func (k Key[T]) Seed(s *Shared, v T) error {
	return k.Put(s, CallerOwner, v)
}
