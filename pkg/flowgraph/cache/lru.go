package cache

import (
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRUStore keeps the most recently used responses in memory and reads
// through to a backing store on a miss.
type LRUStore struct {
	front   *lru.Cache[string, string]
	backing Store
}

// NewLRUStore wraps backing with an in-memory tier of size entries.
func NewLRUStore(backing Store, size int) (*LRUStore, error) {
	if backing == nil {
		return nil, errors.New("lru store: nil backing store")
	}
	front, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("lru store: %w", err)
	}
	return &LRUStore{front: front, backing: backing}, nil
}

// Get implements Store.
func (s *LRUStore) Get(key string) (string, error) {
	if v, ok := s.front.Get(key); ok {
		return v, nil
	}
	v, err := s.backing.Get(key)
	if err != nil {
		return "", err
	}
	s.front.Add(key, v)
	return v, nil
}

// Put implements Store.
func (s *LRUStore) Put(key, response string) error {
	if err := s.backing.Put(key, response); err != nil {
		return err
	}
	s.front.Add(key, response)
	return nil
}

// Delete implements Store.
func (s *LRUStore) Delete(key string) error {
	s.front.Remove(key)
	return s.backing.Delete(key)
}

// Resident reports how many entries are held in memory.
func (s *LRUStore) Resident() int {
	return s.front.Len()
}

// Close implements Store.
func (s *LRUStore) Close() error {
	s.front.Purge()
	return s.backing.Close()
}
