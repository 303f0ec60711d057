// Package cache stores model responses keyed by the exact prompt text.
//
// Three stores share one contract: MemoryStore for tests, SQLiteStore for
// persistence across runs, and LRUStore which keeps recent entries in
// memory in front of another store.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// Store persists prompt/response pairs.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the response cached for key.
	// Returns ErrNotFound if nothing is cached.
	Get(key string) (string, error)

	// Put stores a response. Overwrites an existing entry; last writer wins.
	Put(key, response string) error

	// Delete removes an entry. Returns nil if it doesn't exist.
	Delete(key string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Entry describes a cached response without the response body.
type Entry struct {
	Key       string
	Size      int64
	UpdatedAt time.Time
}

// Sentinel errors for cache operations.
var (
	// ErrNotFound indicates no response is cached for the key.
	ErrNotFound = errors.New("cache entry not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("cache store closed")
)

// Key derives the cache key for a prompt.
func Key(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}
