package cache_test

import (
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shroroh/teacherflow/pkg/flowgraph/cache"
)

// storeFactory creates a store instance for testing.
type storeFactory func(t *testing.T) cache.Store

// storeContractTest runs contract tests against any Store implementation.
func storeContractTest(t *testing.T, name string, factory storeFactory) {
	t.Run(name+"/Put_and_Get", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Put("k1", "```yaml\na: 1\n```"))

		got, err := store.Get("k1")
		require.NoError(t, err)
		assert.Equal(t, "```yaml\na: 1\n```", got)
	})

	t.Run(name+"/Get_NotFound", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		_, err := store.Get("missing")
		assert.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run(name+"/Put_Overwrite", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Put("k1", "first"))
		require.NoError(t, store.Put("k1", "second"))

		got, err := store.Get("k1")
		require.NoError(t, err)
		assert.Equal(t, "second", got)
	})

	t.Run(name+"/Delete", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Put("k1", "v"))
		require.NoError(t, store.Delete("k1"))
		require.NoError(t, store.Delete("never-existed"))

		_, err := store.Get("k1")
		assert.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run(name+"/Unicode", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		text := "### Итоговое заключение учителя для Мария Петрова"
		require.NoError(t, store.Put(cache.Key("prompt"), text))

		got, err := store.Get(cache.Key("prompt"))
		require.NoError(t, err)
		assert.Equal(t, text, got)
	})

	t.Run(name+"/Closed", func(t *testing.T) {
		store := factory(t)
		require.NoError(t, store.Close())

		_, err := store.Get("k1")
		assert.ErrorIs(t, err, cache.ErrStoreClosed)
		assert.ErrorIs(t, store.Put("k1", "v"), cache.ErrStoreClosed)
	})

	t.Run(name+"/Concurrent", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		const workers = 20
		var wg sync.WaitGroup
		wg.Add(workers)
		for i := 0; i < workers; i++ {
			go func(id int) {
				defer wg.Done()
				key := "k" + strconv.Itoa(id%5)
				for j := 0; j < 10; j++ {
					_ = store.Put(key, "v")
					_, _ = store.Get(key)
				}
			}(i)
		}
		wg.Wait()

		got, err := store.Get("k0")
		require.NoError(t, err)
		assert.Equal(t, "v", got)
	})
}

func TestMemoryStore(t *testing.T) {
	storeContractTest(t, "MemoryStore", func(t *testing.T) cache.Store {
		return cache.NewMemoryStore()
	})
}

func TestSQLiteStore(t *testing.T) {
	storeContractTest(t, "SQLiteStore", func(t *testing.T) cache.Store {
		store, err := cache.NewSQLiteStore(":memory:")
		require.NoError(t, err)
		return store
	})
}

func TestLRUStore(t *testing.T) {
	storeContractTest(t, "LRUStore", func(t *testing.T) cache.Store {
		store, err := cache.NewLRUStore(cache.NewMemoryStore(), 8)
		require.NoError(t, err)
		return store
	})
}

func TestSQLiteStore_Persistence(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")

	store1, err := cache.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, store1.Put(cache.Key("hello"), "world"))
	require.NoError(t, store1.Close())

	store2, err := cache.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store2.Close()

	got, err := store2.Get(cache.Key("hello"))
	require.NoError(t, err)
	assert.Equal(t, "world", got)

	entries, err := store2.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(5), entries[0].Size)
}

func TestSQLiteStore_InvalidPath(t *testing.T) {
	_, err := cache.NewSQLiteStore("/nonexistent/path/cache.db")
	assert.Error(t, err)
}

func TestSQLiteStore_CloseIdempotent(t *testing.T) {
	store, err := cache.NewSQLiteStore(":memory:")
	require.NoError(t, err)

	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}

func TestLRUStore_ReadThrough(t *testing.T) {
	backing := cache.NewMemoryStore()
	require.NoError(t, backing.Put("a", "1"))
	require.NoError(t, backing.Put("b", "2"))
	require.NoError(t, backing.Put("c", "3"))

	store, err := cache.NewLRUStore(backing, 2)
	require.NoError(t, err)
	defer store.Close()

	for _, k := range []string{"a", "b", "c"} {
		_, err := store.Get(k)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, store.Resident())

	// evicted from memory, still served by the backing store
	got, err := store.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "1", got)
}

func TestLRUStore_InvalidSize(t *testing.T) {
	_, err := cache.NewLRUStore(cache.NewMemoryStore(), 0)
	assert.Error(t, err)

	_, err = cache.NewLRUStore(nil, 4)
	assert.Error(t, err)
}

func TestKey(t *testing.T) {
	assert.Equal(t, cache.Key("same prompt"), cache.Key("same prompt"))
	assert.NotEqual(t, cache.Key("prompt a"), cache.Key("prompt b"))
	assert.Len(t, cache.Key(""), 64)
}

func TestMemoryStore_List(t *testing.T) {
	store := cache.NewMemoryStore()
	defer store.Close()

	require.NoError(t, store.Put("b", "22"))
	require.NoError(t, store.Put("a", "1"))

	entries, err := store.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Key)
	assert.Equal(t, int64(2), entries[1].Size)
	assert.Equal(t, 2, store.Len())
}
