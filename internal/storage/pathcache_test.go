package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathCachePutGet(t *testing.T) {
	cache := NewPathCache()

	_, ok := cache.Get("root", "receipts")
	assert.False(t, ok)

	cache.Put("root", "receipts", "id-1")
	id, ok := cache.Get("root", "receipts")
	assert.True(t, ok)
	assert.Equal(t, "id-1", id)

	// Same name under a different parent is a distinct entry.
	_, ok = cache.Get("other", "receipts")
	assert.False(t, ok)
}

func TestPathCacheForget(t *testing.T) {
	cache := NewPathCache()
	cache.Put("root", "receipts", "id-1")
	cache.Put("id-1", "2025", "id-2")

	cache.Forget("root", "receipts")

	_, ok := cache.Get("root", "receipts")
	assert.False(t, ok)
	_, ok = cache.Get("id-1", "2025")
	assert.True(t, ok)
}

func TestPathCacheClear(t *testing.T) {
	cache := NewPathCache()
	cache.Put("root", "a", "1")
	cache.Put("root", "b", "2")
	assert.Equal(t, 2, cache.Len())

	cache.Clear()
	assert.Equal(t, 0, cache.Len())
}
