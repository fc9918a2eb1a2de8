package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKey_StableAcrossEqualFilters(t *testing.T) {
	a := &Where{Filter: Doc{{Key: "name", Value: "gear"}}, Limit: 10}
	b := &Where{Filter: Doc{{Key: "name", Value: "gear"}}, Limit: 10}

	keyA, err := cacheKey(OperationFind, a, "findOne")
	require.NoError(t, err)
	keyB, err := cacheKey(OperationFind, b, "findOne")
	require.NoError(t, err)
	assert.Equal(t, keyA, keyB)
}

func TestCacheKey_DiffersOnFilter(t *testing.T) {
	a := &Where{Filter: Doc{{Key: "name", Value: "gear"}}}
	b := &Where{Filter: Doc{{Key: "name", Value: "bolt"}}}

	keyA, err := cacheKey(OperationFind, a, "findOne")
	require.NoError(t, err)
	keyB, err := cacheKey(OperationFind, b, "findOne")
	require.NoError(t, err)
	assert.NotEqual(t, keyA, keyB)
}

func TestCacheKey_DiffersOnKind(t *testing.T) {
	where := &Where{Filter: Doc{{Key: "name", Value: "gear"}}}

	keyOne, err := cacheKey(OperationFind, where, "findOne")
	require.NoError(t, err)
	keyCount, err := cacheKey(OperationFind, where, "count")
	require.NoError(t, err)
	assert.NotEqual(t, keyOne, keyCount, "FindOne and Count must not share a cache key for an identical filter")
}

// TestCacheMiddleware_DeliversCachedValueOnHit is the case the naive
// "return nil without calling next" implementation got wrong: a hit must
// hand the caller the value the earlier miss actually produced, not leave
// its result box empty.
func TestCacheMiddleware_DeliversCachedValueOnHit(t *testing.T) {
	prev := globalMiddlewareList
	defer func() { globalMiddlewareList = prev }()
	globalMiddlewareList = nil

	cache := NewMemoryCache()
	Use(CacheMiddleware(cache, *CacheMiddlewareTTLField(time.Minute)))

	calls := 0
	where := &Where{Filter: Doc{{Key: "name", Value: "gear"}}}
	runFind := func() (string, error) {
		box := &resultBox{kind: "findOne"}
		ctx := withResultBox(context.Background(), box)
		err := dispatchOperation(ctx, OperationFind, where, func() error {
			calls++
			box.value = "decoded-gear-document"
			return nil
		})
		v, _ := box.value.(string)
		return v, err
	}

	first, err := runFind()
	require.NoError(t, err)
	assert.Equal(t, "decoded-gear-document", first)

	second, err := runFind()
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "second identical find should be served from cache")
	assert.Equal(t, "decoded-gear-document", second, "a cache hit must still deliver the real decoded result")
}

func TestCacheMiddleware_MissesOnDifferentFilterOrKind(t *testing.T) {
	prev := globalMiddlewareList
	defer func() { globalMiddlewareList = prev }()
	globalMiddlewareList = nil

	cache := NewMemoryCache()
	Use(CacheMiddleware(cache, *CacheMiddlewareTTLField(time.Minute)))

	calls := 0
	exec := func(box *resultBox, value any) func() error {
		return func() error {
			calls++
			box.value = value
			return nil
		}
	}

	gear := &Where{Filter: Doc{{Key: "name", Value: "gear"}}}
	bolt := &Where{Filter: Doc{{Key: "name", Value: "bolt"}}}

	oneBox := &resultBox{kind: "findOne"}
	ctx := withResultBox(context.Background(), oneBox)
	require.NoError(t, dispatchOperation(ctx, OperationFind, gear, exec(oneBox, "gear-doc")))
	assert.Equal(t, 1, calls)

	otherBox := &resultBox{kind: "findOne"}
	ctx = withResultBox(context.Background(), otherBox)
	require.NoError(t, dispatchOperation(ctx, OperationFind, bolt, exec(otherBox, "bolt-doc")))
	assert.Equal(t, 2, calls, "a differently-shaped filter must miss the cache")

	countBox := &resultBox{kind: "count"}
	ctx = withResultBox(context.Background(), countBox)
	require.NoError(t, dispatchOperation(ctx, OperationFind, gear, exec(countBox, int64(3))))
	assert.Equal(t, 3, calls, "an identical filter through a different Model method must also miss")
	assert.Equal(t, int64(3), countBox.value)
}
