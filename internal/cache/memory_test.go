package cache_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonroyaalmerol/ldap-proxy/internal/cache"
)

func mustFingerprint(b byte) cache.Fingerprint {
	var fp cache.Fingerprint
	fp[0] = b
	return fp
}

func TestMemoryCache_PutGet(t *testing.T) {
	c := cache.NewMemoryCache(1024 * 1024)
	ctx := context.Background()

	resp := &cache.Response{DoneBody: []byte("done")}
	fp := mustFingerprint(1)

	require.NoError(t, c.Put(ctx, fp, resp))

	got, ok, err := c.Get(ctx, fp)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, resp, got)
}

func TestMemoryCache_MissReturnsFalse(t *testing.T) {
	c := cache.NewMemoryCache(1024)
	_, ok, err := c.Get(context.Background(), mustFingerprint(9))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCache_PutReplacesExistingEntry(t *testing.T) {
	c := cache.NewMemoryCache(1024 * 1024)
	ctx := context.Background()
	fp := mustFingerprint(1)

	require.NoError(t, c.Put(ctx, fp, &cache.Response{DoneBody: []byte("first")}))
	require.NoError(t, c.Put(ctx, fp, &cache.Response{DoneBody: []byte("second")}))

	got, ok, err := c.Get(ctx, fp)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("second"), got.DoneBody)
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	// Each entry costs roughly entryOverhead(128) + len(DoneBody); size
	// the cache to hold two entries but not three.
	c := cache.NewMemoryCache(300)
	ctx := context.Background()

	fp1, fp2, fp3 := mustFingerprint(1), mustFingerprint(2), mustFingerprint(3)
	require.NoError(t, c.Put(ctx, fp1, &cache.Response{}))
	require.NoError(t, c.Put(ctx, fp2, &cache.Response{}))

	// Touch fp1 so fp2 becomes the least-recently-used entry.
	_, _, _ = c.Get(ctx, fp1)

	require.NoError(t, c.Put(ctx, fp3, &cache.Response{}))

	_, ok2, _ := c.Get(ctx, fp2)
	_, ok1, _ := c.Get(ctx, fp1)
	_, ok3, _ := c.Get(ctx, fp3)

	assert.False(t, ok2, "least-recently-used entry should have been evicted")
	assert.True(t, ok1)
	assert.True(t, ok3)
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	c := cache.NewMemoryCache(1024 * 1024)
	ctx := context.Background()
	done := make(chan struct{})

	for i := 0; i < 16; i++ {
		go func(i int) {
			defer func() { done <- struct{}{} }()
			fp := mustFingerprint(byte(i))
			_ = c.Put(ctx, fp, &cache.Response{DoneBody: []byte("x")})
			_, _, _ = c.Get(ctx, fp)
		}(i)
	}
	for i := 0; i < 16; i++ {
		<-done
	}
}
