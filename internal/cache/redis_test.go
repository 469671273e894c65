package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/sonroyaalmerol/ldap-proxy/internal/cache"
)

func newTestRedisCache(t *testing.T, keyPrefix string, ttl time.Duration) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewRedisCache(client, keyPrefix, ttl), mr
}

func TestRedisCache_PutGetRoundTrip(t *testing.T) {
	c, _ := newTestRedisCache(t, "ldapproxy:fp:", 0)
	ctx := context.Background()
	fp := mustFingerprint(4)

	resp := &cache.Response{
		DoneBody: []byte("done-body"),
		PDUs: []cache.PDU{
			{AppTag: 4, Body: []byte("entry-1")},
			{AppTag: 19, Body: []byte("ref-1")},
		},
		CapturedAt: 1700000000,
	}

	require.NoError(t, c.Put(ctx, fp, resp))

	got, ok, err := c.Get(ctx, fp)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, resp, got)
}

func TestRedisCache_MissReturnsFalseNoError(t *testing.T) {
	c, _ := newTestRedisCache(t, "ldapproxy:fp:", 0)
	_, ok, err := c.Get(context.Background(), mustFingerprint(5))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisCache_KeyEncodingIsDeterministicHexPrefix(t *testing.T) {
	c, mr := newTestRedisCache(t, "ldapproxy:fp:", 0)
	fp := mustFingerprint(0xab)

	require.NoError(t, c.Put(context.Background(), fp, &cache.Response{}))

	expectedKey := "ldapproxy:fp:" + hexOf(fp)
	require.True(t, mr.Exists(expectedKey))
}

func TestRedisCache_TTLApplied(t *testing.T) {
	c, mr := newTestRedisCache(t, "ldapproxy:fp:", 30*time.Second)
	fp := mustFingerprint(6)

	require.NoError(t, c.Put(context.Background(), fp, &cache.Response{}))

	key := "ldapproxy:fp:" + hexOf(fp)
	ttl := mr.TTL(key)
	require.Greater(t, ttl, time.Duration(0))
}

func hexOf(fp cache.Fingerprint) string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 0, len(fp)*2)
	for _, b := range fp {
		out = append(out, hexdigits[b>>4], hexdigits[b&0x0f])
	}
	return string(out)
}
