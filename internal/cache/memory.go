package cache

import (
	"container/list"
	"context"
	"math"
	"sync"

	"github.com/sonroyaalmerol/ldap-proxy/internal/helpers"
)

// entryOverhead is a fixed per-entry byte-cost estimate added on top of
// the encoded PDU lengths, to account for map/list bookkeeping and
// avoid a pathological cache of many tiny entries evading the byte
// budget.
const entryOverhead = 128

// memoryEntry is one LRU slot: the cached response plus its computed
// byte cost and its position in the LRU list.
type memoryEntry struct {
	fp    Fingerprint
	value *Response
	cost  int
	elem  *list.Element
}

// MemoryCache is a byte-cost-bounded LRU cache of search responses,
// safe for concurrent Get/Put from many sessions. It is the in-process
// fallback backend, built on the same container/list + map + mutex LRU
// shape as a TTL cache, generalized from TTL-based eviction to pure
// byte-cost eviction since fallback entries have no natural expiry.
type MemoryCache struct {
	mu sync.Mutex

	maxBytes int64
	curBytes int64

	lru  *list.List
	data map[Fingerprint]*memoryEntry
}

// NewMemoryCache creates a MemoryCache bounded by maxBytes total
// approximate cost. A non-positive maxBytes is treated as a 256 MiB
// default.
func NewMemoryCache(maxBytes int64) *MemoryCache {
	if maxBytes <= 0 {
		maxBytes = 256 * 1024 * 1024
	}
	return &MemoryCache{
		maxBytes: maxBytes,
		lru:      list.New(),
		data:     make(map[Fingerprint]*memoryEntry),
	}
}

// responseCost estimates r's byte cost for LRU accounting. The sum is
// clamped into the non-negative int32 range so a pathologically large
// response can't wrap curBytes negative and defeat eviction.
func responseCost(r *Response) int {
	cost := entryOverhead + len(r.DoneBody)
	for _, p := range r.PDUs {
		cost += len(p.Body) + 1
	}
	return helpers.ClampInt(cost, 0, math.MaxInt32)
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, fp Fingerprint) (*Response, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[fp]
	if !ok {
		return nil, false, nil
	}
	c.lru.MoveToBack(e.elem)
	return e.value, true, nil
}

// Put implements Cache. It replaces any prior entry for fp and evicts
// least-recently-used entries until the new entry fits within
// maxBytes.
func (c *MemoryCache) Put(_ context.Context, fp Fingerprint, resp *Response) error {
	cost := responseCost(resp)

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.data[fp]; ok {
		c.curBytes -= int64(existing.cost)
		c.lru.Remove(existing.elem)
		delete(c.data, fp)
	}

	e := &memoryEntry{fp: fp, value: resp, cost: cost}
	e.elem = c.lru.PushBack(fp)
	c.data[fp] = e
	c.curBytes += int64(cost)

	c.evict()
	return nil
}

func (c *MemoryCache) evict() {
	for c.curBytes > c.maxBytes {
		front := c.lru.Front()
		if front == nil {
			return
		}
		fp := front.Value.(Fingerprint)
		e := c.data[fp]
		c.lru.Remove(front)
		delete(c.data, fp)
		if e != nil {
			c.curBytes -= int64(e.cost)
		}
	}
}

// Close implements Cache; the memory backend holds no external
// resources.
func (c *MemoryCache) Close() error { return nil }

// Len reports the current number of cached entries, for tests.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}
