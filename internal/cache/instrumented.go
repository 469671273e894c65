package cache

import (
	"context"
	"sync/atomic"
)

// Instrumented wraps a Cache and counts hits and misses, for the
// management API's /stats endpoint. Put is passed straight through;
// only the read path is counted, since a miss is only observable on
// Get.
type Instrumented struct {
	inner  Cache
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewInstrumented wraps inner in a counting decorator.
func NewInstrumented(inner Cache) *Instrumented {
	return &Instrumented{inner: inner}
}

func (c *Instrumented) Get(ctx context.Context, fp Fingerprint) (*Response, bool, error) {
	resp, ok, err := c.inner.Get(ctx, fp)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return resp, ok, err
}

func (c *Instrumented) Put(ctx context.Context, fp Fingerprint, resp *Response) error {
	return c.inner.Put(ctx, fp, resp)
}

func (c *Instrumented) Close() error {
	return c.inner.Close()
}

// Hits returns the number of Get calls that found a cached response.
func (c *Instrumented) Hits() uint64 { return c.hits.Load() }

// Misses returns the number of Get calls that found nothing cached.
func (c *Instrumented) Misses() uint64 { return c.misses.Load() }
