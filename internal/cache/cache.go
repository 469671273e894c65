package cache

import "context"

// Fingerprint is the deterministic cache key derived from a canonicalized
// SearchRequest (see fingerprint.go).
type Fingerprint [32]byte

// Cache is the contract shared by the memory and external-KV backends.
// Implementations MUST make Put atomic with respect to Get: a reader
// observes either the entire old value or the entire new value, never a
// partial splice. Cache writes are last-writer-wins.
type Cache interface {
	Get(ctx context.Context, fp Fingerprint) (*Response, bool, error)
	Put(ctx context.Context, fp Fingerprint, resp *Response) error
	// Close releases any resources (network connections, background
	// goroutines) held by the backend.
	Close() error
}
