package cache

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// wireFormatV1 is the only defined value of the 1-byte format tag
// prefixing every value this backend writes.
const wireFormatV1 = 1

// RedisCache is the external-KV fallback backend. Keys are
// keyPrefix+hex(fingerprint); values are framed, versioned
// concatenations of the cached PDUs. Network failures are logged by
// the caller (this type returns plain errors; the session layer treats
// a Get error as a miss and a Put error as a no-op) and never
// surfaced to the client as long as the upstream path still works.
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisCache builds a RedisCache around an already-configured
// *redis.Client. ttl of zero means entries persist until replaced.
func NewRedisCache(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

func (c *RedisCache) key(fp Fingerprint) string {
	return c.keyPrefix + hex.EncodeToString(fp[:])
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, fp Fingerprint) (*Response, bool, error) {
	raw, err := c.client.Get(ctx, c.key(fp)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	resp, err := decodeResponse(raw)
	if err != nil {
		return nil, false, err
	}
	return resp, true, nil
}

// Put implements Cache.
func (c *RedisCache) Put(ctx context.Context, fp Fingerprint, resp *Response) error {
	raw := encodeResponse(resp)
	return c.client.Set(ctx, c.key(fp), raw, c.ttl).Err()
}

// Close implements Cache.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// encodeResponse serializes resp into the versioned wire format:
//
//	byte    0: format tag (1)
//	uvarint    capturedAt
//	uvarint    doneBody length, then doneBody bytes
//	uvarint    PDU count, then for each PDU: 1 byte appTag, uvarint body length, body bytes
func encodeResponse(r *Response) []byte {
	buf := make([]byte, 0, 256)
	buf = append(buf, wireFormatV1)
	buf = appendUvarint(buf, uint64(r.CapturedAt))
	buf = appendUvarint(buf, uint64(len(r.DoneBody)))
	buf = append(buf, r.DoneBody...)
	buf = appendUvarint(buf, uint64(len(r.PDUs)))
	for _, p := range r.PDUs {
		buf = append(buf, p.AppTag)
		buf = appendUvarint(buf, uint64(len(p.Body)))
		buf = append(buf, p.Body...)
	}
	return buf
}

func decodeResponse(raw []byte) (*Response, error) {
	if len(raw) < 1 {
		return nil, fmt.Errorf("cache: empty value")
	}
	if raw[0] != wireFormatV1 {
		return nil, fmt.Errorf("cache: unsupported wire format tag %d", raw[0])
	}
	rest := raw[1:]

	capturedAt, n, err := readUvarint(rest)
	if err != nil {
		return nil, err
	}
	rest = rest[n:]

	doneLen, n, err := readUvarint(rest)
	if err != nil {
		return nil, err
	}
	rest = rest[n:]
	if uint64(len(rest)) < doneLen {
		return nil, fmt.Errorf("cache: truncated value")
	}
	doneBody := append([]byte(nil), rest[:doneLen]...)
	rest = rest[doneLen:]

	count, n, err := readUvarint(rest)
	if err != nil {
		return nil, err
	}
	rest = rest[n:]

	resp := &Response{DoneBody: doneBody, CapturedAt: int64(capturedAt)}
	for i := uint64(0); i < count; i++ {
		if len(rest) < 1 {
			return nil, fmt.Errorf("cache: truncated PDU header")
		}
		tag := rest[0]
		rest = rest[1:]
		bodyLen, n, err := readUvarint(rest)
		if err != nil {
			return nil, err
		}
		rest = rest[n:]
		if uint64(len(rest)) < bodyLen {
			return nil, fmt.Errorf("cache: truncated PDU body")
		}
		body := append([]byte(nil), rest[:bodyLen]...)
		rest = rest[bodyLen:]
		resp.PDUs = append(resp.PDUs, PDU{AppTag: tag, Body: body})
	}
	return resp, nil
}

func appendUvarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

func readUvarint(buf []byte) (uint64, int, error) {
	v, n := binary.Uvarint(buf)
	if n <= 0 {
		return 0, 0, fmt.Errorf("cache: malformed varint")
	}
	return v, n, nil
}
