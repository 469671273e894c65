// Package upstream manages the single multiplexed connection to the
// backend directory: dialing and TLS, a monotonic upstream messageID
// counter, response demultiplexing by messageID, health tracking and
// reconnection with backoff.
package upstream

import (
	"bufio"
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	asn1ber "github.com/go-asn1-ber/asn1-ber"

	"github.com/sonroyaalmerol/ldap-proxy/internal/ber"
)

// Config configures a Client.
type Config struct {
	Addr         string
	TLSConfig    *tls.Config // nil for plain ldap://
	MaxFrameSize int         // max_proxy_ber_size; 0 means unbounded
	Logger       *slog.Logger
}

type pendingRequest struct {
	ch        chan *ber.Envelope
	abortedCh chan struct{}
}

// Client owns the single long-lived connection to the upstream
// directory shared by every session.
type Client struct {
	cfg Config

	connMu sync.Mutex
	conn   net.Conn
	writer *bufio.Writer

	counter atomic.Int64

	pendingMu sync.Mutex
	pending   map[int64]*pendingRequest

	health healthState
	bo     *backoff

	closed   atomic.Bool
	closedCh chan struct{}
}

// New creates a Client in the Unhealthy state. Call Start to begin
// connecting.
func New(cfg Config) *Client {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	c := &Client{
		cfg:      cfg,
		pending:  make(map[int64]*pendingRequest),
		bo:       newBackoff(),
		closedCh: make(chan struct{}),
	}
	c.health.set(Unhealthy)
	return c
}

// Health reports the current upstream liveness state.
func (c *Client) Health() Health { return c.health.get() }

// Start launches the connect-and-reconnect loop in the background. It
// returns immediately; the client becomes Healthy once the first PDU
// round-trip succeeds.
func (c *Client) Start(ctx context.Context) {
	go c.reconnectLoop(ctx)
}

// Close tears down the connection and stops the reconnect loop.
func (c *Client) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		close(c.closedCh)
	}
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// ResponseStream yields the response PDUs for one issued request, in
// arrival order, until a terminating PDU has been delivered.
type ResponseStream struct {
	pending *pendingRequest
}

// Next blocks until the next response envelope arrives, the stream is
// aborted by a connection teardown, or ctx is canceled. The caller
// MUST call env.Release() on the returned envelope once done with it.
func (s *ResponseStream) Next(ctx context.Context) (*ber.Envelope, error) {
	select {
	case env, ok := <-s.pending.ch:
		if !ok {
			return nil, ErrAborted
		}
		return env, nil
	case <-s.pending.abortedCh:
		return nil, ErrAborted
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Issue forwards env to the upstream under a freshly allocated upstream
// messageID, returning a ResponseStream for its replies. If the
// connection is Unhealthy, it returns ErrUnavailable without touching
// the network.
func (c *Client) Issue(ctx context.Context, env *ber.Envelope) (*ResponseStream, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if c.health.get() != Healthy {
		return nil, ErrUnavailable
	}

	upstreamID := c.counter.Add(1)
	wire := ber.RewriteMessageID(env, upstreamID)

	pr := &pendingRequest{
		ch:        make(chan *ber.Envelope, 32),
		abortedCh: make(chan struct{}),
	}
	c.pendingMu.Lock()
	c.pending[upstreamID] = pr
	c.pendingMu.Unlock()

	if err := c.write(wire); err != nil {
		c.pendingMu.Lock()
		delete(c.pending, upstreamID)
		c.pendingMu.Unlock()
		c.teardown(err)
		return nil, ErrUnavailable
	}

	return &ResponseStream{pending: pr}, nil
}

// probe sends a minimal, read-only SearchRequest (base-scoped, against
// the root DSE) immediately after connecting and waits for any
// response. A connection that has merely completed its TCP/TLS
// handshake has not yet proven the LDAP protocol actually works end to
// end; Health is only allowed to flip once some PDU has made the round
// trip. The probe's own result code is irrelevant — even an
// access-denied response proves the connection is alive — so its error
// return only reflects a failure to get any response at all.
func (c *Client) probe(ctx context.Context) error {
	id := c.counter.Add(1)

	op := asn1ber.Encode(asn1ber.ClassApplication, asn1ber.TypeConstructed, 3, nil, "SearchRequest")
	op.AppendChild(asn1ber.NewString(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagOctetString, "", "baseObject"))
	op.AppendChild(asn1ber.NewInteger(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagEnumerated, 0, "scope"))
	op.AppendChild(asn1ber.NewInteger(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagEnumerated, 0, "derefAliases"))
	op.AppendChild(asn1ber.NewInteger(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagInteger, 1, "sizeLimit"))
	op.AppendChild(asn1ber.NewInteger(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagInteger, 0, "timeLimit"))
	op.AppendChild(asn1ber.NewBoolean(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagBoolean, true, "typesOnly"))
	present := asn1ber.Encode(asn1ber.ClassContext, asn1ber.TypePrimitive, 7, nil, "present")
	present.Data.WriteString("objectClass")
	op.AppendChild(present)
	op.AppendChild(asn1ber.Encode(asn1ber.ClassUniversal, asn1ber.TypeConstructed, asn1ber.TagSequence, nil, "attributes"))
	wire := ber.EncodeMessage(id, op)

	pr := &pendingRequest{ch: make(chan *ber.Envelope, 4), abortedCh: make(chan struct{})}
	c.pendingMu.Lock()
	c.pending[id] = pr
	c.pendingMu.Unlock()

	if err := c.write(wire); err != nil {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return err
	}

	select {
	case env, ok := <-pr.ch:
		if ok {
			env.Release()
		}
		return nil
	case <-pr.abortedCh:
		return ErrAborted
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) write(frame []byte) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.writer == nil {
		return ErrUnavailable
	}
	if _, err := c.writer.Write(frame); err != nil {
		return err
	}
	return c.writer.Flush()
}

// isTerminal reports whether tag identifies a PDU that ends a request's
// response stream: SearchResultDone, BindResponse, ExtendedResponse.
func isTerminal(p *asn1ber.Packet) bool {
	switch ber.PacketTag(p) {
	case 1, 5, 24: // bindResponse, searchResDone, extendedResp
		return true
	default:
		return false
	}
}
