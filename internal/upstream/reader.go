package upstream

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/sonroyaalmerol/ldap-proxy/internal/ber"
)

func (c *Client) reconnectLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closedCh:
			return
		default:
		}

		conn, err := c.dial(ctx)
		if err != nil {
			c.cfg.Logger.Warn("upstream dial failed", slog.String("addr", c.cfg.Addr), slog.Any("error", err))
			c.waitBackoff(ctx)
			continue
		}

		c.connMu.Lock()
		c.conn = conn
		c.writer = bufio.NewWriter(conn)
		c.connMu.Unlock()

		c.cfg.Logger.Info("upstream connected", slog.String("addr", c.cfg.Addr))

		readDone := make(chan struct{})
		go func() {
			c.readLoop(conn)
			close(readDone)
		}()

		if err := c.probe(ctx); err != nil {
			c.cfg.Logger.Warn("upstream health probe failed", slog.String("addr", c.cfg.Addr), slog.Any("error", err))
		}

		<-readDone

		// readLoop returned: the connection died. Health is already
		// Unhealthy (set by teardown); loop around to reconnect unless
		// we've been closed.
		select {
		case <-ctx.Done():
			return
		case <-c.closedCh:
			return
		default:
			c.waitBackoff(ctx)
		}
	}
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: 10 * time.Second}
	if c.cfg.TLSConfig != nil {
		tlsDialer := tls.Dialer{NetDialer: &d, Config: c.cfg.TLSConfig}
		return tlsDialer.DialContext(ctx, "tcp", c.cfg.Addr)
	}
	return d.DialContext(ctx, "tcp", c.cfg.Addr)
}

func (c *Client) waitBackoff(ctx context.Context) {
	delay := c.bo.next()
	select {
	case <-time.After(delay):
	case <-ctx.Done():
	case <-c.closedCh:
	}
}

// readLoop demultiplexes inbound PDUs by messageID until a protocol
// error or connection close, then tears the connection down.
func (c *Client) readLoop(conn net.Conn) {
	r := bufio.NewReader(conn)
	for {
		frame, packet, err := ber.ReadEnvelope(r, c.cfg.MaxFrameSize)
		if err != nil {
			c.teardown(err)
			return
		}
		env, err := ber.DecodeEnvelope(frame, packet)
		if err != nil {
			c.teardown(err)
			return
		}

		c.pendingMu.Lock()
		pr, ok := c.pending[env.MessageID]
		if ok && isTerminal(env.Op) {
			delete(c.pending, env.MessageID)
		}
		c.pendingMu.Unlock()

		if !ok {
			// Unknown messageID: protocol error, tear the connection down.
			c.teardown(errors.New("upstream: response for unknown messageID"))
			return
		}

		if c.health.get() != Healthy {
			c.health.set(Healthy)
			c.bo.reset()
		}

		select {
		case pr.ch <- env:
		default:
			// A slow consumer should not stall the single shared
			// reader; drop the PDU delivery for this messageID and
			// let the consumer observe the stream ending via context
			// cancellation or a subsequent abort.
			c.cfg.Logger.Warn("upstream response channel full, dropping PDU", slog.Int64("message_id", env.MessageID))
		}
		if isTerminal(env.Op) {
			close(pr.ch)
		}
	}
}

// teardown marks the connection Unhealthy, aborts every pending
// request and closes the socket.
func (c *Client) teardown(cause error) {
	c.health.set(Unhealthy)

	c.connMu.Lock()
	conn := c.conn
	c.conn = nil
	c.writer = nil
	c.connMu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}

	c.pendingMu.Lock()
	pending := c.pending
	c.pending = make(map[int64]*pendingRequest)
	c.pendingMu.Unlock()

	for _, pr := range pending {
		close(pr.abortedCh)
	}

	if cause != nil {
		c.cfg.Logger.Warn("upstream connection torn down", slog.Any("error", cause))
	}
}
