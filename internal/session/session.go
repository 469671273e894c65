// Package session implements the per-connection state machine: reading
// framed LDAP PDUs off a client socket, applying bind-map authorization,
// forwarding authorized traffic to the upstream client, and falling
// back to the response cache when the upstream is unreachable.
package session

import (
	"bufio"
	"context"
	"log/slog"
	"net"

	"github.com/sonroyaalmerol/ldap-proxy/internal/audit"
	"github.com/sonroyaalmerol/ldap-proxy/internal/ber"
	"github.com/sonroyaalmerol/ldap-proxy/internal/cache"
	"github.com/sonroyaalmerol/ldap-proxy/internal/policy"
	"github.com/sonroyaalmerol/ldap-proxy/internal/upstream"
)

// State is the session's position in the Unbound -> Bound -> Closed
// state machine.
type State int

const (
	StateUnbound State = iota
	StateBound
	StateClosed
)

// Limits bounds the resources a single session may consume.
type Limits struct {
	// MaxIncomingBERSize ceilings the size of a single client-sent PDU.
	// Zero means unbounded.
	MaxIncomingBERSize int
}

// Session owns one client connection end to end.
type Session struct {
	conn   net.Conn
	writer *bufio.Writer
	reader *bufio.Reader

	state   State
	boundDN string

	connID     string
	remoteAddr string

	policy   *policy.Map
	upstream *upstream.Client
	cache    cache.Cache
	audit    *audit.Store
	limits   Limits
	logger   *slog.Logger
}

// New constructs a Session for an accepted connection. The caller owns
// conn's lifecycle up to the point Run is called; Run closes conn on
// return. auditLog may be nil, in which case bind and search decisions
// are simply not recorded.
func New(conn net.Conn, connID string, p *policy.Map, up *upstream.Client, c cache.Cache, auditLog *audit.Store, limits Limits, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		conn:       conn,
		writer:     bufio.NewWriter(conn),
		reader:     bufio.NewReader(conn),
		state:      StateUnbound,
		connID:     connID,
		remoteAddr: conn.RemoteAddr().String(),
		policy:     p,
		upstream:   up,
		cache:      c,
		audit:      auditLog,
		limits:     limits,
		logger:     logger,
	}
}

// Run drives the session loop until the client unbinds, disconnects, or
// a protocol violation tears the connection down. It never returns an
// error for a clean client-initiated close.
func (s *Session) Run(ctx context.Context) error {
	defer s.conn.Close()

	for s.state != StateClosed {
		frame, packet, err := ber.ReadEnvelope(s.reader, s.limits.MaxIncomingBERSize)
		if err != nil {
			return s.handleFrameError(err)
		}

		env, err := ber.DecodeEnvelope(frame, packet)
		if err != nil {
			ber.ReleaseEnvelope(frame)
			return nil
		}

		if err := s.dispatch(ctx, env); err != nil {
			env.Release()
			return err
		}
		env.Release()
	}
	return nil
}

// handleFrameError handles a framing-layer read failure: an oversize or
// indefinite-length frame, a truncated stream, or a clean client close
// all tear the connection down without any response (RFC 4511 leaves
// malformed input connections without a graceful response).
func (s *Session) handleFrameError(err error) error {
	s.logger.Debug("session frame read ended", slog.String("conn_id", s.connID), slog.Any("error", err))
	return nil
}

// dispatch routes env to the handler for its operation kind, applying
// the state-machine transition table.
func (s *Session) dispatch(ctx context.Context, env *ber.Envelope) error {
	kind := env.Kind()

	if kind == ber.OpUnbindRequest {
		s.state = StateClosed
		return nil
	}

	if kind == ber.OpWriteClass {
		return s.rejectWriteClass(env)
	}

	if kind == ber.OpCompareRequest {
		return s.rejectCompare(env)
	}

	if kind == ber.OpBindRequest {
		return s.handleBind(ctx, env)
	}

	if kind == ber.OpAbandonRequest {
		// RFC 4511 defines no response for AbandonRequest; this proxy
		// handles one client operation at a time, so there is nothing
		// in flight to actually abandon.
		return nil
	}

	if kind == ber.OpUnknown || kind == ber.OpPassthroughResponse {
		// Unrecognized or client-sent-a-response-shaped PDU: treat as a
		// protocol violation and tear the connection down silently.
		s.state = StateClosed
		return nil
	}

	if s.state == StateUnbound {
		// Protocol misuse: any non-Bind request before a successful
		// Bind gets operationsError and the session stays Unbound.
		return s.rejectProtocolMisuse(env, kind)
	}

	switch kind {
	case ber.OpSearchRequest:
		return s.handleSearch(ctx, env)
	case ber.OpExtendedRequest:
		return s.handleExtended(ctx, env)
	default:
		return s.rejectProtocolMisuse(env, kind)
	}
}

func (s *Session) write(raw []byte) error {
	if _, err := s.writer.Write(raw); err != nil {
		return err
	}
	return s.writer.Flush()
}

func (s *Session) resetToUnbound() {
	s.state = StateUnbound
	s.boundDN = ""
}
