package session

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sonroyaalmerol/ldap-proxy/internal/audit"
	"github.com/sonroyaalmerol/ldap-proxy/internal/ber"
	"github.com/sonroyaalmerol/ldap-proxy/internal/upstream"
)

// handleBind services both the initial Bind and any subsequent rebind
// on an already-Bound session: admission against the bind-map, forward
// to the upstream, and on success replace the bound DN. A rebind that
// fails — whether rejected locally or by the upstream — resets the
// session to Unbound rather than leaving the previous identity active.
func (s *Session) handleBind(ctx context.Context, env *ber.Envelope) error {
	req, err := ber.DecodeBindRequest(env.Op)
	if err != nil {
		s.state = StateClosed
		return nil
	}

	if !s.policy.CanBind(req.Name) {
		s.logger.Info("bind denied by policy",
			slog.String("conn_id", s.connID), slog.String("dn", req.Name))
		s.audit.Record(audit.Event{
			ConnID: s.connID, RemoteAddr: s.remoteAddr, Kind: audit.KindBind,
			BindDN: req.Name, Decision: audit.DecisionDeny, Detail: "dn not present in bind-map",
		})
		resp := ber.EncodeBindResponse(ber.BindResponse{
			ResultCode:        ber.InsufficientAccessRights,
			DiagnosticMessage: "bind not permitted for this identity",
		})
		s.resetToUnbound()
		return s.write(ber.EncodeMessage(env.MessageID, resp))
	}

	stream, err := s.upstream.Issue(ctx, env)
	if err != nil {
		s.audit.Record(audit.Event{
			ConnID: s.connID, RemoteAddr: s.remoteAddr, Kind: audit.KindBind,
			BindDN: req.Name, Decision: audit.DecisionUnavailable, Detail: "upstream unavailable",
		})
		return s.respondBindUnavailable(env)
	}
	s.audit.Record(audit.Event{
		ConnID: s.connID, RemoteAddr: s.remoteAddr, Kind: audit.KindBind,
		BindDN: req.Name, Decision: audit.DecisionAllow, Detail: "forwarded to upstream",
	})

	respEnv, err := stream.Next(ctx)
	if err != nil {
		if errors.Is(err, upstream.ErrAborted) {
			return s.respondBindUnavailable(env)
		}
		return err
	}
	defer respEnv.Release()

	bindResp, err := ber.DecodeBindResponse(respEnv.Op)
	if err != nil {
		s.state = StateClosed
		return nil
	}

	if err := s.write(ber.RewriteMessageID(respEnv, env.MessageID)); err != nil {
		return err
	}

	if bindResp.ResultCode == ber.Success {
		s.boundDN = req.Name
		s.state = StateBound
	} else {
		s.resetToUnbound()
	}
	return nil
}

func (s *Session) respondBindUnavailable(env *ber.Envelope) error {
	resp := ber.EncodeBindResponse(ber.BindResponse{
		ResultCode:        ber.Unavailable,
		DiagnosticMessage: "Backend LDAP server unavailable",
	})
	s.resetToUnbound()
	return s.write(ber.EncodeMessage(env.MessageID, resp))
}
