package session

import (
	"context"
	"errors"

	"github.com/sonroyaalmerol/ldap-proxy/internal/ber"
	"github.com/sonroyaalmerol/ldap-proxy/internal/upstream"
)

// handleExtended forwards an ExtendedRequest verbatim. WhoAmI is the
// only extended operation with a fallback: if the upstream cannot be
// reached, the proxy synthesizes a success response from the session's
// own bound DN, since that answer requires no directory round trip at
// all. Every other extended operation gets no fallback and simply fails
// with Unavailable when the upstream is unreachable.
func (s *Session) handleExtended(ctx context.Context, env *ber.Envelope) error {
	req, err := ber.DecodeExtendedRequest(env.Op)
	if err != nil {
		s.state = StateClosed
		return nil
	}

	stream, err := s.upstream.Issue(ctx, env)
	if err != nil {
		return s.extendedFallback(env.MessageID, req.Name)
	}

	respEnv, err := stream.Next(ctx)
	if err != nil {
		if errors.Is(err, upstream.ErrAborted) {
			return s.extendedFallback(env.MessageID, req.Name)
		}
		return err
	}
	defer respEnv.Release()

	return s.write(ber.RewriteMessageID(respEnv, env.MessageID))
}

func (s *Session) extendedFallback(messageID int64, requestName string) error {
	if requestName == ber.WhoAmIOID {
		op := ber.EncodeExtendedResponse(ber.ExtendedResponse{
			ResultCode: ber.Success,
			Value:      ber.WhoAmIResponseValue(s.boundDN),
		})
		return s.write(ber.EncodeMessage(messageID, op))
	}

	op := ber.EncodeExtendedResponse(ber.ExtendedResponse{
		ResultCode:        ber.Unavailable,
		DiagnosticMessage: "Backend LDAP server unavailable",
	})
	return s.write(ber.EncodeMessage(messageID, op))
}
