package session

import "github.com/sonroyaalmerol/ldap-proxy/internal/ber"

// rejectProtocolMisuse answers a request that violates the state
// machine (a SearchRequest or ExtendedRequest arriving on an Unbound
// session) with operationsError, typed to match the request's own
// response operation so the client still gets a well-formed reply.
func (s *Session) rejectProtocolMisuse(env *ber.Envelope, kind ber.OpKind) error {
	switch kind {
	case ber.OpSearchRequest:
		op := ber.EncodeSearchResultDone(ber.SearchResultDone{
			ResultCode:        ber.OperationsError,
			DiagnosticMessage: "bind required before search",
		})
		return s.write(ber.EncodeMessage(env.MessageID, op))
	case ber.OpExtendedRequest:
		op := ber.EncodeExtendedResponse(ber.ExtendedResponse{
			ResultCode:        ber.OperationsError,
			DiagnosticMessage: "bind required before extended operation",
		})
		return s.write(ber.EncodeMessage(env.MessageID, op))
	default:
		s.state = StateClosed
		return nil
	}
}
