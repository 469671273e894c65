package session

import "github.com/sonroyaalmerol/ldap-proxy/internal/ber"

// rejectWriteClass answers an add/delete/modify/modifyDN request with a
// single unwillingToPerform response of the matching response type,
// without ever contacting the upstream.
func (s *Session) rejectWriteClass(env *ber.Envelope) error {
	respTag := ber.ResponseTagForWriteClass(env.AppTag())
	op := ber.EncodeLDAPResult(respTag, ber.LDAPResult{
		ResultCode:        ber.UnwillingToPerform,
		DiagnosticMessage: "write operations are not permitted through this proxy",
	})
	return s.write(ber.EncodeMessage(env.MessageID, op))
}

// rejectCompare answers a Compare request with unwillingToPerform. It
// is read-class, not write-class, but this proxy has no policy rules
// for it yet and so cannot safely forward it either.
func (s *Session) rejectCompare(env *ber.Envelope) error {
	respTag := ber.ResponseTagForWriteClass(env.AppTag())
	op := ber.EncodeLDAPResult(respTag, ber.LDAPResult{
		ResultCode:        ber.UnwillingToPerform,
		DiagnosticMessage: "compare is not supported through this proxy",
	})
	return s.write(ber.EncodeMessage(env.MessageID, op))
}
