package ber

import asn1ber "github.com/go-asn1-ber/asn1-ber"

// IsUnbindRequest reports whether op is an [APPLICATION 2]
// UnbindRequest, which carries no content (RFC 4511 §4.3).
func IsUnbindRequest(op *asn1ber.Packet) bool {
	return appTag(op.Tag) == appUnbindRequest
}
