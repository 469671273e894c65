// Package ber implements the subset of ASN.1 BER framing and LDAPv3 PDU
// decode/encode the proxy needs: length-delimited SEQUENCE framing with
// size ceilings, and the BindRequest/Response, SearchRequest/ResultEntry/
// ResultReference/ResultDone, ExtendedRequest/Response, and UnbindRequest
// messages. Low-level tag/length/value primitives are provided by
// github.com/go-asn1-ber/asn1-ber; this package adds the framing
// discipline and LDAP-specific structure on top.
package ber

import "errors"

// Sentinel errors surfaced by the framing and decode layers. The session
// layer treats ErrInputTooLarge and ErrIndefiniteLength as fatal for the
// connection: both cause the connection to be torn down without a response.
var (
	// ErrInputTooLarge means a PDU exceeded the caller-supplied byte ceiling.
	ErrInputTooLarge = errors.New("ber: input exceeds configured size ceiling")
	// ErrIndefiniteLength means the BER length octet used the (disallowed)
	// indefinite form.
	ErrIndefiniteLength = errors.New("ber: indefinite-length encoding is not supported")
	// ErrTruncated means the stream ended before a full frame was read.
	ErrTruncated = errors.New("ber: truncated frame")
	// ErrMalformed means the decoded structure did not match the expected
	// LDAP grammar for its message type.
	ErrMalformed = errors.New("ber: malformed LDAP PDU")
)
