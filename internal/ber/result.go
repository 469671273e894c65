package ber

import (
	asn1ber "github.com/go-asn1-ber/asn1-ber"
)

// LDAPResult is the common result shape (RFC 4511 §4.1.9) shared by
// every response operation. It is used directly only where no
// operation-specific response type already carries it (write-class
// rejections); Bind/Search/Extended have their own typed encoders.
type LDAPResult struct {
	ResultCode        ResultCode
	MatchedDN         string
	DiagnosticMessage string
}

// EncodeLDAPResult builds a response op tagged respTag carrying r, used
// for the write-class rejection responses (AddResponse, DelResponse,
// ModifyResponse, ModifyDNResponse, CompareResponse) where the proxy
// never needs anything beyond the bare LDAPResult fields.
func EncodeLDAPResult(respTag uint8, r LDAPResult) *asn1ber.Packet {
	op := asn1ber.Encode(asn1ber.ClassApplication, asn1ber.TypeConstructed, respTag, nil, "LDAPResult")
	op.AppendChild(asn1ber.NewInteger(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagEnumerated, int64(r.ResultCode), "resultCode"))
	op.AppendChild(asn1ber.NewString(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagOctetString, r.MatchedDN, "matchedDN"))
	op.AppendChild(asn1ber.NewString(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagOctetString, r.DiagnosticMessage, "diagnosticMessage"))
	return op
}

// responseTagFor maps a write-class request's [APPLICATION n] tag to
// its corresponding response tag.
func responseTagFor(reqTag appTag) uint8 {
	switch reqTag {
	case appAddRequest:
		return uint8(appAddResponse)
	case appDelRequest:
		return uint8(appDelResponse)
	case appModifyRequest:
		return uint8(appModifyResponse)
	case appModifyDNRequest:
		return uint8(appModifyDNResponse)
	case appCompareRequest:
		return uint8(appCompareResponse)
	default:
		return uint8(reqTag)
	}
}

// ResponseTagForWriteClass exposes responseTagFor to internal/session,
// which rejects every write-class request (and Compare, handled
// separately but with the same reply shape) locally with the matching
// response operation.
func ResponseTagForWriteClass(reqTag uint8) uint8 {
	return responseTagFor(appTag(reqTag))
}
