package ber

import (
	asn1ber "github.com/go-asn1-ber/asn1-ber"
)

// ExtendedRequest is a decoded [APPLICATION 23] ExtendedRequest.
type ExtendedRequest struct {
	Name  string
	Value []byte
}

// DecodeExtendedRequest decodes op (an appExtendedRequest-tagged
// packet). Name and Value carry the [0]/[1] context-tagged
// requestName/requestValue fields.
func DecodeExtendedRequest(op *asn1ber.Packet) (*ExtendedRequest, error) {
	req := &ExtendedRequest{}
	for _, c := range op.Children {
		switch c.Tag {
		case 0:
			req.Name = string(c.Data.Bytes())
		case 1:
			req.Value = c.Data.Bytes()
		}
	}
	if req.Name == "" {
		return nil, ErrMalformed
	}
	return req, nil
}

// ExtendedResponse is a decoded or synthesized [APPLICATION 24]
// ExtendedResponse.
type ExtendedResponse struct {
	ResultCode        ResultCode
	MatchedDN         string
	DiagnosticMessage string
	Name              string
	Value             []byte
}

// EncodeExtendedResponse builds the [APPLICATION 24] op packet for a
// locally-synthesized extended-operation result, used for WhoAmI
// answers derived from the session's bound DN and for rejections of
// extended operations other than WhoAmI.
func EncodeExtendedResponse(r ExtendedResponse) *asn1ber.Packet {
	op := asn1ber.Encode(asn1ber.ClassApplication, asn1ber.TypeConstructed, uint8(appExtendedResponse), nil, "ExtendedResponse")
	op.AppendChild(asn1ber.NewInteger(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagEnumerated, int64(r.ResultCode), "resultCode"))
	op.AppendChild(asn1ber.NewString(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagOctetString, r.MatchedDN, "matchedDN"))
	op.AppendChild(asn1ber.NewString(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagOctetString, r.DiagnosticMessage, "diagnosticMessage"))
	if r.Value != nil {
		val := asn1ber.Encode(asn1ber.ClassContext, asn1ber.TypePrimitive, 11, nil, "responseValue")
		val.Data.Write(r.Value)
		val.Value = string(r.Value)
		op.AppendChild(val)
	}
	return op
}

// DecodeExtendedResponse decodes op (an appExtendedResponse-tagged
// packet) received from the upstream.
func DecodeExtendedResponse(op *asn1ber.Packet) (*ExtendedResponse, error) {
	if len(op.Children) < 3 {
		return nil, ErrMalformed
	}
	rc, ok := op.Children[0].Value.(int64)
	if !ok {
		return nil, ErrMalformed
	}
	matched, ok := op.Children[1].Value.(string)
	if !ok {
		matched = string(op.Children[1].Data.Bytes())
	}
	diag, ok := op.Children[2].Value.(string)
	if !ok {
		diag = string(op.Children[2].Data.Bytes())
	}
	resp := &ExtendedResponse{ResultCode: ResultCode(rc), MatchedDN: matched, DiagnosticMessage: diag}
	for _, c := range op.Children[3:] {
		switch c.Tag {
		case 10:
			resp.Name = string(c.Data.Bytes())
		case 11:
			resp.Value = c.Data.Bytes()
		}
	}
	return resp, nil
}

// WhoAmIResponseValue formats the authzId response for a WhoAmI
// extended operation (RFC 4532): "dn:" followed by the bound DN, or
// the empty string for an anonymous session.
func WhoAmIResponseValue(boundDN string) []byte {
	if boundDN == "" {
		return []byte{}
	}
	return []byte("dn:" + boundDN)
}
