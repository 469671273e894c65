package ber

import (
	asn1ber "github.com/go-asn1-ber/asn1-ber"
)

// AuthenticationType is the BindRequest authentication CHOICE tag.
type AuthenticationType uint8

const (
	AuthSimple AuthenticationType = 0
	AuthSASL   AuthenticationType = 3
)

// BindRequest is a decoded [APPLICATION 0] BindRequest. Only simple
// authentication is inspected for bind-map lookups; SASL credentials
// are carried opaquely since this proxy passes SASL binds straight
// through and never holds directory credentials of its own.
type BindRequest struct {
	Version  int64
	Name     string
	AuthType AuthenticationType
	Simple   string
	SASLMech string
	SASLCred []byte
}

// DecodeBindRequest decodes op (an appBindRequest-tagged packet).
func DecodeBindRequest(op *asn1ber.Packet) (*BindRequest, error) {
	if len(op.Children) != 3 {
		return nil, ErrMalformed
	}
	ver, ok := op.Children[0].Value.(int64)
	if !ok {
		return nil, ErrMalformed
	}
	name, ok := op.Children[1].Value.(string)
	if !ok {
		name = string(op.Children[1].Data.Bytes())
	}

	auth := op.Children[2]
	req := &BindRequest{Version: ver, Name: name}
	switch AuthenticationType(auth.Tag) {
	case AuthSimple:
		req.AuthType = AuthSimple
		req.Simple = string(auth.Data.Bytes())
	case AuthSASL:
		req.AuthType = AuthSASL
		if len(auth.Children) < 1 {
			return nil, ErrMalformed
		}
		mech, ok := auth.Children[0].Value.(string)
		if !ok {
			mech = string(auth.Children[0].Data.Bytes())
		}
		req.SASLMech = mech
		if len(auth.Children) > 1 {
			req.SASLCred = auth.Children[1].Data.Bytes()
		}
	default:
		return nil, ErrMalformed
	}
	return req, nil
}

// BindResponse is a decoded or synthesized [APPLICATION 1] BindResponse.
type BindResponse struct {
	ResultCode        ResultCode
	MatchedDN         string
	DiagnosticMessage string
	ServerSASLCreds   []byte
}

// EncodeBindResponse builds the [APPLICATION 1] op packet for a
// locally-synthesized bind result (used for policy rejections before
// the bind ever reaches the upstream).
func EncodeBindResponse(r BindResponse) *asn1ber.Packet {
	op := asn1ber.Encode(asn1ber.ClassApplication, asn1ber.TypeConstructed, uint8(appBindResponse), nil, "BindResponse")
	op.AppendChild(asn1ber.NewInteger(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagEnumerated, int64(r.ResultCode), "resultCode"))
	op.AppendChild(asn1ber.NewString(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagOctetString, r.MatchedDN, "matchedDN"))
	op.AppendChild(asn1ber.NewString(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagOctetString, r.DiagnosticMessage, "diagnosticMessage"))
	if r.ServerSASLCreds != nil {
		creds := asn1ber.Encode(asn1ber.ClassContext, asn1ber.TypePrimitive, 7, nil, "serverSaslCreds")
		creds.Data.Write(r.ServerSASLCreds)
		creds.Value = string(r.ServerSASLCreds)
		op.AppendChild(creds)
	}
	return op
}

// DecodeBindResponse decodes op (an appBindResponse-tagged packet)
// received from the upstream.
func DecodeBindResponse(op *asn1ber.Packet) (*BindResponse, error) {
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
	resp := &BindResponse{ResultCode: ResultCode(rc), MatchedDN: matched, DiagnosticMessage: diag}
	if len(op.Children) > 3 {
		resp.ServerSASLCreds = op.Children[3].Data.Bytes()
	}
	return resp, nil
}
