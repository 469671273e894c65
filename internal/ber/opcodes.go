package ber

import asn1ber "github.com/go-asn1-ber/asn1-ber"

// OpKind classifies a decoded Envelope's protocolOp for dispatch by the
// session layer, collapsing the write-class operations (add, delete,
// modify, modifyDN) into a single bucket since they are all handled
// identically (rejected locally). Compare is a read operation and gets
// its own kind rather than joining that bucket, even though this proxy
// currently rejects it the same way.
type OpKind int

const (
	OpUnknown OpKind = iota
	OpBindRequest
	OpUnbindRequest
	OpSearchRequest
	OpExtendedRequest
	OpAbandonRequest
	OpWriteClass
	OpCompareRequest
	OpPassthroughResponse
)

// Kind classifies env's protocolOp.
func (e *Envelope) Kind() OpKind {
	switch appTag(e.OpTag) {
	case appBindRequest:
		return OpBindRequest
	case appUnbindRequest:
		return OpUnbindRequest
	case appSearchRequest:
		return OpSearchRequest
	case appExtendedRequest:
		return OpExtendedRequest
	case appAbandonRequest:
		return OpAbandonRequest
	case appAddRequest, appDelRequest, appModifyRequest, appModifyDNRequest:
		return OpWriteClass
	case appCompareRequest:
		return OpCompareRequest
	case appBindResponse, appSearchResultEntry, appSearchResultDone, appSearchResultReference, appExtendedResponse:
		return OpPassthroughResponse
	default:
		return OpUnknown
	}
}

// AppTag exposes the raw [APPLICATION n] tag number of the protocolOp,
// used by the session to tell response PDUs apart and to pick the
// matching write-class response tag.
func (e *Envelope) AppTag() uint8 { return uint8(e.OpTag) }

// IsResponseTag reports whether tag identifies a response PDU (as
// opposed to a request).
func IsResponseTag(tag uint8) bool {
	switch appTag(tag) {
	case appBindResponse, appSearchResultEntry, appSearchResultDone, appSearchResultReference,
		appModifyResponse, appAddResponse, appDelResponse, appModifyDNResponse, appCompareResponse,
		appExtendedResponse:
		return true
	default:
		return false
	}
}

// PacketTag reads the raw BER tag of a decoded packet, used where a
// component only has a *ber.Packet and not a full Envelope (e.g. the
// upstream reader demultiplexing raw protocolOp packets).
func PacketTag(p *asn1ber.Packet) uint8 { return p.Tag }
