package ber

import (
	asn1ber "github.com/go-asn1-ber/asn1-ber"
)

// SearchRequest is a decoded [APPLICATION 3] SearchRequest (RFC 4511
// §4.5.1).
type SearchRequest struct {
	BaseObject   string
	Scope        Scope
	DerefAliases DerefAliases
	SizeLimit    int64
	TimeLimit    int64
	TypesOnly    bool
	Filter       *Filter
	Attributes   []string
}

// DecodeSearchRequest decodes op (an appSearchRequest-tagged packet)
// into a SearchRequest.
func DecodeSearchRequest(op *asn1ber.Packet) (*SearchRequest, error) {
	if len(op.Children) != 8 {
		return nil, ErrMalformed
	}
	c := op.Children

	base, ok := c[0].Value.(string)
	if !ok {
		base = string(c[0].Data.Bytes())
	}

	scope, ok := c[1].Value.(int64)
	if !ok {
		return nil, ErrMalformed
	}
	deref, ok := c[2].Value.(int64)
	if !ok {
		return nil, ErrMalformed
	}
	sizeLimit, ok := c[3].Value.(int64)
	if !ok {
		return nil, ErrMalformed
	}
	timeLimit, ok := c[4].Value.(int64)
	if !ok {
		return nil, ErrMalformed
	}
	typesOnly, ok := c[5].Value.(bool)
	if !ok {
		return nil, ErrMalformed
	}

	filter, err := DecodeFilter(c[6])
	if err != nil {
		return nil, err
	}

	var attrs []string
	for _, a := range c[7].Children {
		v, ok := a.Value.(string)
		if !ok {
			v = string(a.Data.Bytes())
		}
		attrs = append(attrs, v)
	}

	return &SearchRequest{
		BaseObject:   base,
		Scope:        Scope(scope),
		DerefAliases: DerefAliases(deref),
		SizeLimit:    sizeLimit,
		TimeLimit:    timeLimit,
		TypesOnly:    typesOnly,
		Filter:       filter,
		Attributes:   attrs,
	}, nil
}

// SearchResultDone is the [APPLICATION 5] terminator of a search, an
// LDAPResult with no extra fields.
type SearchResultDone struct {
	ResultCode        ResultCode
	MatchedDN         string
	DiagnosticMessage string
}

// DecodeSearchResultDone decodes op (an appSearchResultDone-tagged
// packet) received from the upstream, used to decide whether a search's
// accumulated entries are eligible for the cache.
func DecodeSearchResultDone(op *asn1ber.Packet) (*SearchResultDone, error) {
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
	return &SearchResultDone{ResultCode: ResultCode(rc), MatchedDN: matched, DiagnosticMessage: diag}, nil
}

// EncodeSearchResultDone builds the [APPLICATION 5] SearchResultDone op
// packet the proxy sends to terminate a search it answered itself,
// either from cache or with a locally-synthesized error.
func EncodeSearchResultDone(d SearchResultDone) *asn1ber.Packet {
	op := asn1ber.Encode(asn1ber.ClassApplication, asn1ber.TypeConstructed, uint8(appSearchResultDone), nil, "SearchResultDone")
	op.AppendChild(asn1ber.NewInteger(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagEnumerated, int64(d.ResultCode), "resultCode"))
	op.AppendChild(asn1ber.NewString(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagOctetString, d.MatchedDN, "matchedDN"))
	op.AppendChild(asn1ber.NewString(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagOctetString, d.DiagnosticMessage, "diagnosticMessage"))
	return op
}

// PartialAttribute is one attribute/value-set pair within a
// SearchResultEntry.
type PartialAttribute struct {
	Type   string
	Values []string
}

// SearchResultEntry is a decoded or synthesized [APPLICATION 4]
// SearchResultEntry.
type SearchResultEntry struct {
	ObjectName string
	Attributes []PartialAttribute
}

// DecodeSearchResultEntry decodes op (an appSearchResultEntry-tagged
// packet) into its object name and attributes.
func DecodeSearchResultEntry(op *asn1ber.Packet) (*SearchResultEntry, error) {
	if len(op.Children) != 2 {
		return nil, ErrMalformed
	}
	name, ok := op.Children[0].Value.(string)
	if !ok {
		name = string(op.Children[0].Data.Bytes())
	}
	entry := &SearchResultEntry{ObjectName: name}
	for _, pa := range op.Children[1].Children {
		if len(pa.Children) != 2 {
			return nil, ErrMalformed
		}
		typ, ok := pa.Children[0].Value.(string)
		if !ok {
			typ = string(pa.Children[0].Data.Bytes())
		}
		var values []string
		for _, v := range pa.Children[1].Children {
			values = append(values, string(v.Data.Bytes()))
		}
		entry.Attributes = append(entry.Attributes, PartialAttribute{Type: typ, Values: values})
	}
	return entry, nil
}

// EncodeSearchResultEntry builds the [APPLICATION 4] op packet for a
// SearchResultEntry.
func EncodeSearchResultEntry(e SearchResultEntry) *asn1ber.Packet {
	op := asn1ber.Encode(asn1ber.ClassApplication, asn1ber.TypeConstructed, uint8(appSearchResultEntry), nil, "SearchResultEntry")
	op.AppendChild(asn1ber.NewString(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagOctetString, e.ObjectName, "objectName"))
	attrs := asn1ber.Encode(asn1ber.ClassUniversal, asn1ber.TypeConstructed, asn1ber.TagSequence, nil, "attributes")
	for _, pa := range e.Attributes {
		paPkt := asn1ber.Encode(asn1ber.ClassUniversal, asn1ber.TypeConstructed, asn1ber.TagSequence, nil, "partialAttribute")
		paPkt.AppendChild(asn1ber.NewString(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagOctetString, pa.Type, "type"))
		vals := asn1ber.Encode(asn1ber.ClassUniversal, asn1ber.TypeConstructed, asn1ber.TagSet, nil, "vals")
		for _, v := range pa.Values {
			vals.AppendChild(asn1ber.NewString(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagOctetString, v, "value"))
		}
		paPkt.AppendChild(vals)
		attrs.AppendChild(paPkt)
	}
	op.AppendChild(attrs)
	return op
}

// SearchResultReference is a decoded or synthesized [APPLICATION 19]
// SearchResultReference: one or more continuation URIs.
type SearchResultReference []string

// DecodeSearchResultReference decodes op into a list of referral URIs.
func DecodeSearchResultReference(op *asn1ber.Packet) (SearchResultReference, error) {
	var uris SearchResultReference
	for _, u := range op.Children {
		v, ok := u.Value.(string)
		if !ok {
			v = string(u.Data.Bytes())
		}
		uris = append(uris, v)
	}
	return uris, nil
}

// EncodeSearchResultReference builds the [APPLICATION 19] op packet
// for a list of continuation URIs.
func EncodeSearchResultReference(uris SearchResultReference) *asn1ber.Packet {
	op := asn1ber.Encode(asn1ber.ClassApplication, asn1ber.TypeConstructed, uint8(appSearchResultReference), nil, "SearchResultReference")
	for _, u := range uris {
		op.AppendChild(asn1ber.NewString(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagOctetString, u, "uri"))
	}
	return op
}
