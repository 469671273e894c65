package ber_test

import (
	"testing"

	asn1ber "github.com/go-asn1-ber/asn1-ber"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonroyaalmerol/ldap-proxy/internal/ber"
)

func encodeSearchRequest(t *testing.T) *asn1ber.Packet {
	t.Helper()
	op := asn1ber.Encode(asn1ber.ClassApplication, asn1ber.TypeConstructed, 3, nil, "SearchRequest")
	op.AppendChild(asn1ber.NewString(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagOctetString, "dc=example,dc=com", "baseObject"))
	op.AppendChild(asn1ber.NewInteger(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagEnumerated, int64(ber.ScopeWholeSubtree), "scope"))
	op.AppendChild(asn1ber.NewInteger(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagEnumerated, int64(ber.DerefNever), "derefAliases"))
	op.AppendChild(asn1ber.NewInteger(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagInteger, 0, "sizeLimit"))
	op.AppendChild(asn1ber.NewInteger(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagInteger, 0, "timeLimit"))
	op.AppendChild(asn1ber.NewBoolean(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagBoolean, false, "typesOnly"))
	op.AppendChild(encodeEqualityFilter("uid", "alice"))
	attrs := asn1ber.Encode(asn1ber.ClassUniversal, asn1ber.TypeConstructed, asn1ber.TagSequence, nil, "attributes")
	attrs.AppendChild(asn1ber.NewString(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagOctetString, "cn", "attr"))
	attrs.AppendChild(asn1ber.NewString(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagOctetString, "mail", "attr"))
	op.AppendChild(attrs)
	return op
}

func TestDecodeSearchRequest(t *testing.T) {
	req, err := ber.DecodeSearchRequest(encodeSearchRequest(t))
	require.NoError(t, err)

	assert.Equal(t, "dc=example,dc=com", req.BaseObject)
	assert.Equal(t, ber.ScopeWholeSubtree, req.Scope)
	assert.Equal(t, ber.DerefNever, req.DerefAliases)
	assert.False(t, req.TypesOnly)
	assert.Equal(t, []string{"cn", "mail"}, req.Attributes)
	assert.Equal(t, "(uid=alice)", req.Filter.Canonical())
}

func TestSearchResultEntry_RoundTrip(t *testing.T) {
	entry := ber.SearchResultEntry{
		ObjectName: "uid=alice,dc=example,dc=com",
		Attributes: []ber.PartialAttribute{
			{Type: "cn", Values: []string{"Alice Example"}},
			{Type: "mail", Values: []string{"alice@example.com", "alice@example.org"}},
		},
	}
	op := ber.EncodeSearchResultEntry(entry)
	decoded, err := ber.DecodeSearchResultEntry(op)
	require.NoError(t, err)
	assert.Equal(t, entry, *decoded)
}

func TestSearchResultReference_RoundTrip(t *testing.T) {
	refs := ber.SearchResultReference{"ldap://other.example.com/dc=example,dc=com"}
	op := ber.EncodeSearchResultReference(refs)
	decoded, err := ber.DecodeSearchResultReference(op)
	require.NoError(t, err)
	assert.Equal(t, refs, decoded)
}

func TestEncodeSearchResultDone(t *testing.T) {
	op := ber.EncodeSearchResultDone(ber.SearchResultDone{ResultCode: ber.Unavailable, DiagnosticMessage: "upstream down"})
	assert.EqualValues(t, 5, op.Tag)
	assert.Len(t, op.Children, 3)
}
