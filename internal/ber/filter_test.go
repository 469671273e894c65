package ber_test

import (
	"testing"

	asn1ber "github.com/go-asn1-ber/asn1-ber"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonroyaalmerol/ldap-proxy/internal/ber"
)

func encodeEqualityFilter(attr, val string) *asn1ber.Packet {
	p := asn1ber.Encode(asn1ber.ClassContext, asn1ber.TypeConstructed, uint8(ber.FilterEqualityMatch), nil, "equalityMatch")
	p.AppendChild(asn1ber.NewString(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagOctetString, attr, "attribute"))
	p.AppendChild(asn1ber.NewString(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagOctetString, val, "value"))
	return p
}

func encodePresentFilter(attr string) *asn1ber.Packet {
	p := asn1ber.Encode(asn1ber.ClassContext, asn1ber.TypePrimitive, uint8(ber.FilterPresent), nil, "present")
	p.Data.Write([]byte(attr))
	return p
}

func TestDecodeFilter_Equality(t *testing.T) {
	f, err := ber.DecodeFilter(encodeEqualityFilter("cn", "alice"))
	require.NoError(t, err)
	assert.Equal(t, ber.FilterEqualityMatch, f.Type)
	assert.Equal(t, "cn", f.AVA.Attribute)
	assert.Equal(t, "alice", f.AVA.Value)
	assert.Equal(t, "(cn=alice)", f.Canonical())
}

func TestDecodeFilter_Present(t *testing.T) {
	f, err := ber.DecodeFilter(encodePresentFilter("mail"))
	require.NoError(t, err)
	assert.Equal(t, "(mail=*)", f.Canonical())
}

func TestFilter_CanonicalAndSortsAndOperands(t *testing.T) {
	and := asn1ber.Encode(asn1ber.ClassContext, asn1ber.TypeConstructed, uint8(ber.FilterAnd), nil, "and")
	and.AppendChild(encodeEqualityFilter("sn", "zed"))
	and.AppendChild(encodeEqualityFilter("cn", "alice"))

	f, err := ber.DecodeFilter(and)
	require.NoError(t, err)

	// Operand order in the canonical form must not depend on wire
	// order, so that the fingerprint hash is stable regardless of how
	// a client happened to encode the filter.
	assert.Equal(t, "(&(cn=alice)(sn=zed))", f.Canonical())
}

func TestFilter_CanonicalFoldsAttributeCase(t *testing.T) {
	f, err := ber.DecodeFilter(encodeEqualityFilter("CN", "Bob"))
	require.NoError(t, err)
	assert.Equal(t, "(cn=Bob)", f.Canonical())
}

func TestFilter_CanonicalEscapesSpecialChars(t *testing.T) {
	f, err := ber.DecodeFilter(encodeEqualityFilter("cn", "a(b)*c\\d"))
	require.NoError(t, err)
	assert.Equal(t, `(cn=a\28b\29\2ac\5cd)`, f.Canonical())
}

func TestDecodeFilter_Substrings(t *testing.T) {
	sub := asn1ber.Encode(asn1ber.ClassContext, asn1ber.TypeConstructed, uint8(ber.FilterSubstrings), nil, "substrings")
	sub.AppendChild(asn1ber.NewString(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagOctetString, "cn", "type"))
	subSeq := asn1ber.Encode(asn1ber.ClassUniversal, asn1ber.TypeConstructed, asn1ber.TagSequence, nil, "substrings")
	initial := asn1ber.Encode(asn1ber.ClassContext, asn1ber.TypePrimitive, 0, nil, "initial")
	initial.Data.Write([]byte("al"))
	any := asn1ber.Encode(asn1ber.ClassContext, asn1ber.TypePrimitive, 1, nil, "any")
	any.Data.Write([]byte("ic"))
	final := asn1ber.Encode(asn1ber.ClassContext, asn1ber.TypePrimitive, 2, nil, "final")
	final.Data.Write([]byte("e"))
	subSeq.AppendChild(initial)
	subSeq.AppendChild(any)
	subSeq.AppendChild(final)
	sub.AppendChild(subSeq)

	f, err := ber.DecodeFilter(sub)
	require.NoError(t, err)
	assert.Equal(t, "(cn=al*ic*e)", f.Canonical())
}

func TestDecodeFilter_Not(t *testing.T) {
	not := asn1ber.Encode(asn1ber.ClassContext, asn1ber.TypeConstructed, uint8(ber.FilterNot), nil, "not")
	not.AppendChild(encodeEqualityFilter("cn", "alice"))

	f, err := ber.DecodeFilter(not)
	require.NoError(t, err)
	assert.Equal(t, "(!(cn=alice))", f.Canonical())
}
