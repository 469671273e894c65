package ber_test

import (
	"testing"

	asn1ber "github.com/go-asn1-ber/asn1-ber"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonroyaalmerol/ldap-proxy/internal/ber"
)

func TestDecodeExtendedRequest_WhoAmI(t *testing.T) {
	op := asn1ber.Encode(asn1ber.ClassApplication, asn1ber.TypeConstructed, 23, nil, "ExtendedRequest")
	name := asn1ber.Encode(asn1ber.ClassContext, asn1ber.TypePrimitive, 0, nil, "requestName")
	name.Data.Write([]byte(ber.WhoAmIOID))
	op.AppendChild(name)

	req, err := ber.DecodeExtendedRequest(op)
	require.NoError(t, err)
	assert.Equal(t, ber.WhoAmIOID, req.Name)
	assert.Nil(t, req.Value)
}

func TestExtendedResponse_WhoAmIRoundTrip(t *testing.T) {
	resp := ber.ExtendedResponse{
		ResultCode: ber.Success,
		Value:      ber.WhoAmIResponseValue("cn=admin,dc=example,dc=com"),
	}
	op := ber.EncodeExtendedResponse(resp)
	decoded, err := ber.DecodeExtendedResponse(op)
	require.NoError(t, err)
	assert.Equal(t, ber.Success, decoded.ResultCode)
	assert.Equal(t, []byte("dn:cn=admin,dc=example,dc=com"), decoded.Value)
}

func TestWhoAmIResponseValue_Anonymous(t *testing.T) {
	assert.Equal(t, []byte{}, ber.WhoAmIResponseValue(""))
}
