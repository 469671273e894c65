package session_test

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	asn1ber "github.com/go-asn1-ber/asn1-ber"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonroyaalmerol/ldap-proxy/internal/ber"
	"github.com/sonroyaalmerol/ldap-proxy/internal/cache"
	"github.com/sonroyaalmerol/ldap-proxy/internal/policy"
	"github.com/sonroyaalmerol/ldap-proxy/internal/session"
	"github.com/sonroyaalmerol/ldap-proxy/internal/upstream"
)

// testClientConn drives the simulated LDAP client's end of the pipe
// feeding a Session under test.
type testClientConn struct {
	conn net.Conn
	r    *bufio.Reader
}

func newTestClientConn(conn net.Conn) *testClientConn {
	return &testClientConn{conn: conn, r: bufio.NewReader(conn)}
}

func (tc *testClientConn) send(t *testing.T, raw []byte) {
	t.Helper()
	_, err := tc.conn.Write(raw)
	require.NoError(t, err)
}

func (tc *testClientConn) recv(t *testing.T) *ber.Envelope {
	t.Helper()
	frame, packet, err := ber.ReadEnvelope(tc.r, 0)
	require.NoError(t, err)
	env, err := ber.DecodeEnvelope(frame, packet)
	require.NoError(t, err)
	return env
}

// fakeUpstream drives the simulated directory server's end of the
// pipe the upstream.Client is wired to.
type fakeUpstream struct {
	conn net.Conn
	r    *bufio.Reader
}

func newFakeUpstream(conn net.Conn) *fakeUpstream {
	return &fakeUpstream{conn: conn, r: bufio.NewReader(conn)}
}

func (f *fakeUpstream) recvRequest(t *testing.T) *ber.Envelope {
	t.Helper()
	frame, packet, err := ber.ReadEnvelope(f.r, 0)
	require.NoError(t, err)
	env, err := ber.DecodeEnvelope(frame, packet)
	require.NoError(t, err)
	return env
}

func (f *fakeUpstream) respondBind(t *testing.T, messageID int64, rc ber.ResultCode) {
	t.Helper()
	op := ber.EncodeBindResponse(ber.BindResponse{ResultCode: rc})
	_, err := f.conn.Write(ber.EncodeMessage(messageID, op))
	require.NoError(t, err)
}

func (f *fakeUpstream) respondSearchEntryThenDone(t *testing.T, messageID int64, dn string, rc ber.ResultCode) {
	t.Helper()
	entryOp := ber.EncodeSearchResultEntry(ber.SearchResultEntry{ObjectName: dn})
	_, err := f.conn.Write(ber.EncodeMessage(messageID, entryOp))
	require.NoError(t, err)
	doneOp := ber.EncodeSearchResultDone(ber.SearchResultDone{ResultCode: rc})
	_, err = f.conn.Write(ber.EncodeMessage(messageID, doneOp))
	require.NoError(t, err)
}

func buildBindEnvelopeBytes(t *testing.T, messageID int64, dn, password string) []byte {
	t.Helper()
	op := asn1ber.Encode(asn1ber.ClassApplication, asn1ber.TypeConstructed, 0, nil, "BindRequest")
	op.AppendChild(asn1ber.NewInteger(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagInteger, int64(3), "version"))
	op.AppendChild(asn1ber.NewString(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagOctetString, dn, "name"))
	simple := asn1ber.Encode(asn1ber.ClassContext, asn1ber.TypePrimitive, 0, nil, "simple")
	simple.Data.WriteString(password)
	simple.Value = password
	op.AppendChild(simple)
	return ber.EncodeMessage(messageID, op)
}

func buildSearchEnvelopeBytes(t *testing.T, messageID int64, base string, scope ber.Scope) []byte {
	t.Helper()
	op := asn1ber.Encode(asn1ber.ClassApplication, asn1ber.TypeConstructed, 3, nil, "SearchRequest")
	op.AppendChild(asn1ber.NewString(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagOctetString, base, "baseObject"))
	op.AppendChild(asn1ber.NewInteger(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagEnumerated, int64(scope), "scope"))
	op.AppendChild(asn1ber.NewInteger(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagEnumerated, 0, "derefAliases"))
	op.AppendChild(asn1ber.NewInteger(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagInteger, 0, "sizeLimit"))
	op.AppendChild(asn1ber.NewInteger(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagInteger, 0, "timeLimit"))
	op.AppendChild(asn1ber.NewBoolean(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagBoolean, false, "typesOnly"))
	present := asn1ber.Encode(asn1ber.ClassContext, asn1ber.TypePrimitive, 7, nil, "present")
	present.Data.Write([]byte("objectClass"))
	op.AppendChild(present)
	op.AppendChild(asn1ber.Encode(asn1ber.ClassUniversal, asn1ber.TypeConstructed, asn1ber.TagSequence, nil, "attributes"))
	return ber.EncodeMessage(messageID, op)
}

func buildDelEnvelopeBytes(t *testing.T, messageID int64, dn string) []byte {
	t.Helper()
	op := asn1ber.NewString(asn1ber.ClassApplication, asn1ber.TypePrimitive, 10, dn, "DelRequest")
	return ber.EncodeMessage(messageID, op)
}

func buildCompareEnvelopeBytes(t *testing.T, messageID int64, dn string) []byte {
	t.Helper()
	op := asn1ber.Encode(asn1ber.ClassApplication, asn1ber.TypeConstructed, 14, nil, "CompareRequest")
	op.AppendChild(asn1ber.NewString(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagOctetString, dn, "entry"))
	ava := asn1ber.Encode(asn1ber.ClassUniversal, asn1ber.TypeConstructed, asn1ber.TagSequence, nil, "ava")
	ava.AppendChild(asn1ber.NewString(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagOctetString, "cn", "attributeDesc"))
	ava.AppendChild(asn1ber.NewString(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagOctetString, "someone", "assertionValue"))
	op.AppendChild(ava)
	return ber.EncodeMessage(messageID, op)
}

// newTestSession wires a Session over one net.Pipe (simulated client)
// and an upstream.Client over another (simulated directory), running
// Session.Run in the background. The caller drives the client side and
// the fake upstream side independently.
func newTestSession(t *testing.T, p *policy.Map, c cache.Cache) (*testClientConn, *fakeUpstream, *upstream.Client) {
	t.Helper()

	clientServerEnd, clientSideEnd := net.Pipe()
	upServerEnd, upClientEnd := net.Pipe()
	t.Cleanup(func() {
		_ = clientSideEnd.Close()
		_ = upServerEnd.Close()
	})

	up := upstream.NewWithConn(upClientEnd, upstream.Config{Addr: "test"})

	sess := session.New(clientServerEnd, "conn-test", p, up, c, nil, session.Limits{MaxIncomingBERSize: 0}, nil)
	go func() { _ = sess.Run(context.Background()) }()

	return newTestClientConn(clientSideEnd), newFakeUpstream(upServerEnd), up
}

func TestSession_BindDeniedByPolicy(t *testing.T) {
	pmap := policy.NewMap(nil, false)
	mc := cache.NewMemoryCache(0)
	tc, _, _ := newTestSession(t, pmap, mc)

	tc.send(t, buildBindEnvelopeBytes(t, 1, "cn=user,dc=example,dc=com", "secret"))

	env := tc.recv(t)
	assert.Equal(t, int64(1), env.MessageID)
	resp, err := ber.DecodeBindResponse(env.Op)
	require.NoError(t, err)
	assert.Equal(t, ber.InsufficientAccessRights, resp.ResultCode)
}

func TestSession_SearchBeforeBindReturnsOperationsError(t *testing.T) {
	pmap := policy.NewMap(nil, true)
	mc := cache.NewMemoryCache(0)
	tc, _, _ := newTestSession(t, pmap, mc)

	tc.send(t, buildSearchEnvelopeBytes(t, 7, "dc=example,dc=com", ber.ScopeWholeSubtree))

	env := tc.recv(t)
	assert.Equal(t, int64(7), env.MessageID)
	done, err := ber.DecodeSearchResultDone(env.Op)
	require.NoError(t, err)
	assert.Equal(t, ber.OperationsError, done.ResultCode)
}

func TestSession_WriteClassRejectedWithoutContactingUpstream(t *testing.T) {
	pmap := policy.NewMap(nil, true)
	mc := cache.NewMemoryCache(0)
	tc, fu, up := newTestSession(t, pmap, mc)
	upstream.MarkHealthyForTest(up)

	tc.send(t, buildDelEnvelopeBytes(t, 3, "cn=doomed,dc=example,dc=com"))

	env := tc.recv(t)
	assert.Equal(t, int64(3), env.MessageID)
	assert.Equal(t, uint8(11), env.AppTag()) // DelResponse

	result, err := ber.DecodeBindResponse(env.Op) // LDAPResult shares BindResponse's first 3 fields
	require.NoError(t, err)
	assert.Equal(t, ber.UnwillingToPerform, result.ResultCode)

	// The fake upstream must never have seen a request: a short read
	// deadline should time out rather than yield a frame.
	require.NoError(t, fu.conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	buf := make([]byte, 1)
	_, err = fu.conn.Read(buf)
	assert.Error(t, err)
}

func TestSession_CompareRejectedDistinctlyFromWriteClass(t *testing.T) {
	pmap := policy.NewMap(nil, true)
	mc := cache.NewMemoryCache(0)
	tc, fu, up := newTestSession(t, pmap, mc)
	upstream.MarkHealthyForTest(up)

	tc.send(t, buildCompareEnvelopeBytes(t, 9, "cn=someone,dc=example,dc=com"))

	env := tc.recv(t)
	assert.Equal(t, int64(9), env.MessageID)
	assert.Equal(t, uint8(15), env.AppTag()) // CompareResponse

	result, err := ber.DecodeBindResponse(env.Op) // LDAPResult shares BindResponse's first 3 fields
	require.NoError(t, err)
	assert.Equal(t, ber.UnwillingToPerform, result.ResultCode)
	assert.Equal(t, "compare is not supported through this proxy", result.DiagnosticMessage)

	require.NoError(t, fu.conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	buf := make([]byte, 1)
	_, err = fu.conn.Read(buf)
	assert.Error(t, err)
}

func TestSession_BindSuccessThenAllowedSearch(t *testing.T) {
	const dn = "cn=user,dc=example,dc=com"
	entries := map[string]policy.Entry{
		dn: {},
	}
	pmap := policy.NewMap(entries, false)
	mc := cache.NewMemoryCache(0)
	tc, fu, up := newTestSession(t, pmap, mc)

	upstream.MarkHealthyForTest(up)

	tc.send(t, buildBindEnvelopeBytes(t, 1, dn, "secret"))
	reqEnv := fu.recvRequest(t)
	fu.respondBind(t, reqEnv.MessageID, ber.Success)

	bindRespEnv := tc.recv(t)
	assert.Equal(t, int64(1), bindRespEnv.MessageID)
	bindResp, err := ber.DecodeBindResponse(bindRespEnv.Op)
	require.NoError(t, err)
	assert.Equal(t, ber.Success, bindResp.ResultCode)

	tc.send(t, buildSearchEnvelopeBytes(t, 2, "dc=example,dc=com", ber.ScopeWholeSubtree))
	searchReqEnv := fu.recvRequest(t)
	fu.respondSearchEntryThenDone(t, searchReqEnv.MessageID, "cn=found,dc=example,dc=com", ber.Success)

	entryEnv := tc.recv(t)
	assert.Equal(t, int64(2), entryEnv.MessageID)
	entry, err := ber.DecodeSearchResultEntry(entryEnv.Op)
	require.NoError(t, err)
	assert.Equal(t, "cn=found,dc=example,dc=com", entry.ObjectName)

	doneEnv := tc.recv(t)
	assert.Equal(t, int64(2), doneEnv.MessageID)
	done, err := ber.DecodeSearchResultDone(doneEnv.Op)
	require.NoError(t, err)
	assert.Equal(t, ber.Success, done.ResultCode)
}

func TestSession_SearchFallsBackToCacheWhenUpstreamUnavailable(t *testing.T) {
	const dn = "cn=user,dc=example,dc=com"
	entries := map[string]policy.Entry{dn: {}}
	pmap := policy.NewMap(entries, false)
	mc := cache.NewMemoryCache(0)

	req := &ber.SearchRequest{
		BaseObject: "dc=example,dc=com",
		Scope:      ber.ScopeWholeSubtree,
		Filter:     &ber.Filter{Type: ber.FilterPresent, Present: "objectClass"},
	}
	fp := cache.ComputeFingerprint(req)
	entryOp := ber.EncodeSearchResultEntry(ber.SearchResultEntry{ObjectName: "cn=cached,dc=example,dc=com"})
	doneOp := ber.EncodeSearchResultDone(ber.SearchResultDone{ResultCode: ber.Success})
	require.NoError(t, mc.Put(context.Background(), fp, &cache.Response{
		PDUs:     []cache.PDU{{AppTag: 4, Body: entryOp.Bytes()}},
		DoneBody: doneOp.Bytes(),
	}))

	tc, fu, up := newTestSession(t, pmap, mc)
	upstream.MarkHealthyForTest(up)

	tc.send(t, buildBindEnvelopeBytes(t, 1, dn, "secret"))
	reqEnv := fu.recvRequest(t)
	fu.respondBind(t, reqEnv.MessageID, ber.Success)
	bindRespEnv := tc.recv(t)
	bindResp, err := ber.DecodeBindResponse(bindRespEnv.Op)
	require.NoError(t, err)
	require.Equal(t, ber.Success, bindResp.ResultCode)

	// Sever the upstream connection and wait for the reader loop to
	// notice and flip health back to Unhealthy before issuing the
	// search that should now be answered from cache.
	require.NoError(t, fu.conn.Close())
	deadline := time.Now().Add(2 * time.Second)
	for up.Health() != upstream.Unhealthy && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, upstream.Unhealthy, up.Health())

	tc.send(t, buildSearchEnvelopeBytes(t, 9, "dc=example,dc=com", ber.ScopeWholeSubtree))

	entryEnv := tc.recv(t)
	assert.Equal(t, int64(9), entryEnv.MessageID)
	entry, err := ber.DecodeSearchResultEntry(entryEnv.Op)
	require.NoError(t, err)
	assert.Equal(t, "cn=cached,dc=example,dc=com", entry.ObjectName)

	doneEnv := tc.recv(t)
	done, err := ber.DecodeSearchResultDone(doneEnv.Op)
	require.NoError(t, err)
	assert.Equal(t, ber.Success, done.ResultCode)
}

func TestSession_SearchUnavailableWithNoCacheEntry(t *testing.T) {
	const dn = "cn=user,dc=example,dc=com"
	entries := map[string]policy.Entry{dn: {}}
	pmap := policy.NewMap(entries, false)
	mc := cache.NewMemoryCache(0)
	tc, fu, up := newTestSession(t, pmap, mc)
	upstream.MarkHealthyForTest(up)

	tc.send(t, buildBindEnvelopeBytes(t, 1, dn, "secret"))
	reqEnv := fu.recvRequest(t)
	fu.respondBind(t, reqEnv.MessageID, ber.Success)
	bindRespEnv := tc.recv(t)
	_, err := ber.DecodeBindResponse(bindRespEnv.Op)
	require.NoError(t, err)

	require.NoError(t, fu.conn.Close())
	deadline := time.Now().Add(2 * time.Second)
	for up.Health() != upstream.Unhealthy && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, upstream.Unhealthy, up.Health())

	tc.send(t, buildSearchEnvelopeBytes(t, 4, "dc=example,dc=com", ber.ScopeWholeSubtree))
	doneEnv := tc.recv(t)
	assert.Equal(t, int64(4), doneEnv.MessageID)
	done, err := ber.DecodeSearchResultDone(doneEnv.Op)
	require.NoError(t, err)
	assert.Equal(t, ber.Unavailable, done.ResultCode)
}
