package listener

import (
	"net"

	"github.com/pires/go-proxyproto"
)

// wrapProxyProtoListener wraps ln so each accepted connection's PROXY
// protocol v2 header is parsed from the raw TCP stream before TLS is
// layered on top. The header is consumed lazily on first Read, and
// conn.RemoteAddr() reports the proxied client address afterward —
// logging, audit and rate-limiting all see the real source IP, and the
// BER codec further up the stack never sees the header bytes at all.
func wrapProxyProtoListener(ln net.Listener) net.Listener {
	return &proxyproto.Listener{Listener: ln}
}
