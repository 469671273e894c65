// Package listener owns the TLS-terminating TCP accept loop the proxy
// listens on: one SO_REUSEPORT socket per CPU core, optional PROXY
// protocol v2 unwrapping, and a handler goroutine per accepted
// connection.
package listener

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"runtime"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Config configures a Listener.
type Config struct {
	Addr          string
	TLSCertPath   string
	TLSKeyPath    string
	ProxyProtocol bool // remote_ip_addr_info = "ProxyV2"
	Logger        *slog.Logger
}

// Handler processes one accepted, already-unwrapped connection. It owns
// the connection's full lifetime, including closing it.
type Handler func(ctx context.Context, conn net.Conn)

// Listener runs the TLS accept loop across one or more SO_REUSEPORT
// sockets bound to the same address.
type Listener struct {
	cfg       Config
	tlsConfig *tls.Config

	mu        sync.Mutex
	listeners []net.Listener
	wg        sync.WaitGroup
}

// New builds a Listener. tlsConfig must already carry the server's
// certificate chain (see BuildServerTLSConfig).
func New(cfg Config, tlsConfig *tls.Config) *Listener {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Listener{cfg: cfg, tlsConfig: tlsConfig}
}

// BuildServerTLSConfig loads a certificate chain and private key for
// terminating inbound client TLS.
func BuildServerTLSConfig(certPath, keyPath string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("listener: loading tls_chain/tls_key: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// Run opens one SO_REUSEPORT listener per CPU core, wraps each in TLS,
// and dispatches accepted connections to handle until ctx is canceled,
// at which point it closes the sockets and blocks for up to 5 seconds
// for the accept loops to exit. Handler goroutines already running are
// not waited for.
func (l *Listener) Run(ctx context.Context, handle Handler) error {
	socketCount := runtime.NumCPU()

	for range socketCount {
		ln, err := listenTCPReusePort(ctx, l.cfg.Addr)
		if err != nil {
			l.closeAll()
			return err
		}
		// PROXY protocol, when present, precedes the TLS handshake on
		// the wire, so it must unwrap the raw TCP listener before TLS
		// is layered on top — never the other way around.
		if l.cfg.ProxyProtocol {
			ln = wrapProxyProtoListener(ln)
		}
		tlsLn := tls.NewListener(ln, l.tlsConfig)

		l.mu.Lock()
		l.listeners = append(l.listeners, tlsLn)
		l.mu.Unlock()

		listener := tlsLn
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.acceptLoop(ctx, listener, handle)
		}()
	}

	l.cfg.Logger.Info("listener started", slog.String("addr", l.cfg.Addr), slog.Int("sockets", socketCount))

	<-ctx.Done()
	return l.Stop(5 * time.Second)
}

func (l *Listener) acceptLoop(ctx context.Context, ln net.Listener, handle Handler) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.cfg.Logger.Warn("accept failed", slog.Any("error", err))
			return
		}

		go handle(ctx, conn)
	}
}

// Stop closes every listener socket and waits up to timeout for
// in-flight accept loops to exit.
func (l *Listener) Stop(timeout time.Duration) error {
	l.closeAll()

	if timeout <= 0 {
		l.wg.Wait()
		return nil
	}

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.New("listener: timeout waiting for accept loops to stop")
	}
}

// Addrs returns the bound address of each underlying socket, useful in
// tests that listen on port 0 and need to discover the chosen port.
func (l *Listener) Addrs() []net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	addrs := make([]net.Addr, len(l.listeners))
	for i, ln := range l.listeners {
		addrs[i] = ln.Addr()
	}
	return addrs
}

func (l *Listener) closeAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ln := range l.listeners {
		_ = ln.Close()
	}
}

// listenTCPReusePort creates a TCP listener with SO_REUSEPORT enabled,
// so multiple sockets can share one address with the kernel
// distributing accepted connections across them.
func listenTCPReusePort(ctx context.Context, addr string) (net.Listener, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			return c.Control(func(fd uintptr) {
				_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
		},
	}
	return lc.Listen(ctx, "tcp", addr)
}
