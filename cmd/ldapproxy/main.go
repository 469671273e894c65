// Command ldapproxy runs the LDAP fallback proxy: a TLS-terminating
// passthrough in front of a single upstream directory that authorizes
// binds and searches against a configured bind-map, replays the last
// known-good search result when the upstream is unreachable, and
// exposes a small read-only management API.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/sonroyaalmerol/ldap-proxy/internal/api"
	"github.com/sonroyaalmerol/ldap-proxy/internal/api/handlers"
	"github.com/sonroyaalmerol/ldap-proxy/internal/api/models"
	"github.com/sonroyaalmerol/ldap-proxy/internal/audit"
	"github.com/sonroyaalmerol/ldap-proxy/internal/cache"
	"github.com/sonroyaalmerol/ldap-proxy/internal/config"
	"github.com/sonroyaalmerol/ldap-proxy/internal/listener"
	"github.com/sonroyaalmerol/ldap-proxy/internal/logging"
	"github.com/sonroyaalmerol/ldap-proxy/internal/policy"
	"github.com/sonroyaalmerol/ldap-proxy/internal/ratelimit"
	"github.com/sonroyaalmerol/ldap-proxy/internal/session"
	"github.com/sonroyaalmerol/ldap-proxy/internal/upstream"

	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// cliFlags holds parsed command-line flag values.
type cliFlags struct {
	configPath string
	debug      bool
	jsonLogs   bool
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.configPath, "config", "", "Path to TOML config file (overrides LDAPPROXY_CONFIG)")
	flag.BoolVar(&f.debug, "debug", false, "Enable debug logging")
	flag.BoolVar(&f.jsonLogs, "json-logs", false, "Enable JSON structured logging")
	flag.Parse()
	return f
}

func applyCLIOverrides(cfg *config.Config, f cliFlags) {
	if f.jsonLogs {
		cfg.Logging.Structured = true
		cfg.Logging.StructuredFormat = "json"
	}
	if f.debug {
		cfg.Logging.Level = "DEBUG"
	}
}

// proxy bundles every long-lived component main wires together, so
// run's per-connection handler and the API's stats/config closures can
// all close over the same live state.
type proxy struct {
	cfg      *config.Config
	logger   *slog.Logger
	upstream *upstream.Client
	cache    *cache.Instrumented
	auditLog *audit.Store
	limiter  *ratelimit.Limiter

	activeSessions atomic.Int64
}

func run() error {
	flags := parseFlags()

	cfg, err := config.Load(config.ResolveConfigPath(flags.configPath))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyCLIOverrides(cfg, flags)

	logger := logging.Configure(logging.Config{
		Level:            cfg.Logging.Level,
		Structured:       cfg.Logging.Structured,
		StructuredFormat: cfg.Logging.StructuredFormat,
		IncludePID:       cfg.Logging.IncludePID,
		ExtraFields:      cfg.Logging.ExtraFields,
	})
	logger.Info("ldapproxy starting",
		slog.String("bind", cfg.Bind),
		slog.String("ldap_url", cfg.LDAPURL),
		slog.String("remote_ip_addr_info", cfg.RemoteIPAddrInfo),
		slog.Int("bind_map_entries", len(cfg.BindMap)),
	)

	rlCfg := ratelimit.Config{
		Global:             ratelimit.TierConfig{Rate: cfg.RateLimit.GlobalQPS, Burst: cfg.RateLimit.GlobalBurst},
		Prefix:             ratelimit.TierConfig{Rate: cfg.RateLimit.PrefixQPS, Burst: cfg.RateLimit.PrefixBurst},
		IP:                 ratelimit.TierConfig{Rate: cfg.RateLimit.IPQPS, Burst: cfg.RateLimit.IPBurst},
		CleanupInterval:    time.Duration(cfg.RateLimit.CleanupSeconds * float64(time.Second)),
		MaxTrackedPrefixes: cfg.RateLimit.MaxPrefixEntries,
		MaxTrackedIPs:      cfg.RateLimit.MaxIPEntries,
	}
	logger.Info("rate limits", slog.String("effective", rlCfg.Summary()))

	backend, err := buildCache(cfg.Cache)
	if err != nil {
		return fmt.Errorf("building cache backend: %w", err)
	}
	instrumentedCache := cache.NewInstrumented(backend)
	defer instrumentedCache.Close()

	auditLog, err := audit.Open(audit.Config{Path: cfg.Audit.Path, QueueSize: cfg.Audit.QueueSize, Logger: logger})
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer auditLog.Close()

	upstreamClient, err := buildUpstreamClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("building upstream client: %w", err)
	}

	p := &proxy{
		cfg:      cfg,
		logger:   logger,
		upstream: upstreamClient,
		cache:    instrumentedCache,
		auditLog: auditLog,
		limiter:  ratelimit.NewLimiter(rlCfg),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	p.upstream.Start(ctx)
	defer p.upstream.Close()

	policyMap := cfg.BuildPolicyMap()

	var apiSrv *api.Server
	if cfg.API.Enabled {
		apiSrv = api.New(
			api.Config{Host: cfg.API.Host, Port: cfg.API.Port, APIKey: cfg.API.APIKey},
			logger, p.statsSnapshot, statsConfigFunc(cfg), auditLog,
		)
		logger.Info("management API starting", slog.String("addr", apiSrv.Addr()))
		go func() {
			if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("management API error", slog.Any("error", err))
			}
		}()
	}

	tlsConfig, err := listener.BuildServerTLSConfig(cfg.TLSChain, cfg.TLSKey)
	if err != nil {
		return fmt.Errorf("loading server TLS material: %w", err)
	}

	ln := listener.New(listener.Config{
		Addr:          cfg.Bind,
		TLSCertPath:   cfg.TLSChain,
		TLSKeyPath:    cfg.TLSKey,
		ProxyProtocol: cfg.RemoteIPAddrInfo == "ProxyV2",
		Logger:        logger,
	}, tlsConfig)

	runErr := ln.Run(ctx, func(ctx context.Context, conn net.Conn) {
		p.handleConn(ctx, conn, policyMap)
	})

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if apiSrv != nil {
		_ = apiSrv.Shutdown(shutdownCtx)
		logger.Info("management API stopped")
	}

	if runErr != nil {
		return fmt.Errorf("listener exited with error: %w", runErr)
	}
	return nil
}

// handleConn admits conn against the rate limiter, then drives one
// Session to completion. The connection is always closed by the time
// Session.Run returns.
func (p *proxy) handleConn(ctx context.Context, conn net.Conn, policyMap *policy.Map) {
	if addr, ok := remoteAddr(conn); ok && !p.limiter.Allow(addr) {
		p.logger.Warn("connection throttled", slog.String("remote_addr", conn.RemoteAddr().String()))
		_ = conn.Close()
		return
	}

	connID := uuid.New().String()[:8]
	sessionLogger := logging.SessionLogger(p.logger, connID, conn.RemoteAddr().String(), "")

	p.activeSessions.Add(1)
	defer p.activeSessions.Add(-1)

	sess := session.New(conn, connID, policyMap, p.upstream, p.cache, p.auditLog,
		session.Limits{MaxIncomingBERSize: p.cfg.MaxIncomingBERSize}, sessionLogger)

	if err := sess.Run(ctx); err != nil {
		sessionLogger.Debug("session ended", slog.Any("error", err))
	}
}

func (p *proxy) statsSnapshot() models.StatsResponse {
	return models.StatsResponse{
		ActiveSessions:       p.activeSessions.Load(),
		CacheHits:            p.cache.Hits(),
		CacheMisses:          p.cache.Misses(),
		UpstreamHealthy:      p.upstream.Health() == upstream.Healthy,
		AuditEventsDropped:   p.auditLog.Dropped(),
		ConnectionsThrottled: p.limiter.Denied(),
	}
}

func statsConfigFunc(cfg *config.Config) handlers.ConfigFunc {
	dns := make([]string, 0, len(cfg.BindMap))
	for dn := range cfg.BindMap {
		dns = append(dns, dn)
	}
	snapshot := models.ConfigSnapshot{
		Bind:               cfg.Bind,
		TLSChainPath:       cfg.TLSChain,
		TLSKeyPath:         "[redacted]",
		LDAPURL:            cfg.LDAPURL,
		MaxIncomingBERSize: cfg.MaxIncomingBERSize,
		MaxProxyBERSize:    cfg.MaxProxyBERSize,
		AllowAllBindDNs:    cfg.AllowAllBindDNs,
		RemoteIPAddrInfo:   cfg.RemoteIPAddrInfo,
		CacheType:          cfg.Cache.Type,
		BindMapDNs:         dns,
		RateLimitSummary: ratelimit.Config{
			Global: ratelimit.TierConfig{Rate: cfg.RateLimit.GlobalQPS, Burst: cfg.RateLimit.GlobalBurst},
			Prefix: ratelimit.TierConfig{Rate: cfg.RateLimit.PrefixQPS, Burst: cfg.RateLimit.PrefixBurst},
			IP:     ratelimit.TierConfig{Rate: cfg.RateLimit.IPQPS, Burst: cfg.RateLimit.IPBurst},
		}.Summary(),
		APIEnabled: cfg.API.Enabled,
		APIKeySet:  cfg.API.APIKey != "",
		AuditPath:  cfg.Audit.Path,
	}
	return func() models.ConfigSnapshot { return snapshot }
}

func buildCache(cfg config.CacheConfig) (cache.Cache, error) {
	switch cfg.Type {
	case "redis":
		opts, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing cache.url: %w", err)
		}
		client := redis.NewClient(opts)
		ttl := time.Duration(cfg.TTLSeconds) * time.Second
		prefix := cfg.KeyPrefix
		if prefix == "" {
			prefix = "ldapproxy:"
		}
		return cache.NewRedisCache(client, prefix, ttl), nil
	default:
		return cache.NewMemoryCache(cfg.SizeBytes), nil
	}
}

func buildUpstreamClient(cfg *config.Config, logger *slog.Logger) (*upstream.Client, error) {
	addr, useTLS, err := upstream.ParseURL(cfg.LDAPURL)
	if err != nil {
		return nil, err
	}

	var tlsConfig *tls.Config
	if useTLS {
		host, _, splitErr := net.SplitHostPort(addr)
		if splitErr != nil {
			host = addr
		}
		if cfg.LDAPCA != "" {
			tlsConfig, err = upstream.BuildTLSConfig(cfg.LDAPCA, host)
			if err != nil {
				return nil, err
			}
		} else {
			tlsConfig = &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
		}
	}

	client := upstream.New(upstream.Config{
		Addr:         addr,
		TLSConfig:    tlsConfig,
		MaxFrameSize: cfg.MaxProxyBERSize,
		Logger:       logger,
	})
	return client, nil
}

// remoteAddr extracts conn's remote address as a netip.Addr for rate
// limiting. A connection whose address can't be parsed this way (none
// in practice, since the listener only ever hands out TCP/TLS
// connections) is let through uncounted rather than rejected.
func remoteAddr(conn net.Conn) (netip.Addr, bool) {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return netip.Addr{}, false
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr, true
}
