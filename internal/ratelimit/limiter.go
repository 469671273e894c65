package ratelimit

import (
	"fmt"
	"net/netip"
	"sync/atomic"
	"time"
)

// TierConfig configures one rate-limit tier's rate and burst. A Rate or
// Burst of zero disables that tier.
type TierConfig struct {
	Rate  float64
	Burst int
}

// Config configures a Limiter's three admission tiers plus the shared
// housekeeping knobs, populated from the proxy's own config file rather
// than environment variables.
type Config struct {
	Global Rate

	Prefix             TierConfig
	IP                 TierConfig
	CleanupInterval    time.Duration
	MaxTrackedPrefixes int
	MaxTrackedIPs      int
}

// Rate is an alias of TierConfig naming the global tier's settings. A
// zero-value Config (no [rate_limit] table in the config file) leaves
// the global tier, like the other two, disabled rather than picking a
// nonzero default rate.
type Rate = TierConfig

// Limiter admits new inbound connections through three token-bucket
// tiers, checked in order: a server-wide budget, a per-/24-or-/64-prefix
// budget, and a per-source-IP budget. A connection must clear all three
// to be admitted. Each tier independently allows everything when
// disabled, so a zero-value Config admits unconditionally.
type Limiter struct {
	global *TokenBucketRateLimiter
	prefix *TokenBucketRateLimiter
	ip     *TokenBucketRateLimiter

	denied atomic.Uint64
}

// NewLimiter builds a Limiter from cfg.
func NewLimiter(cfg Config) *Limiter {
	cleanup := cfg.CleanupInterval
	if cleanup <= 0 {
		cleanup = 60 * time.Second
	}
	maxPrefix := cfg.MaxTrackedPrefixes
	if maxPrefix <= 0 {
		maxPrefix = 16_384
	}
	maxIP := cfg.MaxTrackedIPs
	if maxIP <= 0 {
		maxIP = 65_536
	}

	return &Limiter{
		global: NewTokenBucketRateLimiter(TokenBucketConfig{Rate: cfg.Global.Rate, Burst: cfg.Global.Burst, CleanupInterval: cleanup, MaxEntries: 1}),
		prefix: NewTokenBucketRateLimiter(TokenBucketConfig{Rate: cfg.Prefix.Rate, Burst: cfg.Prefix.Burst, CleanupInterval: cleanup, MaxEntries: maxPrefix}),
		ip:     NewTokenBucketRateLimiter(TokenBucketConfig{Rate: cfg.IP.Rate, Burst: cfg.IP.Burst, CleanupInterval: cleanup, MaxEntries: maxIP}),
	}
}

// Allow reports whether a new connection from addr should be admitted.
// A nil Limiter always allows, so callers that never configured rate
// limiting don't need a nil check.
func (l *Limiter) Allow(addr netip.Addr) bool {
	if l == nil {
		return true
	}
	allowed := l.global.Allow("*") && l.prefix.Allow(prefixKey(addr)) && l.ip.Allow(addr.String())
	if !allowed {
		l.denied.Add(1)
	}
	return allowed
}

// Denied returns the number of connections refused admission since
// startup, for the /stats endpoint.
func (l *Limiter) Denied() uint64 {
	if l == nil {
		return 0
	}
	return l.denied.Load()
}

// prefixKey buckets addr into its /24 (IPv4) or /64 (IPv6) network.
func prefixKey(addr netip.Addr) string {
	addr = addr.Unmap()
	bits := 64
	tag := "v6:"
	if addr.Is4() {
		bits = 24
		tag = "v4:"
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "raw:" + addr.String()
	}
	return tag + prefix.String()
}

// Summary returns a human-readable one-line description of the
// configured tiers, suitable for a startup log line.
func (cfg Config) Summary() string {
	fmtTier := func(name string, t TierConfig) string {
		if t.Rate <= 0 || t.Burst <= 0 {
			return name + "=disabled"
		}
		return fmt.Sprintf("%s=%g/s burst=%d", name, t.Rate, t.Burst)
	}
	return fmt.Sprintf("%s %s %s", fmtTier("global", cfg.Global), fmtTier("prefix", cfg.Prefix), fmtTier("ip", cfg.IP))
}
