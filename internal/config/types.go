// Package config loads and validates the proxy's TOML configuration
// file using github.com/spf13/viper: defaults set on a fresh
// *viper.Viper, environment variables bound under a project-specific
// prefix, and an optional file overlay.
package config

// CacheConfig selects and configures the fallback cache backend.
type CacheConfig struct {
	Type       string `toml:"type"         mapstructure:"type"`         // "memory" or "redis"
	SizeBytes  int64  `toml:"size_bytes"   mapstructure:"size_bytes"`   // memory backend
	URL        string `toml:"url"          mapstructure:"url"`          // redis backend
	TTLSeconds int    `toml:"ttl_seconds"  mapstructure:"ttl_seconds"`  // 0 means persist forever
	KeyPrefix  string `toml:"key_prefix"   mapstructure:"key_prefix"`
}

// LoggingConfig mirrors internal/logging.Config's shape so it can be
// populated directly off the config file.
type LoggingConfig struct {
	Level            string            `toml:"level"             mapstructure:"level"`
	Structured       bool              `toml:"structured"        mapstructure:"structured"`
	StructuredFormat string            `toml:"structured_format" mapstructure:"structured_format"`
	IncludePID       bool              `toml:"include_pid"       mapstructure:"include_pid"`
	ExtraFields      map[string]string `toml:"extra_fields"      mapstructure:"extra_fields"`
}

// RateLimitConfig controls internal/ratelimit's three admission tiers.
type RateLimitConfig struct {
	CleanupSeconds     float64 `toml:"cleanup_seconds"      mapstructure:"cleanup_seconds"`
	MaxIPEntries       int     `toml:"max_ip_entries"       mapstructure:"max_ip_entries"`
	MaxPrefixEntries   int     `toml:"max_prefix_entries"   mapstructure:"max_prefix_entries"`
	GlobalQPS          float64 `toml:"global_qps"           mapstructure:"global_qps"`
	GlobalBurst        int     `toml:"global_burst"         mapstructure:"global_burst"`
	PrefixQPS          float64 `toml:"prefix_qps"           mapstructure:"prefix_qps"`
	PrefixBurst        int     `toml:"prefix_burst"         mapstructure:"prefix_burst"`
	IPQPS              float64 `toml:"ip_qps"               mapstructure:"ip_qps"`
	IPBurst            int     `toml:"ip_burst"             mapstructure:"ip_burst"`
}

// APIConfig controls the read-only management API.
//
// Note: APIKey is a secret and is never returned by any API endpoint.
type APIConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Host    string `toml:"host"    mapstructure:"host"`
	Port    int    `toml:"port"    mapstructure:"port"`
	APIKey  string `toml:"api_key" mapstructure:"api_key"`
}

// AuditConfig controls the local audit trail.
type AuditConfig struct {
	Path      string `toml:"path"       mapstructure:"path"`
	QueueSize int    `toml:"queue_size" mapstructure:"queue_size"`
}

// BindMapEntry is one `[<dn>]` table: a bind-map entry for a single
// bound DN, keyed externally by the DN string itself.
type BindMapEntry struct {
	AllowedQueries [][3]string `toml:"allowed_queries" mapstructure:"allowed_queries"`
	HasAllowedQueries bool     `toml:"-" mapstructure:"-"`
}

// Config is the root configuration structure.
type Config struct {
	Bind               string `mapstructure:"bind"`
	TLSChain           string `mapstructure:"tls_chain"`
	TLSKey             string `mapstructure:"tls_key"`
	LDAPCA             string `mapstructure:"ldap_ca"`
	LDAPURL            string `mapstructure:"ldap_url"`
	MaxIncomingBERSize int    `mapstructure:"max_incoming_ber_size"`
	MaxProxyBERSize    int    `mapstructure:"max_proxy_ber_size"`
	AllowAllBindDNs    bool   `mapstructure:"allow_all_bind_dns"`
	RemoteIPAddrInfo   string `mapstructure:"remote_ip_addr_info"`

	Cache     CacheConfig     `mapstructure:"cache"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	API       APIConfig       `mapstructure:"api"`
	Audit     AuditConfig     `mapstructure:"audit"`

	// BindMap holds every top-level table that isn't one of the
	// reserved keys above, keyed by bound DN.
	BindMap map[string]BindMapEntry `mapstructure:"-"`
}

// reservedTopLevelKeys are the config keys with a fixed meaning; every
// other top-level table in the file is a bind-map entry for that DN.
var reservedTopLevelKeys = map[string]bool{
	"bind": true, "tls_chain": true, "tls_key": true, "ldap_ca": true,
	"ldap_url": true, "max_incoming_ber_size": true, "max_proxy_ber_size": true,
	"allow_all_bind_dns": true, "remote_ip_addr_info": true,
	"cache": true, "logging": true, "rate_limit": true, "api": true, "audit": true,
}
