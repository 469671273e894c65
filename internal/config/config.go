package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/sonroyaalmerol/ldap-proxy/internal/policy"
)

// ResolveConfigPath picks the config file path from a flag value,
// falling back to the LDAPPROXY_CONFIG environment variable.
func ResolveConfigPath(flagValue string) string {
	if strings.TrimSpace(flagValue) != "" {
		return flagValue
	}
	return strings.TrimSpace(os.Getenv("LDAPPROXY_CONFIG"))
}

// Load reads the TOML file at path (environment variables always take
// precedence), validates it, and returns the resulting Config. path may
// be empty, in which case configuration comes entirely from defaults
// and the environment.
func Load(path string) (*Config, error) {
	v, err := initViper(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}

	bindMap, err := loadBindMap(v)
	if err != nil {
		return nil, err
	}
	cfg.BindMap = bindMap

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func initViper(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("LDAPPROXY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bind", "0.0.0.0:636")
	v.SetDefault("max_incoming_ber_size", 8<<20)
	v.SetDefault("max_proxy_ber_size", 8<<20)
	v.SetDefault("allow_all_bind_dns", false)
	v.SetDefault("remote_ip_addr_info", "None")

	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.size_bytes", 64<<20)

	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.structured", false)
	v.SetDefault("logging.structured_format", "json")
	v.SetDefault("logging.include_pid", false)

	v.SetDefault("rate_limit.cleanup_seconds", 60.0)
	v.SetDefault("rate_limit.max_ip_entries", 65536)
	v.SetDefault("rate_limit.max_prefix_entries", 16384)

	v.SetDefault("api.enabled", false)
	v.SetDefault("api.host", "127.0.0.1")
	v.SetDefault("api.port", 8080)

	v.SetDefault("audit.path", "ldapproxy-audit.db")
	v.SetDefault("audit.queue_size", 1024)
}

// loadBindMap pulls every top-level table that isn't a reserved key out
// of v and treats it as a bind-map entry keyed by DN.
func loadBindMap(v *viper.Viper) (map[string]BindMapEntry, error) {
	out := map[string]BindMapEntry{}

	for key := range v.AllSettings() {
		if reservedTopLevelKeys[key] {
			continue
		}

		present := v.IsSet(key)
		hasAllowed := v.IsSet(key + ".allowed_queries")

		var rawRules [][3]string
		if hasAllowed {
			if err := v.UnmarshalKey(key+".allowed_queries", &rawRules); err != nil {
				return nil, fmt.Errorf("config: [%s].allowed_queries: %w", key, err)
			}
			for _, rule := range rawRules {
				if err := policy.ValidateScope(rule[1]); err != nil {
					return nil, fmt.Errorf("config: [%s].allowed_queries: %w", key, err)
				}
			}
		}

		out[key] = BindMapEntry{AllowedQueries: rawRules, HasAllowedQueries: hasAllowed && present}
	}

	return out, nil
}

// BuildPolicyMap converts the loaded bind-map into a *policy.Map.
func (c *Config) BuildPolicyMap() *policy.Map {
	entries := make(map[string]policy.Entry, len(c.BindMap))
	for dn, raw := range c.BindMap {
		rules := make([]policy.RawRule, len(raw.AllowedQueries))
		copy(rules, raw.AllowedQueries)
		entries[dn] = policy.BuildEntry(rules, raw.HasAllowedQueries)
	}
	return policy.NewMap(entries, c.AllowAllBindDNs)
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Bind) == "" {
		return fmt.Errorf("config: bind must not be empty")
	}
	if strings.TrimSpace(cfg.LDAPURL) == "" {
		return fmt.Errorf("config: ldap_url is required")
	}
	if strings.TrimSpace(cfg.TLSChain) == "" || strings.TrimSpace(cfg.TLSKey) == "" {
		return fmt.Errorf("config: tls_chain and tls_key are required")
	}
	if cfg.MaxIncomingBERSize <= 0 {
		return fmt.Errorf("config: max_incoming_ber_size must be positive")
	}
	if cfg.MaxProxyBERSize <= 0 {
		return fmt.Errorf("config: max_proxy_ber_size must be positive")
	}

	switch cfg.RemoteIPAddrInfo {
	case "None", "ProxyV2":
	default:
		return fmt.Errorf("config: remote_ip_addr_info must be None or ProxyV2, got %q", cfg.RemoteIPAddrInfo)
	}

	switch cfg.Cache.Type {
	case "memory":
		if cfg.Cache.SizeBytes <= 0 {
			return fmt.Errorf("config: cache.size_bytes must be positive for the memory backend")
		}
	case "redis":
		if strings.TrimSpace(cfg.Cache.URL) == "" {
			return fmt.Errorf("config: cache.url is required for the redis backend")
		}
	default:
		return fmt.Errorf("config: cache.type must be memory or redis, got %q", cfg.Cache.Type)
	}

	if cfg.API.Enabled {
		if cfg.API.Port <= 0 || cfg.API.Port > 65535 {
			return fmt.Errorf("config: api.port must be 1..65535")
		}
	}

	return nil
}
