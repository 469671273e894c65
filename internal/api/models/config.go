package models

// ConfigSnapshot is a sanitized view of the running configuration: no
// TLS private key contents, no API key, no redis URL credentials — just
// enough to confirm which config a running process actually loaded.
type ConfigSnapshot struct {
	Bind               string `json:"bind"`
	TLSChainPath       string `json:"tls_chain_path"`
	TLSKeyPath         string `json:"tls_key_path"` // always "[redacted]"
	LDAPURL            string `json:"ldap_url"`
	MaxIncomingBERSize int    `json:"max_incoming_ber_size"`
	MaxProxyBERSize    int    `json:"max_proxy_ber_size"`
	AllowAllBindDNs    bool   `json:"allow_all_bind_dns"`
	RemoteIPAddrInfo   string `json:"remote_ip_addr_info"`

	CacheType string `json:"cache_type"`

	BindMapDNs []string `json:"bind_map_dns"`

	RateLimitSummary string `json:"rate_limit_summary"`

	APIEnabled bool `json:"api_enabled"`
	APIKeySet  bool `json:"api_key_set"`

	AuditPath string `json:"audit_path"`
}
