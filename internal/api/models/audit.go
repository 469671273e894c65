package models

// AuditEvent mirrors internal/audit.Event for API responses, decoupling
// the wire shape from the storage package's internal type.
type AuditEvent struct {
	OccurredAt string `json:"occurred_at"`
	ConnID     string `json:"conn_id"`
	RemoteAddr string `json:"remote_addr"`
	Kind       string `json:"kind"`
	BindDN     string `json:"bind_dn"`
	Base       string `json:"base,omitempty"`
	Scope      string `json:"scope,omitempty"`
	Filter     string `json:"filter,omitempty"`
	Decision   string `json:"decision"`
	Detail     string `json:"detail,omitempty"`
}

// AuditRecentResponse wraps a page of recent audit events.
type AuditRecentResponse struct {
	Events []AuditEvent `json:"events"`
}
