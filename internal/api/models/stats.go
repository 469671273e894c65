package models

import "time"

// StatsResponse reports process and proxy runtime statistics.
type StatsResponse struct {
	Uptime        string    `json:"uptime"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	StartTime     time.Time `json:"start_time"`
	NumCPU        int       `json:"num_cpu"`
	NumGoroutine  int       `json:"num_goroutine"`

	ActiveSessions int64 `json:"active_sessions"`

	CacheHits   uint64 `json:"cache_hits"`
	CacheMisses uint64 `json:"cache_misses"`

	UpstreamHealthy      bool   `json:"upstream_healthy"`
	AuditEventsDropped   uint64 `json:"audit_events_dropped"`
	ConnectionsThrottled uint64 `json:"connections_throttled"`
}
