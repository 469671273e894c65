package audit

import "log/slog"

// Kind identifies the operation an Event records.
type Kind string

const (
	KindBind   Kind = "bind"
	KindSearch Kind = "search"
	KindOther  Kind = "other"
)

// Decision is the outcome applied to the operation an Event records.
type Decision string

const (
	DecisionAllow       Decision = "allow"
	DecisionDeny        Decision = "deny"
	DecisionCacheServed Decision = "cache_served"
	DecisionUnavailable Decision = "unavailable"
)

// Event is one audit log row: a bind attempt or a policy decision on a
// forwarded or cache-served operation.
type Event struct {
	OccurredAt string
	ConnID     string
	RemoteAddr string
	Kind       Kind
	BindDN     string
	Base       string
	Scope      string
	Filter     string
	Decision   Decision
	Detail     string
}

// Record enqueues e for the writer goroutine without blocking the
// caller. If the queue is full the event is dropped and counted rather
// than stalling the session that produced it — a full audit queue is a
// capacity problem to alert on, not a reason to slow down LDAP traffic.
func (s *Store) Record(e Event) {
	if s == nil {
		return
	}
	select {
	case s.events <- e:
	default:
		s.dropped.Add(1)
		s.logger.Warn("audit: queue full, dropping event", slog.String("kind", string(e.Kind)), slog.String("conn_id", e.ConnID))
	}
}
