package upstream

import "sync/atomic"

// Health is the upstream connection's liveness state. Transitions are
// event-driven: a failed
// connect/read/write or a TCP close moves Healthy -> Unhealthy; the
// first successful PDU round-trip after (re)connecting moves
// Unhealthy -> Healthy.
type Health int32

const (
	Unhealthy Health = iota
	Healthy
)

func (h Health) String() string {
	if h == Healthy {
		return "healthy"
	}
	return "unhealthy"
}

// healthState is an atomically-updated Health flag shared between the
// reader goroutine, the reconnect loop and callers of Client.Health.
type healthState struct {
	v atomic.Int32
}

func (h *healthState) set(s Health) { h.v.Store(int32(s)) }
func (h *healthState) get() Health  { return Health(h.v.Load()) }
