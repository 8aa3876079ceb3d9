package relay

import (
	"sync/atomic"
	"time"
)

// Metrics tracks server runtime statistics. All counters use atomic
// operations for lock-free concurrent access.
type Metrics struct {
	startTime time.Time

	TotalConnections      atomic.Int64 // lifetime WebSocket upgrades accepted
	RegistrationsAccepted atomic.Int64 // successful registration handshakes
	RegistrationsRejected atomic.Int64 // registrations closed with a policy violation
	MessagesRouted        atomic.Int64 // direct messages forwarded to a recipient
	MessagesRefused       atomic.Int64 // direct messages answered with the generic failure
	WhitelistUpdates      atomic.Int64 // whitelist commands acknowledged
	Disconnects           atomic.Int64 // registered sessions torn down
}

// NewMetrics creates a Metrics instance with the start time set to now.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// MetricsSnapshot is a point-in-time view of all counters.
type MetricsSnapshot struct {
	Uptime        string `json:"uptime"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	TotalConnections      int64 `json:"total_connections"`
	RegistrationsAccepted int64 `json:"registrations_accepted"`
	RegistrationsRejected int64 `json:"registrations_rejected"`
	MessagesRouted        int64 `json:"messages_routed"`
	MessagesRefused       int64 `json:"messages_refused"`
	WhitelistUpdates      int64 `json:"whitelist_updates"`
	Disconnects           int64 `json:"disconnects"`
}

// Snapshot returns a read-consistent snapshot of all counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	uptime := time.Since(m.startTime)
	return MetricsSnapshot{
		Uptime:                uptime.Truncate(time.Second).String(),
		UptimeSeconds:         int64(uptime.Seconds()),
		TotalConnections:      m.TotalConnections.Load(),
		RegistrationsAccepted: m.RegistrationsAccepted.Load(),
		RegistrationsRejected: m.RegistrationsRejected.Load(),
		MessagesRouted:        m.MessagesRouted.Load(),
		MessagesRefused:       m.MessagesRefused.Load(),
		WhitelistUpdates:      m.WhitelistUpdates.Load(),
		Disconnects:           m.Disconnects.Load(),
	}
}
