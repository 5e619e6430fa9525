package daemon

import (
	"sync/atomic"
	"time"
)

// Metrics collects operational counters for observability
type Metrics struct {
	startTime time.Time

	// Counters (atomic for lock-free updates)
	MessagesSent      atomic.Int64
	MessagesReceived  atomic.Int64
	MessagesDropped   atomic.Int64 // inbound messages with no front-end attached
	SendFailures      atomic.Int64
	PeersDiscovered   atomic.Int64
	PeersRemoved      atomic.Int64
	BrowseErrors      atomic.Int64
	CommandsProcessed atomic.Int64
	DecodeFailures    atomic.Int64
	LimiterDrops      atomic.Int64
}

// MetricsSnapshot is a point-in-time view of all metrics
type MetricsSnapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`

	MessagesSent      int64 `json:"messages_sent"`
	MessagesReceived  int64 `json:"messages_received"`
	MessagesDropped   int64 `json:"messages_dropped"`
	SendFailures      int64 `json:"send_failures"`
	PeersDiscovered   int64 `json:"peers_discovered"`
	PeersRemoved      int64 `json:"peers_removed"`
	BrowseErrors      int64 `json:"browse_errors"`
	CommandsProcessed int64 `json:"commands_processed"`
	DecodeFailures    int64 `json:"decode_failures"`
	LimiterDrops      int64 `json:"limiter_drops"`

	KnownPeers int `json:"known_peers"`
}

// NewMetrics creates a metrics collector
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// Snapshot returns a point-in-time copy of all counters. knownPeers is read
// from the registry at snapshot time.
func (m *Metrics) Snapshot(knownPeers int) *MetricsSnapshot {
	now := time.Now()
	return &MetricsSnapshot{
		Timestamp: now,
		Uptime:    now.Sub(m.startTime).Round(time.Second).String(),

		MessagesSent:      m.MessagesSent.Load(),
		MessagesReceived:  m.MessagesReceived.Load(),
		MessagesDropped:   m.MessagesDropped.Load(),
		SendFailures:      m.SendFailures.Load(),
		PeersDiscovered:   m.PeersDiscovered.Load(),
		PeersRemoved:      m.PeersRemoved.Load(),
		BrowseErrors:      m.BrowseErrors.Load(),
		CommandsProcessed: m.CommandsProcessed.Load(),
		DecodeFailures:    m.DecodeFailures.Load(),
		LimiterDrops:      m.LimiterDrops.Load(),

		KnownPeers: knownPeers,
	}
}
