package daemon

import (
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// ConnectionLimiter bounds inbound peer connections before any message
// parsing occurs. Limits are applied globally and per source IP.
type ConnectionLimiter struct {
	maxConnections     int32
	currentConnections int32
	connectionsPerSec  *rate.Limiter

	perIP sync.Map // IP string -> *rate.Limiter

	ipConnectionsPerSec float64
	ipConnectionBurst   int
}

// ConnectionLimiterConfig holds configuration for the connection limiter
type ConnectionLimiterConfig struct {
	MaxConnections      int32   // Max concurrent inbound connections
	ConnectionsPerSec   float64 // New connections per second globally
	ConnectionBurst     int     // Burst allowance
	IPConnectionsPerSec float64 // New connections per second per IP
	IPConnectionBurst   int     // Burst per IP
}

// DefaultConnectionLimiterConfig returns defaults sized for a LAN chat
// daemon: a handful of peers, each dialing one short-lived connection per
// message.
func DefaultConnectionLimiterConfig() *ConnectionLimiterConfig {
	return &ConnectionLimiterConfig{
		MaxConnections:      128,
		ConnectionsPerSec:   50,
		ConnectionBurst:     100,
		IPConnectionsPerSec: 10,
		IPConnectionBurst:   20,
	}
}

// NewConnectionLimiter creates a new connection limiter
func NewConnectionLimiter(cfg *ConnectionLimiterConfig) *ConnectionLimiter {
	if cfg == nil {
		cfg = DefaultConnectionLimiterConfig()
	}
	return &ConnectionLimiter{
		maxConnections:      cfg.MaxConnections,
		connectionsPerSec:   rate.NewLimiter(rate.Limit(cfg.ConnectionsPerSec), cfg.ConnectionBurst),
		ipConnectionsPerSec: cfg.IPConnectionsPerSec,
		ipConnectionBurst:   cfg.IPConnectionBurst,
	}
}

// Acquire reports whether a new connection from ip may proceed. Callers must
// pair a true return with a Release when the connection ends.
func (l *ConnectionLimiter) Acquire(ip string) bool {
	if atomic.AddInt32(&l.currentConnections, 1) > l.maxConnections {
		atomic.AddInt32(&l.currentConnections, -1)
		return false
	}

	if !l.connectionsPerSec.Allow() {
		atomic.AddInt32(&l.currentConnections, -1)
		return false
	}

	limiter := l.ipLimiter(ip)
	if !limiter.Allow() {
		atomic.AddInt32(&l.currentConnections, -1)
		return false
	}

	return true
}

// Release marks a previously acquired connection as closed.
func (l *ConnectionLimiter) Release() {
	atomic.AddInt32(&l.currentConnections, -1)
}

// Current returns the number of live acquired connections.
func (l *ConnectionLimiter) Current() int32 {
	return atomic.LoadInt32(&l.currentConnections)
}

func (l *ConnectionLimiter) ipLimiter(ip string) *rate.Limiter {
	if v, ok := l.perIP.Load(ip); ok {
		return v.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(rate.Limit(l.ipConnectionsPerSec), l.ipConnectionBurst)
	actual, _ := l.perIP.LoadOrStore(ip, limiter)
	return actual.(*rate.Limiter)
}
