package daemon

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"localchat.dev/go/localchat/internal/protocol"
)

// maxPeerLineSize bounds a single inbound message line.
const maxPeerLineSize = 1 << 20 // 1 MiB

// PeerListener accepts TCP connections from remote daemons and forwards each
// received chat message to the attached front-end. Each connection carries
// newline-delimited JSON messages; a malformed line is logged and skipped
// without closing the connection.
type PeerListener struct {
	listener  net.Listener
	forwarder *Forwarder
	limiter   *ConnectionLimiter
	metrics   *Metrics

	closeOnce sync.Once
	done      chan struct{}
}

// NewPeerListener binds the peer TCP port. A bind failure is fatal to daemon
// startup and is returned to the caller.
func NewPeerListener(port int, forwarder *Forwarder, limiter *ConnectionLimiter, metrics *Metrics) (*PeerListener, error) {
	addr := fmt.Sprintf("0.0.0.0:%d", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("bind peer listener on %s: %w", addr, err)
	}

	slog.Info("Peer listener bound", "addr", listener.Addr().String())
	return &PeerListener{
		listener:  listener,
		forwarder: forwarder,
		limiter:   limiter,
		metrics:   metrics,
		done:      make(chan struct{}),
	}, nil
}

// Addr returns the bound listen address.
func (pl *PeerListener) Addr() net.Addr {
	return pl.listener.Addr()
}

// Serve accepts connections until Close is called. Each connection is
// handled on its own goroutine; no connection outlives its TCP session.
func (pl *PeerListener) Serve() {
	for {
		conn, err := pl.listener.Accept()
		if err != nil {
			select {
			case <-pl.done:
				return
			default:
				slog.Warn("Peer accept failed", "error", err)
				continue
			}
		}

		ip := remoteIP(conn)
		if !pl.limiter.Acquire(ip) {
			pl.metrics.LimiterDrops.Add(1)
			slog.Warn("Peer connection rejected by limiter", "remote", conn.RemoteAddr().String())
			conn.Close()
			continue
		}

		go func() {
			defer pl.limiter.Release()
			pl.handleConn(conn)
		}()
	}
}

// handleConn reads newline-delimited messages until the peer disconnects.
// Reads are not deadline-bounded: a quiet peer connection is legitimate.
func (pl *PeerListener) handleConn(conn net.Conn) {
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	slog.Debug("Peer connected", "remote", remote)

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxPeerLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg protocol.Message
		if err := json.Unmarshal(line, &msg); err != nil {
			pl.metrics.DecodeFailures.Add(1)
			slog.Warn("Failed to decode peer message", "remote", remote, "error", err)
			continue
		}

		// Never trust the sender's display hint.
		msg.IsSelf = false

		pl.metrics.MessagesReceived.Add(1)
		slog.Info("Received peer message", "from", msg.Sender, "id", msg.ID)

		if !pl.forwarder.Forward(protocol.NewMessageEvent(msg)) {
			pl.metrics.MessagesDropped.Add(1)
			slog.Warn("No front-end attached, dropping inbound message", "from", msg.Sender, "id", msg.ID)
		}
	}

	if err := scanner.Err(); err != nil {
		slog.Debug("Peer connection closed with error", "remote", remote, "error", err)
	} else {
		slog.Debug("Peer disconnected", "remote", remote)
	}
}

// Close stops accepting connections.
func (pl *PeerListener) Close() error {
	var err error
	pl.closeOnce.Do(func() {
		close(pl.done)
		err = pl.listener.Close()
	})
	return err
}

// remoteIP extracts the bare IP from a connection's remote address.
func remoteIP(conn net.Conn) string {
	if addr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		return addr.IP.String()
	}
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}
	return host
}
