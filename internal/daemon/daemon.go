// Package daemon implements the localchat background process: mDNS peer
// discovery, direct TCP message exchange with peers, and the local IPC
// endpoint a front-end drives it through.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"

	"localchat.dev/go/localchat/internal/config"
)

// Options configures a Daemon.
type Options struct {
	Config  *config.Config
	Paths   *config.Paths
	Version string
}

// Daemon owns all long-running components and their lifecycle.
type Daemon struct {
	cfg     *config.Config
	paths   *config.Paths
	version string

	identity  *IdentityManager
	registry  *Registry
	metrics   *Metrics
	forwarder *Forwarder
	discovery *Discovery
	dispatch  *Dispatcher
	logBuffer *LogBuffer

	peerListener *PeerListener
	ipcServer    *IPCServer

	done     chan struct{}
	stopOnce sync.Once
}

// New assembles a daemon from options. Nothing is bound until Start.
func New(opts Options) *Daemon {
	identity := NewIdentityManager()
	registry := NewRegistry()
	metrics := NewMetrics()
	forwarder := NewForwarder()

	return &Daemon{
		cfg:       opts.Config,
		paths:     opts.Paths,
		version:   opts.Version,
		identity:  identity,
		registry:  registry,
		metrics:   metrics,
		forwarder: forwarder,
		discovery: NewDiscovery(opts.Config.Daemon.TCPPort, opts.Version, registry, metrics),
		dispatch:  NewDispatcher(identity, registry, metrics),
		logBuffer: NewLogBuffer(LogBufferSize),
		done:      make(chan struct{}),
	}
}

// Start installs logging, writes the PID file, and binds the peer and IPC
// listeners. Either bind failing is fatal: a daemon that cannot be reached
// has no reason to run.
func (d *Daemon) Start() error {
	logWriter := os.Stderr
	handler := NewBufferedHandler(d.logBuffer, newLogHandler(logWriter, d.cfg.Logging))
	slog.SetDefault(slog.New(handler))

	slog.Info("Starting localchat daemon",
		"version", d.version,
		"tcp_port", d.cfg.Daemon.TCPPort,
		"socket", d.paths.SocketPath,
	)

	if err := d.writePIDFile(); err != nil {
		return err
	}

	peerListener, err := NewPeerListener(d.cfg.Daemon.TCPPort, d.forwarder, NewConnectionLimiter(nil), d.metrics)
	if err != nil {
		d.removePIDFile()
		return err
	}
	d.peerListener = peerListener

	ipcServer, err := NewIPCServer(d.paths.SocketPath, d.identity, d.registry, d.discovery, d.dispatch, d.forwarder, d.metrics)
	if err != nil {
		d.peerListener.Close()
		d.removePIDFile()
		return err
	}
	d.ipcServer = ipcServer

	go d.peerListener.Serve()
	go d.ipcServer.Serve()
	go d.watchDiagnostics()

	slog.Info("Daemon ready, waiting for front-end")
	return nil
}

// Run starts the daemon and blocks until ctx is cancelled, then shuts down.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	d.Stop()
	return nil
}

// Stop shuts down discovery and both listeners and cleans up on-disk state.
// Safe to call more than once.
func (d *Daemon) Stop() {
	d.stopOnce.Do(func() {
		slog.Info("Shutting down daemon")
		close(d.done)

		d.discovery.Stop()
		if d.ipcServer != nil {
			d.ipcServer.Close()
		}
		if d.peerListener != nil {
			d.peerListener.Close()
		}
		d.removePIDFile()

		snap := d.MetricsSnapshot()
		slog.Info("Daemon stopped",
			"uptime", snap.Uptime,
			"messages_sent", snap.MessagesSent,
			"messages_received", snap.MessagesReceived,
			"peers_discovered", snap.PeersDiscovered,
		)
	})
}

// Identity returns the current identity, if set.
func (d *Daemon) Identity() (Identity, bool) {
	return d.identity.Current()
}

// Peers returns a snapshot of known peers.
func (d *Daemon) Peers() int {
	return d.registry.Len()
}

// MetricsSnapshot returns a point-in-time view of operational counters.
func (d *Daemon) MetricsSnapshot() *MetricsSnapshot {
	return d.metrics.Snapshot(d.registry.Len())
}

// RecentLogs returns buffered log entries at or above level, newest last.
func (d *Daemon) RecentLogs(level string, limit int) []LogEntry {
	return d.logBuffer.Recent(level, limit)
}

// logDiagnostics writes a metrics snapshot and any recent warnings to the
// log, for inspection while the daemon is running.
func (d *Daemon) logDiagnostics() {
	snap := d.MetricsSnapshot()
	slog.Info("Diagnostics",
		"uptime", snap.Uptime,
		"known_peers", snap.KnownPeers,
		"messages_sent", snap.MessagesSent,
		"messages_received", snap.MessagesReceived,
		"messages_dropped", snap.MessagesDropped,
		"send_failures", snap.SendFailures,
		"peers_discovered", snap.PeersDiscovered,
		"peers_removed", snap.PeersRemoved,
		"browse_errors", snap.BrowseErrors,
		"commands_processed", snap.CommandsProcessed,
		"decode_failures", snap.DecodeFailures,
		"limiter_drops", snap.LimiterDrops,
	)

	for _, entry := range d.RecentLogs("WARN", 10) {
		slog.Info("Recent warning",
			"at", entry.Timestamp.Format("15:04:05"),
			"level", entry.Level,
			"msg", entry.Message,
		)
	}
}

func (d *Daemon) writePIDFile() error {
	if d.paths.PIDFile == "" {
		return nil
	}
	pid := strconv.Itoa(os.Getpid())
	if err := os.WriteFile(d.paths.PIDFile, []byte(pid+"\n"), 0644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

func (d *Daemon) removePIDFile() {
	if d.paths.PIDFile == "" {
		return
	}
	if err := os.Remove(d.paths.PIDFile); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to remove pid file", "error", err)
	}
}
