package daemon

import (
	"bufio"
	"errors"
	"log/slog"
	"net"
	"sync"

	"localchat.dev/go/localchat/internal/protocol"
)

// maxIPCLineSize bounds a single command line from the front-end.
const maxIPCLineSize = 1 << 20 // 1 MiB

// registrar is the slice of Discovery a session needs: kicking off LAN
// advertisement once the identity is known.
type registrar interface {
	Register(Identity) error
}

// IPCServer accepts front-end connections on the local IPC endpoint (unix
// socket or named pipe) and runs one session per connection. Concurrent
// sessions are accepted, but only the most recently connected one receives
// forwarded peer messages.
type IPCServer struct {
	listener  net.Listener
	path      string
	identity  *IdentityManager
	registry  *Registry
	discovery registrar
	dispatch  *Dispatcher
	forwarder *Forwarder
	metrics   *Metrics

	closeOnce sync.Once
	done      chan struct{}
}

// NewIPCServer binds the IPC endpoint at path. A bind failure is fatal to
// daemon startup.
func NewIPCServer(path string, identity *IdentityManager, registry *Registry, discovery registrar, dispatch *Dispatcher, forwarder *Forwarder, metrics *Metrics) (*IPCServer, error) {
	listener, err := listenIPC(path)
	if err != nil {
		return nil, err
	}

	slog.Info("IPC endpoint bound", "path", path)
	return &IPCServer{
		listener:  listener,
		path:      path,
		identity:  identity,
		registry:  registry,
		discovery: discovery,
		dispatch:  dispatch,
		forwarder: forwarder,
		metrics:   metrics,
		done:      make(chan struct{}),
	}, nil
}

// Serve accepts front-end connections until Close is called.
func (s *IPCServer) Serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				slog.Warn("IPC accept failed", "error", err)
				continue
			}
		}
		go s.handleSession(conn)
	}
}

// Close stops accepting sessions and removes the endpoint.
func (s *IPCServer) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.listener.Close()
	})
	return err
}

// session is the per-connection state. Its address doubles as the ownership
// token for the forwarder slot.
type session struct {
	conn    net.Conn
	writeMu sync.Mutex
}

// handleSession runs one front-end session: install the forwarding channel,
// send the initial status, then serve commands and forwarded messages until
// the connection drops.
func (s *IPCServer) handleSession(conn net.Conn) {
	sess := &session{conn: conn}
	defer conn.Close()

	slog.Info("Front-end connected")

	forward := make(chan protocol.ServerMessage, forwardBufferSize)
	if s.forwarder.Install(sess, forward) {
		slog.Warn("New front-end session supersedes the previous one")
	}
	defer s.forwarder.Release(sess)

	connected, iface := networkStatus()
	if err := sess.write(protocol.DaemonStatus{
		IsConnectedToNetwork: connected,
		ActiveInterfaceName:  iface,
	}); err != nil {
		slog.Warn("Failed to send initial status", "error", err)
		return
	}

	sessionDone := make(chan struct{})
	defer close(sessionDone)

	lines := make(chan []byte)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(conn)
		scanner.Buffer(make([]byte, 0, 64*1024), maxIPCLineSize)
		for scanner.Scan() {
			line := make([]byte, len(scanner.Bytes()))
			copy(line, scanner.Bytes())
			select {
			case lines <- line:
			case <-sessionDone:
				return
			}
		}
	}()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				slog.Info("Front-end disconnected")
				return
			}
			if len(line) == 0 {
				continue
			}
			reply := s.execute(line)
			if err := sess.write(reply); err != nil {
				slog.Warn("Failed to write IPC reply", "error", err)
				return
			}

		case msg := <-forward:
			if err := sess.write(msg); err != nil {
				slog.Warn("Failed to forward message to front-end", "error", err)
				return
			}

		case <-s.done:
			return
		}
	}
}

// execute decodes one command line and produces its reply. Malformed input
// is answered but never terminates the session.
func (s *IPCServer) execute(line []byte) protocol.ServerMessage {
	cmd, err := protocol.DecodeCommand(line)
	if err != nil {
		s.metrics.DecodeFailures.Add(1)
		slog.Warn("Invalid IPC command", "error", err)
		return protocol.ErrorReply("Invalid command format: " + err.Error())
	}

	s.metrics.CommandsProcessed.Add(1)

	switch c := cmd.(type) {
	case protocol.SetUsername:
		return s.setUsername(c.Username)

	case protocol.GetPeers:
		return protocol.PeerList(s.registry.List())

	case protocol.SendMessage:
		text, err := s.dispatch.Send(c.RecipientID, c.Content)
		if err != nil {
			slog.Warn("Send failed", "recipient", c.RecipientID, "error", err)
			return protocol.ErrorReply(err.Error())
		}
		return protocol.SuccessReply(text)

	case protocol.RequestHistory:
		return protocol.ErrorReply("History feature not yet implemented")

	case protocol.ClearDaemonPeerCache:
		s.registry.Clear()
		slog.Info("Peer cache cleared by front-end")
		return protocol.SuccessReply("Peer cache cleared")

	default:
		// Unreachable while the command set stays closed.
		return protocol.ErrorReply("unsupported command")
	}
}

// setUsername establishes the identity and kicks off mDNS registration in
// the background. Identity is one-shot for the daemon's lifetime.
func (s *IPCServer) setUsername(username string) protocol.ServerMessage {
	id, err := s.identity.Set(username)
	if errors.Is(err, ErrIdentityAlreadySet) {
		return protocol.ErrorReply("Username already set.")
	}
	if err != nil {
		return protocol.ErrorReply(err.Error())
	}

	slog.Info("Identity set", "username", id.DisplayName, "full_id", id.FullID)

	go func() {
		if err := s.discovery.Register(id); err != nil {
			slog.Error("mDNS registration failed", "error", err)
		}
	}()

	return protocol.IdentityInfo{UserID: id.FullID}
}

// write encodes and sends one server message line.
func (sess *session) write(msg protocol.ServerMessage) error {
	data, err := protocol.EncodeServerMessage(msg)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	_, err = sess.conn.Write(data)
	return err
}
