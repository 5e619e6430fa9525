// Package client is the front-end side of the daemon's IPC protocol: it
// connects to the local endpoint, issues commands, and reads server
// messages.
package client

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"localchat.dev/go/localchat/internal/config"
	"localchat.dev/go/localchat/internal/protocol"
)

// ErrDaemonNotRunning is returned when no daemon answers on the IPC endpoint.
var ErrDaemonNotRunning = errors.New("daemon is not running")

const defaultTimeout = 30 * time.Second

// Client is an IPC client for communicating with the daemon.
//
// Commands are safe for concurrent use. Next is not: it reads the connection
// without holding the client lock and must run on a single goroutine, with no
// commands issued on the same client while it is blocked.
type Client struct {
	conn    net.Conn
	reader  *bufio.Reader
	writer  *bufio.Writer
	mu      sync.Mutex
	timeout time.Duration

	status protocol.DaemonStatus

	// events holds NewMessage events that arrived while a command reply was
	// being awaited, so they are not lost to the request/response flow.
	events []protocol.NewMessageEvent
}

// Connect dials the default IPC endpoint, honoring the config file's
// socket path when set.
func Connect() (*Client, error) {
	paths, err := config.GetPaths()
	if err != nil {
		return nil, fmt.Errorf("get paths: %w", err)
	}
	if cfg, err := config.Load(); err == nil {
		paths.ResolveSocketPath(cfg)
	}
	return ConnectTo(paths.SocketPath)
}

// ConnectTo dials a specific IPC endpoint and consumes the daemon's opening
// status message.
func ConnectTo(path string) (*Client, error) {
	conn, err := dialIPC(path, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon: %w", err)
	}

	c := &Client{
		conn:    conn,
		reader:  bufio.NewReader(conn),
		writer:  bufio.NewWriter(conn),
		timeout: defaultTimeout,
	}

	// The daemon speaks first.
	conn.SetReadDeadline(time.Now().Add(c.timeout))
	defer conn.SetReadDeadline(time.Time{})

	msg, err := c.readMessage()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read daemon status: %w", err)
	}
	status, ok := msg.(protocol.DaemonStatus)
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("unexpected opening message %T", msg)
	}
	c.status = status

	return c, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Status returns the daemon status received when the session opened.
func (c *Client) Status() protocol.DaemonStatus {
	return c.status
}

// SetTimeout sets the per-command timeout.
func (c *Client) SetTimeout(d time.Duration) {
	c.mu.Lock()
	c.timeout = d
	c.mu.Unlock()
}

// roundTrip sends one command and returns its reply. NewMessage events that
// arrive in between are buffered for DrainEvents.
func (c *Client) roundTrip(cmd protocol.Command) (protocol.ServerMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := protocol.EncodeCommand(cmd)
	if err != nil {
		return nil, fmt.Errorf("encode command: %w", err)
	}

	c.conn.SetDeadline(time.Now().Add(c.timeout))
	defer c.conn.SetDeadline(time.Time{})

	if _, err := c.writer.Write(append(data, '\n')); err != nil {
		return nil, fmt.Errorf("send command: %w", err)
	}
	if err := c.writer.Flush(); err != nil {
		return nil, fmt.Errorf("flush: %w", err)
	}

	for {
		msg, err := c.readMessage()
		if err != nil {
			return nil, fmt.Errorf("read reply: %w", err)
		}
		if event, ok := msg.(protocol.NewMessageEvent); ok {
			c.events = append(c.events, event)
			continue
		}
		return msg, nil
	}
}

// readMessage reads and decodes one server message line.
func (c *Client) readMessage() (protocol.ServerMessage, error) {
	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	return protocol.DecodeServerMessage(line)
}

// Next blocks until the daemon pushes the next server message. Buffered
// events are returned first.
//
// Next is for a dedicated receive loop: only one goroutine may call it, and
// the caller must not run commands on the same client concurrently. The read
// happens outside the client lock, since holding it for the duration of a
// blocking read would deadlock any command waiting to send.
func (c *Client) Next() (protocol.ServerMessage, error) {
	c.mu.Lock()
	if len(c.events) > 0 {
		event := c.events[0]
		c.events = c.events[1:]
		c.mu.Unlock()
		return event, nil
	}
	c.mu.Unlock()

	return c.readMessage()
}

// DrainEvents returns any NewMessage events buffered during command replies.
func (c *Client) DrainEvents() []protocol.NewMessageEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	events := c.events
	c.events = nil
	return events
}

// SetUsername sets the daemon identity and returns the assigned user id.
func (c *Client) SetUsername(username string) (string, error) {
	reply, err := c.roundTrip(protocol.SetUsername{Username: username})
	if err != nil {
		return "", err
	}
	switch r := reply.(type) {
	case protocol.IdentityInfo:
		return r.UserID, nil
	case protocol.ErrorReply:
		return "", errors.New(string(r))
	default:
		return "", fmt.Errorf("unexpected reply %T", reply)
	}
}

// Peers returns the daemon's current peer list.
func (c *Client) Peers() ([]protocol.Peer, error) {
	reply, err := c.roundTrip(protocol.GetPeers{})
	if err != nil {
		return nil, err
	}
	switch r := reply.(type) {
	case protocol.PeerList:
		return r, nil
	case protocol.ErrorReply:
		return nil, errors.New(string(r))
	default:
		return nil, fmt.Errorf("unexpected reply %T", reply)
	}
}

// Send delivers content to the peer with the given id and returns the
// daemon's confirmation text.
func (c *Client) Send(recipientID, content string) (string, error) {
	reply, err := c.roundTrip(protocol.SendMessage{RecipientID: recipientID, Content: content})
	if err != nil {
		return "", err
	}
	switch r := reply.(type) {
	case protocol.SuccessReply:
		return string(r), nil
	case protocol.ErrorReply:
		return "", errors.New(string(r))
	default:
		return "", fmt.Errorf("unexpected reply %T", reply)
	}
}

// History requests stored messages for a peer. The daemon keeps none, so
// this currently always returns an error.
func (c *Client) History(peerID string) ([]protocol.Message, error) {
	reply, err := c.roundTrip(protocol.RequestHistory{PeerID: peerID})
	if err != nil {
		return nil, err
	}
	switch r := reply.(type) {
	case protocol.HistoryResponse:
		return r.Messages, nil
	case protocol.ErrorReply:
		return nil, errors.New(string(r))
	default:
		return nil, fmt.Errorf("unexpected reply %T", reply)
	}
}

// ClearPeerCache empties the daemon's peer registry.
func (c *Client) ClearPeerCache() (string, error) {
	reply, err := c.roundTrip(protocol.ClearDaemonPeerCache{})
	if err != nil {
		return "", err
	}
	switch r := reply.(type) {
	case protocol.SuccessReply:
		return string(r), nil
	case protocol.ErrorReply:
		return "", errors.New(string(r))
	default:
		return "", fmt.Errorf("unexpected reply %T", reply)
	}
}

// IsRunning reports whether a daemon answers on the default endpoint.
func IsRunning() bool {
	c, err := Connect()
	if err != nil {
		return false
	}
	c.Close()
	return true
}

// RequireDaemon returns ErrDaemonNotRunning if no daemon is reachable.
func RequireDaemon() error {
	if !IsRunning() {
		return ErrDaemonNotRunning
	}
	return nil
}
