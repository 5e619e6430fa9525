package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"localchat.dev/go/localchat/internal/protocol"
)

// ErrPeerNotFound marks send failures caused by an unknown recipient id.
var ErrPeerNotFound = errors.New("peer not found")

// unknownRecipientError carries the front-end-facing text while matching
// ErrPeerNotFound under errors.Is.
type unknownRecipientError struct{ id string }

func (e *unknownRecipientError) Error() string {
	return fmt.Sprintf("Recipient '%s' not found.", e.id)
}

func (e *unknownRecipientError) Is(target error) bool {
	return target == ErrPeerNotFound
}

const (
	// dialTimeout bounds the TCP connect to a peer.
	dialTimeout = 5 * time.Second

	// sendWriteTimeout bounds writing one message line to a peer.
	sendWriteTimeout = 5 * time.Second
)

// Dispatcher delivers outbound chat messages. Every send is one short-lived
// TCP connection: dial, write one line, close. There is no retry; any
// failure is reported back to the front-end as-is.
type Dispatcher struct {
	identity *IdentityManager
	registry *Registry
	metrics  *Metrics
}

// NewDispatcher creates a dispatcher over the given identity and registry.
func NewDispatcher(identity *IdentityManager, registry *Registry, metrics *Metrics) *Dispatcher {
	return &Dispatcher{identity: identity, registry: registry, metrics: metrics}
}

// Send delivers content to the peer with the given id and returns the
// confirmation text for the front-end. The recipient is resolved before any
// network activity: an unknown id never causes a dial.
func (d *Dispatcher) Send(recipientID, content string) (string, error) {
	id, ok := d.identity.Current()
	if !ok {
		d.metrics.SendFailures.Add(1)
		return "", fmt.Errorf("cannot send message: username not set")
	}

	peer, ok := d.registry.Get(recipientID)
	if !ok {
		d.metrics.SendFailures.Add(1)
		return "", &unknownRecipientError{id: recipientID}
	}

	msg := protocol.NewMessage(id.FullID, peer.ID, content)

	if err := d.deliver(peer, msg); err != nil {
		d.metrics.SendFailures.Add(1)
		return "", err
	}

	d.metrics.MessagesSent.Add(1)
	slog.Info("Message sent", "to", peer.Username, "addr", fmt.Sprintf("%s:%d", peer.IP, peer.Port), "id", msg.ID)
	return fmt.Sprintf("Message successfully sent to %s", peer.Username), nil
}

// deliver writes one message line to the peer over a fresh connection.
func (d *Dispatcher) deliver(peer protocol.Peer, msg protocol.Message) error {
	addr := net.JoinHostPort(peer.IP, fmt.Sprintf("%d", peer.Port))

	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", peer.Username, err)
	}
	defer conn.Close()

	line, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message for %s: %w", peer.Username, err)
	}
	line = append(line, '\n')

	if err := conn.SetWriteDeadline(time.Now().Add(sendWriteTimeout)); err != nil {
		return fmt.Errorf("failed to set write deadline for %s: %w", peer.Username, err)
	}
	if _, err := conn.Write(line); err != nil {
		return fmt.Errorf("failed to send message to %s: %w", peer.Username, err)
	}
	return nil
}
