// Package protocol defines the wire types shared by the daemon, its peers,
// and the front-end: the chat Message exchanged over peer TCP connections,
// and the tagged command/server-message enums spoken over the IPC socket.
package protocol

import (
	"time"

	"github.com/google/uuid"
)

// Message is a single chat message. The same JSON shape travels on the peer
// wire (one message per newline-terminated line) and inside the IPC
// NewMessage envelope.
type Message struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// IsSelf is a display hint for the receiving front-end. It is never
	// true on the wire: the daemon forces it to false on both send and
	// receive, and the sender's own echo is appended locally by the
	// front-end without a network round trip.
	IsSelf bool `json:"is_self"`
}

// NewMessage builds an outbound message with a fresh id and the current UTC
// timestamp.
func NewMessage(sender, recipient, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Sender:    sender,
		Recipient: recipient,
		Content:   content,
		Timestamp: time.Now().UTC(),
		IsSelf:    false,
	}
}

// Peer describes a reachable remote daemon as reported to the front-end.
type Peer struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IP       string `json:"ip"`
	Port     uint16 `json:"port"`
}
