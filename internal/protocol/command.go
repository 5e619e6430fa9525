package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Command is a front-end → daemon command. The set is closed: every
// implementation lives in this package and the session loop switches over it
// exhaustively.
//
// Encoding is externally tagged, one JSON value per line. Variants without
// fields are bare strings ("GetPeers"), variants with fields are single-key
// objects ({"SendMessage":{...}}).
type Command interface {
	isCommand()
}

// GetPeers requests the current peer list snapshot.
type GetPeers struct{}

// SendMessage asks the daemon to deliver content to a known peer.
type SendMessage struct {
	RecipientID string `json:"recipient_id"`
	Content     string `json:"content"`
}

// RequestHistory asks for stored messages. The daemon keeps no history; the
// command is reserved in the protocol and always answered with an Error.
type RequestHistory struct {
	PeerID         string     `json:"peer_id"`
	SinceTimestamp *time.Time `json:"since_timestamp,omitempty"`
}

// SetUsername sets the daemon's identity. Valid once per daemon lifetime.
type SetUsername struct {
	Username string `json:"username"`
}

// ClearDaemonPeerCache empties the peer registry.
type ClearDaemonPeerCache struct{}

func (GetPeers) isCommand()             {}
func (SendMessage) isCommand()          {}
func (RequestHistory) isCommand()       {}
func (SetUsername) isCommand()          {}
func (ClearDaemonPeerCache) isCommand() {}

// Variant tags as they appear on the wire.
const (
	tagGetPeers             = "GetPeers"
	tagSendMessage          = "SendMessage"
	tagRequestHistory       = "RequestHistory"
	tagSetUsername          = "SetUsername"
	tagClearDaemonPeerCache = "ClearDaemonPeerCache"
)

// DecodeCommand parses one line of front-end input into a Command.
func DecodeCommand(line []byte) (Command, error) {
	// Unit variants arrive as bare JSON strings.
	var tag string
	if err := json.Unmarshal(line, &tag); err == nil {
		switch tag {
		case tagGetPeers:
			return GetPeers{}, nil
		case tagClearDaemonPeerCache:
			return ClearDaemonPeerCache{}, nil
		default:
			return nil, fmt.Errorf("unknown command %q", tag)
		}
	}

	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(line, &tagged); err != nil {
		return nil, fmt.Errorf("malformed command: %w", err)
	}
	if len(tagged) != 1 {
		return nil, fmt.Errorf("expected a single-variant command object, got %d keys", len(tagged))
	}

	for tag, payload := range tagged {
		switch tag {
		case tagSendMessage:
			var cmd SendMessage
			if err := json.Unmarshal(payload, &cmd); err != nil {
				return nil, fmt.Errorf("decode %s: %w", tag, err)
			}
			return cmd, nil
		case tagRequestHistory:
			var cmd RequestHistory
			if err := json.Unmarshal(payload, &cmd); err != nil {
				return nil, fmt.Errorf("decode %s: %w", tag, err)
			}
			return cmd, nil
		case tagSetUsername:
			var cmd SetUsername
			if err := json.Unmarshal(payload, &cmd); err != nil {
				return nil, fmt.Errorf("decode %s: %w", tag, err)
			}
			return cmd, nil
		default:
			return nil, fmt.Errorf("unknown command %q", tag)
		}
	}
	return nil, fmt.Errorf("empty command object")
}

// EncodeCommand renders a Command as a single JSON line (without the trailing
// newline). Used by the front-end side.
func EncodeCommand(cmd Command) ([]byte, error) {
	switch c := cmd.(type) {
	case GetPeers:
		return json.Marshal(tagGetPeers)
	case ClearDaemonPeerCache:
		return json.Marshal(tagClearDaemonPeerCache)
	case SendMessage:
		return json.Marshal(map[string]SendMessage{tagSendMessage: c})
	case RequestHistory:
		return json.Marshal(map[string]RequestHistory{tagRequestHistory: c})
	case SetUsername:
		return json.Marshal(map[string]SetUsername{tagSetUsername: c})
	default:
		return nil, fmt.Errorf("unencodable command type %T", cmd)
	}
}
