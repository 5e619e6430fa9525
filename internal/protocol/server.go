package protocol

import (
	"encoding/json"
	"fmt"
)

// ServerMessage is a daemon → front-end message. Like Command, the set is
// closed and externally tagged on the wire.
type ServerMessage interface {
	isServerMessage()
}

// DaemonStatus is sent once at session start with the daemon's view of
// network reachability.
type DaemonStatus struct {
	IsConnectedToNetwork bool    `json:"is_connected_to_network"`
	ActiveInterfaceName  *string `json:"active_interface_name"`
}

// PeerList carries a registry snapshot in reply to GetPeers.
type PeerList []Peer

// NewMessageEvent wraps an inbound chat message forwarded to the front-end.
// Its wire tag is "NewMessage".
type NewMessageEvent Message

// HistoryResponse is the reserved (never successfully produced) reply shape
// for RequestHistory.
type HistoryResponse struct {
	PeerID   string    `json:"peer_id"`
	Messages []Message `json:"messages"`
}

// ErrorReply reports a failed command.
type ErrorReply string

// IdentityInfo confirms a newly set identity.
type IdentityInfo struct {
	UserID string `json:"user_id"`
}

// SuccessReply reports a completed command.
type SuccessReply string

func (DaemonStatus) isServerMessage()    {}
func (PeerList) isServerMessage()        {}
func (NewMessageEvent) isServerMessage() {}
func (HistoryResponse) isServerMessage() {}
func (ErrorReply) isServerMessage()      {}
func (IdentityInfo) isServerMessage()    {}
func (SuccessReply) isServerMessage()    {}

const (
	tagDaemonStatus    = "DaemonStatus"
	tagPeerList        = "PeerList"
	tagNewMessage      = "NewMessage"
	tagHistoryResponse = "HistoryResponse"
	tagError           = "Error"
	tagIdentityInfo    = "IdentityInfo"
	tagSuccess         = "Success"
)

// EncodeServerMessage renders a ServerMessage as a single JSON line (without
// the trailing newline).
func EncodeServerMessage(msg ServerMessage) ([]byte, error) {
	switch m := msg.(type) {
	case DaemonStatus:
		return json.Marshal(map[string]DaemonStatus{tagDaemonStatus: m})
	case PeerList:
		if m == nil {
			m = PeerList{}
		}
		return json.Marshal(map[string]PeerList{tagPeerList: m})
	case NewMessageEvent:
		return json.Marshal(map[string]NewMessageEvent{tagNewMessage: m})
	case HistoryResponse:
		return json.Marshal(map[string]HistoryResponse{tagHistoryResponse: m})
	case ErrorReply:
		return json.Marshal(map[string]string{tagError: string(m)})
	case IdentityInfo:
		return json.Marshal(map[string]IdentityInfo{tagIdentityInfo: m})
	case SuccessReply:
		return json.Marshal(map[string]string{tagSuccess: string(m)})
	default:
		return nil, fmt.Errorf("unencodable server message type %T", msg)
	}
}

// DecodeServerMessage parses one line of daemon output. Used by the
// front-end side.
func DecodeServerMessage(line []byte) (ServerMessage, error) {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(line, &tagged); err != nil {
		return nil, fmt.Errorf("malformed server message: %w", err)
	}
	if len(tagged) != 1 {
		return nil, fmt.Errorf("expected a single-variant server message, got %d keys", len(tagged))
	}

	for tag, payload := range tagged {
		switch tag {
		case tagDaemonStatus:
			var m DaemonStatus
			if err := json.Unmarshal(payload, &m); err != nil {
				return nil, fmt.Errorf("decode %s: %w", tag, err)
			}
			return m, nil
		case tagPeerList:
			var m PeerList
			if err := json.Unmarshal(payload, &m); err != nil {
				return nil, fmt.Errorf("decode %s: %w", tag, err)
			}
			return m, nil
		case tagNewMessage:
			var m NewMessageEvent
			if err := json.Unmarshal(payload, &m); err != nil {
				return nil, fmt.Errorf("decode %s: %w", tag, err)
			}
			return m, nil
		case tagHistoryResponse:
			var m HistoryResponse
			if err := json.Unmarshal(payload, &m); err != nil {
				return nil, fmt.Errorf("decode %s: %w", tag, err)
			}
			return m, nil
		case tagError:
			var s string
			if err := json.Unmarshal(payload, &s); err != nil {
				return nil, fmt.Errorf("decode %s: %w", tag, err)
			}
			return ErrorReply(s), nil
		case tagIdentityInfo:
			var m IdentityInfo
			if err := json.Unmarshal(payload, &m); err != nil {
				return nil, fmt.Errorf("decode %s: %w", tag, err)
			}
			return m, nil
		case tagSuccess:
			var s string
			if err := json.Unmarshal(payload, &s); err != nil {
				return nil, fmt.Errorf("decode %s: %w", tag, err)
			}
			return SuccessReply(s), nil
		default:
			return nil, fmt.Errorf("unknown server message %q", tag)
		}
	}
	return nil, fmt.Errorf("empty server message object")
}
