package daemon

import (
	"sync"

	"localchat.dev/go/localchat/internal/protocol"
)

// forwardBufferSize bounds how many undelivered messages a session may have
// in flight before further inbound messages are dropped.
const forwardBufferSize = 64

// Forwarder holds the forwarding channel of the currently connected
// front-end. At most one front-end receives forwarded peer messages at a
// time: installing a new channel supersedes the previous one, and releasing
// clears the slot only if it is still owned by the releasing session.
type Forwarder struct {
	mu    sync.Mutex
	owner any
	ch    chan<- protocol.ServerMessage
}

// NewForwarder creates an empty forwarder.
func NewForwarder() *Forwarder {
	return &Forwarder{}
}

// Install makes ch the active forwarding channel, superseding any previous
// owner. Returns true if a previous owner was displaced.
func (f *Forwarder) Install(owner any, ch chan<- protocol.ServerMessage) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	displaced := f.owner != nil && f.owner != owner
	f.owner = owner
	f.ch = ch
	return displaced
}

// Release clears the active channel if owner still holds it. A session that
// was superseded by a newer front-end leaves the newer channel untouched.
func (f *Forwarder) Release(owner any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.owner == owner {
		f.owner = nil
		f.ch = nil
	}
}

// Forward delivers msg to the active front-end, if any. The send never
// blocks: with no front-end attached, or with its buffer full, the message
// is dropped and false is returned.
func (f *Forwarder) Forward(msg protocol.ServerMessage) bool {
	f.mu.Lock()
	ch := f.ch
	f.mu.Unlock()

	if ch == nil {
		return false
	}
	select {
	case ch <- msg:
		return true
	default:
		return false
	}
}

// Active reports whether a front-end channel is installed.
func (f *Forwarder) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ch != nil
}
