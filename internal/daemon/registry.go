package daemon

import (
	"sync"

	"localchat.dev/go/localchat/internal/protocol"
)

// Registry is the concurrent map of known remote peers, keyed by each peer's
// full message id. Only the discovery service mutates it (plus the explicit
// ClearDaemonPeerCache command); the IPC session reads snapshots.
type Registry struct {
	mu    sync.RWMutex
	peers map[string]registryEntry
}

// registryEntry pairs the wire-visible peer with the mDNS instance name the
// peer was discovered under, so that expiry matches peers exactly instead of
// by substring.
type registryEntry struct {
	peer     protocol.Peer
	instance string
}

// NewRegistry creates an empty peer registry.
func NewRegistry() *Registry {
	return &Registry{peers: make(map[string]registryEntry)}
}

// Upsert inserts or overwrites the peer keyed by its id.
func (r *Registry) Upsert(peer protocol.Peer, instance string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[peer.ID] = registryEntry{peer: peer, instance: instance}
}

// Get returns the peer with the given id.
func (r *Registry) Get(id string) (protocol.Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.peers[id]
	return entry.peer, ok
}

// Remove deletes the peer with the given id, reporting whether it was present.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.peers[id]; !ok {
		return false
	}
	delete(r.peers, id)
	return true
}

// RemoveByInstance deletes the peer whose stored mDNS instance name equals
// instance, returning the removed peer's id.
func (r *Registry) RemoveByInstance(instance string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, entry := range r.peers {
		if entry.instance == instance {
			delete(r.peers, id)
			return id, true
		}
	}
	return "", false
}

// InstanceNames returns the mDNS instance names of all known peers, for the
// discovery service's expiry sweep.
func (r *Registry) InstanceNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.peers))
	for _, entry := range r.peers {
		names = append(names, entry.instance)
	}
	return names
}

// List returns a snapshot of all known peers in no particular order.
func (r *Registry) List() []protocol.Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	peers := make([]protocol.Peer, 0, len(r.peers))
	for _, entry := range r.peers {
		peers = append(peers, entry.peer)
	}
	return peers
}

// Len returns the number of known peers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// Clear empties the registry.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers = make(map[string]registryEntry)
}
