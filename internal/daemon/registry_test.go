package daemon

import (
	"testing"

	"localchat.dev/go/localchat/internal/protocol"
)

func testPeer(id, username string) protocol.Peer {
	return protocol.Peer{ID: id, Username: username, IP: "192.168.1.10", Port: 12345}
}

func TestRegistryUpsertAndGet(t *testing.T) {
	r := NewRegistry()

	r.Upsert(testPeer("Alice - AAAA1111", "Alice"), "Alice_AAAA1111")
	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}

	peer, ok := r.Get("Alice - AAAA1111")
	if !ok {
		t.Fatal("Get missed an inserted peer")
	}
	if peer.Username != "Alice" {
		t.Errorf("Username = %q, want %q", peer.Username, "Alice")
	}

	// Re-announcement overwrites in place.
	updated := testPeer("Alice - AAAA1111", "Alice")
	updated.IP = "192.168.1.99"
	r.Upsert(updated, "Alice_AAAA1111")
	if r.Len() != 1 {
		t.Errorf("Len after re-upsert = %d, want 1", r.Len())
	}
	peer, _ = r.Get("Alice - AAAA1111")
	if peer.IP != "192.168.1.99" {
		t.Errorf("IP = %q, want updated address", peer.IP)
	}
}

func TestRegistryRemoveByInstance(t *testing.T) {
	r := NewRegistry()
	r.Upsert(testPeer("Alice - AAAA1111", "Alice"), "Alice_AAAA1111")
	r.Upsert(testPeer("Alice - BBBB2222", "Alice"), "Alice_BBBB2222")

	// Exact instance match removes only the matching entry, even with two
	// peers sharing a display name.
	id, ok := r.RemoveByInstance("Alice_BBBB2222")
	if !ok {
		t.Fatal("RemoveByInstance missed a known instance")
	}
	if id != "Alice - BBBB2222" {
		t.Errorf("removed id = %q, want %q", id, "Alice - BBBB2222")
	}
	if _, ok := r.Get("Alice - AAAA1111"); !ok {
		t.Error("unrelated peer was removed")
	}

	if _, ok := r.RemoveByInstance("Alice_CCCC3333"); ok {
		t.Error("RemoveByInstance matched an unknown instance")
	}
}

func TestRegistryInstanceNames(t *testing.T) {
	r := NewRegistry()
	if names := r.InstanceNames(); len(names) != 0 {
		t.Errorf("InstanceNames on empty registry = %v", names)
	}

	r.Upsert(testPeer("Alice - AAAA1111", "Alice"), "Alice_AAAA1111")
	r.Upsert(testPeer("Bob - BBBB2222", "Bob"), "Bob_BBBB2222")

	names := r.InstanceNames()
	if len(names) != 2 {
		t.Fatalf("InstanceNames returned %d names, want 2", len(names))
	}
	got := map[string]bool{names[0]: true, names[1]: true}
	if !got["Alice_AAAA1111"] || !got["Bob_BBBB2222"] {
		t.Errorf("InstanceNames = %v", names)
	}
}

func TestRegistryListAndClear(t *testing.T) {
	r := NewRegistry()
	if peers := r.List(); len(peers) != 0 {
		t.Errorf("List on empty registry = %v", peers)
	}

	r.Upsert(testPeer("Alice - AAAA1111", "Alice"), "Alice_AAAA1111")
	r.Upsert(testPeer("Bob - BBBB2222", "Bob"), "Bob_BBBB2222")

	peers := r.List()
	if len(peers) != 2 {
		t.Fatalf("List returned %d peers, want 2", len(peers))
	}

	// Snapshot is detached from the registry.
	r.Clear()
	if len(peers) != 2 {
		t.Error("Clear mutated an existing snapshot")
	}
	if r.Len() != 0 {
		t.Errorf("Len after Clear = %d, want 0", r.Len())
	}
}
