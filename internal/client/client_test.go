//go:build !windows

package client

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"localchat.dev/go/localchat/internal/daemon"
	"localchat.dev/go/localchat/internal/protocol"
)

type noopRegistrar struct{}

func (noopRegistrar) Register(daemon.Identity) error { return nil }

type testDaemon struct {
	socket    string
	registry  *daemon.Registry
	forwarder *daemon.Forwarder
}

func startDaemon(t *testing.T) *testDaemon {
	t.Helper()

	identity := daemon.NewIdentityManager()
	registry := daemon.NewRegistry()
	metrics := daemon.NewMetrics()
	forwarder := daemon.NewForwarder()
	dispatch := daemon.NewDispatcher(identity, registry, metrics)

	socket := filepath.Join(t.TempDir(), "daemon.sock")
	server, err := daemon.NewIPCServer(socket, identity, registry, noopRegistrar{}, dispatch, forwarder, metrics)
	if err != nil {
		t.Fatalf("start IPC server: %v", err)
	}
	t.Cleanup(func() { server.Close() })
	go server.Serve()

	return &testDaemon{socket: socket, registry: registry, forwarder: forwarder}
}

func TestConnectReadsInitialStatus(t *testing.T) {
	d := startDaemon(t)

	c, err := ConnectTo(d.socket)
	if err != nil {
		t.Fatalf("ConnectTo failed: %v", err)
	}
	defer c.Close()

	// The status snapshot was consumed at connect time; its shape depends on
	// the host network, so only the fields' consistency is checked.
	status := c.Status()
	if status.IsConnectedToNetwork && status.ActiveInterfaceName == nil {
		t.Error("connected status without an interface name")
	}
}

func TestConnectRefusedWithoutDaemon(t *testing.T) {
	if _, err := ConnectTo(filepath.Join(t.TempDir(), "absent.sock")); err == nil {
		t.Fatal("ConnectTo succeeded with no daemon listening")
	}
}

func TestClientCommands(t *testing.T) {
	d := startDaemon(t)

	c, err := ConnectTo(d.socket)
	if err != nil {
		t.Fatalf("ConnectTo failed: %v", err)
	}
	defer c.Close()
	c.SetTimeout(2 * time.Second)

	userID, err := c.SetUsername("Alice")
	if err != nil {
		t.Fatalf("SetUsername failed: %v", err)
	}
	if !strings.HasPrefix(userID, "Alice - ") {
		t.Errorf("userID = %q", userID)
	}

	if _, err := c.SetUsername("Bob"); err == nil || err.Error() != "Username already set." {
		t.Errorf("second SetUsername error = %v", err)
	}

	d.registry.Upsert(protocol.Peer{ID: "Bob - BBBB2222", Username: "Bob", IP: "192.0.2.1", Port: 12345}, "Bob_BBBB2222")
	peers, err := c.Peers()
	if err != nil {
		t.Fatalf("Peers failed: %v", err)
	}
	if len(peers) != 1 || peers[0].Username != "Bob" {
		t.Errorf("peers = %#v", peers)
	}

	if _, err := c.History("Bob - BBBB2222"); err == nil {
		t.Error("History unexpectedly succeeded")
	}

	text, err := c.ClearPeerCache()
	if err != nil {
		t.Fatalf("ClearPeerCache failed: %v", err)
	}
	if text != "Peer cache cleared" {
		t.Errorf("confirmation = %q", text)
	}
	if peers, _ := c.Peers(); len(peers) != 0 {
		t.Errorf("peers after clear = %#v", peers)
	}
}

func TestClientNextReceivesForwardedMessages(t *testing.T) {
	d := startDaemon(t)

	c, err := ConnectTo(d.socket)
	if err != nil {
		t.Fatalf("ConnectTo failed: %v", err)
	}
	defer c.Close()

	msg := protocol.NewMessage("Bob - BBBB2222", "Alice - AAAA1111", "hello")
	if !d.forwarder.Forward(protocol.NewMessageEvent(msg)) {
		t.Fatal("Forward failed with a client connected")
	}

	got, err := c.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	event, ok := got.(protocol.NewMessageEvent)
	if !ok {
		t.Fatalf("Next returned %T", got)
	}
	if event.Content != "hello" {
		t.Errorf("event = %+v", event)
	}
}
