//go:build !windows

package daemon

import (
	"bufio"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"localchat.dev/go/localchat/internal/protocol"
)

// fakeRegistrar records registration requests instead of touching the
// network.
type fakeRegistrar struct {
	registered chan Identity
}

func (f *fakeRegistrar) Register(id Identity) error {
	f.registered <- id
	return nil
}

type ipcFixture struct {
	server    *IPCServer
	identity  *IdentityManager
	registry  *Registry
	forwarder *Forwarder
	registrar *fakeRegistrar
}

func startIPCServer(t *testing.T) *ipcFixture {
	t.Helper()

	identity := NewIdentityManager()
	registry := NewRegistry()
	metrics := NewMetrics()
	forwarder := NewForwarder()
	registrar := &fakeRegistrar{registered: make(chan Identity, 1)}
	dispatch := NewDispatcher(identity, registry, metrics)

	path := filepath.Join(t.TempDir(), "daemon.sock")
	server, err := NewIPCServer(path, identity, registry, registrar, dispatch, forwarder, metrics)
	if err != nil {
		t.Fatalf("bind IPC server: %v", err)
	}
	t.Cleanup(func() { server.Close() })
	go server.Serve()

	return &ipcFixture{
		server:    server,
		identity:  identity,
		registry:  registry,
		forwarder: forwarder,
		registrar: registrar,
	}
}

type ipcClient struct {
	conn   net.Conn
	reader *bufio.Reader
}

func dialIPC(t *testing.T, f *ipcFixture) *ipcClient {
	t.Helper()
	conn, err := net.Dial("unix", f.server.path)
	if err != nil {
		t.Fatalf("dial IPC: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &ipcClient{conn: conn, reader: bufio.NewReader(conn)}
}

func (c *ipcClient) send(t *testing.T, cmd protocol.Command) {
	t.Helper()
	data, err := protocol.EncodeCommand(cmd)
	if err != nil {
		t.Fatalf("encode command: %v", err)
	}
	if _, err := c.conn.Write(append(data, '\n')); err != nil {
		t.Fatalf("write command: %v", err)
	}
}

func (c *ipcClient) sendRaw(t *testing.T, line string) {
	t.Helper()
	if _, err := c.conn.Write([]byte(line + "\n")); err != nil {
		t.Fatalf("write raw line: %v", err)
	}
}

func (c *ipcClient) read(t *testing.T) protocol.ServerMessage {
	t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		t.Fatalf("read server message: %v", err)
	}
	msg, err := protocol.DecodeServerMessage(line)
	if err != nil {
		t.Fatalf("decode server message %q: %v", line, err)
	}
	return msg
}

func TestIPCSessionLifecycle(t *testing.T) {
	f := startIPCServer(t)
	client := dialIPC(t, f)

	// The daemon speaks first: a status snapshot on connect.
	if _, ok := client.read(t).(protocol.DaemonStatus); !ok {
		t.Fatal("session did not open with DaemonStatus")
	}

	// First SetUsername establishes the identity and starts registration.
	client.send(t, protocol.SetUsername{Username: "Alice"})
	reply := client.read(t)
	info, ok := reply.(protocol.IdentityInfo)
	if !ok {
		t.Fatalf("SetUsername reply = %#v, want IdentityInfo", reply)
	}
	if !strings.HasPrefix(info.UserID, "Alice - ") {
		t.Errorf("UserID = %q", info.UserID)
	}

	select {
	case id := <-f.registrar.registered:
		if id.FullID != info.UserID {
			t.Errorf("registered identity %q, want %q", id.FullID, info.UserID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("identity was never registered for discovery")
	}

	// A second SetUsername is rejected without changing anything.
	client.send(t, protocol.SetUsername{Username: "Mallory"})
	if got := client.read(t); got != protocol.ErrorReply("Username already set.") {
		t.Errorf("second SetUsername reply = %#v", got)
	}
	if id, _ := f.identity.Current(); id.DisplayName != "Alice" {
		t.Errorf("identity changed to %q", id.DisplayName)
	}

	// GetPeers reflects the registry.
	f.registry.Upsert(testPeer("Bob - BBBB2222", "Bob"), "Bob_BBBB2222")
	client.send(t, protocol.GetPeers{})
	peers, ok := client.read(t).(protocol.PeerList)
	if !ok || len(peers) != 1 || peers[0].ID != "Bob - BBBB2222" {
		t.Errorf("GetPeers reply = %#v", peers)
	}

	// History is reserved but never served.
	client.send(t, protocol.RequestHistory{PeerID: "Bob - BBBB2222"})
	if got := client.read(t); got != protocol.ErrorReply("History feature not yet implemented") {
		t.Errorf("RequestHistory reply = %#v", got)
	}

	// ClearDaemonPeerCache empties the registry.
	client.send(t, protocol.ClearDaemonPeerCache{})
	if got := client.read(t); got != protocol.SuccessReply("Peer cache cleared") {
		t.Errorf("ClearDaemonPeerCache reply = %#v", got)
	}
	client.send(t, protocol.GetPeers{})
	if peers, _ := client.read(t).(protocol.PeerList); len(peers) != 0 {
		t.Errorf("peers after clear = %#v", peers)
	}
}

func TestIPCSessionSurvivesMalformedInput(t *testing.T) {
	f := startIPCServer(t)
	client := dialIPC(t, f)
	client.read(t) // initial status

	client.sendRaw(t, "this is not json")
	reply, ok := client.read(t).(protocol.ErrorReply)
	if !ok || !strings.HasPrefix(string(reply), "Invalid command format") {
		t.Fatalf("malformed input reply = %#v", reply)
	}

	// The session is still usable afterwards.
	client.send(t, protocol.GetPeers{})
	if _, ok := client.read(t).(protocol.PeerList); !ok {
		t.Error("session died after malformed input")
	}
}

func TestIPCSessionReceivesForwardedMessages(t *testing.T) {
	f := startIPCServer(t)
	client := dialIPC(t, f)
	client.read(t) // initial status

	msg := protocol.NewMessage("Bob - BBBB2222", "Alice - AAAA1111", "hi alice")
	if !f.forwarder.Forward(protocol.NewMessageEvent(msg)) {
		t.Fatal("Forward failed with a session attached")
	}

	event, ok := client.read(t).(protocol.NewMessageEvent)
	if !ok {
		t.Fatal("forwarded message never reached the client")
	}
	if event.Content != "hi alice" || event.Sender != "Bob - BBBB2222" {
		t.Errorf("forwarded event = %+v", event)
	}
}

func TestIPCNewSessionSupersedesOld(t *testing.T) {
	f := startIPCServer(t)

	first := dialIPC(t, f)
	first.read(t) // initial status

	second := dialIPC(t, f)
	second.read(t) // initial status

	msg := protocol.NewMessage("Bob - BBBB2222", "Alice - AAAA1111", "for the new one")
	if !f.forwarder.Forward(protocol.NewMessageEvent(msg)) {
		t.Fatal("Forward failed")
	}

	if _, ok := second.read(t).(protocol.NewMessageEvent); !ok {
		t.Fatal("newest session did not receive the forwarded message")
	}

	// The displaced session gets nothing.
	first.conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if line, err := first.reader.ReadBytes('\n'); err == nil {
		t.Errorf("displaced session received %q", line)
	}
}
