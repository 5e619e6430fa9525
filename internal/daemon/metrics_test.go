package daemon

import "testing"

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.MessagesSent.Add(3)
	m.MessagesReceived.Add(2)
	m.SendFailures.Add(1)

	snap := m.Snapshot(4)
	if snap.MessagesSent != 3 || snap.MessagesReceived != 2 || snap.SendFailures != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.KnownPeers != 4 {
		t.Errorf("KnownPeers = %d, want 4", snap.KnownPeers)
	}
	if snap.Uptime == "" {
		t.Error("Uptime is empty")
	}

	// Snapshot is a copy; later increments don't leak into it.
	m.MessagesSent.Add(1)
	if snap.MessagesSent != 3 {
		t.Error("snapshot mutated after the fact")
	}
}
