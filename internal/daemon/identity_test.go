package daemon

import (
	"errors"
	"strings"
	"testing"
)

func TestIdentitySetFormat(t *testing.T) {
	m := NewIdentityManager()

	id, err := m.Set("Alice")
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if id.DisplayName != "Alice" {
		t.Errorf("DisplayName = %q, want %q", id.DisplayName, "Alice")
	}

	// FullID is "{name} - {8 alphanumeric chars}"
	prefix := "Alice - "
	if !strings.HasPrefix(id.FullID, prefix) {
		t.Fatalf("FullID = %q, want prefix %q", id.FullID, prefix)
	}
	suffix := strings.TrimPrefix(id.FullID, prefix)
	if len(suffix) != suffixLen {
		t.Errorf("suffix length = %d, want %d", len(suffix), suffixLen)
	}
	for _, r := range suffix {
		if !strings.ContainsRune(suffixAlphabet, r) {
			t.Errorf("suffix contains unexpected character %q", r)
		}
	}

	if id.InstanceName != "Alice_"+suffix {
		t.Errorf("InstanceName = %q, want %q", id.InstanceName, "Alice_"+suffix)
	}
}

func TestIdentitySetOnce(t *testing.T) {
	m := NewIdentityManager()

	first, err := m.Set("Alice")
	if err != nil {
		t.Fatalf("first Set failed: %v", err)
	}

	if _, err := m.Set("Bob"); !errors.Is(err, ErrIdentityAlreadySet) {
		t.Fatalf("second Set error = %v, want ErrIdentityAlreadySet", err)
	}

	current, ok := m.Current()
	if !ok {
		t.Fatal("Current reported no identity after Set")
	}
	if current.FullID != first.FullID {
		t.Errorf("identity changed after rejected Set: %q != %q", current.FullID, first.FullID)
	}
}

func TestIdentityInstanceNameSanitization(t *testing.T) {
	tests := []struct {
		name       string
		display    string
		wantPrefix string
	}{
		{"spaces and punctuation stripped", "Alice Smith!", "AliceSmith_"},
		{"unicode letters kept", "Zoë", "Zoë_"},
		{"digits kept", "user42", "user42_"},
		{"symbols only falls back", "!!! ---", defaultInstanceToken + "_"},
		{"empty falls back", "", defaultInstanceToken + "_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewIdentityManager()
			id, err := m.Set(tt.display)
			if err != nil {
				t.Fatalf("Set(%q) failed: %v", tt.display, err)
			}
			if !strings.HasPrefix(id.InstanceName, tt.wantPrefix) {
				t.Errorf("InstanceName = %q, want prefix %q", id.InstanceName, tt.wantPrefix)
			}
			// FullID keeps the raw display name even when the instance name
			// was sanitized.
			if !strings.HasPrefix(id.FullID, tt.display+" - ") {
				t.Errorf("FullID = %q, want prefix %q", id.FullID, tt.display+" - ")
			}
		})
	}
}

func TestIdentityCurrentUnset(t *testing.T) {
	m := NewIdentityManager()
	if _, ok := m.Current(); ok {
		t.Error("Current reported an identity before Set")
	}
}

func TestRandomSuffixUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		s, err := randomSuffix(suffixLen)
		if err != nil {
			t.Fatalf("randomSuffix failed: %v", err)
		}
		if len(s) != suffixLen {
			t.Fatalf("suffix length = %d, want %d", len(s), suffixLen)
		}
		seen[s] = true
	}
	if len(seen) < 95 {
		t.Errorf("suffixes barely vary: %d distinct out of 100", len(seen))
	}
}
