package daemon

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"
)

// ErrIdentityAlreadySet is returned by a second SetName on the same daemon.
var ErrIdentityAlreadySet = errors.New("username already set")

// suffixLen is the length of the random identity suffix.
const suffixLen = 8

// defaultInstanceToken replaces a display name that sanitizes to nothing.
const defaultInstanceToken = "LocalChat"

// Identity holds the daemon's user identity. Created once per process and
// immutable afterwards.
type Identity struct {
	// DisplayName is the raw name the user chose.
	DisplayName string

	// InstanceName is the mDNS service instance name: the alphanumeric-only
	// display name, an underscore, and the random suffix.
	InstanceName string

	// FullID is the globally visible identifier used as message sender and
	// peer registry key: "{DisplayName} - {suffix}".
	FullID string
}

// IdentityManager owns the daemon's identity. All access goes through it;
// the zero value is unset.
type IdentityManager struct {
	mu      sync.Mutex
	current *Identity
}

// NewIdentityManager creates an identity manager with no identity set.
func NewIdentityManager() *IdentityManager {
	return &IdentityManager{}
}

// Set establishes the identity from the given display name. The first call
// wins; any later call returns ErrIdentityAlreadySet without mutating state.
func (m *IdentityManager) Set(displayName string) (Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return Identity{}, ErrIdentityAlreadySet
	}

	suffix, err := randomSuffix(suffixLen)
	if err != nil {
		return Identity{}, fmt.Errorf("generate identity suffix: %w", err)
	}

	sanitized := stripNonAlphanumeric(displayName)
	if sanitized == "" {
		sanitized = defaultInstanceToken
	}

	id := Identity{
		DisplayName:  displayName,
		InstanceName: sanitized + "_" + suffix,
		FullID:       displayName + " - " + suffix,
	}
	m.current = &id
	return id, nil
}

// Current returns the identity, if one has been set.
func (m *IdentityManager) Current() (Identity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return Identity{}, false
	}
	return *m.current, true
}

// stripNonAlphanumeric keeps only letters and digits from s.
func stripNonAlphanumeric(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

const suffixAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// randomSuffix returns n random alphanumeric characters.
func randomSuffix(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = suffixAlphabet[int(b)%len(suffixAlphabet)]
	}
	return string(buf), nil
}
