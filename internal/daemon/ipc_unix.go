//go:build !windows

package daemon

import (
	"fmt"
	"net"
	"os"
)

// listenIPC binds a unix domain socket at path, replacing any stale socket
// file left behind by a previous run. The socket is restricted to the owning
// user.
func listenIPC(path string) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove stale socket %s: %w", path, err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("bind unix socket %s: %w", path, err)
	}

	if err := os.Chmod(path, 0600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("restrict socket permissions: %w", err)
	}

	return listener, nil
}
