//go:build windows

package daemon

import (
	"fmt"
	"net"

	"github.com/Microsoft/go-winio"
)

// listenIPC binds a named pipe at path (e.g. \\.\pipe\localchat-<user>).
func listenIPC(path string) (net.Listener, error) {
	listener, err := winio.ListenPipe(path, nil)
	if err != nil {
		return nil, fmt.Errorf("bind named pipe %s: %w", path, err)
	}
	return listener, nil
}
