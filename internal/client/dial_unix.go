//go:build !windows

package client

import (
	"net"
	"time"
)

// dialIPC connects to the daemon's unix socket.
func dialIPC(path string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("unix", path, timeout)
}
