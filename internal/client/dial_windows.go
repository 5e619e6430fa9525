//go:build windows

package client

import (
	"net"
	"time"

	"github.com/Microsoft/go-winio"
)

// dialIPC connects to the daemon's named pipe.
func dialIPC(path string, timeout time.Duration) (net.Conn, error) {
	return winio.DialPipe(path, &timeout)
}
