//go:build !windows

package daemon

import (
	"os"
	"os/signal"
	"syscall"
)

// watchDiagnostics dumps a diagnostics report on SIGUSR1 until the daemon
// stops.
func (d *Daemon) watchDiagnostics() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGUSR1)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-sigCh:
			d.logDiagnostics()
		case <-d.done:
			return
		}
	}
}
