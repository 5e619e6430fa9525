//go:build windows

package daemon

// watchDiagnostics is a no-op on Windows, which has no SIGUSR1.
func (d *Daemon) watchDiagnostics() {
	<-d.done
}
