package cli

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"localchat.dev/go/localchat/internal/client"
	"localchat.dev/go/localchat/internal/config"
	"localchat.dev/go/localchat/internal/daemon"
)

var daemonTCPPort int

func init() {
	rootCmd.AddCommand(daemonCmd)

	daemonCmd.AddCommand(daemonRunCmd)
	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	daemonCmd.AddCommand(daemonStatusCmd)

	daemonRunCmd.Flags().IntVar(&daemonTCPPort, "tcp-port", 0, "peer messaging port (default: config or 12345)")
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Daemon management commands",
	Long: `Control the localchat background daemon.

The daemon advertises this machine via mDNS, exchanges messages with
peers over TCP, and serves front-ends on a local socket.`,
}

var daemonRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run daemon in foreground",
	Long: `Run the daemon in the foreground.

This is typically used by service managers (systemd, launchd).
For manual use, prefer 'localchat daemon start'.`,
	RunE: runDaemonRun,
}

func runDaemonRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if daemonTCPPort > 0 {
		cfg.Daemon.TCPPort = daemonTCPPort
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	paths, err := config.GetPaths()
	if err != nil {
		return fmt.Errorf("get paths: %w", err)
	}
	paths.ResolveSocketPath(cfg)
	if socketFlag != "" {
		paths.SocketPath = socketFlag
	}
	if err := paths.EnsureDirs(); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}

	if client.IsRunning() {
		return fmt.Errorf("daemon is already running")
	}

	d := daemon.New(daemon.Options{
		Config:  cfg,
		Paths:   paths,
		Version: version,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("Daemon starting...")
	return d.Run(ctx)
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start daemon in background",
	Long: `Start the daemon in the background.

The daemon will continue running after this command exits.
Use 'localchat daemon status' to check if it's running.`,
	RunE: runDaemonStart,
}

func runDaemonStart(cmd *cobra.Command, args []string) error {
	if client.IsRunning() {
		fmt.Println("Daemon is already running.")
		return nil
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("get executable: %w", err)
	}

	daemonProc := exec.Command(exe, "daemon", "run")
	daemonProc.Stdout = os.Stdout
	daemonProc.Stderr = os.Stderr

	if err := daemonProc.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- daemonProc.Wait()
	}()

	timeout := time.After(10 * time.Second)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("daemon failed to start: %w", err)
			}
			return fmt.Errorf("daemon exited unexpectedly")

		case <-ticker.C:
			if client.IsRunning() {
				fmt.Printf("Daemon started (PID %d).\n", daemonProc.Process.Pid)
				return nil
			}

		case <-timeout:
			fmt.Println("Timeout waiting for daemon to start.")
			fmt.Println("The daemon process may still be running in the background.")
			return nil
		}
	}
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the daemon",
	RunE:  runDaemonStop,
}

func runDaemonStop(cmd *cobra.Command, args []string) error {
	paths, err := config.GetPaths()
	if err != nil {
		return fmt.Errorf("get paths: %w", err)
	}
	if paths.PIDFile == "" {
		return fmt.Errorf("no PID file path on this platform")
	}

	data, err := os.ReadFile(paths.PIDFile)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("Daemon is not running (no PID file).")
			return nil
		}
		return fmt.Errorf("read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("parse PID: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process: %w", err)
	}

	fmt.Printf("Sending SIGTERM to daemon (PID %d)...\n", pid)
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("send signal: %w", err)
	}

	for i := 0; i < 30; i++ {
		if !client.IsRunning() {
			fmt.Println("Daemon stopped.")
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	fmt.Println("Daemon did not stop gracefully.")
	return nil
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	RunE:  runDaemonStatus,
}

func runDaemonStatus(cmd *cobra.Command, args []string) error {
	c, err := connect()
	if err != nil {
		fmt.Println("Daemon is not running.")
		return nil
	}
	defer c.Close()

	status := c.Status()

	fmt.Println("Daemon Status")
	fmt.Println()
	fmt.Printf("  Running:   yes\n")
	if status.IsConnectedToNetwork {
		iface := "unknown"
		if status.ActiveInterfaceName != nil {
			iface = *status.ActiveInterfaceName
		}
		fmt.Printf("  Network:   connected (%s)\n", iface)
	} else {
		fmt.Printf("  Network:   disconnected\n")
	}

	peers, err := c.Peers()
	if err != nil {
		return fmt.Errorf("get peers: %w", err)
	}
	fmt.Printf("  Peers:     %d known\n", len(peers))

	return nil
}
